// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package download

import (
	"sync"

	"github.com/blinklabs-io/atlas/attachment"
)

// Keyed is implemented by requests that can be collected in a BatchedRequestsResult
type Keyed interface {
	Key() string
}

// RequestResult holds the responses gathered for one request, keyed by peer
// URL. A nil response means the peer did not answer usefully
type RequestResult[T Keyed, R any] struct {
	Request   T
	Responses map[string]*R
}

// BatchedRequestsResult collects the outcome of a round of requests.
// AddResponse and AddFailure may be called concurrently while the round is in
// flight. The exported maps must only be read once collection has finished
type BatchedRequestsResult[T Keyed, R any] struct {
	Succeeded map[string]*RequestResult[T, R]
	Errors    map[string]map[string]error
	mutex     sync.Mutex
}

type (
	InventoryResults  = BatchedRequestsResult[*AttachmentsInventoryRequest, InventoryResponse]
	AttachmentResults = BatchedRequestsResult[*AttachmentRequest, attachment.Attachment]
)

func NewBatchedRequestsResult[T Keyed, R any]() *BatchedRequestsResult[T, R] {
	return &BatchedRequestsResult[T, R]{
		Succeeded: make(map[string]*RequestResult[T, R]),
		Errors:    make(map[string]map[string]error),
	}
}

func NewInventoryResults() *InventoryResults {
	return NewBatchedRequestsResult[*AttachmentsInventoryRequest, InventoryResponse]()
}

func NewAttachmentResults() *AttachmentResults {
	return NewBatchedRequestsResult[*AttachmentRequest, attachment.Attachment]()
}

// AddResponse records the response of a peer to a request
func (b *BatchedRequestsResult[T, R]) AddResponse(request T, url string, response *R) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.entryLocked(request).Responses[url] = response
}

// AddFailure records that a peer did not answer a request. The peer's
// response is stored as nil and the error is kept for diagnostics
func (b *BatchedRequestsResult[T, R]) AddFailure(request T, url string, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.entryLocked(request).Responses[url] = nil
	key := request.Key()
	errs, ok := b.Errors[key]
	if !ok {
		errs = make(map[string]error)
		b.Errors[key] = errs
	}
	errs[url] = err
}

// Len returns the number of distinct requests recorded
func (b *BatchedRequestsResult[T, R]) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.Succeeded)
}

func (b *BatchedRequestsResult[T, R]) entryLocked(request T) *RequestResult[T, R] {
	key := request.Key()
	entry, ok := b.Succeeded[key]
	if !ok {
		entry = &RequestResult[T, R]{
			Request:   request,
			Responses: make(map[string]*R),
		}
		b.Succeeded[key] = entry
	}
	return entry
}
