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
	"fmt"
	"maps"
	"slices"

	"github.com/blinklabs-io/atlas/attachment"
	"github.com/jinzhu/copier"
)

// AttachmentsBatchStateContext pairs a batch with a snapshot of the peer table
// and what is known about which peer holds which attachment. A context is
// never modified after construction. ExtendWithInventories returns a new one
type AttachmentsBatchStateContext struct {
	batch        *AttachmentsBatch
	peers        map[string]ReliabilityReport
	options      ConnectionOptions
	availability map[attachment.Hash160]map[string]struct{}
}

// NewAttachmentsBatchStateContext seeds a context with no availability
// knowledge. The peer table is copied
func NewAttachmentsBatchStateContext(
	batch *AttachmentsBatch,
	peers map[string]ReliabilityReport,
	options ConnectionOptions,
) *AttachmentsBatchStateContext {
	return &AttachmentsBatchStateContext{
		batch:        batch,
		peers:        copyPeers(peers),
		options:      options,
		availability: make(map[attachment.Hash160]map[string]struct{}),
	}
}

func (c *AttachmentsBatchStateContext) Batch() *AttachmentsBatch {
	return c.batch
}

// Peers returns a copy of the peer table snapshot
func (c *AttachmentsBatchStateContext) Peers() map[string]ReliabilityReport {
	return copyPeers(c.peers)
}

func (c *AttachmentsBatchStateContext) ConnectionOptions() ConnectionOptions {
	return c.options
}

// Sources returns the URLs of the peers known to hold the content hash, in
// ascending order
func (c *AttachmentsBatchStateContext) Sources(hash attachment.Hash160) []string {
	ret := slices.Collect(maps.Keys(c.availability[hash]))
	slices.Sort(ret)
	return ret
}

// PrioritizedInventoryRequests builds one request per peer, contract and chunk
// of missing pages, ordered by peer reliability
func (c *AttachmentsBatchStateContext) PrioritizedInventoryRequests() *InventoryRequestQueue {
	queue := NewInventoryRequestQueue()
	if c.batch == nil {
		return queue
	}
	urls := slices.Sorted(maps.Keys(c.peers))
	for _, contractID := range c.batch.ContractIDs() {
		chunks := c.batch.PaginatedMissingPagesWithLimit(
			contractID,
			c.options.pageLimit(),
		)
		for _, chunk := range chunks {
			for _, url := range urls {
				queue.Push(
					&AttachmentsInventoryRequest{
						URL:               url,
						BlockHeight:       c.batch.BlockHeight(),
						Pages:             slices.Clone(chunk),
						ContractID:        contractID,
						ConsensusHash:     c.batch.ConsensusHash(),
						BlockHeaderHash:   c.batch.BlockHeaderHash(),
						ReliabilityReport: c.peers[url],
					},
				)
			}
		}
	}
	return queue
}

// ExtendWithInventories merges the inventory responses of a round into a new
// context. Invalid pages are dropped for the peer that sent them. A peer's
// latest answer for an attachment replaces any earlier one
func (c *AttachmentsBatchStateContext) ExtendWithInventories(
	results *InventoryResults,
) (*AttachmentsBatchStateContext, error) {
	availability, err := cloneAvailability(c.availability)
	if err != nil {
		return nil, err
	}
	next := &AttachmentsBatchStateContext{
		batch:        c.batch,
		peers:        copyPeers(c.peers),
		options:      c.options,
		availability: availability,
	}
	if results == nil || c.batch == nil {
		return next, nil
	}
	// A peer holds a hash if any of its slots is marked present
	observed := make(map[attachment.Hash160]map[string]bool)
	for _, key := range slices.Sorted(maps.Keys(results.Succeeded)) {
		result := results.Succeeded[key]
		if result == nil || result.Request == nil {
			continue
		}
		for url, response := range result.Responses {
			if response == nil {
				continue
			}
			if _, ok := next.peers[url]; !ok {
				continue
			}
			c.observePages(result.Request, url, response, observed)
		}
	}
	for hash, byURL := range observed {
		holders, ok := next.availability[hash]
		if !ok {
			holders = make(map[string]struct{})
			next.availability[hash] = holders
		}
		for url, held := range byURL {
			if held {
				holders[url] = struct{}{}
			} else {
				delete(holders, url)
			}
		}
		if len(holders) == 0 {
			delete(next.availability, hash)
		}
	}
	return next, nil
}

func (c *AttachmentsBatchStateContext) observePages(
	request *AttachmentsInventoryRequest,
	url string,
	response *InventoryResponse,
	observed map[attachment.Hash160]map[string]bool,
) {
	maxLen := c.options.attachmentsPerPage()
	for _, page := range response.Pages {
		if !request.hasPage(page.Index) {
			continue
		}
		if len(page.Inventory) == 0 || len(page.Inventory) > maxLen {
			continue
		}
		for _, instance := range c.batch.InstancesOnPage(request.ContractID, page.Index) {
			byURL, ok := observed[instance.ContentHash]
			if !ok {
				byURL = make(map[string]bool)
				observed[instance.ContentHash] = byURL
			}
			byURL[url] = byURL[url] || page.Holds(instance.PositionInPage)
		}
	}
}

// PrioritizedAttachmentRequests builds one request per unresolved content
// hash, rarest first. Content nobody is known to hold still gets a request
// with no sources
func (c *AttachmentsBatchStateContext) PrioritizedAttachmentRequests() *AttachmentRequestQueue {
	queue := NewAttachmentRequestQueue()
	if c.batch == nil {
		return queue
	}
	seen := make(map[attachment.Hash160]struct{})
	for _, instance := range c.batch.UnresolvedInstances() {
		if _, ok := seen[instance.ContentHash]; ok {
			continue
		}
		seen[instance.ContentHash] = struct{}{}
		sources := make(map[string]ReliabilityReport)
		for url := range c.availability[instance.ContentHash] {
			if report, ok := c.peers[url]; ok {
				sources[url] = report
			}
		}
		queue.Push(
			&AttachmentRequest{
				ContentHash: instance.ContentHash,
				ContractID:  instance.ContractID,
				Sources:     sources,
			},
		)
	}
	return queue
}

func copyPeers(peers map[string]ReliabilityReport) map[string]ReliabilityReport {
	if peers == nil {
		return make(map[string]ReliabilityReport)
	}
	return maps.Clone(peers)
}

// cloneAvailability deep copies the holder sets so that merging into the copy
// leaves the source context untouched
func cloneAvailability(
	src map[attachment.Hash160]map[string]struct{},
) (map[attachment.Hash160]map[string]struct{}, error) {
	ret := make(map[attachment.Hash160]map[string]struct{}, len(src))
	if len(src) == 0 {
		return ret, nil
	}
	if err := copier.CopyWithOption(&ret, src, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy attachment availability: %w", err)
	}
	return ret, nil
}
