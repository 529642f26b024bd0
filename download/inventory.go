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
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/blinklabs-io/atlas/attachment"
	"github.com/blinklabs-io/atlas/cbor"
)

const AttachmentsInventoryPath = "/v2/attachments/inv"

// AttachmentsInventoryRequest asks a single peer which slots of the given
// pages it holds
type AttachmentsInventoryRequest struct {
	URL               string
	BlockHeight       uint64
	Pages             []uint32
	ContractID        attachment.ContractIdentifier
	ConsensusHash     attachment.ConsensusHash
	BlockHeaderHash   attachment.BlockHeaderHash
	ReliabilityReport ReliabilityReport
}

// RequestPath returns the path and query used to fetch the inventory
func (r *AttachmentsInventoryRequest) RequestPath() string {
	pages := make([]string, 0, len(r.Pages))
	for _, page := range r.Pages {
		pages = append(pages, strconv.FormatUint(uint64(page), 10))
	}
	return AttachmentsInventoryPath + "?pages_indexes=" + strings.Join(pages, ",")
}

// Key identifies the request within a round
func (r *AttachmentsInventoryRequest) Key() string {
	return r.URL + "|" + r.ContractID.String() + "|" + r.RequestPath()
}

func (r *AttachmentsInventoryRequest) String() string {
	return fmt.Sprintf(
		"AttachmentsInventoryRequest{URL: %s, ContractID: %s, Pages: %v, BlockHeight: %d, Report: %s}",
		r.URL,
		r.ContractID,
		r.Pages,
		r.BlockHeight,
		r.ReliabilityReport,
	)
}

// hasPage returns true if the page index is part of the request
func (r *AttachmentsInventoryRequest) hasPage(pageIndex uint32) bool {
	return slices.Contains(r.Pages, pageIndex)
}

// CompareInventoryRequests orders inventory requests for dispatch. It returns
// a positive value when a should be sent before b. Requests to more reliable
// peers go first. URL, contract and pages only make the order total
func CompareInventoryRequests(a, b *AttachmentsInventoryRequest) int {
	if ret := a.ReliabilityReport.Compare(b.ReliabilityReport); ret != 0 {
		return ret
	}
	if ret := cmp.Compare(b.URL, a.URL); ret != 0 {
		return ret
	}
	if ret := b.ContractID.Compare(a.ContractID); ret != 0 {
		return ret
	}
	return slices.Compare(b.Pages, a.Pages)
}

// AttachmentPage is the presence vector a peer reports for one page. A nonzero
// byte at index i means the peer holds the attachment at position i
type AttachmentPage struct {
	cbor.StructAsArray
	Index     uint32
	Inventory []byte
}

// Holds returns true if the page marks the position as present
func (p AttachmentPage) Holds(positionInPage uint32) bool {
	if uint64(positionInPage) >= uint64(len(p.Inventory)) {
		return false
	}
	return p.Inventory[positionInPage] != 0
}

// InventoryResponse is a decoded reply to an AttachmentsInventoryRequest
type InventoryResponse struct {
	cbor.StructAsArray
	BlockID attachment.BlockHeaderHash
	Pages   []AttachmentPage
}

// NewInventoryResponseFromCbor decodes a CBOR encoded inventory response
func NewInventoryResponseFromCbor(data []byte) (*InventoryResponse, error) {
	var ret InventoryResponse
	if _, err := cbor.Decode(data, &ret); err != nil {
		return nil, fmt.Errorf("decode inventory response: %w", err)
	}
	return &ret, nil
}
