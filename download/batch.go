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

	"github.com/blinklabs-io/atlas/attachment"
)

// AttachmentsBatch tracks a cohort of attachment instances discovered
// together, along with their resolution status and retry history.
// A batch is owned by a single round at a time and is not safe for
// concurrent use
type AttachmentsBatch struct {
	instances       map[attachment.ContractIdentifier]map[attachment.Hash160]*attachment.AttachmentInstance
	resolved        map[attachment.Hash160]struct{}
	retryCount      uint32
	blockHeight     uint64
	consensusHash   attachment.ConsensusHash
	blockHeaderHash attachment.BlockHeaderHash
	tracked         bool
}

func NewAttachmentsBatch() *AttachmentsBatch {
	return &AttachmentsBatch{
		instances: make(map[attachment.ContractIdentifier]map[attachment.Hash160]*attachment.AttachmentInstance),
		resolved:  make(map[attachment.Hash160]struct{}),
	}
}

// TrackAttachment registers the instance under its contract, page and
// position. Instances are keyed by content hash within a contract, since one
// download of the content satisfies every slot holding it. Tracking a hash
// that is already tracked for the same contract keeps the first slot and
// drops the new one, so the page of the dropped slot is never requested for
// that hash. Tracking a hash that was already resolved has no effect
func (b *AttachmentsBatch) TrackAttachment(instance *attachment.AttachmentInstance) {
	if instance == nil {
		return
	}
	if _, ok := b.resolved[instance.ContentHash]; ok {
		return
	}
	byHash, ok := b.instances[instance.ContractID]
	if !ok {
		byHash = make(map[attachment.Hash160]*attachment.AttachmentInstance)
		b.instances[instance.ContractID] = byHash
	}
	if _, ok := byHash[instance.ContentHash]; ok {
		return
	}
	tmp := *instance
	byHash[instance.ContentHash] = &tmp
	if !b.tracked {
		b.tracked = true
		b.blockHeight = instance.BlockHeight
		b.consensusHash = instance.ConsensusHash
		b.blockHeaderHash = instance.BlockHeaderHash
	} else if instance.BlockHeight < b.blockHeight {
		b.blockHeight = instance.BlockHeight
	}
}

// ResolveAttachment marks the content hash as resolved across all contracts.
// It returns true if any tracked instance was resolved by this call
func (b *AttachmentsBatch) ResolveAttachment(hash attachment.Hash160) bool {
	found := false
	for contractID, byHash := range b.instances {
		if _, ok := byHash[hash]; !ok {
			continue
		}
		found = true
		delete(byHash, hash)
		if len(byHash) == 0 {
			delete(b.instances, contractID)
		}
	}
	if found {
		b.resolved[hash] = struct{}{}
	}
	return found
}

// IsResolved returns true if the content hash was resolved in this batch
func (b *AttachmentsBatch) IsResolved(hash attachment.Hash160) bool {
	_, ok := b.resolved[hash]
	return ok
}

// AttachmentsInstancesCount returns the number of distinct unresolved content hashes
func (b *AttachmentsBatch) AttachmentsInstancesCount() int {
	if len(b.instances) == 1 {
		for _, byHash := range b.instances {
			return len(byHash)
		}
	}
	seen := make(map[attachment.Hash160]struct{})
	for _, byHash := range b.instances {
		for hash := range byHash {
			seen[hash] = struct{}{}
		}
	}
	return len(seen)
}

// ResolvedCount returns the number of content hashes resolved so far
func (b *AttachmentsBatch) ResolvedCount() int {
	return len(b.resolved)
}

// HasFullySucceeded returns true when no unresolved instances remain
func (b *AttachmentsBatch) HasFullySucceeded() bool {
	return len(b.instances) == 0
}

// BumpRetryCount increments the retry counter
func (b *AttachmentsBatch) BumpRetryCount() {
	b.retryCount++
}

func (b *AttachmentsBatch) RetryCount() uint32 {
	return b.retryCount
}

// BlockHeight returns the oldest block height among the tracked instances
func (b *AttachmentsBatch) BlockHeight() uint64 {
	return b.blockHeight
}

// ConsensusHash returns the consensus hash of the cohort
func (b *AttachmentsBatch) ConsensusHash() attachment.ConsensusHash {
	return b.consensusHash
}

// BlockHeaderHash returns the block header hash of the cohort
func (b *AttachmentsBatch) BlockHeaderHash() attachment.BlockHeaderHash {
	return b.blockHeaderHash
}

// ContractIDs returns the contracts that still have unresolved instances, in
// ascending order
func (b *AttachmentsBatch) ContractIDs() []attachment.ContractIdentifier {
	ret := make([]attachment.ContractIdentifier, 0, len(b.instances))
	for contractID := range b.instances {
		ret = append(ret, contractID)
	}
	slices.SortFunc(ret, attachment.ContractIdentifier.Compare)
	return ret
}

// MissingPages returns the ascending page indexes of the contract that hold at
// least one unresolved instance
func (b *AttachmentsBatch) MissingPages(contractID attachment.ContractIdentifier) []uint32 {
	byHash, ok := b.instances[contractID]
	if !ok {
		return []uint32{}
	}
	pages := make(map[uint32]struct{})
	for _, instance := range byHash {
		pages[instance.PageIndex] = struct{}{}
	}
	ret := make([]uint32, 0, len(pages))
	for page := range pages {
		ret = append(ret, page)
	}
	slices.Sort(ret)
	return ret
}

// PaginatedMissingPages splits the missing pages of the contract into chunks
// of at most MaxAttachmentInvPagesPerRequest pages
func (b *AttachmentsBatch) PaginatedMissingPages(contractID attachment.ContractIdentifier) [][]uint32 {
	return b.PaginatedMissingPagesWithLimit(contractID, MaxAttachmentInvPagesPerRequest)
}

// PaginatedMissingPagesWithLimit splits the missing pages of the contract into
// chunks of at most limit pages. Ascending order is preserved within and
// across chunks
func (b *AttachmentsBatch) PaginatedMissingPagesWithLimit(
	contractID attachment.ContractIdentifier,
	limit int,
) [][]uint32 {
	if limit <= 0 {
		limit = MaxAttachmentInvPagesPerRequest
	}
	pages := b.MissingPages(contractID)
	ret := make([][]uint32, 0, (len(pages)+limit-1)/limit)
	for chunk := range slices.Chunk(pages, limit) {
		ret = append(ret, chunk)
	}
	return ret
}

// UnresolvedInstances returns the unresolved instances ordered by contract,
// page, position and content hash
func (b *AttachmentsBatch) UnresolvedInstances() []*attachment.AttachmentInstance {
	var ret []*attachment.AttachmentInstance
	for _, byHash := range b.instances {
		for _, instance := range byHash {
			ret = append(ret, instance)
		}
	}
	slices.SortFunc(ret, compareInstances)
	return ret
}

// InstancesOnPage returns the unresolved instances of the contract stored on
// the given page, ordered by position
func (b *AttachmentsBatch) InstancesOnPage(
	contractID attachment.ContractIdentifier,
	pageIndex uint32,
) []*attachment.AttachmentInstance {
	var ret []*attachment.AttachmentInstance
	for _, instance := range b.instances[contractID] {
		if instance.PageIndex == pageIndex {
			ret = append(ret, instance)
		}
	}
	slices.SortFunc(ret, compareInstances)
	return ret
}

// InstanceAt returns the unresolved instance stored at the given slot, if any
func (b *AttachmentsBatch) InstanceAt(
	contractID attachment.ContractIdentifier,
	pageIndex uint32,
	positionInPage uint32,
) (*attachment.AttachmentInstance, bool) {
	for _, instance := range b.instances[contractID] {
		if instance.PageIndex == pageIndex &&
			instance.PositionInPage == positionInPage {
			return instance, true
		}
	}
	return nil, false
}

func (b *AttachmentsBatch) String() string {
	return fmt.Sprintf(
		"AttachmentsBatch{Unresolved: %d, Resolved: %d, RetryCount: %d, BlockHeight: %d}",
		b.AttachmentsInstancesCount(),
		b.ResolvedCount(),
		b.retryCount,
		b.blockHeight,
	)
}

func compareInstances(a, b *attachment.AttachmentInstance) int {
	if ret := a.ContractID.Compare(b.ContractID); ret != 0 {
		return ret
	}
	if ret := cmp.Compare(a.PageIndex, b.PageIndex); ret != 0 {
		return ret
	}
	if ret := cmp.Compare(a.PositionInPage, b.PositionInPage); ret != 0 {
		return ret
	}
	return a.ContentHash.Compare(b.ContentHash)
}

// CompareBatches orders batches for download. It returns a positive value when
// a should be downloaded before b. The keys are, in order: fewer retries,
// more unresolved instances, older block height
func CompareBatches(a, b *AttachmentsBatch) int {
	if ret := cmp.Compare(b.retryCount, a.retryCount); ret != 0 {
		return ret
	}
	if ret := cmp.Compare(a.AttachmentsInstancesCount(), b.AttachmentsInstancesCount()); ret != 0 {
		return ret
	}
	return cmp.Compare(b.blockHeight, a.blockHeight)
}
