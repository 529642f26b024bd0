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

// Package download implements the prioritization core used to fetch
// attachments from unreliable peers.
//
// # Key Files
//
//   - reliability.go: ReliabilityReport and the peer ordering
//   - batch.go: AttachmentsBatch, page bookkeeping and the batch ordering
//   - inventory.go: AttachmentsInventoryRequest and inventory responses
//   - request.go: AttachmentRequest and the rarity-first ordering
//   - queue.go: priority queues over the three orderings
//   - context.go: AttachmentsBatchStateContext, which turns a batch and a peer
//     table into request queues and merges inventory responses
//
// # Flow
//
//  1. A batch is assembled from AttachmentInstance values with TrackAttachment
//  2. NewAttachmentsBatchStateContext pairs it with a snapshot of the peer table
//  3. PrioritizedInventoryRequests yields one request per peer and page chunk
//  4. The transport fills a BatchedRequestsResult with the responses
//  5. ExtendWithInventories returns a new context with per-attachment availability
//  6. PrioritizedAttachmentRequests yields the rarest attachments first
//  7. ResolveAttachment is called on the batch as content arrives
//
// Everything in this package is synchronous and free of shared mutable state.
// Concurrency lives in the downloader package.
package download
