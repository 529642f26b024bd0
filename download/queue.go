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
	"container/heap"
)

// PriorityQueue pops the item that compares highest first. It is not safe for
// concurrent use
type PriorityQueue[T any] struct {
	items *itemHeap[T]
}

func NewPriorityQueue[T any](compare func(a, b T) int) *PriorityQueue[T] {
	return &PriorityQueue[T]{
		items: &itemHeap[T]{compare: compare},
	}
}

func (q *PriorityQueue[T]) Push(item T) {
	heap.Push(q.items, item)
}

// Pop removes and returns the highest priority item
func (q *PriorityQueue[T]) Pop() (T, bool) {
	if q.items.Len() == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(q.items).(T), true
}

// Peek returns the highest priority item without removing it
func (q *PriorityQueue[T]) Peek() (T, bool) {
	if q.items.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.items.entries[0], true
}

func (q *PriorityQueue[T]) Len() int {
	return q.items.Len()
}

// Drain pops every item in priority order
func (q *PriorityQueue[T]) Drain() []T {
	ret := make([]T, 0, q.items.Len())
	for q.items.Len() > 0 {
		ret = append(ret, heap.Pop(q.items).(T))
	}
	return ret
}

type (
	BatchQueue             = PriorityQueue[*AttachmentsBatch]
	InventoryRequestQueue  = PriorityQueue[*AttachmentsInventoryRequest]
	AttachmentRequestQueue = PriorityQueue[*AttachmentRequest]
)

func NewBatchQueue() *BatchQueue {
	return NewPriorityQueue(CompareBatches)
}

func NewInventoryRequestQueue() *InventoryRequestQueue {
	return NewPriorityQueue(CompareInventoryRequests)
}

func NewAttachmentRequestQueue() *AttachmentRequestQueue {
	return NewPriorityQueue(CompareAttachmentRequests)
}

// itemHeap is a max-heap over compare. Implements container/heap.Interface
type itemHeap[T any] struct {
	entries []T
	compare func(a, b T) int
}

func (h *itemHeap[T]) Len() int           { return len(h.entries) }
func (h *itemHeap[T]) Less(i, j int) bool { return h.compare(h.entries[i], h.entries[j]) > 0 }
func (h *itemHeap[T]) Swap(i, j int)      { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }
func (h *itemHeap[T]) Push(x any)         { h.entries = append(h.entries, x.(T)) }
func (h *itemHeap[T]) Pop() any {
	old := h.entries
	n := len(old)
	entry := old[n-1]
	var zero T
	old[n-1] = zero
	h.entries = old[:n-1]
	return entry
}
