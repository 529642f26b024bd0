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

package downloader

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks downloader activity.
// Uses atomic counters for thread-safe operation.
type Metrics struct {
	rounds                   atomic.Uint64
	inventoryRequestsSent    atomic.Uint64
	inventoryRequestsFailed  atomic.Uint64
	attachmentRequestsSent   atomic.Uint64
	attachmentRequestsFailed atomic.Uint64
	attachmentsDeferred      atomic.Uint64
	attachmentsResolved      atomic.Uint64
	batchesCompleted         atomic.Uint64
	batchesAbandoned         atomic.Uint64
	peersUnresolved          atomic.Uint64

	// Queue tracking (requires mutex)
	mu                sync.RWMutex
	currentQueueDepth int
	peakQueueDepth    int

	lastResolvedTime time.Time
	startTime        time.Time
}

// Stats is a snapshot of Metrics
type Stats struct {
	Rounds                   uint64
	InventoryRequestsSent    uint64
	InventoryRequestsFailed  uint64
	AttachmentRequestsSent   uint64
	AttachmentRequestsFailed uint64
	AttachmentsDeferred      uint64
	AttachmentsResolved      uint64
	BatchesCompleted         uint64
	BatchesAbandoned         uint64
	PeersUnresolved          uint64
	CurrentQueueDepth        int
	PeakQueueDepth           int
	LastResolvedTime         time.Time
	StartTime                time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

func (m *Metrics) RecordRound() {
	m.rounds.Add(1)
}

// RecordInventoryRequest records the outcome of an inventory request
func (m *Metrics) RecordInventoryRequest(err error) {
	m.inventoryRequestsSent.Add(1)
	if err != nil {
		m.inventoryRequestsFailed.Add(1)
	}
}

// RecordAttachmentRequest records the outcome of an attachment request
func (m *Metrics) RecordAttachmentRequest(err error) {
	m.attachmentRequestsSent.Add(1)
	if err != nil {
		m.attachmentRequestsFailed.Add(1)
	}
}

func (m *Metrics) RecordAttachmentDeferred() {
	m.attachmentsDeferred.Add(1)
}

func (m *Metrics) RecordAttachmentResolved() {
	m.attachmentsResolved.Add(1)
	m.mu.Lock()
	m.lastResolvedTime = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) RecordBatchCompleted() {
	m.batchesCompleted.Add(1)
}

func (m *Metrics) RecordBatchAbandoned() {
	m.batchesAbandoned.Add(1)
}

func (m *Metrics) RecordPeerUnresolved() {
	m.peersUnresolved.Add(1)
}

// UpdateQueueDepth updates the batch queue depth tracking
func (m *Metrics) UpdateQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentQueueDepth = depth
	if depth > m.peakQueueDepth {
		m.peakQueueDepth = depth
	}
}

// Stats returns a snapshot of the current metrics
func (m *Metrics) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Rounds:                   m.rounds.Load(),
		InventoryRequestsSent:    m.inventoryRequestsSent.Load(),
		InventoryRequestsFailed:  m.inventoryRequestsFailed.Load(),
		AttachmentRequestsSent:   m.attachmentRequestsSent.Load(),
		AttachmentRequestsFailed: m.attachmentRequestsFailed.Load(),
		AttachmentsDeferred:      m.attachmentsDeferred.Load(),
		AttachmentsResolved:      m.attachmentsResolved.Load(),
		BatchesCompleted:         m.batchesCompleted.Load(),
		BatchesAbandoned:         m.batchesAbandoned.Load(),
		PeersUnresolved:          m.peersUnresolved.Load(),
		CurrentQueueDepth:        m.currentQueueDepth,
		PeakQueueDepth:           m.peakQueueDepth,
		LastResolvedTime:         m.lastResolvedTime,
		StartTime:                m.startTime,
	}
}
