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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsStats(t *testing.T) {
	m := NewMetrics()
	m.RecordRound()
	m.RecordInventoryRequest(nil)
	m.RecordInventoryRequest(errors.New("timeout"))
	m.RecordAttachmentRequest(nil)
	m.RecordAttachmentDeferred()
	m.RecordAttachmentResolved()
	m.RecordBatchCompleted()
	m.RecordBatchAbandoned()
	m.RecordPeerUnresolved()
	m.UpdateQueueDepth(5)
	m.UpdateQueueDepth(2)
	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Rounds)
	assert.Equal(t, uint64(2), stats.InventoryRequestsSent)
	assert.Equal(t, uint64(1), stats.InventoryRequestsFailed)
	assert.Equal(t, uint64(1), stats.AttachmentRequestsSent)
	assert.Equal(t, uint64(0), stats.AttachmentRequestsFailed)
	assert.Equal(t, uint64(1), stats.AttachmentsDeferred)
	assert.Equal(t, uint64(1), stats.AttachmentsResolved)
	assert.Equal(t, uint64(1), stats.BatchesCompleted)
	assert.Equal(t, uint64(1), stats.BatchesAbandoned)
	assert.Equal(t, uint64(1), stats.PeersUnresolved)
	assert.Equal(t, 2, stats.CurrentQueueDepth)
	assert.Equal(t, 5, stats.PeakQueueDepth)
	assert.False(t, stats.LastResolvedTime.Before(stats.StartTime))
}
