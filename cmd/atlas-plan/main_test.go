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
package main

import (
	"bytes"
	"encoding/hex"
	"log/slog"
	"strings"
	"testing"

	"github.com/blinklabs-io/atlas/attachment"
	"github.com/blinklabs-io/atlas/download"
	"github.com/blinklabs-io/atlas/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedValue(t *testing.T, seed int, pageIndex uint32, positionInPage uint32) string {
	t.Helper()
	hash := attachment.Hash160FromData(test.AttachmentContent(seed))
	data, err := attachment.NewAttachmentValue(positionInPage, pageIndex, hash.Bytes(), nil)
	require.NoError(t, err)
	return hex.EncodeToString(data)
}

func TestLoadInstances(t *testing.T) {
	input := strings.Join(
		[]string{
			"# first block",
			encodedValue(t, 0, 1, 0),
			"",
			"0x" + encodedValue(t, 1, 1, 1),
		},
		"\n",
	)
	instances, err := loadInstances(
		slog.New(slog.DiscardHandler),
		strings.NewReader(input),
		attachment.TransientContractIdentifier(),
		attachment.ConsensusHash{},
		attachment.BlockHeaderHash{},
		42,
	)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, uint32(1), instances[1].PositionInPage)
	assert.Equal(t, uint64(42), instances[0].BlockHeight)
	assert.Equal(
		t,
		attachment.Hash160FromData(test.AttachmentContent(1)),
		instances[1].ContentHash,
	)
}

func TestLoadInstancesSkipsInvalid(t *testing.T) {
	input := strings.Join(
		[]string{
			encodedValue(t, 0, 1, 0),
			"zz",
			"a0",
			encodedValue(t, 2, 2, 0),
		},
		"\n",
	)
	var logOutput bytes.Buffer
	instances, err := loadInstances(
		slog.New(slog.NewTextHandler(&logOutput, nil)),
		strings.NewReader(input),
		attachment.TransientContractIdentifier(),
		attachment.ConsensusHash{},
		attachment.BlockHeaderHash{},
		1,
	)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, attachment.Hash160FromData(test.AttachmentContent(0)), instances[0].ContentHash)
	assert.Equal(t, attachment.Hash160FromData(test.AttachmentContent(2)), instances[1].ContentHash)
	logged := logOutput.String()
	assert.Equal(t, 2, strings.Count(logged, "skipping attachment value"))
	assert.Contains(t, logged, "line=2")
	assert.Contains(t, logged, "line=3")
}

func TestPrintPlan(t *testing.T) {
	peers := map[string]download.ReliabilityReport{
		test.PeerURL(20443): download.NewReliabilityReport(2, 2),
		test.PeerURL(30443): download.NewReliabilityReport(3, 3),
	}
	stateCtx := download.NewAttachmentsBatchStateContext(
		test.NewBatch(2, 10),
		peers,
		download.NewConnectionOptions(),
	)

	var out bytes.Buffer
	require.NoError(t, printPlan(&out, stateCtx, false))
	plan := out.String()
	assert.Contains(t, plan, "inventory requests: 2")
	assert.Contains(t, plan, "1. http://localhost:30443/v2/attachments/inv?pages_indexes=1,2")
	assert.Contains(t, plan, "2. http://localhost:20443/v2/attachments/inv?pages_indexes=1,2")
	assert.Equal(t, 2, strings.Count(plan, "deferred (no known source)"))

	out.Reset()
	require.NoError(t, printPlan(&out, stateCtx, true))
	plan = out.String()
	assert.NotContains(t, plan, "deferred")
	assert.Contains(t, plan, "from http://localhost:30443, http://localhost:20443")
}
