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

package download_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/blinklabs-io/atlas/download"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReliabilityReportScore(t *testing.T) {
	testDefs := []struct {
		sent     uint32
		success  uint32
		expected float64
	}{
		{sent: 0, success: 0, expected: 0.5},
		{sent: 2, success: 1, expected: 0.5},
		{sent: 2, success: 2, expected: 0.75},
		{sent: 4, success: 4, expected: 5.0 / 6.0},
		{sent: 1, success: 0, expected: 1.0 / 3.0},
		{sent: 10, success: 0, expected: 1.0 / 12.0},
	}
	for _, testDef := range testDefs {
		report := download.NewReliabilityReport(testDef.sent, testDef.success)
		assert.InDelta(t, testDef.expected, report.Score(), 1e-9, "report %s", report)
	}
}

func TestReliabilityReportScoreBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for range 1000 {
		sent := rng.Uint32()
		success := uint32(0)
		if sent > 0 {
			success = uint32(rng.Int63n(int64(sent) + 1))
		}
		score := download.NewReliabilityReport(sent, success).Score()
		assert.Greater(t, score, 0.0)
		assert.Less(t, score, 1.0)
	}
	// Extremes
	assert.Less(t, download.NewReliabilityReport(math.MaxUint32, math.MaxUint32).Score(), 1.0)
	assert.Greater(t, download.NewReliabilityReport(math.MaxUint32, 0).Score(), 0.0)
}

func TestReliabilityReportScoreMonotonic(t *testing.T) {
	for sent := uint32(0); sent < 50; sent++ {
		prev := download.NewReliabilityReport(sent, 0)
		for success := uint32(1); success <= sent; success++ {
			next := download.NewReliabilityReport(sent, success)
			assert.GreaterOrEqual(t, next.Score(), prev.Score())
			assert.Positive(t, next.Compare(prev))
			prev = next
		}
	}
}

func TestReliabilityReportCompareTieBreak(t *testing.T) {
	// Equal fractions: 1/2 == 2/4
	less := download.NewReliabilityReport(0, 0)
	more := download.NewReliabilityReport(2, 1)
	assert.Equal(t, less.Score(), more.Score())
	assert.Positive(t, more.Compare(less))
	assert.Negative(t, less.Compare(more))
	assert.Zero(t, more.Compare(download.NewReliabilityReport(2, 1)))
}

func TestReliabilityReportCompareExtremes(t *testing.T) {
	// Scores that differ by less than float64 precision still compare exactly
	a := download.NewReliabilityReport(math.MaxUint32, math.MaxUint32-1)
	b := download.NewReliabilityReport(math.MaxUint32-1, math.MaxUint32-2)
	assert.Positive(t, a.Compare(b))
	assert.Negative(t, b.Compare(a))
}

func TestReliabilityReportCompareProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randomReport := func() download.ReliabilityReport {
		sent := uint32(rng.Intn(6))
		return download.NewReliabilityReport(sent, uint32(rng.Intn(int(sent)+1)))
	}
	for range 2000 {
		a, b, c := randomReport(), randomReport(), randomReport()
		// Antisymmetry
		assert.Equal(t, sign(a.Compare(b)), -sign(b.Compare(a)))
		// Transitivity
		if a.Compare(b) >= 0 && b.Compare(c) >= 0 {
			assert.GreaterOrEqual(t, a.Compare(c), 0, "%s %s %s", a, b, c)
		}
	}
}

func TestReliabilityReportRecord(t *testing.T) {
	report := download.NewReliabilityReport(0, 0)
	report = report.RecordSuccess()
	report = report.RecordFailure()
	require.Equal(t, download.NewReliabilityReport(2, 1), report)
	saturated := download.NewReliabilityReport(math.MaxUint32, math.MaxUint32).RecordSuccess()
	assert.Equal(t, uint32(math.MaxUint32), saturated.RequestsSent)
	assert.Equal(t, uint32(math.MaxUint32), saturated.RequestsSuccess)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
