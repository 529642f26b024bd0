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
	"math/bits"
)

// ReliabilityReport holds the request outcome counters for a peer
type ReliabilityReport struct {
	RequestsSent    uint32 `cbor:"0,keyasint"`
	RequestsSuccess uint32 `cbor:"1,keyasint"`
}

func NewReliabilityReport(requestsSent uint32, requestsSuccess uint32) ReliabilityReport {
	return ReliabilityReport{
		RequestsSent:    requestsSent,
		RequestsSuccess: requestsSuccess,
	}
}

// Score returns the Laplace-smoothed success ratio (successes+1)/(attempts+2).
// A peer without history scores 0.5
func (r ReliabilityReport) Score() float64 {
	num, den := r.scoreFraction()
	return float64(num) / float64(den)
}

func (r ReliabilityReport) scoreFraction() (uint64, uint64) {
	return uint64(r.RequestsSuccess) + 1, uint64(r.RequestsSent) + 2
}

// Compare returns a positive value when r ranks ahead of other, a negative
// value when other ranks ahead, and zero when they are interchangeable.
// Scores are compared as exact fractions; equal scores favor the peer with
// more requests sent
func (r ReliabilityReport) Compare(other ReliabilityReport) int {
	rNum, rDen := r.scoreFraction()
	oNum, oDen := other.scoreFraction()
	// Cross-multiplied counters can exceed 64 bits at the uint32 extremes
	left := mulWide(rNum, oDen)
	right := mulWide(oNum, rDen)
	if ret := left.cmp(right); ret != 0 {
		return ret
	}
	return cmp.Compare(r.RequestsSent, other.RequestsSent)
}

// RecordSuccess returns a copy of the report with one more successful request
func (r ReliabilityReport) RecordSuccess() ReliabilityReport {
	return ReliabilityReport{
		RequestsSent:    saturatingInc(r.RequestsSent),
		RequestsSuccess: saturatingInc(r.RequestsSuccess),
	}
}

// RecordFailure returns a copy of the report with one more failed request
func (r ReliabilityReport) RecordFailure() ReliabilityReport {
	return ReliabilityReport{
		RequestsSent:    saturatingInc(r.RequestsSent),
		RequestsSuccess: r.RequestsSuccess,
	}
}

func (r ReliabilityReport) String() string {
	return fmt.Sprintf(
		"ReliabilityReport{RequestsSent: %d, RequestsSuccess: %d, Score: %.3f}",
		r.RequestsSent,
		r.RequestsSuccess,
		r.Score(),
	)
}

func saturatingInc(v uint32) uint32 {
	if v == ^uint32(0) {
		return v
	}
	return v + 1
}

func mulWide(a, b uint64) wide {
	hi, lo := bits.Mul64(a, b)
	return wide{hi: hi, lo: lo}
}

// wide is a 128-bit unsigned product
type wide struct {
	hi, lo uint64
}

func (w wide) cmp(other wide) int {
	if ret := cmp.Compare(w.hi, other.hi); ret != 0 {
		return ret
	}
	return cmp.Compare(w.lo, other.lo)
}
