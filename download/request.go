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

const AttachmentPathPrefix = "/v2/attachments/"

// AttachmentRequest asks for the content of one attachment. Sources maps the
// URL of every peer known to hold it to a snapshot of that peer's report
type AttachmentRequest struct {
	ContentHash attachment.Hash160
	ContractID  attachment.ContractIdentifier
	Sources     map[string]ReliabilityReport
}

// URL returns the best source, or an empty string when no source is known
func (r *AttachmentRequest) URL() string {
	url, _, ok := r.bestSource()
	if !ok {
		return ""
	}
	return url
}

// SortedSources returns the source URLs, best first
func (r *AttachmentRequest) SortedSources() []string {
	ret := make([]string, 0, len(r.Sources))
	for url := range r.Sources {
		ret = append(ret, url)
	}
	slices.SortFunc(ret, func(a, b string) int {
		return compareSources(b, r.Sources[b], a, r.Sources[a])
	})
	return ret
}

// RequestPath returns the path used to fetch the attachment content
func (r *AttachmentRequest) RequestPath() string {
	return AttachmentPathPrefix + r.ContentHash.String()
}

// Key identifies the request within a round
func (r *AttachmentRequest) Key() string {
	return r.ContentHash.String()
}

func (r *AttachmentRequest) String() string {
	return fmt.Sprintf(
		"AttachmentRequest{ContentHash: %s, ContractID: %s, Sources: %d}",
		r.ContentHash,
		r.ContractID,
		len(r.Sources),
	)
}

func (r *AttachmentRequest) bestSource() (string, ReliabilityReport, bool) {
	var bestURL string
	var bestReport ReliabilityReport
	found := false
	for url, report := range r.Sources {
		if !found || compareSources(url, report, bestURL, bestReport) > 0 {
			bestURL = url
			bestReport = report
			found = true
		}
	}
	return bestURL, bestReport, found
}

// compareSources ranks a source ahead of another by report, then by URL
func compareSources(aURL string, a ReliabilityReport, bURL string, b ReliabilityReport) int {
	if ret := a.Compare(b); ret != 0 {
		return ret
	}
	return cmp.Compare(bURL, aURL)
}

// CompareAttachmentRequests orders attachment requests for dispatch. It
// returns a positive value when a should be sent before b. Rarer content goes
// first, then content whose best source is more reliable
func CompareAttachmentRequests(a, b *AttachmentRequest) int {
	if ret := cmp.Compare(len(b.Sources), len(a.Sources)); ret != 0 {
		return ret
	}
	_, aBest, aOk := a.bestSource()
	_, bBest, bOk := b.bestSource()
	if aOk && bOk {
		if ret := aBest.Compare(bBest); ret != 0 {
			return ret
		}
	}
	if ret := b.ContentHash.Compare(a.ContentHash); ret != 0 {
		return ret
	}
	return b.ContractID.Compare(a.ContractID)
}
