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

// Package peer maintains the process-wide table of peer reliability reports
package peer

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/blinklabs-io/atlas/download"
)

// Store persists reliability reports across restarts
type Store interface {
	LoadReports() (map[string]download.ReliabilityReport, error)
	SaveReport(url string, report download.ReliabilityReport) error
	DeleteReport(url string) error
	Close() error
}

type peerStats struct {
	report    download.ReliabilityReport
	firstSeen time.Time
}

// Tracker is the shared table of peer reliability reports. All updates to a
// peer go through the tracker, which serializes them
type Tracker struct {
	peers      map[string]*peerStats
	peersMutex sync.Mutex
	store      Store
	logger     *slog.Logger
}

// TrackerOptionFunc is a type that represents functions that modify the Tracker config
type TrackerOptionFunc func(*Tracker)

// WithStore specifies a Store used to load and persist reports
func WithStore(store Store) TrackerOptionFunc {
	return func(t *Tracker) {
		t.store = store
	}
}

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) TrackerOptionFunc {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker returns a Tracker with the specified options. When a Store is
// provided, its reports are loaded
func NewTracker(opts ...TrackerOptionFunc) (*Tracker, error) {
	t := &Tracker{
		peers: make(map[string]*peerStats),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger = t.logger.With("component", "atlas", "subsystem", "peer-tracker")
	if t.store != nil {
		reports, err := t.store.LoadReports()
		if err != nil {
			return nil, fmt.Errorf("load peer reports: %w", err)
		}
		now := time.Now()
		for url, report := range reports {
			t.peers[url] = &peerStats{
				report:    report,
				firstSeen: now,
			}
		}
		t.logger.Debug(
			"loaded peer reports",
			"count", len(reports),
		)
	}
	return t, nil
}

// AddPeer starts tracking a peer with an empty report. It has no effect if the
// peer is already tracked
func (t *Tracker) AddPeer(url string) {
	t.AddPeerWithReport(url, download.ReliabilityReport{})
}

// AddPeerWithReport starts tracking a peer with the given report. It has no
// effect if the peer is already tracked
func (t *Tracker) AddPeerWithReport(url string, report download.ReliabilityReport) {
	t.peersMutex.Lock()
	defer t.peersMutex.Unlock()
	if _, ok := t.peers[url]; ok {
		return
	}
	t.peers[url] = &peerStats{
		report:    report,
		firstSeen: time.Now(),
	}
	t.persistLocked(url, report)
}

// RemovePeer stops tracking a peer
func (t *Tracker) RemovePeer(url string) {
	t.peersMutex.Lock()
	defer t.peersMutex.Unlock()
	if _, ok := t.peers[url]; !ok {
		return
	}
	delete(t.peers, url)
	if t.store != nil {
		if err := t.store.DeleteReport(url); err != nil {
			t.logger.Error(
				"failed to delete peer report",
				"peer", url,
				"error", err,
			)
		}
	}
}

// RecordSuccess counts a successful request to the peer. It returns false if
// the peer is not tracked
func (t *Tracker) RecordSuccess(url string) bool {
	return t.update(url, download.ReliabilityReport.RecordSuccess)
}

// RecordFailure counts a failed request to the peer. It returns false if the
// peer is not tracked
func (t *Tracker) RecordFailure(url string) bool {
	return t.update(url, download.ReliabilityReport.RecordFailure)
}

func (t *Tracker) update(
	url string,
	fn func(download.ReliabilityReport) download.ReliabilityReport,
) bool {
	t.peersMutex.Lock()
	defer t.peersMutex.Unlock()
	stats, ok := t.peers[url]
	if !ok {
		t.logger.Warn(
			"outcome recorded for peer not in tracker",
			"peer", url,
		)
		return false
	}
	stats.report = fn(stats.report)
	t.persistLocked(url, stats.report)
	return true
}

func (t *Tracker) persistLocked(url string, report download.ReliabilityReport) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveReport(url, report); err != nil {
		t.logger.Error(
			"failed to save peer report",
			"peer", url,
			"error", err,
		)
	}
}

// Report returns the current report of the peer
func (t *Tracker) Report(url string) (download.ReliabilityReport, bool) {
	t.peersMutex.Lock()
	defer t.peersMutex.Unlock()
	stats, ok := t.peers[url]
	if !ok {
		return download.ReliabilityReport{}, false
	}
	return stats.report, true
}

// Snapshot returns a copy of every tracked report
func (t *Tracker) Snapshot() map[string]download.ReliabilityReport {
	t.peersMutex.Lock()
	defer t.peersMutex.Unlock()
	ret := make(map[string]download.ReliabilityReport, len(t.peers))
	for url, stats := range t.peers {
		ret[url] = stats.report
	}
	return ret
}

// Peers returns the tracked peer URLs, most reliable first. Peers with equal
// reports are ordered by how long they have been tracked
func (t *Tracker) Peers() []string {
	t.peersMutex.Lock()
	defer t.peersMutex.Unlock()
	ret := make([]string, 0, len(t.peers))
	for url := range t.peers {
		ret = append(ret, url)
	}
	slices.SortFunc(ret, func(a, b string) int {
		pa := t.peers[a]
		pb := t.peers[b]
		if c := pb.report.Compare(pa.report); c != 0 {
			return c
		}
		if c := pa.firstSeen.Compare(pb.firstSeen); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ret
}

func (t *Tracker) Len() int {
	t.peersMutex.Lock()
	defer t.peersMutex.Unlock()
	return len(t.peers)
}

// Close closes the Store, if any
func (t *Tracker) Close() error {
	if t.store == nil {
		return nil
	}
	return t.store.Close()
}
