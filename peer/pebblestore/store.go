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

// Package pebblestore persists peer reliability reports in a Pebble database.
// Each report is stored CBOR encoded under the key "peer/<url>"
package pebblestore

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/atlas/cbor"
	"github.com/blinklabs-io/atlas/download"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

const keyPrefix = "peer/"

// Store implements peer.Store
type Store struct {
	db       *pebble.DB
	path     string
	inMemory bool
	sync     bool
}

// StoreOptionFunc is a type that represents functions that modify the Store config
type StoreOptionFunc func(*Store)

// WithInMemory keeps the database in memory. The path is ignored
func WithInMemory() StoreOptionFunc {
	return func(s *Store) {
		s.inMemory = true
	}
}

// WithSync makes every write wait for the WAL to reach disk
func WithSync(sync bool) StoreOptionFunc {
	return func(s *Store) {
		s.sync = sync
	}
}

// New opens or creates the database at path
func New(path string, opts ...StoreOptionFunc) (*Store, error) {
	s := &Store{
		path: path,
	}
	for _, opt := range opts {
		opt(s)
	}
	pebbleOpts := &pebble.Options{
		// Peer tables are small
		Cache:        pebble.NewCache(8 << 20),
		MemTableSize: 4 << 20,
	}
	defer pebbleOpts.Cache.Unref()
	if s.inMemory {
		pebbleOpts.FS = vfs.NewMem()
		if path == "" {
			path = "peers"
		}
	}
	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("open peer store: %w", err)
	}
	s.db = db
	return s, nil
}

func (s *Store) writeOptions() *pebble.WriteOptions {
	if s.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// LoadReports returns every stored report keyed by peer URL
func (s *Store) LoadReports() (map[string]download.ReliabilityReport, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: prefixUpperBound([]byte(keyPrefix)),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	ret := make(map[string]download.ReliabilityReport)
	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}
		url := string(iter.Key()[len(keyPrefix):])
		var report download.ReliabilityReport
		if _, err := cbor.Decode(value, &report); err != nil {
			return nil, fmt.Errorf("decode report for peer %s: %w", url, err)
		}
		ret[url] = report
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadReport returns the stored report of a single peer
func (s *Store) LoadReport(url string) (download.ReliabilityReport, bool, error) {
	value, closer, err := s.db.Get(reportKey(url))
	if errors.Is(err, pebble.ErrNotFound) {
		return download.ReliabilityReport{}, false, nil
	}
	if err != nil {
		return download.ReliabilityReport{}, false, err
	}
	defer closer.Close()
	var report download.ReliabilityReport
	if _, err := cbor.Decode(value, &report); err != nil {
		return download.ReliabilityReport{}, false, fmt.Errorf("decode report for peer %s: %w", url, err)
	}
	return report, true, nil
}

func (s *Store) SaveReport(url string, report download.ReliabilityReport) error {
	data, err := cbor.Encode(report)
	if err != nil {
		return err
	}
	return s.db.Set(reportKey(url), data, s.writeOptions())
}

func (s *Store) DeleteReport(url string) error {
	return s.db.Delete(reportKey(url), s.writeOptions())
}

// Close flushes the WAL and closes the database
func (s *Store) Close() error {
	if err := s.db.LogData(nil, pebble.Sync); err != nil {
		return err
	}
	return s.db.Close()
}

func reportKey(url string) []byte {
	return []byte(keyPrefix + url)
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}
