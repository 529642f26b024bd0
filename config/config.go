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
// Package config loads the YAML configuration of an attachment downloader
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/blinklabs-io/atlas/download"
	"github.com/blinklabs-io/atlas/downloader"
	"github.com/blinklabs-io/atlas/peer"
	"github.com/blinklabs-io/atlas/peer/pebblestore"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level configuration file
type Config struct {
	Peers      []PeerConfig     `yaml:"peers"`
	Connection ConnectionConfig `yaml:"connection"`
	Downloader DownloaderConfig `yaml:"downloader"`
	PeerStore  PeerStoreConfig  `yaml:"peer_store"`
}

// PeerConfig is a known peer with an optional initial reliability report
type PeerConfig struct {
	URL             string `yaml:"url"`
	RequestsSent    uint32 `yaml:"requests_sent"`
	RequestsSuccess uint32 `yaml:"requests_success"`
}

// ConnectionConfig maps to download.ConnectionOptions. Zero values keep the defaults
type ConnectionConfig struct {
	MaxInventoryPagesPerRequest int           `yaml:"max_inventory_pages_per_request"`
	MaxAttachmentsPerPage       int           `yaml:"max_attachments_per_page"`
	RequestTimeout              time.Duration `yaml:"request_timeout"`
	DNSTimeout                  time.Duration `yaml:"dns_timeout"`
	MaxConcurrentRequests       int           `yaml:"max_concurrent_requests"`
}

// DownloaderConfig maps to downloader options. Unset values keep the defaults
type DownloaderConfig struct {
	MaxRetries           *uint32        `yaml:"max_retries"`
	RetryBackoff         *time.Duration `yaml:"retry_backoff"`
	MaxConcurrentBatches int            `yaml:"max_concurrent_batches"`
	DNSCacheSize         *int           `yaml:"dns_cache_size"`
	DNSCacheTTL          time.Duration  `yaml:"dns_cache_ttl"`
}

// PeerStoreConfig selects where peer reliability reports are persisted. An
// empty path without in_memory disables persistence
type PeerStoreConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

func NewConfigFromFile(path string) (*Config, error) {
	dataFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer dataFile.Close()
	return NewConfigFromReader(dataFile)
}

func NewConfigFromReader(r io.Reader) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		// Empty document
		if !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the config for values that cannot be used
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Peers))
	for _, p := range c.Peers {
		u, err := url.Parse(p.URL)
		if err != nil {
			return fmt.Errorf("%w: peer %q: %w", ErrInvalidConfig, p.URL, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			return fmt.Errorf("%w: peer %q: expected an http(s) URL with a host", ErrInvalidConfig, p.URL)
		}
		if _, ok := seen[p.URL]; ok {
			return fmt.Errorf("%w: duplicate peer %q", ErrInvalidConfig, p.URL)
		}
		seen[p.URL] = struct{}{}
		if p.RequestsSuccess > p.RequestsSent {
			return fmt.Errorf(
				"%w: peer %q: requests_success %d exceeds requests_sent %d",
				ErrInvalidConfig,
				p.URL,
				p.RequestsSuccess,
				p.RequestsSent,
			)
		}
	}
	conn := c.Connection
	if conn.MaxInventoryPagesPerRequest < 0 || conn.MaxAttachmentsPerPage < 0 || conn.MaxConcurrentRequests < 0 {
		return fmt.Errorf("%w: connection limits must not be negative", ErrInvalidConfig)
	}
	if conn.RequestTimeout < 0 || conn.DNSTimeout < 0 {
		return fmt.Errorf("%w: connection timeouts must not be negative", ErrInvalidConfig)
	}
	dl := c.Downloader
	if dl.RetryBackoff != nil && *dl.RetryBackoff < 0 {
		return fmt.Errorf("%w: retry_backoff must not be negative", ErrInvalidConfig)
	}
	if dl.MaxConcurrentBatches < 0 {
		return fmt.Errorf("%w: max_concurrent_batches must not be negative", ErrInvalidConfig)
	}
	if dl.DNSCacheSize != nil && *dl.DNSCacheSize < 0 {
		return fmt.Errorf("%w: dns_cache_size must not be negative", ErrInvalidConfig)
	}
	if dl.DNSCacheTTL < 0 {
		return fmt.Errorf("%w: dns_cache_ttl must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ConnectionOptions returns the connection options with the configured values
// applied over the defaults
func (c *Config) ConnectionOptions() download.ConnectionOptions {
	return download.NewConnectionOptions(
		download.WithMaxInventoryPagesPerRequest(c.Connection.MaxInventoryPagesPerRequest),
		download.WithMaxAttachmentsPerPage(c.Connection.MaxAttachmentsPerPage),
		download.WithRequestTimeout(c.Connection.RequestTimeout),
		download.WithDNSTimeout(c.Connection.DNSTimeout),
		download.WithMaxConcurrentRequests(c.Connection.MaxConcurrentRequests),
	)
}

// DownloaderOptions returns the downloader options for the configured values
func (c *Config) DownloaderOptions() []downloader.OptionFunc {
	dl := c.Downloader
	ret := []downloader.OptionFunc{
		downloader.WithConnectionOptions(c.ConnectionOptions()),
		downloader.WithMaxConcurrentBatches(dl.MaxConcurrentBatches),
	}
	if dl.MaxRetries != nil {
		ret = append(ret, downloader.WithMaxRetries(*dl.MaxRetries))
	}
	if dl.RetryBackoff != nil {
		ret = append(ret, downloader.WithRetryBackoff(*dl.RetryBackoff))
	}
	if dl.DNSCacheSize != nil || dl.DNSCacheTTL > 0 {
		size := downloader.DefaultDNSCacheSize
		if dl.DNSCacheSize != nil {
			size = *dl.DNSCacheSize
		}
		ttl := dl.DNSCacheTTL
		if ttl == 0 {
			ttl = downloader.DefaultDNSCacheTTL
		}
		ret = append(ret, downloader.WithDNSCache(size, ttl))
	}
	return ret
}

// OpenPeerStore opens the configured peer store. It returns nil when
// persistence is disabled
func (c *Config) OpenPeerStore() (peer.Store, error) {
	var opts []pebblestore.StoreOptionFunc
	if c.PeerStore.InMemory {
		opts = append(opts, pebblestore.WithInMemory())
	} else if c.PeerStore.Path == "" {
		return nil, nil
	}
	store, err := pebblestore.New(c.PeerStore.Path, opts...)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// SeedTracker adds the configured peers to the tracker. Peers the tracker
// already knows, such as those loaded from a store, keep their reports
func (c *Config) SeedTracker(tracker *peer.Tracker) {
	for _, p := range c.Peers {
		tracker.AddPeerWithReport(
			p.URL,
			download.NewReliabilityReport(p.RequestsSent, p.RequestsSuccess),
		)
	}
}
