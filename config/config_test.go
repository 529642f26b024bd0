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
package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/atlas/config"
	"github.com/blinklabs-io/atlas/download"
	"github.com/blinklabs-io/atlas/downloader"
	"github.com/blinklabs-io/atlas/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

type configTestDefinition struct {
	yamlData       string
	expectedObject *config.Config
}

var configTests = []configTestDefinition{
	{
		yamlData:       "",
		expectedObject: &config.Config{},
	},
	{
		yamlData: `
peers:
  - url: http://localhost:20443
  - url: http://localhost:30443
    requests_sent: 3
    requests_success: 3
`,
		expectedObject: &config.Config{
			Peers: []config.PeerConfig{
				{
					URL: "http://localhost:20443",
				},
				{
					URL:             "http://localhost:30443",
					RequestsSent:    3,
					RequestsSuccess: 3,
				},
			},
		},
	},
	{
		yamlData: `
connection:
  max_inventory_pages_per_request: 4
  max_attachments_per_page: 8
  request_timeout: 30s
  dns_timeout: 2s
  max_concurrent_requests: 8
downloader:
  max_retries: 0
  retry_backoff: 1m30s
  max_concurrent_batches: 2
  dns_cache_size: 64
  dns_cache_ttl: 10m
peer_store:
  path: /var/lib/atlas/peers
`,
		expectedObject: &config.Config{
			Connection: config.ConnectionConfig{
				MaxInventoryPagesPerRequest: 4,
				MaxAttachmentsPerPage:       8,
				RequestTimeout:              30 * time.Second,
				DNSTimeout:                  2 * time.Second,
				MaxConcurrentRequests:       8,
			},
			Downloader: config.DownloaderConfig{
				MaxRetries:           ptr(uint32(0)),
				RetryBackoff:         ptr(90 * time.Second),
				MaxConcurrentBatches: 2,
				DNSCacheSize:         ptr(64),
				DNSCacheTTL:          10 * time.Minute,
			},
			PeerStore: config.PeerStoreConfig{
				Path: "/var/lib/atlas/peers",
			},
		},
	},
}

func TestParseConfig(t *testing.T) {
	for _, test := range configTests {
		cfg, err := config.NewConfigFromReader(
			strings.NewReader(test.yamlData),
		)
		if err != nil {
			t.Fatalf("failed to load Config from YAML data: %s", err)
		}
		if !reflect.DeepEqual(cfg, test.expectedObject) {
			t.Fatalf(
				"did not get expected object\n  got:\n    %#v\n  wanted:\n    %#v",
				cfg,
				test.expectedObject,
			)
		}
	}
}

func TestParseConfigInvalid(t *testing.T) {
	testDefs := []string{
		// Unknown field
		"peer:\n  - url: http://localhost:20443\n",
		"peers:\n  - url: localhost:20443\n",
		"peers:\n  - url: ftp://localhost:20443\n",
		"peers:\n  - url: http://localhost:20443\n  - url: http://localhost:20443\n",
		"peers:\n  - url: http://localhost:20443\n    requests_sent: 1\n    requests_success: 2\n",
		"connection:\n  max_concurrent_requests: -1\n",
		"connection:\n  request_timeout: -5s\n",
		"downloader:\n  retry_backoff: -1s\n",
		"downloader:\n  dns_cache_size: -1\n",
		"downloader:\n  retry_backoff: soon\n",
	}
	for _, yamlData := range testDefs {
		_, err := config.NewConfigFromReader(strings.NewReader(yamlData))
		assert.Error(t, err, yamlData)
	}
}

func TestNewConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	require.NoError(
		t,
		os.WriteFile(path, []byte("peers:\n  - url: https://peer.example.com\n"), 0o600),
	)
	cfg, err := config.NewConfigFromFile(path)
	require.NoError(t, err)
	require.Len(t, cfg.Peers, 1)
	assert.Equal(t, "https://peer.example.com", cfg.Peers[0].URL)

	_, err = config.NewConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConnectionOptions(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, download.NewConnectionOptions(), cfg.ConnectionOptions())

	cfg.Connection = config.ConnectionConfig{
		MaxInventoryPagesPerRequest: 2,
		RequestTimeout:              time.Second,
	}
	opts := cfg.ConnectionOptions()
	assert.Equal(t, 2, opts.MaxInventoryPagesPerRequest)
	assert.Equal(t, time.Second, opts.RequestTimeout)
	assert.Equal(t, download.AttachmentsInvPageSize, opts.MaxAttachmentsPerPage)
	assert.Equal(t, download.DefaultDNSTimeout, opts.DNSTimeout)
}

func TestDownloaderOptions(t *testing.T) {
	apply := func(cfg *config.Config) downloader.Config {
		ret := downloader.DefaultConfig()
		for _, opt := range cfg.DownloaderOptions() {
			opt(&ret)
		}
		return ret
	}

	defaults := apply(&config.Config{})
	assert.Equal(t, uint32(downloader.DefaultMaxRetries), defaults.MaxRetries)
	assert.Equal(t, downloader.DefaultRetryBackoff, defaults.RetryBackoff)
	assert.Equal(t, downloader.DefaultMaxConcurrentBatches, defaults.MaxConcurrentBatches)
	assert.Equal(t, downloader.DefaultDNSCacheSize, defaults.DNSCacheSize)

	custom := apply(
		&config.Config{
			Downloader: config.DownloaderConfig{
				MaxRetries:           ptr(uint32(0)),
				RetryBackoff:         ptr(time.Duration(0)),
				MaxConcurrentBatches: 1,
				DNSCacheSize:         ptr(0),
			},
		},
	)
	assert.Equal(t, uint32(0), custom.MaxRetries)
	assert.Equal(t, time.Duration(0), custom.RetryBackoff)
	assert.Equal(t, 1, custom.MaxConcurrentBatches)
	assert.Equal(t, 0, custom.DNSCacheSize, "a zero cache size disables the cache")
	assert.Equal(t, downloader.DefaultDNSCacheTTL, custom.DNSCacheTTL)
}

func TestSeedTrackerWithStore(t *testing.T) {
	cfg, err := config.NewConfigFromReader(
		strings.NewReader(`
peers:
  - url: http://localhost:20443
    requests_sent: 2
    requests_success: 1
peer_store:
  in_memory: true
`),
	)
	require.NoError(t, err)
	store, err := cfg.OpenPeerStore()
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, store.SaveReport("http://localhost:20443", download.NewReliabilityReport(9, 9)))

	tracker, err := peer.NewTracker(
		peer.WithStore(store),
		peer.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	defer tracker.Close()
	cfg.SeedTracker(tracker)
	report, ok := tracker.Report("http://localhost:20443")
	require.True(t, ok)
	assert.Equal(t, download.NewReliabilityReport(9, 9), report, "persisted report wins over the configured one")
}

func TestOpenPeerStoreDisabled(t *testing.T) {
	store, err := (&config.Config{}).OpenPeerStore()
	require.NoError(t, err)
	assert.Nil(t, store)
}
