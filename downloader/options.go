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
	"log/slog"
	"time"

	"github.com/blinklabs-io/atlas/attachment"
	"github.com/blinklabs-io/atlas/download"
)

const (
	DefaultMaxRetries           = 5
	DefaultRetryBackoff         = 10 * time.Second
	DefaultMaxConcurrentBatches = 4
	DefaultDNSCacheSize         = 256
	DefaultDNSCacheTTL          = 5 * time.Minute
)

// OnAttachmentFunc is called once for every attachment resolved in a batch.
// The content has already been checked against its hash
type OnAttachmentFunc func(*download.AttachmentsBatch, *attachment.Attachment)

// OnBatchCompletedFunc is called when every attachment of a batch is resolved
type OnBatchCompletedFunc func(*download.AttachmentsBatch)

// OnBatchAbandonedFunc is called when a batch is dropped without completing
type OnBatchAbandonedFunc func(*download.AttachmentsBatch, error)

// Config holds the settings of a Downloader
type Config struct {
	// MaxRetries is the number of fruitless rounds tolerated before a batch is abandoned
	MaxRetries uint32
	// RetryBackoff is multiplied by the retry count of a batch to delay its next round
	RetryBackoff time.Duration
	// MaxConcurrentBatches limits how many batches have a round in flight
	MaxConcurrentBatches int
	// ConnectionOptions parameterizes request construction and dispatch
	ConnectionOptions download.ConnectionOptions
	// Resolver turns peer URLs into addresses. Defaults to the system resolver
	Resolver Resolver
	// DNSCacheSize is the number of cached lookups. Zero disables the cache
	DNSCacheSize int
	// DNSCacheTTL is how long a lookup stays cached
	DNSCacheTTL time.Duration
	Logger      *slog.Logger

	OnAttachment     OnAttachmentFunc
	OnBatchCompleted OnBatchCompletedFunc
	OnBatchAbandoned OnBatchAbandonedFunc
}

// DefaultConfig returns a Config with the default values
func DefaultConfig() Config {
	return Config{
		MaxRetries:           DefaultMaxRetries,
		RetryBackoff:         DefaultRetryBackoff,
		MaxConcurrentBatches: DefaultMaxConcurrentBatches,
		ConnectionOptions:    download.NewConnectionOptions(),
		DNSCacheSize:         DefaultDNSCacheSize,
		DNSCacheTTL:          DefaultDNSCacheTTL,
	}
}

// OptionFunc is a type that represents functions that modify the Downloader config
type OptionFunc func(*Config)

// WithConfig applies a complete Config, replacing all default values. Options
// applied after WithConfig still override it
func WithConfig(config Config) OptionFunc {
	return func(c *Config) {
		*c = config
	}
}

// WithMaxRetries specifies how many fruitless rounds a batch may go through
func WithMaxRetries(maxRetries uint32) OptionFunc {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

// WithRetryBackoff specifies the base delay between rounds of a batch
func WithRetryBackoff(backoff time.Duration) OptionFunc {
	return func(c *Config) {
		if backoff >= 0 {
			c.RetryBackoff = backoff
		}
	}
}

// WithMaxConcurrentBatches specifies how many batches may be in a round at once
func WithMaxConcurrentBatches(n int) OptionFunc {
	return func(c *Config) {
		if n > 0 {
			c.MaxConcurrentBatches = n
		}
	}
}

// WithConnectionOptions specifies the options used to build and send requests
func WithConnectionOptions(options download.ConnectionOptions) OptionFunc {
	return func(c *Config) {
		c.ConnectionOptions = options
	}
}

// WithResolver specifies the peer address resolver
func WithResolver(resolver Resolver) OptionFunc {
	return func(c *Config) {
		c.Resolver = resolver
	}
}

// WithDNSCache specifies the size and TTL of the lookup cache. A size of zero
// disables caching
func WithDNSCache(size int, ttl time.Duration) OptionFunc {
	return func(c *Config) {
		c.DNSCacheSize = size
		c.DNSCacheTTL = ttl
	}
}

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) OptionFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithOnAttachment specifies a callback for resolved attachments
func WithOnAttachment(fn OnAttachmentFunc) OptionFunc {
	return func(c *Config) {
		c.OnAttachment = fn
	}
}

// WithOnBatchCompleted specifies a callback for completed batches
func WithOnBatchCompleted(fn OnBatchCompletedFunc) OptionFunc {
	return func(c *Config) {
		c.OnBatchCompleted = fn
	}
}

// WithOnBatchAbandoned specifies a callback for abandoned batches
func WithOnBatchAbandoned(fn OnBatchAbandonedFunc) OptionFunc {
	return func(c *Config) {
		c.OnBatchAbandoned = fn
	}
}
