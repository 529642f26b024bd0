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
	"time"
)

const (
	// MaxAttachmentInvPagesPerRequest bounds the number of pages asked about in
	// a single inventory request
	MaxAttachmentInvPagesPerRequest = 8

	// AttachmentsInvPageSize is the number of attachment slots in a page
	AttachmentsInvPageSize = 8

	DefaultRequestTimeout        = 15 * time.Second
	DefaultDNSTimeout            = 5 * time.Second
	DefaultMaxConcurrentRequests = 16
)

// ConnectionOptions parameterizes request construction and dispatch. It does
// not influence peer scoring
type ConnectionOptions struct {
	// MaxInventoryPagesPerRequest is the page chunk size used when paginating
	// missing pages into inventory requests
	MaxInventoryPagesPerRequest int
	// MaxAttachmentsPerPage is the largest presence vector accepted for a page
	MaxAttachmentsPerPage int
	// RequestTimeout applies to every request sent to a peer
	RequestTimeout time.Duration
	// DNSTimeout applies to every peer address lookup
	DNSTimeout time.Duration
	// MaxConcurrentRequests limits the in-flight requests of a round
	MaxConcurrentRequests int
}

// ConnectionOptionFunc is a type that represents functions that modify the ConnectionOptions
type ConnectionOptionFunc func(*ConnectionOptions)

// NewConnectionOptions returns a ConnectionOptions object with the provided options applied over the defaults
func NewConnectionOptions(opts ...ConnectionOptionFunc) ConnectionOptions {
	c := ConnectionOptions{
		MaxInventoryPagesPerRequest: MaxAttachmentInvPagesPerRequest,
		MaxAttachmentsPerPage:       AttachmentsInvPageSize,
		RequestTimeout:              DefaultRequestTimeout,
		DNSTimeout:                  DefaultDNSTimeout,
		MaxConcurrentRequests:       DefaultMaxConcurrentRequests,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithMaxInventoryPagesPerRequest specifies the page chunk size for inventory requests
func WithMaxInventoryPagesPerRequest(n int) ConnectionOptionFunc {
	return func(c *ConnectionOptions) {
		if n > 0 {
			c.MaxInventoryPagesPerRequest = n
		}
	}
}

// WithMaxAttachmentsPerPage specifies the largest accepted presence vector
func WithMaxAttachmentsPerPage(n int) ConnectionOptionFunc {
	return func(c *ConnectionOptions) {
		if n > 0 {
			c.MaxAttachmentsPerPage = n
		}
	}
}

// WithRequestTimeout specifies the per-request timeout
func WithRequestTimeout(timeout time.Duration) ConnectionOptionFunc {
	return func(c *ConnectionOptions) {
		if timeout > 0 {
			c.RequestTimeout = timeout
		}
	}
}

// WithDNSTimeout specifies the per-lookup timeout
func WithDNSTimeout(timeout time.Duration) ConnectionOptionFunc {
	return func(c *ConnectionOptions) {
		if timeout > 0 {
			c.DNSTimeout = timeout
		}
	}
}

// WithMaxConcurrentRequests specifies how many requests a round may have in flight
func WithMaxConcurrentRequests(n int) ConnectionOptionFunc {
	return func(c *ConnectionOptions) {
		if n > 0 {
			c.MaxConcurrentRequests = n
		}
	}
}

// pageLimit returns the effective chunk size, falling back to the default for
// a zero-valued options struct
func (c ConnectionOptions) pageLimit() int {
	if c.MaxInventoryPagesPerRequest <= 0 {
		return MaxAttachmentInvPagesPerRequest
	}
	return c.MaxInventoryPagesPerRequest
}

func (c ConnectionOptions) attachmentsPerPage() int {
	if c.MaxAttachmentsPerPage <= 0 {
		return AttachmentsInvPageSize
	}
	return c.MaxAttachmentsPerPage
}
