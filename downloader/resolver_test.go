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
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLookupFailed = errors.New("lookup failed")

func TestNetResolver(t *testing.T) {
	var lookups atomic.Int32
	resolver := NewNetResolver(
		func(_ context.Context, host string) ([]string, error) {
			lookups.Add(1)
			switch host {
			case "peer.example.com":
				return []string{"192.0.2.10", "192.0.2.11"}, nil
			case "empty.example.com":
				return nil, nil
			default:
				return nil, errLookupFailed
			}
		},
	)
	testDefs := []struct {
		url         string
		expected    ResolvedPeer
		expectedErr error
	}{
		{
			url: "http://peer.example.com:20443",
			expected: ResolvedPeer{
				URL:   "http://peer.example.com:20443",
				Host:  "peer.example.com",
				Port:  "20443",
				Addrs: []string{"192.0.2.10", "192.0.2.11"},
			},
		},
		{
			url: "https://peer.example.com",
			expected: ResolvedPeer{
				URL:   "https://peer.example.com",
				Host:  "peer.example.com",
				Port:  "443",
				Addrs: []string{"192.0.2.10", "192.0.2.11"},
			},
		},
		{
			url: "http://127.0.0.1:20443",
			expected: ResolvedPeer{
				URL:   "http://127.0.0.1:20443",
				Host:  "127.0.0.1",
				Port:  "20443",
				Addrs: []string{"127.0.0.1"},
			},
		},
		{
			url:         "http://empty.example.com:20443",
			expectedErr: ErrNoAddresses,
		},
		{
			url:         "http://missing.example.com:20443",
			expectedErr: errLookupFailed,
		},
		{
			url:         "tcp://peer.example.com",
			expectedErr: ErrInvalidPeerURL,
		},
		{
			url:         "http://:20443",
			expectedErr: ErrInvalidPeerURL,
		},
	}
	for _, testDef := range testDefs {
		peer, err := resolver.Resolve(context.Background(), testDef.url)
		if testDef.expectedErr != nil {
			assert.ErrorIs(t, err, testDef.expectedErr, testDef.url)
			continue
		}
		require.NoError(t, err, testDef.url)
		assert.Equal(t, testDef.expected, peer)
	}
	// IP literals and malformed URLs never reach the lookup function
	assert.Equal(t, int32(4), lookups.Load())
}

func TestResolvedPeerAddress(t *testing.T) {
	peer := ResolvedPeer{
		Host:  "peer.example.com",
		Port:  "20443",
		Addrs: []string{"192.0.2.10", "2001:db8::1"},
	}
	assert.Equal(t, "192.0.2.10:20443", peer.Address())
	peer.Addrs = []string{"2001:db8::1"}
	assert.Equal(t, "[2001:db8::1]:20443", peer.Address())
	peer.Addrs = nil
	assert.Equal(t, "peer.example.com:20443", peer.Address())
}

type countingResolver struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (r *countingResolver) Resolve(_ context.Context, peerURL string) (ResolvedPeer, error) {
	r.calls.Add(1)
	if r.fail.Load() {
		return ResolvedPeer{}, errLookupFailed
	}
	return ResolvedPeer{
		URL:   peerURL,
		Host:  "localhost",
		Port:  "20443",
		Addrs: []string{"127.0.0.1"},
	}, nil
}

func TestCachingResolverTTL(t *testing.T) {
	inner := &countingResolver{}
	resolver, err := NewCachingResolver(inner, 16, time.Minute)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	resolver.now = func() time.Time { return now }
	ctx := context.Background()
	url := "http://localhost:20443"

	_, err = resolver.Resolve(ctx, url)
	require.NoError(t, err)
	_, err = resolver.Resolve(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load(), "second lookup should be cached")

	now = now.Add(2 * time.Minute)
	_, err = resolver.Resolve(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load(), "expired entry should be looked up again")
	assert.Equal(t, 1, resolver.Len())
}

func TestCachingResolverSkipsFailures(t *testing.T) {
	inner := &countingResolver{}
	inner.fail.Store(true)
	resolver, err := NewCachingResolver(inner, 16, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()
	url := "http://localhost:20443"

	_, err = resolver.Resolve(ctx, url)
	require.ErrorIs(t, err, errLookupFailed)
	assert.Equal(t, 0, resolver.Len())

	inner.fail.Store(false)
	peer, err := resolver.Resolve(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, url, peer.URL)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachingResolverEviction(t *testing.T) {
	inner := &countingResolver{}
	resolver, err := NewCachingResolver(inner, 2, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()
	for _, url := range []string{"http://a:1", "http://b:1", "http://c:1"} {
		_, err := resolver.Resolve(ctx, url)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, resolver.Len())
	// The least recently used entry was evicted
	_, err = resolver.Resolve(ctx, "http://a:1")
	require.NoError(t, err)
	assert.Equal(t, int32(4), inner.calls.Load())
}

func TestCachingResolverInvalidSize(t *testing.T) {
	_, err := NewCachingResolver(&countingResolver{}, 0, time.Minute)
	assert.Error(t, err)
}
