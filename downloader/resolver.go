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
	"fmt"
	"net"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrInvalidPeerURL = errors.New("invalid peer URL")
	ErrNoAddresses    = errors.New("peer host resolved to no addresses")
)

// Resolver turns a peer URL into the addresses to connect to
type Resolver interface {
	Resolve(ctx context.Context, peerURL string) (ResolvedPeer, error)
}

// LookupHostFunc looks up the addresses of a host name
type LookupHostFunc func(ctx context.Context, host string) ([]string, error)

// NetResolver resolves peer URLs with a host lookup function, which defaults
// to the system resolver
type NetResolver struct {
	lookupHost LookupHostFunc
}

func NewNetResolver(lookupHost LookupHostFunc) *NetResolver {
	if lookupHost == nil {
		lookupHost = net.DefaultResolver.LookupHost
	}
	return &NetResolver{
		lookupHost: lookupHost,
	}
}

func (r *NetResolver) Resolve(ctx context.Context, peerURL string) (ResolvedPeer, error) {
	host, port, err := splitPeerURL(peerURL)
	if err != nil {
		return ResolvedPeer{}, err
	}
	ret := ResolvedPeer{
		URL:  peerURL,
		Host: host,
		Port: port,
	}
	// IP literals need no lookup
	if ip := net.ParseIP(host); ip != nil {
		ret.Addrs = []string{ip.String()}
		return ret, nil
	}
	addrs, err := r.lookupHost(ctx, host)
	if err != nil {
		return ResolvedPeer{}, fmt.Errorf("lookup %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return ResolvedPeer{}, fmt.Errorf("%w: %s", ErrNoAddresses, host)
	}
	ret.Addrs = addrs
	return ret, nil
}

func splitPeerURL(peerURL string) (string, string, error) {
	u, err := url.Parse(peerURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidPeerURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", "", fmt.Errorf("%w: missing host in %q", ErrInvalidPeerURL, peerURL)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		default:
			return "", "", fmt.Errorf("%w: missing port in %q", ErrInvalidPeerURL, peerURL)
		}
	}
	return host, port, nil
}

type cachedPeer struct {
	peer      ResolvedPeer
	expiresAt time.Time
}

// CachingResolver remembers successful lookups of another Resolver for a
// fixed TTL. Failed lookups are not cached
type CachingResolver struct {
	resolver Resolver
	cache    *lru.Cache[string, cachedPeer]
	ttl      time.Duration
	now      func() time.Time
}

func NewCachingResolver(resolver Resolver, size int, ttl time.Duration) (*CachingResolver, error) {
	cache, err := lru.New[string, cachedPeer](size)
	if err != nil {
		return nil, err
	}
	return &CachingResolver{
		resolver: resolver,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func (r *CachingResolver) Resolve(ctx context.Context, peerURL string) (ResolvedPeer, error) {
	if entry, ok := r.cache.Get(peerURL); ok {
		if r.now().Before(entry.expiresAt) {
			return entry.peer, nil
		}
		r.cache.Remove(peerURL)
	}
	peer, err := r.resolver.Resolve(ctx, peerURL)
	if err != nil {
		return ResolvedPeer{}, err
	}
	r.cache.Add(
		peerURL,
		cachedPeer{
			peer:      peer,
			expiresAt: r.now().Add(r.ttl),
		},
	)
	return peer, nil
}

// Len returns the number of cached entries, including expired ones not yet evicted
func (r *CachingResolver) Len() int {
	return r.cache.Len()
}
