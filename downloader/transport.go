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
	"net"

	"github.com/blinklabs-io/atlas/attachment"
	"github.com/blinklabs-io/atlas/download"
)

// ResolvedPeer is a peer URL along with the addresses it resolved to
type ResolvedPeer struct {
	URL   string
	Host  string
	Port  string
	Addrs []string
}

// Address returns the first resolved address joined with the port
func (p ResolvedPeer) Address() string {
	if len(p.Addrs) == 0 {
		return net.JoinHostPort(p.Host, p.Port)
	}
	return net.JoinHostPort(p.Addrs[0], p.Port)
}

// Transport sends requests to peers. Implementations own connection
// management and wire encoding. Any error is treated as the peer not
// answering
type Transport interface {
	GetAttachmentsInventory(
		ctx context.Context,
		peer ResolvedPeer,
		req *download.AttachmentsInventoryRequest,
	) (*download.InventoryResponse, error)
	GetAttachment(
		ctx context.Context,
		peer ResolvedPeer,
		req *download.AttachmentRequest,
	) (*attachment.Attachment, error)
}
