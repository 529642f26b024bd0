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

package attachment

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/atlas/cbor"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	Hash160Size         = 20
	ConsensusHashSize   = 20
	BlockHeaderHashSize = 32
)

// Hash160 is the RIPEMD160(SHA256(x)) digest identifying attachment content
type Hash160 [Hash160Size]byte

// NewHash160 copies data into a Hash160. Shorter input is zero-padded
func NewHash160(data []byte) Hash160 {
	h := Hash160{}
	copy(h[:], data)
	return h
}

// NewHash160FromHex parses a hex encoded Hash160
func NewHash160FromHex(hexData string) (Hash160, error) {
	data, err := hex.DecodeString(hexData)
	if err != nil {
		return Hash160{}, err
	}
	if len(data) != Hash160Size {
		return Hash160{}, fmt.Errorf(
			"invalid Hash160 length: got %d, expected %d",
			len(data),
			Hash160Size,
		)
	}
	return NewHash160(data), nil
}

// Hash160FromData computes the Hash160 of the provided data
func Hash160FromData(data []byte) Hash160 {
	return NewHash160(btcutil.Hash160(data))
}

// EmptyAttachmentHash returns the Hash160 of empty content. An attachment value
// with an empty hash unbinds its slot and refers to this hash
func EmptyAttachmentHash() Hash160 {
	return Hash160FromData(nil)
}

func (h Hash160) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash160) Bytes() []byte {
	return h[:]
}

// IsEmpty returns true for the all-zero hash
func (h Hash160) IsEmpty() bool {
	return h == Hash160{}
}

// Compare orders hashes bytewise
func (h Hash160) Compare(other Hash160) int {
	return bytes.Compare(h[:], other[:])
}

func (h Hash160) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h Hash160) MarshalCBOR() ([]byte, error) {
	// Ensure we always encode a full-sized bytestring, even if the hash is zero-valued
	hashBytes := make([]byte, Hash160Size)
	copy(hashBytes, h[:])
	return cbor.Encode(hashBytes)
}

func (h *Hash160) UnmarshalCBOR(data []byte) error {
	hashBytes, err := cbor.DecodeBytes(data)
	if err != nil {
		return err
	}
	if len(hashBytes) != Hash160Size {
		return fmt.Errorf(
			"invalid Hash160 length: got %d, expected %d",
			len(hashBytes),
			Hash160Size,
		)
	}
	*h = NewHash160(hashBytes)
	return nil
}

// ConsensusHash identifies the burnchain view a block was produced under
type ConsensusHash [ConsensusHashSize]byte

func NewConsensusHash(data []byte) ConsensusHash {
	c := ConsensusHash{}
	copy(c[:], data)
	return c
}

func (c ConsensusHash) String() string {
	return hex.EncodeToString(c[:])
}

func (c ConsensusHash) Bytes() []byte {
	return c[:]
}

// BlockHeaderHash identifies the block whose transaction referenced an attachment
type BlockHeaderHash [BlockHeaderHashSize]byte

func NewBlockHeaderHash(data []byte) BlockHeaderHash {
	b := BlockHeaderHash{}
	copy(b[:], data)
	return b
}

func (b BlockHeaderHash) String() string {
	return hex.EncodeToString(b[:])
}

func (b BlockHeaderHash) Bytes() []byte {
	return b[:]
}
