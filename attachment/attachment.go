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

// Package attachment defines off-chain attachment content and the on-chain
// references that point at it.
package attachment

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/blinklabs-io/atlas/cbor"
)

// Keys of the structured value emitted on-chain for each attachment reference
const (
	ValueKeyAttachment     = "attachment"
	ValueKeyPositionInPage = "position-in-page"
	ValueKeyPageIndex      = "page-index"
	ValueKeyHash           = "hash"
	ValueKeyMetadata       = "metadata"
)

var ErrInvalidAttachmentValue = errors.New("invalid attachment value")

// Attachment is immutable content identified by its Hash160
type Attachment struct {
	Content []byte
}

func NewAttachment(content []byte) *Attachment {
	tmp := make([]byte, len(content))
	copy(tmp, content)
	return &Attachment{
		Content: tmp,
	}
}

// Hash returns the content hash of the attachment
func (a *Attachment) Hash() Hash160 {
	return Hash160FromData(a.Content)
}

// AttachmentInstance is a reference to an attachment found in chain state
type AttachmentInstance struct {
	ContentHash     Hash160
	PageIndex       uint32
	PositionInPage  uint32
	BlockHeight     uint64
	ConsensusHash   ConsensusHash
	ContractID      ContractIdentifier
	BlockHeaderHash BlockHeaderHash
	Metadata        string
}

// NewAttachmentInstanceFromCbor builds an AttachmentInstance from the CBOR
// encoded structured value emitted by a contract. The value must be a map with
// an "attachment" entry holding "position-in-page", "page-index" and "hash",
// and optionally "metadata"
func NewAttachmentInstanceFromCbor(
	cborData []byte,
	contractID ContractIdentifier,
	consensusHash ConsensusHash,
	blockHeaderHash BlockHeaderHash,
	blockHeight uint64,
) (*AttachmentInstance, error) {
	outer, err := cbor.DecodeMap(cborData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAttachmentValue, err)
	}
	rawAttachment, ok := outer[ValueKeyAttachment]
	if !ok {
		return nil, fmt.Errorf(
			"%w: missing %q",
			ErrInvalidAttachmentValue,
			ValueKeyAttachment,
		)
	}
	fields, err := cbor.DecodeMap(rawAttachment)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: %s: %w",
			ErrInvalidAttachmentValue,
			ValueKeyAttachment,
			err,
		)
	}
	positionInPage, err := decodeUint32Field(fields, ValueKeyPositionInPage)
	if err != nil {
		return nil, err
	}
	pageIndex, err := decodeUint32Field(fields, ValueKeyPageIndex)
	if err != nil {
		return nil, err
	}
	rawHash, ok := fields[ValueKeyHash]
	if !ok {
		return nil, fmt.Errorf(
			"%w: missing %q",
			ErrInvalidAttachmentValue,
			ValueKeyHash,
		)
	}
	hashBytes, err := cbor.DecodeBytes(rawHash)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: %s: %w",
			ErrInvalidAttachmentValue,
			ValueKeyHash,
			err,
		)
	}
	if len(hashBytes) != 0 && len(hashBytes) != Hash160Size {
		return nil, fmt.Errorf(
			"%w: %s: invalid length %d",
			ErrInvalidAttachmentValue,
			ValueKeyHash,
			len(hashBytes),
		)
	}
	contentHash := EmptyAttachmentHash()
	if len(hashBytes) != 0 {
		contentHash = NewHash160(hashBytes)
	}
	var metadata string
	if rawMetadata, ok := fields[ValueKeyMetadata]; ok {
		metadata = hex.EncodeToString(rawMetadata)
	}
	return &AttachmentInstance{
		ContentHash:     contentHash,
		PageIndex:       pageIndex,
		PositionInPage:  positionInPage,
		BlockHeight:     blockHeight,
		ConsensusHash:   consensusHash,
		ContractID:      contractID,
		BlockHeaderHash: blockHeaderHash,
		Metadata:        metadata,
	}, nil
}

func decodeUint32Field(fields map[string]cbor.RawMessage, key string) (uint32, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidAttachmentValue, key)
	}
	val, err := cbor.DecodeUint(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidAttachmentValue, key, err)
	}
	if val > math.MaxUint32 {
		return 0, fmt.Errorf(
			"%w: %s: value %d out of range",
			ErrInvalidAttachmentValue,
			key,
			val,
		)
	}
	return uint32(val), nil
}

// NewAttachmentValue encodes the structured value for an attachment reference.
// It is the inverse of NewAttachmentInstanceFromCbor and is mostly useful for
// tooling and tests
func NewAttachmentValue(
	positionInPage uint32,
	pageIndex uint32,
	hash []byte,
	metadata any,
) ([]byte, error) {
	if hash == nil {
		hash = []byte{}
	}
	fields := map[string]any{
		ValueKeyPositionInPage: uint64(positionInPage),
		ValueKeyPageIndex:      uint64(pageIndex),
		ValueKeyHash:           hash,
	}
	if metadata != nil {
		fields[ValueKeyMetadata] = metadata
	}
	return cbor.Encode(
		map[string]any{
			ValueKeyAttachment: fields,
		},
	)
}

func (i *AttachmentInstance) String() string {
	return fmt.Sprintf(
		"AttachmentInstance{ContentHash: %s, ContractID: %s, PageIndex: %d, PositionInPage: %d, BlockHeight: %d}",
		i.ContentHash,
		i.ContractID,
		i.PageIndex,
		i.PositionInPage,
		i.BlockHeight,
	)
}
