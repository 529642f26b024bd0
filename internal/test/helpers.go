package test

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/blinklabs-io/atlas/attachment"
	"github.com/blinklabs-io/atlas/download"
)

// DecodeHexString is a helper function for tests that decodes hex strings. It doesn't return
// an error value, which makes it usable inline.
func DecodeHexString(hexData string) []byte {
	// Strip off any leading/trailing whitespace in hex string
	hexData = strings.TrimSpace(hexData)
	decoded, err := hex.DecodeString(hexData)
	if err != nil {
		panic(fmt.Sprintf("error decoding hex: %s", err))
	}
	return decoded
}

// AttachmentContent returns deterministic content for the given seed
func AttachmentContent(seed int) []byte {
	return []byte(fmt.Sprintf("attachment content %d", seed))
}

// NewInstance builds an AttachmentInstance for the transient contract whose
// content is AttachmentContent(seed)
func NewInstance(seed int, pageIndex uint32, positionInPage uint32, blockHeight uint64) *attachment.AttachmentInstance {
	return &attachment.AttachmentInstance{
		ContentHash:    attachment.Hash160FromData(AttachmentContent(seed)),
		PageIndex:      pageIndex,
		PositionInPage: positionInPage,
		BlockHeight:    blockHeight,
		ContractID:     attachment.TransientContractIdentifier(),
	}
}

// NewBatch builds a batch holding count instances at the given block height,
// one per page starting at page 1, all in position 0
func NewBatch(count int, blockHeight uint64) *download.AttachmentsBatch {
	return NewBatchWithSeed(0, count, blockHeight)
}

// NewBatchWithSeed is NewBatch with content seeds starting at seedOffset
func NewBatchWithSeed(seedOffset int, count int, blockHeight uint64) *download.AttachmentsBatch {
	batch := download.NewAttachmentsBatch()
	for i := range count {
		batch.TrackAttachment(
			NewInstance(seedOffset+i, uint32(i+1), 0, blockHeight),
		)
	}
	return batch
}

// PeerURL returns the URL of a local test peer on the given port
func PeerURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}
