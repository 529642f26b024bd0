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

package cbor

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	_cbor "github.com/fxamacker/cbor/v2"
)

var (
	ErrUnexpectedType = errors.New("unexpected CBOR type")
	ErrEmptyData      = errors.New("empty CBOR data")
)

var (
	cachedDecMode     _cbor.DecMode
	cachedDecModeErr  error
	cachedDecModeOnce sync.Once
)

// getDecMode returns a cached DecMode, initializing it on first use.
// Uses sync.Once for thread-safe lazy initialization.
// Returns the cached error if initialization failed.
func getDecMode() (_cbor.DecMode, error) {
	cachedDecModeOnce.Do(func() {
		decOptions := _cbor.DecOptions{
			ExtraReturnErrors: _cbor.ExtraDecErrorUnknownField,
			// Structured on-chain values are shallow, so keep the default nesting
			// limit low enough to reject hostile input quickly
			MaxNestedLevels: 32,
			// Duplicate keys in a structured value are ambiguous
			DupMapKey: _cbor.DupMapKeyEnforcedAPF,
		}
		cachedDecMode, cachedDecModeErr = decOptions.DecMode()
	})
	return cachedDecMode, cachedDecModeErr
}

// Decode decodes the CBOR data into dest and returns the number of bytes read
func Decode(dataBytes []byte, dest any) (int, error) {
	if len(dataBytes) == 0 {
		return 0, ErrEmptyData
	}
	data := bytes.NewReader(dataBytes)
	decMode, err := getDecMode()
	if err != nil {
		return 0, err
	}
	if decMode == nil {
		return 0, errors.New("CBOR decoder mode not initialized")
	}
	dec := decMode.NewDecoder(data)
	err = dec.Decode(dest)
	return dec.NumBytesRead(), err
}

// DecodeMap decodes a CBOR map with text string keys into its raw entries
func DecodeMap(cborData []byte) (map[string]RawMessage, error) {
	majorType, ok := MajorType(cborData)
	if !ok {
		return nil, ErrEmptyData
	}
	if majorType != CborTypeMap {
		return nil, fmt.Errorf(
			"%w: expected map, found major type 0x%02x",
			ErrUnexpectedType,
			majorType,
		)
	}
	ret := map[string]RawMessage{}
	if _, err := Decode(cborData, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// DecodeUint decodes an unsigned integer. Negative integers and any other
// major type are rejected rather than coerced
func DecodeUint(cborData []byte) (uint64, error) {
	majorType, ok := MajorType(cborData)
	if !ok {
		return 0, ErrEmptyData
	}
	if majorType != CborTypeUint {
		return 0, fmt.Errorf(
			"%w: expected unsigned integer, found major type 0x%02x",
			ErrUnexpectedType,
			majorType,
		)
	}
	var ret uint64
	if _, err := Decode(cborData, &ret); err != nil {
		return 0, err
	}
	return ret, nil
}

// DecodeBytes decodes a definite or indefinite length byte string
func DecodeBytes(cborData []byte) ([]byte, error) {
	majorType, ok := MajorType(cborData)
	if !ok {
		return nil, ErrEmptyData
	}
	if majorType != CborTypeByteString {
		return nil, fmt.Errorf(
			"%w: expected byte string, found major type 0x%02x",
			ErrUnexpectedType,
			majorType,
		)
	}
	var ret []byte
	if _, err := Decode(cborData, &ret); err != nil {
		return nil, err
	}
	if ret == nil {
		ret = []byte{}
	}
	return ret, nil
}
