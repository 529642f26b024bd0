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
package cbor_test

import (
	"encoding/hex"
	"testing"

	"github.com/blinklabs-io/atlas/cbor"
)

type encodeTestDefinition struct {
	CborHex string
	Object  any
}

type arrayStruct struct {
	cbor.StructAsArray
	Index     uint32
	Inventory []byte
}

var encodeTests = []encodeTestDefinition{
	// Simple list of numbers
	{
		CborHex: "83010203",
		Object:  []any{1, 2, 3},
	},
	// Unsigned integer
	{
		CborHex: "1903e8",
		Object:  uint64(1000),
	},
	// Byte string
	{
		CborHex: "420102",
		Object:  []byte{1, 2},
	},
	// Map keys are sorted
	{
		CborHex: "a2616102616201",
		Object:  map[string]any{"b": 1, "a": 2},
	},
	// Struct encoded as array
	{
		CborHex: "82034401000100",
		Object: arrayStruct{
			Index:     3,
			Inventory: []byte{1, 0, 1, 0},
		},
	},
}

func TestEncode(t *testing.T) {
	for _, test := range encodeTests {
		cborData, err := cbor.Encode(test.Object)
		if err != nil {
			t.Fatalf("failed to encode object to CBOR: %s", err)
		}
		cborHex := hex.EncodeToString(cborData)
		if cborHex != test.CborHex {
			t.Fatalf(
				"object did not encode to expected CBOR\n  got: %s\n  wanted: %s",
				cborHex,
				test.CborHex,
			)
		}
	}
}

func TestEncodeDecodeStructAsArray(t *testing.T) {
	orig := arrayStruct{
		Index:     7,
		Inventory: []byte{0, 1},
	}
	cborData, err := cbor.Encode(orig)
	if err != nil {
		t.Fatalf("failed to encode object to CBOR: %s", err)
	}
	var decoded arrayStruct
	if _, err := cbor.Decode(cborData, &decoded); err != nil {
		t.Fatalf("failed to decode CBOR: %s", err)
	}
	if decoded.Index != orig.Index || string(decoded.Inventory) != string(orig.Inventory) {
		t.Fatalf("round trip mismatch\n  got: %#v\n  wanted: %#v", decoded, orig)
	}
}
