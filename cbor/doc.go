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

// Package cbor provides CBOR encoding/decoding utilities for attachment data.
//
// This package wraps github.com/fxamacker/cbor/v2 with cached encoder and
// decoder modes shared by the rest of the module.
//
// # Key Types
//
//   - RawMessage: Deferred decoding (like json.RawMessage)
//   - StructAsArray: Embed to encode struct fields as CBOR array instead of map
//
// # Structured values
//
// On-chain attachment references arrive as CBOR maps keyed by text strings.
// DecodeMap splits such a map into its raw entries so callers can validate
// each field individually:
//
//	fields, err := cbor.DecodeMap(data)
//	if err != nil {
//	    return err
//	}
//	raw, ok := fields["page-index"]
//
// DecodeUint and DecodeBytes then enforce the expected major type of a
// single entry.
package cbor
