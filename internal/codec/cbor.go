// Copyright 2025 Google LLC. All Rights Reserved.
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

// codec wraps the CBOR configuration shared by every package that reads or
// writes certificates and hash trees.
package codec

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"
)

// MaxNestedLevels bounds how deeply nested a decoded item may be. Hash trees
// are encoded as nested arrays, so a tree with many entries nests far deeper
// than the library default of 32.
const MaxNestedLevels = 2048

// selfDescribe is the encoding of CBOR tag 55799 (RFC 8949 §3.4.6), which
// certificate producers prepend to mark the payload as CBOR.
var selfDescribe = []byte{0xd9, 0xd9, 0xf7}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		MaxNestedLevels: MaxNestedLevels,
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		// Certificates and trees contain no tags once the self-describe
		// prefix is removed.
		TagsMd: cbor.TagsForbidden,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes exactly one CBOR item from data into v. Trailing bytes,
// duplicate map keys and tags are errors.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is an undecoded CBOR item.
type RawMessage = cbor.RawMessage

// StripSelfDescribe returns data without a leading self-describe tag, if it
// has one.
func StripSelfDescribe(data []byte) []byte {
	return bytes.TrimPrefix(data, selfDescribe)
}

// WithSelfDescribe returns a copy of data prefixed by the self-describe tag.
func WithSelfDescribe(data []byte) []byte {
	return append(append(make([]byte, 0, len(selfDescribe)+len(data)), selfDescribe...), data...)
}
