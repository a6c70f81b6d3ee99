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

package hashtree

import (
	"errors"
	"fmt"

	agenthashtree "github.com/aviate-labs/agent-go/certification/hashtree"
	"github.com/transparency-dev/httpcert/internal/codec"
)

// MaxDepth is the deepest node nesting Decode accepts.
const MaxDepth = 1024

var errNoRoot = errors.New("hash tree has no root")

// Decode parses a CBOR encoded hash tree. Any structural problem with the
// encoding is reported as an error.
func Decode(data []byte) (HashTree, error) {
	var items []any
	if err := codec.Unmarshal(codec.StripSelfDescribe(data), &items); err != nil {
		return HashTree{}, fmt.Errorf("failed to decode tree: %v", err)
	}
	root, err := buildNode(items)
	if err != nil {
		return HashTree{}, err
	}
	return HashTree{Root: root}, nil
}

// Encode returns the CBOR encoding of the tree.
func Encode(t HashTree) ([]byte, error) {
	if t.Root == nil {
		return nil, errNoRoot
	}
	return agenthashtree.Serialize(t.Root)
}

// MarshalCBOR implements cbor.Marshaler so trees can be embedded in other
// CBOR structures.
func (t HashTree) MarshalCBOR() ([]byte, error) {
	return Encode(t)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (t *HashTree) UnmarshalCBOR(data []byte) error {
	d, err := Decode(data)
	if err != nil {
		return err
	}
	*t = d
	return nil
}

// buildNode turns a decoded node array into a tree. agent-go indexes the
// first element of every array it is given, so empty arrays are rejected
// before it sees them.
func buildNode(items []any) (n Node, err error) {
	if err := checkShape(items, 0); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("malformed tree: %v", r)
		}
	}()
	n, err = agenthashtree.DeserializeNode(items)
	if err != nil {
		return nil, fmt.Errorf("malformed tree: %v", err)
	}
	return n, nil
}

func checkShape(items []any, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("hash tree deeper than %d", MaxDepth)
	}
	if len(items) == 0 {
		return errors.New("empty node array")
	}
	for _, v := range items[1:] {
		if child, ok := v.([]any); ok {
			if err := checkShape(child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
