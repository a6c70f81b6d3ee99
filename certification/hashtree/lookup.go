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

	agenthashtree "github.com/aviate-labs/agent-go/certification/hashtree"
)

// LookupStatus is the outcome of looking up a path in a tree.
type LookupStatus int

const (
	// LookupFound means the path leads to a leaf.
	LookupFound LookupStatus = iota
	// LookupAbsent means the tree proves that nothing exists at the path.
	LookupAbsent
	// LookupUnknown means the path may exist but is hidden in a pruned subtree.
	LookupUnknown
	// LookupError means the path leads somewhere that is not a value, such as
	// the middle of a fork.
	LookupError
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupAbsent:
		return "absent"
	case LookupUnknown:
		return "unknown"
	default:
		return "error"
	}
}

// LookupResult is returned by LookupPath. Value is only set when Status is
// LookupFound.
type LookupResult struct {
	Status LookupStatus
	Value  []byte
}

// LookupPath follows path from the root of the tree.
func (t HashTree) LookupPath(path ...Label) LookupResult {
	if t.Root == nil {
		return LookupResult{Status: LookupError}
	}
	v, err := agenthashtree.Lookup(t.Root, path...)
	if err == nil {
		return LookupResult{Status: LookupFound, Value: v}
	}
	var le agenthashtree.LookupError
	if !errors.As(err, &le) {
		return LookupResult{Status: LookupError}
	}
	switch le.Type {
	case agenthashtree.LookupResultAbsent:
		return LookupResult{Status: LookupAbsent}
	case agenthashtree.LookupResultUnknown:
		return LookupResult{Status: LookupUnknown}
	default:
		return LookupResult{Status: LookupError}
	}
}
