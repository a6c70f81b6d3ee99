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

// hashtree holds the pruned Merkle trees that certificates and asset
// responses use to commit to labelled data.
//
// Nodes, digests and label search are those of agent-go. This package adds
// what untrusted input needs on top: a decoder that rejects malformed trees
// instead of panicking, and lookups that report all four outcomes.
package hashtree

import (
	"fmt"
	"strings"

	agenthashtree "github.com/aviate-labs/agent-go/certification/hashtree"
)

// Label names the subtree below a Labeled node. Labels are compared
// lexicographically as bytes.
type Label = agenthashtree.Label

// Node is any of Empty, Fork, Labeled, Leaf or Pruned.
type Node = agenthashtree.Node

type (
	Empty   = agenthashtree.Empty
	Fork    = agenthashtree.Fork
	Labeled = agenthashtree.Labeled
	Leaf    = agenthashtree.Leaf
	Pruned  = agenthashtree.Pruned
)

// Path is a sequence of labels leading from the root to a value.
type Path []Label

// NewPath returns the path made of the given labels.
func NewPath(labels ...string) Path {
	p := make(Path, len(labels))
	for i, l := range labels {
		p[i] = Label(l)
	}
	return p
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, l := range p {
		parts[i] = fmt.Sprintf("%q", []byte(l))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// HashTree is a tree with a known root. The zero value has no root and
// digests as Empty.
type HashTree struct {
	Root Node
}

func NewHashTree(root Node) HashTree {
	return HashTree{Root: root}
}

// Digest returns the root hash of the tree. Pruning a subtree does not change
// it.
func (t HashTree) Digest() [32]byte {
	if t.Root == nil {
		return Empty{}.Reconstruct()
	}
	return t.Root.Reconstruct()
}

// Agent returns the tree as agent-go's type, sharing its nodes.
func (t HashTree) Agent() agenthashtree.HashTree {
	return agenthashtree.NewHashTree(t.Root)
}

// Forks joins nodes left to right into a balanced tree of forks. No nodes
// give Empty.
func Forks(nodes []Node) Node {
	switch len(nodes) {
	case 0:
		return Empty{}
	case 1:
		return nodes[0]
	default:
		mid := len(nodes) / 2
		return Fork{LeftTree: Forks(nodes[:mid]), RightTree: Forks(nodes[mid:])}
	}
}
