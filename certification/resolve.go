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

package certification

import (
	"crypto/sha256"
	"fmt"

	"github.com/transparency-dev/httpcert/api"
	"github.com/transparency-dev/httpcert/certification/hashtree"
)

// AssetPath is the path in an asset tree under which the digest of the
// content served at uriPath is stored.
func AssetPath(uriPath string) hashtree.Path {
	return hashtree.NewPath(api.AssetsLabel, uriPath)
}

// ResolveExpectedDigest returns the certified SHA256 digest of the content
// served for uriPath.
//
// Paths that the tree does not certify, either provably or because they have
// been pruned, are served by the default document, so its digest is returned
// instead. A certified path always takes precedence over the fallback.
func ResolveExpectedDigest(tree hashtree.HashTree, uriPath string) ([sha256.Size]byte, error) {
	r := tree.LookupPath(AssetPath(uriPath)...)
	switch r.Status {
	case hashtree.LookupFound:
		return asDigest(uriPath, r.Value)
	case hashtree.LookupAbsent, hashtree.LookupUnknown:
		// Use the default document below.
	default:
		return [sha256.Size]byte{}, fmt.Errorf("%w: lookup of %q: %s", ErrPathUnresolved, uriPath, r.Status)
	}

	r = tree.LookupPath(AssetPath(api.DefaultDocument)...)
	if r.Status != hashtree.LookupFound {
		return [sha256.Size]byte{}, fmt.Errorf("%w: %q not certified and fallback %q is %s", ErrPathUnresolved, uriPath, api.DefaultDocument, r.Status)
	}
	return asDigest(api.DefaultDocument, r.Value)
}

func asDigest(path string, v []byte) ([sha256.Size]byte, error) {
	if len(v) != sha256.Size {
		return [sha256.Size]byte{}, fmt.Errorf("%w: value for %q is %d bytes, not a digest", ErrPathUnresolved, path, len(v))
	}
	return [sha256.Size]byte(v), nil
}
