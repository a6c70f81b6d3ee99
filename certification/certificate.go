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
	"errors"
	"fmt"

	"github.com/transparency-dev/httpcert/certification/hashtree"
	"github.com/transparency-dev/httpcert/internal/codec"
)

// Certificate is a signed commitment to a state tree. The signature is over
// the root digest of Tree, made either by the root key directly or by a
// subnet key that the root key has delegated to.
type Certificate struct {
	Tree       hashtree.HashTree `cbor:"tree"`
	Signature  []byte            `cbor:"signature"`
	Delegation *Delegation       `cbor:"delegation,omitempty"`
}

// Delegation authorises a subnet's key to sign certificates. Certificate is
// itself an encoded Certificate, signed by the root key, which contains the
// subnet's public key and the canister ranges it may certify for.
type Delegation struct {
	SubnetID    []byte `cbor:"subnet_id"`
	Certificate []byte `cbor:"certificate"`
}

// DecodeCertificate parses an encoded certificate. It checks only that the
// structure is well formed; VerifyCertificate on a TrustVerifier checks
// whether it can be trusted. The tree is decoded once, and the same nodes
// serve both the signature check and lookups.
func DecodeCertificate(data []byte) (*Certificate, error) {
	var c Certificate
	if err := codec.Unmarshal(codec.StripSelfDescribe(data), &c); err != nil {
		return nil, fmt.Errorf("failed to decode certificate: %v", err)
	}
	if c.Tree.Root == nil {
		return nil, errors.New("certificate has no tree")
	}
	if len(c.Signature) == 0 {
		return nil, errors.New("certificate has no signature")
	}
	if c.Delegation != nil && len(c.Delegation.Certificate) == 0 {
		return nil, errors.New("certificate delegation has no certificate")
	}
	return &c, nil
}

// LookupValue returns the value at path in the certificate's tree. Only a
// value that is present is returned; absent, pruned, and malformed paths are
// all errors.
func (c *Certificate) LookupValue(path ...hashtree.Label) ([]byte, error) {
	r := c.Tree.LookupPath(path...)
	if r.Status != hashtree.LookupFound {
		return nil, fmt.Errorf("lookup of %v in certificate: %s", hashtree.Path(path), r.Status)
	}
	return r.Value, nil
}

// CertifiedDataPath is the path in a certificate's tree at which the digest
// certified by the canister is stored.
func CertifiedDataPath(canisterID []byte) hashtree.Path {
	return hashtree.Path{
		hashtree.Label("canister"),
		hashtree.Label(canisterID),
		hashtree.Label("certified_data"),
	}
}
