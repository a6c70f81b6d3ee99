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

// testonly contains helpers for building certified asset fixtures in tests.
//
// Certificates built here are not BLS signed. Their signature is a plain hash
// over the root key and the state tree digest, which SignatureTrust checks in
// place of a real signature verification.
package testonly

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/transparency-dev/httpcert/api"
	"github.com/transparency-dev/httpcert/certification"
	"github.com/transparency-dev/httpcert/certification/hashtree"
	"github.com/transparency-dev/httpcert/internal/codec"
)

// CanisterID is the raw form of the principal rdmx6-jaaaa-aaaaa-aaadq-cai.
var CanisterID = []byte{0, 0, 0, 0, 0, 0, 0, 7, 1, 1}

// CanisterIDText is the textual form of CanisterID.
const CanisterIDText = "rdmx6-jaaaa-aaaaa-aaadq-cai"

// RootKey is the key fixture certificates are signed under. It has the length
// of a BLS public key but is not one.
var RootKey = bytes.Repeat([]byte{0xab}, 96)

// Labels returns a subtree containing each of the given labelled children,
// joined by forks in label order.
func Labels(children map[string]hashtree.Node) hashtree.Node {
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	nodes := make([]hashtree.Node, len(keys))
	for i, k := range keys {
		nodes[i] = hashtree.Labeled{Label: hashtree.Label(k), Tree: children[k]}
	}
	return hashtree.Forks(nodes)
}

// AssetTree returns a tree that certifies the SHA256 of each asset, keyed by
// path.
func AssetTree(assets map[string][]byte) hashtree.HashTree {
	leaves := make(map[string]hashtree.Node, len(assets))
	for p, content := range assets {
		d := sha256.Sum256(content)
		leaves[p] = hashtree.Leaf(d[:])
	}
	return hashtree.NewHashTree(Labels(map[string]hashtree.Node{
		api.AssetsLabel: Labels(leaves),
	}))
}

// StateTree returns a certificate state tree in which canisterID has
// certified the given data.
func StateTree(canisterID, certifiedData []byte) hashtree.HashTree {
	return hashtree.NewHashTree(Labels(map[string]hashtree.Node{
		"canister": Labels(map[string]hashtree.Node{
			string(canisterID): Labels(map[string]hashtree.Node{
				"certified_data": hashtree.Leaf(certifiedData),
			}),
		}),
		"time": hashtree.Leaf{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x10},
	}))
}

// MustEncodeTree returns the CBOR encoding of t.
func MustEncodeTree(t hashtree.HashTree) []byte {
	b, err := hashtree.Encode(t)
	if err != nil {
		panic(fmt.Errorf("failed to encode tree: %v", err))
	}
	return b
}

// Sign returns the fixture signature over a state tree digest.
func Sign(rootKey []byte, digest [sha256.Size]byte) []byte {
	h := sha256.New()
	h.Write([]byte("testonly-signature"))
	h.Write(rootKey)
	h.Write(digest[:])
	return h.Sum(nil)
}

// MustEncodeCertificate returns the self-described CBOR encoding of a
// certificate over state, signed with Sign under RootKey.
func MustEncodeCertificate(state hashtree.HashTree) []byte {
	c := certification.Certificate{
		Tree:      state,
		Signature: Sign(RootKey, state.Digest()),
	}
	b, err := codec.Marshal(c)
	if err != nil {
		panic(fmt.Errorf("failed to encode certificate: %v", err))
	}
	return codec.WithSelfDescribe(b)
}

// Fixture is a consistent certificate and asset tree for a set of assets.
type Fixture struct {
	Assets      map[string][]byte
	Tree        []byte
	Certificate []byte
}

// NewFixture certifies assets for CanisterID.
func NewFixture(assets map[string][]byte) Fixture {
	tree := AssetTree(assets)
	d := tree.Digest()
	return Fixture{
		Assets:      assets,
		Tree:        MustEncodeTree(tree),
		Certificate: MustEncodeCertificate(StateTree(CanisterID, d[:])),
	}
}

// Request returns a request for path whose body is the fixture's content
// for path, falling back to the default document.
func (f Fixture) Request(path string) certification.Request {
	body, ok := f.Assets[path]
	if !ok {
		body = f.Assets[api.DefaultDocument]
	}
	return certification.Request{
		Certificate: f.Certificate,
		Tree:        f.Tree,
		CanisterID:  CanisterID,
		Path:        path,
		Body:        body,
		Encoding:    certification.EncodingIdentity,
		RootKey:     RootKey,
	}
}

// HeaderValue returns the certificate header for the fixture.
func (f Fixture) HeaderValue() string {
	return CertificateHeader(f.Certificate, f.Tree)
}

// CertificateHeader formats cert and tree as a certificate header value.
func CertificateHeader(cert, tree []byte) string {
	return fmt.Sprintf("certificate=:%s:, tree=:%s:",
		base64.StdEncoding.EncodeToString(cert),
		base64.StdEncoding.EncodeToString(tree))
}

// StaticTrust is a TrustVerifier that returns Err for every certificate.
type StaticTrust struct {
	Err error
}

func (s StaticTrust) VerifyCertificate(_ *certification.Certificate, _, _ []byte) error {
	return s.Err
}

// SignatureTrust is a TrustVerifier that accepts certificates signed with
// Sign.
type SignatureTrust struct{}

func (SignatureTrust) VerifyCertificate(c *certification.Certificate, canisterID, rootKey []byte) error {
	if c.Delegation != nil {
		return errors.New("delegations are not supported")
	}
	if len(canisterID) == 0 {
		return errors.New("empty canister ID")
	}
	if want := Sign(rootKey, c.Tree.Digest()); !bytes.Equal(c.Signature, want) {
		return fmt.Errorf("bad signature %x", c.Signature)
	}
	return nil
}

// Gzip compresses data into a gzip stream.
func Gzip(data []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Deflate compresses data into a raw DEFLATE stream.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(data); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
