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

package certification_test

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/transparency-dev/httpcert/api"
	"github.com/transparency-dev/httpcert/certification"
	"github.com/transparency-dev/httpcert/certification/hashtree"
	"github.com/transparency-dev/httpcert/internal/testonly"
	"golang.org/x/sync/errgroup"
)

var testAssets = map[string][]byte{
	"/":                         []byte("<html><body>index</body></html>"),
	"/index.html":               []byte("<html><body>index</body></html>"),
	"/bundle.js":                []byte("console.log('hello, world');"),
	api.PathAlternativeOrigins: []byte(`{"alternativeOrigins":[]}`),
}

// fixtureFromTree certifies an arbitrary asset tree for the test canister.
func fixtureFromTree(tree hashtree.HashTree) testonly.Fixture {
	d := tree.Digest()
	return testonly.Fixture{
		Assets:      map[string][]byte{},
		Tree:        testonly.MustEncodeTree(tree),
		Certificate: testonly.MustEncodeCertificate(testonly.StateTree(testonly.CanisterID, d[:])),
	}
}

type panicTrust struct{}

func (panicTrust) VerifyCertificate(_ *certification.Certificate, _, _ []byte) error {
	panic("malformed key")
}

func TestVerify(t *testing.T) {
	good := testonly.NewFixture(testAssets)
	noIndex := testonly.NewFixture(map[string][]byte{
		"/bundle.js": testAssets["/bundle.js"],
	})
	forkAtPath := fixtureFromTree(hashtree.NewHashTree(testonly.Labels(map[string]hashtree.Node{
		api.AssetsLabel: testonly.Labels(map[string]hashtree.Node{
			"/dir":        testonly.Labels(map[string]hashtree.Node{"child": hashtree.Leaf("x")}),
			"/index.html": hashtree.Leaf(make([]byte, 32)),
		}),
	})))
	shortDigest := fixtureFromTree(hashtree.NewHashTree(testonly.Labels(map[string]hashtree.Node{
		api.AssetsLabel: testonly.Labels(map[string]hashtree.Node{
			"/bundle.js": hashtree.Leaf("short"),
		}),
	})))
	indexDigest := sha256.Sum256(testAssets["/index.html"])
	prunedBundle := fixtureFromTree(hashtree.NewHashTree(testonly.Labels(map[string]hashtree.Node{
		api.AssetsLabel: hashtree.Fork{
			LeftTree:  hashtree.Pruned(sha256.Sum256([]byte("pruned assets"))),
			RightTree: hashtree.Labeled{Label: hashtree.Label(api.DefaultDocument), Tree: hashtree.Leaf(indexDigest[:])},
		},
	})))
	bundle := testAssets["/bundle.js"]
	gz := testonly.Gzip(bundle)

	testCases := []struct {
		desc    string
		trust   certification.TrustVerifier
		req     certification.Request
		mutate  func(r *certification.Request)
		wantErr error
	}{
		{
			desc: "identity body",
			req:  good.Request("/bundle.js"),
		}, {
			desc: "default document",
			req:  good.Request("/index.html"),
		}, {
			desc: "gzip body",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Body, r.Encoding = gz, certification.EncodingGzip
			},
		}, {
			desc: "deflate body",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Body, r.Encoding = testonly.Deflate(bundle), certification.EncodingDeflate
			},
		}, {
			desc: "uncertified path served by default document",
			req:  good.Request("/app/route/42"),
		}, {
			desc: "pruned path served by default document",
			req:  prunedBundle.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Body = testAssets["/index.html"]
			},
		}, {
			desc: "uncertified path without default document",
			req:  noIndex.Request("/app/route/42"),
			mutate: func(r *certification.Request) {
				r.Body = testAssets["/index.html"]
			},
			wantErr: certification.ErrPathUnresolved,
		}, {
			desc: "certified path does not fall back",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Body = testAssets["/index.html"]
			},
			wantErr: certification.ErrContentMismatch,
		}, {
			desc:    "path leads to a subtree",
			req:     forkAtPath.Request("/dir"),
			wantErr: certification.ErrPathUnresolved,
		}, {
			desc:    "certified value is not a digest",
			req:     shortDigest.Request("/bundle.js"),
			wantErr: certification.ErrPathUnresolved,
		}, {
			desc: "tampered body",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Body = []byte("console.log('pwned');")
			},
			wantErr: certification.ErrContentMismatch,
		}, {
			desc: "compressed body declared identity",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Body = gz
			},
			wantErr: certification.ErrContentMismatch,
		}, {
			desc: "body declared gzip but not compressed",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Encoding = certification.EncodingGzip
			},
			wantErr: certification.ErrBodyDecoding,
		}, {
			desc: "truncated gzip body",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Body, r.Encoding = gz[:len(gz)-10], certification.EncodingGzip
			},
			wantErr: certification.ErrBodyDecoding,
		}, {
			desc: "malformed certificate",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Certificate = []byte("not a certificate")
			},
			wantErr: certification.ErrDecode,
		}, {
			desc: "empty certificate",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Certificate = nil
			},
			wantErr: certification.ErrDecode,
		}, {
			desc: "malformed tree",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Tree = []byte{0x82, 0x07, 0x00}
			},
			wantErr: certification.ErrDecode,
		}, {
			desc:    "trust verifier rejects",
			trust:   testonly.StaticTrust{Err: errors.New("bad signature")},
			req:     good.Request("/bundle.js"),
			wantErr: certification.ErrTrust,
		}, {
			desc:    "trust verifier panics",
			trust:   panicTrust{},
			req:     good.Request("/bundle.js"),
			wantErr: certification.ErrTrust,
		}, {
			desc: "wrong root key",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.RootKey = bytes.Repeat([]byte{0xcd}, 96)
			},
			wantErr: certification.ErrTrust,
		}, {
			desc: "no certified data for canister",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.CanisterID = []byte{0, 0, 0, 0, 0, 0, 0, 8, 1, 1}
			},
			wantErr: certification.ErrTrust,
		}, {
			desc: "witness does not match tree",
			req:  good.Request("/bundle.js"),
			mutate: func(r *certification.Request) {
				r.Tree = noIndex.Tree
			},
			wantErr: certification.ErrWitnessMismatch,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			trust := tC.trust
			if trust == nil {
				trust = testonly.SignatureTrust{}
			}
			v := certification.NewVerifier(trust, certification.Options{})
			req := tC.req
			if tC.mutate != nil {
				tC.mutate(&req)
			}

			err := v.Verify(req)
			if tC.wantErr == nil {
				if err != nil {
					t.Fatalf("Verify: %v", err)
				}
			} else if !errors.Is(err, tC.wantErr) {
				t.Fatalf("got error %v, want %v", err, tC.wantErr)
			}
			if got, want := v.ValidateCertification(req), tC.wantErr == nil; got != want {
				t.Errorf("ValidateCertification = %t, want %t", got, want)
			}
		})
	}
}

func TestVerify_noTrustVerifier(t *testing.T) {
	v := certification.NewVerifier(nil, certification.Options{})
	if err := v.Verify(testonly.NewFixture(testAssets).Request("/")); !errors.Is(err, certification.ErrTrust) {
		t.Errorf("got error %v, want %v", err, certification.ErrTrust)
	}
}

func TestVerify_decompressionBound(t *testing.T) {
	small := bytes.Repeat([]byte("a"), 256)
	large := bytes.Repeat([]byte("a"), 8<<10)
	f := testonly.NewFixture(map[string][]byte{
		"/small.txt": small,
		"/large.txt": large,
	})
	// 16 chunks of 64 bytes allow 1 KiB of decompressed output.
	bound := certification.Options{ChunkSize: 64, MaxChunks: 16}
	// 4 chunks of 64 bytes are exactly enough for small.
	exact := certification.Options{ChunkSize: 64, MaxChunks: 4}
	short := certification.Options{ChunkSize: 64, MaxChunks: 3}

	testCases := []struct {
		desc    string
		opts    certification.Options
		path    string
		body    []byte
		enc     certification.Encoding
		wantErr error
	}{
		{desc: "gzip within bound", opts: bound, path: "/small.txt", body: testonly.Gzip(small), enc: certification.EncodingGzip},
		{desc: "deflate within bound", opts: bound, path: "/small.txt", body: testonly.Deflate(small), enc: certification.EncodingDeflate},
		{desc: "identity is not bounded", opts: bound, path: "/large.txt", body: large, enc: certification.EncodingIdentity},
		{desc: "gzip over bound", opts: bound, path: "/large.txt", body: testonly.Gzip(large), enc: certification.EncodingGzip, wantErr: certification.ErrDecompressionBound},
		{desc: "deflate over bound", opts: bound, path: "/large.txt", body: testonly.Deflate(large), enc: certification.EncodingDeflate, wantErr: certification.ErrDecompressionBound},
		{desc: "gzip ending at bound", opts: exact, path: "/small.txt", body: testonly.Gzip(small), enc: certification.EncodingGzip},
		{desc: "deflate ending at bound", opts: exact, path: "/small.txt", body: testonly.Deflate(small), enc: certification.EncodingDeflate},
		{desc: "gzip one chunk over bound", opts: short, path: "/small.txt", body: testonly.Gzip(small), enc: certification.EncodingGzip, wantErr: certification.ErrDecompressionBound},
		{desc: "deflate one chunk over bound", opts: short, path: "/small.txt", body: testonly.Deflate(small), enc: certification.EncodingDeflate, wantErr: certification.ErrDecompressionBound},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			v := certification.NewVerifier(testonly.SignatureTrust{}, tC.opts)
			req := f.Request(tC.path)
			req.Body, req.Encoding = tC.body, tC.enc
			if err := v.Verify(req); !errors.Is(err, tC.wantErr) {
				t.Errorf("got error %v, want %v", err, tC.wantErr)
			}
		})
	}
}

func TestVerify_byteFlips(t *testing.T) {
	f := testonly.NewFixture(testAssets)
	v := certification.NewVerifier(testonly.SignatureTrust{}, certification.Options{})
	origCert, err := certification.DecodeCertificate(f.Certificate)
	if err != nil {
		t.Fatal(err)
	}
	origTree, err := hashtree.Decode(f.Tree)
	if err != nil {
		t.Fatal(err)
	}

	for i := range f.Certificate {
		for _, mask := range []byte{0x01, 0x80} {
			req := f.Request("/bundle.js")
			req.Certificate = flip(f.Certificate, i, mask)
			if !v.ValidateCertification(req) {
				continue
			}
			// Accepting is only correct if the change did not alter what
			// the certificate says.
			c, err := certification.DecodeCertificate(req.Certificate)
			if err != nil {
				t.Fatalf("accepted certificate does not decode: %v", err)
			}
			if c.Tree.Digest() != origCert.Tree.Digest() || !bytes.Equal(c.Signature, origCert.Signature) {
				t.Errorf("flipping certificate byte %d with %#x was accepted", i, mask)
			}
		}
	}

	for i := range f.Tree {
		for _, mask := range []byte{0x01, 0x80} {
			req := f.Request("/bundle.js")
			req.Tree = flip(f.Tree, i, mask)
			if !v.ValidateCertification(req) {
				continue
			}
			tr, err := hashtree.Decode(req.Tree)
			if err != nil {
				t.Fatalf("accepted tree does not decode: %v", err)
			}
			if diff := cmp.Diff(origTree, tr); diff != "" {
				t.Errorf("flipping tree byte %d with %#x was accepted (-orig +got):\n%s", i, mask, diff)
			}
		}
	}
}

func flip(b []byte, i int, mask byte) []byte {
	c := append([]byte(nil), b...)
	c[i] ^= mask
	return c
}

func TestValidateCertification_concurrentAndRepeatable(t *testing.T) {
	f := testonly.NewFixture(testAssets)
	v := certification.NewVerifier(testonly.SignatureTrust{}, certification.Options{ChunkSize: 64, MaxChunks: 64})
	good := f.Request("/bundle.js")
	good.Body, good.Encoding = testonly.Gzip(good.Body), certification.EncodingGzip
	bad := f.Request("/bundle.js")
	bad.Body = []byte("tampered")

	var eg errgroup.Group
	for range 32 {
		eg.Go(func() error {
			for range 20 {
				if !v.ValidateCertification(good) {
					return errors.New("valid response rejected")
				}
				if v.ValidateCertification(bad) {
					return errors.New("tampered response accepted")
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
}
