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

// certification verifies that an HTTP response body is the content a canister
// certified for the requested path.
//
// The verifier is given a certificate, signed by (a delegate of) a root key,
// and an asset hash tree. The certificate commits to the digest of the tree
// under the canister's certified data, and the tree maps URL paths to the
// SHA256 of the content served there. Neither the server nor the transport
// need be trusted: a response is only accepted if every link from the root
// key down to the body's digest checks out.
package certification

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/transparency-dev/httpcert/certification/hashtree"
	"k8s.io/klog/v2"
)

// Failures returned by Verifier.Verify wrap exactly one of these.
var (
	// ErrDecode means the certificate or tree could not be decoded.
	ErrDecode = errors.New("malformed certificate or tree")
	// ErrTrust means the certificate is not signed by the root key, or does
	// not certify data for the canister.
	ErrTrust = errors.New("certificate not trusted")
	// ErrWitnessMismatch means the certified data is not the digest of the tree.
	ErrWitnessMismatch = errors.New("certified data does not match tree")
	// ErrPathUnresolved means neither the path nor the default document is
	// certified by the tree.
	ErrPathUnresolved = errors.New("path not certified")
	// ErrBodyDecoding means the body could not be decompressed.
	ErrBodyDecoding = errors.New("failed to decode body")
	// ErrDecompressionBound means the body decompressed to more data than
	// allowed.
	ErrDecompressionBound = errors.New("decompressed body too large")
	// ErrContentMismatch means the body is not the certified content.
	ErrContentMismatch = errors.New("body does not match certified digest")
)

// TrustVerifier checks the signature chain of a certificate.
//
// Implementations must verify the signature over the certificate's tree
// against rootKey, following any delegation, and must check that a delegated
// key is authorised for canisterID.
type TrustVerifier interface {
	VerifyCertificate(c *Certificate, canisterID []byte, rootKey []byte) error
}

// Request holds everything needed to verify one response. All fields are
// untrusted apart from RootKey.
type Request struct {
	// Certificate and Tree are the encoded certificate and asset tree that
	// accompanied the response.
	Certificate []byte
	Tree        []byte
	// CanisterID is the raw principal of the canister that served the
	// response.
	CanisterID []byte
	// Path is the URL path that was requested.
	Path string
	// Body is the response body as received, and Encoding is its declared
	// Content-Encoding.
	Body     []byte
	Encoding Encoding
	// RootKey is the public key that all trust derives from.
	RootKey []byte
}

// Verifier checks responses against their certification. It holds no state
// between calls and is safe for concurrent use.
type Verifier struct {
	trust TrustVerifier
	opts  Options
}

// NewVerifier returns a Verifier that delegates signature checks to tv.
func NewVerifier(tv TrustVerifier, opts Options) *Verifier {
	return &Verifier{
		trust: tv,
		opts:  opts,
	}
}

// ValidateCertification returns true only if Verify succeeds.
func (v *Verifier) ValidateCertification(req Request) bool {
	if err := v.Verify(req); err != nil {
		klog.V(1).Infof("Rejected response for %q: %v", req.Path, err)
		return false
	}
	return true
}

// Verify checks that req.Body is the content certified for req.Path. Each
// stage must pass before the next is attempted, and the first failure is
// returned.
func (v *Verifier) Verify(req Request) error {
	cert, err := DecodeCertificate(req.Certificate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	tree, err := hashtree.Decode(req.Tree)
	if err != nil {
		return fmt.Errorf("%w: failed to decode tree: %v", ErrDecode, err)
	}

	if err := v.verifyTrust(cert, req.CanisterID, req.RootKey); err != nil {
		return fmt.Errorf("%w: %v", ErrTrust, err)
	}
	witness, err := cert.LookupValue(CertifiedDataPath(req.CanisterID)...)
	if err != nil {
		return fmt.Errorf("%w: failed to find certified data: %v", ErrTrust, err)
	}
	digest := tree.Digest()
	if !bytes.Equal(witness, digest[:]) {
		klog.V(2).Infof("Witness (%x) did not match digest (%x)", witness, digest)
		return fmt.Errorf("%w: witness %x, tree digest %x", ErrWitnessMismatch, witness, digest)
	}

	want, err := ResolveExpectedDigest(tree, req.Path)
	if err != nil {
		return err
	}
	got, err := v.opts.HashBody(req.Body, req.Encoding)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: body %s digest %x, certified %x", ErrContentMismatch, req.Encoding, got, want)
	}
	return nil
}

// verifyTrust calls the TrustVerifier, converting any panic while it parses
// the untrusted certificate into an error.
func (v *Verifier) verifyTrust(cert *Certificate, canisterID, rootKey []byte) (err error) {
	if v.trust == nil {
		return errors.New("no trust verifier configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic detected verifying certificate: %v", r)
		}
	}()
	return v.trust.VerifyCertificate(cert, canisterID, rootKey)
}
