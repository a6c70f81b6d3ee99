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

// icagent verifies certificate signatures using the agent-go implementation
// of the Internet Computer's BLS signature scheme.
package icagent

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	agentcert "github.com/aviate-labs/agent-go/certification"
	"github.com/aviate-labs/agent-go/principal"
	"github.com/transparency-dev/httpcert/certification"
)

// MainnetRootKey is the hex encoded, DER wrapped root public key of the
// Internet Computer mainnet.
const MainnetRootKey = agentcert.RootKey

// RootKeySize is the size of a raw BLS12-381 G2 public key.
const RootKeySize = 96

// ParseRootKey decodes a hex encoded root key, either raw or DER wrapped, and
// returns it DER wrapped.
func ParseRootKey(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to decode root key: %v", err)
	}
	return derRootKey(b)
}

// derRootKey wraps a raw key in DER, and checks that a DER key holds a BLS
// public key.
func derRootKey(key []byte) ([]byte, error) {
	if len(key) == RootKeySize {
		der, err := agentcert.PublicBLSKeyToDER(key)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap root key: %v", err)
		}
		return der, nil
	}
	if _, err := agentcert.PublicBLSKeyFromDER(key); err != nil {
		return nil, fmt.Errorf("root key is neither %d raw bytes nor a DER encoded BLS key: %v", RootKeySize, err)
	}
	return key, nil
}

// ParseCanisterID decodes the textual form of a principal and returns its raw
// bytes.
func ParseCanisterID(s string) ([]byte, error) {
	p, err := principal.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to decode canister ID %q: %v", s, err)
	}
	return p.Raw, nil
}

// FormatCanisterID returns the textual form of a raw principal.
func FormatCanisterID(raw []byte) string {
	return principal.Principal{Raw: raw}.String()
}

// Verifier is a certification.TrustVerifier that checks BLS signatures and
// delegations.
type Verifier struct{}

var _ certification.TrustVerifier = Verifier{}

// VerifyCertificate checks the signature on c against rootKey, which may be
// raw or DER wrapped. If c carries a delegation, the delegation certificate is
// verified against rootKey and must authorise the subnet for canisterID.
func (Verifier) VerifyCertificate(c *certification.Certificate, canisterID, rootKey []byte) error {
	der, err := derRootKey(rootKey)
	if err != nil {
		return err
	}
	ac, err := agentCertificate(c)
	if err != nil {
		return err
	}
	if err := agentcert.VerifyCertificate(ac, principal.Principal{Raw: canisterID}, der); err != nil {
		return fmt.Errorf("failed to verify certificate signature: %v", err)
	}
	return nil
}

// agentCertificate converts c to agent-go's type. The tree is shared rather
// than decoded again, so the signature is checked over the same nodes that
// later lookups use.
func agentCertificate(c *certification.Certificate) (agentcert.Certificate, error) {
	ac := agentcert.Certificate{
		Tree:      c.Tree.Agent(),
		Signature: c.Signature,
	}
	if c.Delegation == nil {
		return ac, nil
	}
	dc, err := certification.DecodeCertificate(c.Delegation.Certificate)
	if err != nil {
		return agentcert.Certificate{}, fmt.Errorf("failed to decode delegation certificate: %v", err)
	}
	if dc.Delegation != nil {
		return agentcert.Certificate{}, errors.New("delegation certificate is itself delegated")
	}
	ac.Delegation = &agentcert.Delegation{
		SubnetId: principal.Principal{Raw: c.Delegation.SubnetID},
		Certificate: agentcert.Certificate{
			Tree:      dc.Tree.Agent(),
			Signature: dc.Signature,
		},
	}
	return ac, nil
}
