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

// client contains a library for fetching certified assets over HTTP and
// verifying them before they are returned to the caller.
package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/transparency-dev/httpcert/api"
	"github.com/transparency-dev/httpcert/certification"
	"k8s.io/klog/v2"
)

// DefaultMaxBodySize is the largest response body read when ClientOpts does
// not set one.
const DefaultMaxBodySize = 32 << 20

// ErrBodyTooLarge is returned when a response body exceeds the configured
// maximum size.
var ErrBodyTooLarge = errors.New("response body too large")

// ParseCertificateHeader extracts the certificate and tree from the value of
// an IC-Certificate header. Unknown fields are ignored.
func ParseCertificateHeader(v string) (cert, tree []byte, err error) {
	for _, field := range strings.Split(v, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			continue
		}
		var dst *[]byte
		switch name = strings.TrimSpace(name); name {
		case "certificate":
			dst = &cert
		case "tree":
			dst = &tree
		default:
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) < 2 || value[0] != ':' || value[len(value)-1] != ':' {
			return nil, nil, fmt.Errorf("field %q is not a byte sequence", name)
		}
		b, err := base64.StdEncoding.DecodeString(value[1 : len(value)-1])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode field %q: %v", name, err)
		}
		*dst = b
	}
	if cert == nil {
		return nil, nil, errors.New("header has no certificate")
	}
	if tree == nil {
		return nil, nil, errors.New("header has no tree")
	}
	return cert, tree, nil
}

// ResponseVerifier checks HTTP responses served by one canister.
type ResponseVerifier struct {
	Verifier    *certification.Verifier
	CanisterID  []byte
	RootKey     []byte
	MaxBodySize int64
}

// ReadAndVerify reads the body of resp and checks that it is the content
// certified for path. The body is returned as received, along with its
// encoding. resp.Body is not closed.
func (rv ResponseVerifier) ReadAndVerify(path string, resp *http.Response) ([]byte, certification.Encoding, error) {
	limit := rv.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %v", err)
	}
	if int64(len(body)) > limit {
		return nil, 0, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}

	hdr := resp.Header.Get(api.HeaderCertificate)
	if hdr == "" {
		return nil, 0, fmt.Errorf("%w: response has no %s header", certification.ErrDecode, api.HeaderCertificate)
	}
	cert, tree, err := ParseCertificateHeader(hdr)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to parse %s header: %v", certification.ErrDecode, api.HeaderCertificate, err)
	}
	enc, err := certification.ParseEncoding(resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", certification.ErrBodyDecoding, err)
	}

	if err := rv.Verifier.Verify(certification.Request{
		Certificate: cert,
		Tree:        tree,
		CanisterID:  rv.CanisterID,
		Path:        path,
		Body:        body,
		Encoding:    enc,
		RootKey:     rv.RootKey,
	}); err != nil {
		return nil, 0, err
	}
	return body, enc, nil
}

// ClientOpts configures a Client. The zero value is usable.
type ClientOpts struct {
	// HTTPClient is used for requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// MaxBodySize is the largest body read from a response. Defaults to
	// DefaultMaxBodySize.
	MaxBodySize int64
}

// Client fetches assets from a canister and only returns responses that are
// certified.
type Client struct {
	base *url.URL
	hc   *http.Client
	rv   ResponseVerifier
}

// Response is a verified response.
type Response struct {
	StatusCode int
	Header     http.Header
	// Body is the body as served, still compressed if Encoding says so.
	Body     []byte
	Encoding certification.Encoding
}

// NewClient returns a client for the canister serving at baseURL.
func NewClient(baseURL string, canisterID, rootKey []byte, v *certification.Verifier, opts ClientOpts) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %v", err)
	}
	if v == nil {
		return nil, errors.New("verifier must not be nil")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		base: u,
		hc:   hc,
		rv: ResponseVerifier{
			Verifier:    v,
			CanisterID:  canisterID,
			RootKey:     rootKey,
			MaxBodySize: opts.MaxBodySize,
		},
	}, nil
}

// Get fetches path and verifies the response.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	// Setting this stops the transport from transparently decompressing
	// gzip, so the body is verified as it was served.
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	klog.V(1).Infof("Making request to %q", u.String())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get URL %q: %v", u, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("got non-200 status code: %d", resp.StatusCode)
	}

	p := "/" + strings.TrimPrefix(path, "/")
	body, enc, err := c.rv.ReadAndVerify(p, resp)
	if err != nil {
		return nil, fmt.Errorf("response for %q failed verification: %w", p, err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Encoding:   enc,
	}, nil
}
