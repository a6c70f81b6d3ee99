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

// proxy contains a reverse proxy that only passes on responses certified by
// the canister behind it.
package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/transparency-dev/httpcert/certification"
	"github.com/transparency-dev/httpcert/client"
	"k8s.io/klog/v2"
)

// ProxyOpts configures the proxy returned by NewProxy.
type ProxyOpts struct {
	// Upstream is the gateway serving the canister's assets.
	Upstream *url.URL
	// PathPrefix is stripped from incoming request paths before they are
	// sent upstream.
	PathPrefix string
	CanisterID []byte
	RootKey    []byte
	Verifier   *certification.Verifier
	// MaxBodySize bounds the upstream response body. Defaults to
	// client.DefaultMaxBodySize.
	MaxBodySize int64
}

// NewProxy returns a reverse proxy to opts.Upstream. Upstream responses are
// verified before being passed on, and any that fail are replaced with a
// 502 Bad Gateway.
func NewProxy(opts ProxyOpts) *httputil.ReverseProxy {
	rv := client.ResponseVerifier{
		Verifier:    opts.Verifier,
		CanisterID:  opts.CanisterID,
		RootKey:     opts.RootKey,
		MaxBodySize: opts.MaxBodySize,
	}
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			if opts.Upstream != nil {
				r.SetURL(opts.Upstream)
			}
			klog.V(2).Infof("Request for %s", r.In.URL.Path)
			p := strings.TrimPrefix(r.In.URL.Path, opts.PathPrefix)
			if !strings.HasPrefix(p, "/") {
				p = "/" + p
			}
			if opts.Upstream != nil {
				p = strings.TrimSuffix(opts.Upstream.Path, "/") + p
			}
			r.Out.URL.Path = p
			r.Out.URL.RawPath = ""
			// Only encodings the verifier can decode may be negotiated.
			if r.Out.Header == nil {
				r.Out.Header = http.Header{}
			}
			r.Out.Header.Set("Accept-Encoding", "gzip, deflate")
		},
		ModifyResponse: func(r *http.Response) error {
			if r.StatusCode != http.StatusOK {
				return fmt.Errorf("upstream returned status %d", r.StatusCode)
			}
			if opts.Verifier == nil {
				return errors.New("no verifier configured")
			}
			path := r.Request.URL.Path
			if opts.Upstream != nil {
				path = "/" + strings.TrimPrefix(strings.TrimPrefix(path, strings.TrimSuffix(opts.Upstream.Path, "/")), "/")
			}
			body, _, err := rv.ReadAndVerify(path, r)
			_ = r.Body.Close()
			if err != nil {
				return fmt.Errorf("response for %q failed verification: %v", path, err)
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header["Content-Length"] = []string{fmt.Sprint(len(body))}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			klog.Warningf("Rejecting response for %s: %v", r.URL.Path, err)
			http.Error(w, "upstream response could not be verified", http.StatusBadGateway)
		},
	}
}
