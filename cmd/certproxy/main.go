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

// certproxy is a binary that launches a local proxy in front of a canister's
// HTTP gateway, passing on only those responses that are certified.
package main

import (
	"errors"
	"flag"
	"net/http"
	"net/url"

	"github.com/transparency-dev/httpcert/certification"
	"github.com/transparency-dev/httpcert/certification/icagent"
	"github.com/transparency-dev/httpcert/proxy"
	"k8s.io/klog/v2"
)

var (
	listen      = flag.String("listen", ":8089", "Address to set up HTTP server listening on")
	upstream    = flag.String("upstream", "", "Base URL of the gateway serving the canister, e.g. https://<canister_id>.icp0.io")
	pathPrefix  = flag.String("path_prefix", "", "Prefix stripped from request paths before they are sent upstream.")
	canisterID  = flag.String("canister_id", "", "The ID of the canister serving the assets.")
	rootKey     = flag.String("root_key", icagent.MainnetRootKey, "Hex encoded root public key, raw or DER. Defaults to the mainnet key.")
	maxBodySize = flag.Int64("max_body_size", 0, "Largest upstream body accepted, in bytes. Zero uses the default.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	opts, err := optsFromFlags()
	if err != nil {
		klog.Exitf("Invalid flags: %v", err)
	}
	p := proxy.NewProxy(opts)
	klog.Infof("Proxying certified assets from %s on %s", *upstream, *listen)
	if err := http.ListenAndServe(*listen, p); err != nil {
		klog.Exitf("ListenAndServe: %v", err)
	}
}

func optsFromFlags() (proxy.ProxyOpts, error) {
	if *upstream == "" {
		return proxy.ProxyOpts{}, errors.New("upstream flag must be provided")
	}
	u, err := url.Parse(*upstream)
	if err != nil {
		return proxy.ProxyOpts{}, err
	}
	if *canisterID == "" {
		return proxy.ProxyOpts{}, errors.New("canister_id flag must be provided")
	}
	cid, err := icagent.ParseCanisterID(*canisterID)
	if err != nil {
		return proxy.ProxyOpts{}, err
	}
	rk, err := icagent.ParseRootKey(*rootKey)
	if err != nil {
		return proxy.ProxyOpts{}, err
	}
	return proxy.ProxyOpts{
		Upstream:    u,
		PathPrefix:  *pathPrefix,
		CanisterID:  cid,
		RootKey:     rk,
		Verifier:    certification.NewVerifier(icagent.Verifier{}, certification.Options{}),
		MaxBodySize: *maxBodySize,
	}, nil
}
