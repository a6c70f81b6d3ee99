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

// certverify is a binary that fetches assets from a canister and checks that
// each response is certified for the path it was served at.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/transparency-dev/httpcert/certification"
	"github.com/transparency-dev/httpcert/certification/icagent"
	"github.com/transparency-dev/httpcert/client"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	baseURL     = flag.String("base_url", "", "The base URL the canister's assets are served from, e.g. https://<canister_id>.icp0.io")
	canisterID  = flag.String("canister_id", "", "The ID of the canister serving the assets.")
	rootKey     = flag.String("root_key", icagent.MainnetRootKey, "Hex encoded root public key, raw or DER. Defaults to the mainnet key.")
	paths       = flag.String("paths", "/", "Comma separated list of paths to fetch and verify.")
	chunkSize   = flag.Int("chunk_size", certification.DefaultChunkSize, "Size of each chunk read while decompressing a body.")
	maxChunks   = flag.Int("max_chunks", certification.DefaultMaxChunks, "Maximum number of chunks a body may decompress to.")
	concurrency = flag.Int("concurrency", 4, "Maximum number of paths fetched at once.")
	timeout     = flag.Duration("timeout", 30*time.Second, "Timeout for fetching all paths.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx); err != nil {
		klog.Exitf("Run failed: %v", err)
	}
}

func run(ctx context.Context) error {
	if *baseURL == "" {
		return errors.New("base_url flag must be provided")
	}
	if *canisterID == "" {
		return errors.New("canister_id flag must be provided")
	}
	cid, err := icagent.ParseCanisterID(*canisterID)
	if err != nil {
		return err
	}
	rk, err := icagent.ParseRootKey(*rootKey)
	if err != nil {
		return err
	}

	v := certification.NewVerifier(icagent.Verifier{}, certification.Options{
		ChunkSize: *chunkSize,
		MaxChunks: *maxChunks,
	})
	c, err := client.NewClient(*baseURL, cid, rk, v, client.ClientOpts{})
	if err != nil {
		return fmt.Errorf("failed to create client: %v", err)
	}

	var failed atomic.Int32
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(*concurrency)
	for _, p := range strings.Split(*paths, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		eg.Go(func() error {
			resp, err := c.Get(ctx, p)
			if err != nil {
				failed.Add(1)
				fmt.Printf("FAIL %s: %v\n", p, err)
				return nil
			}
			fmt.Printf("OK   %s (%d bytes, %s)\n", p, len(resp.Body), resp.Encoding)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d path(s) failed verification", n)
	}
	return nil
}
