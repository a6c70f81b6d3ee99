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

// assetserver is a binary that serves a demo application's assets the way
// its asset canister does, and reports the digest the canister must certify
// for them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/transparency-dev/httpcert/assets"
	"github.com/transparency-dev/httpcert/certification/hashtree"
	"k8s.io/klog/v2"
)

var (
	listen     = flag.String("listen", ":8090", "Address to set up HTTP server listening on")
	manifest   = flag.String("manifest", "", "YAML manifest listing the assets to serve. If unset, the demo application is loaded from dist_dir.")
	distDir    = flag.String("dist_dir", "", "Directory containing index.html and bundle.js of the demo application.")
	canisterID = flag.String("canister_id", "", "The canister ID injected into the demo application's index page.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		klog.Exitf("Run failed: %v", err)
	}
}

func run(ctx context.Context) error {
	table, err := tableFromFlags()
	if err != nil {
		return err
	}

	tree := table.HashTree()
	enc, err := hashtree.Encode(tree)
	if err != nil {
		return fmt.Errorf("failed to encode asset tree: %v", err)
	}
	d := tree.Digest()
	klog.Infof("Serving %d assets; certified data is %x", len(table), d)
	klog.V(1).Infof("Asset tree: %x", enc)

	s := assets.NewServer(table)
	hServer := &http.Server{
		Addr:    *listen,
		Handler: s.Handler(),
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hServer.Shutdown(sctx)
	}()
	klog.Infof("Started HTTP server listening on %s", *listen)
	if err := hServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %v", err)
	}
	return nil
}

func tableFromFlags() (assets.Table, error) {
	if *manifest != "" {
		return assets.LoadManifest(*manifest)
	}
	if *distDir == "" {
		return nil, errors.New("one of manifest or dist_dir must be provided")
	}
	if *canisterID == "" {
		return nil, errors.New("canister_id flag must be provided with dist_dir")
	}
	index, err := os.ReadFile(filepath.Join(*distDir, "index.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to read index page: %v", err)
	}
	bundle, err := os.ReadFile(filepath.Join(*distDir, "bundle.js"))
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %v", err)
	}
	return assets.DefaultTable(index, bundle, *canisterID), nil
}
