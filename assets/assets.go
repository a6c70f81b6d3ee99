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

// assets serves a table of static assets the way an asset canister does, and
// builds the hash tree that certifies them.
package assets

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/transparency-dev/httpcert/api"
	"github.com/transparency-dev/httpcert/certification/hashtree"
	"gopkg.in/yaml.v3"
)

// ContentType is the kind of content an asset holds.
type ContentType int

const (
	HTML ContentType = iota
	JS
	JSON
)

// MimeType returns the Content-Type header value for c.
func (c ContentType) MimeType() string {
	switch c {
	case HTML:
		return "text/html"
	case JS:
		return "text/javascript"
	case JSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// ParseContentType parses the name of a content type, as used in manifests.
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(s) {
	case "html":
		return HTML, nil
	case "js":
		return JS, nil
	case "json":
		return JSON, nil
	default:
		return 0, fmt.Errorf("unknown content type %q", s)
	}
}

// Asset is content served at a path, with the headers sent alongside it.
type Asset struct {
	Headers http.Header
	Body    []byte
}

// NewAsset returns an asset with the Content-Type header for ct.
func NewAsset(ct ContentType, body []byte) Asset {
	return Asset{
		Headers: http.Header{"Content-Type": {ct.MimeType()}},
		Body:    body,
	}
}

// Table maps URL paths to assets.
type Table map[string]Asset

// Response is the result of serving a request from a Table.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Serve looks up the asset for rawURL, ignoring any query string. Unknown
// paths get a 404.
func Serve(t Table, rawURL string) Response {
	p, _, _ := strings.Cut(rawURL, "?")
	headers := http.Header{"Access-Control-Allow-Origin": {"*"}}
	a, ok := t[p]
	if !ok {
		return Response{
			StatusCode: http.StatusNotFound,
			Headers:    headers,
			Body:       []byte(fmt.Sprintf("Asset %s not found.", p)),
		}
	}
	for k, v := range a.Headers {
		headers[k] = slices.Clone(v)
	}
	return Response{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       a.Body,
	}
}

const bundleScript = `<script defer="defer" src="bundle.js"></script>`

// InjectCanisterID returns indexHTML with a script defining canisterId
// inserted ahead of the bundle script tag.
func InjectCanisterID(indexHTML []byte, canisterID string) []byte {
	setup := fmt.Sprintf(`<script id="setupJs">var canisterId = '%s';</script>`, canisterID)
	return []byte(strings.ReplaceAll(string(indexHTML), bundleScript, setup+bundleScript))
}

// DefaultTable returns the assets of the demo application.
func DefaultTable(indexHTML, bundleJS []byte, canisterID string) Table {
	index := InjectCanisterID(indexHTML, canisterID)
	return Table{
		"/":                        NewAsset(HTML, index),
		api.DefaultDocument:        NewAsset(HTML, index),
		"/bundle.js":               NewAsset(JS, bundleJS),
		api.PathAlternativeOrigins: NewAsset(JSON, []byte(`{"alternativeOrigins":[]}`)),
	}
}

// HashTree returns the asset tree certifying the SHA256 of every asset in t.
func (t Table) HashTree() hashtree.HashTree {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	leaves := make([]hashtree.Node, len(paths))
	for i, p := range paths {
		d := sha256.Sum256(t[p].Body)
		leaves[i] = hashtree.Labeled{Label: hashtree.Label(p), Tree: hashtree.Leaf(d[:])}
	}
	return hashtree.NewHashTree(hashtree.Labeled{
		Label: hashtree.Label(api.AssetsLabel),
		Tree:  hashtree.Forks(leaves),
	})
}

// Manifest lists the files making up a Table.
type Manifest struct {
	Assets []ManifestEntry `yaml:"assets"`
}

// ManifestEntry is one asset in a Manifest. File is relative to the
// directory containing the manifest, unless absolute.
type ManifestEntry struct {
	Path        string `yaml:"path"`
	File        string `yaml:"file"`
	ContentType string `yaml:"content_type"`
}

// LoadManifest reads the YAML manifest at path and the files it lists.
func LoadManifest(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %v", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %q: %v", path, err)
	}
	dir := filepath.Dir(path)
	t := make(Table, len(m.Assets))
	for _, e := range m.Assets {
		if !strings.HasPrefix(e.Path, "/") {
			return nil, fmt.Errorf("asset path %q must start with /", e.Path)
		}
		if _, ok := t[e.Path]; ok {
			return nil, fmt.Errorf("asset path %q listed twice", e.Path)
		}
		ct, err := ParseContentType(e.ContentType)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %v", e.Path, err)
		}
		f := e.File
		if !filepath.IsAbs(f) {
			f = filepath.Join(dir, f)
		}
		body, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read asset %q: %v", e.Path, err)
		}
		t[e.Path] = NewAsset(ct, body)
	}
	return t, nil
}
