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

// api contains the names shared between servers that publish certified assets
// and the clients that verify them.
package api

const (
	// HeaderCertificate is the response header carrying the certificate and
	// the asset hash tree, formatted as
	//
	//	certificate=:<base64 certificate>:, tree=:<base64 tree>:
	HeaderCertificate = "IC-Certificate"

	// AssetsLabel is the top-level label in the asset tree under which the
	// SHA256 digest of each asset is stored, keyed by its URL path.
	AssetsLabel = "http_assets"

	// DefaultDocument is the asset that serves any path which is not
	// itself certified.
	DefaultDocument = "/index.html"

	// PathAlternativeOrigins is where an application lists the other
	// origins it allows to act on its behalf.
	PathAlternativeOrigins = "/.well-known/ii-alternative-origins"
)

// AlternativeOrigins is the document served at PathAlternativeOrigins.
type AlternativeOrigins struct {
	AlternativeOrigins []string `json:"alternativeOrigins"`
}
