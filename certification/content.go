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

package certification

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// Encoding is the transport compression applied to a response body.
type Encoding int

const (
	// EncodingIdentity means the body is sent as is.
	EncodingIdentity Encoding = iota
	// EncodingGzip means the body is a gzip stream (RFC 1952).
	EncodingGzip
	// EncodingDeflate means the body is a raw DEFLATE stream (RFC 1951).
	EncodingDeflate
)

func (e Encoding) String() string {
	switch e {
	case EncodingIdentity:
		return "identity"
	case EncodingGzip:
		return "gzip"
	case EncodingDeflate:
		return "deflate"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding parses the value of a Content-Encoding header.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "identity":
		return EncodingIdentity, nil
	case "gzip":
		return EncodingGzip, nil
	case "deflate":
		return EncodingDeflate, nil
	default:
		return 0, fmt.Errorf("unsupported content encoding %q", s)
	}
}

const (
	// DefaultChunkSize is the size of the buffer that decompressed output is
	// read into.
	DefaultChunkSize = 1024
	// DefaultMaxChunks is the number of reads after which decompression is
	// abandoned. With DefaultChunkSize this allows bodies of up to 10 MiB.
	DefaultMaxChunks = 10240
)

// Options bounds the work done decompressing a response body. Together,
// ChunkSize * MaxChunks is the most decompressed data that will be hashed.
type Options struct {
	// ChunkSize is the size of the scratch buffer used for decompression.
	// Zero means DefaultChunkSize.
	ChunkSize int
	// MaxChunks is the maximum number of reads from the decompressor.
	// Zero means DefaultMaxChunks.
	MaxChunks int
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

func (o Options) maxChunks() int {
	if o.MaxChunks <= 0 {
		return DefaultMaxChunks
	}
	return o.MaxChunks
}

// HashBody returns the SHA256 of body after reversing enc.
//
// Compressed bodies are decoded incrementally and never held in memory in
// full. If the decompressor is still producing output after MaxChunks reads
// an error wrapping ErrDecompressionBound is returned. A stream that cannot
// be decoded returns an error wrapping ErrBodyDecoding.
func (o Options) HashBody(body []byte, enc Encoding) ([sha256.Size]byte, error) {
	var r io.Reader
	switch enc {
	case EncodingIdentity:
		return sha256.Sum256(body), nil
	case EncodingGzip:
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return [sha256.Size]byte{}, fmt.Errorf("%w: failed to read gzip header: %v", ErrBodyDecoding, err)
		}
		defer func() {
			_ = zr.Close()
		}()
		r = zr
	case EncodingDeflate:
		fr := flate.NewReader(bytes.NewReader(body))
		defer func() {
			_ = fr.Close()
		}()
		r = fr
	default:
		return [sha256.Size]byte{}, fmt.Errorf("%w: unsupported encoding %s", ErrBodyDecoding, enc)
	}
	return o.hashStream(r)
}

func (o Options) hashStream(r io.Reader) ([sha256.Size]byte, error) {
	h := sha256.New()
	chunk := make([]byte, o.chunkSize())
	for range o.maxChunks() {
		n, err := r.Read(chunk)
		h.Write(chunk[:n])
		if err == io.EOF {
			return [sha256.Size]byte(h.Sum(nil)), nil
		}
		if err != nil {
			return [sha256.Size]byte{}, fmt.Errorf("%w: %v", ErrBodyDecoding, err)
		}
	}

	// Out of reads: the body is only acceptable if nothing is left.
	var rest [1]byte
	n, err := io.ReadAtLeast(r, rest[:], 1)
	switch {
	case n > 0:
		return [sha256.Size]byte{}, fmt.Errorf("%w: more than %d chunks of %d bytes", ErrDecompressionBound, o.maxChunks(), o.chunkSize())
	case err == io.EOF:
		return [sha256.Size]byte(h.Sum(nil)), nil
	default:
		return [sha256.Size]byte{}, fmt.Errorf("%w: %v", ErrBodyDecoding, err)
	}
}
