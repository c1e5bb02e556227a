// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names the outer encoding of an artifact.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// Magic numbers at offset zero of each supported stream format.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// DetectCompression inspects the first bytes of an artifact.
// Anything unrecognized is assumed to be an uncompressed tar stream;
// the tar reader rejects it later if it is not.
func DetectCompression(header []byte) Compression {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(header, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(header, lz4Magic):
		return CompressionLZ4
	}
	return CompressionNone
}

// decompress wraps source in the decoder matching its leading bytes.
// The returned close function releases decoder resources; it does not
// close source.
func decompress(source io.Reader) (io.Reader, Compression, func(), error) {
	buffered := bufio.NewReader(source)
	header, err := buffered.Peek(4)
	if err != nil && err != io.EOF {
		return nil, "", nil, fmt.Errorf("reading archive header: %w", err)
	}
	if len(header) == 0 {
		return nil, "", nil, fmt.Errorf("archive is empty")
	}

	compression := DetectCompression(header)
	switch compression {
	case CompressionGzip:
		reader, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, compression, nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return reader, compression, func() { reader.Close() }, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, compression, nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return decoder, compression, decoder.Close, nil
	case CompressionLZ4:
		return lz4.NewReader(buffered), compression, func() {}, nil
	}
	return buffered, compression, func() {}, nil
}
