// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the outer encoding of a test tarball.
type Compression string

const (
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
	LZ4  Compression = "lz4"
	None Compression = "none"
)

// Entry is one member of a test tarball. A zero Typeflag means a
// regular file; Mode defaults to 0644 for files and 0755 for
// directories.
type Entry struct {
	Name     string
	Body     string
	Mode     int64
	Typeflag byte
	Linkname string
}

// Files converts a path→content map into regular-file entries sorted
// by path.
func Files(files map[string]string) []Entry {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Body: files[name]})
	}
	return entries
}

// Tarball returns the bytes of a tar archive holding entries, encoded
// with compression.
func Tarball(t *testing.T, compression Compression, entries ...Entry) []byte {
	t.Helper()

	var archive bytes.Buffer
	writer := tar.NewWriter(&archive)
	for _, entry := range entries {
		header := &tar.Header{
			Name:     entry.Name,
			Mode:     entry.Mode,
			Typeflag: entry.Typeflag,
			Linkname: entry.Linkname,
		}
		if header.Typeflag == 0 {
			header.Typeflag = tar.TypeReg
		}
		if header.Mode == 0 {
			header.Mode = 0o644
			if header.Typeflag == tar.TypeDir {
				header.Mode = 0o755
			}
		}
		if header.Typeflag == tar.TypeReg {
			header.Size = int64(len(entry.Body))
		}
		if err := writer.WriteHeader(header); err != nil {
			t.Fatalf("writing tar header %s: %v", entry.Name, err)
		}
		if header.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(writer, entry.Body); err != nil {
				t.Fatalf("writing tar body %s: %v", entry.Name, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}

	var output bytes.Buffer
	var compressor io.WriteCloser
	switch compression {
	case Gzip, "":
		compressor = gzip.NewWriter(&output)
	case Zstd:
		encoder, err := zstd.NewWriter(&output)
		if err != nil {
			t.Fatalf("creating zstd writer: %v", err)
		}
		compressor = encoder
	case LZ4:
		compressor = lz4.NewWriter(&output)
	case None:
		return archive.Bytes()
	default:
		t.Fatalf("unknown compression %q", compression)
	}
	if _, err := compressor.Write(archive.Bytes()); err != nil {
		t.Fatalf("compressing tarball: %v", err)
	}
	if err := compressor.Close(); err != nil {
		t.Fatalf("closing compressor: %v", err)
	}
	return output.Bytes()
}

// WriteTarball writes a gzip-compressed tarball of entries to path,
// creating parent directories.
func WriteTarball(t *testing.T, path string, entries ...Entry) {
	t.Helper()
	WriteFile(t, path, Tarball(t, Gzip, entries...))
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// ReadFile returns the content of path as a string.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}
