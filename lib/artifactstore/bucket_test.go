// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestNewBucketEndpoints(t *testing.T) {
	tests := []struct {
		endpoint string
		wantErr  bool
		wantType string
	}{
		{"", false, "http"},
		{"https://{bucket}.example.com/{key}", false, "http"},
		{"file:///srv/mirror", false, "dir"},
		{"file://relative", true, ""},
		{"https://example.com/static", true, ""},
	}
	for _, test := range tests {
		bucket, err := NewBucket(test.endpoint, nil)
		if test.wantErr {
			if err == nil {
				t.Errorf("NewBucket(%q) succeeded, want error", test.endpoint)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewBucket(%q): %v", test.endpoint, err)
			continue
		}
		switch bucket.(type) {
		case *HTTPBucket:
			if test.wantType != "http" {
				t.Errorf("NewBucket(%q) = HTTPBucket, want %s", test.endpoint, test.wantType)
			}
		case DirectoryBucket:
			if test.wantType != "dir" {
				t.Errorf("NewBucket(%q) = DirectoryBucket, want %s", test.endpoint, test.wantType)
			}
		}
	}
}

func TestHTTPBucketURL(t *testing.T) {
	bucket := &HTTPBucket{Endpoint: DefaultBucketEndpoint}
	got := bucket.URL("releases", "foo/1.2.3+build.tar.gz")
	want := "https://releases.s3.amazonaws.com/foo/1.2.3+build.tar.gz"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestHTTPBucketOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "/releases/foo/1.0.0.tar.gz" {
			writer.Write([]byte("object"))
			return
		}
		http.NotFound(writer, request)
	}))
	defer server.Close()

	bucket := &HTTPBucket{Endpoint: server.URL + "/{bucket}/{key}", Client: server.Client()}
	object, err := bucket.Open(context.Background(), "releases", "foo/1.0.0.tar.gz")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(object)
	object.Close()
	if string(data) != "object" {
		t.Errorf("object = %q", data)
	}

	_, err = bucket.Open(context.Background(), "releases", "foo/missing.tar.gz")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open(missing) error = %v, want os.ErrNotExist", err)
	}
}

func TestDirectoryBucketRejectsTraversal(t *testing.T) {
	bucket := DirectoryBucket{Root: t.TempDir()}
	if _, err := bucket.Open(context.Background(), "..", "x"); err == nil {
		t.Error("Open accepted bucket \"..\"")
	}
	if _, err := bucket.Open(context.Background(), "b", "../../etc/passwd"); err == nil {
		t.Error("Open accepted a traversing key")
	}
}
