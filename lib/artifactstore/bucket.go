// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DefaultBucketEndpoint addresses S3 buckets by virtual-hosted URL.
const DefaultBucketEndpoint = "https://{bucket}.s3.amazonaws.com/{key}"

// Bucket reads objects from an object store.
type Bucket interface {
	// Open returns the content of key in bucket. A missing object
	// returns an error wrapping os.ErrNotExist.
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// NewBucket returns the Bucket for an endpoint string. "file:///path"
// endpoints read <path>/<bucket>/<key> from disk; anything else is an
// HTTP URL template containing {bucket} and {key}. An empty endpoint
// uses [DefaultBucketEndpoint].
func NewBucket(endpoint string, client *http.Client) (Bucket, error) {
	if endpoint == "" {
		endpoint = DefaultBucketEndpoint
	}
	if root, ok := strings.CutPrefix(endpoint, "file://"); ok {
		if root == "" || !filepath.IsAbs(root) {
			return nil, fmt.Errorf("file bucket endpoint %q must name an absolute directory", endpoint)
		}
		return DirectoryBucket{Root: root}, nil
	}
	if !strings.Contains(endpoint, "{key}") {
		return nil, fmt.Errorf("bucket endpoint %q has no {key} placeholder", endpoint)
	}
	return &HTTPBucket{Endpoint: endpoint, Client: client}, nil
}

// HTTPBucket fetches objects with anonymous GET requests against a URL
// template, which covers public and presigned-policy S3 buckets and
// S3-compatible mirrors.
type HTTPBucket struct {
	Endpoint string
	Client   *http.Client
}

// URL expands the endpoint template for bucket and key. Each key path
// segment is escaped separately so "/" survives.
func (b *HTTPBucket) URL(bucket, key string) string {
	segments := strings.Split(key, "/")
	for index, segment := range segments {
		segments[index] = url.PathEscape(segment)
	}
	return strings.NewReplacer(
		"{bucket}", url.PathEscape(bucket),
		"{key}", strings.Join(segments, "/"),
	).Replace(b.Endpoint)
}

func (b *HTTPBucket) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	location := b.URL(bucket, key)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	switch {
	case response.StatusCode == http.StatusOK:
		return response.Body, nil
	case response.StatusCode == http.StatusNotFound:
		response.Body.Close()
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, os.ErrNotExist)
	default:
		response.Body.Close()
		return nil, &statusError{code: response.StatusCode, url: location}
	}
}

// DirectoryBucket serves buckets from a directory tree: bucket B is
// the directory <Root>/B. It backs on-premises mirrors synced by
// other tooling.
type DirectoryBucket struct {
	Root string
}

func (b DirectoryBucket) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	if strings.ContainsAny(bucket, `/\`) || bucket == ".." || bucket == "." {
		return nil, fmt.Errorf("invalid bucket name %q", bucket)
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if !filepath.IsLocal(cleaned) {
		return nil, fmt.Errorf("invalid object key %q", key)
	}
	return os.Open(filepath.Join(b.Root, bucket, cleaned))
}
