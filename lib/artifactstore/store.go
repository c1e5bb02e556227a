// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/gearbox/lib/clock"
	"github.com/bureau-foundation/gearbox/lib/layout"
)

// ErrUnavailable reports that no configured source could supply the
// artifact, or that the supplied artifact did not match its pinned
// digest.
var ErrUnavailable = errors.New("artifact unavailable")

// Source identifies which backend produced an artifact.
type Source string

const (
	SourceLocal  Source = "local"
	SourceURL    Source = "url"
	SourceBucket Source = "bucket"
	SourceNone   Source = "none"
)

// Request carries the per-deployment artifact options.
type Request struct {
	// URL is an HTTP(S) location of the tarball.
	URL string

	// Bucket names an object-store bucket holding the tarball at key
	// "<application>/<version>.tar.gz".
	Bucket string

	// Digest pins the expected tarball digest ("blake3:<hex>" or bare
	// hex). Empty disables verification.
	Digest string
}

// Artifact describes a resolved tarball.
type Artifact struct {
	// Path is where the tarball lives (or would live) under tars/.
	Path string

	// Source is the backend consulted.
	Source Source

	// Location is the backend-specific origin: a file path, URL or
	// bucket key.
	Location string

	// Fetched is false when the backend left an existing tarball in
	// place, and always false for SourceNone.
	Fetched bool

	// Digest is the BLAKE3 digest of the tarball at Path, empty if no
	// tarball exists there.
	Digest string
}

// Store resolves artifacts for one node.
type Store struct {
	// LocalPath is the root of the node's local artifact cache. Empty
	// disables the local backend.
	LocalPath string

	// Bucket fetches objects for requests that name a bucket.
	Bucket Bucket

	// Client performs URL fetches. Nil uses http.DefaultClient.
	Client *http.Client

	// Strict turns a missing source into ErrUnavailable instead of a
	// warning.
	Strict bool

	// Retries is the number of additional attempts for URL and bucket
	// fetches. RetryDelay is the wait before the first retry; it
	// doubles after each attempt.
	Retries    int
	RetryDelay time.Duration

	Clock  clock.Clock
	Owner  layout.Owner
	Logger *slog.Logger
}

// Prepare creates the application's base directories with mode 0775,
// owned by the application account.
func (s *Store) Prepare(application layout.Application) error {
	for _, directory := range application.BaseDirs() {
		if err := layout.EnsureDir(directory, layout.DirMode, s.owner()); err != nil {
			return err
		}
	}
	return nil
}

// Resolve places version's tarball under application's tars/
// directory using the first configured backend. It calls Prepare
// first.
func (s *Store) Resolve(ctx context.Context, application layout.Application, version string, request Request) (Artifact, error) {
	if err := layout.ValidateName("version", version); err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := s.Prepare(application); err != nil {
		return Artifact{}, err
	}

	logger := s.logger().With("application", application.Name, "version", version)
	artifact := Artifact{Path: application.TarPath(version), Source: SourceNone}
	key := application.ArtifactKey(version)

	var err error
	switch {
	case s.LocalPath != "":
		artifact.Source = SourceLocal
		artifact.Location = filepath.Join(s.LocalPath, filepath.FromSlash(key))
		err = s.copyLocal(artifact.Location, artifact.Path)
		artifact.Fetched = err == nil

	case request.URL != "":
		artifact.Source = SourceURL
		artifact.Location = request.URL
		err = s.withRetries(ctx, logger, func() error {
			return s.download(ctx, request.URL, artifact.Path)
		})
		artifact.Fetched = err == nil

	case request.Bucket != "":
		artifact.Source = SourceBucket
		artifact.Location = request.Bucket + "/" + key
		if _, statErr := os.Stat(artifact.Path); statErr == nil {
			logger.Info("cached tarball present, not fetching from bucket", "path", artifact.Path)
			break
		}
		if s.Bucket == nil {
			err = fmt.Errorf("no bucket backend configured")
			break
		}
		err = s.withRetries(ctx, logger, func() error {
			return s.fetchObject(ctx, request.Bucket, key, artifact.Path)
		})
		artifact.Fetched = err == nil

	default:
		if s.Strict {
			return artifact, fmt.Errorf("%w: no local path, URL or bucket configured for %s", ErrUnavailable, key)
		}
		logger.Warn("no artifact source configured; continuing with any existing extraction",
			"tarball", artifact.Path)
	}
	if err != nil {
		return artifact, fmt.Errorf("%w: %s from %s %s: %w", ErrUnavailable, key, artifact.Source, artifact.Location, err)
	}

	digest, err := digestIfPresent(artifact.Path)
	if err != nil {
		return artifact, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	artifact.Digest = digest
	if request.Digest != "" {
		if digest == "" {
			return artifact, fmt.Errorf("%w: digest %s pinned but no tarball at %s", ErrUnavailable, request.Digest, artifact.Path)
		}
		if !DigestsEqual(digest, request.Digest) {
			return artifact, fmt.Errorf("%w: %s has digest %s, want %s", ErrUnavailable, artifact.Path, digest, request.Digest)
		}
	}

	if artifact.Source != SourceNone {
		logger.Info("artifact resolved",
			"source", string(artifact.Source),
			"location", artifact.Location,
			"fetched", artifact.Fetched,
			"digest", artifact.Digest,
		)
	}
	return artifact, nil
}

func (s *Store) copyLocal(source, destination string) error {
	file, err := os.Open(source)
	if err != nil {
		return err
	}
	defer file.Close()
	return s.install(destination, file)
}

func (s *Store) download(ctx context.Context, url, destination string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return &statusError{code: response.StatusCode, url: url}
	}
	return s.install(destination, response.Body)
}

func (s *Store) fetchObject(ctx context.Context, bucket, key, destination string) error {
	object, err := s.Bucket.Open(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer object.Close()
	return s.install(destination, object)
}

// install streams content into a temporary file beside destination
// and renames it into place.
func (s *Store) install(destination string, content io.Reader) (err error) {
	temporary, err := os.CreateTemp(filepath.Dir(destination), "."+filepath.Base(destination)+".download-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(temporary.Name())
		}
	}()
	if _, err := io.Copy(temporary, content); err != nil {
		temporary.Close()
		return err
	}
	if err := temporary.Chmod(0o644); err != nil {
		temporary.Close()
		return err
	}
	if err := temporary.Close(); err != nil {
		return err
	}
	if err := s.owner().Chown(temporary.Name()); err != nil {
		return err
	}
	return os.Rename(temporary.Name(), destination)
}

// withRetries runs attempt up to Retries+1 times, waiting RetryDelay
// (doubling) between attempts. Permanent errors are not retried.
func (s *Store) withRetries(ctx context.Context, logger *slog.Logger, attempt func() error) error {
	delay := s.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	var err error
	for index := 0; index <= s.Retries; index++ {
		if err = attempt(); err == nil || !retryable(err) {
			return err
		}
		if index == s.Retries {
			break
		}
		logger.Warn("artifact fetch failed, retrying", "attempt", index+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-s.clock().After(delay):
		}
		delay *= 2
	}
	return err
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.url, e.code)
}

// retryable reports whether a fetch error may succeed on a later
// attempt. Client errors (4xx) and missing objects are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code >= 500 || status.code == http.StatusTooManyRequests
	}
	return true
}

func (s *Store) owner() layout.Owner {
	if s.Owner == nil {
		return layout.Unowned("")
	}
	return s.Owner
}

func (s *Store) clock() clock.Clock {
	if s.Clock == nil {
		return clock.Real()
	}
	return s.Clock
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
