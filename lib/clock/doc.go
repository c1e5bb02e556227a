// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the wall clock for code that records
// timestamps or waits between retries. Production code injects
// [Real]; tests inject [Fake] and move time with Advance.
package clock
