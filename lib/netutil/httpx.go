// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response reads from the homeserver.
//
// Matrix API responses are small JSON documents. ReadResponse caps the
// read at MaxResponseSize so a misbehaving server cannot exhaust memory
// through the /sync or /members endpoints.
package netutil

import "io"

// MaxResponseSize is the cap on a single JSON API response body: 64 MB.
// A /sync response for a bot in a handful of rooms is kilobytes.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads an HTTP response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll for API responses.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}
