// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps credentials (the Matrix access and login tokens,
// the MQTT password) out of the Go heap.
//
// A [Buffer] is an anonymous mmap region locked into RAM and excluded
// from core dumps. Close zeroes, unlocks, and unmaps it; reading a
// closed buffer panics. [Buffer.String] makes a heap copy and is meant
// only for the API boundary that needs a string (an HTTP header, the
// MQTT CONNECT packet).
//
// Depends only on golang.org/x/sys/unix.
package secret
