// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated, immutable Matrix identifiers: user
// IDs, room IDs, room aliases, and event IDs.
//
// Every identifier is parsed once at the boundary where it enters the
// process (configuration, /sync responses, API results) and then passed
// around as a value type. The zero value of each type is "unset"; use
// IsZero to check. All types implement encoding.TextMarshaler and
// encoding.TextUnmarshaler, so JSON decoding validates them and they can
// be used as map keys in decoded objects.
package ref
