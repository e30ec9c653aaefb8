// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the part of the Matrix client-server API the
// relay uses to talk to people.
//
// [Client] is unauthenticated: it holds the homeserver URL and HTTP
// transport and turns a login token into a [DirectSession]
// (m.login.token), or wraps an access token loaded from disk
// ([Client.SessionFromToken]). The access token lives in a
// secret.Buffer; callers must Close the session.
//
// [DirectSession] covers identity (WhoAmI), incremental /sync, sending
// m.room.message events, room membership (joined_members, members),
// joining rooms, and alias resolution. The [Session] interface names
// the subset the relay's command path depends on, so tests can fake it.
//
// All API errors are returned as [*MatrixError] carrying the Matrix
// error code and HTTP status. [IsMatrixError] tests for a code. Request
// paths are built by concatenating url.PathEscape'd segments onto the
// base URL so room IDs and aliases are never double-encoded.
package messaging
