// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Matrix scaffolding the relay runs on:
//
//   - Session persistence: read and write the session file holding the
//     access token, so restarts do not consume a new login token.
//   - Authentication: reuse a stored session when it belongs to the
//     configured user and the homeserver still accepts it, otherwise
//     log in with the login token.
//   - Sync loop: incremental /sync long-poll with backoff, delivering
//     responses to a caller-provided handler.
//   - Invite handling: join rooms the bot has been invited to.
//
// The relay composes these in its own main() rather than through a
// framework.
package service
