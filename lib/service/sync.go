// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dishwasher-bot/dishwasher-bot/lib/clock"
	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
	"github.com/dishwasher-bot/dishwasher-bot/messaging"
)

// SyncConfig configures the Matrix /sync long-poll loop.
type SyncConfig struct {
	// Filter is the inline JSON filter restricting which events the
	// homeserver returns.
	Filter string

	// Timeout is the long-poll timeout in milliseconds. Default: 30000.
	Timeout int

	// MaxBackoff caps the delay between retries on /sync errors. The
	// loop backs off exponentially from 1 second. Default: 30 seconds.
	MaxBackoff time.Duration
}

// SyncHandler is called for each /sync response. The next poll starts
// after the handler returns, so handlers should hand work off rather
// than block.
type SyncHandler func(ctx context.Context, response *messaging.SyncResponse)

// InitialSync performs the first /sync with no since token. It returns
// the next_batch token for the incremental loop and the full response
// for the caller to seed state from. The homeserver answers without
// waiting for new events.
func InitialSync(ctx context.Context, session messaging.Session, filter string) (string, *messaging.SyncResponse, error) {
	response, err := session.Sync(ctx, messaging.SyncOptions{
		Filter:     filter,
		SetTimeout: true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("initial sync: %w", err)
	}
	return response.NextBatch, response, nil
}

// idleConnectionCloser is implemented by sessions that pool HTTP
// connections (*messaging.DirectSession).
type idleConnectionCloser interface {
	CloseIdleConnections()
}

// RunSyncLoop polls /sync from sinceToken and calls handler for each
// response until ctx is cancelled. Transient errors are retried with
// exponential backoff (1 second to config.MaxBackoff), after dropping
// the session's idle HTTP connections.
//
// The caller performs InitialSync first and processes that response
// before starting the loop.
func RunSyncLoop(ctx context.Context, session messaging.Session, config SyncConfig, sinceToken string, handler SyncHandler, clk clock.Clock, logger *slog.Logger) {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30000
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 30 * time.Second
	}

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		response, err := session.Sync(ctx, messaging.SyncOptions{
			Since:      sinceToken,
			Timeout:    timeout,
			SetTimeout: true,
			Filter:     config.Filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("sync failed, retrying", "error", err, "backoff", backoff)
			// A pooled connection may be dead after a network error.
			if closer, ok := session.(idleConnectionCloser); ok {
				closer.CloseIdleConnections()
			}
			select {
			case <-ctx.Done():
				return
			case <-clk.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = time.Second
		sinceToken = response.NextBatch

		handler(ctx, response)
	}
}

// AcceptInvites joins every room in invites and returns the IDs that
// were joined, sorted. Failures are logged and skipped.
func AcceptInvites(ctx context.Context, session messaging.Session, invites map[ref.RoomID]messaging.InvitedRoom, logger *slog.Logger) []ref.RoomID {
	roomIDs := make([]ref.RoomID, 0, len(invites))
	for roomID := range invites {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Slice(roomIDs, func(i, j int) bool {
		return roomIDs[i].String() < roomIDs[j].String()
	})

	var accepted []ref.RoomID
	for _, roomID := range roomIDs {
		logger.Info("accepting room invite", "room_id", roomID)
		if _, err := session.JoinRoom(ctx, roomID); err != nil {
			logger.Error("failed to accept room invite",
				"room_id", roomID,
				"error", err,
			)
			continue
		}
		accepted = append(accepted, roomID)
	}
	return accepted
}
