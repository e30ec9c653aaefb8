// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package allowlist decides who may operate the dishwashers: the users
// currently joined to one authorization room.
//
// The Manager keeps the last successfully fetched member set. Authorize
// refreshes that set from the homeserver and then reads it. When the
// refresh fails the previous set is used unchanged, so a user removed
// from the room during a homeserver outage keeps access until the next
// successful refresh. Before the first successful refresh the set is
// empty and everyone is denied.
//
// A Manager is not safe for concurrent use. The relay calls it from its
// single dispatcher goroutine.
package allowlist

import (
	"context"
	"log/slog"
	"time"

	"github.com/dishwasher-bot/dishwasher-bot/lib/clock"
	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
)

// MemberSource lists the users joined to a room.
// *messaging.DirectSession satisfies it.
type MemberSource interface {
	JoinedMembers(ctx context.Context, roomID ref.RoomID) ([]ref.UserID, error)
}

// Manager authorizes senders against the membership of one room.
type Manager struct {
	source MemberSource
	roomID ref.RoomID
	clock  clock.Clock
	logger *slog.Logger

	members     map[ref.UserID]struct{}
	refreshedAt time.Time
}

// NewManager returns a Manager for roomID with an empty member set. clk
// stamps each successful refresh; nil means the real clock.
func NewManager(source MemberSource, roomID ref.RoomID, clk clock.Clock, logger *slog.Logger) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source:  source,
		roomID:  roomID,
		clock:   clk,
		logger:  logger,
		members: map[ref.UserID]struct{}{},
	}
}

// RoomID returns the authorization room.
func (m *Manager) RoomID() ref.RoomID {
	return m.roomID
}

// Refresh replaces the member set with the room's current joined
// members. On error the previous set is kept and the error returned.
func (m *Manager) Refresh(ctx context.Context) error {
	joined, err := m.source.JoinedMembers(ctx, m.roomID)
	if err != nil {
		return err
	}

	members := make(map[ref.UserID]struct{}, len(joined))
	for _, userID := range joined {
		members[userID] = struct{}{}
	}
	m.members = members
	m.refreshedAt = m.clock.Now()
	m.logger.Debug("refreshed authorization room members",
		"room_id", m.roomID,
		"count", len(members),
	)
	return nil
}

// Authorize refreshes the member set and reports whether sender is in
// it. A failed refresh is logged and the stale set is consulted.
func (m *Manager) Authorize(ctx context.Context, sender ref.UserID) bool {
	if err := m.Refresh(ctx); err != nil {
		m.logger.Warn("could not refresh authorization room members, using previous set",
			"room_id", m.roomID,
			"error", err,
			"members", len(m.members),
			"refreshed_at", m.refreshedAt,
		)
	}
	_, ok := m.members[sender]
	return ok
}

// Members returns a snapshot of the current member set.
func (m *Manager) Members() []ref.UserID {
	result := make([]ref.UserID, 0, len(m.members))
	for userID := range m.members {
		result = append(result, userID)
	}
	return result
}
