// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"

	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
)

// Session is the set of Matrix operations the relay's event handling
// depends on. *DirectSession is the production implementation; tests
// substitute fakes.
//
// Startup-only operations (login, WhoAmI, alias resolution) are not part
// of this interface; they are called on *DirectSession directly.
type Session interface {
	// UserID returns the bot's fully-qualified Matrix user ID.
	UserID() ref.UserID

	// Sync performs one /sync request.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)

	// SendMessage sends an m.room.message event. Returns the event ID.
	SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error)

	// JoinedMembers returns the user IDs currently joined to a room.
	JoinedMembers(ctx context.Context, roomID ref.RoomID) ([]ref.UserID, error)

	// GetRoomMembers returns every member state of a room (joined,
	// invited, left, banned).
	GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error)

	// JoinRoom joins a room the user was invited to.
	JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error)
}

// Compile-time check: *DirectSession implements Session.
var _ Session = (*DirectSession)(nil)
