// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
	"github.com/dishwasher-bot/dishwasher-bot/lib/service"
	"github.com/dishwasher-bot/dishwasher-bot/messaging"
)

// syncFilter limits /sync to what the relay reads: message and
// encrypted timeline events, membership state, and room summaries.
// Presence and account data are dropped.
const syncFilter = `{
	"presence": {"not_types": ["*"]},
	"account_data": {"not_types": ["*"]},
	"room": {
		"timeline": {"types": ["m.room.message", "m.room.encrypted"], "limit": 50},
		"state": {"types": ["m.room.member"], "lazy_load_members": true},
		"ephemeral": {"not_types": ["*"]},
		"account_data": {"not_types": ["*"]}
	}
}`

// roomCounts are the last member counts reported for a room.
type roomCounts struct {
	joined  int
	invited int
}

// relay connects the Matrix sync stream to the dispatcher. It is driven
// by the sync goroutine only; the dispatcher runs on its own goroutine
// and receives work through events.
type relay struct {
	session messaging.Session
	events  chan<- chatEvent
	logger  *slog.Logger

	rooms map[ref.RoomID]roomCounts
}

func newRelay(session messaging.Session, events chan<- chatEvent, logger *slog.Logger) *relay {
	return &relay{
		session: session,
		events:  events,
		logger:  logger,
		rooms:   make(map[ref.RoomID]roomCounts),
	}
}

// seed processes the initial sync: it records member counts and joins
// pending invites but dispatches nothing, so commands sent while the
// bot was offline are not executed.
func (r *relay) seed(ctx context.Context, response *messaging.SyncResponse) {
	service.AcceptInvites(ctx, r.session, response.Rooms.Invite, r.logger)
	for roomID, room := range response.Rooms.Join {
		r.updateCounts(roomID, room.Summary)
	}
	r.logger.Info("initial sync processed",
		"rooms", len(response.Rooms.Join),
		"invites", len(response.Rooms.Invite),
	)
}

// handleSync is the service.SyncHandler for the incremental loop.
func (r *relay) handleSync(ctx context.Context, response *messaging.SyncResponse) {
	if len(response.Rooms.Invite) > 0 {
		service.AcceptInvites(ctx, r.session, response.Rooms.Invite, r.logger)
	}

	for roomID := range response.Rooms.Leave {
		delete(r.rooms, roomID)
	}

	roomIDs := make([]ref.RoomID, 0, len(response.Rooms.Join))
	for roomID := range response.Rooms.Join {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Slice(roomIDs, func(i, j int) bool {
		return roomIDs[i].String() < roomIDs[j].String()
	})

	for _, roomID := range roomIDs {
		room := response.Rooms.Join[roomID]
		r.updateCounts(roomID, room.Summary)
		for _, event := range room.Timeline.Events {
			if !r.forward(ctx, roomID, event) {
				return
			}
		}
	}
}

// forward sends a text message to the dispatcher. Returns false when
// ctx is done.
func (r *relay) forward(ctx context.Context, roomID ref.RoomID, event messaging.Event) bool {
	switch event.Type {
	case messaging.EventTypeMessage:
	case messaging.EventTypeEncrypted:
		r.logger.Debug("ignoring encrypted event",
			"room_id", roomID,
			"event_id", event.EventID,
			"sender", event.Sender,
		)
		return true
	default:
		return true
	}
	if event.ContentString("msgtype") != messaging.MsgTypeText {
		return true
	}
	// Our own replies come back through sync.
	if event.Sender == r.session.UserID() {
		return true
	}

	memberCount, ok := r.memberCount(ctx, roomID)
	if !ok {
		return true
	}

	select {
	case r.events <- chatEvent{
		RoomID:      roomID,
		MemberCount: memberCount,
		Sender:      event.Sender,
		EventID:     event.EventID,
		Body:        event.ContentString("body"),
	}:
		return true
	case <-ctx.Done():
		return false
	}
}

// updateCounts merges a sync summary into the known counts. Absent
// fields mean "unchanged".
func (r *relay) updateCounts(roomID ref.RoomID, summary messaging.RoomSummary) {
	if summary.JoinedMemberCount == nil && summary.InvitedMemberCount == nil {
		return
	}
	counts := r.rooms[roomID]
	if summary.JoinedMemberCount != nil {
		counts.joined = *summary.JoinedMemberCount
	}
	if summary.InvitedMemberCount != nil {
		counts.invited = *summary.InvitedMemberCount
	}
	r.rooms[roomID] = counts
}

// memberCount returns joined plus invited members of roomID. Rooms
// without a known summary are counted from /members. Returns false when
// the count cannot be determined.
func (r *relay) memberCount(ctx context.Context, roomID ref.RoomID) (int, bool) {
	if counts, ok := r.rooms[roomID]; ok {
		return counts.joined + counts.invited, true
	}

	members, err := r.session.GetRoomMembers(ctx, roomID)
	if err != nil {
		r.logger.Warn("cannot determine room size, ignoring message",
			"room_id", roomID,
			"error", err,
		)
		return 0, false
	}
	var counts roomCounts
	for _, member := range members {
		switch member.Membership {
		case messaging.MembershipJoin:
			counts.joined++
		case messaging.MembershipInvite:
			counts.invited++
		}
	}
	r.rooms[roomID] = counts
	return counts.joined + counts.invited, true
}
