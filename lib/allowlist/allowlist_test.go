// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package allowlist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dishwasher-bot/dishwasher-bot/lib/clock"
	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
)

type fakeSource struct {
	members []ref.UserID
	err     error
	calls   int
	roomIDs []ref.RoomID
}

func (f *fakeSource) JoinedMembers(_ context.Context, roomID ref.RoomID) ([]ref.UserID, error) {
	f.calls++
	f.roomIDs = append(f.roomIDs, roomID)
	if f.err != nil {
		return nil, f.err
	}
	return f.members, nil
}

var (
	authRoom = ref.MustParseRoomID("!auth:local")
	alice    = ref.MustParseUserID("@alice:local")
	bob      = ref.MustParseUserID("@bob:local")
	mallory  = ref.MustParseUserID("@mallory:local")
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(source *fakeSource) *Manager {
	return newTestManagerWithClock(source, clock.Fake(epoch))
}

func newTestManagerWithClock(source *fakeSource, clk clock.Clock) *Manager {
	return NewManager(source, authRoom, clk, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAuthorize(t *testing.T) {
	source := &fakeSource{members: []ref.UserID{alice, bob}}
	manager := newTestManager(source)

	if !manager.Authorize(context.Background(), alice) {
		t.Error("alice should be authorized")
	}
	if manager.Authorize(context.Background(), mallory) {
		t.Error("mallory should not be authorized")
	}
	if source.calls != 2 {
		t.Errorf("JoinedMembers called %d times, want once per Authorize", source.calls)
	}
	for _, roomID := range source.roomIDs {
		if roomID != authRoom {
			t.Errorf("queried room %s, want %s", roomID, authRoom)
		}
	}
}

func TestAuthorizeReflectsMembershipChanges(t *testing.T) {
	source := &fakeSource{members: []ref.UserID{alice}}
	manager := newTestManager(source)

	if !manager.Authorize(context.Background(), alice) {
		t.Fatal("alice should be authorized")
	}

	source.members = []ref.UserID{bob}
	if manager.Authorize(context.Background(), alice) {
		t.Error("alice left the room but is still authorized")
	}
	if !manager.Authorize(context.Background(), bob) {
		t.Error("bob joined the room but is not authorized")
	}
}

func TestAuthorizeUsesStaleSetOnError(t *testing.T) {
	source := &fakeSource{members: []ref.UserID{alice}}
	manager := newTestManager(source)

	if !manager.Authorize(context.Background(), alice) {
		t.Fatal("alice should be authorized")
	}

	source.err = errors.New("homeserver unavailable")
	if !manager.Authorize(context.Background(), alice) {
		t.Error("stale set should still authorize alice after a failed refresh")
	}
	if manager.Authorize(context.Background(), bob) {
		t.Error("bob was never a member")
	}
}

func TestAuthorizeDeniesBeforeFirstRefresh(t *testing.T) {
	source := &fakeSource{err: errors.New("homeserver unavailable")}
	manager := newTestManager(source)

	if manager.Authorize(context.Background(), alice) {
		t.Error("empty set must deny")
	}
	if len(manager.Members()) != 0 {
		t.Errorf("Members() = %v, want empty", manager.Members())
	}
}

func TestRefresh(t *testing.T) {
	source := &fakeSource{members: []ref.UserID{alice, bob}}
	manager := newTestManager(source)

	if err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := len(manager.Members()); got != 2 {
		t.Errorf("len(Members()) = %d, want 2", got)
	}

	source.err = errors.New("boom")
	if err := manager.Refresh(context.Background()); err == nil {
		t.Error("Refresh should return the fetch error")
	}
	if got := len(manager.Members()); got != 2 {
		t.Errorf("failed refresh changed the set, len = %d", got)
	}
	if manager.RoomID() != authRoom {
		t.Errorf("RoomID() = %s", manager.RoomID())
	}
}

func TestRefreshStampsClockTime(t *testing.T) {
	source := &fakeSource{members: []ref.UserID{alice}}
	fake := clock.Fake(epoch)
	manager := newTestManagerWithClock(source, fake)

	if !manager.refreshedAt.IsZero() {
		t.Fatalf("refreshedAt = %v before first refresh, want zero", manager.refreshedAt)
	}
	if err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !manager.refreshedAt.Equal(epoch) {
		t.Errorf("refreshedAt = %v, want %v", manager.refreshedAt, epoch)
	}

	fake.Advance(5 * time.Minute)
	source.err = errors.New("homeserver unavailable")
	if err := manager.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh should fail when the source fails")
	}
	if !manager.refreshedAt.Equal(epoch) {
		t.Errorf("failed refresh moved refreshedAt to %v", manager.refreshedAt)
	}

	source.err = nil
	if err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if want := epoch.Add(5 * time.Minute); !manager.refreshedAt.Equal(want) {
		t.Errorf("refreshedAt = %v, want %v", manager.refreshedAt, want)
	}
}

func TestNewManagerDefaultsToRealClock(t *testing.T) {
	manager := NewManager(&fakeSource{}, authRoom, nil, nil)
	if manager.clock == nil {
		t.Fatal("clock should default to the real clock")
	}
	before := time.Now()
	if err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if manager.refreshedAt.Before(before) {
		t.Errorf("refreshedAt = %v, want at or after %v", manager.refreshedAt, before)
	}
}
