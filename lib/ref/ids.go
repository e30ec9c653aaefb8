// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// UserID is a validated Matrix user ID (e.g., "@alice:example.org").
type UserID struct {
	id string
}

// ParseUserID validates raw as "@localpart:server".
func ParseUserID(raw string) (UserID, error) {
	if _, _, err := splitSigilID(raw, '@', "user ID"); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// MustParseUserID is like ParseUserID but panics on error. Use in tests
// and static initialization.
func MustParseUserID(raw string) UserID {
	userID, err := ParseUserID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseUserID(%q): %v", raw, err))
	}
	return userID
}

// String returns the full user ID.
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is unset.
func (u UserID) IsZero() bool { return u.id == "" }

// Localpart returns the part between '@' and the first ':'. Returns ""
// for the zero value.
func (u UserID) Localpart() string {
	localpart, _, _ := splitSigilID(u.id, '@', "user ID")
	return localpart
}

// Server returns the part after the first ':'. Returns "" for the zero
// value.
func (u UserID) Server() string {
	_, server, _ := splitSigilID(u.id, '@', "user ID")
	return server
}

func (u UserID) MarshalText() ([]byte, error) { return []byte(u.id), nil }

func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// RoomID is a validated Matrix room ID. Room IDs are assigned by the
// homeserver and are never constructed locally. Room versions before 12
// use "!opaque:example.org"; version 12 uses "!hash" with no server
// part.
type RoomID struct {
	id string
}

// ParseRoomID validates raw as "!opaque:server" or "!opaque".
func ParseRoomID(raw string) (RoomID, error) {
	if len(raw) < 2 || raw[0] != '!' {
		return RoomID{}, fmt.Errorf("invalid room ID %q: must be '!' followed by an opaque id", raw)
	}
	if strings.IndexByte(raw, ':') >= 0 {
		if _, _, err := splitSigilID(raw, '!', "room ID"); err != nil {
			return RoomID{}, err
		}
	}
	return RoomID{id: raw}, nil
}

// MustParseRoomID is like ParseRoomID but panics on error.
func MustParseRoomID(raw string) RoomID {
	roomID, err := ParseRoomID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseRoomID(%q): %v", raw, err))
	}
	return roomID
}

// String returns the full room ID.
func (r RoomID) String() string { return r.id }

// IsZero reports whether the RoomID is unset.
func (r RoomID) IsZero() bool { return r.id == "" }

// Server returns the server part, or "" for room IDs without one.
func (r RoomID) Server() string {
	if colon := strings.IndexByte(r.id, ':'); colon >= 0 {
		return r.id[colon+1:]
	}
	return ""
}

func (r RoomID) MarshalText() ([]byte, error) { return []byte(r.id), nil }

func (r *RoomID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = RoomID{}
		return nil
	}
	parsed, err := ParseRoomID(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RoomAlias is a validated Matrix room alias (e.g., "#ops:example.org").
type RoomAlias struct {
	alias string
}

// ParseRoomAlias validates raw as "#localpart:server".
func ParseRoomAlias(raw string) (RoomAlias, error) {
	if _, _, err := splitSigilID(raw, '#', "room alias"); err != nil {
		return RoomAlias{}, err
	}
	return RoomAlias{alias: raw}, nil
}

// String returns the full alias.
func (a RoomAlias) String() string { return a.alias }

// IsZero reports whether the RoomAlias is unset.
func (a RoomAlias) IsZero() bool { return a.alias == "" }

// EventID is a Matrix event ID. Modern room versions use "$hash" with no
// server part, so the only check is the '$' sigil.
type EventID struct {
	id string
}

// ParseEventID validates raw as "$something".
func ParseEventID(raw string) (EventID, error) {
	if len(raw) < 2 || raw[0] != '$' {
		return EventID{}, fmt.Errorf("invalid event ID %q: must be '$' followed by an opaque id", raw)
	}
	return EventID{id: raw}, nil
}

// String returns the full event ID.
func (e EventID) String() string { return e.id }

// IsZero reports whether the EventID is unset.
func (e EventID) IsZero() bool { return e.id == "" }

func (e EventID) MarshalText() ([]byte, error) { return []byte(e.id), nil }

func (e *EventID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*e = EventID{}
		return nil
	}
	parsed, err := ParseEventID(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// EventType is a Matrix event type such as "m.room.message". It is an
// opaque string; the named type only keeps event types and state keys
// from being mixed up.
type EventType string

// String returns the event type.
func (t EventType) String() string { return string(t) }

// splitSigilID splits "<sigil>localpart:server". The server part may
// itself contain ':' (a port).
func splitSigilID(raw string, sigil byte, kind string) (localpart, server string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("empty %s", kind)
	}
	if raw[0] != sigil {
		return "", "", fmt.Errorf("invalid %s %q: must start with '%c'", kind, raw, sigil)
	}
	colon := strings.IndexByte(raw, ':')
	if colon < 0 {
		return "", "", fmt.Errorf("invalid %s %q: missing ':server' suffix", kind, raw)
	}
	if colon == 1 {
		return "", "", fmt.Errorf("invalid %s %q: empty local part", kind, raw)
	}
	if colon == len(raw)-1 {
		return "", "", fmt.Errorf("invalid %s %q: empty server name", kind, raw)
	}
	return raw[1:colon], raw[colon+1:], nil
}
