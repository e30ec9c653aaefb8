// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package appliance

import (
	"fmt"
	"strings"
)

// Device names one dishwasher addressable by the relay. The value is
// the lowercase name used in chat commands and MQTT topics.
type Device string

// Known dishwashers.
const (
	Asterix   Device = "asterix"
	Obelix    Device = "obelix"
	Idefix    Device = "idefix"
	Miraculix Device = "miraculix"
	Tick      Device = "tick"
	Trick     Device = "trick"
	Track     Device = "track"
	Donald    Device = "donald"
)

// devices is the closed device set in declaration order. The help text
// lists devices in this order.
var devices = []Device{Asterix, Obelix, Idefix, Miraculix, Tick, Trick, Track, Donald}

// Devices returns every known device in declaration order. The
// returned slice is a copy.
func Devices() []Device {
	result := make([]Device, len(devices))
	copy(result, devices)
	return result
}

// String returns the device name (e.g., "asterix").
func (d Device) String() string { return string(d) }

// DisplayName returns the device name with its first letter upper-cased
// (e.g., "Asterix"), used in chat replies.
func (d Device) DisplayName() string {
	if d == "" {
		return ""
	}
	return strings.ToUpper(string(d[:1])) + string(d[1:])
}

// UnknownDeviceError is returned by ParseDevice for a name outside the
// known device set. Name is the input after lower-casing.
type UnknownDeviceError struct {
	Name string
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("unknown dishwasher %q", e.Name)
}

// ParseDevice resolves a device name case-insensitively. Returns
// *UnknownDeviceError when the name is not a known device.
func ParseDevice(name string) (Device, error) {
	lowered := strings.ToLower(name)
	for _, device := range devices {
		if string(device) == lowered {
			return device, nil
		}
	}
	return "", &UnknownDeviceError{Name: lowered}
}

// Action is a control verb applied to a Device.
type Action string

const (
	// Start starts a wash cycle.
	Start Action = "start"
	// Reset resets (empties) the dishwasher.
	Reset Action = "reset"
)

// String returns the action verb (e.g., "start").
func (a Action) String() string { return string(a) }

// UnknownActionError is returned by ParseAction for a verb that is
// neither start nor reset.
type UnknownActionError struct {
	Verb string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Verb)
}

// ParseAction resolves an action verb case-insensitively.
func ParseAction(verb string) (Action, error) {
	switch lowered := strings.ToLower(verb); lowered {
	case string(Start):
		return Start, nil
	case string(Reset):
		return Reset, nil
	default:
		return "", &UnknownActionError{Verb: lowered}
	}
}
