// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package appliance defines the closed vocabulary the relay speaks to
// the dishwasher controllers: which dishwashers exist ([Device]), what
// can be done to them ([Action]), and the JSON control message
// ([ControlMessage]) that carries one action for one device over MQTT.
//
// Both enumerations are closed. [ParseDevice] and [ParseAction] are the
// only way to turn user input into a value, and they reject anything
// outside the set with a typed error. A ControlMessage can only be
// built from parsed values, so an unknown device never reaches the
// broker.
//
// This package depends on no other dishwasher-bot packages.
package appliance
