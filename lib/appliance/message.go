// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package appliance

import (
	"encoding/json"
	"strings"
)

// TopicPrefix is an MQTT topic prefix that always ends with "/".
// Construct with NormalizePrefix.
type TopicPrefix string

// NormalizePrefix appends a trailing "/" to prefix when it lacks one.
func NormalizePrefix(prefix string) TopicPrefix {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return TopicPrefix(prefix)
}

// Topic returns the MQTT topic for an action on a device:
// <prefix><device>/<action>.
func (p TopicPrefix) Topic(device Device, action Action) string {
	return string(p) + string(device) + "/" + string(action)
}

// ControlMessage is the payload published to the broker for a single
// dispatched command. The JSON form is a flat object with exactly the
// fields topic, dishwasher, and action, in that order.
type ControlMessage struct {
	Topic  string `json:"topic"`
	Device Device `json:"dishwasher"`
	Action Action `json:"action"`
}

// NewControlMessage builds the control message for action on device
// under prefix.
func NewControlMessage(prefix TopicPrefix, device Device, action Action) ControlMessage {
	return ControlMessage{
		Topic:  prefix.Topic(device, action),
		Device: device,
		Action: action,
	}
}

// Payload returns the JSON encoding of the message. Encoding a struct
// of three strings cannot fail.
func (m ControlMessage) Payload() []byte {
	data, _ := json.Marshal(m)
	return data
}
