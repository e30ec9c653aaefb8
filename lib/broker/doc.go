// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker publishes dishwasher control messages to an MQTT
// broker.
//
// Connect builds a paho client that keeps itself connected (keep-alive
// 10s, automatic reconnect) and reports connection changes as Status
// values on a caller-owned channel. Publisher.Publish is
// fire-and-forget: it hands the message to paho at QoS 1 without the
// retain flag and returns immediately. Delivery failures are logged by
// the publisher and never reach the caller.
package broker
