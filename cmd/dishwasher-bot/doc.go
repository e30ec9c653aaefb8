// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// dishwasher-bot relays chat commands from Matrix direct rooms to the
// MQTT broker that drives the office dishwashers.
//
// Users send "help", "start <dishwasher>" or "reset <dishwasher>" to
// the bot in an unencrypted 1:1 room. Start and reset are accepted only
// from members of the authorization room and are published as JSON
// control messages on <prefix><dishwasher>/<action>.
//
// All configuration comes from DISHWASHER_BOT_* environment variables;
// there are no flags.
package main
