// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the relay configuration from the environment.
//
// Every setting is a DISHWASHER_BOT_* environment variable; there is no
// configuration file and there are no command-line flags. [Load] binds
// each variable through viper, applies defaults for the optional ones,
// and fails with one error naming every missing required variable.
// Values are validated and converted to their typed form here (room
// references, the MQTT port, the normalized topic prefix, the log
// level) so the rest of the program never sees a raw string.
//
// Key exports:
//
//   - [Config] with [MatrixConfig] and [MQTTConfig] sections
//   - [Load] -- the only entry point
//   - [EnvPrefix] -- the variable name prefix
package config
