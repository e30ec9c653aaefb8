// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/dishwasher-bot/dishwasher-bot/lib/appliance"
	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
)

// setEnv clears every known variable, then sets the given ones (keys
// without the prefix).
func setEnv(t *testing.T, values map[string]string) {
	t.Helper()
	for _, key := range required {
		t.Setenv(EnvVar(key), "")
	}
	for key := range defaults {
		t.Setenv(EnvVar(key), "")
	}
	for key, value := range values {
		t.Setenv(EnvVar(key), value)
	}
}

func completeEnv() map[string]string {
	return map[string]string{
		keyHomeserver:        "https://matrix.example.org",
		keyUser:              "@dishwasher:example.org",
		keyLoginToken:        "login-token",
		keyAuthorizationRoom: "!admins:example.org",
		keyBroker:            "mqtt.local",
		keyClientID:          "dishwasher-bot",
		keyMQTTUser:          "bot",
		keyMQTTPassword:      "hunter2",
		keyTopicPrefix:       "home/dishwashers",
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setEnv(t, completeEnv())

		config, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if config.Matrix.SessionFile != "./session.txt" {
			t.Errorf("SessionFile = %q", config.Matrix.SessionFile)
		}
		if config.Matrix.CryptoStorePath != "./crypto-store/" {
			t.Errorf("CryptoStorePath = %q", config.Matrix.CryptoStorePath)
		}
		if config.MQTT.Port != 1883 {
			t.Errorf("Port = %d, want 1883", config.MQTT.Port)
		}
		if config.LogLevel != slog.LevelInfo {
			t.Errorf("LogLevel = %v, want INFO", config.LogLevel)
		}
		if config.MQTT.TopicPrefix != appliance.TopicPrefix("home/dishwashers/") {
			t.Errorf("TopicPrefix = %q, want trailing slash", config.MQTT.TopicPrefix)
		}
		if config.Matrix.AuthorizationRoomID != ref.MustParseRoomID("!admins:example.org") {
			t.Errorf("AuthorizationRoomID = %v", config.Matrix.AuthorizationRoomID)
		}
		if !config.Matrix.AuthorizationRoomAlias.IsZero() {
			t.Errorf("AuthorizationRoomAlias = %v, want zero", config.Matrix.AuthorizationRoomAlias)
		}
		if config.MQTT.BrokerURL() != "tcp://mqtt.local:1883" {
			t.Errorf("BrokerURL() = %q", config.MQTT.BrokerURL())
		}
		if config.MQTT.Password != "hunter2" || config.Matrix.LoginToken != "login-token" {
			t.Error("secrets not loaded")
		}
	})

	t.Run("overrides", func(t *testing.T) {
		env := completeEnv()
		env[keyPort] = "8883"
		env[keyLogLevel] = "debug"
		env[keySessionFile] = "/var/lib/dishwasher-bot/session.json"
		env[keyAuthorizationRoom] = "#dishwasher-admins:example.org"
		setEnv(t, env)

		config, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if config.MQTT.Port != 8883 {
			t.Errorf("Port = %d", config.MQTT.Port)
		}
		if config.LogLevel != slog.LevelDebug {
			t.Errorf("LogLevel = %v", config.LogLevel)
		}
		if config.Matrix.SessionFile != "/var/lib/dishwasher-bot/session.json" {
			t.Errorf("SessionFile = %q", config.Matrix.SessionFile)
		}
		if config.Matrix.AuthorizationRoomAlias.String() != "#dishwasher-admins:example.org" {
			t.Errorf("AuthorizationRoomAlias = %q", config.Matrix.AuthorizationRoomAlias)
		}
		if !config.Matrix.AuthorizationRoomID.IsZero() {
			t.Error("AuthorizationRoomID set for an alias")
		}
	})

	t.Run("serverless authorization room", func(t *testing.T) {
		env := completeEnv()
		env[keyAuthorizationRoom] = "!Yd7cqEaSBHdA9c8YcmfmuA2Sfu9dmnKe9GNBrHEY2vQ"
		setEnv(t, env)

		config, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if config.Matrix.AuthorizationRoomID.String() != "!Yd7cqEaSBHdA9c8YcmfmuA2Sfu9dmnKe9GNBrHEY2vQ" {
			t.Errorf("AuthorizationRoomID = %q", config.Matrix.AuthorizationRoomID)
		}
	})

	t.Run("missing required", func(t *testing.T) {
		env := completeEnv()
		delete(env, keyLoginToken)
		delete(env, keyTopicPrefix)
		setEnv(t, env)

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for missing variables")
		}
		for _, name := range []string{"DISHWASHER_BOT_MATRIX_LOGIN_TOKEN", "DISHWASHER_BOT_MQTT_TOPIC_PREFIX"} {
			if !strings.Contains(err.Error(), name) {
				t.Errorf("error %q does not name %s", err, name)
			}
		}
		if strings.Contains(err.Error(), "DISHWASHER_BOT_MQTT_BROKER") {
			t.Errorf("error %q names a variable that is set", err)
		}
	})

	t.Run("empty counts as unset", func(t *testing.T) {
		env := completeEnv()
		env[keyBroker] = "   "
		setEnv(t, env)

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DISHWASHER_BOT_MQTT_BROKER") {
			t.Errorf("Load() error = %v, want missing MQTT_BROKER", err)
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		env := completeEnv()
		env[keyPort] = "mqtt"
		setEnv(t, env)

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DISHWASHER_BOT_MQTT_PORT") {
			t.Errorf("Load() error = %v, want invalid port", err)
		}
	})

	t.Run("invalid authorization room", func(t *testing.T) {
		env := completeEnv()
		env[keyAuthorizationRoom] = "admins"
		setEnv(t, env)

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "AUTHORIZATION_ROOM") {
			t.Errorf("Load() error = %v, want invalid room", err)
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		env := completeEnv()
		env[keyLogLevel] = "chatty"
		setEnv(t, env)

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "LOGLEVEL") {
			t.Errorf("Load() error = %v, want invalid level", err)
		}
	})
}

func TestMatchesUser(t *testing.T) {
	bot := ref.MustParseUserID("@dishwasher:example.org")
	other := ref.MustParseUserID("@dishwasher:elsewhere.org")

	full := MatrixConfig{User: "@dishwasher:example.org"}
	if !full.MatchesUser(bot) || full.MatchesUser(other) {
		t.Error("full user ID must match exactly")
	}

	localpart := MatrixConfig{User: "dishwasher"}
	if !localpart.MatchesUser(bot) || !localpart.MatchesUser(other) {
		t.Error("bare localpart must match any server")
	}
}
