// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/dishwasher-bot/dishwasher-bot/lib/appliance"
	"github.com/dishwasher-bot/dishwasher-bot/lib/logging"
	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
)

// EnvPrefix is prepended (with "_") to every key to form the
// environment variable name.
const EnvPrefix = "DISHWASHER_BOT"

// Keys, as bound to viper. The environment variable is
// EnvPrefix + "_" + upper-cased key.
const (
	keyHomeserver        = "matrix_homeserver"
	keyUser              = "matrix_user"
	keyLoginToken        = "matrix_login_token"
	keySessionFile       = "matrix_session_file"
	keyCryptoStorePath   = "crypto_store_path"
	keyAuthorizationRoom = "matrix_authorization_room"
	keyBroker            = "mqtt_broker"
	keyPort              = "mqtt_port"
	keyClientID          = "mqtt_client_id"
	keyMQTTUser          = "mqtt_user"
	keyMQTTPassword      = "mqtt_pw"
	keyTopicPrefix       = "mqtt_topic_prefix"
	keyLogLevel          = "loglevel"
)

var required = []string{
	keyHomeserver,
	keyUser,
	keyLoginToken,
	keyAuthorizationRoom,
	keyBroker,
	keyClientID,
	keyMQTTUser,
	keyMQTTPassword,
	keyTopicPrefix,
}

var defaults = map[string]string{
	keySessionFile:     "./session.txt",
	keyCryptoStorePath: "./crypto-store/",
	keyPort:            "1883",
	keyLogLevel:        "INFO",
}

// Config is the complete relay configuration.
type Config struct {
	Matrix   MatrixConfig
	MQTT     MQTTConfig
	LogLevel slog.Level
}

// MatrixConfig configures the chat side.
type MatrixConfig struct {
	// HomeserverURL is the base URL of the homeserver.
	HomeserverURL string

	// User identifies the bot account, either as a full user ID
	// ("@dishwasher:example.org") or as a bare localpart.
	User string

	// LoginToken is exchanged for an access token (m.login.token) when
	// no usable session file exists.
	LoginToken string

	// SessionFile is where the access token is stored between runs.
	SessionFile string

	// CryptoStorePath is created at startup. The relay does not
	// implement end-to-end encryption and keeps no keys there.
	CryptoStorePath string

	// Exactly one of AuthorizationRoomID and AuthorizationRoomAlias is
	// set. Members of this room may issue start and reset commands.
	AuthorizationRoomID    ref.RoomID
	AuthorizationRoomAlias ref.RoomAlias
}

// MatchesUser reports whether userID is the configured bot account.
// A bare localpart in User matches any server.
func (m MatrixConfig) MatchesUser(userID ref.UserID) bool {
	if strings.HasPrefix(m.User, "@") {
		return userID.String() == m.User
	}
	return userID.Localpart() == m.User
}

// MQTTConfig configures the broker side.
type MQTTConfig struct {
	Host        string
	Port        int
	ClientID    string
	Username    string
	Password    string
	TopicPrefix appliance.TopicPrefix
}

// BrokerURL returns the paho server URL, tcp://host:port.
func (m MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.Host, m.Port)
}

// EnvVar returns the environment variable name for key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

// Load reads the configuration from the process environment. An empty
// variable counts as unset. Returns an error naming every missing
// required variable, or the first invalid value.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range required {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", EnvVar(key), err)
		}
	}
	for key, value := range defaults {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", EnvVar(key), err)
		}
		v.SetDefault(key, value)
	}

	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, EnvVar(key))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("need %s in env", strings.Join(missing, ", "))
	}

	config := &Config{
		Matrix: MatrixConfig{
			HomeserverURL:   v.GetString(keyHomeserver),
			User:            v.GetString(keyUser),
			LoginToken:      v.GetString(keyLoginToken),
			SessionFile:     v.GetString(keySessionFile),
			CryptoStorePath: v.GetString(keyCryptoStorePath),
		},
		MQTT: MQTTConfig{
			Host:        v.GetString(keyBroker),
			ClientID:    v.GetString(keyClientID),
			Username:    v.GetString(keyMQTTUser),
			Password:    v.GetString(keyMQTTPassword),
			TopicPrefix: appliance.NormalizePrefix(v.GetString(keyTopicPrefix)),
		},
	}

	if err := parseAuthorizationRoom(v.GetString(keyAuthorizationRoom), &config.Matrix); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvVar(keyAuthorizationRoom), err)
	}

	port, err := strconv.Atoi(v.GetString(keyPort))
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("%s: invalid port %q", EnvVar(keyPort), v.GetString(keyPort))
	}
	config.MQTT.Port = port

	level, err := logging.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvVar(keyLogLevel), err)
	}
	config.LogLevel = level

	return config, nil
}

func parseAuthorizationRoom(raw string, matrix *MatrixConfig) error {
	if strings.HasPrefix(raw, "#") {
		alias, err := ref.ParseRoomAlias(raw)
		if err != nil {
			return err
		}
		matrix.AuthorizationRoomAlias = alias
		return nil
	}
	roomID, err := ref.ParseRoomID(raw)
	if err != nil {
		return err
	}
	matrix.AuthorizationRoomID = roomID
	return nil
}
