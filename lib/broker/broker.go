// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dishwasher-bot/dishwasher-bot/lib/appliance"
	"github.com/dishwasher-bot/dishwasher-bot/lib/secret"
)

const (
	// KeepAlive is the MQTT keep-alive interval.
	KeepAlive = 10 * time.Second

	// DisconnectQuiesce is how long Close lets in-flight work finish,
	// in milliseconds.
	DisconnectQuiesce = 250
)

// Config holds the broker connection settings.
type Config struct {
	// BrokerURL is the broker address, e.g. "tcp://mqtt.local:1883".
	BrokerURL string
	ClientID  string
	Username  string

	// Password is read on every (re)connect. The publisher takes
	// ownership and closes it in Close.
	Password *secret.Buffer

	TopicPrefix appliance.TopicPrefix
}

// Status is a broker connection change reported by paho's handlers.
type Status struct {
	Connected bool
	// Err is the reason the connection was lost. Nil when Connected.
	Err error
}

// NewOptions builds the paho client options for config. Connection
// changes are sent to status without blocking; a change is dropped
// (and logged) when status is full.
func NewOptions(config Config, status chan<- Status, logger *slog.Logger) *mqtt.ClientOptions {
	report := func(s Status) {
		select {
		case status <- s:
		default:
			logger.Warn("broker status channel full, dropping update", "connected", s.Connected)
		}
	}

	options := mqtt.NewClientOptions()
	options.AddBroker(config.BrokerURL)
	options.SetClientID(config.ClientID)
	options.SetUsername(config.Username)
	password := config.Password
	options.SetCredentialsProvider(func() (string, string) {
		if password == nil || password.Len() == 0 {
			return config.Username, ""
		}
		return config.Username, password.String()
	})
	options.SetKeepAlive(KeepAlive)
	options.SetAutoReconnect(true)
	options.SetConnectRetry(true)
	options.SetOnConnectHandler(func(mqtt.Client) {
		report(Status{Connected: true})
	})
	options.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		report(Status{Connected: false, Err: err})
	})
	options.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		logger.Debug("reconnecting to broker", "broker", config.BrokerURL)
	})
	return options
}

// Connect creates the paho client and starts connecting in the
// background. It does not wait for the broker: paho retries until the
// broker is reachable and status receives the outcome.
func Connect(config Config, status chan<- Status, logger *slog.Logger) (*Publisher, error) {
	if config.BrokerURL == "" {
		return nil, fmt.Errorf("broker: BrokerURL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := mqtt.NewClient(NewOptions(config, status, logger))
	token := client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			logger.Warn("failed to connect to broker", "broker", config.BrokerURL, "error", err)
		}
	}()

	publisher := NewPublisher(client, config.TopicPrefix, logger)
	publisher.password = config.Password
	return publisher, nil
}
