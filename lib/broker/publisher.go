// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dishwasher-bot/dishwasher-bot/lib/appliance"
	"github.com/dishwasher-bot/dishwasher-bot/lib/secret"
)

// Control messages are published at QoS 1 without the retain flag.
const (
	QoS    byte = 1
	Retain      = false
)

// Client is the subset of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher turns (device, action) pairs into control messages on the
// broker.
type Publisher struct {
	client   Client
	prefix   appliance.TopicPrefix
	logger   *slog.Logger
	password *secret.Buffer

	// inflight counts publishes whose outcome has not been logged yet.
	inflight sync.WaitGroup
}

// NewPublisher returns a Publisher sending through client under prefix.
func NewPublisher(client Client, prefix appliance.TopicPrefix, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Publish sends the control message for action on device and returns
// without waiting for the broker. A failed delivery is logged.
func (p *Publisher) Publish(device appliance.Device, action appliance.Action) {
	message := appliance.NewControlMessage(p.prefix, device, action)
	p.logger.Info("sending action",
		"action", action,
		"dishwasher", device,
		"topic", message.Topic,
	)

	token := p.client.Publish(message.Topic, QoS, Retain, message.Payload())
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		<-token.Done()
		if err := token.Error(); err != nil {
			p.logger.Error("failed to publish action",
				"action", action,
				"dishwasher", device,
				"topic", message.Topic,
				"error", err,
			)
		}
	}()
}

// Flush waits up to timeout for in-flight publishes to complete and
// reports whether they all did.
func (p *Publisher) Flush(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close disconnects from the broker and releases the password.
func (p *Publisher) Close() {
	p.client.Disconnect(DisconnectQuiesce)
	if p.password != nil {
		p.password.Close()
	}
}
