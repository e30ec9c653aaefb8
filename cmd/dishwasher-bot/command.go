// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

// Chat command handling. The sync handler turns m.text messages into
// chatEvents; the dispatcher goroutine handles them one at a time:
// context filter, command match, argument validation, authorization,
// publish, reply.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dishwasher-bot/dishwasher-bot/lib/appliance"
	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
	"github.com/dishwasher-bot/dishwasher-bot/messaging"
)

// maxDirectRoomMembers is the largest room the bot answers in: itself
// and one user.
const maxDirectRoomMembers = 2

const (
	replyMissingDevice = "Please supply a dishwasher"
	replyUnauthorized  = "You are not authorized to perform this function."
)

// helpText is the reply to "help".
var helpText = buildHelpText(appliance.Devices())

func buildHelpText(devices []appliance.Device) string {
	names := make([]string, len(devices))
	for i, device := range devices {
		names[i] = device.String()
	}
	split := len(names) / 2

	var builder strings.Builder
	builder.WriteString("This bot only works in unencrypted direct message rooms.\n\n")
	builder.WriteString("This bot supports the following commands:\n\n")
	builder.WriteString("help                 Prints this help\n")
	builder.WriteString("start <dishwasher>   Start the given dishwasher\n")
	builder.WriteString("reset <dishwasher>   Reset/Empty the given dishwasher\n\n")
	builder.WriteString("Valid dishwashers are:\n\n")
	builder.WriteString(strings.Join(names[:split], ", ") + ",\n")
	builder.WriteString(strings.Join(names[split:], ", ") + "\n")
	return builder.String()
}

// chatEvent is one inbound text message, with the room size at the
// time it was received.
type chatEvent struct {
	RoomID      ref.RoomID
	MemberCount int
	Sender      ref.UserID
	EventID     ref.EventID
	Body        string
}

// messageSender sends replies. *messaging.DirectSession satisfies it.
type messageSender interface {
	SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error)
}

// authorizer decides whether a sender may start or reset dishwashers.
// *allowlist.Manager satisfies it.
type authorizer interface {
	Authorize(ctx context.Context, sender ref.UserID) bool
}

// actionPublisher emits control messages. *broker.Publisher satisfies
// it.
type actionPublisher interface {
	Publish(device appliance.Device, action appliance.Action)
}

// dispatcher handles chatEvents. It is driven by a single goroutine
// and is the only user of the authorizer.
type dispatcher struct {
	botUserID ref.UserID
	sender    messageSender
	allowlist authorizer
	publisher actionPublisher
	logger    *slog.Logger
}

// run handles events until the channel is closed.
func (d *dispatcher) run(ctx context.Context, events <-chan chatEvent) {
	for event := range events {
		d.handle(ctx, event)
	}
}

func (d *dispatcher) handle(ctx context.Context, event chatEvent) {
	if event.Sender == d.botUserID {
		return
	}
	if event.MemberCount > maxDirectRoomMembers {
		d.logger.Debug("ignoring message outside a direct room",
			"room_id", event.RoomID,
			"members", event.MemberCount,
		)
		return
	}

	fields := strings.Fields(event.Body)
	if len(fields) == 0 {
		return
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]

	logger := d.logger.With(
		"command_id", uuid.NewString(),
		"command", command,
		"room_id", event.RoomID,
		"sender", event.Sender,
		"event_id", event.EventID,
	)

	if command == "help" {
		logger.Debug("responding with help")
		d.reply(ctx, logger, event.RoomID, helpText)
		return
	}

	action, err := appliance.ParseAction(command)
	if err != nil {
		return
	}
	d.control(ctx, logger, event, action, args)
}

// control validates the device argument, authorizes the sender, then
// publishes and confirms.
func (d *dispatcher) control(ctx context.Context, logger *slog.Logger, event chatEvent, action appliance.Action, args []string) {
	if len(args) == 0 {
		d.reply(ctx, logger, event.RoomID, replyMissingDevice)
		return
	}

	device, err := appliance.ParseDevice(args[0])
	if err != nil {
		var unknown *appliance.UnknownDeviceError
		if errors.As(err, &unknown) {
			d.reply(ctx, logger, event.RoomID, fmt.Sprintf("Unknown dishwasher: %s.", unknown.Name))
		}
		return
	}

	if !d.allowlist.Authorize(ctx, event.Sender) {
		logger.Info("unauthorized command", "dishwasher", device)
		d.reply(ctx, logger, event.RoomID, replyUnauthorized)
		return
	}

	logger.Info("authorized command", "dishwasher", device, "action", action)
	d.publisher.Publish(device, action)
	d.reply(ctx, logger, event.RoomID, confirmation(device, action))
}

func confirmation(device appliance.Device, action appliance.Action) string {
	switch action {
	case appliance.Start:
		return fmt.Sprintf("Started dishwasher: %s.", device.DisplayName())
	default:
		return fmt.Sprintf("Reset dishwasher: %s.", device.DisplayName())
	}
}

func (d *dispatcher) reply(ctx context.Context, logger *slog.Logger, roomID ref.RoomID, body string) {
	if _, err := d.sender.SendMessage(ctx, roomID, messaging.NewTextMessage(body)); err != nil {
		logger.Error("failed to send reply", "error", err)
	}
}
