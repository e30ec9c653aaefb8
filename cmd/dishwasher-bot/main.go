// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dishwasher-bot/dishwasher-bot/lib/allowlist"
	"github.com/dishwasher-bot/dishwasher-bot/lib/broker"
	"github.com/dishwasher-bot/dishwasher-bot/lib/clock"
	"github.com/dishwasher-bot/dishwasher-bot/lib/config"
	"github.com/dishwasher-bot/dishwasher-bot/lib/logging"
	"github.com/dishwasher-bot/dishwasher-bot/lib/process"
	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
	"github.com/dishwasher-bot/dishwasher-bot/lib/secret"
	"github.com/dishwasher-bot/dishwasher-bot/lib/service"
	"github.com/dishwasher-bot/dishwasher-bot/lib/version"
	"github.com/dishwasher-bot/dishwasher-bot/messaging"
)

// drainTimeout bounds how long shutdown waits for queued commands and
// in-flight publishes.
const drainTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting dishwasher bot", version.LogAttrs()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Matrix.CryptoStorePath, 0700); err != nil {
		return fmt.Errorf("creating crypto store %s: %w", cfg.Matrix.CryptoStorePath, err)
	}

	loginToken, err := secret.NewFromString(cfg.Matrix.LoginToken)
	if err != nil {
		return fmt.Errorf("protecting login token: %w", err)
	}
	cfg.Matrix.LoginToken = ""
	_, session, err := service.Authenticate(ctx, service.AuthConfig{
		HomeserverURL: cfg.Matrix.HomeserverURL,
		SessionFile:   cfg.Matrix.SessionFile,
		LoginToken:    loginToken,
		MatchesUser:   cfg.Matrix.MatchesUser,
	}, logger)
	loginToken.Close()
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}
	defer session.Close()
	logger.Info("matrix session ready", "user_id", session.UserID())

	authorizationRoom, err := resolveAuthorizationRoom(ctx, session, cfg.Matrix)
	if err != nil {
		return err
	}
	authorized := allowlist.NewManager(session, authorizationRoom, clock.Real(), logger)
	logAuthorizationRoom(ctx, authorized, logger)

	mqttPassword, err := secret.NewFromString(cfg.MQTT.Password)
	if err != nil {
		return fmt.Errorf("protecting mqtt password: %w", err)
	}
	cfg.MQTT.Password = ""

	brokerStatus := make(chan broker.Status, 16)
	publisher, err := broker.Connect(broker.Config{
		BrokerURL:   cfg.MQTT.BrokerURL(),
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    mqttPassword,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}, brokerStatus, logger)
	if err != nil {
		mqttPassword.Close()
		return err
	}
	defer publisher.Close()

	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		superviseBroker(ctx, brokerStatus, cfg.MQTT.BrokerURL(), logger)
	}()

	events := make(chan chatEvent, 64)
	syncRelay := newRelay(session, events, logger)

	sinceToken, initial, err := service.InitialSync(ctx, session, syncFilter)
	if err != nil {
		return err
	}
	syncRelay.seed(ctx, initial)

	// The dispatcher outlives ctx so that queued commands still get
	// their replies during shutdown.
	dispatchCtx, cancelDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDispatch()
	dispatch := &dispatcher{
		botUserID: session.UserID(),
		sender:    session,
		allowlist: authorized,
		publisher: publisher,
		logger:    logger,
	}
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatch.run(dispatchCtx, events)
	}()

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		service.RunSyncLoop(ctx, session, service.SyncConfig{
			Filter: syncFilter,
		}, sinceToken, syncRelay.handleSync, clock.Real(), logger)
	}()

	logger.Info("dishwasher bot running",
		"user_id", session.UserID(),
		"authorization_room", authorizationRoom,
		"topic_prefix", cfg.MQTT.TopicPrefix,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	<-syncDone
	close(events)
	select {
	case <-dispatchDone:
	case <-time.After(drainTimeout):
		logger.Warn("dispatcher did not drain in time")
		cancelDispatch()
		<-dispatchDone
	}
	if !publisher.Flush(drainTimeout) {
		logger.Warn("broker publishes still pending at shutdown")
	}
	<-supervisorDone
	return nil
}

// resolveAuthorizationRoom returns the configured authorization room
// ID, resolving an alias through the room directory.
func resolveAuthorizationRoom(ctx context.Context, session *messaging.DirectSession, matrix config.MatrixConfig) (ref.RoomID, error) {
	if !matrix.AuthorizationRoomID.IsZero() {
		return matrix.AuthorizationRoomID, nil
	}
	roomID, err := session.ResolveAlias(ctx, matrix.AuthorizationRoomAlias)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("resolving authorization room: %w", err)
	}
	return roomID, nil
}

// logAuthorizationRoom loads the authorization room's members once at
// startup and logs how many there are. A failure is only logged: the
// set stays empty and every command is denied until a later refresh
// succeeds.
func logAuthorizationRoom(ctx context.Context, manager *allowlist.Manager, logger *slog.Logger) {
	if err := manager.Refresh(ctx); err != nil {
		logger.Warn("could not load authorization room members",
			"room_id", manager.RoomID(),
			"error", err,
		)
		return
	}
	logger.Info("authorization room ready",
		"room_id", manager.RoomID(),
		"members", len(manager.Members()),
	)
}

// superviseBroker logs broker connection changes until ctx is done.
func superviseBroker(ctx context.Context, status <-chan broker.Status, brokerURL string, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-status:
			if change.Connected {
				logger.Info("Connected to MQTT Broker!", "broker", brokerURL)
			} else {
				logger.Warn("lost connection to MQTT broker, reconnecting",
					"broker", brokerURL,
					"error", change.Err,
				)
			}
		}
	}
}
