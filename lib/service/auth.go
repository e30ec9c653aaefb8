// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
	"github.com/dishwasher-bot/dishwasher-bot/lib/secret"
	"github.com/dishwasher-bot/dishwasher-bot/messaging"
)

// AuthConfig configures Authenticate.
type AuthConfig struct {
	// HomeserverURL is the homeserver to talk to. It takes precedence
	// over the URL recorded in the session file.
	HomeserverURL string

	// SessionFile is where the access token is persisted between runs.
	SessionFile string

	// LoginToken is exchanged for an access token when no usable
	// session exists. Read but not closed.
	LoginToken *secret.Buffer

	// MatchesUser reports whether a stored session belongs to the
	// configured account. A session for another user is ignored.
	MatchesUser func(ref.UserID) bool

	// HTTPClient is passed to the messaging client. Optional.
	HTTPClient *http.Client
}

// Authenticate returns an authenticated session, preferring the stored
// session file. A stored session is used when it belongs to the
// configured user and WhoAmI succeeds. When the homeserver rejects the
// stored token (M_UNKNOWN_TOKEN) it is discarded and a fresh login is
// performed; the new session is written back to the session file.
//
// The caller must Close the returned session.
func Authenticate(ctx context.Context, config AuthConfig, logger *slog.Logger) (*messaging.Client, *messaging.DirectSession, error) {
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: config.HomeserverURL,
		HTTPClient:    config.HTTPClient,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating matrix client: %w", err)
	}

	session, err := resumeSession(ctx, client, config, logger)
	if err != nil {
		return nil, nil, err
	}
	if session != nil {
		return client, session, nil
	}

	if config.LoginToken == nil {
		return nil, nil, fmt.Errorf("no usable session in %s and no login token", config.SessionFile)
	}
	session, err = client.LoginWithToken(ctx, config.LoginToken)
	if err != nil {
		return nil, nil, err
	}
	if config.MatchesUser != nil && !config.MatchesUser(session.UserID()) {
		logger.Warn("login token belongs to a different user than configured",
			"user_id", session.UserID(),
		)
	}

	if err := SaveSession(config.SessionFile, client.HomeserverURL(), session); err != nil {
		session.Close()
		return nil, nil, err
	}
	logger.Info("saved matrix session", "path", config.SessionFile)
	return client, session, nil
}

// resumeSession returns the stored session, or nil when a fresh login
// is required. Errors are returned only when the homeserver could not
// be asked.
func resumeSession(ctx context.Context, client *messaging.Client, config AuthConfig, logger *slog.Logger) (*messaging.DirectSession, error) {
	data, err := LoadSession(config.SessionFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no stored matrix session, logging in", "path", config.SessionFile)
		} else {
			logger.Warn("ignoring unreadable session file", "path", config.SessionFile, "error", err)
		}
		return nil, nil
	}

	userID, err := ref.ParseUserID(data.UserID)
	if err != nil {
		logger.Warn("ignoring session file with invalid user_id", "path", config.SessionFile, "error", err)
		return nil, nil
	}
	if config.MatchesUser != nil && !config.MatchesUser(userID) {
		logger.Info("stored session belongs to another user, logging in",
			"stored_user_id", userID,
		)
		return nil, nil
	}

	session, err := client.SessionFromToken(userID, data.DeviceID, data.AccessToken)
	if err != nil {
		return nil, err
	}

	validated, err := ValidateSession(ctx, session)
	if err != nil {
		session.Close()
		if messaging.IsMatrixError(err, messaging.ErrCodeUnknownToken) {
			logger.Warn("stored access token rejected, logging in", "user_id", userID)
			return nil, nil
		}
		return nil, err
	}
	if validated != userID {
		session.Close()
		logger.Warn("stored access token belongs to another user, logging in",
			"stored_user_id", userID,
			"token_user_id", validated,
		)
		return nil, nil
	}

	logger.Info("resumed matrix session", "user_id", userID, "device_id", data.DeviceID)
	return session, nil
}
