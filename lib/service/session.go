// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
	"github.com/dishwasher-bot/dishwasher-bot/lib/secret"
	"github.com/dishwasher-bot/dishwasher-bot/messaging"
)

// SessionData is the JSON structure of the session file.
type SessionData struct {
	HomeserverURL string `json:"homeserver_url"`
	UserID        string `json:"user_id"`
	DeviceID      string `json:"device_id,omitempty"`
	AccessToken   string `json:"access_token"`
}

// LoadSession reads and parses the session file at path. The raw JSON
// bytes are zeroed after parsing. Errors from a missing file satisfy
// errors.Is(err, os.ErrNotExist).
func LoadSession(path string) (*SessionData, error) {
	jsonData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session from %s: %w", path, err)
	}

	var data SessionData
	err = json.Unmarshal(jsonData, &data)
	secret.Zero(jsonData)
	if err != nil {
		return nil, fmt.Errorf("parsing session from %s: %w", path, err)
	}

	if data.AccessToken == "" {
		return nil, fmt.Errorf("session file %s has empty access token", path)
	}
	if _, err := ref.ParseUserID(data.UserID); err != nil {
		return nil, fmt.Errorf("invalid user_id in %s: %w", path, err)
	}
	return &data, nil
}

// SaveSession writes session to path with mode 0600. The JSON bytes
// are zeroed after writing.
func SaveSession(path, homeserverURL string, session *messaging.DirectSession) error {
	data := SessionData{
		HomeserverURL: homeserverURL,
		UserID:        session.UserID().String(),
		DeviceID:      session.DeviceID(),
		AccessToken:   session.AccessToken(),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	writeError := os.WriteFile(path, jsonData, 0600)
	secret.Zero(jsonData)
	if writeError != nil {
		return fmt.Errorf("writing session to %s: %w", path, writeError)
	}

	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("restricting permissions of %s: %w", path, err)
	}
	return nil
}

// ValidateSession calls WhoAmI to verify the access token is still
// valid and returns the authenticated user ID.
func ValidateSession(ctx context.Context, session *messaging.DirectSession) (ref.UserID, error) {
	response, err := session.WhoAmI(ctx)
	if err != nil {
		return ref.UserID{}, fmt.Errorf("validating matrix session: %w", err)
	}
	return response.UserID, nil
}
