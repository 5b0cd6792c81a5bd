// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package hidetag

import (
	"context"
	"fmt"
)

// Credentials is the authentication material of one account. Its concrete
// type belongs to the Transport and CredentialStore implementations.
type Credentials any

// Transport opens connections to the messaging network.
type Transport interface {
	Open(ctx context.Context, creds Credentials) (Connection, error)
}

// Connection is one live or pending connection.
//
// Events must deliver lifecycle and message events in arrival order. After
// Close returns, the connection must not deliver further events.
type Connection interface {
	Events() <-chan Event
	GroupInfo(ctx context.Context, groupID string) (*GroupContext, error)
	SendMessage(ctx context.Context, req *RewriteRequest) error
	Close()
}

// CredentialStore loads and persists credentials.
type CredentialStore interface {
	// Load returns the stored credentials, or fresh unauthenticated ones
	// when nothing is stored.
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	// Purge deletes every stored credential.
	Purge(ctx context.Context) error
}

// Level is the kind of a status report.
type Level int

const (
	LevelInfo Level = iota
	LevelChallenge
	LevelConnecting
	LevelOpen
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelChallenge:
		return "challenge"
	case LevelConnecting:
		return "connecting"
	case LevelOpen:
		return "open"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// StatusSink receives human-facing status reports. For LevelChallenge the
// message is the raw pairing code to render. Report must not block on user
// interaction.
type StatusSink interface {
	Report(level Level, message string)
}

// StatusFunc adapts a function to StatusSink.
type StatusFunc func(level Level, message string)

func (f StatusFunc) Report(level Level, message string) {
	f(level, message)
}

type discardStatus struct{}

func (discardStatus) Report(Level, string) {}
