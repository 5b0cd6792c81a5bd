// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package hidetag

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateInitializing State = iota
	StateAwaitingScan
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingScan:
		return "awaiting_scan"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CloseReason classifies why a connection closed.
type CloseReason int

const (
	CloseUnknown CloseReason = iota
	CloseLoggedOut
	CloseRestartRequired
	CloseConnectionClosed
	CloseConnectionLost
	CloseConnectionReplaced
	CloseTimedOut
	CloseBadSession
	CloseForbidden
	CloseServiceUnavailable
	CloseClientOutdated
	CloseConnectionFailed
)

var closeReasonNames = map[CloseReason]string{
	CloseUnknown:            "unknown",
	CloseLoggedOut:          "logged_out",
	CloseRestartRequired:    "restart_required",
	CloseConnectionClosed:   "connection_closed",
	CloseConnectionLost:     "connection_lost",
	CloseConnectionReplaced: "connection_replaced",
	CloseTimedOut:           "timed_out",
	CloseBadSession:         "bad_session",
	CloseForbidden:          "forbidden",
	CloseServiceUnavailable: "service_unavailable",
	CloseClientOutdated:     "client_outdated",
	CloseConnectionFailed:   "connection_failed",
}

func (r CloseReason) String() string {
	if name, ok := closeReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("close_reason(%d)", int(r))
}

// ParseCloseReason parses the snake_case name returned by CloseReason.String.
func ParseCloseReason(name string) (CloseReason, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for reason, n := range closeReasonNames {
		if n == name {
			return reason, nil
		}
	}
	return CloseUnknown, fmt.Errorf("unknown close reason %q", name)
}

// Event is anything a Connection emits. The concrete types are
// AuthChallenge, Opened, Closed, CredentialsChanged and MessageEvent.
type Event interface {
	isEvent()
}

// AuthChallenge asks the user to scan a pairing code.
type AuthChallenge struct {
	Code    string
	Timeout time.Duration
}

// Opened reports that the connection is authenticated and receiving events.
type Opened struct{}

// Closed reports that the connection is gone. Err carries the transport's
// diagnostic, if any.
type Closed struct {
	Reason CloseReason
	Err    error
}

func (c Closed) String() string {
	if c.Err != nil {
		return fmt.Sprintf("%s (%v)", c.Reason, c.Err)
	}
	return c.Reason.String()
}

// CredentialsChanged asks for the session's credentials to be persisted.
type CredentialsChanged struct{}

// MessageEvent carries one inbound message.
type MessageEvent struct {
	Message *InboundMessage
}

func (AuthChallenge) isEvent()      {}
func (Opened) isEvent()             {}
func (Closed) isEvent()             {}
func (CredentialsChanged) isEvent() {}
func (MessageEvent) isEvent()       {}

// ContentKind tells which message field a Content was taken from.
type ContentKind int

const (
	ContentNone ContentKind = iota
	ContentText
	ContentExtendedText
	ContentImage
)

func (k ContentKind) String() string {
	switch k {
	case ContentText:
		return "text"
	case ContentExtendedText:
		return "extended_text"
	case ContentImage:
		return "image"
	default:
		return "none"
	}
}

// Content is the user-visible part of a message. Media holds the
// transport's original media payload for image messages so it can be
// re-sent unchanged with the edit.
type Content struct {
	Kind  ContentKind
	Text  string
	Media any
}

// ExtractText returns the message text or image caption. It returns false for
// content kinds that carry no text.
func (c Content) ExtractText() (string, bool) {
	switch c.Kind {
	case ContentText, ContentExtendedText, ContentImage:
		return c.Text, c.Text != ""
	default:
		return "", false
	}
}

// MessageRef identifies a sent message so that a later send can edit it.
type MessageRef struct {
	Chat   string
	ID     string
	Sender string
}

// InboundMessage is one message event as seen by the classifier.
type InboundMessage struct {
	FromMe  bool
	Chat    string
	IsGroup bool
	// IsEdit is set for edits echoed back by the transport, including the
	// rewrites this package sends.
	IsEdit  bool
	Content Content
	Ref     MessageRef
}

// GroupContext is a snapshot of a group's name and membership.
type GroupContext struct {
	Name         string
	Participants []string
}

// RewriteRequest is the edit sent for a qualifying message.
type RewriteRequest struct {
	Chat     string
	Content  Content
	Edit     MessageRef
	Mentions []string
}
