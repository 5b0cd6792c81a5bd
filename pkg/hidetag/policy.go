// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package hidetag

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

var (
	ErrReconnectLimit = errors.New("reconnect attempts exhausted")
	ErrTerminalClose  = errors.New("connection closed with a terminal reason")
)

// Action is what the Manager does after a close.
type Action int

const (
	// ActionReconnect starts a new session with the existing credentials.
	ActionReconnect Action = iota
	// ActionRebootstrap purges the credentials and starts a fresh session.
	ActionRebootstrap
	// ActionStop ends Manager.Run.
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionReconnect:
		return "reconnect"
	case ActionRebootstrap:
		return "rebootstrap"
	case ActionStop:
		return "stop"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the outcome of ReconnectPolicy.Decide.
type Decision struct {
	Action Action
	Delay  time.Duration
	Err    error
}

// ReconnectPolicy decides how to recover from a close. The zero value
// retries every close immediately and without limit, re-bootstrapping on
// logout.
type ReconnectPolicy struct {
	// MaxAttempts caps consecutive attempts that did not reach Open. Zero
	// means unbounded.
	MaxAttempts int
	// InitialDelay is the wait before the first attempt. Zero reconnects
	// immediately.
	InitialDelay time.Duration
	// MaxDelay caps the backoff. Zero means no cap.
	MaxDelay time.Duration
	// Multiplier grows the delay per attempt. Values below 1 are treated as 1.
	Multiplier float64
	// Terminal lists close reasons that stop the Manager instead of
	// reconnecting.
	Terminal []CloseReason
}

// Decide returns the action for a close with reason, where attempt counts
// the consecutive attempts since the last time a session was open,
// including the one about to be made.
func (p ReconnectPolicy) Decide(reason CloseReason, attempt int) Decision {
	if slices.Contains(p.Terminal, reason) {
		return Decision{
			Action: ActionStop,
			Err:    fmt.Errorf("%w: %s", ErrTerminalClose, reason),
		}
	}
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return Decision{
			Action: ActionStop,
			Err:    fmt.Errorf("%w after %d attempts (last close: %s)", ErrReconnectLimit, attempt-1, reason),
		}
	}
	action := ActionReconnect
	if reason == CloseLoggedOut {
		action = ActionRebootstrap
	}
	return Decision{
		Action: action,
		Delay:  p.Delay(attempt),
	}
}

// Delay returns min(InitialDelay * Multiplier^(attempt-1), MaxDelay).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 || attempt < 1 {
		return 0
	}
	mult := max(p.Multiplier, 1)
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
