// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package hidetag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var errEventStreamEnded = errors.New("event stream ended without a close event")

// Session is one connection lifetime. Sessions are replaced, never reused.
type Session struct {
	ID    uint64
	Creds Credentials

	conn   Connection
	state  State
	opened bool
	log    zerolog.Logger
}

// Manager runs the session lifecycle and the rewrite pipeline.
type Manager struct {
	transport  Transport
	store      CredentialStore
	status     StatusSink
	policy     ReconnectPolicy
	dispatcher *Dispatcher
	metrics    *Metrics
	log        zerolog.Logger

	// current is written only by the Run goroutine; the lock is for State.
	mu         sync.RWMutex
	current    *Session
	generation uint64

	// purgePending is set after a logout and cleared once Purge succeeds.
	// No session loads credentials while it is set.
	purgePending bool
}

// ManagerParams holds the collaborators of a Manager. Status, Metrics and
// Dispatcher are optional.
type ManagerParams struct {
	Transport  Transport
	Store      CredentialStore
	Status     StatusSink
	Policy     ReconnectPolicy
	Dispatcher *Dispatcher
	Metrics    *Metrics
	Log        zerolog.Logger
}

// NewManager creates a Manager. It does not connect until Run is called.
func NewManager(params ManagerParams) *Manager {
	status := params.Status
	if status == nil {
		status = discardStatus{}
	}
	dispatcher := params.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher(params.Log, status, params.Metrics)
	}
	return &Manager{
		transport:  params.Transport,
		store:      params.Store,
		status:     status,
		policy:     params.Policy,
		dispatcher: dispatcher,
		metrics:    params.Metrics,
		log:        params.Log.With().Str("component", "session_manager").Logger(),
	}
}

// State returns the state of the current session, or StateClosed when no
// session exists.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return StateClosed
	}
	return m.current.state
}

// Run connects and keeps the account connected until ctx is cancelled or
// the reconnect policy gives up. It returns ctx.Err() on cancellation and
// an error wrapping ErrReconnectLimit or ErrTerminalClose otherwise.
func (m *Manager) Run(ctx context.Context) error {
	attempt := 0
	m.status.Report(LevelConnecting, "Starting...")
	for {
		sess, closed := m.startSession(ctx)
		if sess != nil {
			closed = m.runSession(ctx, sess)
			m.endSession(sess)
		}
		if err := ctx.Err(); err != nil {
			m.log.Info().Msg("Session manager stopped")
			return err
		}
		if sess != nil && sess.opened {
			attempt = 0
		}
		attempt++

		m.metrics.observeClose(closed.Reason)
		decision := m.policy.Decide(closed.Reason, attempt)
		m.log.Warn().
			Err(closed.Err).
			Stringer("reason", closed.Reason).
			Int("attempt", attempt).
			Stringer("action", decision.Action).
			Dur("delay", decision.Delay).
			Msg("Connection closed")

		switch decision.Action {
		case ActionStop:
			m.status.Report(LevelError, fmt.Sprintf("connection closed due to %s, not reconnecting", closed))
			return decision.Err
		case ActionRebootstrap:
			m.status.Report(LevelWarning, fmt.Sprintf("connection closed due to %s, logging in again", closed))
			m.purgePending = true
		default:
			m.status.Report(LevelWarning, fmt.Sprintf("connection closed due to %s, reconnecting", closed))
		}

		if decision.Delay > 0 {
			timer := time.NewTimer(decision.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		m.status.Report(LevelConnecting, "reconnecting...")
	}
}

// startSession replaces the current session with a new one in the
// Initializing state and opens its connection. A pending purge runs first
// and a failing one keeps the old credentials from being loaded. When any
// step fails it returns the close to feed into the policy instead.
func (m *Manager) startSession(ctx context.Context) (*Session, Closed) {
	m.mu.Lock()
	m.generation++
	sess := &Session{
		ID:    m.generation,
		state: StateInitializing,
	}
	sess.log = m.log.With().Uint64("session_id", sess.ID).Logger()
	m.current = sess
	m.mu.Unlock()
	m.metrics.observeTransition(StateInitializing)
	log := sess.log

	if m.purgePending {
		if err := m.store.Purge(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to purge credentials")
			m.status.Report(LevelError, fmt.Sprintf("Failed to purge credentials: %v", err))
			m.setState(sess, StateClosed)
			m.clearSession(sess)
			return nil, Closed{Reason: CloseConnectionFailed, Err: fmt.Errorf("failed to purge credentials: %w", err)}
		}
		m.purgePending = false
		m.metrics.observePurge()
	}

	creds, err := m.store.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load credentials")
		m.setState(sess, StateClosed)
		m.clearSession(sess)
		return nil, Closed{Reason: CloseConnectionFailed, Err: fmt.Errorf("failed to load credentials: %w", err)}
	}
	sess.Creds = creds

	conn, err := m.transport.Open(ctx, creds)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open connection")
		m.setState(sess, StateClosed)
		m.clearSession(sess)
		return nil, Closed{Reason: CloseConnectionFailed, Err: fmt.Errorf("failed to open connection: %w", err)}
	}
	sess.conn = conn
	log.Debug().Msg("Connection opened, waiting for lifecycle events")
	return sess, Closed{}
}

// runSession consumes the session's events until the connection closes.
// Sessions run one after another on the Run goroutine, so returning here is
// what abandons the channel: whatever is still buffered on it is never read.
func (m *Manager) runSession(ctx context.Context, sess *Session) Closed {
	events := sess.conn.Events()
	for {
		select {
		case <-ctx.Done():
			return Closed{Reason: CloseConnectionClosed, Err: ctx.Err()}
		case evt, ok := <-events:
			if !ok {
				m.setState(sess, StateClosed)
				return Closed{Reason: CloseConnectionClosed, Err: errEventStreamEnded}
			}
			if closed, done := m.handleEvent(ctx, sess, evt); done {
				return closed
			}
		}
	}
}

// handleEvent processes one event and reports whether it ended the session.
func (m *Manager) handleEvent(ctx context.Context, sess *Session, evt Event) (Closed, bool) {
	switch e := evt.(type) {
	case AuthChallenge:
		if sess.state == StateOpen {
			sess.log.Warn().Msg("Ignoring auth challenge on an open session")
			return Closed{}, false
		}
		m.setState(sess, StateAwaitingScan)
		m.status.Report(LevelChallenge, e.Code)
		m.status.Report(LevelConnecting, "Please scan the QR Code...")
	case Opened:
		sess.opened = true
		m.setState(sess, StateOpen)
		m.status.Report(LevelOpen, "opened connection")
		m.status.Report(LevelConnecting, "Waiting new message...")
	case Closed:
		m.setState(sess, StateClosed)
		return e, true
	case CredentialsChanged:
		if err := m.store.Save(ctx, sess.Creds); err != nil {
			sess.log.Error().Err(err).Msg("Failed to persist credentials")
			m.status.Report(LevelWarning, fmt.Sprintf("Failed to save credentials: %v", err))
		}
	case MessageEvent:
		m.handleMessage(ctx, sess, e.Message)
	default:
		sess.log.Trace().Type("event_type", evt).Msg("Unhandled event type")
	}
	return Closed{}, false
}

func (m *Manager) handleMessage(ctx context.Context, sess *Session, msg *InboundMessage) {
	cand := Classify(sess.state, msg)
	if cand == nil {
		return
	}
	// Errors are reported by the dispatcher and never affect the session.
	_ = m.dispatcher.Dispatch(ctx, sess.conn, cand)
}

func (m *Manager) endSession(sess *Session) {
	m.setState(sess, StateClosed)
	sess.conn.Close()
	m.clearSession(sess)
}

func (m *Manager) clearSession(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == sess {
		m.current = nil
	}
}

func (m *Manager) setState(sess *Session, state State) {
	m.mu.Lock()
	prev := sess.state
	sess.state = state
	m.mu.Unlock()
	if prev == state {
		return
	}
	m.metrics.observeTransition(state)
	sess.log.Debug().
		Stringer("from", prev).
		Stringer("to", state).
		Msg("Session state changed")
}
