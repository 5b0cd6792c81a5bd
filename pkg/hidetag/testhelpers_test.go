// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package hidetag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const (
	testGroup = "120363000000000000@g.us"
	testSelf  = "6281200000000@s.whatsapp.net"
)

// fakeConn is a scripted Connection. Events passed to newFakeConn are
// buffered before the manager starts reading.
type fakeConn struct {
	events chan Event

	mu         sync.Mutex
	group      *GroupContext
	groupErr   error
	sendErr    error
	groupCalls []string
	sent       []*RewriteRequest
	closeCount int
	groupCtx   []context.Context
}

func newFakeConn(events ...Event) *fakeConn {
	c := &fakeConn{events: make(chan Event, len(events)+16)}
	for _, evt := range events {
		c.events <- evt
	}
	return c
}

// endStream closes the event channel after the scripted events.
func (c *fakeConn) endStream() *fakeConn {
	close(c.events)
	return c
}

func (c *fakeConn) withGroup(name string, participants ...string) *fakeConn {
	c.group = &GroupContext{Name: name, Participants: participants}
	return c
}

func (c *fakeConn) Events() <-chan Event {
	return c.events
}

func (c *fakeConn) GroupInfo(ctx context.Context, groupID string) (*GroupContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groupCalls = append(c.groupCalls, groupID)
	c.groupCtx = append(c.groupCtx, ctx)
	if c.groupErr != nil {
		return nil, c.groupErr
	}
	if c.group == nil {
		return nil, errors.New("not a participant")
	}
	cp := *c.group
	cp.Participants = append([]string(nil), c.group.Participants...)
	return &cp, nil
}

func (c *fakeConn) SendMessage(_ context.Context, req *RewriteRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, req)
	return c.sendErr
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCount++
}

func (c *fakeConn) Sent() []*RewriteRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*RewriteRequest(nil), c.sent...)
}

func (c *fakeConn) GroupCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.groupCalls...)
}

func (c *fakeConn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

// fakeTransport hands out scripted connections in order. Once they run out
// it returns idle connections that never emit anything.
type fakeTransport struct {
	mu      sync.Mutex
	conns   []*fakeConn
	opened  []Credentials
	openErr error
}

func newFakeTransport(conns ...*fakeConn) *fakeTransport {
	return &fakeTransport{conns: conns}
}

func (f *fakeTransport) Open(_ context.Context, creds Credentials) (Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, creds)
	if f.openErr != nil {
		return nil, f.openErr
	}
	if len(f.conns) == 0 {
		return newFakeConn(), nil
	}
	conn := f.conns[0]
	f.conns = f.conns[1:]
	return conn, nil
}

func (f *fakeTransport) Opened() []Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Credentials(nil), f.opened...)
}

// fakeStore keeps credentials as plain strings. Purge swaps them for
// "fresh" to mimic an unpaired device.
type fakeStore struct {
	mu      sync.Mutex
	creds   string
	loads   int
	saves   int
	purges  int
	saveErr error
	loadErr error
	// purgeFailures is how many Purge calls fail before one succeeds.
	purgeFailures int
}

func newFakeStore(creds string) *fakeStore {
	return &fakeStore{creds: creds}
}

func (s *fakeStore) Load(context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.creds, nil
}

func (s *fakeStore) Save(context.Context, Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return s.saveErr
}

func (s *fakeStore) Purge(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purges++
	if s.purgeFailures > 0 {
		s.purgeFailures--
		return errors.New("database is locked")
	}
	s.creds = "fresh"
	return nil
}

func (s *fakeStore) counts() (loads, saves, purges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads, s.saves, s.purges
}

type statusReport struct {
	Level   Level
	Message string
}

// recordingStatus captures status reports for assertions.
type recordingStatus struct {
	mu      sync.Mutex
	reports []statusReport
}

func (r *recordingStatus) Report(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, statusReport{Level: level, Message: message})
}

func (r *recordingStatus) Reports(level Level) []statusReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []statusReport
	for _, rep := range r.reports {
		if rep.Level == level {
			out = append(out, rep)
		}
	}
	return out
}

func (r *recordingStatus) Has(level Level, substr string) bool {
	for _, rep := range r.Reports(level) {
		if strings.Contains(rep.Message, substr) {
			return true
		}
	}
	return false
}

func groupText(text string) *InboundMessage {
	return &InboundMessage{
		FromMe:  true,
		Chat:    testGroup,
		IsGroup: true,
		Content: Content{Kind: ContentText, Text: text},
		Ref:     MessageRef{Chat: testGroup, ID: "3EB0C0FFEE", Sender: testSelf},
	}
}

func qualifyingEvent() Event {
	return MessageEvent{Message: groupText("Meeting at 5 \U0001f389")}
}

type managerHarness struct {
	t         *testing.T
	manager   *Manager
	transport *fakeTransport
	store     *fakeStore
	status    *recordingStatus

	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, policy ReconnectPolicy, store *fakeStore, conns ...*fakeConn) *managerHarness {
	t.Helper()
	h := &managerHarness{
		t:         t,
		transport: newFakeTransport(conns...),
		store:     store,
		status:    &recordingStatus{},
		done:      make(chan error, 1),
	}
	h.manager = NewManager(ManagerParams{
		Transport: h.transport,
		Store:     h.store,
		Status:    h.status,
		Policy:    policy,
		Log:       zerolog.Nop(),
	})
	return h
}

func (h *managerHarness) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		h.done <- h.manager.Run(ctx)
	}()
	h.t.Cleanup(func() {
		cancel()
	})
}

// stop cancels Run and returns its error.
func (h *managerHarness) stop() error {
	h.t.Helper()
	h.cancel()
	return h.wait()
}

// wait returns Run's error once it exits on its own.
func (h *managerHarness) wait() error {
	h.t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		h.t.Fatal("manager did not stop in time")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
