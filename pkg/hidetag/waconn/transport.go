// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package waconn connects the hidetag core to WhatsApp through whatsmeow.
package waconn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/IhsanDevs/whatsapp-hidetag/pkg/hidetag"
)

const eventBufferSize = 64

var ErrNotConnected = errors.New("whatsapp client is not connected")

// Transport opens whatsmeow clients for a *store.Device.
type Transport struct {
	log zerolog.Logger
}

var _ hidetag.Transport = (*Transport)(nil)

func NewTransport(log zerolog.Logger) *Transport {
	return &Transport{log: log.With().Str("component", "waconn").Logger()}
}

// Open creates a client for creds and connects it. Unpaired devices get a
// QR channel whose codes are delivered as AuthChallenge events. Both of
// whatsmeow's reconnect paths are disabled, including the restart after
// pairing, so every close is surfaced as a Closed event instead.
func (t *Transport) Open(ctx context.Context, creds hidetag.Credentials) (hidetag.Connection, error) {
	device, ok := creds.(*store.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("unsupported credentials type %T", creds)
	}
	client := whatsmeow.NewClient(device, waLog.Zerolog(t.log.With().Str("component", "whatsmeow").Logger()))
	client.EnableAutoReconnect = false
	client.DisableLoginAutoReconnect = true

	connCtx, cancel := context.WithCancel(ctx)
	conn := &Connection{
		client: client,
		events: make(chan hidetag.Event, eventBufferSize),
		stop:   make(chan struct{}),
		cancel: cancel,
		log:    t.log,
	}
	conn.handlerID = client.AddEventHandler(conn.handleEvent)

	if device.ID == nil {
		qrChan, err := client.GetQRChannel(connCtx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to get QR channel: %w", err)
		}
		go conn.forwardQR(qrChan)
	}
	if err := client.Connect(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return conn, nil
}

// Connection is one whatsmeow client lifetime.
type Connection struct {
	client    *whatsmeow.Client
	handlerID uint32
	events    chan hidetag.Event
	log       zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
}

var _ hidetag.Connection = (*Connection)(nil)

func (c *Connection) Events() <-chan hidetag.Event {
	return c.events
}

func (c *Connection) handleEvent(rawEvt any) {
	evt := translateEvent(rawEvt)
	if evt == nil {
		c.log.Trace().Type("event_type", rawEvt).Msg("Ignoring whatsmeow event")
		return
	}
	c.emit(evt)
}

func (c *Connection) forwardQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		if evt := translateQR(item); evt != nil {
			c.emit(evt)
		}
	}
}

// emit blocks until the manager takes the event or the connection closes.
func (c *Connection) emit(evt hidetag.Event) {
	select {
	case <-c.stop:
	case c.events <- evt:
	}
}

// GroupInfo fetches the group's name and participant JIDs from the server.
func (c *Connection) GroupInfo(ctx context.Context, groupID string) (*hidetag.GroupContext, error) {
	if !c.client.IsConnected() {
		return nil, ErrNotConnected
	}
	jid, err := types.ParseJID(groupID)
	if err != nil {
		return nil, fmt.Errorf("invalid group JID %q: %w", groupID, err)
	}
	info, err := c.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("failed to get group info: %w", err)
	}
	participants := make([]string, 0, len(info.Participants))
	for _, p := range info.Participants {
		participants = append(participants, p.JID.String())
	}
	return &hidetag.GroupContext{
		Name:         info.Name,
		Participants: participants,
	}, nil
}

// SendMessage sends req as an edit of the referenced message.
func (c *Connection) SendMessage(ctx context.Context, req *hidetag.RewriteRequest) error {
	chat, err := types.ParseJID(req.Chat)
	if err != nil {
		return fmt.Errorf("invalid chat JID %q: %w", req.Chat, err)
	}
	content, err := buildEditContent(req)
	if err != nil {
		return err
	}
	edit := c.client.BuildEdit(chat, types.MessageID(req.Edit.ID), content)
	resp, err := c.client.SendMessage(ctx, chat, edit)
	if err != nil {
		return fmt.Errorf("failed to send edit: %w", err)
	}
	c.log.Debug().
		Str("chat", req.Chat).
		Str("edited_id", req.Edit.ID).
		Str("edit_id", string(resp.ID)).
		Msg("Sent edit")
	return nil
}

// Close removes the event handler and disconnects. No events are delivered
// afterwards. The events channel is left open so a racing handler never
// sends on a closed channel.
func (c *Connection) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.cancel()
		c.client.RemoveEventHandler(c.handlerID)
		c.client.Disconnect()
	})
}
