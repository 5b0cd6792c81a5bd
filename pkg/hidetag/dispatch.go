// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package hidetag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrResolutionFailed = errors.New("failed to resolve group participants")
	ErrDispatchFailed   = errors.New("failed to send rewrite")
)

// GroupInfoFetcher is the part of a Connection the resolver needs.
type GroupInfoFetcher interface {
	GroupInfo(ctx context.Context, groupID string) (*GroupContext, error)
}

// ResolveGroup fetches the current name and membership of groupID. The
// participant list keeps the transport's order with duplicates and empty
// identifiers removed. Nothing is cached.
func ResolveGroup(ctx context.Context, conn GroupInfoFetcher, groupID string) (*GroupContext, error) {
	info, err := conn.GroupInfo(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: no group info for %s", ErrResolutionFailed, groupID)
	}
	seen := make(map[string]struct{}, len(info.Participants))
	participants := make([]string, 0, len(info.Participants))
	for _, p := range info.Participants {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		participants = append(participants, p)
	}
	return &GroupContext{
		Name:         info.Name,
		Participants: participants,
	}, nil
}

// BuildRewrite returns the edit for msg that mentions every participant of
// group. The content is copied unchanged.
func BuildRewrite(msg *InboundMessage, group *GroupContext) *RewriteRequest {
	mentions := make([]string, len(group.Participants))
	copy(mentions, group.Participants)
	return &RewriteRequest{
		Chat:     msg.Chat,
		Content:  msg.Content,
		Edit:     msg.Ref,
		Mentions: mentions,
	}
}

// Dispatcher turns qualifying messages into edits.
type Dispatcher struct {
	log     zerolog.Logger
	status  StatusSink
	metrics *Metrics

	// Timeout bounds the resolve and send calls of one rewrite. Zero means
	// no timeout.
	Timeout  time.Duration
	// Describe renders the info report for a rewrite.
	Describe func(ReportParams) string
}

// NewDispatcher creates a Dispatcher. A nil status discards reports and a
// nil metrics records nothing.
func NewDispatcher(log zerolog.Logger, status StatusSink, metrics *Metrics) *Dispatcher {
	if status == nil {
		status = discardStatus{}
	}
	return &Dispatcher{
		log:      log.With().Str("component", "dispatcher").Logger(),
		status:   status,
		metrics:  metrics,
		Describe: defaultReport,
	}
}

// Dispatch resolves the group of cand and sends exactly one edit through
// conn. Failures are reported once and returned; they are never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, conn Connection, cand *Candidate) error {
	msg := cand.Message
	log := d.log.With().
		Str("chat", msg.Chat).
		Str("message_id", msg.Ref.ID).
		Logger()

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	group, err := ResolveGroup(ctx, conn, msg.Chat)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve group, leaving message unchanged")
		d.status.Report(LevelError, fmt.Sprintf("Failed to send message using hidetag. Error: %v", err))
		d.metrics.observeRewrite(RewriteResolutionFailed, 0)
		return err
	}

	req := BuildRewrite(msg, group)
	d.status.Report(LevelInfo, d.Describe(ReportParams{
		GroupName:    group.Name,
		Participants: len(group.Participants),
		Text:         cand.Text,
		Image:        msg.Content.Kind == ContentImage,
	}))
	log.Info().
		Str("group_name", group.Name).
		Int("mentions", len(req.Mentions)).
		Strs("emoji", cand.Emoji).
		Str("content_kind", msg.Content.Kind.String()).
		Msg("Sending hidetag edit")

	if err := conn.SendMessage(ctx, req); err != nil {
		err = fmt.Errorf("%w: %w", ErrDispatchFailed, err)
		log.Error().Err(err).Msg("Failed to send hidetag edit")
		d.status.Report(LevelError, fmt.Sprintf("Failed to send message using hidetag. Error: %v", err))
		d.metrics.observeRewrite(RewriteDispatchFailed, 0)
		return err
	}
	d.metrics.observeRewrite(RewriteSent, len(req.Mentions))
	return nil
}
