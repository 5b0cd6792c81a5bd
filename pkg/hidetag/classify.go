// Copyright 2024-2026 Aiku AI

package hidetag

import (
	"github.com/IhsanDevs/whatsapp-hidetag/pkg/hidetag/emojidetect"
)

// Candidate is a message that qualified for a rewrite.
type Candidate struct {
	Message *InboundMessage
	Text    string
	Emoji   []string
}

// Classify returns a Candidate when msg should be rewritten, or nil to skip
// it silently. A message qualifies when the session is open, the account
// itself sent the message to a group, and its text or image caption holds
// at least one emoji.
func Classify(state State, msg *InboundMessage) *Candidate {
	if state != StateOpen || msg == nil {
		return nil
	}
	if !msg.FromMe || !msg.IsGroup {
		return nil
	}
	// Edits come back through the same channel, rewriting them would loop.
	if msg.IsEdit {
		return nil
	}
	text, ok := msg.Content.ExtractText()
	if !ok {
		return nil
	}
	matches := emojidetect.FindAll(text)
	if len(matches) == 0 {
		return nil
	}
	return &Candidate{
		Message: msg,
		Text:    text,
		Emoji:   matches,
	}
}
