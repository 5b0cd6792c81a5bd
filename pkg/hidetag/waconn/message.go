// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package waconn

import (
	"fmt"

	"go.mau.fi/util/ptr"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/IhsanDevs/whatsapp-hidetag/pkg/hidetag"
)

// convertMessage turns a whatsmeow message event into an InboundMessage.
// It returns nil for events without a message body.
func convertMessage(evt *events.Message) *hidetag.InboundMessage {
	if evt == nil || evt.Message == nil {
		return nil
	}
	chat := evt.Info.Chat.String()
	return &hidetag.InboundMessage{
		FromMe:  evt.Info.IsFromMe,
		Chat:    chat,
		IsGroup: evt.Info.Chat.Server == types.GroupServer,
		IsEdit:  evt.IsEdit,
		Content: extractContent(evt.Message),
		Ref: hidetag.MessageRef{
			Chat:   chat,
			ID:     string(evt.Info.ID),
			Sender: evt.Info.Sender.String(),
		},
	}
}

// extractContent picks the text the same way the WhatsApp clients display
// it: plain conversation first, then extended text, then an image caption.
func extractContent(msg *waE2E.Message) hidetag.Content {
	switch {
	case msg.GetConversation() != "":
		return hidetag.Content{Kind: hidetag.ContentText, Text: msg.GetConversation()}
	case msg.GetExtendedTextMessage().GetText() != "":
		return hidetag.Content{Kind: hidetag.ContentExtendedText, Text: msg.GetExtendedTextMessage().GetText()}
	case msg.GetImageMessage() != nil:
		return hidetag.Content{
			Kind:  hidetag.ContentImage,
			Text:  msg.GetImageMessage().GetCaption(),
			Media: msg.GetImageMessage(),
		}
	default:
		return hidetag.Content{Kind: hidetag.ContentNone}
	}
}

// buildEditContent returns the replacement content for an edit carrying the
// request's mentions. Image edits resend the original media with the caption.
func buildEditContent(req *hidetag.RewriteRequest) (*waE2E.Message, error) {
	mentions := make([]string, len(req.Mentions))
	copy(mentions, req.Mentions)

	switch req.Content.Kind {
	case hidetag.ContentText, hidetag.ContentExtendedText:
		return &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text:        ptr.Ptr(req.Content.Text),
				ContextInfo: &waE2E.ContextInfo{MentionedJID: mentions},
			},
		}, nil
	case hidetag.ContentImage:
		orig, ok := req.Content.Media.(*waE2E.ImageMessage)
		if !ok || orig == nil {
			return nil, fmt.Errorf("image rewrite without image payload (got %T)", req.Content.Media)
		}
		img := proto.Clone(orig).(*waE2E.ImageMessage)
		img.Caption = ptr.Ptr(req.Content.Text)
		if img.ContextInfo == nil {
			img.ContextInfo = &waE2E.ContextInfo{}
		}
		img.ContextInfo.MentionedJID = mentions
		return &waE2E.Message{ImageMessage: img}, nil
	default:
		return nil, fmt.Errorf("unsupported content kind %s", req.Content.Kind)
	}
}
