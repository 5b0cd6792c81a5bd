// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package waconn

import (
	"slices"
	"testing"

	"go.mau.fi/util/ptr"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/IhsanDevs/whatsapp-hidetag/pkg/hidetag"
)

func groupMessage(msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:     testGroupJID,
				Sender:   testSelfJID,
				IsFromMe: true,
				IsGroup:  true,
			},
			ID: "3EB0C0FFEE",
		},
		Message: msg,
	}
}

func TestConvertMessage(t *testing.T) {
	t.Parallel()
	got := convertMessage(groupMessage(&waE2E.Message{Conversation: ptr.Ptr("Meeting at 5 \U0001f389")}))
	if got == nil {
		t.Fatal("convertMessage returned nil")
	}
	if !got.FromMe || !got.IsGroup || got.IsEdit {
		t.Errorf("flags = fromMe:%t group:%t edit:%t", got.FromMe, got.IsGroup, got.IsEdit)
	}
	if got.Chat != "120363000000000000@g.us" {
		t.Errorf("chat = %q", got.Chat)
	}
	want := hidetag.MessageRef{Chat: "120363000000000000@g.us", ID: "3EB0C0FFEE", Sender: "6281200000000@s.whatsapp.net"}
	if got.Ref != want {
		t.Errorf("ref = %+v, want %+v", got.Ref, want)
	}
	if got.Content.Kind != hidetag.ContentText || got.Content.Text != "Meeting at 5 \U0001f389" {
		t.Errorf("content = %+v", got.Content)
	}
}

func TestConvertMessage_DirectChatIsNotGroup(t *testing.T) {
	t.Parallel()
	evt := groupMessage(&waE2E.Message{Conversation: ptr.Ptr("\U0001f389")})
	evt.Info.Chat = testSelfJID
	if got := convertMessage(evt); got.IsGroup {
		t.Error("direct chat flagged as group")
	}
}

func TestConvertMessage_EditFlag(t *testing.T) {
	t.Parallel()
	evt := groupMessage(&waE2E.Message{Conversation: ptr.Ptr("\U0001f389")})
	evt.IsEdit = true
	if got := convertMessage(evt); !got.IsEdit {
		t.Error("edit flag lost")
	}
}

func TestExtractContent(t *testing.T) {
	t.Parallel()
	img := &waE2E.ImageMessage{Caption: ptr.Ptr("sunset \U0001f305"), Mimetype: ptr.Ptr("image/jpeg")}
	tests := []struct {
		name string
		msg  *waE2E.Message
		kind hidetag.ContentKind
		text string
	}{
		{"conversation", &waE2E.Message{Conversation: ptr.Ptr("a")}, hidetag.ContentText, "a"},
		{
			"extended text",
			&waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: ptr.Ptr("b")}},
			hidetag.ContentExtendedText, "b",
		},
		{"image caption", &waE2E.Message{ImageMessage: img}, hidetag.ContentImage, "sunset \U0001f305"},
		{"image without caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, hidetag.ContentImage, ""},
		{
			"conversation wins",
			&waE2E.Message{Conversation: ptr.Ptr("a"), ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: ptr.Ptr("b")}},
			hidetag.ContentText, "a",
		},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, hidetag.ContentNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := extractContent(tt.msg)
			if got.Kind != tt.kind || got.Text != tt.text {
				t.Errorf("got %s %q, want %s %q", got.Kind, got.Text, tt.kind, tt.text)
			}
		})
	}
}

func TestBuildEditContent_Text(t *testing.T) {
	t.Parallel()
	req := &hidetag.RewriteRequest{
		Chat:     testGroupJID.String(),
		Content:  hidetag.Content{Kind: hidetag.ContentText, Text: "Meeting at 5 \U0001f389"},
		Mentions: []string{"a@s.whatsapp.net", "b@s.whatsapp.net"},
	}
	msg, err := buildEditContent(req)
	if err != nil {
		t.Fatalf("buildEditContent: %v", err)
	}
	ext := msg.GetExtendedTextMessage()
	if ext.GetText() != "Meeting at 5 \U0001f389" {
		t.Errorf("text = %q", ext.GetText())
	}
	if !slices.Equal(ext.GetContextInfo().GetMentionedJID(), req.Mentions) {
		t.Errorf("mentions = %v", ext.GetContextInfo().GetMentionedJID())
	}
	req.Mentions[0] = "z@s.whatsapp.net"
	if ext.GetContextInfo().GetMentionedJID()[0] != "a@s.whatsapp.net" {
		t.Error("mentions share storage with the request")
	}
}

func TestBuildEditContent_Image(t *testing.T) {
	t.Parallel()
	orig := &waE2E.ImageMessage{
		Caption:     ptr.Ptr("sunset \U0001f305"),
		Mimetype:    ptr.Ptr("image/jpeg"),
		URL:         ptr.Ptr("https://mmg.whatsapp.net/x"),
		ContextInfo: &waE2E.ContextInfo{StanzaID: ptr.Ptr("quoted")},
	}
	req := &hidetag.RewriteRequest{
		Content:  hidetag.Content{Kind: hidetag.ContentImage, Text: "sunset \U0001f305", Media: orig},
		Mentions: []string{"a@s.whatsapp.net"},
	}
	msg, err := buildEditContent(req)
	if err != nil {
		t.Fatalf("buildEditContent: %v", err)
	}
	img := msg.GetImageMessage()
	if img == orig {
		t.Fatal("original image message was modified in place")
	}
	if img.GetURL() != orig.GetURL() || img.GetMimetype() != "image/jpeg" {
		t.Error("media fields were not carried over")
	}
	if img.GetCaption() != "sunset \U0001f305" {
		t.Errorf("caption = %q", img.GetCaption())
	}
	if !slices.Equal(img.GetContextInfo().GetMentionedJID(), []string{"a@s.whatsapp.net"}) {
		t.Errorf("mentions = %v", img.GetContextInfo().GetMentionedJID())
	}
	if img.GetContextInfo().GetStanzaID() != "quoted" {
		t.Error("existing context info was dropped")
	}
	if len(orig.GetContextInfo().GetMentionedJID()) != 0 {
		t.Error("original context info gained mentions")
	}
}

func TestBuildEditContent_Errors(t *testing.T) {
	t.Parallel()
	if _, err := buildEditContent(&hidetag.RewriteRequest{Content: hidetag.Content{Kind: hidetag.ContentImage}}); err == nil {
		t.Error("expected an error for an image without payload")
	}
	if _, err := buildEditContent(&hidetag.RewriteRequest{Content: hidetag.Content{Kind: hidetag.ContentNone}}); err == nil {
		t.Error("expected an error for unsupported content")
	}
}
