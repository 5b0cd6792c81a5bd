// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package hidetag keeps one WhatsApp account connected and turns its own
// emoji-bearing group messages into "hidden tag" messages: the message is
// edited in place so that it mentions every member of the group while the
// visible text stays the same.
//
// # Core Types
//
// [Manager] owns the session lifecycle. It opens a [Connection] through a
// [Transport], consumes the connection's events one at a time and decides
// how to recover when the connection closes: a logged out session purges
// the [CredentialStore] and starts over with a fresh QR challenge, every
// other close reconnects with the existing credentials according to the
// [ReconnectPolicy].
//
// [Classify] decides whether an [InboundMessage] qualifies for a rewrite.
// [Dispatcher] resolves the group's participants with [ResolveGroup] and
// sends the edit as a [RewriteRequest].
//
// # Single Session
//
// At most one [Session] exists at a time and only the Manager writes it.
// When a session is replaced its event stream is abandoned, so events that
// were still buffered for the old connection are never processed against
// the new one.
//
// # Sub-packages
//
//   - emojidetect classifies emoji code points.
//   - waconn adapts go.mau.fi/whatsmeow to the Transport and CredentialStore interfaces.
//   - termui renders status reports, the banner and QR codes on a terminal.
package hidetag
