// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package waconn

import (
	"errors"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/IhsanDevs/whatsapp-hidetag/pkg/hidetag"
)

// translateEvent maps a whatsmeow event to a hidetag event. It returns nil
// for events the core does not care about.
func translateEvent(rawEvt any) hidetag.Event {
	switch evt := rawEvt.(type) {
	case *events.Connected:
		return hidetag.Opened{}
	case *events.PairSuccess:
		return hidetag.CredentialsChanged{}
	case *events.LoggedOut:
		return hidetag.Closed{
			Reason: hidetag.CloseLoggedOut,
			Err:    fmt.Errorf("logged out (reason %d, on connect %t)", int(evt.Reason), evt.OnConnect),
		}
	case *events.StreamReplaced:
		return hidetag.Closed{Reason: hidetag.CloseConnectionReplaced}
	case *events.ManualLoginReconnect:
		// Stream error 515 after pairing. whatsmeow only hands it to us
		// with DisableLoginAutoReconnect set.
		return hidetag.Closed{Reason: hidetag.CloseRestartRequired}
	case *events.StreamError:
		return hidetag.Closed{
			Reason: hidetag.CloseUnknown,
			Err:    fmt.Errorf("stream error code %q", evt.Code),
		}
	case *events.Disconnected:
		return hidetag.Closed{Reason: hidetag.CloseConnectionLost}
	case *events.ConnectFailure:
		return hidetag.Closed{
			Reason: connectFailureReason(evt.Reason),
			Err:    fmt.Errorf("connect failure %d: %s", int(evt.Reason), evt.Message),
		}
	case *events.TemporaryBan:
		return hidetag.Closed{
			Reason: hidetag.CloseForbidden,
			Err:    errors.New(evt.String()),
		}
	case *events.ClientOutdated:
		return hidetag.Closed{Reason: hidetag.CloseClientOutdated}
	case *events.Message:
		msg := convertMessage(evt)
		if msg == nil {
			return nil
		}
		return hidetag.MessageEvent{Message: msg}
	default:
		return nil
	}
}

func connectFailureReason(reason events.ConnectFailureReason) hidetag.CloseReason {
	switch {
	case reason.IsLoggedOut():
		return hidetag.CloseLoggedOut
	case reason == events.ConnectFailureTempBanned:
		return hidetag.CloseForbidden
	case reason == events.ConnectFailureClientOutdated:
		return hidetag.CloseClientOutdated
	case reason == events.ConnectFailureServiceUnavailable,
		reason == events.ConnectFailureInternalServerError:
		return hidetag.CloseServiceUnavailable
	default:
		return hidetag.CloseConnectionFailed
	}
}

// translateQR maps one item of the pairing channel. A successful pairing
// returns nil because PairSuccess and Connected follow as regular events.
func translateQR(item whatsmeow.QRChannelItem) hidetag.Event {
	switch item.Event {
	case whatsmeow.QRChannelEventCode:
		return hidetag.AuthChallenge{Code: item.Code, Timeout: item.Timeout}
	case whatsmeow.QRChannelSuccess.Event:
		return nil
	case whatsmeow.QRChannelTimeout.Event:
		return hidetag.Closed{Reason: hidetag.CloseTimedOut, Err: errors.New("QR code was not scanned in time")}
	case whatsmeow.QRChannelClientOutdated.Event:
		return hidetag.Closed{Reason: hidetag.CloseClientOutdated}
	case whatsmeow.QRChannelEventError:
		return hidetag.Closed{Reason: hidetag.CloseConnectionFailed, Err: fmt.Errorf("pairing failed: %w", item.Error)}
	default:
		return hidetag.Closed{Reason: hidetag.CloseConnectionFailed, Err: fmt.Errorf("pairing failed: %s", item.Event)}
	}
}
