// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package waconn

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/IhsanDevs/whatsapp-hidetag/pkg/hidetag"
)

// deviceVersion is the companion version announced next to the OS name.
var deviceVersion = [3]uint32{1, 0, 0}

// SetDeviceName sets the name shown in the phone's linked devices list.
// It must be called before the first device is paired.
func SetDeviceName(name string) {
	if name != "" {
		store.SetOSInfo(name, deviceVersion)
	}
}

// deviceContainer is the part of *sqlstore.Container the credential store
// uses.
type deviceContainer interface {
	GetFirstDevice(ctx context.Context) (*store.Device, error)
	GetAllDevices(ctx context.Context) ([]*store.Device, error)
	DeleteDevice(ctx context.Context, device *store.Device) error
}

var _ deviceContainer = (*sqlstore.Container)(nil)

// DeviceStore keeps whatsmeow device credentials in a sqlstore container.
type DeviceStore struct {
	container deviceContainer
	log       zerolog.Logger
}

var _ hidetag.CredentialStore = (*DeviceStore)(nil)

// OpenContainer opens (and migrates) the whatsmeow database. The caller
// must have imported the SQL driver for dialect.
func OpenContainer(ctx context.Context, dialect, uri string, log zerolog.Logger) (*sqlstore.Container, error) {
	container, err := sqlstore.New(ctx, dialect, uri, waLog.Zerolog(log.With().Str("component", "sqlstore").Logger()))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s device store: %w", dialect, err)
	}
	return container, nil
}

func NewDeviceStore(container deviceContainer, log zerolog.Logger) *DeviceStore {
	return &DeviceStore{
		container: container,
		log:       log.With().Str("component", "device_store").Logger(),
	}
}

// Load returns the first stored device, or a new unpaired one when the
// store is empty.
func (s *DeviceStore) Load(ctx context.Context) (hidetag.Credentials, error) {
	device, err := s.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	if device.ID == nil {
		s.log.Info().Msg("No paired device found, a QR code will be requested")
	} else {
		s.log.Debug().Stringer("jid", device.ID).Msg("Loaded paired device")
	}
	return device, nil
}

// Save persists creds. Unpaired devices have nothing to save yet.
func (s *DeviceStore) Save(ctx context.Context, creds hidetag.Credentials) error {
	device, ok := creds.(*store.Device)
	if !ok || device == nil {
		return fmt.Errorf("unsupported credentials type %T", creds)
	}
	if device.ID == nil {
		return nil
	}
	if err := device.Save(ctx); err != nil {
		return fmt.Errorf("failed to save device: %w", err)
	}
	return nil
}

// Purge deletes every stored device.
func (s *DeviceStore) Purge(ctx context.Context) error {
	devices, err := s.container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	var errs []error
	for _, device := range devices {
		if err := s.container.DeleteDevice(ctx, device); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete device %s: %w", device.ID, err))
			continue
		}
		s.log.Info().Stringer("jid", device.ID).Msg("Deleted device credentials")
	}
	return errors.Join(errs...)
}
