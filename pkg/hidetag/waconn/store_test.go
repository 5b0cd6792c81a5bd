// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package waconn

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
)

type fakeContainer struct {
	devices   []*store.Device
	fresh     *store.Device
	deleted   []*store.Device
	deleteErr error
	listErr   error
}

func (f *fakeContainer) GetFirstDevice(context.Context) (*store.Device, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.devices) > 0 {
		return f.devices[0], nil
	}
	return f.fresh, nil
}

func (f *fakeContainer) GetAllDevices(context.Context) ([]*store.Device, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.devices, nil
}

func (f *fakeContainer) DeleteDevice(_ context.Context, device *store.Device) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, device)
	return nil
}

func pairedDevice(user string) *store.Device {
	jid := types.NewADJID(user, 0, 1)
	return &store.Device{ID: &jid}
}

func TestDeviceStore_Load(t *testing.T) {
	t.Parallel()
	paired := pairedDevice("6281200000000")
	s := NewDeviceStore(&fakeContainer{devices: []*store.Device{paired}}, zerolog.Nop())

	creds, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if creds.(*store.Device) != paired {
		t.Error("Load did not return the stored device")
	}
}

func TestDeviceStore_LoadFresh(t *testing.T) {
	t.Parallel()
	fresh := &store.Device{}
	s := NewDeviceStore(&fakeContainer{fresh: fresh}, zerolog.Nop())

	creds, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if creds.(*store.Device) != fresh {
		t.Error("Load did not return a fresh device for an empty store")
	}
}

func TestDeviceStore_LoadError(t *testing.T) {
	t.Parallel()
	s := NewDeviceStore(&fakeContainer{listErr: errors.New("disk I/O error")}, zerolog.Nop())
	if _, err := s.Load(context.Background()); err == nil {
		t.Error("expected an error")
	}
}

func TestDeviceStore_Purge(t *testing.T) {
	t.Parallel()
	a, b := pairedDevice("111"), pairedDevice("222")
	fake := &fakeContainer{devices: []*store.Device{a, b}}
	s := NewDeviceStore(fake, zerolog.Nop())

	if err := s.Purge(context.Background()); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if len(fake.deleted) != 2 || fake.deleted[0] != a || fake.deleted[1] != b {
		t.Errorf("deleted = %v", fake.deleted)
	}
}

func TestDeviceStore_PurgeErrors(t *testing.T) {
	t.Parallel()
	deleteErr := errors.New("database is locked")
	fake := &fakeContainer{devices: []*store.Device{pairedDevice("111")}, deleteErr: deleteErr}
	s := NewDeviceStore(fake, zerolog.Nop())

	if err := s.Purge(context.Background()); !errors.Is(err, deleteErr) {
		t.Errorf("Purge error = %v, want %v", err, deleteErr)
	}
}

func TestDeviceStore_SaveRejectsForeignCredentials(t *testing.T) {
	t.Parallel()
	s := NewDeviceStore(&fakeContainer{}, zerolog.Nop())
	if err := s.Save(context.Background(), "not a device"); err == nil {
		t.Error("expected an error for a non-device credential")
	}
	if err := s.Save(context.Background(), &store.Device{}); err != nil {
		t.Errorf("unpaired device save = %v, want nil", err)
	}
}

func TestTransport_OpenRejectsForeignCredentials(t *testing.T) {
	t.Parallel()
	tr := NewTransport(zerolog.Nop())
	if _, err := tr.Open(context.Background(), "not a device"); err == nil {
		t.Error("expected an error for a non-device credential")
	}
}
