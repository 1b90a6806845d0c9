// Package irtest provides an in-memory infrared provider for tests.
package irtest

import (
	"context"
	"errors"
	"sync"

	"github.com/bryanchriswhite/FlexiView/internal/infrared"
)

// Provider hands out Devices for a fixed device list.
type Provider struct {
	mu sync.Mutex

	List []infrared.DeviceInfo
	// Busy devices refuse exclusive access.
	Busy map[string]bool
	// EnumerateErr is returned from Devices when set.
	EnumerateErr error
	// StartErr is returned from Device.Start when set.
	StartErr error

	Opens  []infrared.Access
	Opened []*Device
}

func NewProvider(names ...string) *Provider {
	p := &Provider{Busy: map[string]bool{}}
	for i, n := range names {
		p.List = append(p.List, infrared.DeviceInfo{Index: i, ID: n, Name: n})
	}
	return p
}

func (p *Provider) Devices(context.Context) ([]infrared.DeviceInfo, error) {
	if p.EnumerateErr != nil {
		return nil, p.EnumerateErr
	}
	return append([]infrared.DeviceInfo(nil), p.List...), nil
}

func (p *Provider) Open(_ context.Context, info infrared.DeviceInfo, access infrared.Access) (infrared.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Opens = append(p.Opens, access)
	if access == infrared.AccessExclusive && p.Busy[info.ID] {
		return nil, infrared.ErrDeviceContention
	}
	d := &Device{info: info, access: access, startErr: p.StartErr}
	p.Opened = append(p.Opened, d)
	return d, nil
}

// Last returns the most recently opened device.
func (p *Provider) Last() *Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Opened) == 0 {
		return nil
	}
	return p.Opened[len(p.Opened)-1]
}

// Device delivers frames only when Emit is called.
type Device struct {
	mu       sync.Mutex
	info     infrared.DeviceInfo
	access   infrared.Access
	handler  func(infrared.RawFrame)
	startErr error
	stopped  bool
}

func (d *Device) Start(h func(infrared.RawFrame)) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handler != nil {
		return errors.New("already started")
	}
	d.handler = h
	return nil
}

func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.handler = nil
	return nil
}

func (d *Device) Info() infrared.DeviceInfo { return d.info }

func (d *Device) Access() infrared.Access { return d.access }

func (d *Device) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// Emit delivers f synchronously, as a device callback would.
func (d *Device) Emit(f infrared.RawFrame) {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h(f)
	}
}
