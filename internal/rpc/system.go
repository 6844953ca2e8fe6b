package rpc

import (
	"context"
	"fmt"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

//go:generate mockgen -destination=mocks/mock_system.go -package=mocks github.com/mattjoyce/signbridge/internal/rpc SystemDriver

// SystemDriver is the device-control surface reachable through system messages.
type SystemDriver interface {
	RestartApplication(ctx context.Context) error
	Reboot(ctx context.Context) error
	DeviceUID(ctx context.Context) (string, error)
	Model(ctx context.Context) (string, error)
	SerialNumber(ctx context.Context) (string, error)
	NetworkInfo(ctx context.Context) (protocol.NetworkInfo, error)
	ScreenOff(ctx context.Context) error
	ScreenOn(ctx context.Context) error
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, volume int) error
}

// RegisterSystem binds the system message types to drv.
func RegisterSystem(d *Dispatcher, drv SystemDriver) {
	d.Handle(protocol.ApplicationRestart, func(ctx context.Context, _ Request) (any, error) {
		return nil, drv.RestartApplication(ctx)
	})
	d.Handle(protocol.SystemReboot, func(ctx context.Context, _ Request) (any, error) {
		return nil, drv.Reboot(ctx)
	})
	d.Handle(protocol.SystemGetDeviceUID, func(ctx context.Context, _ Request) (any, error) {
		uid, err := drv.DeviceUID(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.DeviceUIDResult{DeviceUID: uid}, nil
	})
	d.Handle(protocol.SystemGetModel, func(ctx context.Context, _ Request) (any, error) {
		model, err := drv.Model(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.ModelResult{Model: model}, nil
	})
	d.Handle(protocol.SystemGetSerialNumber, func(ctx context.Context, _ Request) (any, error) {
		serial, err := drv.SerialNumber(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.SerialNumberResult{SerialNumber: serial}, nil
	})
	d.Handle(protocol.NetworkGetInfo, func(ctx context.Context, _ Request) (any, error) {
		return drv.NetworkInfo(ctx)
	})
	d.Handle(protocol.ScreenTurnOff, func(ctx context.Context, _ Request) (any, error) {
		return nil, drv.ScreenOff(ctx)
	})
	d.Handle(protocol.ScreenTurnOn, func(ctx context.Context, _ Request) (any, error) {
		return nil, drv.ScreenOn(ctx)
	})
	d.Handle(protocol.AudioGetVolume, func(ctx context.Context, _ Request) (any, error) {
		v, err := drv.Volume(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.VolumeResult{Volume: v}, nil
	})
	d.Handle(protocol.AudioSetVolume, func(ctx context.Context, req Request) (any, error) {
		var msg protocol.SetVolume
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		if msg.Volume < 0 || msg.Volume > 100 {
			return nil, fmt.Errorf("%w: volume %d out of range 0-100", ErrInvalidMessage, msg.Volume)
		}
		return nil, drv.SetVolume(ctx, msg.Volume)
	})
}
