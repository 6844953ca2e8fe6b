// Package sysproc controls the host: device identity, screen, audio and
// the native display application, through configured commands and
// gopsutil.
package sysproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/net"

	"github.com/mattjoyce/signbridge/internal/protocol"
	"github.com/mattjoyce/signbridge/internal/watchdog"
)

// ErrNotConfigured is returned by operations whose command is not set.
var ErrNotConfigured = errors.New("operation not configured on this device")

// ReasonRequested marks restarts asked for over the bridge.
const ReasonRequested watchdog.Reason = "requested"

// Commands are the host commands behind the system operations. Each is an
// argv; SetVolume may use {volume}.
type Commands struct {
	Reboot       []string
	ScreenOff    []string
	ScreenOn     []string
	GetVolume    []string
	SetVolume    []string
	SerialNumber []string
}

// runFunc runs argv and returns its stdout.
type runFunc func(ctx context.Context, argv []string) ([]byte, error)

// Driver implements the bridge's system message set for a Linux player.
type Driver struct {
	commands  Commands
	deviceUID string
	restarter watchdog.Restarter
	logger    *slog.Logger

	run runFunc
}

// NewDriver returns a driver. A non-empty deviceUID overrides the host ID.
func NewDriver(commands Commands, deviceUID string, restarter watchdog.Restarter, logger *slog.Logger) *Driver {
	return &Driver{
		commands:  commands,
		deviceUID: deviceUID,
		restarter: restarter,
		logger:    logger,
		run:       runCommand,
	}
}

func (d *Driver) RestartApplication(ctx context.Context) error {
	if d.restarter == nil {
		return ErrNotConfigured
	}
	return d.restarter.Restart(ctx, ReasonRequested)
}

func (d *Driver) Reboot(ctx context.Context) error {
	d.logger.Warn("rebooting device")
	return d.exec(ctx, "reboot", d.commands.Reboot)
}

func (d *Driver) DeviceUID(ctx context.Context) (string, error) {
	if d.deviceUID != "" {
		return d.deviceUID, nil
	}
	id, err := host.HostIDWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read host id: %w", err)
	}
	return id, nil
}

func (d *Driver) Model(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read host info: %w", err)
	}
	model := strings.TrimSpace(strings.Join([]string{info.Platform, info.PlatformVersion, info.KernelArch}, " "))
	if model == "" {
		model = info.OS
	}
	return model, nil
}

func (d *Driver) SerialNumber(ctx context.Context) (string, error) {
	out, err := d.output(ctx, "serial number", d.commands.SerialNumber)
	if err != nil {
		return "", err
	}
	return out, nil
}

// NetworkInfo lists the non-loopback interfaces that are up.
func (d *Driver) NetworkInfo(ctx context.Context) (protocol.NetworkInfo, error) {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return protocol.NetworkInfo{}, fmt.Errorf("list interfaces: %w", err)
	}
	info := protocol.NetworkInfo{Interfaces: []protocol.NetworkInterface{}}
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") || !slices.Contains(iface.Flags, "up") {
			continue
		}
		ni := protocol.NetworkInterface{Name: iface.Name, MACAddress: iface.HardwareAddr}
		for _, a := range iface.Addrs {
			ni.Addresses = append(ni.Addresses, a.Addr)
		}
		info.Interfaces = append(info.Interfaces, ni)
	}
	return info, nil
}

func (d *Driver) ScreenOff(ctx context.Context) error {
	return d.exec(ctx, "screen off", d.commands.ScreenOff)
}

func (d *Driver) ScreenOn(ctx context.Context) error {
	return d.exec(ctx, "screen on", d.commands.ScreenOn)
}

// Volume runs the get-volume command, which must print an integer 0-100.
func (d *Driver) Volume(ctx context.Context) (int, error) {
	out, err := d.output(ctx, "get volume", d.commands.GetVolume)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("get volume: unexpected output %q", out)
	}
	return max(0, min(v, 100)), nil
}

func (d *Driver) SetVolume(ctx context.Context, volume int) error {
	argv := make([]string, len(d.commands.SetVolume))
	for i, arg := range d.commands.SetVolume {
		argv[i] = strings.ReplaceAll(arg, "{volume}", strconv.Itoa(volume))
	}
	return d.exec(ctx, "set volume", argv)
}

func (d *Driver) exec(ctx context.Context, what string, argv []string) error {
	_, err := d.output(ctx, what, argv)
	return err
}

func (d *Driver) output(ctx context.Context, what string, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("%s: %w", what, ErrNotConfigured)
	}
	out, err := d.run(ctx, argv)
	if err != nil {
		d.logger.Warn("system command failed", "operation", what, "command", argv[0], "error", err)
		return "", fmt.Errorf("%s: %w", what, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func runCommand(ctx context.Context, argv []string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
