package sysproc

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/signbridge/internal/log"
	"github.com/mattjoyce/signbridge/internal/watchdog/mocks"
)

type fakeRunner struct {
	calls  [][]string
	output string
	err    error
}

func (f *fakeRunner) run(_ context.Context, argv []string) ([]byte, error) {
	f.calls = append(f.calls, argv)
	return []byte(f.output), f.err
}

func newTestDriver(cmds Commands, runner *fakeRunner) *Driver {
	d := NewDriver(cmds, "", nil, log.Discard())
	d.run = runner.run
	return d
}

func TestDriverCommands(t *testing.T) {
	runner := &fakeRunner{}
	d := newTestDriver(Commands{
		Reboot:    []string{"systemctl", "reboot"},
		ScreenOff: []string{"vcgencmd", "display_power", "0"},
		ScreenOn:  []string{"vcgencmd", "display_power", "1"},
		SetVolume: []string{"amixer", "set", "Master", "{volume}%"},
	}, runner)
	ctx := context.Background()

	require.NoError(t, d.Reboot(ctx))
	require.NoError(t, d.ScreenOff(ctx))
	require.NoError(t, d.ScreenOn(ctx))
	require.NoError(t, d.SetVolume(ctx, 35))

	assert.Equal(t, [][]string{
		{"systemctl", "reboot"},
		{"vcgencmd", "display_power", "0"},
		{"vcgencmd", "display_power", "1"},
		{"amixer", "set", "Master", "35%"},
	}, runner.calls)
}

func TestDriverUnconfiguredOperations(t *testing.T) {
	d := newTestDriver(Commands{}, &fakeRunner{})
	ctx := context.Background()

	assert.ErrorIs(t, d.Reboot(ctx), ErrNotConfigured)
	assert.ErrorIs(t, d.SetVolume(ctx, 10), ErrNotConfigured)
	_, err := d.SerialNumber(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, d.RestartApplication(ctx), ErrNotConfigured)
}

func TestDriverVolume(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    int
		wantErr bool
	}{
		{name: "plain", output: "42\n", want: 42},
		{name: "clamped", output: "130", want: 100},
		{name: "garbage", output: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDriver(Commands{GetVolume: []string{"get-volume"}}, &fakeRunner{output: tt.output})
			v, err := d.Volume(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestDriverSerialNumberTrimsOutput(t *testing.T) {
	d := newTestDriver(Commands{SerialNumber: []string{"cat", "/proc/device-tree/serial-number"}}, &fakeRunner{output: " 10000000abcdef \n"})
	serial, err := d.SerialNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10000000abcdef", serial)
}

func TestDriverCommandFailure(t *testing.T) {
	d := newTestDriver(Commands{ScreenOff: []string{"screen-off"}}, &fakeRunner{err: errors.New("exit status 1")})
	err := d.ScreenOff(context.Background())
	assert.ErrorContains(t, err, "screen off: exit status 1")
}

func TestDriverDeviceUIDOverride(t *testing.T) {
	d := NewDriver(Commands{}, "player-17", nil, log.Discard())
	uid, err := d.DeviceUID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "player-17", uid)
}

func TestDriverRestartApplicationDelegates(t *testing.T) {
	ctrl := gomock.NewController(t)
	restarter := mocks.NewMockRestarter(ctrl)
	restarter.EXPECT().Restart(gomock.Any(), ReasonRequested).Return(nil)

	d := NewDriver(Commands{}, "", restarter, log.Discard())
	require.NoError(t, d.RestartApplication(context.Background()))
}

func TestRunCommandReportsStderr(t *testing.T) {
	out, err := runCommand(context.Background(), []string{"sh", "-c", "echo ok"})
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(out))

	_, err = runCommand(context.Background(), []string{"sh", "-c", "echo broken >&2; exit 3"})
	assert.ErrorContains(t, err, "broken")
}
