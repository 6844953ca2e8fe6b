package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/config"
	"github.com/mattjoyce/signbridge/internal/log"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout, oldStderr := os.Stdout, os.Stderr
	stdoutR, stdoutW, err := os.Pipe()
	require.NoError(t, err)
	stderrR, stderrW, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout, os.Stderr = stdoutW, stderrW
	stdoutCh := make(chan []byte, 1)
	stderrCh := make(chan []byte, 1)
	go func() {
		b, _ := io.ReadAll(stdoutR)
		stdoutCh <- b
	}()
	go func() {
		b, _ := io.ReadAll(stderrR)
		stderrCh <- b
	}()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout, os.Stderr = oldStdout, oldStderr

	return code, string(<-stdoutCh), string(<-stderrCh)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()
	origVersion, origCommit, origBuildDate := version, gitCommit, buildDate
	version, gitCommit, buildDate = v, commit, built
	t.Cleanup(func() {
		version, gitCommit, buildDate = origVersion, origCommit, origBuildDate
	})
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "0123456789abcdef0123", "2026-02-01T10:00:00+10:00")

	code, stdout, _ := captureOutputWithExitCode(t, func() int { return runCLI([]string{"version", "--json"}) })
	require.Equal(t, 0, code)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "0123456789ab", info.Commit)
	assert.Equal(t, "2026-02-01T00:00:00Z", info.BuildTime)
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int { return runCLI([]string{"frobnicate"}) })
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
}

func TestRunCLIHelpFlagExitsZero(t *testing.T) {
	code, _, _ := captureOutputWithExitCode(t, func() int { return runCLI([]string{"start", "--help"}) })
	assert.Equal(t, 0, code)
}

func TestConfigHashUpdateThenCheck(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "include:\n  - video.yaml\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "video.yaml"), []byte("video:\n  slots: 3\n"), 0o644))

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "hash-update", "--config", dir, "-v", "--dry-run"})
	})
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "HASH video.yaml:")
	assert.Contains(t, stdout, "Dry run completed")
	assert.NoFileExists(t, filepath.Join(dir, config.ChecksumFile))

	code, _, stderr = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "hash-update", "--config", dir})
	})
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(dir, config.ChecksumFile))

	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", dir})
	})
	assert.Equal(t, 0, code, stdout)
	assert.Contains(t, stdout, "PASSED")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "video.yaml"), []byte("video:\n  slots: 4\n"), 0o644))
	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", dir, "--json"})
	})
	assert.Equal(t, 1, code)
	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.False(t, report.Passed)
	assert.NotEmpty(t, report.Errors)
}

func TestHTTPBase(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"ws://127.0.0.1:8080/bridge", "http://127.0.0.1:8080"},
		{"wss://player.local/signage/bridge?access_token=x", "https://player.local/signage"},
	}
	for _, tt := range tests {
		got, err := clientSettings{URL: tt.url}.httpBase()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := clientSettings{URL: "http://nope"}.httpBase()
	assert.Error(t, err)
}

func newTestBridge(t *testing.T, watchdogTimeout string) (*bridge, clientSettings) {
	t.Helper()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
bridge:
  api_key: test-key
  codec: cbor
state:
  path: `+filepath.Join(dir, "journal.db")+`
overlay:
  dir: `+filepath.Join(dir, "overlays")+`
watchdog:
  enabled: true
  timeout: `+watchdogTimeout+`
  restart_command: ["true"]
system:
  device_uid: player-under-test
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	b, err := newBridge(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(b.Close)

	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)

	codec, err := protocol.CodecByName("cbor")
	require.NoError(t, err)
	return b, clientSettings{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge",
		Token:   "test-key",
		Codec:   codec,
		Timeout: 5 * time.Second,
	}
}

func TestBridgeAnswersSystemMessages(t *testing.T) {
	_, settings := newTestBridge(t, "1h")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := invoke(ctx, settings, map[string]any{"type": protocol.SystemGetDeviceUID})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"deviceUid": "player-under-test"}, result)
}

// connectApplication dials the bridge the way the display runtime does,
// without announcing a role. Cancelling ctx drops the connection.
func connectApplication(t *testing.T, ctx context.Context, settings clientSettings) *channel.Client {
	t.Helper()
	client := channel.NewClient(settings.URL, settings.Codec,
		channel.WithToken(settings.Token),
		channel.WithBackoff(channel.Backoff{Initial: 50 * time.Millisecond, Max: 100 * time.Millisecond, MaxRetries: 3}),
		channel.WithClientLogger(log.Discard()),
	)
	go func() { _ = client.Run(ctx) }()
	require.NoError(t, client.WaitConnected(ctx))
	return client
}

func TestBridgeSupervisesApplicationOnConnect(t *testing.T) {
	b, settings := newTestBridge(t, "1h")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	appCtx, drop := context.WithCancel(ctx)
	connectApplication(t, appCtx, settings)
	require.Eventually(t, b.watchdog.Supervising, 5*time.Second, 10*time.Millisecond,
		"a session is supervised before its first heartbeat")
	assert.Equal(t, 0, b.watchdog.Restarts())

	drop()
	require.Eventually(t, func() bool { return b.watchdog.Restarts() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, b.watchdog.Supervising())
}

func TestBridgeRestartsSilentApplication(t *testing.T) {
	b, settings := newTestBridge(t, "200ms")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connectApplication(t, ctx, settings)
	require.Eventually(t, func() bool { return b.watchdog.Restarts() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, b.watchdog.Supervising())
}

func TestBridgeDoesNotSuperviseToolSessions(t *testing.T) {
	b, settings := newTestBridge(t, "1h")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, stop, err := settings.connect(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.server.Sessions() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, b.watchdog.Supervising())

	stop()
	require.Eventually(t, func() bool { return b.server.Sessions() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, b.watchdog.Restarts())
}

func TestBridgeRejectsWrongToken(t *testing.T) {
	_, settings := newTestBridge(t, "1h")
	settings.Token = "wrong"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _, err := settings.connect(ctx)
	assert.Error(t, err)
}
