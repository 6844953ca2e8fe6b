package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty config gets defaults",
			yaml: "{}\n",
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "signbridge", cfg.Service.Name)
				assert.Equal(t, "info", cfg.Service.LogLevel)
				assert.Equal(t, 2, cfg.Video.Slots)
				assert.Equal(t, time.Second, cfg.Video.WarmUp)
				assert.Equal(t, int64(100<<20), cfg.Overlay.MaxBodySize)
				assert.Equal(t, 200*time.Millisecond, cfg.CEC.Debounce)
				assert.Equal(t, 60*time.Second, cfg.Watchdog.Timeout)
				assert.Equal(t, time.Duration(0), cfg.Bridge.InvokeTimeout)
				assert.Equal(t, "json", cfg.Bridge.Codec)
			},
		},
		{
			name: "full config",
			yaml: `
service:
  log_level: debug
bridge:
  listen: 0.0.0.0:9000
  url: ws://127.0.0.1:9000/bridge
  codec: cbor
  invoke_timeout: 30s
video:
  slots: 4
  warm_up: 500ms
  command: [video-decoder, --rect, "{x},{y},{width},{height}", "{uri}"]
cec:
  enabled: true
  respawn: true
  decoder_command: [cec-decoder, "--socket={socket}"]
watchdog:
  enabled: true
  process_name: display-client
  restart_command: [systemctl, restart, display-client]
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Service.LogLevel)
				assert.Equal(t, "cbor", cfg.Bridge.Codec)
				assert.Equal(t, 30*time.Second, cfg.Bridge.InvokeTimeout)
				assert.Equal(t, 4, cfg.Video.Slots)
				assert.Equal(t, 500*time.Millisecond, cfg.Video.WarmUp)
				assert.Equal(t, "{uri}", cfg.Video.Command[3])
				assert.True(t, cfg.CEC.Respawn)
				assert.Equal(t, "display-client", cfg.Watchdog.ProcessName)
			},
		},
		{
			name: "env var interpolation",
			yaml: `
bridge:
  api_key: ${BRIDGE_KEY}
state:
  path: ${JOURNAL_PATH}
`,
			env: map[string]string{"BRIDGE_KEY": "s3cret", "JOURNAL_PATH": "/tmp/journal.db"},
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "s3cret", cfg.Bridge.APIKey)
				assert.Equal(t, "/tmp/journal.db", cfg.State.Path)
			},
		},
		{
			name:    "missing env var fails validation",
			yaml:    "bridge:\n  api_key: ${SIGNBRIDGE_TEST_MISSING}\n",
			wantErr: "${SIGNBRIDGE_TEST_MISSING} is not set",
		},
		{
			name:    "invalid log level",
			yaml:    "service:\n  log_level: loud\n",
			wantErr: "service.log_level",
		},
		{
			name:    "invalid codec",
			yaml:    "bridge:\n  codec: xml\n",
			wantErr: "bridge.codec",
		},
		{
			name:    "negative slots",
			yaml:    "video:\n  slots: -1\n",
			wantErr: "video.slots",
		},
		{
			name:    "mqtt without broker",
			yaml:    "mqtt:\n  enabled: true\n",
			wantErr: "mqtt.broker",
		},
		{
			name:    "watchdog without restart action",
			yaml:    "watchdog:\n  enabled: true\n",
			wantErr: "watchdog needs",
		},
		{
			name:    "trailing slash root",
			yaml:    "video:\n  file_system_root: file:///storage/\n",
			wantErr: "file_system_root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			writeTestFile(t, configPath, tt.yaml)

			cfg, err := Load(configPath)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadDirectoryWithIncludesAndDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, ".env"), "SIGNBRIDGE_TEST_BROKER=tcp://broker:1883\n")
	writeTestFile(t, filepath.Join(tmpDir, "config.yaml"), `
include:
  - parts/video.yaml
video:
  slots: 1
  warm_up: 2s
mqtt:
  enabled: true
  broker: ${SIGNBRIDGE_TEST_BROKER}
`)
	writeTestFile(t, filepath.Join(tmpDir, "parts", "video.yaml"), "video:\n  slots: 3\n")
	t.Cleanup(func() { _ = os.Unsetenv("SIGNBRIDGE_TEST_BROKER") })

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Video.Slots, "include overrides root")
	assert.Equal(t, 2*time.Second, cfg.Video.WarmUp, "keys absent from include survive")
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
}

func TestLoadRejectsIncludeCycle(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, "config.yaml"), "include:\n  - a.yaml\n")
	writeTestFile(t, filepath.Join(tmpDir, "a.yaml"), "include:\n  - config.yaml\n")

	_, err := Load(tmpDir)
	assert.ErrorContains(t, err, "circular dependency")
}

func TestLoadVerifiesChecksums(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestFile(t, filepath.Join(tmpDir, "config.yaml"), "video:\n  slots: 2\n")
	_, err := HashUpdate(tmpDir, false)
	require.NoError(t, err)

	_, err = Load(tmpDir)
	require.NoError(t, err)

	writeTestFile(t, filepath.Join(tmpDir, "config.yaml"), "video:\n  slots: 8\n")
	_, err = Load(tmpDir)
	assert.ErrorContains(t, err, "config verification failed")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "config file not found")
}
