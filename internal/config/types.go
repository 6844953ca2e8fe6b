package config

import "time"

// Config represents the complete signbridge configuration.
type Config struct {
	Include  []string       `yaml:"include,omitempty"`
	Service  ServiceConfig  `yaml:"service"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	State    StateConfig    `yaml:"state"`
	Video    VideoConfig    `yaml:"video"`
	Overlay  OverlayConfig  `yaml:"overlay"`
	CEC      CECConfig      `yaml:"cec"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	System   SystemConfig   `yaml:"system"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
	PIDFile  string `yaml:"pid_file"`
}

// BridgeConfig defines the HTTP/WebSocket surface and the client dial target.
type BridgeConfig struct {
	Listen string `yaml:"listen"`
	// URL is where client-side commands dial the bridge.
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// InvokeTimeout bounds client invocations; zero waits for the response.
	InvokeTimeout time.Duration `yaml:"invoke_timeout"`
	Codec         string        `yaml:"codec"`
}

// StateConfig defines journal storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// VideoConfig defines decode slots and the decoder process.
type VideoConfig struct {
	Slots         int           `yaml:"slots"`
	WarmUp        time.Duration `yaml:"warm_up"`
	Command       []string      `yaml:"command"`
	StreamCommand []string      `yaml:"stream_command"`
	// StorageRoot is the directory relative video URIs resolve against.
	StorageRoot string `yaml:"storage_root"`
	// FileSystemRoot is the URL prefix clients use for local files.
	FileSystemRoot string        `yaml:"file_system_root"`
	KillAfter      time.Duration `yaml:"kill_after"`
}

// OverlayConfig defines the overlay upload endpoint and renderer.
type OverlayConfig struct {
	MaxBodySize     int64    `yaml:"max_body_size"`
	RendererCommand []string `yaml:"renderer_command"`
	Dir             string   `yaml:"dir"`
}

// CECConfig defines the remote-control listener.
type CECConfig struct {
	Enabled        bool          `yaml:"enabled"`
	SocketRoot     string        `yaml:"socket_root"`
	DecoderCommand []string      `yaml:"decoder_command"`
	Respawn        bool          `yaml:"respawn"`
	Debounce       time.Duration `yaml:"debounce"`
}

// WatchdogConfig defines client liveness supervision.
type WatchdogConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Timeout        time.Duration `yaml:"timeout"`
	ProcessName    string        `yaml:"process_name"`
	RestartCommand []string      `yaml:"restart_command"`
}

// SystemConfig maps system messages to host commands. Empty commands make
// the message fail.
type SystemConfig struct {
	RebootCommand       []string `yaml:"reboot_command"`
	ScreenOffCommand    []string `yaml:"screen_off_command"`
	ScreenOnCommand     []string `yaml:"screen_on_command"`
	GetVolumeCommand    []string `yaml:"get_volume_command"`
	SetVolumeCommand    []string `yaml:"set_volume_command"`
	SerialNumberCommand []string `yaml:"serial_number_command"`
	// DeviceUID overrides the host id reported by the OS.
	DeviceUID string `yaml:"device_uid"`
}

// MQTTConfig defines event telemetry publishing.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         byte   `yaml:"qos"`
}

// Defaults returns a Config with the bridge defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "signbridge",
			LogLevel: "info",
			PIDFile:  "./data/signbridge.pid",
		},
		Bridge: BridgeConfig{
			Listen: "127.0.0.1:8080",
			URL:    "ws://127.0.0.1:8080/bridge",
			Codec:  "json",
		},
		State: StateConfig{
			Path: "./data/journal.db",
		},
		Video: VideoConfig{
			Slots:          2,
			WarmUp:         time.Second,
			StorageRoot:    "/storage",
			FileSystemRoot: "file:///storage",
			KillAfter:      5 * time.Second,
		},
		Overlay: OverlayConfig{
			MaxBodySize: 100 << 20,
			Dir:         "./data/overlays",
		},
		CEC: CECConfig{
			SocketRoot: "/run/signbridge",
			Debounce:   200 * time.Millisecond,
		},
		Watchdog: WatchdogConfig{
			Timeout: 60 * time.Second,
		},
		MQTT: MQTTConfig{
			ClientID:    "signbridge",
			TopicPrefix: "signbridge",
		},
	}
}
