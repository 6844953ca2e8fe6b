package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validate performs field and cross-field validation on a defaulted config.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.Bridge.Codec != "json" && cfg.Bridge.Codec != "cbor" {
		return fmt.Errorf("bridge.codec must be json or cbor (got %q)", cfg.Bridge.Codec)
	}
	if cfg.Bridge.InvokeTimeout < 0 {
		return fmt.Errorf("bridge.invoke_timeout must not be negative")
	}
	if err := checkUnresolved("bridge.api_key", cfg.Bridge.APIKey); err != nil {
		return err
	}
	if u, err := url.Parse(cfg.Bridge.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("bridge.url must be a ws:// or wss:// URL (got %q)", cfg.Bridge.URL)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if cfg.Video.Slots < 1 {
		return fmt.Errorf("video.slots must be at least 1")
	}
	if cfg.Video.WarmUp < 0 {
		return fmt.Errorf("video.warm_up must not be negative")
	}
	if err := checkCommand("video.command", cfg.Video.Command); err != nil {
		return err
	}
	if err := checkCommand("video.stream_command", cfg.Video.StreamCommand); err != nil {
		return err
	}
	if strings.HasSuffix(cfg.Video.FileSystemRoot, "/") {
		return fmt.Errorf("video.file_system_root must not end with a slash")
	}

	if cfg.Overlay.MaxBodySize < 0 {
		return fmt.Errorf("overlay.max_body_size must not be negative")
	}
	if err := checkCommand("overlay.renderer_command", cfg.Overlay.RendererCommand); err != nil {
		return err
	}

	if cfg.CEC.Enabled && cfg.CEC.SocketRoot == "" {
		return fmt.Errorf("cec.socket_root is required when cec is enabled")
	}
	if cfg.CEC.Debounce < 0 {
		return fmt.Errorf("cec.debounce must not be negative")
	}
	if err := checkCommand("cec.decoder_command", cfg.CEC.DecoderCommand); err != nil {
		return err
	}

	if cfg.Watchdog.Enabled && cfg.Watchdog.ProcessName == "" && len(cfg.Watchdog.RestartCommand) == 0 {
		return fmt.Errorf("watchdog needs process_name or restart_command when enabled")
	}
	if err := checkCommand("watchdog.restart_command", cfg.Watchdog.RestartCommand); err != nil {
		return err
	}

	system := map[string][]string{
		"system.reboot_command":        cfg.System.RebootCommand,
		"system.screen_off_command":    cfg.System.ScreenOffCommand,
		"system.screen_on_command":     cfg.System.ScreenOnCommand,
		"system.get_volume_command":    cfg.System.GetVolumeCommand,
		"system.set_volume_command":    cfg.System.SetVolumeCommand,
		"system.serial_number_command": cfg.System.SerialNumberCommand,
	}
	for field, cmd := range system {
		if err := checkCommand(field, cmd); err != nil {
			return err
		}
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
		if err := checkUnresolved("mqtt.password", cfg.MQTT.Password); err != nil {
			return err
		}
	}
	return nil
}

// checkCommand rejects commands with an empty program or unresolved
// environment variables.
func checkCommand(field string, cmd []string) error {
	if len(cmd) == 0 {
		return nil
	}
	if strings.TrimSpace(cmd[0]) == "" {
		return fmt.Errorf("%s: program is empty", field)
	}
	for i, arg := range cmd {
		if err := checkUnresolved(fmt.Sprintf("%s[%d]", field, i), arg); err != nil {
			return err
		}
	}
	return nil
}

func checkUnresolved(field, value string) error {
	if m := envVarPattern.FindStringSubmatch(value); len(m) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, m[1])
	}
	return nil
}
