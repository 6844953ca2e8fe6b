package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file or a directory holding
// config.yaml. A .env file next to the config is loaded first without
// overriding the process environment. Included files are applied in order
// on top of the root file.
func Load(configPath string) (*Config, error) {
	absPath, err := resolveConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	if err := loadDotEnv(filepath.Dir(absPath)); err != nil {
		return nil, err
	}

	cfg := &Config{}
	visited := map[string]bool{absPath: true}
	if err := decodeFile(absPath, cfg); err != nil {
		return nil, err
	}
	if err := loadIncludes(cfg, cfg.Include, filepath.Dir(absPath), visited); err != nil {
		return nil, err
	}

	cfg = applyConfigDefaults(cfg)

	paths := make([]string, 0, len(visited))
	for p := range visited {
		paths = append(paths, p)
	}
	if err := verifyAllConfigHashes(paths); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveConfigFile(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// decodeFile interpolates and decodes path on top of cfg, so only keys
// present in the file override earlier values.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	// Include lists are per file.
	cfg.Include = nil
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}
	return nil
}

// loadIncludes applies included files depth-first. visited tracks loaded
// files to reject cycles.
func loadIncludes(cfg *Config, includes []string, baseDir string, visited map[string]bool) error {
	for i, includePath := range includes {
		includePath = interpolateEnv(includePath)
		resolvedPath := includePath
		if !filepath.IsAbs(includePath) {
			resolvedPath = filepath.Join(baseDir, includePath)
		}

		absPath, err := filepath.Abs(resolvedPath)
		if err != nil {
			return fmt.Errorf("include[%d]: failed to resolve path %q: %w", i, includePath, err)
		}
		if visited[absPath] {
			return fmt.Errorf("include[%d]: circular dependency detected: %s", i, absPath)
		}
		if _, err := os.Stat(absPath); err != nil {
			return fmt.Errorf("include[%d]: file not found: %s\n"+
				"Referenced from: %s\n"+
				"Hint: Check the path is correct and the file exists", i, absPath, baseDir)
		}
		visited[absPath] = true

		if err := decodeFile(absPath, cfg); err != nil {
			return fmt.Errorf("include[%d] (%s): %w", i, includePath, err)
		}
		if len(cfg.Include) > 0 {
			if err := loadIncludes(cfg, cfg.Include, filepath.Dir(absPath), visited); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyAllConfigHashes(paths []string) error {
	// Group paths by directory to avoid loading the same checksums file multiple times
	dirToFiles := make(map[string][]string)
	for _, path := range paths {
		dir := filepath.Dir(path)
		dirToFiles[dir] = append(dirToFiles[dir], path)
	}

	for dir, files := range dirToFiles {
		checksums, err := LoadChecksums(dir)
		if err != nil {
			// No .checksums means verification is off for this directory.
			continue
		}

		for _, path := range files {
			basename := filepath.Base(path)
			expectedHash, ok := checksums.Hashes[basename]
			if !ok {
				return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
					"Run: signbridge config hash-update --config %s", basename, dir, dir)
			}
			if err := VerifyFileHash(path, expectedHash); err != nil {
				return fmt.Errorf("config verification failed for %s: %w\n"+
					"If you edited this file intentionally, run: signbridge config hash-update --config %s", path, err, dir)
			}
		}
	}
	return nil
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) *Config {
	d := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = d.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = d.Service.LogLevel
	}
	if cfg.Service.PIDFile == "" {
		cfg.Service.PIDFile = d.Service.PIDFile
	}

	if cfg.Bridge.Listen == "" {
		cfg.Bridge.Listen = d.Bridge.Listen
	}
	if cfg.Bridge.URL == "" {
		cfg.Bridge.URL = d.Bridge.URL
	}
	if cfg.Bridge.Codec == "" {
		cfg.Bridge.Codec = d.Bridge.Codec
	}

	if cfg.State.Path == "" {
		cfg.State.Path = d.State.Path
	}

	if cfg.Video.Slots == 0 {
		cfg.Video.Slots = d.Video.Slots
	}
	if cfg.Video.WarmUp == 0 {
		cfg.Video.WarmUp = d.Video.WarmUp
	}
	if cfg.Video.StorageRoot == "" {
		cfg.Video.StorageRoot = d.Video.StorageRoot
	}
	if cfg.Video.FileSystemRoot == "" {
		cfg.Video.FileSystemRoot = d.Video.FileSystemRoot
	}
	if cfg.Video.KillAfter == 0 {
		cfg.Video.KillAfter = d.Video.KillAfter
	}

	if cfg.Overlay.MaxBodySize == 0 {
		cfg.Overlay.MaxBodySize = d.Overlay.MaxBodySize
	}
	if cfg.Overlay.Dir == "" {
		cfg.Overlay.Dir = d.Overlay.Dir
	}

	if cfg.CEC.SocketRoot == "" {
		cfg.CEC.SocketRoot = d.CEC.SocketRoot
	}
	if cfg.CEC.Debounce == 0 {
		cfg.CEC.Debounce = d.CEC.Debounce
	}

	if cfg.Watchdog.Timeout == 0 {
		cfg.Watchdog.Timeout = d.Watchdog.Timeout
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = d.MQTT.ClientID
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = d.MQTT.TopicPrefix
	}
	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place so validation can name the missing variable.
		return match
	})
}
