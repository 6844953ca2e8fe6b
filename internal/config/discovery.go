package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// EnvConfigDir names the environment variable checked during discovery.
const EnvConfigDir = "SIGNBRIDGE_CONFIG_DIR"

// systemConfigDir is a variable so tests can point discovery elsewhere.
var systemConfigDir = "/etc/signbridge"

// DiscoverConfigPath finds the config by checking standard locations.
// Priority order: explicit path, $SIGNBRIDGE_CONFIG_DIR, /etc/signbridge, ./config.yaml.
func DiscoverConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}
	if fileExists(filepath.Join(systemConfigDir, "config.yaml")) {
		return systemConfigDir, nil
	}
	if fileExists("./config.yaml") {
		return "./config.yaml", nil
	}
	return "", fmt.Errorf("no config found (checked: --config, $%s, %s, ./config.yaml)", EnvConfigDir, systemConfigDir)
}

// ConfigDir returns the directory holding the resolved config file.
func ConfigDir(configPath string) (string, error) {
	abs, err := resolveConfigFile(configPath)
	if err != nil {
		return "", err
	}
	return filepath.Dir(abs), nil
}

// DiscoverAllConfigFiles returns absolute paths to all configuration files
// in the include tree, sorted.
func DiscoverAllConfigFiles(configPath string) ([]string, error) {
	absPath, err := resolveConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{absPath: true}
	includes, err := readIncludes(absPath)
	if err != nil {
		return nil, err
	}
	if err := collectIncludes(includes, filepath.Dir(absPath), visited); err != nil {
		return nil, err
	}

	files := make([]string, 0, len(visited))
	for f := range visited {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

func collectIncludes(includes []string, baseDir string, visited map[string]bool) error {
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
			continue
		}
		if !fileExists(absPath) {
			return fmt.Errorf("include[%d]: file not found: %s\n"+
				"Referenced from: %s", i, absPath, baseDir)
		}
		visited[absPath] = true

		nested, err := readIncludes(absPath)
		if err != nil {
			return err
		}
		if err := collectIncludes(nested, filepath.Dir(absPath), visited); err != nil {
			return err
		}
	}
	return nil
}

func readIncludes(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var partial struct {
		Include []string `yaml:"include"`
	}
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &partial); err != nil {
		return nil, fmt.Errorf("failed to parse YAML for includes in %s: %w", path, err)
	}
	return partial.Include, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
