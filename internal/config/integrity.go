package config

import (
	"fmt"
	"path/filepath"
)

// IntegrityResult is the outcome of a `config check` integrity pass.
// Errors fail the check; warnings are reported only.
type IntegrityResult struct {
	Passed   bool
	Warnings []string
	Errors   []string
}

// VerifyIntegrity checks every file in the include tree of configPath
// against the manifest. A missing manifest is a warning; a file missing
// from it or with a different hash is an error.
func VerifyIntegrity(configPath string) (*IntegrityResult, error) {
	files, err := DiscoverAllConfigFiles(configPath)
	if err != nil {
		return nil, err
	}
	dir, err := ConfigDir(configPath)
	if err != nil {
		return nil, err
	}

	result := &IntegrityResult{Passed: true}
	manifest, err := LoadChecksums(dir)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("no usable %s at %s (%v); integrity verification is off", ChecksumFile, dir, err))
		return result, nil
	}

	for _, path := range files {
		name := filepath.Base(path)
		expected, ok := manifest.Hashes[name]
		if !ok {
			result.Passed = false
			result.Errors = append(result.Errors, fmt.Sprintf("file %s not in %s", path, ChecksumFile))
			continue
		}
		if err := VerifyFileHash(path, expected); err != nil {
			result.Passed = false
			result.Errors = append(result.Errors, err.Error())
		}
	}

	for name := range manifest.Hashes {
		found := false
		for _, path := range files {
			if filepath.Base(path) == name {
				found = true
				break
			}
		}
		if !found {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s lists %s which is no longer part of the config", ChecksumFile, name))
		}
	}
	return result, nil
}
