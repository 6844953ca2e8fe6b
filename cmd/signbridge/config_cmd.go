package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattjoyce/signbridge/internal/config"
)

func runConfigNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		printConfigNounHelp()
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "check":
		return runConfigCheck(actionArgs)
	case "hash-update", "lock":
		return runConfigHashUpdate(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func printConfigNounHelp() {
	fmt.Print(`Usage: signbridge config <action> [flags]

Actions:
  check          Load and validate the configuration, then verify integrity hashes
  hash-update    Regenerate .checksums for every file in the include tree
`)
}

type checkReport struct {
	Config   string   `json:"config"`
	Valid    bool     `json:"valid"`
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func runConfigCheck(args []string) int {
	fs := newFlagSet("config check")
	configPath := fs.StringP("config", "c", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output the result as JSON")
	if code, done := parseFlags(fs, args); done {
		return code
	}

	path, err := config.DiscoverConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	report := checkReport{Config: path, Valid: true, Passed: true}
	if _, err := config.Load(path); err != nil {
		report.Valid = false
		report.Passed = false
		report.Errors = append(report.Errors, err.Error())
	}
	integrity, err := config.VerifyIntegrity(path)
	if err != nil {
		report.Passed = false
		report.Errors = append(report.Errors, err.Error())
	} else {
		report.Passed = report.Passed && integrity.Passed
		report.Errors = append(report.Errors, integrity.Errors...)
		report.Warnings = append(report.Warnings, integrity.Warnings...)
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
	} else {
		for _, w := range report.Warnings {
			fmt.Printf("WARN  %s\n", w)
		}
		for _, e := range report.Errors {
			fmt.Printf("ERROR %s\n", e)
		}
		if report.Passed {
			fmt.Println("Status: Configuration check PASSED.")
		} else {
			fmt.Println("Status: Configuration check FAILED.")
		}
	}

	if !report.Passed {
		return 1
	}
	return 0
}

func runConfigHashUpdate(args []string) int {
	fs := newFlagSet("config hash-update")
	configPath := fs.StringP("config", "c", "", "Path to configuration file or directory")
	dryRun := fs.Bool("dry-run", false, "Show what would be hashed without writing .checksums")
	verbose := fs.BoolP("verbose", "v", false, "Print every file hash")
	if code, done := parseFlags(fs, args); done {
		return code
	}

	path, err := config.DiscoverConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	report, err := config.HashUpdate(path, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hash update failed: %v\n", err)
		return 1
	}

	if *verbose {
		fmt.Printf("Processing directory: %s\n", report.ConfigDir)
		for _, f := range report.Files {
			if !f.Exists {
				fmt.Printf("  SKIP %s: not found\n", f.Filename)
				continue
			}
			fmt.Printf("  HASH %s: %s\n", f.Filename, f.Hash)
		}
	}

	if *dryRun {
		fmt.Printf("DRY-RUN %s: %d file(s) would be recorded\n", report.ChecksumPath, len(report.Files))
		fmt.Println("Dry run completed; nothing was written.")
		return 0
	}
	fmt.Printf("Updated %s (%d file(s))\n", report.ChecksumPath, len(report.Files))
	return 0
}
