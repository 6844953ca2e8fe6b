package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattjoyce/signbridge/internal/config"
	"github.com/mattjoyce/signbridge/internal/journal"
	"github.com/mattjoyce/signbridge/internal/log"
	"github.com/mattjoyce/signbridge/internal/storage"
)

func runJournalNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Print(`Usage: signbridge journal <action> [flags]

Actions:
  restarts   List watchdog restarts, newest first
  videos     List video events, newest first
`)
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	action := args[0]
	if action != "restarts" && action != "videos" {
		fmt.Fprintf(os.Stderr, "Unknown journal action: %s\n", action)
		return 1
	}

	fs := newFlagSet("journal " + action)
	configPath := fs.StringP("config", "c", "", "Path to configuration file or directory")
	limit := fs.IntP("limit", "n", 20, "Maximum number of entries")
	jsonOut := fs.Bool("json", false, "Output entries as JSON")
	if code, done := parseFlags(fs, args[1:]); done {
		return code
	}

	path, err := config.DiscoverConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer db.Close()
	j := journal.New(db, log.Discard())

	var entries any
	var rows [][]string
	switch action {
	case "restarts":
		restarts, err := j.Restarts(ctx, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read restarts: %v\n", err)
			return 1
		}
		entries = restarts
		for _, r := range restarts {
			rows = append(rows, []string{r.At.Local().Format(time.DateTime), string(r.Reason), r.SessionID, r.Error})
		}
	case "videos":
		videos, err := j.VideoEvents(ctx, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read video events: %v\n", err)
			return 1
		}
		entries = videos
		for _, v := range videos {
			rows = append(rows, []string{v.At.Local().Format(time.DateTime), v.Type, v.URI, v.Geometry, v.Message})
		}
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	if len(rows) == 0 {
		fmt.Println("No entries.")
		return 0
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		for i, col := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, col)
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()
	return 0
}
