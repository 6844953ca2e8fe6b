// Package journal persists bridge history (watchdog restarts and video
// lifecycle events) to the SQLite state database.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattjoyce/signbridge/internal/protocol"
	"github.com/mattjoyce/signbridge/internal/watchdog"
)

const timeLayout = time.RFC3339Nano

// Journal writes to the tables created by storage.BootstrapSQLite.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func New(db *sql.DB, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, logger: logger, now: time.Now}
}

// RecordRestart implements watchdog.Recorder.
func (j *Journal) RecordRestart(ctx context.Context, r watchdog.Restart) error {
	at := r.At
	if at.IsZero() {
		at = j.now()
	}
	var lastErr sql.NullString
	if r.Error != "" {
		lastErr = sql.NullString{String: r.Error, Valid: true}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO restarts(reason, session_id, created_at, last_error) VALUES(?, ?, ?, ?);`,
		string(r.Reason), r.SessionID, at.UTC().Format(timeLayout), lastErr,
	)
	if err != nil {
		return fmt.Errorf("record restart: %w", err)
	}
	return nil
}

// Restarts returns the latest restarts, newest first.
func (j *Journal) Restarts(ctx context.Context, limit int) ([]watchdog.Restart, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT reason, session_id, created_at, last_error FROM restarts ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query restarts: %w", err)
	}
	defer rows.Close()

	var out []watchdog.Restart
	for rows.Next() {
		var (
			r       watchdog.Restart
			reason  string
			at      string
			lastErr sql.NullString
		)
		if err := rows.Scan(&reason, &r.SessionID, &at, &lastErr); err != nil {
			return nil, fmt.Errorf("scan restart: %w", err)
		}
		r.Reason = watchdog.Reason(reason)
		r.Error = lastErr.String
		if r.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("parse restart time %q: %w", at, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRestarts counts every journalled restart.
func (j *Journal) CountRestarts(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM restarts;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count restarts: %w", err)
	}
	return n, nil
}

// VideoEvent is one journalled video lifecycle event.
type VideoEvent struct {
	Type     string    `json:"type"`
	URI      string    `json:"uri"`
	Geometry string    `json:"geometry"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Publish implements events.Publisher and journals Video.* events. Other
// event types are ignored. Write failures are logged.
func (j *Journal) Publish(eventType string, data any) {
	if !strings.HasPrefix(eventType, "Video.") {
		return
	}
	if err := j.recordVideo(context.Background(), eventType, data); err != nil {
		j.logger.Warn("failed to journal video event", "event", eventType, "error", err)
	}
}

func (j *Journal) recordVideo(ctx context.Context, eventType string, data any) error {
	var (
		uri, geometry sql.NullString
		payload       []byte
	)
	if ev, ok := data.(protocol.VideoEvent); ok {
		uri = sql.NullString{String: ev.URI, Valid: true}
		geometry = sql.NullString{
			String: fmt.Sprintf("%dx%d-%dx%d", ev.X, ev.Y, ev.Width, ev.Height),
			Valid:  true,
		}
	}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		payload = b
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO video_events(event_type, uri, geometry, payload, created_at) VALUES(?, ?, ?, ?, ?);`,
		eventType, uri, geometry, payload, j.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record video event: %w", err)
	}
	return nil
}

// VideoEvents returns the latest video events, newest first.
func (j *Journal) VideoEvents(ctx context.Context, limit int) ([]VideoEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT event_type, uri, geometry, payload, created_at FROM video_events ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query video events: %w", err)
	}
	defer rows.Close()

	var out []VideoEvent
	for rows.Next() {
		var (
			ev            VideoEvent
			uri, geometry sql.NullString
			payload       []byte
			at            string
		)
		if err := rows.Scan(&ev.Type, &uri, &geometry, &payload, &at); err != nil {
			return nil, fmt.Errorf("scan video event: %w", err)
		}
		ev.URI = uri.String
		ev.Geometry = geometry.String
		var decoded protocol.VideoEvent
		if len(payload) > 0 && json.Unmarshal(payload, &decoded) == nil && decoded.Data != nil {
			ev.Message = decoded.Data.Message
		}
		if ev.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("parse video event time %q: %w", at, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
