package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/signbridge/internal/log"
	"github.com/mattjoyce/signbridge/internal/protocol"
	"github.com/mattjoyce/signbridge/internal/storage"
	"github.com/mattjoyce/signbridge/internal/watchdog"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, log.Discard())
}

func TestRecordAndListRestarts(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordRestart(ctx, watchdog.Restart{Reason: watchdog.ReasonTimeout, SessionID: "a", At: at}))
	require.NoError(t, j.RecordRestart(ctx, watchdog.Restart{
		Reason: watchdog.ReasonDisconnect, SessionID: "b", At: at.Add(time.Minute), Error: "exit status 1",
	}))

	n, err := j.CountRestarts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := j.Restarts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, watchdog.ReasonDisconnect, got[0].Reason)
	assert.Equal(t, "exit status 1", got[0].Error)
	assert.Equal(t, at.Add(time.Minute), got[0].At)
	assert.Equal(t, "a", got[1].SessionID)
	assert.Empty(t, got[1].Error)
}

func TestPublishJournalsVideoEventsOnly(t *testing.T) {
	j := openJournal(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	args := protocol.VideoArgs{URI: "videos/a.mp4", X: 1, Y: 2, Width: 640, Height: 360}
	j.Publish(protocol.VideoStarted, protocol.VideoEvent{VideoArgs: args})
	j.Publish(protocol.VideoError, protocol.VideoEvent{
		VideoArgs: args,
		Data:      &protocol.VideoEventData{Message: "Process finished with exit code 2"},
	})
	j.Publish(protocol.AllVideosStopped, nil)
	j.Publish(watchdog.EventRestart, watchdog.Restart{Reason: watchdog.ReasonTimeout})

	got, err := j.VideoEvents(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, protocol.AllVideosStopped, got[0].Type)
	assert.Empty(t, got[0].URI)

	assert.Equal(t, protocol.VideoError, got[1].Type)
	assert.Equal(t, "videos/a.mp4", got[1].URI)
	assert.Equal(t, "1x2-640x360", got[1].Geometry)
	assert.Equal(t, "Process finished with exit code 2", got[1].Message)
	assert.Equal(t, fixed, got[1].At)

	assert.Equal(t, protocol.VideoStarted, got[2].Type)
}
