package video

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/log"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingPublisher) Publish(eventType string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
}

func (r *recordingPublisher) has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.types {
		if t == eventType {
			return true
		}
	}
	return false
}

func newBridge(t *testing.T, slots int) (*Client, *Service, *fakeLauncher, *recordingPublisher) {
	t.Helper()
	clientSide, serverSide := channel.Pipe(protocol.CBOR)
	t.Cleanup(clientSide.Close)

	l := &fakeLauncher{}
	pub := &recordingPublisher{}
	player := NewPlayer(l, PlayerConfig{Slots: slots, Logger: log.Discard()})
	svc := NewService(player, pub, log.Discard())
	svc.Attach(serverSide)

	c := NewClient(clientSide, ClientConfig{FileSystemRoot: root, Logger: log.Discard()})
	return c, svc, l, pub
}

func TestServiceEndToEnd(t *testing.T) {
	c, svc, l, pub := newBridge(t, 2)
	ctx := context.Background()

	pb, err := c.Play(ctx, abs("a.mp4"), false)
	require.NoError(t, err)
	assert.Equal(t, EventStarted, waitFor(t, pb.Events()).Type)
	assert.Equal(t, 1, svc.player.Busy())

	played, _ := l.last().counts()
	assert.Equal(t, 1, played)

	l.last().exit(ExitStatus{Code: 0})
	ev := waitFor(t, pb.Events())
	assert.Equal(t, EventEnded, ev.Type)
	assert.Equal(t, root+"/a.mp4", ev.Args.URI)

	require.NoError(t, c.Stop(ctx, abs("a.mp4")))
	assert.Equal(t, 0, svc.player.Busy())
	assert.True(t, pub.has(protocol.VideoEnded))
	assert.True(t, pub.has(protocol.VideoStopped))
}

func TestServiceReportsCommandFailures(t *testing.T) {
	c, _, _, _ := newBridge(t, 1)
	ctx := context.Background()

	require.NoError(t, c.Prepare(ctx, abs("a.mp4"), false))
	err := c.Prepare(ctx, abs("b.mp4"), false)
	var ee *EventError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Message, ErrNoFreeSlot.Error())
}

func TestServiceClearAll(t *testing.T) {
	c, svc, _, pub := newBridge(t, 2)
	ctx := context.Background()

	_, err := c.Play(ctx, abs("a.mp4"), false)
	require.NoError(t, err)
	require.NoError(t, c.Prepare(ctx, abs("b.mp4"), false))

	require.NoError(t, c.ClearAll(ctx))
	assert.Equal(t, 0, svc.player.Busy())
	assert.Equal(t, 0, c.PlayingCount())
	assert.True(t, pub.has(protocol.AllVideosStopped))
}

func TestServiceDropsDisconnectedSessions(t *testing.T) {
	clientSide, serverSide := channel.Pipe(protocol.JSON)
	svc := NewService(NewPlayer(&fakeLauncher{}, PlayerConfig{Logger: log.Discard()}), nil, log.Discard())
	svc.Attach(serverSide)

	svc.mu.Lock()
	assert.Len(t, svc.sessions, 1)
	svc.mu.Unlock()

	clientSide.Close()
	assert.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.sessions) == 0
	}, time.Second, 5*time.Millisecond)
}
