package video

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/events"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

// Service answers video commands arriving on client sessions and pushes
// decoder exit events to every attached session.
type Service struct {
	player *Player
	events events.Publisher
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]channel.Session
}

func NewService(player *Player, pub events.Publisher, logger *slog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	s := &Service{
		player:   player,
		events:   pub,
		logger:   logger,
		sessions: make(map[string]channel.Session),
	}
	player.OnExit(s.forwardExit)
	return s
}

// Attach binds the video command set to sess until it disconnects.
func (s *Service) Attach(sess channel.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := s.logger.With("session_id", sess.ID())

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	sess.On(channel.EventDisconnected, func(channel.Message) {
		cancel()
		s.mu.Lock()
		delete(s.sessions, sess.ID())
		s.mu.Unlock()
	})

	sess.On(protocol.PrepareVideo, s.command(ctx, sess, logger, func(ctx context.Context, cmd protocol.VideoCommand) (string, error) {
		return protocol.VideoPrepared, s.player.Prepare(ctx, cmd)
	}))
	sess.On(protocol.PlayVideo, s.command(ctx, sess, logger, func(ctx context.Context, cmd protocol.VideoCommand) (string, error) {
		return protocol.VideoStarted, s.player.Play(ctx, cmd.VideoArgs)
	}))
	sess.On(protocol.StopVideo, s.command(ctx, sess, logger, func(ctx context.Context, cmd protocol.VideoCommand) (string, error) {
		return protocol.VideoStopped, s.player.Stop(ctx, cmd.VideoArgs)
	}))
	sess.On(protocol.StopAllVideos, func(channel.Message) {
		go func() {
			if err := s.player.StopAll(ctx); err != nil {
				logger.Warn("failed to stop all videos", "error", err)
			}
			s.events.Publish(protocol.AllVideosStopped, nil)
			if err := sess.Emit(protocol.AllVideosStopped, struct{}{}); err != nil {
				logger.Debug("failed to acknowledge stop all", "error", err)
			}
		}()
	})
}

type commandFunc func(ctx context.Context, cmd protocol.VideoCommand) (reply string, err error)

// command decodes a video command and runs fn off the read loop, replying
// with fn's event on success or Video.Error on failure.
func (s *Service) command(ctx context.Context, sess channel.Session, logger *slog.Logger, fn commandFunc) channel.Handler {
	return func(msg channel.Message) {
		var cmd protocol.VideoCommand
		if err := msg.Decode(&cmd); err != nil || cmd.URI == "" {
			logger.Warn("dropping malformed video command", "event", msg.Event, "error", err)
			return
		}

		go func() {
			vlog := logger.With("video_id", ResourceID(cmd.VideoArgs), "command", msg.Event)
			reply, err := fn(ctx, cmd)
			ev := protocol.VideoEvent{VideoArgs: cmd.VideoArgs}
			if err != nil {
				vlog.Warn("video command failed", "uri", cmd.URI, "error", err)
				reply = protocol.VideoError
				ev.Data = &protocol.VideoEventData{Message: err.Error()}
			} else {
				vlog.Debug("video command done", "uri", cmd.URI)
			}
			s.events.Publish(reply, ev)
			if err := sess.Emit(reply, ev); err != nil {
				vlog.Debug("failed to send video event", "event", reply, "error", err)
			}
		}()
	}
}

func (s *Service) forwardExit(ev ExitEvent) {
	out := protocol.VideoEvent{VideoArgs: ev.Args}
	if ev.Message != "" {
		out.Data = &protocol.VideoEventData{Message: ev.Message}
	}
	s.events.Publish(ev.Kind, out)

	s.mu.Lock()
	sessions := make([]channel.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		if err := sess.Emit(ev.Kind, out); err != nil {
			s.logger.Debug("failed to forward video exit", "session_id", sess.ID(), "error", err)
		}
	}
}
