package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/config"
	"github.com/mattjoyce/signbridge/internal/log"
	"github.com/mattjoyce/signbridge/internal/overlay"
	"github.com/mattjoyce/signbridge/internal/protocol"
	"github.com/mattjoyce/signbridge/internal/rpc"
	"github.com/mattjoyce/signbridge/internal/video"
)

const connectTimeout = 10 * time.Second

// clientFlags are shared by every command that talks to a running bridge.
// Flags win over the config file, which is only read when present.
type clientFlags struct {
	config  *string
	url     *string
	token   *string
	codec   *string
	timeout *time.Duration
}

func addClientFlags(fs *pflag.FlagSet) *clientFlags {
	return &clientFlags{
		config:  fs.StringP("config", "c", "", "Path to configuration file or directory"),
		url:     fs.String("url", "", "Bridge WebSocket URL (default from bridge.url)"),
		token:   fs.String("token", "", "API key (default from bridge.api_key)"),
		codec:   fs.String("codec", "", "Wire codec: json or cbor (default from bridge.codec)"),
		timeout: fs.Duration("timeout", 0, "Request timeout (default from bridge.invoke_timeout)"),
	}
}

type clientSettings struct {
	URL            string
	Token          string
	Codec          protocol.Codec
	Timeout        time.Duration
	FileSystemRoot string
}

func (f *clientFlags) resolve() (clientSettings, error) {
	cfg := config.Defaults()
	if path, err := config.DiscoverConfigPath(*f.config); err == nil {
		loaded, err := config.Load(path)
		if err != nil {
			if *f.config != "" {
				return clientSettings{}, err
			}
		} else {
			cfg = loaded
		}
	}

	s := clientSettings{
		URL:            cfg.Bridge.URL,
		Token:          cfg.Bridge.APIKey,
		Timeout:        cfg.Bridge.InvokeTimeout,
		FileSystemRoot: cfg.Video.FileSystemRoot,
	}
	if *f.url != "" {
		s.URL = *f.url
	}
	if *f.token != "" {
		s.Token = *f.token
	}
	if *f.timeout > 0 {
		s.Timeout = *f.timeout
	}
	codecName := cfg.Bridge.Codec
	if *f.codec != "" {
		codecName = *f.codec
	}
	codec, err := protocol.CodecByName(codecName)
	if err != nil {
		return clientSettings{}, err
	}
	s.Codec = codec
	return s, nil
}

// httpBase turns the bridge WebSocket URL into the HTTP base of the same
// server.
func (s clientSettings) httpBase() (string, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", fmt.Errorf("parse bridge url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("bridge url must be ws:// or wss:// (got %q)", s.URL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/bridge")
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

// connect dials the bridge and returns once the channel is up. The
// returned stop func ends the connection.
func (s clientSettings) connect(ctx context.Context) (*channel.Client, func(), error) {
	client := channel.NewClient(s.URL, s.Codec,
		channel.WithToken(s.Token),
		channel.WithRole(channel.RoleTool),
		channel.WithBackoff(channel.Backoff{Initial: 200 * time.Millisecond, Max: time.Second, MaxRetries: 3}),
		channel.WithClientLogger(log.WithComponent("client")),
	)

	runCtx, cancel := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(runCtx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, connectTimeout)
	defer waitCancel()
	ready := make(chan error, 1)
	go func() { ready <- client.WaitConnected(waitCtx) }()

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			return nil, nil, fmt.Errorf("connect to %s: %w", s.URL, err)
		}
	case err := <-runErr:
		cancel()
		return nil, nil, fmt.Errorf("connect to %s: %w", s.URL, err)
	}
	return client, cancel, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runInvoke(args []string) int {
	fs := newFlagSet("invoke")
	cf := addClientFlags(fs)
	if code, done := parseFlags(fs, args); done {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, `Usage: signbridge invoke '{"type":"System.GetModel"}' [flags]`)
		return 1
	}

	var message map[string]any
	if err := json.Unmarshal([]byte(fs.Arg(0)), &message); err != nil {
		fmt.Fprintf(os.Stderr, "Message must be a JSON object: %v\n", err)
		return 1
	}

	settings, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load client settings: %v\n", err)
		return 1
	}
	ctx, cancel := signalContext()
	defer cancel()

	result, err := invoke(ctx, settings, message)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invoke failed: %v\n", err)
		return 1
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
	return 0
}

func invoke(ctx context.Context, s clientSettings, message any) (any, error) {
	sock, stop, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()

	client := rpc.NewClient(sock, rpc.WithTimeout(s.Timeout), rpc.WithLogger(log.WithComponent("rpc")))
	defer client.Close()

	var result any
	if err := client.Invoke(ctx, message, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}

func runVideoNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Print(`Usage: signbridge video <action> [flags]

Actions:
  play <uri>   Play a video in a region until it ends (Ctrl+C stops it)
  clear        Stop every video on the bridge
`)
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "play":
		return runVideoPlay(args[1:])
	case "clear":
		return runVideoClear(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown video action: %s\n", args[0])
		return 1
	}
}

func runVideoPlay(args []string) int {
	fs := newFlagSet("video play")
	cf := addClientFlags(fs)
	x := fs.Int("x", 0, "Region left edge")
	y := fs.Int("y", 0, "Region top edge")
	width := fs.Int("width", 1920, "Region width")
	height := fs.Int("height", 1080, "Region height")
	stream := fs.Bool("stream", false, "Treat the URI as a network stream")
	if code, done := parseFlags(fs, args); done {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: signbridge video play <uri> [--x N --y N --width N --height N] [--stream]")
		return 1
	}

	settings, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load client settings: %v\n", err)
		return 1
	}
	ctx, cancel := signalContext()
	defer cancel()

	sock, stop, err := settings.connect(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer stop()

	videos := video.NewClient(sock, video.ClientConfig{
		FileSystemRoot: settings.FileSystemRoot,
		Logger:         log.WithComponent("video"),
	})
	region := protocol.VideoArgs{URI: fs.Arg(0), X: *x, Y: *y, Width: *width, Height: *height}
	playback, err := videos.Play(ctx, region, *stream)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Play failed: %v\n", err)
		return 1
	}
	fmt.Printf("Playing %s (id %s)\n", region.URI, playback.ID())

	for {
		select {
		case ev, ok := <-playback.Events():
			if !ok {
				return 0
			}
			switch ev.Type {
			case video.EventEnded, video.EventStopped:
				fmt.Printf("Video %s\n", ev.Type)
				return 0
			case video.EventFailed:
				fmt.Fprintf(os.Stderr, "Video error: %s\n", ev.Message)
				return 1
			}
		case <-ctx.Done():
			stopCtx, stopCancel := context.WithTimeout(context.Background(), connectTimeout)
			err := videos.Stop(stopCtx, region)
			stopCancel()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Stop failed: %v\n", err)
				return 1
			}
			fmt.Println("Video stopped")
			return 0
		}
	}
}

func runVideoClear(args []string) int {
	fs := newFlagSet("video clear")
	cf := addClientFlags(fs)
	if code, done := parseFlags(fs, args); done {
		return code
	}
	settings, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load client settings: %v\n", err)
		return 1
	}
	ctx, cancel := signalContext()
	defer cancel()
	if settings.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	sock, stop, err := settings.connect(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer stop()

	videos := video.NewClient(sock, video.ClientConfig{FileSystemRoot: settings.FileSystemRoot, Logger: log.WithComponent("video")})
	if err := videos.ClearAll(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
		return 1
	}
	fmt.Println("All videos stopped")
	return 0
}

func runOverlayNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Print(`Usage: signbridge overlay <action> [flags]

Actions:
  show <file>   Upload an image and show it over the display
  hide <id>     Remove an overlay
`)
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "show":
		return runOverlayShow(args[1:])
	case "hide":
		return runOverlayHide(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown overlay action: %s\n", args[0])
		return 1
	}
}

func runOverlayShow(args []string) int {
	fs := newFlagSet("overlay show")
	cf := addClientFlags(fs)
	id := fs.String("id", "", "Overlay id (required)")
	x := fs.Int("x", 0, "Left edge")
	y := fs.Int("y", 0, "Top edge")
	width := fs.Int("width", 0, "Width (required)")
	height := fs.Int("height", 0, "Height (required)")
	if code, done := parseFlags(fs, args); done {
		return code
	}
	if fs.NArg() != 1 || *id == "" {
		fmt.Fprintln(os.Stderr, "Usage: signbridge overlay show <file> --id ID --width N --height N [--x N --y N]")
		return 1
	}

	image, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		return 1
	}
	settings, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load client settings: %v\n", err)
		return 1
	}
	base, err := settings.httpBase()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()
	client := overlay.NewClient(base)
	client.Token = settings.Token
	if settings.Timeout > 0 {
		client.HTTP.Timeout = settings.Timeout
	}
	if err := client.Upload(ctx, image, overlay.Params{ID: *id, X: *x, Y: *y, Width: *width, Height: *height}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("Overlay %s shown\n", *id)
	return 0
}

func runOverlayHide(args []string) int {
	fs := newFlagSet("overlay hide")
	cf := addClientFlags(fs)
	if code, done := parseFlags(fs, args); done {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: signbridge overlay hide <id>")
		return 1
	}
	settings, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load client settings: %v\n", err)
		return 1
	}
	ctx, cancel := signalContext()
	defer cancel()

	msg := protocol.HideOverlay{TypedMessage: protocol.TypedMessage{Type: protocol.OverlayHide}, ID: fs.Arg(0)}
	if _, err := invoke(ctx, settings, msg); err != nil {
		if errors.Is(err, rpc.ErrRequestFailed) {
			fmt.Fprintf(os.Stderr, "Bridge refused: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	fmt.Printf("Overlay %s hidden\n", fs.Arg(0))
	return 0
}
