package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ErrNotFound is returned when hiding an overlay that is not shown.
var ErrNotFound = errors.New("overlay not found")

//go:generate mockgen -destination=mocks/mock_renderer.go -package=mocks github.com/mattjoyce/signbridge/internal/overlay Renderer

// Renderer puts images on screen above the display content.
type Renderer interface {
	Render(ctx context.Context, image []byte, p Params) error
	Hide(ctx context.Context, id string) error
}

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// ExecRenderer shows each overlay with one compositor process that lives
// as long as the overlay is visible. Command arguments may use {file}
// {id} {x} {y} {width} {height} {duration} {keyframes}; keyframes are
// rendered as "percent:x:y" joined by commas.
type ExecRenderer struct {
	Command []string
	Dir     string
	Logger  *slog.Logger

	mu    sync.Mutex
	procs map[string]*exec.Cmd
}

func (r *ExecRenderer) Render(_ context.Context, image []byte, p Params) error {
	if len(r.Command) == 0 {
		return errors.New("no overlay renderer configured")
	}
	if len(image) == 0 {
		return &ValidationError{Field: "body", Reason: "empty image"}
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("create overlay dir: %w", err)
	}

	file := filepath.Join(r.Dir, unsafeIDChars.ReplaceAllString(p.ID, "_")+".img")
	if err := os.WriteFile(file, image, 0o644); err != nil {
		return fmt.Errorf("write overlay image: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.procs == nil {
		r.procs = make(map[string]*exec.Cmd)
	}
	if prev, ok := r.procs[p.ID]; ok {
		_ = prev.Process.Kill()
		delete(r.procs, p.ID)
	}

	args := r.expand(file, p)
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start overlay renderer: %w", err)
	}
	r.procs[p.ID] = cmd
	go r.reap(p.ID, cmd)

	r.logger().Debug("overlay shown", "overlay_id", p.ID, "pid", cmd.Process.Pid)
	return nil
}

func (r *ExecRenderer) Hide(_ context.Context, id string) error {
	r.mu.Lock()
	cmd, ok := r.procs[id]
	delete(r.procs, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop overlay %s: %w", id, err)
	}
	return nil
}

// Close hides every overlay.
func (r *ExecRenderer) Close() {
	r.mu.Lock()
	procs := r.procs
	r.procs = nil
	r.mu.Unlock()
	for _, cmd := range procs {
		_ = cmd.Process.Kill()
	}
}

func (r *ExecRenderer) reap(id string, cmd *exec.Cmd) {
	err := cmd.Wait()
	r.mu.Lock()
	if cur, ok := r.procs[id]; ok && cur == cmd {
		delete(r.procs, id)
		r.logger().Warn("overlay renderer exited", "overlay_id", id, "error", err)
	}
	r.mu.Unlock()
}

func (r *ExecRenderer) expand(file string, p Params) []string {
	duration := 0
	var kfs []string
	if p.Animation != nil {
		duration = p.Animation.Duration
		for _, kf := range p.Animation.Keyframes {
			kfs = append(kfs, fmt.Sprintf("%d:%d:%d", kf.Percent, kf.X, kf.Y))
		}
	}
	rep := strings.NewReplacer(
		"{file}", file,
		"{id}", p.ID,
		"{x}", strconv.Itoa(p.X),
		"{y}", strconv.Itoa(p.Y),
		"{width}", strconv.Itoa(p.Width),
		"{height}", strconv.Itoa(p.Height),
		"{duration}", strconv.Itoa(duration),
		"{keyframes}", strings.Join(kfs, ","),
	)
	out := make([]string, len(r.Command))
	for i, a := range r.Command {
		out[i] = rep.Replace(a)
	}
	return out
}

func (r *ExecRenderer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
