package video

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/signbridge/internal/overlay"
	"github.com/mattjoyce/signbridge/internal/protocol"
)

// Placeholder is a freeze-frame overlay covering a playing region.
type Placeholder interface {
	Hide(ctx context.Context) error
}

// Placeholders shows freeze frames. args carries the storage-relative URI.
type Placeholders interface {
	Show(ctx context.Context, id string, args protocol.VideoArgs) (Placeholder, error)
}

// NopPlaceholders shows nothing.
type NopPlaceholders struct{}

func (NopPlaceholders) Show(context.Context, string, protocol.VideoArgs) (Placeholder, error) {
	return nopPlaceholder{}, nil
}

type nopPlaceholder struct{}

func (nopPlaceholder) Hide(context.Context) error { return nil }

// LastFramePath returns where the last decoded frame of a video is stored:
// next to the video, same base name, ".last_frame.png" suffix.
func LastFramePath(uri string) string {
	return strings.TrimSuffix(uri, path.Ext(uri)) + ".last_frame.png"
}

// Uploader pushes overlay images to the bridge server.
type Uploader interface {
	Upload(ctx context.Context, image []byte, p overlay.Params) error
}

// Invoker sends RPC messages to the bridge server.
type Invoker interface {
	Invoke(ctx context.Context, message any, result any) error
}

// FramePlaceholders uploads the stored last frame of a video as an
// overlay over its region and hides it through Overlay.Hide.
type FramePlaceholders struct {
	Uploader Uploader
	RPC      Invoker
	// Dir is the local directory behind the file-system root URL.
	Dir string
}

func (f *FramePlaceholders) Show(ctx context.Context, id string, args protocol.VideoArgs) (Placeholder, error) {
	file := filepath.Join(f.Dir, filepath.FromSlash(LastFramePath(args.URI)))
	img, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read last frame: %w", err)
	}

	overlayID := "lastframe_" + id
	params := overlay.Params{
		ID:     overlayID,
		X:      args.X,
		Y:      args.Y,
		Width:  args.Width,
		Height: args.Height,
	}
	if err := f.Uploader.Upload(ctx, img, params); err != nil {
		return nil, fmt.Errorf("upload last frame: %w", err)
	}
	return &framePlaceholder{id: overlayID, rpc: f.RPC}, nil
}

type framePlaceholder struct {
	id  string
	rpc Invoker
}

func (p *framePlaceholder) Hide(ctx context.Context) error {
	msg := protocol.HideOverlay{
		TypedMessage: protocol.TypedMessage{Type: protocol.OverlayHide},
		ID:           p.id,
	}
	return p.rpc.Invoke(ctx, msg, nil)
}
