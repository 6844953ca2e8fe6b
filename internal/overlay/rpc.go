package overlay

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattjoyce/signbridge/internal/protocol"
	"github.com/mattjoyce/signbridge/internal/rpc"
)

// Register binds Overlay.Hide to r.
func Register(d *rpc.Dispatcher, r Renderer) {
	d.Handle(protocol.OverlayHide, func(ctx context.Context, req rpc.Request) (any, error) {
		var msg protocol.HideOverlay
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		if msg.ID == "" {
			return nil, fmt.Errorf("%w: overlay id required", rpc.ErrInvalidMessage)
		}
		if err := r.Hide(ctx, msg.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: %v", rpc.ErrResourceNotFound, err)
			}
			return nil, err
		}
		return nil, nil
	})
}
