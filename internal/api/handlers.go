package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/mattjoyce/signbridge/internal/overlay"
	"github.com/mattjoyce/signbridge/internal/protocol"
	"github.com/mattjoyce/signbridge/internal/rpc"
)

// maxMessageBytes bounds POST /message bodies.
const maxMessageBytes = 1 << 20

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:           "ok",
		UptimeSeconds:    int64(time.Since(s.startedAt).Seconds()),
		EventSubscribers: s.deps.Events.Subscribers(),
	}
	if s.deps.Bridge != nil {
		resp.Sessions = s.deps.Bridge.Sessions()
	}
	if s.deps.Slots != nil {
		resp.SlotsBusy = s.deps.Slots.Busy()
	}
	if s.deps.Restarts != nil {
		resp.Restarts = s.deps.Restarts.Restarts()
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleMessage handles POST /message: one JSON-encoded bridge message in,
// its result out. A failing handler is a 500; a panicking handler is
// re-raised after the response so the recoverer reports it.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dispatcher == nil {
		s.writeError(w, http.StatusNotFound, "messages are not served")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		s.writeBodyError(w, err)
		return
	}

	result, err := s.deps.Dispatcher.Dispatch(r.Context(), protocol.JSON, "", body)
	if err == nil {
		if result == nil {
			result = struct{}{}
		}
		respondJSON(w, http.StatusOK, result)
		return
	}

	switch {
	case errors.Is(err, rpc.ErrInvalidMessage):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rpc.ErrResourceNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("message handler failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		var pe *rpc.PanicError
		if errors.As(err, &pe) {
			panic(pe)
		}
	}
}

// handleOverlay handles POST /overlay: the raw body is the image, the
// query string carries geometry and animation.
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if s.deps.Renderer == nil {
		s.writeError(w, http.StatusNotFound, "overlays are not served")
		return
	}

	params, err := overlay.ParseParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxOverlayBytes))
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	if len(image) == 0 {
		s.writeError(w, http.StatusBadRequest, "image body is empty")
		return
	}

	if err := s.deps.Renderer.Render(r.Context(), image, params); err != nil {
		s.logger.Warn("overlay render failed", "overlay_id", params.ID, "error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	s.writeError(w, http.StatusBadRequest, "failed to read request body")
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
