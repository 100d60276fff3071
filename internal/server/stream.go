package server

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/ayusman/signcam/internal/app"
	"github.com/ayusman/signcam/internal/mjpeg"
)

// StreamHandler serves the annotated MJPEG stream.
type StreamHandler struct {
	app *app.App
}

// NewStreamHandler creates a new StreamHandler for a.
func NewStreamHandler(a *app.App) *StreamHandler {
	return &StreamHandler{app: a}
}

// ServeHTTP streams frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mw := mjpeg.NewWriter(w)
	client := app.Stream{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}

	_, err := h.app.Stream(r.Context(), client, mw.WriteChunk)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrStreamBusy):
		w.Header().Set("Retry-After", "1")
		http.Error(w, "Stream already in use", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		log.Printf("stream error for %s: %v", client.RemoteAddr, err)
		if !mw.Started() {
			http.Error(w, "Stream failed", http.StatusInternalServerError)
		}
	}
}
