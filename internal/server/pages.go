package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"

	"physiqueAi/internal/auth"
	"physiqueAi/internal/encoder"
	"physiqueAi/internal/events"
	"physiqueAi/internal/media"
	"physiqueAi/internal/physique"
	"physiqueAi/internal/render"
	"physiqueAi/internal/session"
)

// maxFormMemory bounds the part of an upload kept in memory.
const maxFormMemory = 8 << 20

// PreviewOpener serves previews kept on local disk.
type PreviewOpener interface {
	Open(key string) (*os.File, error)
}

// Handler serves the page and the per-session API.
type Handler struct {
	Sessions *session.Service
	Renderer *render.Renderer
	Events   *events.Broker
	// Previews is nil when previews live outside this process.
	Previews PreviewOpener
}

// Page handles GET /.
func (h Handler) Page(w http.ResponseWriter, r *http.Request) {
	state := h.Sessions.State(sessionID(r))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.Renderer.Page(w, state); err != nil {
		log.WithError(err).Error("render page")
	}
}

// Upload handles POST /upload.
func (h Handler) Upload(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	upload, err := readPhoto(r)
	if err != nil {
		if err := h.Sessions.RejectUpload(id, err); err != nil {
			log.Infof("session %s: upload ignored: %v", id, err)
		}
		redirectHome(w, r)
		return
	}

	if err := h.Sessions.Upload(r.Context(), id, upload); err != nil {
		log.Infof("session %s: upload ignored: %v", id, err)
	}
	redirectHome(w, r)
}

// Visualize handles POST /visualize.
func (h Handler) Visualize(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if err := h.Sessions.Visualize(id); err != nil {
		log.Infof("session %s: visualize ignored: %v", id, err)
	}
	redirectHome(w, r)
}

// Reset handles POST /reset.
func (h Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Reset(r.Context(), sessionID(r))
	redirectHome(w, r)
}

// Dismiss handles POST /dismiss.
func (h Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Dismiss(sessionID(r))
	redirectHome(w, r)
}

// Preview handles GET /previews/{key}. Only the session holding the preview
// may read it.
func (h Handler) Preview(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if h.Previews == nil || h.Sessions.Peek(sessionID(r)).Preview.Key != key {
		http.NotFound(w, r)
		return
	}

	file, err := h.Previews.Open(key)
	if errors.Is(err, media.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.WithError(err).Error("open preview")
		http.Error(w, "could not read preview", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "could not read preview", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "private, no-cache")
	http.ServeContent(w, r, key, info.ModTime(), file)
}

// Snapshot handles GET /api/session.
func (h Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Sessions.Peek(sessionID(r)).View())
}

// StreamEvents handles GET /api/session/events. It sends the current snapshot
// first and then one event per transition, until the client leaves or the
// broker is closed.
func (h Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.WithError(err).Warn("event stream: lift write deadline")
	}

	id := sessionID(r)
	ch, unsubscribe := h.Events.Subscribe(id)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, h.Sessions.Peek(id).View()); err != nil {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, evt.Data); err != nil {
				log.WithError(err).Warn("event stream: write")
				return
			}
			flusher.Flush()
		}
	}
}

func readPhoto(r *http.Request) (session.Upload, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return session.Upload{}, physique.Wrap(physique.ErrRead, "parse form", err)
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		return session.Upload{}, physique.Wrap(physique.ErrRead, "form file", err)
	}
	defer file.Close()

	payload, err := encoder.Encode(file, header.Header.Get("Content-Type"))
	if err != nil {
		return session.Upload{}, err
	}
	return session.Upload{Filename: header.Filename, Payload: payload}, nil
}

func writeEvent(w http.ResponseWriter, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", render.StateEvent, body)
	return err
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func sessionID(r *http.Request) string {
	id, _ := auth.SessionFromContext(r.Context())
	return id
}
