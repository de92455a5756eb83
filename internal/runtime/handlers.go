package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/narrata-labs/narrata-core/internal/session"
	"github.com/narrata-labs/narrata-core/internal/synth"
)

type startRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type statusResponse struct {
	State       string  `json:"state"`
	ChunkIndex  int     `json:"chunk_index"`
	ChunkTotal  int     `json:"chunk_total"`
	Progress    float64 `json:"progress"`
	LastOutcome string  `json:"last_outcome,omitempty"`
	LastError   string  `json:"last_error,omitempty"`
}

type itemResponse struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Voice      string    `json:"voice"`
	CreatedAt  time.Time `json:"created_at"`
	DurationMS int64     `json:"duration_ms"`
}

func (r *Runtime) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/session", r.handleStartSession)
	mux.HandleFunc("GET /v1/session", r.handleSessionStatus)
	mux.HandleFunc("POST /v1/session/cancel", r.handleCancelSession)
	mux.HandleFunc("GET /v1/session/merged", r.handleMergedAudio)
	mux.HandleFunc("POST /v1/session/merged/archive", r.handleArchiveMerged)
	mux.HandleFunc("GET /v1/items", r.handleListItems)
	mux.HandleFunc("DELETE /v1/items", r.handleClearItems)
	mux.HandleFunc("GET /v1/items/{id}/audio", r.handleItemAudio)
	mux.HandleFunc("POST /v1/items/{id}/regenerate", r.handleRegenerateItem)
	mux.HandleFunc("POST /v1/items/{id}/archive", r.handleArchiveItem)
	mux.HandleFunc("DELETE /v1/items/{id}", r.handleDeleteItem)
}

func (r *Runtime) handleStartSession(w http.ResponseWriter, req *http.Request) {
	var body startRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, &session.ValidationError{Reason: "malformed request body"})
		return
	}
	if body.Voice == "" {
		body.Voice = r.cfg.Synth.Voice
	}
	if err := r.orch.Start(r.rootCtx, body.Text, synth.Voice(body.Voice)); err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusAccepted, r.statusSnapshot())
}

func (r *Runtime) handleSessionStatus(w http.ResponseWriter, _ *http.Request) {
	r.writeJSON(w, http.StatusOK, r.statusSnapshot())
}

func (r *Runtime) handleCancelSession(w http.ResponseWriter, _ *http.Request) {
	r.orch.Cancel()
	r.writeJSON(w, http.StatusAccepted, r.statusSnapshot())
}

func (r *Runtime) handleMergedAudio(w http.ResponseWriter, _ *http.Request) {
	data, _, ok := r.orch.Merged()
	if !ok {
		r.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no merged artifact available"})
		return
	}
	writeWAV(w, "merged.wav", data)
}

func (r *Runtime) handleListItems(w http.ResponseWriter, _ *http.Request) {
	items := r.orch.Items()
	out := make([]itemResponse, len(items))
	for i, item := range items {
		out[i] = itemResponse{
			ID:         item.ID,
			Text:       item.Text,
			Voice:      item.Voice,
			CreatedAt:  item.CreatedAt,
			DurationMS: item.Duration.Milliseconds(),
		}
	}
	r.writeJSON(w, http.StatusOK, out)
}

func (r *Runtime) handleItemAudio(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	data, err := r.orch.ItemAudio(req.Context(), id)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeWAV(w, id+".wav", data)
}

func (r *Runtime) handleRegenerateItem(w http.ResponseWriter, req *http.Request) {
	if err := r.orch.Regenerate(r.rootCtx, req.PathValue("id")); err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, r.statusSnapshot())
}

func (r *Runtime) handleDeleteItem(w http.ResponseWriter, req *http.Request) {
	if err := r.orch.Delete(req.Context(), req.PathValue("id")); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) handleClearItems(w http.ResponseWriter, req *http.Request) {
	if err := r.orch.Clear(req.Context()); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) handleArchiveItem(w http.ResponseWriter, req *http.Request) {
	if r.archiveStor == nil {
		r.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "archive is not enabled"})
		return
	}
	id := req.PathValue("id")
	data, err := r.orch.ItemAudio(req.Context(), id)
	if err != nil {
		r.writeError(w, err)
		return
	}
	url, err := r.archiveStor.Upload(req.Context(), fmt.Sprintf("items/%s.wav", id), data)
	if err != nil {
		r.writeError(w, &session.StorageError{Op: "archive", Err: err})
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (r *Runtime) handleArchiveMerged(w http.ResponseWriter, req *http.Request) {
	if r.archiveStor == nil {
		r.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "archive is not enabled"})
		return
	}
	data, _, ok := r.orch.Merged()
	if !ok {
		r.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no merged artifact available"})
		return
	}
	name := fmt.Sprintf("merged/%d.wav", time.Now().UTC().Unix())
	url, err := r.archiveStor.Upload(req.Context(), name, data)
	if err != nil {
		r.writeError(w, &session.StorageError{Op: "archive", Err: err})
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (r *Runtime) statusSnapshot() statusResponse {
	st := r.orch.Status()
	return statusResponse{
		State:       st.State.String(),
		ChunkIndex:  st.ChunkIndex,
		ChunkTotal:  st.ChunkTotal,
		Progress:    st.Progress,
		LastOutcome: st.LastOutcome,
		LastError:   st.LastError,
	}
}

func (r *Runtime) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		r.logger.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

func (r *Runtime) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var validationErr *session.ValidationError
	var serviceErr *session.ServiceError
	var storageErr *session.StorageError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &serviceErr):
		status = http.StatusBadGateway
	case errors.As(err, &storageErr):
		status = http.StatusInternalServerError
	}
	r.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeWAV(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	_, _ = w.Write(data)
}
