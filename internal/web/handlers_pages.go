package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/studentimport/internal/core"
	"github.com/JonMunkholm/studentimport/internal/progress"
	"github.com/JonMunkholm/studentimport/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// handleStatusPage renders an import's progress. Once the snapshot has
// expired the persisted run is shown instead.
func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	snap, err := s.deps.Progress.Get(r.Context(), importID)
	if errors.Is(err, progress.ErrNotFound) && s.deps.Runs != nil {
		var run *core.ImportRun
		run, err = s.deps.Runs.GetRun(r.Context(), importID)
		if err == nil {
			snap = run.Snapshot(run.LastError)
		}
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, progress.ErrNotFound) || errors.Is(err, core.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	terminal := core.Status(snap.Status).Terminal()
	if err := templates.ImportStatus(snap, terminal).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}
