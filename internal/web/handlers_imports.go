package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/JonMunkholm/studentimport/internal/core"
	"github.com/JonMunkholm/studentimport/internal/logging"
	"github.com/JonMunkholm/studentimport/internal/progress"
	"github.com/JonMunkholm/studentimport/internal/tabular"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// sniffLen is how much of an upload is inspected when no extension is declared.
const sniffLen = 3072

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// importIDPattern keeps caller-supplied IDs safe to use as file names.
var importIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// CreateImportResponse is returned when an upload is accepted.
type CreateImportResponse struct {
	ImportID    string `json:"import_id"`
	ProgressURL string `json:"progress_url"`
}

// handleCreateImport stores a multipart upload and queues it for import.
//
// Form fields: file (required), owner_id (required), import_id and
// extension (optional).
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, errFileTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	ownerID := r.FormValue("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	importID := r.FormValue("import_id")
	if importID == "" {
		importID = uuid.NewString()
	} else if !importIDPattern.MatchString(importID) {
		writeError(w, http.StatusBadRequest, "import_id may only contain letters, digits, '-' and '_'")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	ext, err := detectExtension(file, r.FormValue("extension"), header.Filename)
	if err != nil {
		s.respondError(w, r, err, http.StatusUnsupportedMediaType)
		return
	}

	path, err := s.saveUpload(file, importID, ext)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	id, err := s.deps.Imports.Submit(r.Context(), core.Job{
		ImportID:  importID,
		FilePath:  path,
		FileName:  header.Filename,
		Extension: ext,
		OwnerID:   ownerID,
	})
	if err != nil {
		_ = os.Remove(path)
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrTooManyImports) {
			status = http.StatusServiceUnavailable
			w.Header().Set("Retry-After", "30")
		}
		s.respondError(w, r, err, status)
		return
	}

	logging.FromContext(r.Context()).Info("import queued",
		"import_id", id,
		"owner_id", ownerID,
		"file", header.Filename,
		"size", header.Size,
	)
	writeJSONStatus(w, http.StatusAccepted, CreateImportResponse{
		ImportID:    id,
		ProgressURL: "/api/imports/" + id + "/progress",
	})
}

// detectExtension prefers the declared extension, then the file name, then
// the content.
func detectExtension(file io.ReadSeeker, declared, filename string) (string, error) {
	for _, candidate := range []string{declared, filepath.Ext(filename)} {
		if candidate == "" {
			continue
		}
		ext := tabular.NormalizeExtension(candidate)
		if _, err := tabular.DecoderFor(ext); err != nil {
			return "", err
		}
		return ext, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	ext := tabular.Sniff(head[:n])
	if _, err := tabular.DecoderFor(ext); err != nil {
		return "", err
	}
	return ext, nil
}

// saveUpload copies the upload into the upload directory as <importID>.<ext>.
func (s *Server) saveUpload(src io.Reader, importID, ext string) (string, error) {
	dir := s.cfg.Import.UploadDir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(dir, importID+"."+ext)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

// handleProgress returns the latest progress snapshot of an import.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	snap, err := s.deps.Progress.Get(r.Context(), importID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, progress.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}
	writeJSON(w, snap)
}

// handleGetImport returns the persisted run summary.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}
	writeJSON(w, run)
}

// handleListImports lists the most recent runs of one owner.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := s.deps.Runs.ListRuns(r.Context(), ownerID, limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*core.ImportRun{}
	}
	writeJSON(w, map[string]any{"imports": runs})
}
