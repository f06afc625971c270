package web

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/JonMunkholm/studentimport/internal/core"
	"github.com/JonMunkholm/studentimport/internal/logging"
	"github.com/go-chi/chi/v5"
)

// handleExportFailedRows exports the failed rows of a run as CSV so they can
// be corrected and uploaded again.
func (s *Server) handleExportFailedRows(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}

	columns := failedRowColumns(run.Errors)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="failed_rows_%s.csv"`, run.ID))

	// Row 1 is the title so the file reads back like any other upload.
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Failed rows of import " + run.ID})
	_ = cw.Write(append([]string{"_row", "_error"}, columns...))
	for _, e := range run.Errors {
		record := make([]string, 0, len(columns)+2)
		record = append(record, strconv.Itoa(e.Row), e.Reason)
		for _, col := range columns {
			record = append(record, e.Record[col])
		}
		_ = cw.Write(record)
	}
	cw.Flush()

	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Warn("failed row export interrupted", "error", err)
	}
}

// failedRowColumns returns the recognized columns in template order followed
// by any extra columns seen in the failed records, sorted.
func failedRowColumns(rows []core.RowError) []string {
	known := make(map[string]bool, len(core.Columns))
	for _, c := range core.Columns {
		known[c] = true
	}

	var extra []string
	seen := make(map[string]bool)
	for _, e := range rows {
		for col := range e.Record {
			if !known[col] && !seen[col] {
				seen[col] = true
				extra = append(extra, col)
			}
		}
	}
	slices.Sort(extra)

	return append(slices.Clone(core.Columns), extra...)
}
