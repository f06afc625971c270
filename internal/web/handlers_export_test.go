package web

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/studentimport/internal/core"
	"github.com/JonMunkholm/studentimport/internal/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportFailedRows(t *testing.T) {
	env := newTestEnv(t)
	run := core.NewImportRun(core.Job{ImportID: "imp-1", OwnerID: "owner-1"}, time.Now())
	run.Status = core.StatusCompletedWithErrors
	run.Errors = []core.RowError{
		{Row: 4, Reason: "semester: required field is empty", Record: map[string]string{
			"matric_number": "M001",
			"student_name":  "Alice",
			"notes":         "late",
		}},
		{Row: 7, Reason: "supervisor not found", Record: map[string]string{"matric_number": "M002"}},
	}
	env.runs.runs[run.ID] = run

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/imports/imp-1/errors.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "failed_rows_imp-1.csv")

	cr := csv.NewReader(strings.NewReader(rec.Body.String()))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Failed rows of import imp-1"}, rows[0])
	rows = rows[1:]

	header := rows[0]
	assert.Equal(t, []string{"_row", "_error", "matric_number", "student_name"}, header[:4])
	assert.Equal(t, "notes", header[len(header)-1])
	assert.Len(t, header, len(core.Columns)+3)

	assert.Equal(t, "4", rows[1][0])
	assert.Equal(t, "M001", rows[1][2])
	assert.Equal(t, "Alice", rows[1][3])
	assert.Equal(t, "late", rows[1][len(header)-1])
	assert.Equal(t, "7", rows[2][0])
	assert.Equal(t, "", rows[2][3])
}

func TestExportFailedRows_ReadsBackAsUpload(t *testing.T) {
	env := newTestEnv(t)
	run := core.NewImportRun(core.Job{ImportID: "imp-2"}, time.Now())
	run.Errors = []core.RowError{
		{Row: 4, Reason: "supervisor not found", Record: map[string]string{"matric_number": "M001", "student_name": "Alice"}},
		{Row: 9, Reason: "semester: required field is empty", Record: map[string]string{"matric_number": "M002", "student_name": "Bob"}},
	}
	env.runs.runs[run.ID] = run

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/imports/imp-2/errors.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := tabular.Read(strings.NewReader(rec.Body.String()), "csv")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "M001", records[0].Get("matric_number"))
	assert.Equal(t, "Alice", records[0].Get("student_name"))
	assert.Equal(t, "M002", records[1].Get("matric_number"))
	assert.Equal(t, "9", records[1].Get("row"))
}

func TestExportFailedRows_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/imports/missing/errors.csv", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
