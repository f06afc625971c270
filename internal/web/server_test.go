package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/studentimport/internal/config"
	"github.com/JonMunkholm/studentimport/internal/core"
	"github.com/JonMunkholm/studentimport/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu   sync.Mutex
	jobs []core.Job
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, job core.Job) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return job.ImportID, nil
}

func (f *fakeSubmitter) Status() core.RunLimiterStatus {
	return core.RunLimiterStatus{Active: 0, Available: 4, MaxConcurrent: 4}
}

type fakeRuns struct {
	runs map[string]*core.ImportRun
}

func (f *fakeRuns) SaveRun(_ context.Context, run *core.ImportRun) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRuns) GetRun(_ context.Context, id string) (*core.ImportRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeRuns) ListRuns(_ context.Context, ownerID string, limit int) ([]*core.ImportRun, error) {
	var out []*core.ImportRun
	for _, run := range f.runs {
		if run.OwnerID == ownerID && len(out) < limit {
			out = append(out, run)
		}
	}
	return out, nil
}

type testEnv struct {
	server   *Server
	imports  *fakeSubmitter
	runs     *fakeRuns
	progress *progress.MemoryStore
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Import: config.ImportConfig{
			UploadDir:   t.TempDir(),
			MaxFileSize: 1 << 20,
		},
	}
	env := &testEnv{
		imports:  &fakeSubmitter{},
		runs:     &fakeRuns{runs: map[string]*core.ImportRun{}},
		progress: progress.NewMemoryStore(time.Hour),
		cfg:      cfg,
	}
	t.Cleanup(func() { _ = env.progress.Close() })
	env.server = NewServer(cfg, Deps{
		Imports:  env.imports,
		Runs:     env.runs,
		Progress: env.progress,
	})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

const sampleCSV = "Students\nmatric_number,student_name\nM001,Alice\n"

func TestCreateImport_Accepted(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(uploadRequest(t, map[string]string{"owner_id": "owner-1", "import_id": "imp-1"}, "students.CSV", sampleCSV))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp CreateImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "imp-1", resp.ImportID)
	assert.Equal(t, "/api/imports/imp-1/progress", resp.ProgressURL)

	require.Len(t, env.imports.jobs, 1)
	job := env.imports.jobs[0]
	assert.Equal(t, "owner-1", job.OwnerID)
	assert.Equal(t, "students.CSV", job.FileName)
	assert.Equal(t, "csv", job.Extension)
	assert.Equal(t, filepath.Join(env.cfg.Import.UploadDir, "imp-1.csv"), job.FilePath)

	saved, err := os.ReadFile(job.FilePath)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(saved))
}

func TestCreateImport_GeneratesID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(uploadRequest(t, map[string]string{"owner_id": "owner-1", "extension": "text/csv"}, "upload", sampleCSV))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, env.imports.jobs, 1)
	assert.NotEmpty(t, env.imports.jobs[0].ImportID)
	assert.Equal(t, "csv", env.imports.jobs[0].Extension)
}

func TestCreateImport_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		content  string
		status   int
		code     string
	}{
		{"missing owner", map[string]string{}, "students.csv", sampleCSV, http.StatusBadRequest, ""},
		{"missing file", map[string]string{"owner_id": "o"}, "", "", http.StatusBadRequest, ""},
		{"bad import id", map[string]string{"owner_id": "o", "import_id": "../etc"}, "students.csv", sampleCSV, http.StatusBadRequest, ""},
		{"unsupported extension", map[string]string{"owner_id": "o"}, "report.pdf", "%PDF-1.4", http.StatusUnsupportedMediaType, "FILE004"},
		{"unrecognizable content", map[string]string{"owner_id": "o"}, "upload", "just some prose", http.StatusUnsupportedMediaType, "FILE004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(uploadRequest(t, tt.fields, tt.filename, tt.content))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.code, resp.Code)
			}
			assert.Empty(t, env.imports.jobs)
		})
	}
}

func TestCreateImport_Busy(t *testing.T) {
	env := newTestEnv(t)
	env.imports.err = core.ErrTooManyImports

	rec := env.do(uploadRequest(t, map[string]string{"owner_id": "o", "import_id": "imp-2"}, "students.csv", sampleCSV))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "RUN002", resp.Code)

	_, err := os.Stat(filepath.Join(env.cfg.Import.UploadDir, "imp-2.csv"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "rejected upload should be removed")
}

func TestProgress(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.progress.Set(context.Background(), progress.Snapshot{
		ImportID:  "imp-1",
		Status:    "processing",
		Processed: 3,
		Total:     10,
		Percent:   30,
	}))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/imports/imp-1/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap progress.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "processing", snap.Status)
	assert.Equal(t, 30, snap.Percent)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/imports/missing/progress", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "RUN003", resp.Code)
}

func TestGetAndListImports(t *testing.T) {
	env := newTestEnv(t)
	run := core.NewImportRun(core.Job{ImportID: "imp-1", FileName: "students.csv", OwnerID: "owner-1"}, time.Now())
	run.Status = core.StatusCompleted
	env.runs.runs[run.ID] = run

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/imports/imp-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
	assert.NotContains(t, rec.Body.String(), "file_path")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/imports/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/imports?owner_id=owner-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Imports []core.ImportRun `json:"imports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Imports, 1)
	assert.Equal(t, "imp-1", list.Imports[0].ID)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/imports?owner_id=owner-1&limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusPage(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.progress.Set(context.Background(), progress.Snapshot{
		ImportID: "imp-1",
		Status:   "completed_with_errors",
		Message:  "Imported 1 rows, 1 rejected",
		Errors:   []progress.ErrorItem{{Row: 4, Reason: "semester: <script>"}},
		Summary:  map[string]int{"students_created": 1},
	}))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/imports/imp-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "Completed with errors")
	assert.Contains(t, body, "students_created")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, `http-equiv="refresh"`)
}

func TestStatusPage_FallsBackToPersistedRun(t *testing.T) {
	env := newTestEnv(t)
	run := core.NewImportRun(core.Job{ImportID: "imp-9", OwnerID: "o"}, time.Now())
	run.Status = core.StatusFailed
	run.LastError = "The import file was not found (Code: FILE001)."
	env.runs.runs[run.ID] = run

	rec := env.do(httptest.NewRequest(http.MethodGet, "/imports/imp-9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE001")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/imports/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "RUN003"))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"max_concurrent":4`)

	env.server.deps.Ping = func(context.Context) error { return errors.New("connection refused") }
	rec = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUploadRateLimit(t *testing.T) {
	limit, err := NewUploadLimit(config.RateLimitConfig{Enabled: true, UploadLimit: 1}, nil)
	require.NoError(t, err)
	require.NotNil(t, limit)

	env := newTestEnv(t)
	env.server = NewServer(env.cfg, Deps{
		Imports:     env.imports,
		Runs:        env.runs,
		Progress:    env.progress,
		UploadLimit: limit,
	})

	first := env.do(uploadRequest(t, map[string]string{"owner_id": "o", "import_id": "a"}, "a.csv", sampleCSV))
	assert.Equal(t, http.StatusAccepted, first.Code)

	second := env.do(uploadRequest(t, map[string]string{"owner_id": "o", "import_id": "b"}, "b.csv", sampleCSV))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE001")

	disabled, err := NewUploadLimit(config.RateLimitConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, disabled)
}

func TestQueueStatus(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/queue", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status core.RunLimiterStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 4, status.MaxConcurrent)
	assert.Equal(t, 4, status.Available)
}
