package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/JonMunkholm/studentimport/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, snap progress.Snapshot, terminal bool) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, ImportStatus(snap, terminal).Render(context.Background(), &buf))
	return buf.String()
}

func TestImportStatus_Running(t *testing.T) {
	body := render(t, progress.Snapshot{
		ImportID:  "imp-1",
		Status:    "processing",
		Message:   "Processing row 2 of 4",
		Processed: 2,
		Total:     4,
		Percent:   50,
	}, false)

	assert.Contains(t, body, `<meta http-equiv="refresh" content="2">`)
	assert.Contains(t, body, `data-status="processing"`)
	assert.Contains(t, body, "<strong>Processing</strong>")
	assert.Contains(t, body, `<progress max="100" value="50"></progress> 2 of 4 rows (50%)`)
	assert.NotContains(t, body, "Summary")
	assert.NotContains(t, body, "Rejected rows")
}

func TestImportStatus_Finished(t *testing.T) {
	body := render(t, progress.Snapshot{
		ImportID: "imp-1",
		Status:   "completed_with_errors",
		Errors:   []progress.ErrorItem{{Row: 7, Reason: `name "<b>"`}},
		Summary:  map[string]int{"students_updated": 2, "programs_created": 1},
	}, true)

	assert.NotContains(t, body, "http-equiv")
	assert.Contains(t, body, "Completed with errors")
	assert.Contains(t, body, "Rejected rows (1)")
	assert.Contains(t, body, "<td>7</td><td>name &#34;&lt;b&gt;&#34;</td>")
	assert.Less(t, bytes.Index([]byte(body), []byte("programs_created")), bytes.Index([]byte(body), []byte("students_updated")))
}
