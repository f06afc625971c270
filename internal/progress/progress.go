// Package progress holds the externally visible status of import runs.
//
// Writes are last-write-wins and entries expire after a fixed TTL.
// Readers must tolerate stale or missing snapshots.
package progress

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no snapshot exists for an import, or it expired.
var ErrNotFound = errors.New("progress not found")

// DefaultTTL is how long a snapshot stays readable after its last write.
const DefaultTTL = 24 * time.Hour

// ErrorItem is one row failure as shown to polling clients.
type ErrorItem struct {
	Row    int               `json:"row"`
	Reason string            `json:"reason"`
	Record map[string]string `json:"record,omitempty"`
}

// Snapshot is the polled view of one import.
type Snapshot struct {
	ImportID  string         `json:"import_id"`
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Processed int            `json:"processed"`
	Total     int            `json:"total"`
	Percent   int            `json:"percent"`
	Errors    []ErrorItem    `json:"errors"`
	Summary   map[string]int `json:"summary,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store publishes and reads snapshots keyed by import ID.
type Store interface {
	Set(ctx context.Context, s Snapshot) error
	Get(ctx context.Context, importID string) (Snapshot, error)
}

// Percent returns processed/total as a whole percentage in [0, 100].
func Percent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	p := processed * 100 / total
	if p > 100 {
		return 100
	}
	return p
}
