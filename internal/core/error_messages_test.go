package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/studentimport/internal/tabular"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "file not found",
			err:      fmt.Errorf("read roster.csv: %w", &tabular.FileNotFoundError{Path: "/tmp/roster.csv"}),
			wantCode: "FILE001",
		},
		{
			name:     "file unreadable",
			err:      &tabular.FileUnreadableError{Err: errors.New("zip: not a valid zip file")},
			wantCode: "FILE002",
		},
		{
			name:     "header missing",
			err:      &tabular.HeaderMissingError{},
			wantCode: "FILE003",
		},
		{
			name:     "unsupported format",
			err:      &tabular.UnsupportedFormatError{Extension: "pdf"},
			wantCode: "FILE004",
		},
		{
			name:     "file too large text",
			err:      errors.New("file too large: 80MB exceeds limit"),
			wantCode: "FILE005",
		},
		{
			name:     "attempt deadline",
			err:      fmt.Errorf("row 12: %w", context.DeadlineExceeded),
			wantCode: "RUN001",
		},
		{
			name:     "deadline text wins over generic timeout",
			err:      errors.New("context deadline exceeded (timeout)"),
			wantCode: "RUN001",
		},
		{
			name:     "too many imports",
			err:      ErrTooManyImports,
			wantCode: "RUN002",
		},
		{
			name:     "run not found",
			err:      fmt.Errorf("%w: abc", ErrRunNotFound),
			wantCode: "RUN003",
		},
		{
			name:     "pg unique violation",
			err:      fmt.Errorf("insert student: %w", &pgconn.PgError{Code: "23505", Message: "boom"}),
			wantCode: "DB001",
		},
		{
			name:     "pg foreign key violation",
			err:      &pgconn.PgError{Code: "23503"},
			wantCode: "DB003",
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp: connection refused"),
			wantCode: "DB004",
		},
		{
			name:     "case insensitive matching",
			err:      errors.New("DUPLICATE KEY value violates"),
			wantCode: "DB001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(&tabular.HeaderMissingError{})

	expected := "The column header row is missing (Code: FILE003). Keep the title in row 1 and put the column names in row 2"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", errors.New("duplicate key"), true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := errors.New("duplicate key value")
		userErr := NewUserError(techErr)

		if userErr.Error() != "A record with this key already exists" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, techErr) {
			t.Error("Unwrap() should return original error")
		}
	})
}
