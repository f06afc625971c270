package core

// error_messages.go maps technical errors to user-facing messages with codes.
//
// # Error Codes Reference
//
// When users encounter errors, they can quote the code to support staff.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File not found: The uploaded file is no longer available
//	FILE002 - File unreadable: The file could not be decoded
//	FILE003 - Header missing: Row 2 must hold the column names
//	FILE004 - Unsupported format: Only csv, xlsx and xls are accepted
//	FILE005 - File too large: File exceeds the upload size limit
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB002 - Unique constraint
//	DB003 - Foreign key
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Attempt timed out: The import exceeded its time budget
//	RUN002 - System busy: Too many imports in progress
//	RUN003 - Not found: No import with this ID (or its status expired)
//	RUN004 - Interrupted: The import was cancelled by shutdown
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original error.
//
// # Matching
//
// Typed errors are classified first (input errors, context errors and
// PostgreSQL SQLSTATE codes). Anything else is matched case-insensitively
// with strings.Contains against errorPatterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/studentimport/internal/tabular"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileNotFound = UserMessage{
		Message: "The import file could not be found",
		Action:  "Upload the file again",
		Code:    "FILE001",
	}
	msgFileUnreadable = UserMessage{
		Message: "The import file could not be read",
		Action:  "Save the spreadsheet as .xlsx or UTF-8 .csv and upload it again",
		Code:    "FILE002",
	}
	msgHeaderMissing = UserMessage{
		Message: "The column header row is missing",
		Action:  "Keep the title in row 1 and put the column names in row 2",
		Code:    "FILE003",
	}
	msgUnsupportedFormat = UserMessage{
		Message: "This file type is not supported",
		Action:  "Upload a .csv, .xlsx or .xls file",
		Code:    "FILE004",
	}
	msgDuplicateKey = UserMessage{
		Message: "A record with this key already exists",
		Action:  "Check the file for duplicate keys and try again",
		Code:    "DB001",
	}
	msgForeignKey = UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Ensure referenced programs and lecturers exist",
		Code:    "DB003",
	}
	msgDeadlock = UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}
	msgAttemptTimeout = UserMessage{
		Message: "The import took too long and was stopped",
		Action:  "Split the file into smaller parts or try again later",
		Code:    "RUN001",
	}
	msgInterrupted = UserMessage{
		Message: "The import was interrupted",
		Action:  "Upload the file again",
		Code:    "RUN004",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// More specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{pattern: "file not found", msg: msgFileNotFound},
	{pattern: "file unreadable", msg: msgFileUnreadable},
	{pattern: "header row missing", msg: msgHeaderMissing},
	{pattern: "unsupported file format", msg: msgUnsupportedFormat},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE005",
		},
	},
	{pattern: "context deadline exceeded", msg: msgAttemptTimeout},
	{pattern: "context canceled", msg: msgInterrupted},
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "Import not found",
			Action:  "The import may have expired. Check the import ID",
			Code:    "RUN003",
		},
	},
	{
		pattern: "progress not found",
		msg: UserMessage{
			Message: "Import not found",
			Action:  "The import may have expired. Check the import ID",
			Code:    "RUN003",
		},
	},
	{pattern: "duplicate key", msg: msgDuplicateKey},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check the file for duplicate entries",
			Code:    "DB002",
		},
	},
	{pattern: "foreign key", msg: msgForeignKey},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{pattern: "deadlock", msg: msgDeadlock},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(&tabular.HeaderMissingError{})
//	// msg.Code == "FILE003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, tabular.ErrFileNotFound):
		return msgFileNotFound
	case errors.Is(err, tabular.ErrFileUnreadable):
		return msgFileUnreadable
	case errors.Is(err, tabular.ErrHeaderMissing):
		return msgHeaderMissing
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		return msgUnsupportedFormat
	case errors.Is(err, context.DeadlineExceeded):
		return msgAttemptTimeout
	case errors.Is(err, context.Canceled):
		return msgInterrupted
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return msgDuplicateKey
		case "23503":
			return msgForeignKey
		case "40P01":
			return msgDeadlock
		case "57014":
			return msgAttemptTimeout
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err; returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
