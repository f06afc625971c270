package tabular

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is classification of input failures.
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrFileUnreadable    = errors.New("file unreadable")
	ErrHeaderMissing     = errors.New("header row missing")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// FileNotFoundError reports that the source path does not exist.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

func (e *FileNotFoundError) Unwrap() error        { return e.Err }
func (e *FileNotFoundError) Is(target error) bool { return target == ErrFileNotFound }

// FileUnreadableError reports that the source exists but could not be decoded.
type FileUnreadableError struct {
	Path string
	Err  error
}

func (e *FileUnreadableError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("file unreadable: %v", e.Err)
	}
	return fmt.Sprintf("file unreadable: %s: %v", e.Path, e.Err)
}

func (e *FileUnreadableError) Unwrap() error        { return e.Err }
func (e *FileUnreadableError) Is(target error) bool { return target == ErrFileUnreadable }

// HeaderMissingError reports that the column-name row (row 2) is absent or blank.
type HeaderMissingError struct {
	Path string
}

func (e *HeaderMissingError) Error() string {
	if e.Path == "" {
		return "header row missing: expected column names in row 2"
	}
	return fmt.Sprintf("header row missing in %s: expected column names in row 2", e.Path)
}

func (e *HeaderMissingError) Is(target error) bool { return target == ErrHeaderMissing }

// UnsupportedFormatError reports a declared extension with no decoder.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q (expected csv, xlsx or xls)", e.Extension)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// IsInputError reports whether err originates from reading the source file.
func IsInputError(err error) bool {
	return errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrFileUnreadable) ||
		errors.Is(err, ErrHeaderMissing) ||
		errors.Is(err, ErrUnsupportedFormat)
}
