// Package tabular decodes CSV and Excel spreadsheets into header-aligned
// records.
//
// Every input carries two header rows: row 1 is a section title and is
// discarded, row 2 holds the column names. Data starts at row 3. Rows
// that are blank after trimming are skipped and never produce a Record.
package tabular

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// headerRow is the source row holding column names; everything above it is title.
const headerRow = 2

// ReadFile decodes the file at path using the decoder for ext.
// Missing and unreadable files fail before any row is produced.
func ReadFile(path, ext string) ([]Record, error) {
	return ReadFileContext(context.Background(), path, ext)
}

// ReadFileContext is ReadFile that stops reading once ctx is done and
// returns ctx's error.
func ReadFileContext(ctx context.Context, path, ext string) ([]Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: path, Err: err}
		}
		return nil, &FileUnreadableError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &FileUnreadableError{Path: path, Err: errors.New("path is a directory")}
	}

	dec, err := DecoderFor(ext)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &FileUnreadableError{Path: path, Err: err}
	}
	defer f.Close()

	return decode(ctx, dec, f, path)
}

// Read decodes r using the decoder for ext.
func Read(r io.Reader, ext string) ([]Record, error) {
	dec, err := DecoderFor(ext)
	if err != nil {
		return nil, err
	}
	return decode(context.Background(), dec, r, "")
}

func decode(ctx context.Context, dec Decoder, r io.Reader, path string) ([]Record, error) {
	rows, err := dec.Decode(contextReader{ctx: ctx, r: r})
	if cerr := ctx.Err(); cerr != nil {
		return nil, fmt.Errorf("read %s: %w", path, cerr)
	}
	if err != nil {
		return nil, &FileUnreadableError{Path: path, Err: err}
	}
	return buildRecords(rows, path)
}

// contextReader fails every Read once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func buildRecords(rows []RawRow, path string) ([]Record, error) {
	var header *Header
	records := make([]Record, 0, len(rows))

	for _, row := range rows {
		switch {
		case row.Number < headerRow:
			continue
		case row.Number == headerRow:
			if isBlankRow(row.Cells) {
				return nil, &HeaderMissingError{Path: path}
			}
			header = NewHeader(row.Cells)
			continue
		}

		if header == nil {
			return nil, &HeaderMissingError{Path: path}
		}
		if isBlankRow(row.Cells) {
			continue
		}
		records = append(records, NewRecord(row.Number, header, row.Cells))
	}

	if header == nil {
		return nil, &HeaderMissingError{Path: path}
	}
	return records, nil
}
