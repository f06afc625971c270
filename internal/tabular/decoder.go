package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// Supported extensions.
const (
	ExtCSV  = "csv"
	ExtXLSX = "xlsx"
	ExtXLS  = "xls"
)

// RawRow is one decoded source row before header alignment.
type RawRow struct {
	// Number is the 1-based row number as a spreadsheet program shows it,
	// not the physical line of a text file.
	Number int
	Cells  []string
}

// Decoder turns a file body into raw rows. Implementations must report
// row numbers so that blank source lines keep later rows aligned with
// what the user sees in a spreadsheet program.
type Decoder interface {
	Decode(r io.Reader) ([]RawRow, error)
}

// DecoderFor returns the decoder for a declared extension or MIME type.
func DecoderFor(ext string) (Decoder, error) {
	switch NormalizeExtension(ext) {
	case ExtCSV:
		return csvDecoder{}, nil
	case ExtXLSX, ExtXLS:
		return excelDecoder{}, nil
	default:
		return nil, &UnsupportedFormatError{Extension: ext}
	}
}

// NormalizeExtension lowercases ext, strips a leading dot and maps
// spreadsheet MIME types to their extension.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if i := strings.IndexByte(ext, ';'); i >= 0 {
		ext = strings.TrimSpace(ext[:i])
	}
	switch ext {
	case "text/csv", "application/csv", "text/comma-separated-values":
		return ExtCSV
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ExtXLSX
	case "application/vnd.ms-excel":
		return ExtXLS
	}
	return strings.TrimPrefix(ext, ".")
}

// Sniff infers a supported extension from file content.
// Returns "" when the content is not a recognizable spreadsheet.
func Sniff(data []byte) string {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		switch ext := NormalizeExtension(m.Extension()); ext {
		case ExtCSV, ExtXLSX, ExtXLS:
			return ext
		}
	}
	return ""
}

type csvDecoder struct{}

func (csvDecoder) Decode(r io.Reader) ([]RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		rows      []RawRow
		prevLine  int
		prevExtra int
	)
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}

		// Quoted cells may span several physical lines but occupy one
		// spreadsheet row. Blank lines between records still count.
		line, _ := cr.FieldPos(0)
		number := line
		if len(rows) > 0 {
			number = rows[len(rows)-1].Number + (line - prevLine) - prevExtra
		}
		rows = append(rows, RawRow{Number: number, Cells: cells})

		prevLine = line
		prevExtra = embeddedLines(cells)
	}
	return rows, nil
}

// embeddedLines counts the line breaks held inside quoted cells.
func embeddedLines(cells []string) int {
	n := 0
	for _, c := range cells {
		n += strings.Count(c, "\n")
	}
	return n
}

type excelDecoder struct{}

func (excelDecoder) Decode(r io.Reader) ([]RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	cells, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	rows := make([]RawRow, len(cells))
	for i, c := range cells {
		rows[i] = RawRow{Number: i + 1, Cells: c}
	}
	return rows, nil
}
