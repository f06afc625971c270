package tabular

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CleanCell removes common spreadsheet artifacts from a cell value:
//   - Trims whitespace
//   - Removes the Excel text-formula wrapper (="...")
//   - Removes one pair of matching surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			s = s[1 : len(s)-1]
		}
	}

	return strings.TrimSpace(s)
}

// NormalizeHeader maps a raw header cell to its column name.
// "Matric Number", " matric-number " and "MATRIC_NUMBER" all become "matric_number".
func NormalizeHeader(s string) string {
	s = strings.ToLower(CleanCell(strings.TrimPrefix(s, "\ufeff")))
	s = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the replacement
// character so that legacy-encoded exports still decode.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isBlankRow(cells []string) bool {
	for _, v := range cells {
		if CleanCell(v) != "" {
			return false
		}
	}
	return true
}
