package tabular

import "testing"

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{`="00123"`, "00123"},
		{`"quoted"`, "quoted"},
		{`'single'`, "single"},
		{"O'Brien", "O'Brien"},
		{`"`, `"`},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Matric Number", "matric_number"},
		{" matric-number ", "matric_number"},
		{"MATRIC_NUMBER", "matric_number"},
		{"Examiner 1 Staff No.", "examiner_1_staff_no"},
		{"\ufeffTitle", "title"},
		{"a  -  b", "a_b"},
	}

	for _, tt := range tests {
		if got := NormalizeHeader(tt.in); got != tt.want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"csv", "csv"},
		{".XLSX", "xlsx"},
		{"text/csv; charset=utf-8", "csv"},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"},
		{"application/vnd.ms-excel", "xls"},
		{"pdf", "pdf"},
	}

	for _, tt := range tests {
		if got := NormalizeExtension(tt.in); got != tt.want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSniff_PlainText(t *testing.T) {
	if got := Sniff([]byte("just some prose without structure")); got != "" {
		t.Errorf("Sniff(prose) = %q, want empty", got)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	got := string(sanitizeUTF8([]byte("caf\xe9")))
	if got != "caf\uFFFD" {
		t.Errorf("sanitizeUTF8 = %q", got)
	}
}
