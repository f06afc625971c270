package tabular

// Header is the normalized column-name row shared by every Record of a file.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader normalizes raw header cells. Blank names are kept positionally
// but cannot be looked up; on duplicates the first column wins.
func NewHeader(cells []string) *Header {
	h := &Header{
		names: make([]string, len(cells)),
		index: make(map[string]int, len(cells)),
	}
	for i, c := range cells {
		name := NormalizeHeader(c)
		h.names[i] = name
		if name == "" {
			continue
		}
		if _, dup := h.index[name]; !dup {
			h.index[name] = i
		}
	}
	return h
}

// Len returns the number of columns.
func (h *Header) Len() int { return len(h.names) }

// Names returns a copy of the column names in source order.
func (h *Header) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Has reports whether the header contains the named column.
func (h *Header) Has(name string) bool {
	_, ok := h.index[NormalizeHeader(name)]
	return ok
}

// Record is one data row zipped to the header. Values always has exactly
// as many entries as the header; short rows are padded with "" and long
// rows truncated.
type Record struct {
	// Row is the 1-based source row number. With the title and header
	// rows skipped, the first data row is 3.
	Row int

	header *Header
	values []string
}

// NewRecord aligns cells to header and cleans each value.
func NewRecord(row int, header *Header, cells []string) Record {
	values := make([]string, header.Len())
	for i := range values {
		if i < len(cells) {
			values[i] = CleanCell(cells[i])
		}
	}
	return Record{Row: row, header: header, values: values}
}

// Get returns the cleaned value of the named column, or "" when the
// column does not exist.
func (r Record) Get(name string) string {
	if r.header == nil {
		return ""
	}
	i, ok := r.header.index[NormalizeHeader(name)]
	if !ok {
		return ""
	}
	return r.values[i]
}

// Has reports whether the record's header contains the named column.
func (r Record) Has(name string) bool {
	return r.header != nil && r.header.Has(name)
}

// Headers returns the normalized column names.
func (r Record) Headers() []string {
	if r.header == nil {
		return nil
	}
	return r.header.Names()
}

// Values returns a copy of the aligned cell values.
func (r Record) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// Map returns column name to value for diagnostics. Unnamed columns are omitted.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	if r.header == nil {
		return m
	}
	for i, name := range r.header.names {
		if name == "" {
			continue
		}
		if _, seen := m[name]; seen {
			continue
		}
		m[name] = r.values[i]
	}
	return m
}
