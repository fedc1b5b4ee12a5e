package core

import (
	"fmt"
	"strings"
	"time"
)

// CellKind is the presence state of a cell.
type CellKind uint8

const (
	// CellAbsent is a cell with no value: an empty CSV field, a cell missing
	// from a spreadsheet row, or a recognised not-available marker.
	CellAbsent CellKind = iota
	// CellBlank is a cell holding only whitespace.
	CellBlank
	// CellPresent is a cell with visible content.
	CellPresent
)

func (k CellKind) String() string {
	switch k {
	case CellBlank:
		return "blank"
	case CellPresent:
		return "present"
	default:
		return "absent"
	}
}

// Cell is a scalar value as read from the source file. Text is the display
// string (numbers and booleans keep the formatting of the source).
type Cell struct {
	Kind CellKind
	Text string
}

// naMarkers are values spreadsheet tools and dataframe exports write for
// "not available". They are treated as absent at load time so no later stage
// has to recognise them by substring.
var naMarkers = map[string]bool{
	"#N/A": true, "N/A": true, "n/a": true, "<NA>": true,
	"NaN": true, "nan": true, "-nan": true, "-NaN": true,
	"NULL": true, "null": true,
}

// ParseCell classifies raw cell text into the three presence states.
func ParseCell(raw string) Cell {
	if raw == "" {
		return Cell{Kind: CellAbsent}
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Cell{Kind: CellBlank, Text: raw}
	}
	if naMarkers[trimmed] {
		return Cell{Kind: CellAbsent}
	}
	return Cell{Kind: CellPresent, Text: raw}
}

// RowSet is an immutable, ordered table read from one sheet.
type RowSet struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]Cell
}

// NewRowSet builds a RowSet. Column names must be unique; rows shorter than
// the header are padded with absent cells and longer rows are truncated.
func NewRowSet(name string, columns []string, rows [][]Cell) (*RowSet, error) {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, dup := index[col]; dup {
			return nil, fmt.Errorf("duplicate column %q in sheet %q", col, name)
		}
		index[col] = i
	}

	normalized := make([][]Cell, len(rows))
	for i, row := range rows {
		r := make([]Cell, len(columns))
		copy(r, row)
		normalized[i] = r
	}

	return &RowSet{
		name:    name,
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    normalized,
	}, nil
}

// Name returns the sheet or source name.
func (rs *RowSet) Name() string { return rs.name }

// Columns returns a copy of the column names in source order.
func (rs *RowSet) Columns() []string { return append([]string(nil), rs.columns...) }

// Len returns the number of data rows.
func (rs *RowSet) Len() int { return len(rs.rows) }

// HasColumn reports whether the column exists.
func (rs *RowSet) HasColumn(name string) bool {
	_, ok := rs.index[name]
	return ok
}

// Cell returns the cell at row i in the named column.
func (rs *RowSet) Cell(i int, column string) (Cell, bool) {
	col, ok := rs.index[column]
	if !ok || i < 0 || i >= len(rs.rows) {
		return Cell{}, false
	}
	return rs.rows[i][col], true
}

// Row returns a copy of row i keyed by column name.
func (rs *RowSet) Row(i int) map[string]Cell {
	out := make(map[string]Cell, len(rs.columns))
	for col, pos := range rs.index {
		out[col] = rs.rows[i][pos]
	}
	return out
}

func (rs *RowSet) at(i, col int) Cell { return rs.rows[i][col] }

// Workbook is the Loader's output: the non-empty sheets of one file, in
// source order.
type Workbook struct {
	FileName string
	Format   SourceFormat
	sheets   []*RowSet
}

// SourceFormat is the family a file was read as.
type SourceFormat string

const (
	FormatSpreadsheet SourceFormat = "spreadsheet"
	FormatDelimited   SourceFormat = "delimited"
)

// SheetNames returns sheet names in source order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.sheets))
	for i, s := range w.sheets {
		names[i] = s.name
	}
	return names
}

// Sheet returns the named sheet.
func (w *Workbook) Sheet(name string) (*RowSet, bool) {
	for _, s := range w.sheets {
		if s.name == name {
			return s, true
		}
	}
	return nil, false
}

// Sheets returns all sheets in source order.
func (w *Workbook) Sheets() []*RowSet { return append([]*RowSet(nil), w.sheets...) }

// Len returns the number of non-empty sheets.
func (w *Workbook) Len() int { return len(w.sheets) }

// FilenameSpec is the operator's naming choice for a batch.
type FilenameSpec struct {
	URLColumn string   `json:"url_column"`
	Columns   []string `json:"filename_columns"`
	Separator string   `json:"filename_separator"`
}

// PreparedRow pairs a source URL with its final, collision-free filename.
type PreparedRow struct {
	Row       int    `json:"row"`       // zero-based index in the RowSet
	URL       string `json:"url"`       // trimmed URL text
	Candidate string `json:"candidate"` // sanitized name before duplicate resolution
	Filename  string `json:"filename"`  // final name, equal to Candidate unless it collided
}

// Disambiguated reports whether duplicate resolution renamed the row.
func (p PreparedRow) Disambiguated() bool { return p.Filename != p.Candidate }

// DuplicateName counts a candidate filename produced by more than one row.
type DuplicateName struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GeneratedCode is one rendered PNG and the name it is stored under.
type GeneratedCode struct {
	Row      int
	Filename string
	PNG      []byte
}

// ArchiveEntry records how a generated code was stored.
type ArchiveEntry struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Renamed bool   `json:"renamed"`
}

// Archive is the packed zip and the accounting needed to reconcile it.
type Archive struct {
	Data      []byte
	Entries   []ArchiveEntry
	Requested int
	Skipped   []*RowError
}

// Stored returns the number of entries written into the archive.
func (a *Archive) Stored() int { return len(a.Entries) }

// SheetSummary describes one loaded sheet for listing.
type SheetSummary struct {
	Name          string   `json:"name"`
	Rows          int      `json:"rows"`
	Columns       []string `json:"columns"`
	URLColumns    []string `json:"url_columns"`
	SuggestedURL  string   `json:"suggested_url_column,omitempty"`
	NeedsURLInput bool     `json:"needs_url_selection"`
}

// SessionSummary describes a loaded file.
type SessionSummary struct {
	ID       string         `json:"id"`
	FileName string         `json:"file_name"`
	Format   SourceFormat   `json:"format"`
	LoadedAt time.Time      `json:"loaded_at"`
	Sheets   []SheetSummary `json:"sheets"`
}
