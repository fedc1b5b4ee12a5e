package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetqr/internal/logging"
	"github.com/xuri/excelize/v2"
)

// delimitedSheetName is the single sheet name given to CSV input.
const delimitedSheetName = "Sheet1"

// DetectFormat maps a file extension to the family it is read as.
func DetectFormat(fileName string) (SourceFormat, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm", ".xls":
		return FormatSpreadsheet, nil
	case ".csv":
		return FormatDelimited, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// Loader reads spreadsheet and CSV files into a Workbook.
type Loader struct {
	// MaxFileSize caps the bytes read from the source; zero means no cap.
	MaxFileSize int64
	Logger      *slog.Logger
}

// LoadFile opens path and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return l.Load(ctx, filepath.Base(path), f)
}

// Load reads every sheet of the file. Sheets without data rows are left
// out, so the returned Workbook may hold zero sheets; callers decide whether
// that is an error.
func (l *Loader) Load(ctx context.Context, fileName string, r io.Reader) (*Workbook, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}

	logger := logging.OrDiscard(l.Logger).With("file", fileName, "format", format)
	src := NewLimitedReader(r, l.MaxFileSize)

	var sheets []*RowSet
	switch format {
	case FormatSpreadsheet:
		sheets, err = l.loadSpreadsheet(ctx, fileName, src, logger)
	default:
		sheets, err = l.loadDelimited(src, logger)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("workbook loaded", "sheets", len(sheets), "bytes", src.N)
	return &Workbook{FileName: fileName, Format: format, sheets: sheets}, nil
}

func (l *Loader) loadSpreadsheet(ctx context.Context, fileName string, r io.Reader, logger *slog.Logger) ([]*RowSet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		if strings.EqualFold(filepath.Ext(fileName), ".xls") {
			return nil, fmt.Errorf("%w: legacy .xls workbooks must be re-saved as .xlsx: %v", ErrParse, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer f.Close()

	var sheets []*RowSet
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrParse, name, err)
		}

		rs, err := buildRowSet(name, records)
		if err != nil {
			return nil, err
		}
		if rs == nil {
			logger.Debug("sheet skipped, no data rows", "sheet", name)
			continue
		}
		sheets = append(sheets, rs)
	}
	return sheets, nil
}

func (l *Loader) loadDelimited(r io.Reader, logger *slog.Logger) ([]*RowSet, error) {
	cr := csv.NewReader(WrapDelimited(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	rs, err := buildRowSet(delimitedSheetName, records)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		logger.Debug("delimited file has no data rows")
		return nil, nil
	}
	return []*RowSet{rs}, nil
}

// buildRowSet turns raw records into a RowSet. The first non-empty record is
// the header. It returns nil when there are no data rows.
func buildRowSet(name string, records [][]string) (*RowSet, error) {
	start := 0
	for start < len(records) && isEmptyRecord(records[start]) {
		start++
	}
	if start >= len(records) {
		return nil, nil
	}

	width := 0
	for _, rec := range records[start:] {
		width = max(width, len(rec))
	}

	columns := headerNames(records[start], width)

	var rows [][]Cell
	for _, rec := range records[start+1:] {
		if isEmptyRecord(rec) {
			continue
		}
		row := make([]Cell, width)
		for i, raw := range rec {
			row[i] = ParseCell(raw)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return NewRowSet(name, columns, rows)
}

func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if v != "" {
			return false
		}
	}
	return true
}

// headerNames trims header cells, names blank headers "Unnamed: <i>" and
// suffixes repeated names with ".1", ".2" in order of appearance.
func headerNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]bool, width)

	for i := 0; i < width; i++ {
		base := ""
		if i < len(header) {
			base = strings.TrimSpace(header[i])
		}
		if base == "" {
			base = "Unnamed: " + strconv.Itoa(i)
		}

		name := base
		for n := 1; seen[name]; n++ {
			name = base + "." + strconv.Itoa(n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
