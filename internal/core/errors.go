package core

import (
	"errors"
	"fmt"
)

// Fatal errors stop a Loader call or a batch before any output is produced.
var (
	// ErrUnsupportedFormat is returned for extensions outside the spreadsheet
	// and delimited-text families.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrParse wraps malformed spreadsheet or CSV content.
	ErrParse = errors.New("could not parse file")

	// ErrEmptyWorkbook is returned when no sheet of a loaded file has data rows.
	ErrEmptyWorkbook = errors.New("empty workbook: no sheet has data rows")

	// ErrInvalidFilenameSpec rejects a separator with reserved characters, an
	// unknown column, or a sampled filename longer than MaxFilenameLength.
	ErrInvalidFilenameSpec = errors.New("invalid filename spec")

	// ErrInvalidRenderSpec rejects module size, border or resolution outside
	// their ranges.
	ErrInvalidRenderSpec = errors.New("invalid render settings")

	// ErrSheetNotFound is returned when a named sheet is not in the workbook.
	ErrSheetNotFound = errors.New("sheet not found")
)

// Row errors are isolated: they drop a single row and are counted in the
// batch report.
var (
	// ErrEncoding means the text does not fit in any QR symbol version.
	ErrEncoding = errors.New("cannot encode text as QR code")

	// ErrRender covers raster creation, resize and PNG encoding failures.
	ErrRender = errors.New("qr render failed")

	// ErrPackaging means an entry could not be written into the archive.
	ErrPackaging = errors.New("cannot package archive entry")

	// ErrProblematicName marks filenames that still carry placeholder pairs
	// such as missing_missing, which point at broken source data.
	ErrProblematicName = errors.New("problematic filename")

	// ErrBlankURL marks a prepared row whose URL is empty after trimming.
	ErrBlankURL = errors.New("blank url")

	// ErrCancelled marks rows never started because the batch was cancelled.
	ErrCancelled = errors.New("batch cancelled before row started")
)

// Session and admission errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCodeNotFound    = errors.New("code not found")
	ErrNoBatch         = errors.New("no batch has been generated for this session")
)

// RowError records why a single row produced no output.
type RowError struct {
	Row      int    // zero-based row index in the source RowSet
	Filename string // candidate filename at the point of failure
	Kind     error  // one of the row error sentinels
	Err      error  // underlying cause, may be nil
}

func (e *RowError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("row %d (%s): %v", e.Row+1, e.Filename, e.Kind)
	}
	return fmt.Sprintf("row %d (%s): %v: %v", e.Row+1, e.Filename, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *RowError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newRowError(row int, filename string, kind, err error) *RowError {
	return &RowError{Row: row, Filename: filename, Kind: kind, Err: err}
}

// specError wraps ErrInvalidFilenameSpec with a human-readable reason.
func specError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilenameSpec, fmt.Sprintf(format, args...))
}
