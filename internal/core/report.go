package core

import (
	"errors"
	"fmt"
	"time"
)

// FailureSummary is the serializable form of a RowError.
type FailureSummary struct {
	Row      int    `json:"row"` // one-based, as shown in a spreadsheet
	Filename string `json:"filename"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason,omitempty"`
}

// BatchReport accounts for every source row of one batch.
type BatchReport struct {
	BatchID  string        `json:"batch_id"`
	Sheet    string        `json:"sheet"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	TotalRows   int `json:"total_rows"`
	DroppedRows int `json:"dropped_rows"` // URL cell absent or blank
	Prepared    int `json:"prepared"`
	Renamed     int `json:"renamed"` // disambiguated by the deriver

	Generated        int `json:"generated"`
	Problematic      int `json:"problematic"`
	BlankURL         int `json:"blank_url"`
	EncodingFailures int `json:"encoding_failures"`
	RenderFailures   int `json:"render_failures"`
	Cancelled        int `json:"cancelled"`
	NonURLPayloads   int `json:"non_url_payloads"`

	Packed         int  `json:"packed"`
	PackRenamed    int  `json:"pack_renamed"`
	PackSkipped    int  `json:"pack_skipped"` // placeholder names caught at packing
	PackFailures   int  `json:"pack_failures"`
	ArchiveBytes   int  `json:"archive_bytes"`
	ArchiveChecked bool `json:"archive_checked"`

	Duplicates []DuplicateName  `json:"duplicates,omitempty"`
	Failures   []FailureSummary `json:"failures,omitempty"`

	ArchiveLocation    string `json:"archive_location,omitempty"`
	ArchiveExportError string `json:"archive_export_error,omitempty"`
}

// NotGenerated is the number of source rows that produced no code. It equals
// DroppedRows plus every generation failure.
func (r *BatchReport) NotGenerated() int {
	return r.TotalRows - r.Generated
}

// Discrepancy is the number of source rows missing from the archive.
func (r *BatchReport) Discrepancy() int {
	return r.TotalRows - r.Packed
}

// Summary is a one-line human description of the batch.
func (r *BatchReport) Summary() string {
	s := fmt.Sprintf("Generated %d of %d rows, packed %d", r.Generated, r.TotalRows, r.Packed)
	if d := r.Discrepancy(); d > 0 {
		s += fmt.Sprintf(" (%d missing: %d without URL, %d placeholder names, %d encoding, %d render",
			d, r.DroppedRows, r.Problematic+r.PackSkipped, r.EncodingFailures, r.RenderFailures)
		if r.BlankURL+r.Cancelled+r.PackFailures > 0 {
			s += fmt.Sprintf(", %d other", r.BlankURL+r.Cancelled+r.PackFailures)
		}
		s += ")"
	}
	return s
}

func (r *BatchReport) addDerive(d *DeriveResult) {
	r.DroppedRows = d.Dropped
	r.Prepared = len(d.Rows)
	r.Renamed = d.Renamed()
	r.Duplicates = d.Duplicates
}

func (r *BatchReport) addGenerate(g *GenerateResult) {
	r.Generated = len(g.Codes)
	r.NonURLPayloads = g.NonURLPayloads
	for _, f := range g.Failures {
		switch f.Kind {
		case ErrProblematicName:
			r.Problematic++
		case ErrBlankURL:
			r.BlankURL++
		case ErrEncoding:
			r.EncodingFailures++
		case ErrRender:
			r.RenderFailures++
		case ErrCancelled:
			r.Cancelled++
		}
		r.Failures = append(r.Failures, summarize(f))
	}
}

func (r *BatchReport) addArchive(a *Archive) {
	r.Packed = a.Stored()
	r.PackRenamed = a.Renamed()
	r.ArchiveBytes = len(a.Data)
	for _, s := range a.Skipped {
		if errors.Is(s, ErrProblematicName) {
			r.PackSkipped++
		} else {
			r.PackFailures++
		}
		r.Failures = append(r.Failures, summarize(s))
	}
}

func summarize(e *RowError) FailureSummary {
	fs := FailureSummary{Row: e.Row + 1, Filename: e.Filename, Kind: e.Kind.Error()}
	if e.Err != nil {
		fs.Reason = e.Err.Error()
	}
	return fs
}
