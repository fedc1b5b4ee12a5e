package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sheetqr/internal/logging"
	"github.com/google/uuid"
)

// Pipeline runs one batch end to end: validate, derive filenames, render,
// pack and reconcile.
type Pipeline struct {
	Renderer Renderer
	Workers  int
	Logger   *slog.Logger
}

// BatchResult is everything a batch produced.
type BatchResult struct {
	Report   *BatchReport
	Prepared []PreparedRow
	Codes    []GeneratedCode
	Archive  *Archive
}

// Run processes rs. Invalid settings fail before any rendering. When ctx is
// cancelled during rendering, Run returns the partial result without an
// archive together with ctx's error.
func (p *Pipeline) Run(ctx context.Context, rs *RowSet, fspec FilenameSpec, rspec RenderSpec) (*BatchResult, error) {
	if err := ValidateFilenameSpec(rs, fspec); err != nil {
		return nil, err
	}
	if err := rspec.Validate(); err != nil {
		return nil, err
	}

	report := &BatchReport{
		BatchID:   uuid.NewString(),
		Sheet:     rs.Name(),
		Started:   time.Now(),
		TotalRows: rs.Len(),
	}

	logger := logging.OrDiscard(p.Logger)
	logger = logger.With("batch", report.BatchID, "sheet", rs.Name())
	logger.Info("batch started",
		"rows", rs.Len(),
		"url_column", fspec.URLColumn,
		"filename_columns", fspec.Columns,
		"module_size", rspec.ModuleSize,
		"border", rspec.Border,
		"output_resolution", rspec.OutputResolution,
	)

	derived, err := Derive(rs, fspec, logger)
	if err != nil {
		return nil, err
	}
	report.addDerive(derived)

	gen := &Generator{Renderer: p.Renderer, Workers: p.Workers, Logger: logger}
	generated, err := gen.Generate(ctx, derived.Rows, rspec)
	if generated != nil {
		report.addGenerate(generated)
	}
	result := &BatchResult{Report: report, Prepared: derived.Rows}
	if generated != nil {
		result.Codes = generated.Codes
	}
	if err != nil {
		report.Duration = time.Since(report.Started)
		logger.Warn("batch stopped", "error", err, "generated", report.Generated)
		return result, err
	}

	archive, err := (&Packager{Logger: logger}).Pack(generated.Codes)
	if err != nil {
		return result, err
	}
	report.addArchive(archive)
	result.Archive = archive

	if err := archive.Verify(); err != nil {
		logger.Error("archive does not match packing record", "error", err)
	} else {
		report.ArchiveChecked = true
	}

	report.Duration = time.Since(report.Started)
	logger.Info("batch finished",
		"total", report.TotalRows,
		"generated", report.Generated,
		"packed", report.Packed,
		"discrepancy", report.Discrepancy(),
		"duration", report.Duration,
	)
	if report.Discrepancy() > 0 {
		logger.Warn(report.Summary())
	}

	return result, nil
}
