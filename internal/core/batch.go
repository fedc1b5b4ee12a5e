package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/sheetqr/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is used when a Generator has no positive worker count.
const DefaultWorkers = 4

// Generator renders prepared rows into PNG codes.
type Generator struct {
	Renderer Renderer
	Workers  int
	Logger   *slog.Logger
}

// GenerateResult holds the codes that rendered, in input order, and the rows
// that did not.
type GenerateResult struct {
	Input    int
	Codes    []GeneratedCode
	Failures []*RowError
	// NonURLPayloads counts rendered rows whose text has no http(s) scheme.
	NonURLPayloads int
}

// Count returns how many failures are of the given kind.
func (r *GenerateResult) Count(kind error) int {
	n := 0
	for _, f := range r.Failures {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

type rowOutcome struct {
	code   *GeneratedCode
	err    *RowError
	nonURL bool
}

// Generate renders every row, up to Workers at a time. A row that fails is
// recorded and skipped; it never stops the others. An invalid spec is
// rejected before any row is touched. If ctx is cancelled, rows not yet
// started are marked ErrCancelled and the partial result is returned with
// ctx's error.
func (g *Generator) Generate(ctx context.Context, rows []PreparedRow, spec RenderSpec) (*GenerateResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	logger := logging.OrDiscard(g.Logger)
	renderer := g.Renderer
	if renderer == nil {
		renderer = NewQRRenderer()
	}
	workers := g.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	outcomes := make([]rowOutcome, len(rows))
	started := make([]bool, len(rows))

	var eg errgroup.Group
	eg.SetLimit(workers)

	for i := range rows {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		eg.Go(func() error {
			outcomes[i] = g.renderRow(ctx, renderer, rows[i], spec, logger)
			return nil
		})
	}
	_ = eg.Wait()

	res := &GenerateResult{Input: len(rows)}
	for i, out := range outcomes {
		switch {
		case !started[i]:
			res.Failures = append(res.Failures, newRowError(rows[i].Row, rows[i].Filename, ErrCancelled, nil))
		case out.err != nil:
			res.Failures = append(res.Failures, out.err)
		case out.code != nil:
			res.Codes = append(res.Codes, *out.code)
			if out.nonURL {
				res.NonURLPayloads++
			}
		}
	}

	logger.Info("generation finished",
		"rows", len(rows),
		"generated", len(res.Codes),
		"failed", len(res.Failures),
		"non_url", res.NonURLPayloads,
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (g *Generator) renderRow(ctx context.Context, renderer Renderer, row PreparedRow, spec RenderSpec, logger *slog.Logger) (out rowOutcome) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("renderer panicked", "row", row.Row+1, "filename", row.Filename, "panic", p)
			out = rowOutcome{err: newRowError(row.Row, row.Filename, ErrRender, fmt.Errorf("panic: %v", p))}
		}
	}()

	if ctx.Err() != nil {
		return rowOutcome{err: newRowError(row.Row, row.Filename, ErrCancelled, ctx.Err())}
	}

	if IsProblematicName(row.Filename) {
		logger.Warn("skipping row with placeholder filename", "row", row.Row+1, "filename", row.Filename)
		return rowOutcome{err: newRowError(row.Row, row.Filename, ErrProblematicName, nil)}
	}

	text := strings.TrimSpace(row.URL)
	if text == "" {
		logger.Warn("skipping row with blank url", "row", row.Row+1, "filename", row.Filename)
		return rowOutcome{err: newRowError(row.Row, row.Filename, ErrBlankURL, nil)}
	}

	nonURL := !hasHTTPScheme(text)
	if nonURL {
		logger.Warn("encoding text without http(s) scheme", "row", row.Row+1, "filename", row.Filename)
	}

	data, err := RenderPNG(renderer, text, spec)
	if err != nil {
		kind := ErrRender
		if errors.Is(err, ErrEncoding) {
			kind = ErrEncoding
		}
		logger.Warn("row failed", "row", row.Row+1, "filename", row.Filename, "error", err)
		return rowOutcome{err: newRowError(row.Row, row.Filename, kind, err)}
	}

	logger.Debug("row rendered", "row", row.Row+1, "filename", row.Filename, "bytes", len(data))
	return rowOutcome{
		code:   &GeneratedCode{Row: row.Row, Filename: row.Filename, PNG: data},
		nonURL: nonURL,
	}
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
