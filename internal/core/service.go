package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/sheetqr/internal/logging"
)

// ArchiveStore receives a copy of every packed archive.
type ArchiveStore interface {
	// Put uploads data under key and returns a location string for the report.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	MaxFileSize          int64
	MaxSessions          int
	MaxConcurrentBatches int
	MaxWaitTime          time.Duration
	BatchTimeout         time.Duration
	Workers              int
	SampleRows           int
	DefaultRender        RenderSpec

	// Store is optional; when nil archives stay in memory only.
	Store    ArchiveStore
	Renderer Renderer
}

// Service ties loading, batches and sessions together for the HTTP layer.
type Service struct {
	opts     ServiceOptions
	sessions *SessionStore
	limiter  *BatchLimiter
}

// NewService creates a Service.
func NewService(opts ServiceOptions) (*Service, error) {
	sessions, err := NewSessionStore(opts.MaxSessions)
	if err != nil {
		return nil, err
	}
	if opts.DefaultRender == (RenderSpec{}) {
		opts.DefaultRender = DefaultRenderSpec()
	}
	if err := opts.DefaultRender.Validate(); err != nil {
		return nil, fmt.Errorf("default render settings: %w", err)
	}
	if opts.Renderer == nil {
		opts.Renderer = NewQRRenderer()
	}

	return &Service{
		opts:     opts,
		sessions: sessions,
		limiter:  NewBatchLimiter(opts.MaxConcurrentBatches, opts.MaxWaitTime),
	}, nil
}

// DefaultRenderSpec returns the configured render defaults.
func (s *Service) DefaultRenderSpec() RenderSpec {
	return s.opts.DefaultRender
}

// LoadWorkbook parses an uploaded file and stores it as a new session.
func (s *Service) LoadWorkbook(ctx context.Context, fileName string, r io.Reader, logger *slog.Logger) (*Session, error) {
	logger = logging.OrDiscard(logger)

	loader := &Loader{MaxFileSize: s.opts.MaxFileSize, Logger: logger}
	wb, err := loader.Load(ctx, filepath.Base(fileName), r)
	if err != nil {
		return nil, err
	}
	if wb.Len() == 0 {
		return nil, ErrEmptyWorkbook
	}

	sess := newSession(wb, s.opts.SampleRows)
	if evicted := s.sessions.Put(sess); evicted {
		logger.Info("oldest session evicted", "capacity", s.opts.MaxSessions)
	}

	logger.Info("session created", "session", sess.ID, "file", wb.FileName, "sheets", wb.Len())
	return sess, nil
}

// Session returns a stored session.
func (s *Service) Session(id string) (*Session, error) {
	return s.sessions.Get(id)
}

// Sessions lists stored sessions, newest first.
func (s *Service) Sessions() []SessionSummary {
	list := s.sessions.List()
	out := make([]SessionSummary, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i].Summary())
	}
	return out
}

// DeleteSession drops a session and its last batch.
func (s *Service) DeleteSession(id string) error {
	if !s.sessions.Delete(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// SheetPreview is the first rows of a sheet as display strings.
type SheetPreview struct {
	Sheet     string     `json:"sheet"`
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
}

// Preview returns up to limit rows of a sheet. Missing cells are empty strings.
func (s *Service) Preview(id, sheet string, limit int) (*SheetPreview, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	rs, err := sess.Sheet(sheet)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > rs.Len() {
		limit = rs.Len()
	}

	p := &SheetPreview{
		Sheet:     rs.Name(),
		Columns:   rs.Columns(),
		Rows:      make([][]string, limit),
		TotalRows: rs.Len(),
	}
	for i := 0; i < limit; i++ {
		row := make([]string, len(rs.columns))
		for c := range rs.columns {
			row[c] = rs.at(i, c).Text
		}
		p.Rows[i] = row
	}
	return p, nil
}

// BatchRequest is an operator's choice of sheet, naming and image settings.
type BatchRequest struct {
	Sheet    string       `json:"sheet"`
	Filename FilenameSpec `json:"filename"`
	// Render falls back to the service defaults when nil.
	Render *RenderSpec `json:"render,omitempty"`
}

func (s *Service) renderSpec(req BatchRequest) RenderSpec {
	if req.Render == nil {
		return s.opts.DefaultRender
	}
	return *req.Render
}

// ValidateBatch checks a request against its sheet without generating.
func (s *Service) ValidateBatch(id string, req BatchRequest) error {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return err
	}
	rs, err := sess.Sheet(req.Sheet)
	if err != nil {
		return err
	}
	if err := ValidateFilenameSpec(rs, req.Filename); err != nil {
		return err
	}
	return s.renderSpec(req).Validate()
}

// PreviewFilenames derives names for the first limit prepared rows.
func (s *Service) PreviewFilenames(id string, req BatchRequest, limit int, logger *slog.Logger) (*DeriveResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	rs, err := sess.Sheet(req.Sheet)
	if err != nil {
		return nil, err
	}
	if err := ValidateFilenameSpec(rs, req.Filename); err != nil {
		return nil, err
	}
	res, err := Derive(rs, req.Filename, logger)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(res.Rows) > limit {
		res.Rows = res.Rows[:limit]
	}
	return res, nil
}

// RunBatch generates and packs codes for one sheet of a session and returns
// that batch's result, which later batches on the same session do not
// change. It waits for a batch slot first and fails with ErrTooManyBatches
// when none frees up. When a store is configured the archive is exported; an
// export failure is recorded in the report and does not fail the batch.
func (s *Service) RunBatch(ctx context.Context, id string, req BatchRequest, logger *slog.Logger) (*BatchResult, error) {
	logger = logging.OrDiscard(logger)

	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	rs, err := sess.Sheet(req.Sheet)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.BatchTimeout)
		defer cancel()
	}

	p := &Pipeline{
		Renderer: s.opts.Renderer,
		Workers:  s.opts.Workers,
		Logger:   logger.With("session", id),
	}
	result, err := p.Run(ctx, rs, req.Filename, s.renderSpec(req))
	if err != nil {
		return result, err
	}

	if s.opts.Store != nil {
		key := path.Join(id, result.Report.BatchID+".zip")
		loc, err := s.opts.Store.Put(ctx, key, result.Archive.Data, "application/zip")
		if err != nil {
			logger.Error("archive export failed", "key", key, "error", err)
			result.Report.ArchiveExportError = err.Error()
		} else {
			logger.Info("archive exported", "location", loc)
			result.Report.ArchiveLocation = loc
		}
	}

	sess.setLastBatch(result)
	return result, nil
}

// ArchiveFileName is the download name of a packed archive.
const ArchiveFileName = "qr_codes.zip"

// Archive returns the last packed archive of a session.
func (s *Service) Archive(id string) (*Archive, error) {
	last, err := s.lastBatch(id)
	if err != nil {
		return nil, err
	}
	return last.Archive, nil
}

// Codes lists the stored entries of the last archive in order.
func (s *Service) Codes(id string) ([]ArchiveEntry, error) {
	last, err := s.lastBatch(id)
	if err != nil {
		return nil, err
	}
	return append([]ArchiveEntry(nil), last.Archive.Entries...), nil
}

// Code returns one PNG from the last archive of a session.
func (s *Service) Code(id, name string) ([]byte, error) {
	last, err := s.lastBatch(id)
	if err != nil {
		return nil, err
	}
	for _, e := range last.Archive.Entries {
		if e.Name == name {
			return last.Archive.Entry(name)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, name)
}

// Report returns the report of the last batch of a session.
func (s *Service) Report(id string) (*BatchReport, error) {
	last, err := s.lastBatch(id)
	if err != nil {
		return nil, err
	}
	return last.Report, nil
}

func (s *Service) lastBatch(id string) (*BatchResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.LastBatch()
}

// LimiterStatus reports batch slot usage.
func (s *Service) LimiterStatus() BatchLimiterStatus {
	return s.limiter.Status()
}

// WaitForBatches blocks until running batches finish or ctx ends.
func (s *Service) WaitForBatches(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
