package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu   sync.Mutex
	objs map[string][]byte
	err  error
}

func (m *memStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objs == nil {
		m.objs = make(map[string][]byte)
	}
	m.objs[key] = data
	return "mem://" + key, nil
}

const serviceCSV = "name,link,notes\n" +
	"Acme,https://acme.example/a,first\n" +
	"Acme,https://acme.example/b,second\n" +
	"Beta,https://beta.example,\n"

func newTestService(t *testing.T, opts ServiceOptions) *Service {
	t.Helper()
	s, err := NewService(opts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return s
}

func loadCSV(t *testing.T, s *Service, csv string) *Session {
	t.Helper()
	sess, err := s.LoadWorkbook(context.Background(), "codes.csv", strings.NewReader(csv), nil)
	if err != nil {
		t.Fatalf("LoadWorkbook() error = %v", err)
	}
	return sess
}

func TestService_EndToEnd(t *testing.T) {
	store := &memStore{}
	s := newTestService(t, ServiceOptions{Store: store, Workers: 2})
	sess := loadCSV(t, s, serviceCSV)

	sum := sess.Summary()
	if len(sum.Sheets) != 1 {
		t.Fatalf("sheets = %d, want 1", len(sum.Sheets))
	}
	sh := sum.Sheets[0]
	if sh.SuggestedURL != "link" || sh.NeedsURLInput || sh.Rows != 3 {
		t.Errorf("sheet summary = %+v", sh)
	}

	prev, err := s.Preview(sess.ID, "", 2)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(prev.Rows) != 2 || prev.TotalRows != 3 || prev.Rows[1][2] != "second" {
		t.Errorf("Preview() = %+v", prev)
	}

	req := BatchRequest{Filename: FilenameSpec{URLColumn: "link", Columns: []string{"name"}, Separator: "_"}}
	if err := s.ValidateBatch(sess.ID, req); err != nil {
		t.Fatalf("ValidateBatch() error = %v", err)
	}

	names, err := s.PreviewFilenames(sess.ID, req, 2, nil)
	if err != nil {
		t.Fatalf("PreviewFilenames() error = %v", err)
	}
	if len(names.Rows) != 2 || names.Rows[0].Filename != "Acme.png" {
		t.Errorf("PreviewFilenames() rows = %+v", names.Rows)
	}

	result, err := s.RunBatch(context.Background(), sess.ID, req, nil)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	report := result.Report
	if report.Generated != 3 || report.Packed != 3 || report.Discrepancy() != 0 {
		t.Errorf("report = %+v", report)
	}

	wantKey := sess.ID + "/" + report.BatchID + ".zip"
	if report.ArchiveLocation != "mem://"+wantKey {
		t.Errorf("ArchiveLocation = %q, want mem://%s", report.ArchiveLocation, wantKey)
	}

	arc, err := s.Archive(sess.ID)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if string(store.objs[wantKey]) != string(arc.Data) {
		t.Error("exported archive differs from the stored one")
	}

	entries, err := s.Codes(sess.ID)
	if err != nil || len(entries) != 3 {
		t.Fatalf("Codes() = %v, %v", entries, err)
	}
	png, err := s.Code(sess.ID, entries[2].Name)
	if err != nil || len(png) == 0 {
		t.Errorf("Code(%s) = %d bytes, %v", entries[2].Name, len(png), err)
	}
	if _, err := s.Code(sess.ID, "nope.png"); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("Code(nope.png) error = %v, want ErrCodeNotFound", err)
	}

	last, err := s.Report(sess.ID)
	if err != nil || last != report {
		t.Errorf("Report() = %v, %v", last, err)
	}
}

func TestService_ExportFailureKeepsBatch(t *testing.T) {
	s := newTestService(t, ServiceOptions{Store: &memStore{err: errors.New("bucket offline")}})
	sess := loadCSV(t, s, serviceCSV)

	result, err := s.RunBatch(context.Background(), sess.ID,
		BatchRequest{Filename: FilenameSpec{URLColumn: "link", Columns: []string{"name"}}}, nil)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	report := result.Report
	if report.ArchiveExportError == "" || report.ArchiveLocation != "" {
		t.Errorf("export fields = %q, %q", report.ArchiveLocation, report.ArchiveExportError)
	}
	if _, err := s.Archive(sess.ID); err != nil {
		t.Errorf("Archive() error = %v", err)
	}
}

func TestService_Errors(t *testing.T) {
	s := newTestService(t, ServiceOptions{})

	if _, err := s.LoadWorkbook(context.Background(), "empty.csv", strings.NewReader("a,b\n"), nil); !errors.Is(err, ErrEmptyWorkbook) {
		t.Errorf("LoadWorkbook(header only) error = %v, want ErrEmptyWorkbook", err)
	}
	if _, err := s.Session("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Session() error = %v, want ErrSessionNotFound", err)
	}

	sess := loadCSV(t, s, serviceCSV)
	if _, err := s.Archive(sess.ID); !errors.Is(err, ErrNoBatch) {
		t.Errorf("Archive() before batch error = %v, want ErrNoBatch", err)
	}
	if _, err := s.Preview(sess.ID, "Other", 5); !errors.Is(err, ErrSheetNotFound) {
		t.Errorf("Preview(Other) error = %v, want ErrSheetNotFound", err)
	}

	bad := BatchRequest{
		Filename: FilenameSpec{URLColumn: "link", Columns: []string{"name"}},
		Render:   &RenderSpec{ModuleSize: 10, Border: 40},
	}
	if err := s.ValidateBatch(sess.ID, bad); !errors.Is(err, ErrInvalidRenderSpec) {
		t.Errorf("ValidateBatch() error = %v, want ErrInvalidRenderSpec", err)
	}

	if err := s.DeleteSession(sess.ID); err != nil {
		t.Errorf("DeleteSession() error = %v", err)
	}
	if err := s.DeleteSession(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second DeleteSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestService_EvictsOldestSession(t *testing.T) {
	s := newTestService(t, ServiceOptions{MaxSessions: 2})
	first := loadCSV(t, s, serviceCSV)
	second := loadCSV(t, s, serviceCSV)
	third := loadCSV(t, s, serviceCSV)

	if _, err := s.Session(first.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("oldest session still present: %v", err)
	}
	list := s.Sessions()
	if len(list) != 2 || list[0].ID != third.ID || list[1].ID != second.ID {
		t.Errorf("Sessions() = %+v, want newest first", list)
	}
}

func TestService_RunBatchResultOutlivesLaterBatch(t *testing.T) {
	s := newTestService(t, ServiceOptions{})
	sess := loadCSV(t, s, serviceCSV)

	first, err := s.RunBatch(context.Background(), sess.ID,
		BatchRequest{Filename: FilenameSpec{URLColumn: "link", Columns: []string{"name"}}}, nil)
	if err != nil {
		t.Fatalf("first RunBatch() error = %v", err)
	}
	second, err := s.RunBatch(context.Background(), sess.ID,
		BatchRequest{Filename: FilenameSpec{URLColumn: "link", Columns: []string{"notes"}}}, nil)
	if err != nil {
		t.Fatalf("second RunBatch() error = %v", err)
	}

	if got := first.Archive.Entries[0].Name; got != "Acme.png" {
		t.Errorf("first batch entry = %q, want Acme.png", got)
	}
	if got := second.Archive.Entries[0].Name; got != "first.png" {
		t.Errorf("second batch entry = %q, want first.png", got)
	}
	if first.Report.BatchID == second.Report.BatchID {
		t.Error("batches share an id")
	}

	last, err := s.Report(sess.ID)
	if err != nil || last != second.Report {
		t.Errorf("Report() = %v, %v, want the second batch", last, err)
	}
}

func TestService_BatchLimit(t *testing.T) {
	s := newTestService(t, ServiceOptions{MaxConcurrentBatches: 1, MaxWaitTime: time.Millisecond})
	sess := loadCSV(t, s, serviceCSV)

	if !s.limiter.TryAcquire() {
		t.Fatal("TryAcquire() failed on an idle limiter")
	}
	defer s.limiter.Release()

	_, err := s.RunBatch(context.Background(), sess.ID,
		BatchRequest{Filename: FilenameSpec{URLColumn: "link", Columns: []string{"name"}}}, nil)
	if !errors.Is(err, ErrTooManyBatches) {
		t.Errorf("RunBatch() error = %v, want ErrTooManyBatches", err)
	}
	if st := s.LimiterStatus(); st.Active != 1 {
		t.Errorf("LimiterStatus().Active = %d, want 1", st.Active)
	}
}

func TestNewService_RejectsBadDefaults(t *testing.T) {
	_, err := NewService(ServiceOptions{DefaultRender: RenderSpec{ModuleSize: 99, Border: 4}})
	if !errors.Is(err, ErrInvalidRenderSpec) {
		t.Errorf("NewService() error = %v, want ErrInvalidRenderSpec", err)
	}
}
