package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Session is one loaded workbook and the most recent batch run against it.
// Sessions live only in memory.
type Session struct {
	ID       string
	LoadedAt time.Time
	Workbook *Workbook

	// classifications is computed once at load, keyed by sheet name.
	classifications map[string]ColumnClassification

	mu   sync.RWMutex
	last *BatchResult
}

func newSession(wb *Workbook, sampleRows int) *Session {
	s := &Session{
		ID:              uuid.NewString(),
		LoadedAt:        time.Now(),
		Workbook:        wb,
		classifications: make(map[string]ColumnClassification, wb.Len()),
	}
	for _, rs := range wb.sheets {
		s.classifications[rs.Name()] = Classify(rs, sampleRows)
	}
	return s
}

// Classification returns the URL column analysis of a sheet.
func (s *Session) Classification(sheet string) (ColumnClassification, bool) {
	c, ok := s.classifications[sheet]
	return c, ok
}

// Sheet resolves a sheet name. An empty name selects the first sheet.
func (s *Session) Sheet(name string) (*RowSet, error) {
	if name == "" {
		if s.Workbook.Len() == 0 {
			return nil, ErrEmptyWorkbook
		}
		return s.Workbook.sheets[0], nil
	}
	rs, ok := s.Workbook.Sheet(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return rs, nil
}

// Summary describes the session for listing.
func (s *Session) Summary() SessionSummary {
	out := SessionSummary{
		ID:       s.ID,
		FileName: s.Workbook.FileName,
		Format:   s.Workbook.Format,
		LoadedAt: s.LoadedAt,
		Sheets:   make([]SheetSummary, 0, s.Workbook.Len()),
	}
	for _, rs := range s.Workbook.sheets {
		c := s.classifications[rs.Name()]
		suggested, _ := c.Suggested()
		out.Sheets = append(out.Sheets, SheetSummary{
			Name:          rs.Name(),
			Rows:          rs.Len(),
			Columns:       rs.Columns(),
			URLColumns:    c.URLColumns,
			SuggestedURL:  suggested,
			NeedsURLInput: len(c.URLColumns) == 0,
		})
	}
	return out
}

// LastBatch returns the result of the latest batch.
func (s *Session) LastBatch() (*BatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, ErrNoBatch
	}
	return s.last, nil
}

func (s *Session) setLastBatch(r *BatchResult) {
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
}

// SessionStore keeps the most recently used sessions; the oldest is evicted
// once the capacity is reached.
type SessionStore struct {
	cache *lru.Cache[string, *Session]
}

// NewSessionStore creates a store holding up to size sessions.
func NewSessionStore(size int) (*SessionStore, error) {
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New[string, *Session](size)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return &SessionStore{cache: cache}, nil
}

// Put stores s and reports whether an older session was evicted.
func (st *SessionStore) Put(s *Session) bool {
	return st.cache.Add(s.ID, s)
}

// Get returns the session with the given ID.
func (st *SessionStore) Get(id string) (*Session, error) {
	s, ok := st.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete drops a session. It reports whether the session existed.
func (st *SessionStore) Delete(id string) bool {
	return st.cache.Remove(id)
}

// Len returns the number of stored sessions.
func (st *SessionStore) Len() int {
	return st.cache.Len()
}

// List returns sessions from oldest to newest.
func (st *SessionStore) List() []*Session {
	return st.cache.Values()
}
