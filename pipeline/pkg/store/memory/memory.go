// Package memory is an in-process store for dimensions, facts and file
// status. It enforces natural-key uniqueness like the relational stores and
// counts every operation, which makes it the test double of choice for the
// resolver and the consolidation engine.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
)

// Row is a stored dimension row.
type Row struct {
	ID    dimension.ID
	Key   dimension.NaturalKey
	Attrs []any
}

// FactRow is a stored fact with its run id.
type FactRow struct {
	RunID string
	loader.Fact
}

// FileRecord is a stored file status record.
type FileRecord struct {
	ID           loader.FileID
	Path         string
	Status       loader.FileStatus
	Lines        int64
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// Counts are per-dimension operation counters.
type Counts struct {
	Lookups map[dimension.Type]int
	Inserts map[dimension.Type]int
}

// Hooks inject failures. A non-nil error returned by a hook is returned by
// the operation without touching state. Hooks run without the store lock
// held, so they may call Seed.
type Hooks struct {
	Lookup     func(t dimension.Type, key dimension.NaturalKey) error
	Insert     func(t dimension.Type, key dimension.NaturalKey) error
	WriteFacts func(runID string, facts []loader.Fact) error
	// HideInserts makes the first n lookups after an insert of a given type
	// miss, as a lagging replica would.
	HideInserts map[dimension.Type]int
}

type Store struct {
	mu sync.Mutex

	hooks  Hooks
	nextID map[dimension.Type]dimension.ID
	rows   map[dimension.Type]map[string]*Row
	facts  []FactRow
	files  map[string]*FileRecord
	byID   map[loader.FileID]*FileRecord
	fileID loader.FileID

	lookups map[dimension.Type]int
	inserts map[dimension.Type]int
	hidden  map[dimension.Type]int
}

var (
	_ dimension.Store    = (*Store)(nil)
	_ loader.FactWriter  = (*Store)(nil)
	_ loader.StatusStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		nextID:  make(map[dimension.Type]dimension.ID),
		rows:    make(map[dimension.Type]map[string]*Row),
		files:   make(map[string]*FileRecord),
		byID:    make(map[loader.FileID]*FileRecord),
		lookups: make(map[dimension.Type]int),
		inserts: make(map[dimension.Type]int),
		hidden:  make(map[dimension.Type]int),
	}
}

// SetHooks replaces the failure hooks.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

func (s *Store) Lookup(ctx context.Context, schema dimension.Schema, key dimension.NaturalKey) (dimension.ID, error) {
	if err := ctx.Err(); err != nil {
		return dimension.None, err
	}
	s.mu.Lock()
	s.lookups[schema.Type]++
	hook := s.hooks.Lookup
	s.mu.Unlock()
	if hook != nil {
		if err := hook(schema.Type, key); err != nil {
			return dimension.None, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hidden[schema.Type] > 0 {
		s.hidden[schema.Type]--
		return dimension.None, dimension.ErrNotFound
	}
	row, ok := s.rows[schema.Type][key.Encode()]
	if !ok {
		return dimension.None, dimension.ErrNotFound
	}
	return row.ID, nil
}

func (s *Store) Insert(ctx context.Context, schema dimension.Schema, key dimension.NaturalKey, attrs []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(key.Values) != len(schema.KeyColumns) || len(attrs) != len(schema.AttributeColumns) {
		return fmt.Errorf("%s: got %d key and %d attribute values for %d and %d columns",
			schema.Table, len(key.Values), len(attrs), len(schema.KeyColumns), len(schema.AttributeColumns))
	}
	s.mu.Lock()
	s.inserts[schema.Type]++
	hook := s.hooks.Insert
	s.mu.Unlock()
	if hook != nil {
		if err := hook(schema.Type, key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[schema.Type]
	if !ok {
		m = make(map[string]*Row)
		s.rows[schema.Type] = m
	}
	enc := key.Encode()
	if _, exists := m[enc]; exists {
		return dimension.ErrConflict
	}
	s.nextID[schema.Type]++
	m[enc] = &Row{
		ID:    s.nextID[schema.Type],
		Key:   key,
		Attrs: append([]any(nil), attrs...),
	}
	s.hidden[schema.Type] = s.hooks.HideInserts[schema.Type]
	return nil
}

// Seed inserts a dimension row directly, as if another writer created it.
func (s *Store) Seed(schema dimension.Schema, key dimension.NaturalKey, attrs ...any) dimension.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[schema.Type]
	if !ok {
		m = make(map[string]*Row)
		s.rows[schema.Type] = m
	}
	if row, ok := m[key.Encode()]; ok {
		return row.ID
	}
	s.nextID[schema.Type]++
	m[key.Encode()] = &Row{ID: s.nextID[schema.Type], Key: key, Attrs: attrs}
	return s.nextID[schema.Type]
}

func (s *Store) WriteFacts(ctx context.Context, runID string, facts []loader.Fact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks.WriteFacts != nil {
		if err := s.hooks.WriteFacts(runID, facts); err != nil {
			return err
		}
	}
	for _, f := range facts {
		s.facts = append(s.facts, FactRow{RunID: runID, Fact: f})
	}
	return nil
}

func (s *Store) RegisterFile(ctx context.Context, path string, at time.Time) (loader.FileID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[path]
	if !ok {
		s.fileID++
		rec = &FileRecord{ID: s.fileID, Path: path, RegisteredAt: at}
		s.files[path] = rec
		s.byID[rec.ID] = rec
	}
	rec.Status = loader.StatusProcessing
	rec.Lines = 0
	rec.UpdatedAt = at
	return rec.ID, nil
}

func (s *Store) UpdateFileStatus(ctx context.Context, r loader.FileStatusRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[r.FileID]
	if !ok {
		return fmt.Errorf("file %d is not registered", r.FileID)
	}
	rec.Status = r.Status
	rec.Lines = r.Lines
	rec.UpdatedAt = r.UpdatedAt
	return nil
}

// Rows returns the stored rows of a dimension in id order.
func (s *Store) Rows(t dimension.Type) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, len(s.rows[t]))
	for _, row := range s.rows[t] {
		out[row.ID-1] = *row
	}
	return out
}

func (s *Store) Facts() []FactRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FactRow(nil), s.facts...)
}

// File returns the status record of path.
func (s *Store) File(path string) (FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[path]
	if !ok {
		return FileRecord{}, false
	}
	return *rec, true
}

func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Counts{Lookups: make(map[dimension.Type]int), Inserts: make(map[dimension.Type]int)}
	for t, n := range s.lookups {
		c.Lookups[t] = n
	}
	for t, n := range s.inserts {
		c.Inserts[t] = n
	}
	return c
}

// ResetCounts zeroes the operation counters.
func (s *Store) ResetCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = make(map[dimension.Type]int)
	s.inserts = make(map[dimension.Type]int)
}
