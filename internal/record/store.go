package record

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkovar/studydesk/internal/storage"
)

// Kind configures a Store for one record family: its storage key, the label
// used in generated titles, how to validate a decoded payload, and how to
// count payload items for summaries.
type Kind[P any] struct {
	Key       string
	Label     string
	Normalize func(json.RawMessage) (P, bool)
	Count     func(P) int
}

// Store is a durable, capacity-bounded, most-recent-first record collection.
// Persistence is best-effort: write failures are logged and swallowed, and
// an unavailable backing store reads as empty. Mutations are whole-collection
// read-modify-write, serialized by a mutex.
type Store[P any] struct {
	mu      sync.Mutex
	backend storage.Backend
	kind    Kind[P]
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewStore creates a Store over backend for the given kind.
func NewStore[P any](backend storage.Backend, kind Kind[P]) *Store[P] {
	return &Store[P]{
		backend: backend,
		kind:    kind,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Create assigns a fresh id and timestamp, defaults a blank title, deep-
// copies the payload, prepends the record, evicts past capacity, and
// persists. It never fails: durability is best-effort by design.
func (s *Store[P]) Create(in CreateInput[P]) Record[P] {
	now := s.now().UTC().Truncate(time.Second)

	// Trim before the blank check: the read-side normalizer drops records
	// whose title trims to empty, so a whitespace title must never be stored.
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.CourseName + " " + s.kind.Label + " " + now.Format("2006-01-02")
	}

	rec := Record[P]{
		ID:         s.newID(),
		Title:      title,
		CourseID:   in.CourseID,
		CourseName: in.CourseName,
		CreatedAt:  now,
		Payload:    deepCopy(in.Payload),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := append([]Record[P]{rec}, s.load()...)
	if len(records) > Capacity {
		records = records[:Capacity]
	}
	s.persist(records)
	return rec
}

// List returns summaries sorted by creation time descending, sliced to
// limit. Ties keep insertion order: newer inserts are stored first and the
// sort is stable.
func (s *Store[P]) List(limit int) []Summary {
	s.mu.Lock()
	records := s.load()
	s.mu.Unlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit >= 0 && len(records) > limit {
		records = records[:limit]
	}

	summaries := make([]Summary, len(records))
	for i, r := range records {
		summaries[i] = Summary{
			ID:         r.ID,
			Title:      r.Title,
			CourseID:   r.CourseID,
			CourseName: r.CourseName,
			CreatedAt:  r.CreatedAt,
			ItemCount:  s.kind.Count(r.Payload),
		}
	}
	return summaries
}

// GetByID returns the record with the given id. Absence is a normal
// outcome, not an error.
func (s *Store[P]) GetByID(id string) (Record[P], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.load() {
		if r.ID == id {
			return r, true
		}
	}
	return Record[P]{}, false
}

// MarkTouched updates the last-interacted timestamp on the matching record
// without altering any other field. No-op when the id is absent.
func (s *Store[P]) MarkTouched(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	for i := range records {
		if records[i].ID == id {
			records[i].LastOpenedAt = s.now().UTC().Truncate(time.Second)
			s.persist(records)
			return
		}
	}
}

// load reads and normalizes the whole collection. Any storage failure reads
// as an empty collection.
func (s *Store[P]) load() []Record[P] {
	raw, err := s.backend.Get(s.kind.Key)
	if err != nil {
		return nil
	}
	return normalizeCollection(raw, s.kind.Normalize)
}

// persist writes the whole collection, most-recent first. Failures are
// swallowed: the store is best-effort durable, never a throw path.
func (s *Store[P]) persist(records []Record[P]) {
	stored := make([]storedRecord, 0, len(records))
	for _, r := range records {
		sr := storedRecord{
			ID:         r.ID,
			Title:      r.Title,
			CourseID:   r.CourseID,
			CourseName: r.CourseName,
			CreatedAt:  r.CreatedAt.Format(timeFormat),
		}
		if !r.LastOpenedAt.IsZero() {
			sr.LastOpenedAt = r.LastOpenedAt.Format(timeFormat)
		}
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			s.logger.Debug("marshalling payload failed, skipping record", "key", s.kind.Key, "id", r.ID, "error", err)
			continue
		}
		sr.Payload = payload
		stored = append(stored, sr)
	}

	data, err := json.Marshal(stored)
	if err != nil {
		s.logger.Debug("marshalling collection failed", "key", s.kind.Key, "error", err)
		return
	}
	if err := s.backend.Set(s.kind.Key, string(data)); err != nil {
		s.logger.Debug("persisting collection failed", "key", s.kind.Key, "error", err)
	}
}

// deepCopy clones a payload through a JSON round-trip so later mutation of
// the caller's value cannot corrupt the stored copy.
func deepCopy[P any](p P) P {
	data, err := json.Marshal(p)
	if err != nil {
		return p
	}
	var out P
	if err := json.Unmarshal(data, &out); err != nil {
		return p
	}
	return out
}
