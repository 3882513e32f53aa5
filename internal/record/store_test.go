package record

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/mkovar/studydesk/internal/storage"
)

// failingBackend simulates an unavailable storage medium.
type failingBackend struct {
	getErr error
	setErr error
	data   map[string]string
}

func (f *failingBackend) Get(key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (f *failingBackend) Set(key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.data == nil {
		f.data = make(map[string]string)
	}
	f.data[key] = value
	return nil
}

func (f *failingBackend) Remove(key string) error { return nil }

func newTestDeckStore(t *testing.T) *Store[[]Card] {
	t.Helper()
	s := NewDeckStore(storage.NewMemory())
	seq := 0
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.newID = func() string {
		seq++
		return fmt.Sprintf("deck-%03d", seq)
	}
	s.now = func() time.Time {
		// Each call advances one second so createdAt ordering is deterministic.
		seq2 := seq
		return base.Add(time.Duration(seq2) * time.Second)
	}
	return s
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := newTestDeckStore(t)

	cards := []Card{{Front: "goroutine", Back: "lightweight thread"}}
	created := s.Create(CreateInput[[]Card]{
		Title:      "Concurrency basics",
		CourseID:   "go101",
		CourseName: "Go 101",
		Payload:    cards,
	})

	if created.ID == "" {
		t.Fatal("Create assigned empty id")
	}
	if created.CreatedAt.Nanosecond() != 0 {
		t.Errorf("CreatedAt not truncated to seconds: %v", created.CreatedAt)
	}

	got, ok := s.GetByID(created.ID)
	if !ok {
		t.Fatalf("GetByID(%q) absent after Create", created.ID)
	}
	if !reflect.DeepEqual(got, created) {
		t.Errorf("GetByID = %+v, want %+v", got, created)
	}
	if got.Title != "Concurrency basics" || got.CourseID != "go101" {
		t.Errorf("record fields corrupted: %+v", got)
	}
	if !reflect.DeepEqual(got.Payload, cards) {
		t.Errorf("payload = %+v, want %+v", got.Payload, cards)
	}
}

func TestCreateDefaultsBlankTitle(t *testing.T) {
	s := newTestDeckStore(t)

	rec := s.Create(CreateInput[[]Card]{
		CourseID:   "go101",
		CourseName: "Go 101",
		Payload:    []Card{{Front: "f", Back: "b"}},
	})

	want := "Go 101 Deck " + rec.CreatedAt.Format("2006-01-02")
	if rec.Title != want {
		t.Errorf("default title = %q, want %q", rec.Title, want)
	}
}

func TestCreateDefaultsWhitespaceTitle(t *testing.T) {
	s := newTestDeckStore(t)

	rec := s.Create(CreateInput[[]Card]{
		Title:      "   ",
		CourseID:   "go101",
		CourseName: "Go 101",
		Payload:    []Card{{Front: "f", Back: "b"}},
	})

	want := "Go 101 Deck " + rec.CreatedAt.Format("2006-01-02")
	if rec.Title != want {
		t.Errorf("whitespace title stored instead of default: %q, want %q", rec.Title, want)
	}

	// A stored whitespace title would be dropped by the read-side
	// normalizer, making the record vanish right after creation.
	if _, ok := s.GetByID(rec.ID); !ok {
		t.Fatalf("record %s absent after Create with whitespace title", rec.ID)
	}
}

func TestCreateDeepCopiesPayload(t *testing.T) {
	s := newTestDeckStore(t)

	cards := []Card{{Front: "original", Back: "back"}}
	rec := s.Create(CreateInput[[]Card]{
		Title:      "t",
		CourseID:   "c",
		CourseName: "C",
		Payload:    cards,
	})

	// Mutating the caller's slice must not corrupt the stored copy.
	cards[0].Front = "mutated"

	got, ok := s.GetByID(rec.ID)
	if !ok {
		t.Fatal("record absent")
	}
	if got.Payload[0].Front != "original" {
		t.Errorf("stored payload affected by caller mutation: %+v", got.Payload)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := newTestDeckStore(t)

	var ids []string
	for i := 0; i < Capacity+5; i++ {
		rec := s.Create(CreateInput[[]Card]{
			Title:      fmt.Sprintf("deck %d", i),
			CourseID:   "c",
			CourseName: "C",
			Payload:    []Card{{Front: "f", Back: "b"}},
		})
		ids = append(ids, rec.ID)
	}

	if got := len(s.List(-1)); got != Capacity {
		t.Fatalf("store holds %d records, want %d", got, Capacity)
	}

	// The five oldest are gone, the newest survives.
	for _, id := range ids[:5] {
		if _, ok := s.GetByID(id); ok {
			t.Errorf("evicted record %q still present", id)
		}
	}
	if _, ok := s.GetByID(ids[len(ids)-1]); !ok {
		t.Error("newest record missing after eviction")
	}
}

func TestListMostRecentFirst(t *testing.T) {
	s := newTestDeckStore(t)

	for i := 0; i < 105; i++ {
		s.Create(CreateInput[[]Card]{
			Title:      fmt.Sprintf("deck %d", i),
			CourseID:   "c",
			CourseName: "C",
			Payload:    []Card{{Front: "f", Back: "b"}, {Front: "f2", Back: "b2"}},
		})
	}

	got := s.List(12)
	if len(got) != 12 {
		t.Fatalf("List(12) returned %d summaries", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Fatalf("List not sorted most-recent-first at %d: %v after %v", i, got[i].CreatedAt, got[i-1].CreatedAt)
		}
	}
	if got[0].Title != "deck 104" {
		t.Errorf("List[0].Title = %q, want the most recent create", got[0].Title)
	}
	if got[0].ItemCount != 2 {
		t.Errorf("ItemCount = %d, want 2", got[0].ItemCount)
	}
}

func TestMarkTouched(t *testing.T) {
	s := newTestDeckStore(t)

	rec := s.Create(CreateInput[[]Card]{
		Title:      "t",
		CourseID:   "c",
		CourseName: "C",
		Payload:    []Card{{Front: "f", Back: "b"}},
	})

	s.MarkTouched(rec.ID)

	got, ok := s.GetByID(rec.ID)
	if !ok {
		t.Fatal("record absent")
	}
	if got.LastOpenedAt.IsZero() {
		t.Error("LastOpenedAt still zero after MarkTouched")
	}
	if got.Title != rec.Title || got.CreatedAt != rec.CreatedAt {
		t.Errorf("MarkTouched altered other fields: %+v", got)
	}

	// Absent id is a no-op, not a panic or error.
	s.MarkTouched("no-such-id")
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	backend := &failingBackend{setErr: errors.New("quota exceeded")}
	s := NewDeckStore(backend)

	// Create must not panic or surface the failure.
	rec := s.Create(CreateInput[[]Card]{
		Title:      "t",
		CourseID:   "c",
		CourseName: "C",
		Payload:    []Card{{Front: "f", Back: "b"}},
	})
	if rec.ID == "" {
		t.Error("Create returned empty record on write failure")
	}
}

func TestReadFailureYieldsEmpty(t *testing.T) {
	backend := &failingBackend{getErr: errors.New("medium unavailable")}
	s := NewDeckStore(backend)

	if got := s.List(10); len(got) != 0 {
		t.Errorf("List on unavailable backend = %v, want empty", got)
	}
	if _, ok := s.GetByID("any"); ok {
		t.Error("GetByID on unavailable backend reported presence")
	}
}

func TestLoadNormalizesUntrustedStorage(t *testing.T) {
	backend := storage.NewMemory()
	// Hand-crafted collection: one valid record, one with a bad timestamp,
	// one missing its id, one with an empty payload, and a bare junk entry.
	backend.Set(DeckKey, `[
		{"id":"ok","title":"Valid","courseId":"c","courseName":"C","createdAt":"2026-03-01T10:00:00Z","payload":[{"front":"f","back":"b"}]},
		{"id":"bad-time","title":"T","courseId":"c","courseName":"C","createdAt":"yesterday","payload":[{"front":"f","back":"b"}]},
		{"title":"No id","courseId":"c","courseName":"C","createdAt":"2026-03-01T10:00:00Z","payload":[{"front":"f","back":"b"}]},
		{"id":"empty","title":"T","courseId":"c","courseName":"C","createdAt":"2026-03-01T10:00:00Z","payload":[]},
		42
	]`)

	s := NewDeckStore(backend)
	got := s.List(-1)
	if len(got) != 1 {
		t.Fatalf("List = %d records, want only the valid one: %+v", len(got), got)
	}
	if got[0].ID != "ok" {
		t.Errorf("surviving record = %q, want %q", got[0].ID, "ok")
	}
}

func TestLoadNonArrayNormalizesToEmpty(t *testing.T) {
	backend := storage.NewMemory()
	backend.Set(DeckKey, `{"not":"an array"}`)

	s := NewDeckStore(backend)
	if got := s.List(-1); len(got) != 0 {
		t.Errorf("List over non-array storage = %v, want empty", got)
	}
}
