package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mkovar/studydesk/internal/citation"
	"github.com/mkovar/studydesk/internal/storage"
)

func TestAppendAndHistory(t *testing.T) {
	s := NewStore(storage.NewMemory())

	s.Append("go101", Message{Role: RoleUser, Text: "what is a mutex?"})
	s.Append("go101", Message{
		Role: RoleAssistant,
		Text: "a mutual exclusion lock",
		Citations: []citation.Citation{
			{Source: "Lecture 2", Label: "Locks", URL: "https://example.edu/l2"},
		},
	})

	got := s.History("go101")
	if len(got) != 2 {
		t.Fatalf("History returned %d messages, want 2", len(got))
	}
	if got[0].Role != RoleUser || got[1].Role != RoleAssistant {
		t.Errorf("roles = %q,%q, want user,assistant", got[0].Role, got[1].Role)
	}
	if len(got[1].Citations) != 1 {
		t.Errorf("citations lost on round-trip: %+v", got[1])
	}
}

func TestHistoriesAreIsolatedPerCourse(t *testing.T) {
	s := NewStore(storage.NewMemory())

	s.Append("go101", Message{Role: RoleUser, Text: "hi"})
	s.Append("algo", Message{Role: RoleUser, Text: "hello"})

	if got := s.History("go101"); len(got) != 1 || got[0].Text != "hi" {
		t.Errorf("go101 history = %+v", got)
	}
	if got := s.History("algo"); len(got) != 1 || got[0].Text != "hello" {
		t.Errorf("algo history = %+v", got)
	}
}

func TestWriteHistoryCapsAtLimit(t *testing.T) {
	s := NewStore(storage.NewMemory())

	var messages []Message
	for i := 0; i < HistoryCap+20; i++ {
		messages = append(messages, Message{Role: RoleUser, Text: fmt.Sprintf("message %d", i)})
	}
	s.WriteHistory("go101", messages)

	got := s.History("go101")
	if len(got) != HistoryCap {
		t.Fatalf("History returned %d messages, want %d", len(got), HistoryCap)
	}
	// Exactly the last HistoryCap, in original relative order.
	if got[0].Text != "message 20" {
		t.Errorf("oldest surviving message = %q, want %q", got[0].Text, "message 20")
	}
	if got[len(got)-1].Text != fmt.Sprintf("message %d", HistoryCap+19) {
		t.Errorf("newest message = %q", got[len(got)-1].Text)
	}
}

func TestAppendOverflowDropsOldest(t *testing.T) {
	s := NewStore(storage.NewMemory())

	for i := 0; i < HistoryCap+1; i++ {
		s.Append("c", Message{Role: RoleUser, Text: fmt.Sprintf("m%d", i)})
	}

	got := s.History("c")
	if len(got) != HistoryCap {
		t.Fatalf("History length = %d, want %d", len(got), HistoryCap)
	}
	if got[0].Text != "m1" {
		t.Errorf("oldest message = %q, want m1", got[0].Text)
	}
}

func TestHistoryNormalizesUntrustedStorage(t *testing.T) {
	backend := storage.NewMemory()
	backend.Set(HistoryKeyPrefix+"c", `[
		{"role":"user","text":"  ok  "},
		{"role":"system","text":"unknown role"},
		{"role":"assistant","text":"   "},
		{"role":"assistant","text":"kept","citations":[
			{"source":"s","label":"l","url":"https://example.edu/a"},
			{"source":"s","label":"l","url":"http://example.edu/b"}
		]},
		"junk"
	]`)

	s := NewStore(backend)
	got := s.History("c")
	if len(got) != 2 {
		t.Fatalf("History kept %d messages, want 2: %+v", len(got), got)
	}
	if got[0].Text != "ok" {
		t.Errorf("text not trimmed: %q", got[0].Text)
	}
	if len(got[1].Citations) != 1 {
		t.Errorf("insecure citation survived: %+v", got[1].Citations)
	}
}

func TestHistoryNonArrayNormalizesToEmpty(t *testing.T) {
	backend := storage.NewMemory()
	backend.Set(HistoryKeyPrefix+"c", `"oops"`)

	s := NewStore(backend)
	if got := s.History("c"); len(got) != 0 {
		t.Errorf("History over non-array storage = %+v, want empty", got)
	}
}

func TestCoursesListsTranscripts(t *testing.T) {
	s := NewStore(storage.NewMemory())

	s.Append("go101", Message{Role: RoleUser, Text: "hi"})
	s.Append("algo", Message{Role: RoleUser, Text: "hello"})
	// The pointer key lives outside the transcript prefix and must not count.
	s.SelectCourse("db201")

	got := s.Courses()
	if len(got) != 2 || got[0] != "algo" || got[1] != "go101" {
		t.Errorf("Courses = %v, want [algo go101]", got)
	}
}

func TestCoursesWithoutKeyEnumeration(t *testing.T) {
	// Wrapping the backend in a bare interface hides the Keys method.
	s := NewStore(struct{ storage.Backend }{storage.NewMemory()})
	s.Append("go101", Message{Role: RoleUser, Text: "hi"})

	if got := s.Courses(); len(got) != 0 {
		t.Errorf("Courses = %v, want empty when the backend cannot list keys", got)
	}
}

func TestSelectedCourseLifecycle(t *testing.T) {
	s := NewStore(storage.NewMemory())

	if _, ok := s.SelectedCourse(); ok {
		t.Error("SelectedCourse set before any selection")
	}

	s.SelectCourse("go101")
	if got, ok := s.SelectedCourse(); !ok || got != "go101" {
		t.Errorf("SelectedCourse = (%q, %v), want (go101, true)", got, ok)
	}

	s.ClearSelectedCourse()
	if _, ok := s.SelectedCourse(); ok {
		t.Error("SelectedCourse still set after clear")
	}
}

type readOnlyBackend struct {
	storage.Backend
}

func (readOnlyBackend) Set(key, value string) error { return errors.New("quota exceeded") }

func TestWriteFailureIsSwallowed(t *testing.T) {
	s := NewStore(readOnlyBackend{storage.NewMemory()})

	// Must not panic or surface the failure.
	s.Append("c", Message{Role: RoleUser, Text: "hi"})
	s.SelectCourse("c")

	if got := s.History("c"); len(got) != 0 {
		t.Errorf("History = %+v, want empty after failed write", got)
	}
}
