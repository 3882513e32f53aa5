// Package chat persists per-course conversation transcripts and the
// session's selected-course pointer.
package chat

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mkovar/studydesk/internal/citation"
	"github.com/mkovar/studydesk/internal/storage"
)

// Message roles. Anything else is dropped on read.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
)

// HistoryCap bounds the transcript length per course; on overflow the
// oldest messages are dropped, preserving relative order of the rest.
const HistoryCap = 100

const (
	// HistoryKeyPrefix namespaces per-course transcripts; the course id is
	// the suffix, so no two courses can collide.
	HistoryKeyPrefix = "studydesk.chat."

	selectedCourseKey = "studydesk.selected_course"
)

// Message is one transcript entry.
type Message struct {
	Role      string              `json:"role"`
	Text      string              `json:"text"`
	Citations []citation.Citation `json:"citations,omitempty"`
}

// Store persists chat transcripts. Like the record stores it is best-effort
// durable: write failures are swallowed, unreadable history reads as empty.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	logger  *slog.Logger
}

// NewStore creates a chat store over backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend, logger: slog.Default()}
}

func historyKey(courseID string) string {
	return HistoryKeyPrefix + courseID
}

// History returns the normalized transcript for a course, oldest first.
func (s *Store) History(courseID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(courseID)
}

// WriteHistory replaces a course transcript, truncating to the last
// HistoryCap messages.
func (s *Store) WriteHistory(courseID string, messages []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist(courseID, messages)
}

// Append adds one message to a course transcript.
func (s *Store) Append(courseID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist(courseID, append(s.load(courseID), msg))
}

// load reads and normalizes one transcript. Storage failures read as empty.
func (s *Store) load(courseID string) []Message {
	raw, err := s.backend.Get(historyKey(courseID))
	if err != nil {
		return nil
	}
	return normalizeMessages(raw)
}

func (s *Store) persist(courseID string, messages []Message) {
	if len(messages) > HistoryCap {
		messages = messages[len(messages)-HistoryCap:]
	}
	data, err := json.Marshal(messages)
	if err != nil {
		s.logger.Debug("marshalling transcript failed", "course", courseID, "error", err)
		return
	}
	if err := s.backend.Set(historyKey(courseID), string(data)); err != nil {
		s.logger.Debug("persisting transcript failed", "course", courseID, "error", err)
	}
}

// Courses lists the ids of courses with a stored transcript, sorted.
// Backends that cannot enumerate keys yield an empty list.
func (s *Store) Courses() []string {
	lister, ok := s.backend.(storage.Lister)
	if !ok {
		return nil
	}
	keys, err := lister.Keys(HistoryKeyPrefix)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, HistoryKeyPrefix))
	}
	sort.Strings(ids)
	return ids
}

// SelectedCourse returns the durable selected-course pointer, if set.
func (s *Store) SelectedCourse() (string, bool) {
	v, err := s.backend.Get(selectedCourseKey)
	if err != nil || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// SelectCourse sets the selected-course pointer.
func (s *Store) SelectCourse(courseID string) {
	if err := s.backend.Set(selectedCourseKey, courseID); err != nil {
		s.logger.Debug("persisting selected course failed", "error", err)
	}
}

// ClearSelectedCourse clears the pointer (explicit "switch course").
func (s *Store) ClearSelectedCourse() {
	if err := s.backend.Remove(selectedCourseKey); err != nil {
		s.logger.Debug("clearing selected course failed", "error", err)
	}
}

// normalizeMessages converts a raw storage string into well-formed
// messages. Entries with an unknown role or empty-after-trim text are
// dropped; citation lists are policy-filtered; non-array input normalizes
// to an empty transcript.
func normalizeMessages(raw string) []Message {
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	var out []Message
	for _, entry := range entries {
		var m Message
		if err := json.Unmarshal(entry, &m); err != nil {
			continue
		}
		if m.Role != RoleUser && m.Role != RoleAssistant && m.Role != RoleError {
			continue
		}
		m.Text = strings.TrimSpace(m.Text)
		if m.Text == "" {
			continue
		}
		m.Citations = citation.Normalize(m.Citations)
		out = append(out, m)
	}
	return out
}
