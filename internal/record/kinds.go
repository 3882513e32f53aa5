package record

import (
	"github.com/mkovar/studydesk/internal/storage"
)

// Storage keys. All stores share one key space; these prefixes keep them
// from colliding.
const (
	DeckKey         = "studydesk.decks"
	PracticeTestKey = "studydesk.practice_tests"
)

// NewDeckStore returns the flashcard-deck store.
func NewDeckStore(backend storage.Backend) *Store[[]Card] {
	return NewStore(backend, Kind[[]Card]{
		Key:       DeckKey,
		Label:     "Deck",
		Normalize: NormalizeCards,
		Count:     func(cards []Card) int { return len(cards) },
	})
}

// NewPracticeTestStore returns the practice-test store.
func NewPracticeTestStore(backend storage.Backend) *Store[Exam] {
	return NewStore(backend, Kind[Exam]{
		Key:       PracticeTestKey,
		Label:     "Practice Test",
		Normalize: NormalizeExam,
		Count:     func(e Exam) int { return len(e.Questions) },
	})
}
