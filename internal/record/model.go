// Package record implements the durable, capacity-bounded study-record
// stores: decks of flashcards and practice tests. A store never trusts its
// own storage medium; every read is normalized before records reach the
// caller.
package record

import (
	"encoding/json"
	"time"
)

// Capacity is the maximum number of records a store holds. Oldest records
// beyond the cap are evicted on write.
const Capacity = 100

// Card is one flashcard in a deck.
type Card struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Question is one practice-test question.
type Question struct {
	Prompt      string   `json:"prompt"`
	Choices     []string `json:"choices,omitempty"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// Exam is the payload of a practice-test record.
type Exam struct {
	Questions []Question `json:"questions"`
}

// Record is a stored study artifact. Payload is the ordered sequence of
// cards or questions, depending on the store.
type Record[P any] struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CourseID     string    `json:"courseId"`
	CourseName   string    `json:"courseName"`
	CreatedAt    time.Time `json:"createdAt"`
	LastOpenedAt time.Time `json:"lastOpenedAt,omitzero"`
	Payload      P         `json:"payload"`
}

// Summary is the lightweight projection returned by List; it carries no
// payload, only an item count for listing views.
type Summary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CourseID   string    `json:"courseId"`
	CourseName string    `json:"courseName"`
	CreatedAt  time.Time `json:"createdAt"`
	ItemCount  int       `json:"itemCount"`
}

// CreateInput is what callers supply to Store.Create. Title may be blank; a
// default is generated from the course name and record kind.
type CreateInput[P any] struct {
	Title      string
	CourseID   string
	CourseName string
	Payload    P
}

// timeFormat is the persisted timestamp layout: RFC3339 UTC at second
// precision with a trailing Z, no milliseconds.
const timeFormat = "2006-01-02T15:04:05Z"

// storedRecord is the persisted shape. Timestamps are strings so that a
// malformed value drops one entry instead of failing the whole decode.
type storedRecord struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	CourseID     string          `json:"courseId"`
	CourseName   string          `json:"courseName"`
	CreatedAt    string          `json:"createdAt"`
	LastOpenedAt string          `json:"lastOpenedAt,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}
