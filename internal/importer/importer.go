// Package importer decodes externally supplied share links into local
// records. This is the only path that accepts structured input the
// application did not generate itself, so every failure mode is distinct
// and user-facing, with no silent fallback.
package importer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mkovar/studydesk/internal/record"
)

// Import payload type discriminants.
const (
	TypeDeck         = "deck"
	TypePracticeTest = "practiceTest"
)

// ImportError is a user-facing decode or validation failure.
type ImportError struct {
	Reason string
}

func (e *ImportError) Error() string {
	return e.Reason
}

func importErr(reason string) error {
	return &ImportError{Reason: reason}
}

// Result describes the record an import created.
type Result struct {
	Kind    string         `json:"kind"`
	Summary record.Summary `json:"summary"`
}

// Decoder turns encoded share-link fragments into store records.
type Decoder struct {
	decks *record.Store[[]record.Card]
	tests *record.Store[record.Exam]
}

// NewDecoder creates a Decoder writing into the given stores.
func NewDecoder(decks *record.Store[[]record.Card], tests *record.Store[record.Exam]) *Decoder {
	return &Decoder{decks: decks, tests: tests}
}

// payload is the decoded wire shape. Pointer fields distinguish absent from
// empty: the contract requires courseId and courseName to be present.
type payload struct {
	Type       string          `json:"type"`
	Title      string          `json:"title"`
	CourseID   *string         `json:"courseId"`
	CourseName *string         `json:"courseName"`
	Cards      json.RawMessage `json:"cards"`
	Exam       *examPayload    `json:"exam"`
}

type examPayload struct {
	Questions json.RawMessage `json:"questions"`
}

// Import decodes a URL-fragment-encoded, base64-encoded JSON payload and
// creates the matching record. Every failure returns an *ImportError with a
// distinct reason; nothing is created on failure.
func (d *Decoder) Import(rawFragment string) (Result, error) {
	p, err := decodeFragment(rawFragment)
	if err != nil {
		return Result{}, err
	}

	switch p.Type {
	case TypeDeck:
		return d.importDeck(p)
	case TypePracticeTest:
		return d.importPracticeTest(p)
	case "":
		return Result{}, importErr("import payload is missing its type")
	default:
		return Result{}, importErr(fmt.Sprintf("unsupported import type %q", p.Type))
	}
}

func decodeFragment(rawFragment string) (payload, error) {
	fragment := strings.TrimSpace(strings.TrimPrefix(rawFragment, "#"))
	if fragment == "" {
		return payload{}, importErr("import link carries no data")
	}

	unescaped, err := url.QueryUnescape(fragment)
	if err != nil {
		return payload{}, importErr("import link is not valid URL encoding")
	}

	decoded, err := decodeBase64(unescaped)
	if err != nil {
		// Unescaping turns a literal '+' into a space; fall back to the
		// fragment as given before declaring the base64 invalid.
		if decoded, err = decodeBase64(fragment); err != nil {
			return payload{}, importErr("import payload is not valid base64")
		}
	}

	// Reject non-objects up front so "JSON but not an object" gets its own
	// reason instead of a confusing field-validation message.
	trimmed := strings.TrimSpace(string(decoded))
	if !strings.HasPrefix(trimmed, "{") {
		if json.Valid(decoded) {
			return payload{}, importErr("import payload must be a JSON object")
		}
		return payload{}, importErr("import payload is not valid JSON")
	}

	var p payload
	if err := json.Unmarshal(decoded, &p); err != nil {
		return payload{}, importErr("import payload is not valid JSON")
	}
	return p, nil
}

// decodeBase64 accepts both standard and URL-safe alphabets, padded or not;
// share links produced by different frontend versions differ here.
func decodeBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(s)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (d *Decoder) importDeck(p payload) (Result, error) {
	if p.CourseID == nil || p.CourseName == nil {
		return Result{}, importErr("deck import is missing course information")
	}
	cards, ok := record.NormalizeCards(p.Cards)
	if !ok {
		return Result{}, importErr("deck import contains no cards")
	}

	rec := d.decks.Create(record.CreateInput[[]record.Card]{
		Title:      p.Title,
		CourseID:   *p.CourseID,
		CourseName: *p.CourseName,
		Payload:    cards,
	})
	return Result{Kind: TypeDeck, Summary: summarize(rec.ID, rec.Title, rec.CourseID, rec.CourseName, rec.CreatedAt, len(cards))}, nil
}

func (d *Decoder) importPracticeTest(p payload) (Result, error) {
	if p.CourseID == nil || p.CourseName == nil {
		return Result{}, importErr("practice test import is missing course information")
	}
	if p.Exam == nil {
		return Result{}, importErr("practice test import is missing its exam")
	}
	exam, ok := record.NormalizeExam(rawExam(p.Exam.Questions))
	if !ok {
		return Result{}, importErr("practice test import contains no questions")
	}

	rec := d.tests.Create(record.CreateInput[record.Exam]{
		Title:      p.Title,
		CourseID:   *p.CourseID,
		CourseName: *p.CourseName,
		Payload:    exam,
	})
	return Result{Kind: TypePracticeTest, Summary: summarize(rec.ID, rec.Title, rec.CourseID, rec.CourseName, rec.CreatedAt, len(exam.Questions))}, nil
}

func rawExam(questions json.RawMessage) json.RawMessage {
	if len(questions) == 0 {
		questions = json.RawMessage("[]")
	}
	return json.RawMessage(`{"questions":` + string(questions) + `}`)
}

func summarize(id, title, courseID, courseName string, createdAt time.Time, count int) record.Summary {
	return record.Summary{
		ID:         id,
		Title:      title,
		CourseID:   courseID,
		CourseName: courseName,
		CreatedAt:  createdAt,
		ItemCount:  count,
	}
}
