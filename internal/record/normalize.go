package record

import (
	"encoding/json"
	"strings"
	"time"
)

// normalizeCollection converts a raw storage string into well-formed
// records. It fails closed per entry: anything missing, mis-shaped, or
// unparseable drops that entry, never the collection. A value that is not a
// JSON array normalizes to an empty collection.
func normalizeCollection[P any](raw string, payload func(json.RawMessage) (P, bool)) []Record[P] {
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	var out []Record[P]
	for _, entry := range entries {
		if rec, ok := normalizeEntry(entry, payload); ok {
			out = append(out, rec)
		}
	}
	return out
}

func normalizeEntry[P any](entry json.RawMessage, payload func(json.RawMessage) (P, bool)) (Record[P], bool) {
	var sr storedRecord
	if err := json.Unmarshal(entry, &sr); err != nil {
		return Record[P]{}, false
	}

	rec := Record[P]{
		ID:         strings.TrimSpace(sr.ID),
		Title:      strings.TrimSpace(sr.Title),
		CourseID:   strings.TrimSpace(sr.CourseID),
		CourseName: strings.TrimSpace(sr.CourseName),
	}
	if rec.ID == "" || rec.Title == "" || rec.CourseID == "" || rec.CourseName == "" {
		return Record[P]{}, false
	}

	createdAt, err := time.Parse(time.RFC3339, sr.CreatedAt)
	if err != nil {
		return Record[P]{}, false
	}
	rec.CreatedAt = createdAt.UTC()

	// lastOpenedAt is optional; a malformed value clears the field rather
	// than dropping the record.
	if sr.LastOpenedAt != "" {
		if t, err := time.Parse(time.RFC3339, sr.LastOpenedAt); err == nil {
			rec.LastOpenedAt = t.UTC()
		}
	}

	p, ok := payload(sr.Payload)
	if !ok {
		return Record[P]{}, false
	}
	rec.Payload = p
	return rec, true
}

// NormalizeCards validates a raw deck payload. Each card needs non-empty
// front and back after trimming; invalid cards are dropped individually. A
// payload that is not an array, or that yields no valid cards, fails.
func NormalizeCards(raw json.RawMessage) ([]Card, bool) {
	var cards []Card
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil, false
	}

	var out []Card
	for _, c := range cards {
		c.Front = strings.TrimSpace(c.Front)
		c.Back = strings.TrimSpace(c.Back)
		if c.Front == "" || c.Back == "" {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// NormalizeExam validates a raw practice-test payload. Each question needs a
// non-empty prompt and answer; blank choices are dropped. An exam with no
// valid questions fails.
func NormalizeExam(raw json.RawMessage) (Exam, bool) {
	var exam Exam
	if err := json.Unmarshal(raw, &exam); err != nil {
		return Exam{}, false
	}

	var questions []Question
	for _, q := range exam.Questions {
		q.Prompt = strings.TrimSpace(q.Prompt)
		q.Answer = strings.TrimSpace(q.Answer)
		q.Explanation = strings.TrimSpace(q.Explanation)
		if q.Prompt == "" || q.Answer == "" {
			continue
		}
		var choices []string
		for _, c := range q.Choices {
			if c = strings.TrimSpace(c); c != "" {
				choices = append(choices, c)
			}
		}
		q.Choices = choices
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return Exam{}, false
	}
	return Exam{Questions: questions}, true
}
