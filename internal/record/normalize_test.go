package record

import (
	"encoding/json"
	"testing"
)

func TestNormalizeCardsDropsInvalidEntries(t *testing.T) {
	raw := json.RawMessage(`[
		{"front":"  q1  ","back":"a1"},
		{"front":"","back":"a2"},
		{"front":"q3","back":"   "},
		{"front":"q4","back":"a4"}
	]`)

	cards, ok := NormalizeCards(raw)
	if !ok {
		t.Fatal("NormalizeCards failed on partially valid payload")
	}
	if len(cards) != 2 {
		t.Fatalf("kept %d cards, want 2: %+v", len(cards), cards)
	}
	if cards[0].Front != "q1" {
		t.Errorf("front not trimmed: %q", cards[0].Front)
	}
	if cards[1].Front != "q4" {
		t.Errorf("order not preserved: %+v", cards)
	}
}

func TestNormalizeCardsRejectsNonArray(t *testing.T) {
	if _, ok := NormalizeCards(json.RawMessage(`{"front":"f"}`)); ok {
		t.Error("NormalizeCards accepted a non-array payload")
	}
	if _, ok := NormalizeCards(nil); ok {
		t.Error("NormalizeCards accepted a nil payload")
	}
}

func TestNormalizeCardsRejectsAllInvalid(t *testing.T) {
	raw := json.RawMessage(`[{"front":"","back":""},{"front":" ","back":" "}]`)
	if _, ok := NormalizeCards(raw); ok {
		t.Error("NormalizeCards accepted a payload with zero valid cards")
	}
}

func TestNormalizeExam(t *testing.T) {
	raw := json.RawMessage(`{"questions":[
		{"prompt":"What is a channel?","choices":["a pipe","","  a file  "],"answer":"a pipe"},
		{"prompt":"","answer":"dropped"},
		{"prompt":"No answer","answer":"  "}
	]}`)

	exam, ok := NormalizeExam(raw)
	if !ok {
		t.Fatal("NormalizeExam failed on partially valid payload")
	}
	if len(exam.Questions) != 1 {
		t.Fatalf("kept %d questions, want 1: %+v", len(exam.Questions), exam.Questions)
	}
	q := exam.Questions[0]
	if len(q.Choices) != 2 {
		t.Errorf("choices = %v, want blanks dropped", q.Choices)
	}
	if q.Choices[1] != "a file" {
		t.Errorf("choices not trimmed: %v", q.Choices)
	}
}

func TestNormalizeExamRejectsEmpty(t *testing.T) {
	if _, ok := NormalizeExam(json.RawMessage(`{"questions":[]}`)); ok {
		t.Error("NormalizeExam accepted an exam with no questions")
	}
	if _, ok := NormalizeExam(json.RawMessage(`[1,2,3]`)); ok {
		t.Error("NormalizeExam accepted a non-object payload")
	}
}
