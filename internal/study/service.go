// Package study orchestrates the full generation and chat flows: start a
// backend job, poll it to completion, normalize the artifact, persist the
// record. It owns no policy of its own; every rule lives in the package it
// delegates to.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkovar/studydesk/internal/chat"
	"github.com/mkovar/studydesk/internal/citation"
	"github.com/mkovar/studydesk/internal/poll"
	"github.com/mkovar/studydesk/internal/record"
	"github.com/mkovar/studydesk/internal/tutor"
)

// Backend is the slice of the generation API the service needs.
type Backend interface {
	StartDeck(ctx context.Context, courseID string, count int) (tutor.JobHandle, error)
	StartPracticeTest(ctx context.Context, courseID string, count int) (tutor.JobHandle, error)
	JobStatus(ctx context.Context, jobID string) (poll.Status[json.RawMessage], error)
	Ask(ctx context.Context, courseID, question string) (tutor.AskResponse, error)
}

// Defaults for the poll loop and generation size when the config leaves
// them unset.
const (
	DefaultMaxAttempts = 30
	DefaultInterval    = 2 * time.Second
	DefaultCount       = 20
)

// Options tunes the poll loop. Zero values fall back to the defaults above;
// Sleep exists so tests can run the loop without real timers.
type Options struct {
	MaxAttempts int
	Interval    time.Duration
	Sleep       poll.SleepFunc
}

// Service wires the tutor backend to the local stores.
type Service struct {
	backend Backend
	decks   *record.Store[[]record.Card]
	tests   *record.Store[record.Exam]
	chats   *chat.Store
	logger  *slog.Logger

	maxAttempts int
	interval    time.Duration
	sleep       poll.SleepFunc
}

// New creates a Service over the given backend and stores.
func New(backend Backend, decks *record.Store[[]record.Card], tests *record.Store[record.Exam], chats *chat.Store, opts Options) *Service {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Sleep == nil {
		opts.Sleep = poll.Sleep
	}
	return &Service{
		backend:     backend,
		decks:       decks,
		tests:       tests,
		chats:       chats,
		logger:      slog.Default(),
		maxAttempts: opts.MaxAttempts,
		interval:    opts.Interval,
		sleep:       opts.Sleep,
	}
}

// GenerateInput describes one generation request. A blank Title gets the
// store's generated default; Count <= 0 falls back to DefaultCount.
type GenerateInput struct {
	CourseID   string
	CourseName string
	Title      string
	Count      int
}

func (in GenerateInput) validate() error {
	if strings.TrimSpace(in.CourseID) == "" {
		return errors.New("course id is required")
	}
	if strings.TrimSpace(in.CourseName) == "" {
		return errors.New("course name is required")
	}
	return nil
}

func (in GenerateInput) count() int {
	if in.Count <= 0 {
		return DefaultCount
	}
	return in.Count
}

// GenerateDeck runs one deck generation end to end and returns the stored
// record. Backend and poll errors propagate; an artifact with no usable
// cards is a generation failure, not a stored empty deck.
func (s *Service) GenerateDeck(ctx context.Context, in GenerateInput) (record.Record[[]record.Card], error) {
	var zero record.Record[[]record.Card]
	if err := in.validate(); err != nil {
		return zero, err
	}

	handle, err := s.backend.StartDeck(ctx, in.CourseID, in.count())
	if err != nil {
		return zero, fmt.Errorf("starting deck generation: %w", err)
	}
	s.logger.Debug("deck generation started", "course", in.CourseID, "job", handle.JobID)

	raw, err := poll.Poll(ctx, handle.JobID, s.maxAttempts, s.interval, s.backend.JobStatus, s.sleep)
	if err != nil {
		return zero, err
	}

	cards, ok := record.NormalizeCards(raw)
	if !ok {
		return zero, &poll.GenerationError{Reason: "generation produced no usable cards"}
	}

	return s.decks.Create(record.CreateInput[[]record.Card]{
		Title:      in.Title,
		CourseID:   in.CourseID,
		CourseName: in.CourseName,
		Payload:    cards,
	}), nil
}

// GeneratePracticeTest runs one practice-test generation end to end and
// returns the stored record.
func (s *Service) GeneratePracticeTest(ctx context.Context, in GenerateInput) (record.Record[record.Exam], error) {
	var zero record.Record[record.Exam]
	if err := in.validate(); err != nil {
		return zero, err
	}

	handle, err := s.backend.StartPracticeTest(ctx, in.CourseID, in.count())
	if err != nil {
		return zero, fmt.Errorf("starting practice test generation: %w", err)
	}
	s.logger.Debug("practice test generation started", "course", in.CourseID, "job", handle.JobID)

	raw, err := poll.Poll(ctx, handle.JobID, s.maxAttempts, s.interval, s.backend.JobStatus, s.sleep)
	if err != nil {
		return zero, err
	}

	exam, ok := record.NormalizeExam(raw)
	if !ok {
		return zero, &poll.GenerationError{Reason: "generation produced no usable questions"}
	}

	return s.tests.Create(record.CreateInput[record.Exam]{
		Title:      in.Title,
		CourseID:   in.CourseID,
		CourseName: in.CourseName,
		Payload:    exam,
	}), nil
}

// BothResult carries the outcome of a combined generation.
type BothResult struct {
	Deck         record.Record[[]record.Card]
	PracticeTest record.Record[record.Exam]
}

// GenerateBoth generates a deck and a practice test for the same course
// concurrently. The first failure cancels the sibling poll and is returned.
func (s *Service) GenerateBoth(ctx context.Context, in GenerateInput) (BothResult, error) {
	var result BothResult

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deck, err := s.GenerateDeck(ctx, in)
		if err != nil {
			return err
		}
		result.Deck = deck
		return nil
	})
	g.Go(func() error {
		test, err := s.GeneratePracticeTest(ctx, in)
		if err != nil {
			return err
		}
		result.PracticeTest = test
		return nil
	})

	if err := g.Wait(); err != nil {
		return BothResult{}, err
	}
	return result, nil
}

// Ask runs one chat turn: the question lands in the transcript before the
// backend call, so a dead backend still leaves the user's side of the
// conversation intact, followed by an error-role marker.
func (s *Service) Ask(ctx context.Context, courseID, question string) (chat.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return chat.Message{}, errors.New("question is empty")
	}

	s.chats.Append(courseID, chat.Message{Role: chat.RoleUser, Text: question})

	resp, err := s.backend.Ask(ctx, courseID, question)
	if err != nil {
		s.chats.Append(courseID, chat.Message{
			Role: chat.RoleError,
			Text: "the tutor could not be reached, please try again",
		})
		return chat.Message{}, fmt.Errorf("asking tutor: %w", err)
	}

	answer := strings.TrimSpace(resp.Answer)
	if answer == "" {
		answer = "The tutor returned an empty answer."
	}

	reply := chat.Message{
		Role: chat.RoleAssistant,
		Text: answer,
		Citations: citation.Reconcile(citation.Response{
			Citations: resp.Citations,
			Sources:   resp.Sources,
		}),
	}
	s.chats.Append(courseID, reply)
	return reply, nil
}
