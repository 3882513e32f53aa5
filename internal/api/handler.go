// Package api is the daemon's localhost HTTP surface: generation, record
// listing, chat, course selection, and import, behind a bearer token shared
// with the CLI.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mkovar/studydesk/internal/chat"
	"github.com/mkovar/studydesk/internal/importer"
	"github.com/mkovar/studydesk/internal/poll"
	"github.com/mkovar/studydesk/internal/record"
	"github.com/mkovar/studydesk/internal/study"
)

const maxRequestBodySize = 1 << 20 // 1MB

type Deps struct {
	Study    *study.Service
	Decks    *record.Store[[]record.Card]
	Tests    *record.Store[record.Exam]
	Chats    *chat.Store
	Importer *importer.Decoder
	Token    string
}

// NewHandler builds the daemon router. /health is unauthenticated so the
// CLI status command can probe it; everything else requires the token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(deps.Token))

		r.Post("/decks/generate", handleGenerateDeck(deps))
		r.Get("/decks", handleListDecks(deps))
		r.Get("/decks/{id}", handleGetDeck(deps))
		r.Post("/decks/{id}/touch", handleTouchDeck(deps))

		r.Post("/practice-tests/generate", handleGenerateTest(deps))
		r.Get("/practice-tests", handleListTests(deps))
		r.Get("/practice-tests/{id}", handleGetTest(deps))
		r.Post("/practice-tests/{id}/touch", handleTouchTest(deps))

		r.Get("/chat", handleListChats(deps))
		r.Post("/chat/{courseID}", handleAsk(deps))
		r.Get("/chat/{courseID}", handleHistory(deps))

		r.Get("/selected-course", handleGetSelectedCourse(deps))
		r.Put("/selected-course", handleSetSelectedCourse(deps))
		r.Delete("/selected-course", handleClearSelectedCourse(deps))

		r.Post("/import", handleImport(deps))
	})

	return r
}

// bearerAuth guards everything but /health with the token the CLI shares
// via the config file. Comparison is constant-time.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type generateRequest struct {
	CourseID   string `json:"courseId"`
	CourseName string `json:"courseName"`
	Title      string `json:"title"`
	Count      int    `json:"count"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// generationError maps the study-flow error taxonomy onto HTTP statuses:
// backend-reported failures and timeouts are distinguishable to the client.
func generationError(w http.ResponseWriter, err error) {
	var genErr *poll.GenerationError
	switch {
	case errors.As(err, &genErr):
		httpError(w, http.StatusBadGateway, "generation_error", "%s", genErr.Reason)
	case errors.Is(err, poll.ErrTimeout):
		httpError(w, http.StatusGatewayTimeout, "timeout_error", "%s", err.Error())
	default:
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	}
}

func handleGenerateDeck(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.CourseID == "" || req.CourseName == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "courseId and courseName are required")
			return
		}

		rec, err := deps.Study.GenerateDeck(r.Context(), study.GenerateInput{
			CourseID:   req.CourseID,
			CourseName: req.CourseName,
			Title:      req.Title,
			Count:      req.Count,
		})
		if err != nil {
			generationError(w, err)
			return
		}
		writeJSON(w, rec)
	}
}

func handleGenerateTest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.CourseID == "" || req.CourseName == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "courseId and courseName are required")
			return
		}

		rec, err := deps.Study.GeneratePracticeTest(r.Context(), study.GenerateInput{
			CourseID:   req.CourseID,
			CourseName: req.CourseName,
			Title:      req.Title,
			Count:      req.Count,
		})
		if err != nil {
			generationError(w, err)
			return
		}
		writeJSON(w, rec)
	}
}

func handleListDecks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries := deps.Decks.List(parseLimit(r))
		if summaries == nil {
			summaries = []record.Summary{}
		}
		writeJSON(w, summaries)
	}
}

func handleListTests(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries := deps.Tests.List(parseLimit(r))
		if summaries == nil {
			summaries = []record.Summary{}
		}
		writeJSON(w, summaries)
	}
}

func handleGetDeck(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := deps.Decks.GetByID(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "deck not found")
			return
		}
		writeJSON(w, rec)
	}
}

func handleGetTest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := deps.Tests.GetByID(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "practice test not found")
			return
		}
		writeJSON(w, rec)
	}
}

func handleTouchDeck(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Decks.MarkTouched(chi.URLParam(r, "id"))
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func handleTouchTest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Tests.MarkTouched(chi.URLParam(r, "id"))
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		reply, err := deps.Study.Ask(r.Context(), chi.URLParam(r, "courseID"), req.Question)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}
		writeJSON(w, reply)
	}
}

type chatSummary struct {
	CourseID     string `json:"courseId"`
	MessageCount int    `json:"messageCount"`
}

func handleListChats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courses := deps.Chats.Courses()
		out := make([]chatSummary, 0, len(courses))
		for _, id := range courses {
			out = append(out, chatSummary{CourseID: id, MessageCount: len(deps.Chats.History(id))})
		}
		writeJSON(w, out)
	}
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history := deps.Chats.History(chi.URLParam(r, "courseID"))
		if history == nil {
			history = []chat.Message{}
		}
		writeJSON(w, history)
	}
}

type selectedCourse struct {
	CourseID string `json:"courseId"`
}

func handleGetSelectedCourse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := deps.Chats.SelectedCourse()
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "no course selected")
			return
		}
		writeJSON(w, selectedCourse{CourseID: id})
	}
}

func handleSetSelectedCourse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectedCourse
		if !decodeBody(w, r, &req) {
			return
		}
		if req.CourseID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "courseId is required")
			return
		}
		deps.Chats.SelectCourse(req.CourseID)
		writeJSON(w, req)
	}
}

func handleClearSelectedCourse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Chats.ClearSelectedCourse()
		writeJSON(w, map[string]string{"status": "cleared"})
	}
}

type importRequest struct {
	Fragment string `json:"fragment"`
}

func handleImport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importRequest
		if !decodeBody(w, r, &req) {
			return
		}

		result, err := deps.Importer.Import(req.Fragment)
		if err != nil {
			var impErr *importer.ImportError
			if errors.As(err, &impErr) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", impErr.Reason)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, result)
	}
}

func parseLimit(r *http.Request) int {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return -1
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return -1
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
