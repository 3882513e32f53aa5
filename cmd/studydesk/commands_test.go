package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkovar/studydesk/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestDeckGenerateRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /decks/generate": `{"id":"deck-123","title":"Go 101 Deck 2026-08-25"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/decks/generate", map[string]any{
		"courseId":   "go101",
		"courseName": "Go 101",
		"count":      15,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rec map[string]string
	if err := decodeJSON(resp, &rec); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if rec["id"] != "deck-123" {
		t.Errorf("id = %q, want deck-123", rec["id"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["courseId"] != "go101" {
		t.Errorf("body.courseId = %v, want go101", body["courseId"])
	}
	if body["count"] != float64(15) {
		t.Errorf("body.count = %v, want 15", body["count"])
	}
}

func TestDeckGenerateMissingFlags(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"deck", "generate"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing flags")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestDeckList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /decks": `[{"id":"deck-1","title":"Sorting","courseId":"algo","courseName":"Algorithms","createdAt":"2026-08-25T10:00:00Z","itemCount":12}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/decks?limit=20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var summaries []summaryView
	if err := decodeJSON(resp, &summaries); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].ItemCount != 12 {
		t.Errorf("itemCount = %d, want 12", summaries[0].ItemCount)
	}
}

func TestResolveCourseFlagWins(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	got, err := resolveCourse(ctx, ts.client(), "go101")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "go101" {
		t.Errorf("course = %q, want go101", got)
	}
	if len(ts.requests) != 0 {
		t.Errorf("flag-provided course should not hit the daemon, saw %d requests", len(ts.requests))
	}
}

func TestResolveCourseFallsBackToSelected(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /selected-course": `{"courseId":"db201"}`,
	})

	got, err := resolveCourse(ctx, ts.client(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "db201" {
		t.Errorf("course = %q, want db201", got)
	}
}

func TestResolveCourseNothingSelected(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	_, err := resolveCourse(ctx, ts.client(), "")
	if err == nil {
		t.Fatal("expected error when nothing is selected")
	}
	if !strings.Contains(err.Error(), "no course selected") {
		t.Errorf("error = %q, want it to mention 'no course selected'", err.Error())
	}
}

func TestChatAskRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat/go101": `{"role":"assistant","text":"Channels synchronize goroutines.","citations":[{"label":"Lecture 3","url":"https://example.edu/l3"}]}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/chat/go101", map[string]string{"question": "what are channels?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var reply messageView
	if err := decodeJSON(resp, &reply); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if reply.Role != "assistant" {
		t.Errorf("role = %q, want assistant", reply.Role)
	}
	if len(reply.Citations) != 1 || reply.Citations[0].URL != "https://example.edu/l3" {
		t.Errorf("citations = %+v", reply.Citations)
	}
}

func TestImportStripsLinkPrefix(t *testing.T) {
	link := "https://studydesk.app/share#eyJmYWtlIjoidmFsdWUifQ"

	fragment := link
	if i := strings.LastIndex(fragment, "#"); i >= 0 {
		fragment = fragment[i+1:]
	}
	if fragment != "eyJmYWtlIjoidmFsdWUifQ" {
		t.Errorf("fragment = %q", fragment)
	}
}

func TestStatusStopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSONErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		w.Write([]byte(`{"error":{"message":"deck import contains no cards","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "t",
		httpClient: ts.Client(),
	}

	resp, err := client.post(ctx, "/import", map[string]string{"fragment": "x"})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "deck import contains no cards") {
		t.Errorf("error = %q, want the server reason surfaced", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestRoleLabel(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	tests := []struct{ role, want string }{
		{"user", "you"},
		{"assistant", "tutor"},
		{"error", "error"},
		{"system", "system"},
	}
	for _, tt := range tests {
		if got := roleLabel(tt.role); got != tt.want {
			t.Errorf("roleLabel(%q) = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4200

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4200" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4200 in ShowAll output")
	}
}

func TestCountLabel(t *testing.T) {
	tests := []struct {
		count, limit int
		want         string
	}{
		{5, 100, "5"},
		{0, 100, "0"},
		{100, 100, "100+"},
		{150, 100, "150+"},
	}
	for _, tt := range tests {
		got := countLabel(tt.count, tt.limit)
		if got != tt.want {
			t.Errorf("countLabel(%d, %d) = %q, want %q", tt.count, tt.limit, got, tt.want)
		}
	}
}
