// Package tutor is the HTTP client for the generation backend: it starts
// generation jobs, polls their status, and asks course questions. The
// backend's algorithms are out of scope here; this package only depends on
// the minimal response shapes.
package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkovar/studydesk/internal/citation"
	"github.com/mkovar/studydesk/internal/poll"
)

// JobHandle identifies a server-side generation job. It carries no
// semantics beyond equality.
type JobHandle struct {
	JobID string `json:"jobId"`
}

// AskResponse is a course-chat answer. Citations is the structured form;
// Sources is the legacy bare-URL form older backend versions emit.
type AskResponse struct {
	Answer    string              `json:"answer"`
	Citations []citation.Citation `json:"citations,omitempty"`
	Sources   []string            `json:"sources,omitempty"`
}

// Client communicates with the generation backend over HTTPS.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client targeting the given backend base URL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

type startRequest struct {
	CourseID string `json:"courseId"`
	Count    int    `json:"count"`
}

// StartDeck asks the backend to generate a flashcard deck for a course and
// returns the job handle to poll.
func (c *Client) StartDeck(ctx context.Context, courseID string, count int) (JobHandle, error) {
	return c.start(ctx, "/v1/decks", courseID, count)
}

// StartPracticeTest asks the backend to generate a practice test for a
// course and returns the job handle to poll.
func (c *Client) StartPracticeTest(ctx context.Context, courseID string, count int) (JobHandle, error) {
	return c.start(ctx, "/v1/practice-tests", courseID, count)
}

func (c *Client) start(ctx context.Context, path, courseID string, count int) (JobHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var handle JobHandle
	if err := c.postJSON(ctx, path, startRequest{CourseID: courseID, Count: count}, &handle); err != nil {
		return JobHandle{}, err
	}
	if handle.JobID == "" {
		return JobHandle{}, fmt.Errorf("start %s: backend returned no job id", path)
	}
	return handle, nil
}

// statusResponse mirrors the JSON returned by GET /v1/jobs/{id}.
type statusResponse struct {
	State    string          `json:"state"`
	Artifact json.RawMessage `json:"artifact,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// JobStatus fetches the current status of a job. An unknown state, or a
// finished state without an artifact, reads as still running.
func (c *Client) JobStatus(ctx context.Context, jobID string) (poll.Status[json.RawMessage], error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/jobs/"+jobID, nil)
	if err != nil {
		return poll.Status[json.RawMessage]{}, fmt.Errorf("creating status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return poll.Status[json.RawMessage]{}, fmt.Errorf("fetching job status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return poll.Status[json.RawMessage]{}, fmt.Errorf("job status: unexpected status %d", resp.StatusCode)
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return poll.Status[json.RawMessage]{}, fmt.Errorf("decoding job status: %w", err)
	}

	switch sr.State {
	case "finished":
		status := poll.Status[json.RawMessage]{State: poll.StateFinished}
		if len(sr.Artifact) > 0 && string(sr.Artifact) != "null" {
			status.Artifact = &sr.Artifact
		}
		return status, nil
	case "failed":
		return poll.Status[json.RawMessage]{State: poll.StateFailed, Reason: sr.Reason}, nil
	default:
		return poll.Status[json.RawMessage]{State: poll.StateRunning}, nil
	}
}

type askRequest struct {
	CourseID string `json:"courseId"`
	Question string `json:"question"`
}

// Ask sends a course question and returns the backend's answer with
// whatever citation shape it carries.
func (c *Client) Ask(ctx context.Context, courseID, question string) (AskResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var answer AskResponse
	if err := c.postJSON(ctx, "/v1/chat", askRequest{CourseID: courseID, Question: question}, &answer); err != nil {
		return AskResponse{}, err
	}
	return answer, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
