package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mkovar/studydesk/internal/chat"
	"github.com/mkovar/studydesk/internal/record"
	"github.com/mkovar/studydesk/internal/study"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Study *study.Service
	Decks *record.Store[[]record.Card]
	Tests *record.Store[record.Exam]
	Chats *chat.Store
}

// NewMCPServer creates an MCP server exposing the local study material to
// agent clients over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"studydesk",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("studydesk: local store of generated flashcard decks, practice tests, and course chat."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_decks",
			mcp.WithDescription("List stored flashcard deck summaries, most recent first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of decks (default 10)")),
		),
		mcpListDecks(deps),
	)

	s.AddTool(
		mcp.NewTool("get_deck",
			mcp.WithDescription("Fetch one flashcard deck with its cards."),
			mcp.WithString("id", mcp.Description("Deck id"), mcp.Required()),
		),
		mcpGetDeck(deps),
	)

	s.AddTool(
		mcp.NewTool("list_practice_tests",
			mcp.WithDescription("List stored practice test summaries, most recent first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of tests (default 10)")),
		),
		mcpListTests(deps),
	)

	s.AddTool(
		mcp.NewTool("get_practice_test",
			mcp.WithDescription("Fetch one practice test with its questions."),
			mcp.WithString("id", mcp.Description("Practice test id"), mcp.Required()),
		),
		mcpGetTest(deps),
	)

	s.AddTool(
		mcp.NewTool("course_chat",
			mcp.WithDescription("Ask the course tutor a question. The exchange is appended to the course transcript."),
			mcp.WithString("course_id", mcp.Description("Course id"), mcp.Required()),
			mcp.WithString("question", mcp.Description("The question to ask"), mcp.Required()),
		),
		mcpCourseChat(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"study://recent",
			"Recent Decks",
			mcp.WithResourceDescription("Most recently created deck summaries"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func clampLimit(req mcp.CallToolRequest) int {
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}

func mcpListDecks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpJSON(deps.Decks.List(clampLimit(req)))
	}
}

func mcpListTests(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpJSON(deps.Tests.List(clampLimit(req)))
	}
}

func mcpGetDeck(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		rec, ok := deps.Decks.GetByID(id)
		if !ok {
			return mcpError(fmt.Sprintf("deck %s not found", id)), nil
		}
		deps.Decks.MarkTouched(id)
		return mcpJSON(rec)
	}
}

func mcpGetTest(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		rec, ok := deps.Tests.GetByID(id)
		if !ok {
			return mcpError(fmt.Sprintf("practice test %s not found", id)), nil
		}
		deps.Tests.MarkTouched(id)
		return mcpJSON(rec)
	}
}

func mcpCourseChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		courseID, err := req.RequireString("course_id")
		if err != nil {
			return mcpError("course_id is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		reply, err := deps.Study.Ask(ctx, courseID, question)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}
		return mcpJSON(reply)
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		summaries := deps.Decks.List(10)

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("marshalling deck summaries: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
