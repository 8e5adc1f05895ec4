// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the daily-note journal to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/focusguard/internal/apperr"
	"github.com/starford/focusguard/internal/daily"
	"github.com/starford/focusguard/internal/notesvc"
	"github.com/starford/focusguard/internal/storage"
)

const formatURI = "focusguard://note-format"

// Server wraps the MCP server with the journal tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *notesvc.Service
	store storage.Provider
}

// New creates a new MCP server with all tools registered.
func New(svc *notesvc.Service, store storage.Provider, version string) *Server {
	s := &Server{svc: svc, store: store}
	if version == "" {
		version = "dev"
	}

	s.mcp = server.NewMCPServer(
		"FocusGuard",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("today_note",
		mcp.WithDescription("Return today's daily note, creating it from the template "+
			"(with open tasks carried over from the last week) if needed."),
	), s.todayNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the daily note for a date."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date in YYYY-MM-DD format")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the dates that have a daily note, newest first."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through daily notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_streak",
		mcp.WithDescription("Current streak of meaningful days and the last seven days."),
	), s.getStreak)

	s.mcp.AddTool(mcp.NewTool("list_open_tasks",
		mcp.WithDescription("List unchecked tasks from recent daily notes, newest first."),
		mcp.WithNumber("days", mcp.Description("Window in days, today included (default 7)")),
	), s.listOpenTasks)

	s.mcp.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Add an unchecked task to today's focus list. "+
			"Read the format via get_note_contract or the "+formatURI+" resource first."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Task text without the checkbox")),
	), s.addTask)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the daily note format contract."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Daily Note Format",
			mcp.WithResourceDescription("Markdown subset and sections used by daily notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) todayNote(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := s.svc.Today(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(n.Content), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Note(ctx, date)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("no note for %s", date)), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(n.Content), nil
}

func (s *Server) listNotes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.store.List(s.svc.Settings().NotesDir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var dates []string
	for _, f := range files {
		if d, ok := daily.DateFromPath(f.Path); ok {
			dates = append(dates, d)
		}
	}
	// ISO dates sort lexically.
	slices.Sort(dates)
	slices.Reverse(dates)
	if len(dates) == 0 {
		return mcp.NewToolResultText("no notes yet"), nil
	}
	return mcp.NewToolResultText(strings.Join(dates, "\n")), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getStreak(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Streak(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st), nil
}

func (s *Server) listOpenTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := req.GetInt("days", daily.CarryoverDays)
	tasks, err := s.svc.OpenTasks(ctx, days)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("no open tasks"), nil
	}
	lines := make([]string, len(tasks))
	for i, t := range tasks {
		lines[i] = t.Date + "  - [ ] " + t.Text
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) addTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.AddTask(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added to %s", n.Date)), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
