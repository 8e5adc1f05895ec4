package api

import (
	"github.com/starford/focusguard/internal/block"
	"github.com/starford/focusguard/internal/index"
	"github.com/starford/focusguard/internal/notesvc"
)

// SaveNoteRequest is the request body for saving a note.
type SaveNoteRequest struct {
	Content string `json:"content" example:"## Today's focus\n- [ ] ship"`
}

// AddTaskRequest is the request body for adding a task to today's note.
type AddTaskRequest struct {
	Text string `json:"text" example:"review PR" validate:"required"`
}

// OKResponse is the bare success envelope.
type OKResponse struct {
	OK bool `json:"ok" example:"true"`
}

// NoteResponse wraps a note.
type NoteResponse struct {
	OK bool `json:"ok"`
	*notesvc.Note
}

// BlockDTO is one block of the parsed note view.
type BlockDTO struct {
	ID      string `json:"id" example:"b3"`
	Type    string `json:"type" example:"task"`
	Level   int    `json:"level,omitempty" example:"2"`
	Checked bool   `json:"checked,omitempty"`
	Content string `json:"content"`
}

// BlocksResponse wraps the parsed block view of a note.
type BlocksResponse struct {
	OK     bool       `json:"ok"`
	Date   string     `json:"date"`
	Blocks []BlockDTO `json:"blocks"`
}

// StreakResponse wraps the streak.
type StreakResponse struct {
	OK bool `json:"ok"`
	*notesvc.Streak
}

// ConfigResponse wraps the client-visible settings.
type ConfigResponse struct {
	OK bool `json:"ok"`
	notesvc.Settings
}

// TasksResponse lists open tasks.
type TasksResponse struct {
	OK    bool            `json:"ok"`
	Tasks []index.TaskRow `json:"tasks"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	OK      bool                 `json:"ok"`
	Results []index.SearchResult `json:"results"`
}

func toBlockDTOs(blocks []block.Block) []BlockDTO {
	out := make([]BlockDTO, len(blocks))
	for i, b := range blocks {
		out[i] = BlockDTO{
			ID:      b.ID.String(),
			Type:    b.Type().String(),
			Level:   b.Level(),
			Checked: b.Checked(),
			Content: b.Content,
		}
	}
	return out
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
