package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/focusguard/internal/apperr"
	"github.com/starford/focusguard/internal/notesvc"
)

const maxBody = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *notesvc.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *notesvc.Service) *Handler {
	return &Handler{svc: svc}
}

// Ping handles GET /ping.
//
//	@Summary	Liveness probe
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	OKResponse
//	@Router		/ping [get]
func (h *Handler) Ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// Today handles GET /note.
//
//	@Summary	Get today's note, creating it if needed
//	@Tags		notes
//	@Produce	json
//	@Success	200	{object}	NoteResponse
//	@Security	BearerAuth
//	@Router		/note [get]
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Today(r.Context())
	if err != nil {
		h.fail(w, "today", "", err)
		return
	}
	writeNote(w, note)
}

// SaveToday handles POST /note.
//
//	@Summary	Save today's note
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		If-Match	header		string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param		body		body		SaveNoteRequest	true	"Note content"
//	@Success	200			{object}	NoteResponse
//	@Failure	409			{object}	errResponse
//	@Security	BearerAuth
//	@Router		/note [post]
func (h *Handler) SaveToday(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSave(w, r)
	if !ok {
		return
	}
	note, err := h.svc.SaveToday(r.Context(), req.Content, ifMatch(r))
	if err != nil {
		h.fail(w, "save today", "", err)
		return
	}
	writeNote(w, note)
}

// Note handles GET /note/{date}.
//
//	@Summary	Get the note for a date
//	@Tags		notes
//	@Produce	json
//	@Param		date	path		string	true	"Date (YYYY-MM-DD)"
//	@Success	200		{object}	NoteResponse
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/note/{date} [get]
func (h *Handler) Note(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	note, err := h.svc.Note(r.Context(), date)
	if err != nil {
		h.fail(w, "get note", date, err)
		return
	}
	writeNote(w, note)
}

// Save handles POST /note/{date}.
//
//	@Summary	Save the note for a past or current date
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		date		path		string			true	"Date (YYYY-MM-DD)"
//	@Param		If-Match	header		string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param		body		body		SaveNoteRequest	true	"Note content"
//	@Success	200			{object}	NoteResponse
//	@Failure	400			{object}	errResponse
//	@Failure	409			{object}	errResponse
//	@Security	BearerAuth
//	@Router		/note/{date} [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	req, ok := decodeSave(w, r)
	if !ok {
		return
	}
	note, err := h.svc.Save(r.Context(), date, req.Content, ifMatch(r))
	if err != nil {
		h.fail(w, "save note", date, err)
		return
	}
	writeNote(w, note)
}

// Blocks handles GET /note/{date}/blocks.
//
//	@Summary	Get the parsed block view of a note
//	@Tags		notes
//	@Produce	json
//	@Param		date	path		string	true	"Date (YYYY-MM-DD)"
//	@Success	200		{object}	BlocksResponse
//	@Failure	404		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/note/{date}/blocks [get]
func (h *Handler) Blocks(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	blocks, err := h.svc.Blocks(r.Context(), date)
	if err != nil {
		h.fail(w, "blocks", date, err)
		return
	}
	writeJSON(w, http.StatusOK, BlocksResponse{OK: true, Date: date, Blocks: toBlockDTOs(blocks)})
}

// Streak handles GET /streak.
//
//	@Summary	Current streak and the last seven days
//	@Tags		streak
//	@Produce	json
//	@Success	200	{object}	StreakResponse
//	@Security	BearerAuth
//	@Router		/streak [get]
func (h *Handler) Streak(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Streak(r.Context())
	if err != nil {
		h.fail(w, "streak", "", err)
		return
	}
	writeJSON(w, http.StatusOK, StreakResponse{OK: true, Streak: s})
}

// Config handles GET /config.
func (h *Handler) Config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ConfigResponse{OK: true, Settings: h.svc.Settings()})
}

// Tasks handles GET /tasks.
//
//	@Summary	Open tasks of the last days
//	@Tags		tasks
//	@Produce	json
//	@Param		days	query		int	false	"Window in days, today included"
//	@Success	200		{object}	TasksResponse
//	@Security	BearerAuth
//	@Router		/tasks [get]
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	tasks, err := h.svc.OpenTasks(r.Context(), days)
	if err != nil {
		h.fail(w, "open tasks", "", err)
		return
	}
	writeJSON(w, http.StatusOK, TasksResponse{OK: true, Tasks: nonNilSlice(tasks)})
}

// AddTask handles POST /tasks.
//
//	@Summary	Add a task to today's note
//	@Tags		tasks
//	@Accept		json
//	@Produce	json
//	@Param		body	body		AddTaskRequest	true	"Task"
//	@Success	200		{object}	NoteResponse
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/tasks [post]
func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req AddTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.AddTask(r.Context(), req.Text)
	if err != nil {
		h.fail(w, "add task", "", err)
		return
	}
	writeNote(w, note)
}

// Search handles GET /search.
//
//	@Summary	Full-text search across notes
//	@Tags		search
//	@Produce	json
//	@Param		q		query		string	true	"Search query"
//	@Param		limit	query		int		false	"Max results"
//	@Success	200		{object}	SearchResponse
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{OK: true, Results: nonNilSlice(results)})
}

// fail maps service errors to status codes.
func (h *Handler) fail(w http.ResponseWriter, op, date string, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid date"))
	case errors.Is(err, apperr.ErrInvalidTask):
		writeJSON(w, http.StatusBadRequest, errorBody("task text is required"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	default:
		slog.Error(op+" failed", slog.String("date", date), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decodeSave(w http.ResponseWriter, r *http.Request) (SaveNoteRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req SaveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("note too large"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		}
		return req, false
	}
	return req, true
}

// ifMatch reads the If-Match header, stripping ETag quotes.
func ifMatch(r *http.Request) string {
	return strings.Trim(r.Header.Get("If-Match"), `"`)
}

func writeNote(w http.ResponseWriter, note *notesvc.Note) {
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, NoteResponse{OK: true, Note: note})
}
