package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/domain"
)

func (h *Handler) GetAllNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.repository.GetAllNotes()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if len(notes) == 0 {
		h.notFound(w, r, "No notes found")
		return
	}

	h.successResponse(w, r, http.StatusOK, "Notes retrieved", notes)
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title" validate:"required"`
		Text   string `json:"text" validate:"required"`
		UserID int64  `json:"user" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 检查标题是否重复（精确匹配），并发时以唯一索引的冲突为准
	if _, err := h.repository.GetNoteByTitle(req.Title); err == nil {
		h.conflict(w, r, "Duplicate title")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		h.internalServerError(w, r, err)
		return
	}

	// 这里不校验所属用户是否存在，user 字段按原样信任
	note := &domain.Note{
		Title:  req.Title,
		Text:   req.Text,
		UserID: req.UserID,
	}

	if err := h.repository.CreateNote(note); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "notes_title_key":
			h.conflict(w, r, "Duplicate title")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, http.StatusCreated, "New note has been created", nil)
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        int64  `json:"id" validate:"required"`
		Title     string `json:"title" validate:"required"`
		Text      string `json:"text" validate:"required"`
		UserID    int64  `json:"user" validate:"required"`
		Completed *bool  `json:"completed" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	note, err := h.repository.GetNoteByID(req.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.notFound(w, r, "Note not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 检查新标题是否被其他笔记占用，允许改回自己当前的标题
	if duplicate, err := h.repository.GetNoteByTitle(req.Title); err == nil {
		if duplicate.ID != req.ID {
			h.conflict(w, r, "Duplicate note title")
			return
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		h.internalServerError(w, r, err)
		return
	}

	// 四个字段整体替换，不做合并
	note.Title = req.Title
	note.Text = req.Text
	note.UserID = req.UserID
	note.Completed = *req.Completed

	if err := h.repository.UpdateNote(note); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "notes_title_key":
			h.conflict(w, r, "Duplicate note title")
		case errors.Is(err, sql.ErrNoRows):
			h.notFound(w, r, "Note not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, http.StatusOK, fmt.Sprintf("Note '%s' updated", note.Title), nil)
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	note, err := h.repository.GetNoteByID(req.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.notFound(w, r, "Note not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.repository.DeleteNote(note.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, fmt.Sprintf("Note with title '%s' is deleted", note.Title), nil)
}
