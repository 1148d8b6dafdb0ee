package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"boards/internal/board"
	"boards/internal/edit"
	"boards/internal/mutation"
)

type cardReq struct {
	ID       string                     `json:"id"`
	Title    *string                    `json:"title"`
	ParentID string                     `json:"parentId"`
	Content  string                     `json:"contentText"`
	Values   map[string]json.RawMessage `json:"values"`
}

// values разбирает сырые значения ячеек; ошибка формата — ошибка конкретной колонки.
func (r cardReq) values() (map[string]board.Value, *FieldError) {
	if r.Values == nil {
		return nil, nil
	}
	out := make(map[string]board.Value, len(r.Values))
	for pid, raw := range r.Values {
		v, err := edit.ValueFromJSON(raw)
		if err != nil {
			fe := ferr(ErrTypeMismatch, pid, "malformed value: "+err.Error())
			return nil, &fe
		}
		out[pid] = v
	}
	return out, nil
}

// POST /api/boards/:board/cards
func (s *Server) CreateCard(c *gin.Context) {
	var req cardReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	values, fe := req.values()
	if fe != nil {
		badRequest(c, *fe)
		return
	}
	card := board.Card{ID: req.ID, ParentID: req.ParentID, Content: req.Content, Values: values}
	if req.Title != nil {
		card.Title = *req.Title
	}
	var created board.Card
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		e, nc, err := s.editor(actorOf(c)).CreateCard(snap, card)
		created = nc
		return e, err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// PATCH /api/boards/:board/cards — пакет [{id, title?, values}], одна запись журнала.
func (s *Server) UpdateCards(c *gin.Context) {
	var reqs []cardReq
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if len(reqs) == 0 {
		badRequest(c, ferr(ErrRequired, "", "at least one card update is required"))
		return
	}
	updates := make([]edit.CardUpdate, 0, len(reqs))
	for i, r := range reqs {
		if r.ID == "" {
			badRequest(c, ferr(ErrRequired, "id", fmt.Sprintf("card id is required (item %d)", i)))
			return
		}
		values, fe := r.values()
		if fe != nil {
			badRequest(c, *fe)
			return
		}
		updates = append(updates, edit.CardUpdate{ID: r.ID, Title: r.Title, Values: values})
	}
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		return s.editor(actorOf(c)).UpdateCards(snap, updates)
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/boards/:board/cards/:card/duplicate
func (s *Server) DuplicateCard(c *gin.Context) {
	var dup board.Card
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		e, nc, err := s.editor(actorOf(c)).DuplicateCard(snap, c.Param("card"))
		dup = nc
		return e, err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dup)
}

// DELETE /api/boards/:board/cards/:card
func (s *Server) DeleteCard(c *gin.Context) {
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		return s.editor(actorOf(c)).DeleteCard(snap, c.Param("card"))
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
