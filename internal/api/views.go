package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"boards/internal/board"
	"boards/internal/edit"
	"boards/internal/export"
	"boards/internal/mutation"
)

// POST /api/boards/:board/views
func (s *Server) CreateView(c *gin.Context) {
	var req board.View
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	switch req.Kind {
	case "", board.ViewTable, board.ViewBoard, board.ViewGallery, board.ViewCalendar:
	default:
		badRequest(c, ferr(ErrTypeMismatch, "viewType", fmt.Sprintf("unknown view type %q", req.Kind)))
		return
	}
	var created board.View
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		e, v, err := s.editor(actorOf(c)).CreateView(snap, req)
		created = v
		return e, err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type viewPatchReq struct {
	Title              *string             `json:"title"`
	Kind               *board.ViewKind     `json:"viewType"`
	Filter             *board.FilterGroup  `json:"filter"`
	SortOptions        *[]board.SortOption `json:"sortOptions"`
	VisiblePropertyIDs *[]string           `json:"visiblePropertyIds"`
	CardOrder          *[]string           `json:"cardOrder"`
	GroupByID          *string             `json:"groupById"`
}

// PATCH /api/boards/:board/views/:view
func (s *Server) UpdateView(c *gin.Context) {
	var req viewPatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	var updated board.View
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		e, v, err := s.editor(actorOf(c)).UpdateView(snap, c.Param("view"), edit.ViewPatch{
			Title:              req.Title,
			Kind:               req.Kind,
			Filter:             req.Filter,
			SortOptions:        req.SortOptions,
			VisiblePropertyIDs: req.VisiblePropertyIDs,
			CardOrder:          req.CardOrder,
			GroupByID:          req.GroupByID,
		})
		updated = v
		return e, err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// viewCards: карточки представления для актора: проекция, фильтр, сортировка.
func (s *Server) viewCards(c *gin.Context, b board.Board, v board.View) ([]board.Card, bool) {
	ctx := c.Request.Context()
	cards, err := s.repo.Cards(ctx, b.ID)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	if s.pipeline != nil {
		if cards, err = s.pipeline.Project(ctx, actorOf(c), b, cards); err != nil {
			s.writeError(c, err)
			return nil, false
		}
	}
	return s.runner.Apply(b, v, cards), true
}

// GET /api/boards/:board/views/:view/cards?limit=&offset=&sort=
func (s *Server) ViewCards(c *gin.Context) {
	b, v, ok := s.loadView(c)
	if !ok {
		return
	}
	lp := parseListParams(c.Request.URL.Query())
	if len(lp.Sort) > 0 {
		v.SortOptions = lp.Sort
	}
	cards, ok := s.viewCards(c, b, v)
	if !ok {
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(len(cards)))
	c.JSON(http.StatusOK, page(cards, lp))
}

// GET /api/boards/:board/views/:view/export
func (s *Server) ExportView(c *gin.Context) {
	b, v, ok := s.loadView(c)
	if !ok {
		return
	}
	cards, ok := s.viewCards(c, b, v)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, b, v, cards); err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(b, v)))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func exportName(b board.Board, v board.View) string {
	name := b.Title
	if v.Title != "" {
		name += " - " + v.Title
	}
	return name + ".tsv"
}
