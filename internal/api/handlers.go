package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"boards/internal/board"
	"boards/internal/edit"
	"boards/internal/mutation"
)

// GET /api/boards
func (s *Server) ListBoards(c *gin.Context) {
	bs, err := s.repo.Boards(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bs)
}

type createBoardReq struct {
	Title       string             `json:"title"`
	Template    string             `json:"template"`
	SpaceID     string             `json:"spaceId"`
	SourceType  string             `json:"sourceType"`
	Selection   *board.Selection   `json:"selection"`
	Properties  []board.Property   `json:"properties"`
	Permissions []board.Permission `json:"permissions"`
}

// POST /api/boards
func (s *Server) CreateBoard(c *gin.Context) {
	var req createBoardReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		badRequest(c, ferr(ErrRequired, "title", "Field 'title' is required"))
		return
	}
	switch req.SourceType {
	case "", board.SourceProposals:
	default:
		badRequest(c, ferr(ErrTypeMismatch, "sourceType", "unknown source type "+req.SourceType))
		return
	}

	props := req.Properties
	if req.Template != "" {
		t, ok := s.template(req.Template)
		if !ok {
			badRequest(c, ferr(ErrNotFound, "template", "unknown board template "+req.Template))
			return
		}
		s.refMu.RLock()
		fromTemplate, err := t.Properties(s.catalogs)
		s.refMu.RUnlock()
		if err != nil {
			badRequest(c, ferr(ErrInvalidInput, "template", err.Error()))
			return
		}
		props = append(fromTemplate, props...)
	}

	b := board.Board{
		Title:       req.Title,
		SpaceID:     req.SpaceID,
		SourceType:  req.SourceType,
		Selection:   req.Selection,
		Properties:  props,
		Permissions: req.Permissions,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, created, v, err := s.editor(actorOf(c)).CreateBoard(b)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.log.Perform(c.Request.Context(), e); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"board": created, "view": v})
}

// GET /api/boards/:board
func (s *Server) GetBoard(c *gin.Context) {
	b, err := s.repo.Board(c.Request.Context(), c.Param("board"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	views, err := s.repo.Views(c.Request.Context(), b.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board": b, "views": views})
}

type propertyReq struct {
	board.Property
	// Catalog: имя справочника для вариантов select/multi_select
	Catalog string `json:"catalog"`
	Index   *int   `json:"index"`
}

// POST /api/boards/:board/properties
func (s *Server) AddProperty(c *gin.Context) {
	var req propertyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	p := req.Property
	if req.Catalog != "" {
		cat, ok := s.catalog(req.Catalog)
		if !ok {
			badRequest(c, ferr(ErrNotFound, "catalog", "unknown catalog "+req.Catalog))
			return
		}
		p.Options = append(cat.Options(), p.Options...)
	}
	var added board.Property
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		ed := s.editor(actorOf(c))
		e, np, err := ed.AddProperty(snap, p)
		if err != nil || req.Index == nil {
			added = np
			return e, err
		}
		// вставка сразу на место: добавление и перенос одной записью
		after := snap
		after.Board.Properties = append(append([]board.Property(nil), snap.Board.Properties...), np)
		mv, err := ed.MoveProperty(after, np.ID, *req.Index)
		if err != nil {
			return mutation.Entry{}, err
		}
		added = np
		return merge(e, mv), nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

// merge склеивает две записи, построенные по последовательным снимкам, в одну.
func merge(a, b mutation.Entry) mutation.Entry {
	a.Forward = append(a.Forward, b.Forward...)
	a.Backward = append(a.Backward, b.Backward...)
	return a
}

type propertyPatchReq struct {
	Name     *string         `json:"name"`
	Options  *[]board.Option `json:"options"`
	Private  *bool           `json:"private"`
	ReadOnly *bool           `json:"readOnly"`
}

// PATCH /api/boards/:board/properties/:property
func (s *Server) UpdateProperty(c *gin.Context) {
	var req propertyPatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		return s.editor(actorOf(c)).UpdateProperty(snap, c.Param("property"), edit.PropertyPatch{
			Name: req.Name, Options: req.Options, Private: req.Private, ReadOnly: req.ReadOnly,
		})
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/boards/:board/properties/:property/type
func (s *Server) ChangePropertyType(c *gin.Context) {
	var req struct {
		Type board.PropertyType `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if req.Type == "" {
		badRequest(c, ferr(ErrRequired, "type", "Field 'type' is required"))
		return
	}
	if req.Type.Synced() {
		badRequest(c, ferr(ErrReadOnly, "type", "workflow column types are managed by sync"))
		return
	}
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		return s.editor(actorOf(c)).ChangeType(snap, c.Param("property"), req.Type)
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/boards/:board/properties/:property/move
func (s *Server) MoveProperty(c *gin.Context) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if req.Index == nil {
		badRequest(c, ferr(ErrRequired, "index", "Field 'index' is required"))
		return
	}
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		return s.editor(actorOf(c)).MoveProperty(snap, c.Param("property"), *req.Index)
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/boards/:board/properties/:property
func (s *Server) DeleteProperty(c *gin.Context) {
	err := s.change(c.Request.Context(), c.Param("board"), func(snap edit.Snapshot) (mutation.Entry, error) {
		return s.editor(actorOf(c)).DeleteProperty(snap, c.Param("property"))
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/boards/:board/lint
func (s *Server) LintBoard(c *gin.Context) {
	b, err := s.repo.Board(c.Request.Context(), c.Param("board"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	views, err := s.repo.Views(c.Request.Context(), b.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	issues := SchemaLint(b, views)
	if issues == nil {
		issues = []SchemaIssue{}
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}
