package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"boards/internal/mutation"
	"boards/internal/projection"
)

// POST /api/boards/:board/sync — схема по workflow, затем недостающие строки.
// Схема меняется через журнал (отменяемо), строки создаются напрямую и идемпотентно;
// о новых строках подписчики узнают из события sync.
func (s *Server) SyncBoard(c *gin.Context) {
	if s.pipeline == nil {
		s.writeError(c, projection.ErrNotSynced)
		return
	}
	ctx := c.Request.Context()
	id := c.Param("board")

	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.pipeline.SyncSchema(ctx, s.editor(actorOf(c)), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.log.Perform(ctx, e); err != nil {
		s.writeError(c, err)
		return
	}
	created, err := s.pipeline.MaterializeMissingRows(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if created > 0 {
		s.log.Broadcaster().Broadcast(mutation.Event{Type: mutation.EventSync, Label: "materialize rows", Actor: actorOf(c), BlockIDs: []string{id}})
	}
	b, err := s.repo.Board(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schemaChanged": len(e.Forward) > 0,
		"createdRows":   created,
		"properties":    b.Properties,
	})
}

type historyResp struct {
	Label    string   `json:"label"`
	Actor    string   `json:"actor,omitempty"`
	BlockIDs []string `json:"blockIds"`
	CanUndo  bool     `json:"canUndo"`
	CanRedo  bool     `json:"canRedo"`
}

func (s *Server) history(c *gin.Context, step func(*mutation.Log) (mutation.Entry, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := step(s.log)
	if err != nil {
		s.writeError(c, err)
		return
	}
	ids := make([]string, 0, len(e.Forward))
	seen := map[string]bool{}
	for _, p := range e.Forward {
		if !seen[p.ID] {
			seen[p.ID] = true
			ids = append(ids, p.ID)
		}
	}
	c.JSON(http.StatusOK, historyResp{
		Label: e.Label, Actor: e.Actor, BlockIDs: ids,
		CanUndo: s.log.CanUndo(), CanRedo: s.log.CanRedo(),
	})
}

// POST /api/undo
func (s *Server) Undo(c *gin.Context) {
	s.history(c, func(l *mutation.Log) (mutation.Entry, error) { return l.Undo(c.Request.Context()) })
}

// POST /api/redo
func (s *Server) Redo(c *gin.Context) {
	s.history(c, func(l *mutation.Log) (mutation.Entry, error) { return l.Redo(c.Request.Context()) })
}
