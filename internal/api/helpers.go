package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"boards/internal/board"
)

// ActorHeader: кто выполняет запрос; аутентификация снаружи.
const ActorHeader = "X-Actor-Id"

func actorOf(c *gin.Context) string {
	if a := strings.TrimSpace(c.GetHeader(ActorHeader)); a != "" {
		return a
	}
	return "anonymous"
}

// loadView: представление, принадлежащее доске из пути.
func (s *Server) loadView(c *gin.Context) (board.Board, board.View, bool) {
	b, err := s.repo.Board(c.Request.Context(), c.Param("board"))
	if err != nil {
		s.writeError(c, err)
		return board.Board{}, board.View{}, false
	}
	v, err := s.repo.View(c.Request.Context(), c.Param("view"))
	if err != nil {
		s.writeError(c, err)
		return board.Board{}, board.View{}, false
	}
	if v.BoardID != b.ID {
		c.JSON(http.StatusNotFound, gin.H{"errors": []FieldError{ferr(ErrNotFound, "view", "view does not belong to board")}})
		return board.Board{}, board.View{}, false
	}
	return b, v, true
}
