package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter собирает маршруты; статические служебные пути регистрируются до параметризованных.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/api/meta/types", s.MetaTypes)
	r.GET("/api/meta/templates", s.MetaTemplates)
	r.GET("/api/meta/catalogs", s.MetaCatalogs)
	r.POST("/api/admin/reload", s.AdminReload)
	r.POST("/api/undo", s.Undo)
	r.POST("/api/redo", s.Redo)
	if s.hub != nil {
		r.GET("/api/ws", func(c *gin.Context) { s.hub.ServeWS(c.Writer, c.Request, actorOf(c)) })
	}

	boards := r.Group("/api/boards")
	{
		boards.GET("", s.ListBoards)
		boards.POST("", s.CreateBoard)
		boards.GET("/:board", s.GetBoard)
		boards.GET("/:board/lint", s.LintBoard)
		boards.POST("/:board/sync", s.SyncBoard)

		boards.POST("/:board/properties", s.AddProperty)
		boards.PATCH("/:board/properties/:property", s.UpdateProperty)
		boards.POST("/:board/properties/:property/type", s.ChangePropertyType)
		boards.POST("/:board/properties/:property/move", s.MoveProperty)
		boards.DELETE("/:board/properties/:property", s.DeleteProperty)

		boards.POST("/:board/cards", s.CreateCard)
		boards.PATCH("/:board/cards", s.UpdateCards)
		boards.POST("/:board/cards/:card/duplicate", s.DuplicateCard)
		boards.DELETE("/:board/cards/:card", s.DeleteCard)

		boards.POST("/:board/views", s.CreateView)
		boards.PATCH("/:board/views/:view", s.UpdateView)
		boards.GET("/:board/views/:view/cards", s.ViewCards)
		boards.GET("/:board/views/:view/export", s.ExportView)
	}
	return r
}

// RunServer слушает addr до отмены ctx, затем даёт запросам завершиться.
func RunServer(ctx context.Context, addr string, s *Server) error {
	srv := &http.Server{Addr: addr, Handler: NewRouter(s)}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Printf("api: listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
