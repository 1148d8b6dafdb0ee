package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"boards/internal/dsl"
	"boards/internal/reference"
)

type reloadReq struct {
	TemplatesDir string `json:"templatesDir"` // директория с *.board
	CatalogsDir  string `json:"catalogsDir"`  // директория со справочниками
}

// POST /api/admin/reload — перечитать шаблоны и справочники без рестарта.
// Новый набор применяется только если все шаблоны собираются с новыми справочниками.
func (s *Server) AdminReload(c *gin.Context) {
	var req reloadReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	templatesDir := strings.TrimSpace(req.TemplatesDir)
	if templatesDir == "" {
		templatesDir = s.templatesDir
	}
	catalogsDir := strings.TrimSpace(req.CatalogsDir)
	if catalogsDir == "" {
		catalogsDir = s.catalogsDir
	}

	templates, err := dsl.LoadAll(templatesDir)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template load error", "details": err.Error()})
		return
	}
	catalogs, err := reference.LoadCatalogs(catalogsDir)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "catalog load error", "details": err.Error()})
		return
	}
	if issues := TemplateLint(templates, catalogs); len(issues) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schema lint failed", "issues": issues})
		return
	}

	s.refMu.Lock()
	s.templates = templates
	s.catalogs = catalogs
	s.refMu.Unlock()
	s.logger.Printf("api: reloaded %d templates from %s, %d catalogs from %s", len(templates), templatesDir, len(catalogs), catalogsDir)

	c.JSON(http.StatusOK, gin.H{"templates": len(templates), "catalogs": len(catalogs)})
}
