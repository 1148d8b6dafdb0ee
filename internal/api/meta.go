package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"boards/internal/board"
	"boards/internal/filter"
)

// ===== META HANDLERS =====

type metaType struct {
	Type       board.PropertyType `json:"type"`
	Class      board.Class        `json:"class"`
	Conditions []board.Condition  `json:"conditions"`
	HasOptions bool               `json:"hasOptions,omitempty"`
	Intrinsic  bool               `json:"intrinsic,omitempty"`
	Synced     bool               `json:"synced,omitempty"`
}

// GET /api/meta/types — типы колонок и допустимые для них условия фильтра.
func (s *Server) MetaTypes(c *gin.Context) {
	out := make([]metaType, 0, len(board.Types))
	for _, t := range board.Types {
		out = append(out, metaType{
			Type:       t,
			Class:      t.Class(),
			Conditions: filter.Conditions[t.Class()],
			HasOptions: t.HasOptions(),
			Intrinsic:  t.Intrinsic(),
			Synced:     t.Synced(),
		})
	}
	c.JSON(http.StatusOK, out)
}

type metaField struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Choices []string          `json:"choices,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

type metaTemplate struct {
	Name   string      `json:"name"`
	Fields []metaField `json:"fields"`
}

// GET /api/meta/templates
func (s *Server) MetaTemplates(c *gin.Context) {
	s.refMu.RLock()
	out := make([]metaTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		fields := make([]metaField, 0, len(t.Fields))
		for _, f := range t.Fields {
			fields = append(fields, metaField{Name: f.Name, Type: f.Type, Choices: f.Choices, Options: f.Options})
		}
		out = append(out, metaTemplate{Name: t.Name, Fields: fields})
	}
	s.refMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, out)
}

type metaCatalog struct {
	Name    string         `json:"name"`
	Options []board.Option `json:"options"`
}

// GET /api/meta/catalogs
func (s *Server) MetaCatalogs(c *gin.Context) {
	s.refMu.RLock()
	out := make([]metaCatalog, 0, len(s.catalogs))
	for name, cat := range s.catalogs {
		out = append(out, metaCatalog{Name: name, Options: cat.Options()})
	}
	s.refMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, out)
}
