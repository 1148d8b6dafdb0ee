package api

import (
	"fmt"
	"sort"
	"strings"

	"boards/internal/board"
	"boards/internal/dsl"
	"boards/internal/reference"
)

type SchemaIssue struct {
	Scope   string `json:"scope"` // board id, view id или имя шаблона
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SchemaLint проверяет схему доски и ссылки представлений на неё.
func SchemaLint(b board.Board, views []board.View) []SchemaIssue {
	var issues []SchemaIssue

	seen := map[string]bool{}
	for _, p := range b.Properties {
		if seen[p.ID] {
			issues = append(issues, SchemaIssue{
				Scope:   b.ID,
				Field:   p.ID,
				Code:    "duplicate_property_id",
				Message: fmt.Sprintf("property id %s is used more than once", p.ID),
			})
		}
		seen[p.ID] = true

		if !p.Type.Valid() {
			issues = append(issues, SchemaIssue{
				Scope:   b.ID,
				Field:   p.ID,
				Code:    "unknown_type",
				Message: fmt.Sprintf("property %q has unknown type %q", p.Name, p.Type),
			})
		}

		// дубли значений вариантов неотличимы в интерфейсе и в фильтре
		values := map[string]bool{}
		for _, o := range p.Options {
			k := strings.ToLower(strings.TrimSpace(o.Value))
			if values[k] {
				issues = append(issues, SchemaIssue{
					Scope:   b.ID,
					Field:   p.ID,
					Code:    "duplicate_option_value",
					Message: fmt.Sprintf("property %q has option %q more than once", p.Name, o.Value),
				})
			}
			values[k] = true
		}
	}

	known := func(id string) bool { return id == board.TitlePropertyID || seen[id] }
	for _, v := range views {
		for _, id := range v.VisiblePropertyIDs {
			if !known(id) {
				issues = append(issues, missingRef(v, id, "visiblePropertyIds"))
			}
		}
		for _, so := range v.SortOptions {
			if !known(so.PropertyID) {
				issues = append(issues, missingRef(v, so.PropertyID, "sortOptions"))
			}
		}
		v.Filter.Walk(func(c board.FilterClause) {
			if !known(c.PropertyID) {
				issues = append(issues, missingRef(v, c.PropertyID, "filter"))
			}
		})
		if v.GroupByID != "" && !known(v.GroupByID) {
			issues = append(issues, missingRef(v, v.GroupByID, "groupById"))
		}
	}
	return issues
}

func missingRef(v board.View, id, where string) SchemaIssue {
	return SchemaIssue{
		Scope:   v.ID,
		Field:   id,
		Code:    "missing_property",
		Message: fmt.Sprintf("view %q references missing property %s in %s", v.Title, id, where),
	}
}

// TemplateLint строит схему каждого шаблона с данными справочниками и собирает ошибки.
func TemplateLint(templates map[string]*dsl.Template, catalogs reference.Catalogs) []SchemaIssue {
	names := make([]string, 0, len(templates))
	for n := range templates {
		names = append(names, n)
	}
	sort.Strings(names)

	var issues []SchemaIssue
	for _, n := range names {
		if _, err := templates[n].Properties(catalogs); err != nil {
			issues = append(issues, SchemaIssue{
				Scope:   n,
				Code:    "template_invalid",
				Message: err.Error(),
			})
		}
	}
	return issues
}
