package reference

import (
	"sort"

	"boards/internal/board"
)

// Catalog: именованный набор вариантов для select/multi_select колонок
type Catalog struct {
	Name  string `yaml:"name"`
	Items []Item `yaml:"items"`
}

type Item struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Color string `yaml:"color,omitempty"`
	// Order: позиция в колонке; при равенстве порядок файла
	Order int `yaml:"order,omitempty"`
}

// Options превращает справочник в варианты колонки. Code становится id варианта,
// чтобы одна и та же позиция справочника совпадала на разных досках.
func (c Catalog) Options() []board.Option {
	items := append([]Item(nil), c.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	out := make([]board.Option, 0, len(items))
	for _, it := range items {
		name := it.Name
		if name == "" {
			name = it.Code
		}
		out = append(out, board.Option{ID: it.Code, Value: name, Color: it.Color})
	}
	return out
}

// Catalogs: справочники по имени.
type Catalogs map[string]Catalog
