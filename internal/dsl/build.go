package dsl

import (
	"fmt"

	"boards/internal/board"
	"boards/internal/reference"
)

// Properties строит схему доски по шаблону. Id колонок и вариантов свежие,
// кроме вариантов из справочника: там id — код позиции.
func (t *Template) Properties(catalogs reference.Catalogs) ([]board.Property, error) {
	out := make([]board.Property, 0, len(t.Fields))
	seen := map[string]bool{}
	for _, f := range t.Fields {
		if seen[f.Name] {
			return nil, fmt.Errorf("board %s: duplicate field %q", t.Name, f.Name)
		}
		seen[f.Name] = true

		typ := board.PropertyType(f.Type)
		if !typ.Valid() || typ.Synced() {
			return nil, fmt.Errorf("board %s: field %s: unknown type %q", t.Name, f.Name, f.Type)
		}
		p := board.Property{
			ID:       board.NewID(),
			Name:     f.Name,
			Type:     typ,
			ReadOnly: f.Flag("readonly"),
			Private:  f.Flag("private"),
		}
		if name, ok := f.Options["catalog"]; ok {
			if !typ.HasOptions() {
				return nil, fmt.Errorf("board %s: field %s: catalog on non-choice type %s", t.Name, f.Name, f.Type)
			}
			c, ok := catalogs[name]
			if !ok {
				return nil, fmt.Errorf("board %s: field %s: unknown catalog %q", t.Name, f.Name, name)
			}
			p.Options = c.Options()
		}
		for _, ch := range f.Choices {
			if _, dup := p.OptionByValue(ch); dup {
				continue
			}
			p.Options = append(p.Options, board.Option{ID: board.NewOptionID(), Value: ch})
		}
		out = append(out, p)
	}
	return out, nil
}
