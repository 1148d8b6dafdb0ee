package view

import (
	"log"

	"boards/internal/board"
	"boards/internal/filter"
)

// Runner применяет представление целиком. Нулевое значение готово к работе.
type Runner struct {
	Filter filter.Engine
	Sorter Sorter
}

// New: Runner с общим логгером для фильтра и сортировки.
func New(logger *log.Logger) Runner {
	return Runner{Filter: filter.Engine{Logger: logger}, Sorter: Sorter{Logger: logger}}
}

// Apply фильтрует и сортирует карточки представления. Входной срез не меняется.
func (r Runner) Apply(b board.Board, v board.View, cards []board.Card) []board.Card {
	out := r.Filter.ApplyGroup(v.Filter, b, cards)
	r.Sorter.Sort(b, v, out)
	return out
}

// VisibleProperties: видимые колонки в порядке VisibleIDs; отсутствующие в схеме пропускаются.
func (r Runner) VisibleProperties(b board.Board, v board.View) []board.Property {
	ids := v.VisibleIDs()
	out := make([]board.Property, 0, len(ids))
	for _, id := range ids {
		if id == board.TitlePropertyID {
			out = append(out, TitleProperty())
			continue
		}
		p, ok := b.Property(id)
		if !ok {
			r.Sorter.logf("view: %s: visible property %s is not in board %s", v.ID, id, b.ID)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Display: отображаемые значения ячейки: id вариантов заменяются их текстом.
func Display(p board.Property, c board.Card) []string {
	if p.ID == board.TitlePropertyID {
		if c.Title == "" {
			return nil
		}
		return []string{c.Title}
	}
	v := c.Value(p.ID)
	if v.IsEmpty() {
		switch p.Type {
		case board.TypeCreatedTime:
			return []string{FormatNumber(float64(c.CreatedAt))}
		case board.TypeUpdatedTime:
			return []string{FormatNumber(float64(c.UpdatedAt))}
		case board.TypeCreatedBy:
			v = board.Text(c.CreatedBy)
		case board.TypeUpdatedBy:
			v = board.Text(c.UpdatedBy)
		}
	}
	raw := v.Strings()
	if len(p.Options) == 0 {
		return raw
	}
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		if o, ok := p.OptionByID(id); ok {
			out = append(out, o.Value)
			continue
		}
		out = append(out, id)
	}
	return out
}
