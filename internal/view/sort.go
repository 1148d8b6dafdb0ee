// Package view применяет сохранённое представление к карточкам доски: фильтр, сортировка, видимые колонки.
package view

import (
	"log"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"boards/internal/board"
	"boards/internal/filter"
)

// Sorter сравнивает карточки по ключам представления.
type Sorter struct {
	Logger *log.Logger
}

func (s Sorter) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// sortKey: значение ячейки, подготовленное к сравнению.
type sortKey struct {
	empty bool
	num   float64
	text  string
	isNum bool
}

func keyFor(p board.Property, c board.Card) sortKey {
	if p.ID == board.TitlePropertyID {
		t := cases.Fold().String(c.Title)
		return sortKey{empty: t == "", text: t}
	}
	v := c.Value(p.ID)
	if v.IsEmpty() {
		switch p.Type {
		case board.TypeCreatedTime:
			return sortKey{num: float64(c.CreatedAt), isNum: true}
		case board.TypeUpdatedTime:
			return sortKey{num: float64(c.UpdatedAt), isNum: true}
		case board.TypeCreatedBy:
			v = board.Text(c.CreatedBy)
		case board.TypeUpdatedBy:
			v = board.Text(c.UpdatedBy)
		case board.TypeCheckbox:
			return sortKey{num: 0, isNum: true}
		default:
			return sortKey{empty: true}
		}
		if v.IsEmpty() {
			return sortKey{empty: true}
		}
	}
	switch p.Type.Class() {
	case board.ClassNumber:
		if f, ok := v.Float(); ok {
			return sortKey{num: f, isNum: true}
		}
		return sortKey{empty: true}
	case board.ClassBoolean:
		if v.First() == "true" {
			return sortKey{num: 1, isNum: true}
		}
		return sortKey{num: 0, isNum: true}
	case board.ClassDate:
		ms, ok, err := filter.ParseInstant(v.First())
		if err != nil || !ok {
			return sortKey{empty: true}
		}
		return sortKey{num: float64(ms), isNum: true}
	case board.ClassSelect, board.ClassMultiSelect:
		if p.Type.HasOptions() {
			// по порядку вариантов; неизвестный вариант после известных
			idx := p.OptionIndex(v.First())
			if idx < 0 {
				idx = len(p.Options)
			}
			return sortKey{num: float64(idx), isNum: true}
		}
	}
	return sortKey{text: cases.Fold().String(strings.Join(v.Strings(), ","))}
}

// Compare: пустые значения всегда в конце, независимо от направления.
func Compare(p board.Property, reversed bool, a, b board.Card) int {
	ka, kb := keyFor(p, a), keyFor(p, b)
	if ka.empty && kb.empty {
		return 0
	}
	if ka.empty != kb.empty {
		if ka.empty {
			return +1
		}
		return -1
	}
	rel := 0
	if ka.isNum && kb.isNum {
		switch {
		case ka.num < kb.num:
			rel = -1
		case ka.num > kb.num:
			rel = +1
		}
	} else {
		rel = strings.Compare(ka.text, kb.text)
	}
	if reversed {
		rel = -rel
	}
	return rel
}

// Sort упорядочивает карточки по ключам представления; при равенстве — ручной порядок cardOrder,
// затем время создания и id. Ключ по отсутствующей колонке логируется и пропускается.
func (s Sorter) Sort(b board.Board, v board.View, cards []board.Card) {
	type spec struct {
		prop     board.Property
		reversed bool
	}
	specs := make([]spec, 0, len(v.SortOptions))
	for _, o := range v.SortOptions {
		if o.PropertyID == board.TitlePropertyID {
			specs = append(specs, spec{prop: TitleProperty(), reversed: o.Reversed})
			continue
		}
		p, ok := b.Property(o.PropertyID)
		if !ok {
			s.logf("view: %s: sort by missing property %s ignored", v.ID, o.PropertyID)
			continue
		}
		specs = append(specs, spec{prop: p, reversed: o.Reversed})
	}
	order := make(map[string]int, len(v.CardOrder))
	for i, id := range v.CardOrder {
		if _, dup := order[id]; !dup {
			order[id] = i
		}
	}
	pos := func(id string) int {
		if i, ok := order[id]; ok {
			return i
		}
		return len(order)
	}

	sort.SliceStable(cards, func(i, j int) bool {
		for _, sp := range specs {
			if c := Compare(sp.prop, sp.reversed, cards[i], cards[j]); c != 0 {
				return c < 0
			}
		}
		if pi, pj := pos(cards[i].ID), pos(cards[j].ID); pi != pj {
			return pi < pj
		}
		if cards[i].CreatedAt != cards[j].CreatedAt {
			return cards[i].CreatedAt < cards[j].CreatedAt
		}
		return cards[i].ID < cards[j].ID
	})
}

// TitleProperty: синтетическое определение колонки заголовка.
func TitleProperty() board.Property {
	return board.Property{ID: board.TitlePropertyID, Name: "Title", Type: board.TypeText}
}

// FormatNumber: число без лишних нулей, как в ячейках.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
