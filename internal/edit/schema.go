package edit

import (
	"fmt"
	"slices"

	"boards/internal/board"
	"boards/internal/mutation"
)

// ReplaceSchema заменяет список колонок доски целиком (регенерация синхронизированной схемы).
// Пропавшие колонки вычищаются из представлений и карточек, новые добавляются в табличные виды.
func (e Editor) ReplaceSchema(s Snapshot, props []board.Property, label string) (mutation.Entry, error) {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if p.ID == "" || seen[p.ID] {
			return mutation.Entry{}, fmt.Errorf("%w: bad or duplicate property id %q", board.ErrInvalidInput, p.ID)
		}
		seen[p.ID] = true
	}
	removed := map[string]bool{}
	for _, p := range s.Board.Properties {
		if !seen[p.ID] {
			removed[p.ID] = true
		}
	}
	var added []string
	for _, p := range props {
		if s.Board.PropertyIndex(p.ID) < 0 {
			added = append(added, p.ID)
		}
	}

	after := cloneBoard(s.Board)
	after.Properties = make([]board.Property, len(props))
	for i, p := range props {
		p.Options = append([]board.Option(nil), p.Options...)
		after.Properties[i] = p
	}
	e.touchBoard(&after)

	var bd bundle
	if err := bd.diff(s.Board, after); err != nil {
		return mutation.Entry{}, err
	}
	if err := e.cascade(s, removed, added, &bd); err != nil {
		return mutation.Entry{}, err
	}
	return bd.entry(label, e.Actor), nil
}

// cascade убирает удалённые колонки из видов и карточек; added дописывается в видимые колонки таблиц.
func (e Editor) cascade(s Snapshot, removed map[string]bool, added []string, bd *bundle) error {
	gone := func(id string) bool { return removed[id] }
	for _, v := range s.Views {
		nv := cloneView(v)
		nv.VisiblePropertyIDs = slices.DeleteFunc(nv.VisiblePropertyIDs, gone)
		nv.SortOptions = slices.DeleteFunc(nv.SortOptions, func(o board.SortOption) bool { return removed[o.PropertyID] })
		for id := range removed {
			if nv.Filter.References(id) {
				nv.Filter = nv.Filter.WithoutProperty(id)
			}
		}
		if removed[nv.GroupByID] {
			nv.GroupByID = ""
		}
		if removed[nv.DateDisplayPropertyID] {
			nv.DateDisplayPropertyID = ""
		}
		if nv.Kind == board.ViewTable {
			for _, id := range added {
				if !slices.Contains(nv.VisiblePropertyIDs, id) {
					nv.VisiblePropertyIDs = append(nv.VisiblePropertyIDs, id)
				}
			}
		}
		e.touchView(&nv)
		if err := bd.diff(v, nv); err != nil {
			return err
		}
	}
	if len(removed) == 0 {
		return nil
	}
	for _, c := range s.Cards {
		nc := cloneCard(c)
		for id := range removed {
			delete(nc.Values, id)
		}
		if len(nc.Values) == len(c.Values) {
			continue
		}
		e.touchCard(&nc)
		if err := bd.diff(c, nc); err != nil {
			return err
		}
	}
	return nil
}
