package edit

import (
	"fmt"

	"boards/internal/board"
	"boards/internal/filter"
	"boards/internal/mutation"
)

// CreateView добавляет представление. Пустой вид — таблица со всеми колонками.
func (e Editor) CreateView(s Snapshot, v board.View) (mutation.Entry, board.View, error) {
	if s.Board.ID == "" {
		return mutation.Entry{}, board.View{}, fmt.Errorf("%w: board id is required", board.ErrInvalidInput)
	}
	if v.ID == "" {
		v.ID = board.NewID()
	}
	if v.Kind == "" {
		v.Kind = board.ViewTable
	}
	if v.Filter.Operation == "" {
		v.Filter.Operation = board.OperationAnd
	}
	if err := filter.Validate(v.Filter, s.Board); err != nil {
		return mutation.Entry{}, board.View{}, err
	}
	if v.VisiblePropertyIDs == nil {
		for _, p := range s.Board.Properties {
			v.VisiblePropertyIDs = append(v.VisiblePropertyIDs, p.ID)
		}
	}
	now := e.now()
	v.BoardID = s.Board.ID
	v.CreatedAt, v.UpdatedAt = now, now
	v.CreatedBy, v.UpdatedBy = e.Actor, e.Actor

	blk, err := v.ToBlock()
	if err != nil {
		return mutation.Entry{}, board.View{}, err
	}
	var bd bundle
	bd.insert(blk)
	return bd.entry("create view "+v.Title, e.Actor), v, nil
}

// ViewPatch: изменяемые части представления; nil — не трогать.
type ViewPatch struct {
	Title              *string
	Kind               *board.ViewKind
	Filter             *board.FilterGroup
	SortOptions        *[]board.SortOption
	VisiblePropertyIDs *[]string
	CardOrder          *[]string
	GroupByID          *string
}

// UpdateView меняет представление. Новый фильтр проверяется до сохранения.
func (e Editor) UpdateView(s Snapshot, id string, patch ViewPatch) (mutation.Entry, board.View, error) {
	v, ok := s.view(id)
	if !ok {
		return mutation.Entry{}, board.View{}, fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	nv := cloneView(v)
	if patch.Title != nil {
		nv.Title = *patch.Title
	}
	if patch.Kind != nil {
		nv.Kind = *patch.Kind
	}
	if patch.Filter != nil {
		g := *patch.Filter
		if g.Operation == "" {
			g.Operation = board.OperationAnd
		}
		if err := filter.Validate(g, s.Board); err != nil {
			return mutation.Entry{}, board.View{}, err
		}
		nv.Filter = g
	}
	if patch.SortOptions != nil {
		nv.SortOptions = append([]board.SortOption(nil), (*patch.SortOptions)...)
	}
	if patch.VisiblePropertyIDs != nil {
		nv.VisiblePropertyIDs = append([]string(nil), (*patch.VisiblePropertyIDs)...)
	}
	if patch.CardOrder != nil {
		nv.CardOrder = append([]string(nil), (*patch.CardOrder)...)
	}
	if patch.GroupByID != nil {
		if *patch.GroupByID != "" {
			if _, ok := s.Board.Property(*patch.GroupByID); !ok {
				return mutation.Entry{}, board.View{}, fmt.Errorf("%w: %s", ErrPropertyNotFound, *patch.GroupByID)
			}
		}
		nv.GroupByID = *patch.GroupByID
	}
	e.touchView(&nv)

	var bd bundle
	if err := bd.diff(v, nv); err != nil {
		return mutation.Entry{}, board.View{}, err
	}
	return bd.entry("update view "+nv.Title, e.Actor), nv, nil
}
