package edit

import (
	"fmt"
	"slices"

	"boards/internal/board"
	"boards/internal/mutation"
)

// CardUpdate: изменение одной карточки в пакетном обновлении.
// Пустое значение в Values очищает ячейку.
type CardUpdate struct {
	ID     string
	Title  *string
	Values map[string]board.Value
}

// CreateCard добавляет карточку. Значения проверяются по схеме.
func (e Editor) CreateCard(s Snapshot, c board.Card) (mutation.Entry, board.Card, error) {
	if s.Board.ID == "" {
		return mutation.Entry{}, board.Card{}, fmt.Errorf("%w: board id is required", board.ErrInvalidInput)
	}
	if c.ID == "" {
		c.ID = board.NewID()
	}
	if _, dup := s.card(c.ID); dup {
		return mutation.Entry{}, board.Card{}, fmt.Errorf("%w: card %s already exists", board.ErrInvalidInput, c.ID)
	}
	if c.ParentID != "" && c.ParentID != s.Board.ID {
		if _, ok := s.card(c.ParentID); !ok {
			return mutation.Entry{}, board.Card{}, fmt.Errorf("%w: parent %s", ErrCardNotFound, c.ParentID)
		}
	}
	values, err := e.checkValues(s.Board, c.Values)
	if err != nil {
		return mutation.Entry{}, board.Card{}, err
	}
	now := e.now()
	c.BoardID = s.Board.ID
	c.Values = values
	c.CreatedAt, c.UpdatedAt = now, now
	c.CreatedBy, c.UpdatedBy = e.Actor, e.Actor
	if c.Permissions == nil {
		c.Permissions = s.Board.Permissions
	}
	c.SubCards = nil

	blk, err := c.ToBlock()
	if err != nil {
		return mutation.Entry{}, board.Card{}, err
	}
	var bd bundle
	bd.insert(blk)
	return bd.entry("create card", e.Actor), c, nil
}

func (e Editor) checkValues(b board.Board, in map[string]board.Value) (map[string]board.Value, error) {
	out := make(map[string]board.Value, len(in))
	for pid, v := range in {
		p, ok := b.Property(pid)
		if !ok {
			return nil, &ValueError{Code: CodeNotFound, PropertyID: pid, Message: "property does not exist"}
		}
		if p.ReadOnly || p.Type.Intrinsic() {
			return nil, &ValueError{Code: CodeReadOnly, PropertyID: pid, Message: fmt.Sprintf("property %q is read-only", p.Name)}
		}
		cv, err := Coerce(p, v)
		if err != nil {
			return nil, err
		}
		if !cv.IsEmpty() {
			out[pid] = cv
		}
	}
	return out, nil
}

// UpdateCards: пакетное обновление: по патчу на карточку, одна запись журнала.
func (e Editor) UpdateCards(s Snapshot, updates []CardUpdate) (mutation.Entry, error) {
	var bd bundle
	for _, u := range updates {
		c, ok := s.card(u.ID)
		if !ok {
			return mutation.Entry{}, fmt.Errorf("%w: %s", ErrCardNotFound, u.ID)
		}
		nc := cloneCard(c)
		if u.Title != nil {
			nc.Title = *u.Title
		}
		for pid, v := range u.Values {
			p, ok := s.Board.Property(pid)
			if !ok {
				return mutation.Entry{}, &ValueError{Code: CodeNotFound, PropertyID: pid, Message: "property does not exist"}
			}
			if p.ReadOnly || p.Type.Intrinsic() {
				return mutation.Entry{}, &ValueError{Code: CodeReadOnly, PropertyID: pid, Message: fmt.Sprintf("property %q is read-only", p.Name)}
			}
			cv, err := Coerce(p, v)
			if err != nil {
				return mutation.Entry{}, err
			}
			if cv.IsEmpty() {
				delete(nc.Values, pid)
			} else {
				nc.Values[pid] = cv
			}
		}
		e.touchCard(&nc)
		if err := bd.diff(c, nc); err != nil {
			return mutation.Entry{}, err
		}
	}
	label := "update card"
	if len(updates) > 1 {
		label = fmt.Sprintf("update %d cards", len(updates))
	}
	return bd.entry(label, e.Actor), nil
}

// DuplicateCard копирует карточку (и её дочерние) с новыми id.
func (e Editor) DuplicateCard(s Snapshot, id string) (mutation.Entry, board.Card, error) {
	src, ok := s.card(id)
	if !ok {
		return mutation.Entry{}, board.Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	now := e.now()
	dup := cloneCard(src)
	dup.ID = board.NewID()
	dup.Title = src.Title + " (copy)"
	dup.SyncedWith = ""
	dup.IsTemplate = false
	dup.CreatedAt, dup.UpdatedAt = now, now
	dup.CreatedBy, dup.UpdatedBy = e.Actor, e.Actor

	var bd bundle
	blk, err := dup.ToBlock()
	if err != nil {
		return mutation.Entry{}, board.Card{}, err
	}
	bd.insert(blk)
	for _, child := range s.Cards {
		if child.ParentID != src.ID {
			continue
		}
		cc := cloneCard(child)
		cc.ID = board.NewID()
		cc.ParentID = dup.ID
		cc.SyncedWith = ""
		cc.CreatedAt, cc.UpdatedAt = now, now
		cc.CreatedBy, cc.UpdatedBy = e.Actor, e.Actor
		cb, err := cc.ToBlock()
		if err != nil {
			return mutation.Entry{}, board.Card{}, err
		}
		bd.insert(cb)
	}
	return bd.entry("duplicate card", e.Actor), dup, nil
}

// DeleteCard удаляет карточку вместе с дочерними и убирает её из ручного порядка представлений.
func (e Editor) DeleteCard(s Snapshot, id string) (mutation.Entry, error) {
	c, ok := s.card(id)
	if !ok {
		return mutation.Entry{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	var bd bundle
	for _, child := range s.Cards {
		if child.ParentID != id {
			continue
		}
		cb, err := child.ToBlock()
		if err != nil {
			return mutation.Entry{}, err
		}
		bd.remove(cb)
	}
	cb, err := c.ToBlock()
	if err != nil {
		return mutation.Entry{}, err
	}
	bd.remove(cb)
	for _, v := range s.Views {
		if !slices.Contains(v.CardOrder, id) {
			continue
		}
		nv := cloneView(v)
		nv.CardOrder = slices.DeleteFunc(nv.CardOrder, func(x string) bool { return x == id })
		e.touchView(&nv)
		if err := bd.diff(v, nv); err != nil {
			return mutation.Entry{}, err
		}
	}
	return bd.entry("delete card", e.Actor), nil
}
