package edit

import (
	"fmt"
	"strings"

	"boards/internal/board"
	"boards/internal/mutation"
)

// CreateBoard создаёт доску и табличное представление по умолчанию одной записью журнала.
func (e Editor) CreateBoard(b board.Board) (mutation.Entry, board.Board, board.View, error) {
	if strings.TrimSpace(b.Title) == "" {
		return mutation.Entry{}, board.Board{}, board.View{}, &ValueError{Code: CodeRequired, PropertyID: "title", Message: "board title is required"}
	}
	if b.ID == "" {
		b.ID = board.NewID()
	}
	seen := map[string]bool{}
	for i := range b.Properties {
		p := &b.Properties[i]
		if p.ID == "" {
			p.ID = board.NewID()
		}
		if seen[p.ID] {
			return mutation.Entry{}, board.Board{}, board.View{}, fmt.Errorf("%w: duplicate property id %s", board.ErrInvalidInput, p.ID)
		}
		seen[p.ID] = true
		if !p.Type.Valid() {
			return mutation.Entry{}, board.Board{}, board.View{}, &ValueError{Code: CodeInvalidType, PropertyID: p.ID, Message: fmt.Sprintf("unknown property type %q", p.Type)}
		}
		p.Options = normalizeOptions(p.Options)
	}
	now := e.now()
	b.CreatedAt, b.UpdatedAt = now, now
	b.CreatedBy, b.UpdatedBy = e.Actor, e.Actor

	blk, err := b.ToBlock()
	if err != nil {
		return mutation.Entry{}, board.Board{}, board.View{}, err
	}
	var bd bundle
	bd.insert(blk)

	ventry, v, err := e.CreateView(Snapshot{Board: b}, board.View{Title: "Table view", Kind: board.ViewTable})
	if err != nil {
		return mutation.Entry{}, board.Board{}, board.View{}, err
	}
	bd.fwd = append(bd.fwd, ventry.Forward...)
	bd.bwd = append(bd.bwd, ventry.Backward...)
	return bd.entry("create board "+b.Title, e.Actor), b, v, nil
}
