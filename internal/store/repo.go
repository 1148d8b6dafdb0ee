package store

import (
	"context"
	"fmt"

	"boards/internal/block"
	"boards/internal/board"
)

// Repo: типизированное чтение досок, карточек и представлений поверх блоков.
type Repo struct {
	Store BlockStore
}

func (r Repo) Board(ctx context.Context, id string) (board.Board, error) {
	if id == "" {
		return board.Board{}, fmt.Errorf("%w: board id is required", board.ErrInvalidInput)
	}
	b, err := r.Store.Get(ctx, id)
	if err != nil {
		return board.Board{}, err
	}
	if b.Type != block.TypeBoard {
		return board.Board{}, fmt.Errorf("%w: board %s", ErrNotFound, id)
	}
	return board.BoardFromBlock(b)
}

func (r Repo) Boards(ctx context.Context) ([]board.Board, error) {
	bs, err := r.Store.List(ctx, Query{Type: block.TypeBoard})
	if err != nil {
		return nil, err
	}
	out := make([]board.Board, 0, len(bs))
	for _, b := range bs {
		bd, err := board.BoardFromBlock(b)
		if err != nil {
			return nil, err
		}
		out = append(out, bd)
	}
	return out, nil
}

func (r Repo) Card(ctx context.Context, id string) (board.Card, error) {
	b, err := r.Store.Get(ctx, id)
	if err != nil {
		return board.Card{}, err
	}
	if b.Type != block.TypeCard {
		return board.Card{}, fmt.Errorf("%w: card %s", ErrNotFound, id)
	}
	return board.CardFromBlock(b)
}

// Cards: карточки доски верхнего уровня; дочерние карточки вложены в SubCards родителя.
func (r Repo) Cards(ctx context.Context, boardID string) ([]board.Card, error) {
	bs, err := r.Store.List(ctx, Query{BoardID: boardID, Type: block.TypeCard})
	if err != nil {
		return nil, err
	}
	all := make([]board.Card, 0, len(bs))
	for _, b := range bs {
		c, err := board.CardFromBlock(b)
		if err != nil {
			return nil, err
		}
		all = append(all, c)
	}
	children := map[string][]board.Card{}
	top := make([]board.Card, 0, len(all))
	for _, c := range all {
		if c.ParentID != "" && c.ParentID != boardID {
			children[c.ParentID] = append(children[c.ParentID], c)
			continue
		}
		top = append(top, c)
	}
	for i := range top {
		top[i].SubCards = children[top[i].ID]
	}
	return top, nil
}

// AllCards: все карточки доски плоским списком, включая дочерние.
func (r Repo) AllCards(ctx context.Context, boardID string) ([]board.Card, error) {
	bs, err := r.Store.List(ctx, Query{BoardID: boardID, Type: block.TypeCard})
	if err != nil {
		return nil, err
	}
	out := make([]board.Card, 0, len(bs))
	for _, b := range bs {
		c, err := board.CardFromBlock(b)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r Repo) View(ctx context.Context, id string) (board.View, error) {
	b, err := r.Store.Get(ctx, id)
	if err != nil {
		return board.View{}, err
	}
	if b.Type != block.TypeView {
		return board.View{}, fmt.Errorf("%w: view %s", ErrNotFound, id)
	}
	return board.ViewFromBlock(b)
}

func (r Repo) Views(ctx context.Context, boardID string) ([]board.View, error) {
	bs, err := r.Store.List(ctx, Query{BoardID: boardID, Type: block.TypeView})
	if err != nil {
		return nil, err
	}
	out := make([]board.View, 0, len(bs))
	for _, b := range bs {
		v, err := board.ViewFromBlock(b)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
