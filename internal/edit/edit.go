// Package edit строит изменения схемы доски и карточек в виде записей журнала:
// каждое изменение — набор прямых и обратных патчей по всем затронутым блокам.
package edit

import (
	"context"
	"errors"
	"fmt"

	"boards/internal/block"
	"boards/internal/board"
	"boards/internal/mutation"
	"boards/internal/store"
)

var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrCardNotFound     = errors.New("card not found")
	ErrViewNotFound     = errors.New("view not found")
)

// Коды ошибок значений; совпадают с кодами FieldError в API.
const (
	CodeRequired     = "required"
	CodeTypeMismatch = "type_mismatch"
	CodeReadOnly     = "readonly_field"
	CodeNotFound     = "not_found"
	CodeInvalidType  = "invalid_type"
)

// ValueError: ошибка конкретной колонки.
type ValueError struct {
	Code       string
	PropertyID string
	Message    string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.PropertyID, e.Code, e.Message)
}

// Snapshot: доска целиком: схема, представления и все карточки (плоским списком).
type Snapshot struct {
	Board board.Board
	Views []board.View
	Cards []board.Card
}

func (s Snapshot) card(id string) (board.Card, bool) {
	for _, c := range s.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return board.Card{}, false
}

func (s Snapshot) view(id string) (board.View, bool) {
	for _, v := range s.Views {
		if v.ID == id {
			return v, true
		}
	}
	return board.View{}, false
}

// Load читает доску со всеми её блоками.
func Load(ctx context.Context, r store.Repo, boardID string) (Snapshot, error) {
	b, err := r.Board(ctx, boardID)
	if err != nil {
		return Snapshot{}, err
	}
	views, err := r.Views(ctx, boardID)
	if err != nil {
		return Snapshot{}, err
	}
	cards, err := r.AllCards(ctx, boardID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Board: b, Views: views, Cards: cards}, nil
}

// Editor: кто и когда вносит изменения.
type Editor struct {
	Actor string
	Clock func() int64
}

func (e Editor) now() int64 {
	if e.Clock != nil {
		return e.Clock()
	}
	return block.NowMillis()
}

// bundle копит патчи одной операции.
type bundle struct {
	fwd, bwd []block.Patch
}

func (b *bundle) update(before, after block.Block) {
	f, r := block.Diff(before, after)
	if f.IsEmpty() {
		return
	}
	b.fwd = append(b.fwd, f)
	b.bwd = append(b.bwd, r)
}

func (b *bundle) insert(blk block.Block) {
	f, r := block.InsertPatches(blk)
	b.fwd = append(b.fwd, f)
	b.bwd = append(b.bwd, r)
}

func (b *bundle) remove(blk block.Block) {
	f, r := block.DeletePatches(blk)
	b.fwd = append(b.fwd, f)
	b.bwd = append(b.bwd, r)
}

func (b *bundle) entry(label, actor string) mutation.Entry {
	return mutation.Entry{Label: label, Actor: actor, Forward: b.fwd, Backward: b.bwd}
}

// blockDiffer: то, что умеет превращаться в блок.
type blockDiffer interface {
	ToBlock() (block.Block, error)
}

// diff добавляет патчи между двумя версиями сущности.
func (b *bundle) diff(before, after blockDiffer) error {
	bb, err := before.ToBlock()
	if err != nil {
		return err
	}
	ab, err := after.ToBlock()
	if err != nil {
		return err
	}
	b.update(bb, ab)
	return nil
}

func (e Editor) touchBoard(b *board.Board) {
	b.UpdatedAt = e.now()
	b.UpdatedBy = e.Actor
}

func (e Editor) touchCard(c *board.Card) {
	c.UpdatedAt = e.now()
	c.UpdatedBy = e.Actor
}

func (e Editor) touchView(v *board.View) {
	v.UpdatedAt = e.now()
	v.UpdatedBy = e.Actor
}

func cloneCard(c board.Card) board.Card {
	out := c
	out.Values = make(map[string]board.Value, len(c.Values))
	for k, v := range c.Values {
		out.Values[k] = v
	}
	out.SubCards = nil
	return out
}

func cloneView(v board.View) board.View {
	out := v
	out.VisiblePropertyIDs = append([]string(nil), v.VisiblePropertyIDs...)
	out.SortOptions = append([]board.SortOption(nil), v.SortOptions...)
	out.CardOrder = append([]string(nil), v.CardOrder...)
	return out
}

func cloneBoard(b board.Board) board.Board {
	out := b
	out.Properties = make([]board.Property, len(b.Properties))
	for i, p := range b.Properties {
		p.Options = append([]board.Option(nil), p.Options...)
		out.Properties[i] = p
	}
	return out
}
