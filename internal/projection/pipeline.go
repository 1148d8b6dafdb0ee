package projection

import (
	"context"
	"errors"
	"fmt"
	"log"

	"boards/internal/block"
	"boards/internal/board"
	"boards/internal/edit"
	"boards/internal/mutation"
	"boards/internal/store"
	"boards/internal/workflow"
)

// ErrBoardNotFound: синхронизация вызвана для несуществующей доски.
var ErrBoardNotFound = errors.New("sync target board not found")

// ErrNotSynced: доска не привязана к внешнему workflow.
var ErrNotSynced = errors.New("board is not synced with proposals")

// Pipeline связывает доску с внешним источником заявок.
type Pipeline struct {
	Store       store.BlockStore
	Reader      workflow.Reader
	Permissions workflow.PermissionOracle
	Logger      *log.Logger
	// Clock: epoch millis; nil — текущее время.
	Clock func() int64
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (p *Pipeline) now() int64 {
	if p.Clock != nil {
		return p.Clock()
	}
	return block.NowMillis()
}

func (p *Pipeline) board(ctx context.Context, boardID string) (board.Board, error) {
	b, err := store.Repo{Store: p.Store}.Board(ctx, boardID)
	if errors.Is(err, store.ErrNotFound) {
		return board.Board{}, fmt.Errorf("%w: %s", ErrBoardNotFound, boardID)
	}
	if err != nil {
		return board.Board{}, err
	}
	if b.SourceType != board.SourceProposals {
		return board.Board{}, fmt.Errorf("%w: %s", ErrNotSynced, boardID)
	}
	return b, nil
}

// Schema: выведенная и отфильтрованная по выбору схема доски. Доска не меняется.
func (p *Pipeline) Schema(ctx context.Context, b board.Board) ([]board.Property, error) {
	templates, err := p.Reader.ListTemplates(ctx, b.SpaceID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	items, err := p.Reader.ListPublished(ctx, b.SpaceID, 0)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}
	return FilterSchema(DeriveSchema(b.Properties, templates, items), b.Selection), nil
}

// SyncSchema готовит запись журнала, приводящую схему доски к выведенной.
// Пустая запись — схема уже актуальна.
func (p *Pipeline) SyncSchema(ctx context.Context, ed edit.Editor, boardID string) (mutation.Entry, error) {
	b, err := p.board(ctx, boardID)
	if err != nil {
		return mutation.Entry{}, err
	}
	props, err := p.Schema(ctx, b)
	if err != nil {
		return mutation.Entry{}, err
	}
	s, err := edit.Load(ctx, store.Repo{Store: p.Store}, boardID)
	if err != nil {
		return mutation.Entry{}, err
	}
	return ed.ReplaceSchema(s, props, "sync schema")
}

// MaterializeMissingRows создаёт строки для опубликованных заявок, обновлённых после
// водяного знака (created_at самой новой синхронизированной строки; карточки, созданные
// вручную, не в счёт). Без синхронизированных строк берутся все опубликованные.
// Повторный вызов без новых заявок ничего не создаёт: дубль по (board, synced_with) отсекает хранилище.
func (p *Pipeline) MaterializeMissingRows(ctx context.Context, boardID string) (int, error) {
	b, err := p.board(ctx, boardID)
	if err != nil {
		return 0, err
	}
	watermark, ok, err := p.Store.LatestSyncedCreatedAt(ctx, b.ID, block.TypeCard)
	if err != nil {
		return 0, fmt.Errorf("watermark: %w", err)
	}
	if !ok {
		watermark = 0
	}
	items, err := p.Reader.ListPublished(ctx, b.SpaceID, watermark)
	if err != nil {
		return 0, fmt.Errorf("list published: %w", err)
	}

	now := p.now()
	created := 0
	for _, it := range items {
		if !it.Visible() {
			continue
		}
		c := board.Card{
			ID:          board.NewID(),
			BoardID:     b.ID,
			ParentID:    b.ID,
			Title:       it.Title,
			Content:     it.Content,
			SyncedWith:  it.ID,
			Permissions: b.Permissions,
			CreatedAt:   it.CreatedAt,
			UpdatedAt:   now,
			CreatedBy:   it.CreatedBy,
			UpdatedBy:   it.CreatedBy,
		}
		if c.CreatedAt == 0 {
			c.CreatedAt = now
		}
		blk, err := c.ToBlock()
		if err != nil {
			return created, err
		}
		inserted, err := p.Store.InsertIfAbsent(ctx, blk)
		if err != nil {
			return created, fmt.Errorf("insert row for %s: %w", it.ID, err)
		}
		if inserted {
			created++
		}
	}
	p.logf("sync board %s: %d new rows from %d published items (watermark %d)", b.ID, created, len(items), watermark)
	return created, nil
}

// Project пересчитывает значения синхронизированных карточек для актора и
// отбрасывает те, что ему не видны. Карточки обычных досок возвращаются как есть.
func (p *Pipeline) Project(ctx context.Context, actorID string, b board.Board, cards []board.Card) ([]board.Card, error) {
	if b.SourceType != board.SourceProposals {
		return cards, nil
	}
	var ids []string
	for _, c := range cards {
		if c.SyncedWith != "" {
			ids = append(ids, c.SyncedWith)
		}
	}
	if len(ids) == 0 {
		return cards, nil
	}
	items, err := p.Reader.GetItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	perms, err := p.Permissions.Permissions(ctx, actorID, ids)
	if err != nil {
		return nil, fmt.Errorf("permissions: %w", err)
	}
	out := make([]board.Card, 0, len(cards))
	for _, c := range cards {
		if it, ok := items[c.SyncedWith]; ok && c.SyncedWith != "" {
			c = ProjectCard(b, c, it, perms[c.SyncedWith])
		}
		out = append(out, c)
	}
	return FilterVisible(out, items, perms), nil
}
