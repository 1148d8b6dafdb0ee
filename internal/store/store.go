// Package store хранит блоки досок: в памяти (со снимками на диск) или в SQL (postgres/sqlite).
package store

import (
	"context"
	"errors"

	"boards/internal/block"
)

var (
	ErrNotFound      = errors.New("block not found")
	ErrAlreadyExists = errors.New("block already exists")
)

// Query: фильтр выборки; пустые поля не ограничивают.
type Query struct {
	BoardID  string
	ParentID string
	Type     block.Type
}

func (q Query) match(b block.Block) bool {
	return (q.BoardID == "" || b.BoardID == q.BoardID) &&
		(q.ParentID == "" || b.ParentID == q.ParentID) &&
		(q.Type == "" || b.Type == q.Type)
}

// BlockStore: персистентный слой блоков.
type BlockStore interface {
	Get(ctx context.Context, id string) (block.Block, error)
	// List возвращает блоки по возрастанию created_at, затем id.
	List(ctx context.Context, q Query) ([]block.Block, error)
	// Insert: ErrAlreadyExists при совпадении id или (board_id, synced_with).
	Insert(ctx context.Context, b block.Block) error
	// InsertIfAbsent молча пропускает дубликат; inserted=false, если строка уже была.
	InsertIfAbsent(ctx context.Context, b block.Block) (inserted bool, err error)
	// LatestSyncedCreatedAt: водяной знак: created_at самого нового синхронизированного
	// блока типа на доске. Блоки без synced_with не учитываются.
	LatestSyncedCreatedAt(ctx context.Context, boardID string, typ block.Type) (ms int64, ok bool, err error)
	// ApplyPatches применяет набор патчей атомарно.
	ApplyPatches(ctx context.Context, patches []block.Patch) error
	Close() error
}
