package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/natefinch/atomic"

	"boards/internal/block"
)

// Memory: хранилище в памяти. Уникальность (board_id, synced_with) держится отдельным индексом.
type Memory struct {
	mu     sync.RWMutex
	blocks map[string]block.Block
	synced map[string]string // boardID + "\x00" + syncedWith -> id
}

func NewMemory() *Memory {
	return &Memory{
		blocks: make(map[string]block.Block),
		synced: make(map[string]string),
	}
}

func syncKey(b block.Block) (string, bool) {
	if b.SyncedWith == "" {
		return "", false
	}
	return b.BoardID + "\x00" + b.SyncedWith, true
}

func (m *Memory) Get(ctx context.Context, id string) (block.Block, error) {
	if err := ctx.Err(); err != nil {
		return block.Block{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return block.Block{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b.Clone(), nil
}

func (m *Memory) List(ctx context.Context, q Query) ([]block.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]block.Block, 0)
	for _, b := range m.blocks {
		if q.match(b) {
			out = append(out, b.Clone())
		}
	}
	sortBlocks(out)
	return out, nil
}

func sortBlocks(bs []block.Block) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].CreatedAt != bs[j].CreatedAt {
			return bs[i].CreatedAt < bs[j].CreatedAt
		}
		return bs[i].ID < bs[j].ID
	})
}

func (m *Memory) Insert(ctx context.Context, b block.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(b)
}

func (m *Memory) insertLocked(b block.Block) error {
	if b.ID == "" {
		return fmt.Errorf("insert block: empty id")
	}
	if _, ok := m.blocks[b.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, b.ID)
	}
	if k, ok := syncKey(b); ok {
		if other, dup := m.synced[k]; dup {
			return fmt.Errorf("%w: board %s already has %s synced with %s", ErrAlreadyExists, b.BoardID, other, b.SyncedWith)
		}
		m.synced[k] = b.ID
	}
	m.blocks[b.ID] = b.Clone()
	return nil
}

func (m *Memory) deleteLocked(id string) {
	b, ok := m.blocks[id]
	if !ok {
		return
	}
	if k, ok := syncKey(b); ok && m.synced[k] == id {
		delete(m.synced, k)
	}
	delete(m.blocks, id)
}

func (m *Memory) InsertIfAbsent(ctx context.Context, b block.Block) (bool, error) {
	err := m.Insert(ctx, b)
	if errors.Is(err, ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) LatestSyncedCreatedAt(ctx context.Context, boardID string, typ block.Type) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest int64
	found := false
	for _, b := range m.blocks {
		if b.BoardID != boardID || b.Type != typ || b.SyncedWith == "" {
			continue
		}
		if !found || b.CreatedAt > latest {
			latest, found = b.CreatedAt, true
		}
	}
	return latest, found, nil
}

// ApplyPatches применяет патчи к копиям затронутых блоков и публикует их только если все прошли.
func (m *Memory) ApplyPatches(ctx context.Context, patches []block.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// откат делаем по снимку затронутых id
	touched := make(map[string]*block.Block)
	for _, p := range patches {
		if _, seen := touched[p.ID]; seen {
			continue
		}
		if b, ok := m.blocks[p.ID]; ok {
			c := b.Clone()
			touched[p.ID] = &c
		} else {
			touched[p.ID] = nil
		}
	}
	rollback := func() {
		for id, prev := range touched {
			m.deleteLocked(id)
			if prev != nil {
				_ = m.insertLocked(*prev)
			}
		}
	}
	for _, p := range patches {
		if err := m.applyLocked(p); err != nil {
			rollback()
			return err
		}
	}
	return nil
}

func (m *Memory) applyLocked(p block.Patch) error {
	switch p.Op {
	case block.OpInsert:
		if p.Block == nil {
			return fmt.Errorf("insert patch %s without block", p.ID)
		}
		return m.insertLocked(*p.Block)
	case block.OpDelete:
		if _, ok := m.blocks[p.ID]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
		}
		m.deleteLocked(p.ID)
		return nil
	case block.OpUpdate:
		cur, ok := m.blocks[p.ID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
		}
		next := cur.Clone()
		if err := block.Apply(&next, p); err != nil {
			return err
		}
		m.deleteLocked(p.ID)
		if err := m.insertLocked(next); err != nil {
			_ = m.insertLocked(cur)
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown patch op %q", p.Op)
}

func (m *Memory) Close() error { return nil }

type snapshot struct {
	Blocks []block.Block `json:"blocks"`
}

// SaveSnapshot пишет все блоки в файл атомарной заменой.
func (m *Memory) SaveSnapshot(path string) error {
	m.mu.RLock()
	snap := snapshot{Blocks: make([]block.Block, 0, len(m.blocks))}
	for _, b := range m.blocks {
		snap.Blocks = append(snap.Blocks, b)
	}
	m.mu.RUnlock()
	sortBlocks(snap.Blocks)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// LoadSnapshot заменяет содержимое хранилища снимком; отсутствующий файл — не ошибка.
func (m *Memory) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = make(map[string]block.Block, len(snap.Blocks))
	m.synced = make(map[string]string)
	for _, b := range snap.Blocks {
		if err := m.insertLocked(b); err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
	}
	return nil
}

var _ BlockStore = (*Memory)(nil)
