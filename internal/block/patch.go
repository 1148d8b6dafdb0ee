package block

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change: точечное изменение внутри Fields по пути ключей.
type Change struct {
	Path   []string `json:"path"`
	Value  any      `json:"value,omitempty"`
	Delete bool     `json:"delete,omitempty"`
}

// Patch: структурный diff одного блока. Insert несёт полный блок, Update — только изменённые поля.
type Patch struct {
	Op         Op       `json:"op"`
	ID         string   `json:"id"`
	Block      *Block   `json:"block,omitempty"`
	Title      *string  `json:"title,omitempty"`
	SyncedWith *string  `json:"syncedWith,omitempty"`
	Changes    []Change `json:"changes,omitempty"`
	UpdatedAt  int64    `json:"updatedAt,omitempty"`
	UpdatedBy  string   `json:"updatedBy,omitempty"`
}

var ErrBadPath = errors.New("patch path does not address an object")

// IsEmpty: патч, который ничего не меняет (update без изменений).
func (p Patch) IsEmpty() bool {
	return p.Op == OpUpdate && p.Title == nil && p.SyncedWith == nil && len(p.Changes) == 0
}

// InsertPatches возвращает пару вставка/удаление для нового блока.
func InsertPatches(b Block) (forward, backward Patch) {
	c := b.Clone()
	return Patch{Op: OpInsert, ID: b.ID, Block: &c}, Patch{Op: OpDelete, ID: b.ID}
}

// DeletePatches возвращает пару удаление/восстановление для существующего блока.
func DeletePatches(b Block) (forward, backward Patch) {
	c := b.Clone()
	return Patch{Op: OpDelete, ID: b.ID}, Patch{Op: OpInsert, ID: b.ID, Block: &c}
}

// Diff строит прямой и обратный патчи между двумя версиями одного блока.
// Сравнение рекурсивное по вложенным объектам; массивы и скаляры сравниваются целиком.
func Diff(before, after Block) (forward, backward Patch) {
	forward = Patch{Op: OpUpdate, ID: after.ID, UpdatedAt: after.UpdatedAt, UpdatedBy: after.UpdatedBy}
	backward = Patch{Op: OpUpdate, ID: before.ID, UpdatedAt: before.UpdatedAt, UpdatedBy: before.UpdatedBy}

	if before.Title != after.Title {
		nt, ot := after.Title, before.Title
		forward.Title = &nt
		backward.Title = &ot
	}
	if before.SyncedWith != after.SyncedWith {
		ns, os := after.SyncedWith, before.SyncedWith
		forward.SyncedWith = &ns
		backward.SyncedWith = &os
	}
	diffMaps(nil, before.Fields, after.Fields, &forward.Changes, &backward.Changes)
	return forward, backward
}

func diffMaps(prefix []string, a, b map[string]any, fwd, bwd *[]Change) {
	keys := make([]string, 0, len(a)+len(b))
	seen := map[string]struct{}{}
	for k := range a {
		keys = append(keys, k)
		seen[k] = struct{}{}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	// стабильный порядок изменений
	sort.Strings(keys)

	for _, k := range keys {
		path := append(append([]string(nil), prefix...), k)
		av, aok := a[k]
		bv, bok := b[k]
		switch {
		case aok && !bok:
			*fwd = append(*fwd, Change{Path: path, Delete: true})
			*bwd = append(*bwd, Change{Path: path, Value: cloneValue(av)})
		case !aok && bok:
			*fwd = append(*fwd, Change{Path: path, Value: cloneValue(bv)})
			*bwd = append(*bwd, Change{Path: path, Delete: true})
		default:
			am, aIsMap := av.(map[string]any)
			bm, bIsMap := bv.(map[string]any)
			if aIsMap && bIsMap {
				diffMaps(path, am, bm, fwd, bwd)
				continue
			}
			if !reflect.DeepEqual(av, bv) {
				*fwd = append(*fwd, Change{Path: path, Value: cloneValue(bv)})
				*bwd = append(*bwd, Change{Path: path, Value: cloneValue(av)})
			}
		}
	}
}

// Apply применяет update-патч к блоку на месте.
func Apply(b *Block, p Patch) error {
	if p.Op != OpUpdate {
		return fmt.Errorf("apply %s patch to block %s: only update patches apply in place", p.Op, p.ID)
	}
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.SyncedWith != nil {
		b.SyncedWith = *p.SyncedWith
	}
	if b.Fields == nil {
		b.Fields = map[string]any{}
	}
	for _, ch := range p.Changes {
		if err := applyChange(b.Fields, ch); err != nil {
			return fmt.Errorf("block %s: %w", p.ID, err)
		}
	}
	if p.UpdatedAt != 0 {
		b.UpdatedAt = p.UpdatedAt
	}
	if p.UpdatedBy != "" {
		b.UpdatedBy = p.UpdatedBy
	}
	return nil
}

func applyChange(root map[string]any, ch Change) error {
	if len(ch.Path) == 0 {
		return fmt.Errorf("%w: empty path", ErrBadPath)
	}
	node := root
	for _, k := range ch.Path[:len(ch.Path)-1] {
		next, ok := node[k]
		if !ok || next == nil {
			if ch.Delete {
				// удалять нечего
				return nil
			}
			m := map[string]any{}
			node[k] = m
			node = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %v", ErrBadPath, ch.Path)
		}
		node = m
	}
	last := ch.Path[len(ch.Path)-1]
	if ch.Delete {
		delete(node, last)
		return nil
	}
	node[last] = cloneValue(ch.Value)
	return nil
}
