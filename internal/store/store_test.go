package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boards/internal/block"
	"boards/internal/board"
)

func cardBlock(id, boardID, synced string, created int64) block.Block {
	return block.Block{
		ID: id, BoardID: boardID, ParentID: boardID, Type: block.TypeCard, Title: "card " + id,
		Fields:     map[string]any{"properties": map[string]any{"p1": "v"}},
		SyncedWith: synced, CreatedAt: created, UpdatedAt: created, CreatedBy: "u1", UpdatedBy: "u1",
	}
}

// exerciseStore: общий набор проверок для всех реализаций BlockStore.
func exerciseStore(t *testing.T, s BlockStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		b := cardBlock("c1", "b1", "", 10)
		require.NoError(t, s.Insert(ctx, b))
		got, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		if diff := cmp.Diff(b, got); diff != "" {
			t.Fatalf("block mismatch (-want +got):\n%s", diff)
		}
		assert.ErrorIs(t, s.Insert(ctx, b), ErrAlreadyExists)
		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("synced_with is unique per board", func(t *testing.T) {
		ok, err := s.InsertIfAbsent(ctx, cardBlock("c2", "b1", "item-1", 20))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.InsertIfAbsent(ctx, cardBlock("c3", "b1", "item-1", 30))
		require.NoError(t, err)
		assert.False(t, ok)

		// на другой доске тот же элемент допустим
		ok, err = s.InsertIfAbsent(ctx, cardBlock("c4", "b2", "item-1", 30))
		require.NoError(t, err)
		assert.True(t, ok)

		assert.ErrorIs(t, s.Insert(ctx, cardBlock("c5", "b1", "item-1", 40)), ErrAlreadyExists)
	})

	t.Run("list and watermark", func(t *testing.T) {
		cards, err := s.List(ctx, Query{BoardID: "b1", Type: block.TypeCard})
		require.NoError(t, err)
		require.Len(t, cards, 2)
		assert.Equal(t, "c1", cards[0].ID)
		assert.Equal(t, "c2", cards[1].ID)

		ms, ok, err := s.LatestSyncedCreatedAt(ctx, "b1", block.TypeCard)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(20), ms)

		// карточка, созданная вручную позже, водяной знак не двигает
		require.NoError(t, s.Insert(ctx, cardBlock("c6", "b1", "", 99)))
		ms, ok, err = s.LatestSyncedCreatedAt(ctx, "b1", block.TypeCard)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(20), ms)

		_, ok, err = s.LatestSyncedCreatedAt(ctx, "empty", block.TypeCard)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("apply patches", func(t *testing.T) {
		before, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		after := before.Clone()
		after.Title = "renamed"
		after.Fields["properties"].(map[string]any)["p1"] = "changed"
		fwd, bwd := block.Diff(before, after)

		require.NoError(t, s.ApplyPatches(ctx, []block.Patch{fwd}))
		got, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
		assert.Equal(t, "changed", got.Fields["properties"].(map[string]any)["p1"])

		require.NoError(t, s.ApplyPatches(ctx, []block.Patch{bwd}))
		got, err = s.Get(ctx, "c1")
		require.NoError(t, err)
		if diff := cmp.Diff(before, got); diff != "" {
			t.Fatalf("backward patch mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("failed batch changes nothing", func(t *testing.T) {
		ins, _ := block.InsertPatches(cardBlock("c9", "b1", "", 50))
		del := block.Patch{Op: block.OpDelete, ID: "does-not-exist"}
		err := s.ApplyPatches(ctx, []block.Patch{ins, del})
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.Get(ctx, "c9")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("typed repo", func(t *testing.T) {
		bd := board.Board{ID: "b1", Title: "Board", Properties: []board.Property{{ID: "p1", Name: "P", Type: board.TypeText}}}
		bb, err := bd.ToBlock()
		require.NoError(t, err)
		require.NoError(t, s.Insert(ctx, bb))

		child := cardBlock("c1-child", "b1", "", 60)
		child.ParentID = "c1"
		require.NoError(t, s.Insert(ctx, child))

		r := Repo{Store: s}
		got, err := r.Board(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "Board", got.Title)

		cards, err := r.Cards(ctx, "b1")
		require.NoError(t, err)
		require.Len(t, cards, 3)
		require.Len(t, cards[0].SubCards, 1)
		assert.Equal(t, "c1-child", cards[0].SubCards[0].ID)

		_, err = r.Board(ctx, "")
		assert.ErrorIs(t, err, board.ErrInvalidInput)
		_, err = r.Board(ctx, "c1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemorySnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Insert(ctx, cardBlock("c1", "b1", "item-1", 1)))
	require.NoError(t, m.Insert(ctx, cardBlock("c2", "b1", "", 2)))

	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, m.SaveSnapshot(path))

	restored := NewMemory()
	require.NoError(t, restored.LoadSnapshot(path))
	got, err := restored.List(ctx, Query{BoardID: "b1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "item-1", got[0].SyncedWith)

	// индекс синхронизации восстановлен вместе с блоками
	ok, err := restored.InsertIfAbsent(ctx, cardBlock("c3", "b1", "item-1", 3))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, NewMemory().LoadSnapshot(filepath.Join(t.TempDir(), "missing.json")))
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "boards.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}
