package edit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boards/internal/board"
	"boards/internal/filter"
	"boards/internal/mutation"
	"boards/internal/store"
)

var valueCmp = cmp.Comparer(func(a, b board.Value) bool { return a.Equal(b) })

type fixture struct {
	ctx  context.Context
	repo store.Repo
	log  *mutation.Log
	ed   Editor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	f := &fixture{
		ctx:  context.Background(),
		repo: store.Repo{Store: mem},
		log:  mutation.New(mem),
		ed:   Editor{Actor: "editor", Clock: func() int64 { return 5000 }},
	}
	bd := board.Board{
		ID: "b1", Title: "Grants", CreatedAt: 1, UpdatedAt: 1, CreatedBy: "seed", UpdatedBy: "seed",
		Properties: []board.Property{
			{ID: "color", Name: "Color", Type: board.TypeSelect, Options: []board.Option{{ID: "o-blue", Value: "Blue"}, {ID: "o-red", Value: "Red"}}},
			{ID: "notes", Name: "Notes", Type: board.TypeText},
			{ID: "budget", Name: "Budget", Type: board.TypeNumber, ReadOnly: true},
		},
	}
	f.insert(t, bd)
	f.insert(t, board.View{
		ID: "v1", BoardID: "b1", Title: "All", Kind: board.ViewTable,
		VisiblePropertyIDs: []string{"color", "notes"},
		SortOptions:        []board.SortOption{{PropertyID: "color"}},
		GroupByID:          "color",
		CardOrder:          []string{"c2", "c1"},
		Filter: board.FilterGroup{Operation: board.OperationAnd, Filters: []board.FilterItem{
			board.ClauseItem(board.FilterClause{FilterID: "f1", PropertyID: "color", Condition: board.CondIs, Values: []string{"o-blue"}}),
			board.ClauseItem(board.FilterClause{FilterID: "f2", PropertyID: "notes", Condition: board.CondContains, Values: []string{"x"}}),
			board.GroupItem(board.FilterGroup{Operation: board.OperationOr, Filters: []board.FilterItem{
				board.ClauseItem(board.FilterClause{FilterID: "f3", PropertyID: "color", Condition: board.CondIsEmpty, Values: []string{}}),
			}}),
		}},
		CreatedAt: 1, UpdatedAt: 1, CreatedBy: "seed", UpdatedBy: "seed",
	})
	f.insert(t, board.Card{ID: "c1", BoardID: "b1", Title: "One", CreatedAt: 1, UpdatedAt: 1, CreatedBy: "seed", UpdatedBy: "seed",
		Values: map[string]board.Value{"color": board.Text("o-blue"), "notes": board.Text("first"), "budget": board.Number(10)}})
	f.insert(t, board.Card{ID: "c2", BoardID: "b1", Title: "Two", CreatedAt: 2, UpdatedAt: 2, CreatedBy: "seed", UpdatedBy: "seed",
		Values: map[string]board.Value{"color": board.Text("o-red")}})
	f.insert(t, board.Card{ID: "c3", BoardID: "b1", Title: "Three", CreatedAt: 3, UpdatedAt: 3, CreatedBy: "seed", UpdatedBy: "seed",
		Values: map[string]board.Value{"notes": board.Text("Blue")}})
	return f
}

func (f *fixture) insert(t *testing.T, d blockDiffer) {
	t.Helper()
	b, err := d.ToBlock()
	require.NoError(t, err)
	require.NoError(t, f.repo.Store.Insert(f.ctx, b))
}

func (f *fixture) snapshot(t *testing.T) Snapshot {
	t.Helper()
	s, err := Load(f.ctx, f.repo, "b1")
	require.NoError(t, err)
	return s
}

// perform возвращает функцию, чтобы принимать результат операции редактора целиком.
func (f *fixture) perform(t *testing.T) func(mutation.Entry, error) {
	return func(e mutation.Entry, err error) {
		t.Helper()
		require.NoError(t, err)
		require.NoError(t, f.log.Perform(f.ctx, e))
	}
}

func (f *fixture) undoRestores(t *testing.T, want Snapshot) {
	t.Helper()
	_, err := f.log.Undo(f.ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, f.snapshot(t), valueCmp); diff != "" {
		t.Fatalf("undo did not restore the board (-want +got):\n%s", diff)
	}
}

func cardByID(s Snapshot, id string) board.Card {
	c, _ := s.card(id)
	return c
}

func TestDeletePropertyCascades(t *testing.T) {
	f := newFixture(t)
	before := f.snapshot(t)
	f.perform(t)(f.ed.DeleteProperty(before, "color"))

	after := f.snapshot(t)
	_, ok := after.Board.Property("color")
	assert.False(t, ok)

	v := after.Views[0]
	assert.Equal(t, []string{"notes"}, v.VisiblePropertyIDs)
	assert.Empty(t, v.SortOptions)
	assert.Empty(t, v.GroupByID)
	assert.False(t, v.Filter.References("color"))
	require.Len(t, v.Filter.Filters, 1, "emptied subgroup must be removed, unrelated clause kept")
	assert.Equal(t, "notes", v.Filter.Filters[0].Clause.PropertyID)

	for _, c := range after.Cards {
		_, has := c.Values["color"]
		assert.False(t, has, c.ID)
	}
	assert.Equal(t, "first", cardByID(after, "c1").Value("notes").First())

	f.undoRestores(t, before)
}

func TestDeleteMissingProperty(t *testing.T) {
	f := newFixture(t)
	_, err := f.ed.DeleteProperty(f.snapshot(t), "nope")
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestChangeTypeSelectToTextAndBackKeepsValues(t *testing.T) {
	f := newFixture(t)
	original := f.snapshot(t)

	f.perform(t)(f.ed.ChangeType(original, "color", board.TypeText))
	asText := f.snapshot(t)
	assert.Equal(t, "Blue", cardByID(asText, "c1").Value("color").First())
	assert.Equal(t, "Red", cardByID(asText, "c2").Value("color").First())
	p, _ := asText.Board.Property("color")
	assert.Empty(t, p.Options)
	// класс условий сменился — клаузы по колонке убраны
	assert.False(t, asText.Views[0].Filter.References("color"))

	f.perform(t)(f.ed.ChangeType(asText, "color", board.TypeSelect))
	back := f.snapshot(t)
	p, _ = back.Board.Property("color")
	require.Len(t, p.Options, 2)
	for id, want := range map[string]string{"c1": "Blue", "c2": "Red"} {
		o, ok := p.OptionByID(cardByID(back, id).Value("color").First())
		require.True(t, ok, id)
		assert.Equal(t, want, o.Value, id)
	}

	f.undoRestores(t, asText)
	f.undoRestores(t, original)
}

func TestChangeTypeSelectToMultiSelectKeepsOptionIDs(t *testing.T) {
	f := newFixture(t)
	s := f.snapshot(t)
	f.perform(t)(f.ed.ChangeType(s, "color", board.TypeMultiSelect))
	after := f.snapshot(t)
	assert.Equal(t, []string{"o-blue"}, cardByID(after, "c1").Value("color").Strings())
	assert.Equal(t, board.KindList, cardByID(after, "c1").Value("color").Kind())
	p, _ := after.Board.Property("color")
	assert.Len(t, p.Options, 2)
}

func TestChangeTypeTextToSelectDeduplicatesOptions(t *testing.T) {
	f := newFixture(t)
	s := f.snapshot(t)
	f.perform(t)(f.ed.UpdateCards(s, []CardUpdate{{ID: "c2", Values: map[string]board.Value{"notes": board.Text("FIRST")}}}))

	s = f.snapshot(t)
	f.perform(t)(f.ed.ChangeType(s, "notes", board.TypeSelect))
	after := f.snapshot(t)
	p, _ := after.Board.Property("notes")
	require.Len(t, p.Options, 2)
	assert.Equal(t, cardByID(after, "c1").Value("notes").First(), cardByID(after, "c2").Value("notes").First())
}

func TestChangeTypeTextToNumberDropsUnparsable(t *testing.T) {
	f := newFixture(t)
	s := f.snapshot(t)
	f.perform(t)(f.ed.UpdateCards(s, []CardUpdate{{ID: "c2", Values: map[string]board.Value{"notes": board.Text("42")}}}))
	s = f.snapshot(t)
	f.perform(t)(f.ed.ChangeType(s, "notes", board.TypeNumber))
	after := f.snapshot(t)
	got, ok := cardByID(after, "c2").Value("notes").Float()
	require.True(t, ok)
	assert.Equal(t, 42.0, got)
	assert.True(t, cardByID(after, "c1").Value("notes").IsEmpty())
}

func TestUpdateCardsIsOneUndoEntry(t *testing.T) {
	f := newFixture(t)
	before := f.snapshot(t)
	title := "Renamed"
	f.perform(t)(f.ed.UpdateCards(before, []CardUpdate{
		{ID: "c1", Title: &title, Values: map[string]board.Value{"notes": board.Value{}}},
		{ID: "c2", Values: map[string]board.Value{"color": board.Text("o-blue")}},
	}))
	after := f.snapshot(t)
	assert.Equal(t, "Renamed", cardByID(after, "c1").Title)
	assert.True(t, cardByID(after, "c1").Value("notes").IsEmpty())
	assert.Equal(t, "editor", cardByID(after, "c2").UpdatedBy)

	f.undoRestores(t, before)
	assert.False(t, f.log.CanUndo())
}

func TestUpdateCardsRejectsBadValues(t *testing.T) {
	f := newFixture(t)
	s := f.snapshot(t)
	var ve *ValueError

	_, err := f.ed.UpdateCards(s, []CardUpdate{{ID: "c1", Values: map[string]board.Value{"budget": board.Number(1)}}})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, CodeReadOnly, ve.Code)

	_, err = f.ed.UpdateCards(s, []CardUpdate{{ID: "c1", Values: map[string]board.Value{"color": board.Text("o-green")}}})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, CodeNotFound, ve.Code)

	_, err = f.ed.UpdateCards(s, []CardUpdate{{ID: "nope"}})
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestUpdatePropertyRemovingOptionClearsValues(t *testing.T) {
	f := newFixture(t)
	s := f.snapshot(t)
	opts := []board.Option{{ID: "o-blue", Value: "Blue"}}
	name := "Colour"
	f.perform(t)(f.ed.UpdateProperty(s, "color", PropertyPatch{Name: &name, Options: &opts}))
	after := f.snapshot(t)
	p, _ := after.Board.Property("color")
	assert.Equal(t, "Colour", p.Name)
	assert.True(t, cardByID(after, "c2").Value("color").IsEmpty())
	assert.Equal(t, "o-blue", cardByID(after, "c1").Value("color").First())
}

func TestSyncedPropertyKeepsTypeAndOptions(t *testing.T) {
	f := newFixture(t)
	s := f.snapshot(t)
	status := board.Property{ID: "status", Name: "Status", Type: board.TypeProposalStatus, ReadOnly: true,
		Options: []board.Option{{ID: "o-open", Value: "Open"}}}
	props := append(append([]board.Property{}, s.Board.Properties...), status)
	f.perform(t)(f.ed.ReplaceSchema(s, props, "sync schema"))
	s = f.snapshot(t)
	var ve *ValueError

	_, err := f.ed.ChangeType(s, "status", board.TypeText)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, CodeReadOnly, ve.Code)
	assert.Equal(t, "status", ve.PropertyID)

	opts := []board.Option{{Value: "Closed"}}
	_, err = f.ed.UpdateProperty(s, "status", PropertyPatch{Options: &opts})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, CodeReadOnly, ve.Code)

	writable := false
	_, err = f.ed.UpdateProperty(s, "status", PropertyPatch{ReadOnly: &writable})
	require.True(t, errors.As(err, &ve))

	// переименовать можно
	name := "Stage status"
	f.perform(t)(f.ed.UpdateProperty(s, "status", PropertyPatch{Name: &name}))
	p, ok := f.snapshot(t).Board.Property("status")
	require.True(t, ok)
	assert.Equal(t, board.TypeProposalStatus, p.Type)
}

func TestMoveProperty(t *testing.T) {
	f := newFixture(t)
	s := f.snapshot(t)
	f.perform(t)(f.ed.MoveProperty(s, "budget", 0))
	after := f.snapshot(t)
	assert.Equal(t, "budget", after.Board.Properties[0].ID)
	assert.Equal(t, "color", after.Board.Properties[1].ID)
}

func TestAddPropertyShowsInTableViews(t *testing.T) {
	f := newFixture(t)
	s := f.snapshot(t)
	e, p, err := f.ed.AddProperty(s, board.Property{Name: "Tags", Type: board.TypeMultiSelect, Options: []board.Option{{Value: "a"}, {Value: "A"}}})
	f.perform(t)(e, err)
	after := f.snapshot(t)
	got, ok := after.Board.Property(p.ID)
	require.True(t, ok)
	assert.Len(t, got.Options, 1)
	assert.Contains(t, after.Views[0].VisiblePropertyIDs, p.ID)
}

func TestDuplicateAndDeleteCard(t *testing.T) {
	f := newFixture(t)
	s := f.snapshot(t)
	e, dup, err := f.ed.DuplicateCard(s, "c1")
	f.perform(t)(e, err)
	after := f.snapshot(t)
	got := cardByID(after, dup.ID)
	assert.Equal(t, "One (copy)", got.Title)
	assert.True(t, got.Value("color").Equal(board.Text("o-blue")))

	before := after
	f.perform(t)(f.ed.DeleteCard(after, "c1"))
	after = f.snapshot(t)
	_, ok := after.card("c1")
	assert.False(t, ok)
	assert.Equal(t, []string{"c2"}, after.Views[0].CardOrder)
	f.undoRestores(t, before)
}

func TestUpdateViewValidatesFilter(t *testing.T) {
	f := newFixture(t)
	s := f.snapshot(t)
	bad := board.FilterGroup{Operation: board.OperationAnd, Filters: []board.FilterItem{
		board.ClauseItem(board.FilterClause{PropertyID: "color", Condition: board.CondGreaterThan, Values: []string{"1"}}),
	}}
	_, _, err := f.ed.UpdateView(s, "v1", ViewPatch{Filter: &bad})
	var ce *filter.ConditionError
	assert.True(t, errors.As(err, &ce))

	title := "Renamed"
	e, v, err := f.ed.UpdateView(s, "v1", ViewPatch{Title: &title})
	f.perform(t)(e, err)
	assert.Equal(t, "Renamed", v.Title)
}

func TestCreateBoardWithDefaultView(t *testing.T) {
	f := newFixture(t)
	e, b, v, err := f.ed.CreateBoard(board.Board{Title: "New", Properties: []board.Property{{Name: "Status", Type: board.TypeSelect}}})
	f.perform(t)(e, err)
	got, err := f.repo.Board(f.ctx, b.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.Properties[0].ID)
	views, err := f.repo.Views(f.ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, v.ID, views[0].ID)
	assert.Equal(t, []string{got.Properties[0].ID}, views[0].VisiblePropertyIDs)

	_, err = f.log.Undo(f.ctx)
	require.NoError(t, err)
	_, err = f.repo.Board(f.ctx, b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReplaceSchemaCascadesRemovedAndShowsAdded(t *testing.T) {
	f := newFixture(t)
	before := f.snapshot(t)
	props := []board.Property{
		{ID: "notes", Name: "Notes", Type: board.TypeText},
		{ID: "score", Name: "Score", Type: board.TypeNumber, ReadOnly: true},
	}
	f.perform(t)(f.ed.ReplaceSchema(before, props, "sync schema"))

	after := f.snapshot(t)
	require.Len(t, after.Board.Properties, 2)
	v := after.Views[0]
	assert.Equal(t, []string{"notes", "score"}, v.VisiblePropertyIDs)
	assert.False(t, v.Filter.References("color"))
	assert.False(t, v.Filter.References("budget"))
	assert.Empty(t, v.GroupByID)
	_, has := cardByID(after, "c1").Values["budget"]
	assert.False(t, has)

	f.undoRestores(t, before)

	_, err := f.ed.ReplaceSchema(before, []board.Property{{ID: "a"}, {ID: "a"}}, "dup")
	assert.ErrorIs(t, err, board.ErrInvalidInput)
}
