package filter

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boards/internal/board"
)

func testBoard() board.Board {
	return board.Board{
		ID: "b1",
		Properties: []board.Property{
			{ID: "text", Name: "Text", Type: board.TypeText},
			{ID: "done", Name: "Done", Type: board.TypeCheckbox},
			{ID: "num", Name: "Budget", Type: board.TypeNumber},
			{ID: "sel", Name: "Color", Type: board.TypeSelect, Options: []board.Option{{ID: "o-blue", Value: "Blue"}, {ID: "o-red", Value: "Red"}}},
			{ID: "tags", Name: "Tags", Type: board.TypeMultiSelect},
			{ID: "due", Name: "Due", Type: board.TypeDate},
			{ID: "created", Name: "Created", Type: board.TypeCreatedTime},
			{ID: "status", Name: "Status", Type: board.TypeProposalStatus},
			{ID: "evaltype", Name: "Evaluation type", Type: board.TypeProposalEvaluationType},
		},
	}
}

func clause(prop string, cond board.Condition, values ...string) board.FilterClause {
	return board.FilterClause{FilterID: "f-" + prop, PropertyID: prop, Condition: cond, Values: values}
}

func quietEngine() (Engine, *bytes.Buffer) {
	var buf bytes.Buffer
	return Engine{Logger: log.New(&buf, "", 0)}, &buf
}

func TestEmptyGroupMatchesEveryCard(t *testing.T) {
	b := testBoard()
	cards := []board.Card{
		{ID: "c1"},
		{ID: "c2", Title: "x", Values: map[string]board.Value{"num": board.Number(1)}},
	}
	for _, op := range []board.Operation{board.OperationAnd, board.OperationOr, ""} {
		for _, c := range cards {
			assert.True(t, IsGroupMet(board.FilterGroup{Operation: op}, b, c))
		}
	}
}

func TestTextConditionsAreCaseInsensitive(t *testing.T) {
	b := testBoard()
	card := board.Card{Title: "Grant For Docs", Values: map[string]board.Value{"text": board.Text("Hello World")}}

	assert.True(t, IsClauseMet(clause("text", board.CondContains, "WORLD"), b, card))
	assert.True(t, IsClauseMet(clause("text", board.CondStartsWith, "hello"), b, card))
	assert.True(t, IsClauseMet(clause("text", board.CondIs, "hello world"), b, card))
	assert.False(t, IsClauseMet(clause("text", board.CondDoesNotContain, "world"), b, card))
	assert.True(t, IsClauseMet(clause(board.TitlePropertyID, board.CondEndsWith, "DOCS"), b, card))
	assert.True(t, IsClauseMet(clause("text", board.CondIsNotEmpty), b, card))
	assert.True(t, IsClauseMet(clause("text", board.CondIsEmpty), b, board.Card{}))
}

func TestBooleanDefaultsToFalse(t *testing.T) {
	b := testBoard()
	assert.True(t, IsClauseMet(clause("done", board.CondIs, "false"), b, board.Card{}))
	assert.False(t, IsClauseMet(clause("done", board.CondIsNot, "false"), b, board.Card{}))
	checked := board.Card{Values: map[string]board.Value{"done": board.Bool(true)}}
	assert.True(t, IsClauseMet(clause("done", board.CondIs, "true"), b, checked))
}

func TestNumberConditions(t *testing.T) {
	b := testBoard()
	card := board.Card{Values: map[string]board.Value{"num": board.Number(10)}}
	assert.True(t, IsClauseMet(clause("num", board.CondEqual, "10"), b, card))
	assert.True(t, IsClauseMet(clause("num", board.CondGreaterThan, "9.5"), b, card))
	assert.False(t, IsClauseMet(clause("num", board.CondLessThan, "10"), b, card))
	assert.True(t, IsClauseMet(clause("num", board.CondLessThanEqual, "10"), b, card))
	assert.False(t, IsClauseMet(clause("num", board.CondGreaterThan, "1"), b, board.Card{}))
	assert.True(t, IsClauseMet(clause("num", board.CondIsEmpty), b, board.Card{}))
}

func TestSelectIsNotOnEmptyValue(t *testing.T) {
	b := testBoard()
	assert.True(t, IsClauseMet(clause("sel", board.CondIsNot, "o-blue"), b, board.Card{}))
	blue := board.Card{Values: map[string]board.Value{"sel": board.Text("o-blue")}}
	assert.False(t, IsClauseMet(clause("sel", board.CondIsNot, "o-blue"), b, blue))
	assert.True(t, IsClauseMet(clause("sel", board.CondIs, "o-blue"), b, blue))
}

func TestMultiSelectContainsAndDoesNotContainAreExclusive(t *testing.T) {
	b := testBoard()
	card := board.Card{Values: map[string]board.Value{"tags": board.List("a")}}
	assert.True(t, IsClauseMet(clause("tags", board.CondContains, "a"), b, card))

	// добавление значений не может сделать does_not_contain истинным
	for _, more := range [][]string{{"a", "b"}, {"a", "b", "c"}, {"c", "a"}} {
		card.Values["tags"] = board.List(more...)
		assert.True(t, IsClauseMet(clause("tags", board.CondContains, "a"), b, card))
		assert.False(t, IsClauseMet(clause("tags", board.CondDoesNotContain, "a"), b, card))
	}
}

func TestMultiSelectFlattensReferences(t *testing.T) {
	b := testBoard()
	v, err := board.FromAny([]any{map[string]any{"userId": "u1"}, map[string]any{"roleId": "r1"}})
	require.NoError(t, err)
	card := board.Card{Values: map[string]board.Value{"tags": v}}
	assert.True(t, IsClauseMet(clause("tags", board.CondContains, "r1"), b, card))
}

func TestStatusColumnUsesStatusMapping(t *testing.T) {
	b := testBoard()
	card := board.Card{Values: map[string]board.Value{
		"status":   board.List("in_progress"),
		"evaltype": board.Text("feedback"),
	}}
	assert.True(t, IsClauseMet(clause("status", board.CondContains, "in_progress"), b, card))

	passed := board.Card{Values: map[string]board.Value{
		"status":   board.List("pass"),
		"evaltype": board.Text("feedback"),
	}}
	// сырой код "pass" не сравнивается напрямую
	assert.False(t, IsClauseMet(clause("status", board.CondContains, "pass"), b, passed))
	assert.True(t, IsClauseMet(clause("status", board.CondContains, "complete"), b, passed))
	// отрицание применяется после отображения
	assert.True(t, IsClauseMet(clause("status", board.CondDoesNotContain, "pass"), b, passed))
	assert.False(t, IsClauseMet(clause("status", board.CondDoesNotContain, "complete"), b, passed))

	calls := 0
	e := Engine{Status: func(result, evalType string) string {
		calls++
		assert.Equal(t, "feedback", evalType)
		return "mapped"
	}}
	assert.True(t, e.IsClauseMet(clause("status", board.CondContains, "mapped"), b, card))
	assert.Equal(t, 1, calls)
}

func TestDateConditions(t *testing.T) {
	b := testBoard()
	card := board.Card{
		CreatedAt: 2000,
		Values:    map[string]board.Value{"due": board.Text(`{"from":1000}`)},
	}
	assert.True(t, IsClauseMet(clause("due", board.CondIsBefore, "1500"), b, card))
	assert.True(t, IsClauseMet(clause("due", board.CondIsOnOrAfter, `{"from":1000}`), b, card))
	assert.False(t, IsClauseMet(clause("due", board.CondIsAfter, "1000"), b, card))
	// встроенная дата берётся из служебного поля карточки
	assert.True(t, IsClauseMet(clause("created", board.CondIs, "2000"), b, card))
	assert.True(t, IsClauseMet(clause("created", board.CondIsAfter, "1000"), b, card))
}

func TestMalformedDateIsLoggedAndTreatedAsEmpty(t *testing.T) {
	b := testBoard()
	e, buf := quietEngine()
	card := board.Card{ID: "c9", Values: map[string]board.Value{"due": board.Text(`{"from":`)}}
	assert.True(t, e.IsClauseMet(clause("due", board.CondIsEmpty), b, card))
	assert.False(t, e.IsClauseMet(clause("due", board.CondIsBefore, "5"), b, card))
	assert.Contains(t, buf.String(), "malformed date")
}

func TestMissingPropertyIsLoggedAndDoesNotMatch(t *testing.T) {
	b := testBoard()
	e, buf := quietEngine()
	assert.False(t, e.IsClauseMet(clause("gone", board.CondIsEmpty), b, board.Card{}))
	assert.Contains(t, buf.String(), "missing property gone")
}

func TestUnknownConditionPanics(t *testing.T) {
	b := testBoard()
	assert.PanicsWithError(t, `filter: condition "contains" is not supported for select properties`, func() {
		IsClauseMet(clause("sel", board.CondContains, "x"), b, board.Card{})
	})
	assert.Panics(t, func() {
		IsClauseMet(clause("num", board.CondIs, "1"), b, board.Card{})
	})
}

func TestGroupOperations(t *testing.T) {
	b := testBoard()
	card := board.Card{Values: map[string]board.Value{"num": board.Number(5), "text": board.Text("abc")}}
	hit := board.ClauseItem(clause("num", board.CondEqual, "5"))
	miss := board.ClauseItem(clause("text", board.CondIs, "zzz"))

	assert.True(t, IsGroupMet(board.FilterGroup{Operation: board.OperationOr, Filters: []board.FilterItem{miss, hit}}, b, card))
	assert.False(t, IsGroupMet(board.FilterGroup{Operation: board.OperationAnd, Filters: []board.FilterItem{hit, miss}}, b, card))

	nested := board.FilterGroup{Operation: board.OperationAnd, Filters: []board.FilterItem{
		hit,
		board.GroupItem(board.FilterGroup{Operation: board.OperationOr, Filters: []board.FilterItem{miss, hit}}),
	}}
	assert.True(t, IsGroupMet(nested, b, card))
}

func TestApplyGroupRescuesParentsWithMatchingSubCards(t *testing.T) {
	b := testBoard()
	g := board.FilterGroup{Operation: board.OperationAnd, Filters: []board.FilterItem{
		board.ClauseItem(clause("sel", board.CondIs, "o-red")),
	}}
	red := board.Card{ID: "sub-red", Values: map[string]board.Value{"sel": board.Text("o-red")}}
	blue := board.Card{ID: "sub-blue", Values: map[string]board.Value{"sel": board.Text("o-blue")}}
	cards := []board.Card{
		{ID: "match", Values: map[string]board.Value{"sel": board.Text("o-red")}},
		{ID: "parent", SubCards: []board.Card{blue, red}},
		{ID: "orphan", SubCards: []board.Card{blue}},
		{ID: "none"},
	}
	out := ApplyGroup(g, b, cards)
	require.Len(t, out, 2)
	assert.Equal(t, "match", out[0].ID)
	assert.Equal(t, "parent", out[1].ID)
	require.Len(t, out[1].SubCards, 1)
	assert.Equal(t, "sub-red", out[1].SubCards[0].ID)
	assert.Len(t, cards[1].SubCards, 2, "input must not be modified")
}

func TestValidate(t *testing.T) {
	b := testBoard()
	ok := board.FilterGroup{Operation: board.OperationOr, Filters: []board.FilterItem{
		board.ClauseItem(clause("tags", board.CondContains, "a")),
		board.GroupItem(board.FilterGroup{Operation: board.OperationAnd, Filters: []board.FilterItem{
			board.ClauseItem(clause(board.TitlePropertyID, board.CondStartsWith, "x")),
		}}),
	}}
	require.NoError(t, Validate(ok, b))

	bad := board.FilterGroup{Operation: board.OperationAnd, Filters: []board.FilterItem{
		board.ClauseItem(clause("sel", board.CondGreaterThan, "1")),
	}}
	var ce *ConditionError
	require.True(t, errors.As(Validate(bad, b), &ce))
	assert.Equal(t, board.ClassSelect, ce.Class)

	missing := board.FilterGroup{Operation: board.OperationAnd, Filters: []board.FilterItem{
		board.ClauseItem(clause("gone", board.CondIsEmpty)),
	}}
	assert.ErrorIs(t, Validate(missing, b), board.ErrInvalidInput)
	assert.ErrorIs(t, Validate(board.FilterGroup{Operation: "xor"}, b), board.ErrInvalidInput)
}
