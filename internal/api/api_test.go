package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boards/internal/board"
	"boards/internal/dsl"
	"boards/internal/mutation"
	"boards/internal/projection"
	"boards/internal/reference"
	"boards/internal/store"
	"boards/internal/workflow"
)

type fixture struct {
	router http.Handler
	src    *workflow.Memory
	bus    *mutation.Broadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	templates, err := dsl.Parse(strings.NewReader("board Grants:\n  Stage: select[Todo, Done]\n  Priority: select catalog=priority\n"))
	require.NoError(t, err)
	byName := map[string]*dsl.Template{}
	for _, tpl := range templates {
		byName[tpl.Name] = tpl
	}

	quiet := log.New(io.Discard, "", 0)
	mem := store.NewMemory()
	src := workflow.NewMemory()
	bus := mutation.NewBroadcaster()
	s := NewServer(Deps{
		Store:     mem,
		Log:       mutation.New(mem, mutation.WithLogger(quiet), mutation.WithBroadcaster(bus)),
		Pipeline:  &projection.Pipeline{Store: mem, Reader: src, Permissions: src, Logger: quiet},
		Templates: byName,
		Catalogs: reference.Catalogs{"priority": {Name: "priority", Items: []reference.Item{
			{Code: "lo", Name: "Low", Order: 2},
			{Code: "hi", Name: "High", Order: 1},
		}}},
		Logger: quiet,
	})
	return &fixture{router: NewRouter(s), src: src, bus: bus}
}

func (f *fixture) do(t *testing.T, method, path string, body any, actor string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type createdBoard struct {
	Board board.Board `json:"board"`
	View  board.View  `json:"view"`
}

type errorsBody struct {
	Errors []FieldError `json:"errors"`
}

// seeded: доска Status(select)/Score(number) и три карточки.
func (f *fixture) seeded(t *testing.T) (createdBoard, []board.Card) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/boards", gin.H{
		"title": "Tasks",
		"properties": []gin.H{
			{"name": "Status", "type": "select", "options": []gin.H{{"value": "Todo"}, {"value": "Done"}}},
			{"name": "Score", "type": "number"},
		},
	}, "alice")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[createdBoard](t, w)
	require.Len(t, b.Board.Properties, 2)

	status, score := b.Board.Properties[0], b.Board.Properties[1]
	var cards []board.Card
	for i, spec := range []struct {
		title  string
		option int
		score  float64
	}{{"a", 0, 3}, {"b", 1, 7}, {"c", 1, 5}} {
		w := f.do(t, http.MethodPost, "/api/boards/"+b.Board.ID+"/cards", gin.H{
			"title":  spec.title,
			"values": gin.H{status.ID: status.Options[spec.option].ID, score.ID: spec.score},
		}, "alice")
		require.Equal(t, http.StatusCreated, w.Code, "card %d: %s", i, w.Body.String())
		cards = append(cards, decode[board.Card](t, w))
	}
	return b, cards
}

func cardsPath(b createdBoard) string {
	return "/api/boards/" + b.Board.ID + "/views/" + b.View.ID + "/cards"
}

func titles(cards []board.Card) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Title)
	}
	return out
}

func TestViewCardsFilterSortAndPage(t *testing.T) {
	f := newFixture(t)
	b, _ := f.seeded(t)
	status, score := b.Board.Properties[0], b.Board.Properties[1]

	w := f.do(t, http.MethodPatch, "/api/boards/"+b.Board.ID+"/views/"+b.View.ID, gin.H{
		"filter": gin.H{"operation": "and", "filters": []gin.H{
			{"propertyId": status.ID, "condition": "is", "values": []string{status.Options[1].ID}},
		}},
		"sortOptions": []gin.H{{"propertyId": score.ID, "reversed": true}},
	}, "alice")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, cardsPath(b), nil, "alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
	assert.Equal(t, []string{"b", "c"}, titles(decode[[]board.Card](t, w)))

	// разовая сортировка из query перекрывает сохранённую
	w = f.do(t, http.MethodGet, cardsPath(b)+"?sort="+score.ID, nil, "alice")
	assert.Equal(t, []string{"c", "b"}, titles(decode[[]board.Card](t, w)))

	w = f.do(t, http.MethodGet, cardsPath(b)+"?limit=1&offset=1", nil, "alice")
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
	assert.Equal(t, []string{"c"}, titles(decode[[]board.Card](t, w)))
}

func TestValidationErrors(t *testing.T) {
	f := newFixture(t)
	b, cards := f.seeded(t)
	status := b.Board.Properties[0]

	w := f.do(t, http.MethodPost, "/api/boards/"+b.Board.ID+"/cards", gin.H{"values": gin.H{"nope": "x"}}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrNotFound, decode[errorsBody](t, w).Errors[0].Code)

	w = f.do(t, http.MethodPatch, "/api/boards/"+b.Board.ID+"/views/"+b.View.ID, gin.H{
		"filter": gin.H{"operation": "and", "filters": []gin.H{
			{"propertyId": status.ID, "condition": "greater_than", "values": []string{"1"}},
		}},
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrUnknownCondition, decode[errorsBody](t, w).Errors[0].Code)

	w = f.do(t, http.MethodPost, "/api/boards/"+b.Board.ID+"/properties", gin.H{"name": "Locked", "type": "text", "readOnly": true}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	locked := decode[board.Property](t, w)

	w = f.do(t, http.MethodPatch, "/api/boards/"+b.Board.ID+"/cards", []gin.H{
		{"id": cards[0].ID, "values": gin.H{locked.ID: "x"}},
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrReadOnly, decode[errorsBody](t, w).Errors[0].Code)

	w = f.do(t, http.MethodPost, "/api/boards", gin.H{"title": " "}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrRequired, decode[errorsBody](t, w).Errors[0].Code)

	w = f.do(t, http.MethodGet, "/api/boards/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePropertyThenUndo(t *testing.T) {
	f := newFixture(t)
	b, _ := f.seeded(t)
	score := b.Board.Properties[1]

	w := f.do(t, http.MethodDelete, "/api/boards/"+b.Board.ID+"/properties/"+score.ID, nil, "alice")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, cardsPath(b), nil, "")
	for _, c := range decode[[]board.Card](t, w) {
		assert.True(t, c.Value(score.ID).IsEmpty(), "card %s keeps a value of the deleted column", c.Title)
	}

	w = f.do(t, http.MethodPost, "/api/undo", nil, "alice")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	h := decode[historyResp](t, w)
	assert.True(t, h.CanRedo)

	w = f.do(t, http.MethodGet, "/api/boards/"+b.Board.ID, nil, "")
	var got struct {
		Board board.Board  `json:"board"`
		Views []board.View `json:"views"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Board.Properties, 2)
	assert.Contains(t, got.Views[0].VisiblePropertyIDs, score.ID)

	w = f.do(t, http.MethodGet, cardsPath(b), nil, "")
	vals := map[string]float64{}
	for _, c := range decode[[]board.Card](t, w) {
		n, ok := c.Value(score.ID).Float()
		require.True(t, ok)
		vals[c.Title] = n
	}
	assert.Equal(t, map[string]float64{"a": 3, "b": 7, "c": 5}, vals)

	// redo снова удаляет колонку; второй redo — конфликт
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/redo", nil, "").Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/redo", nil, "").Code)
}

func TestDuplicateAndDeleteCard(t *testing.T) {
	f := newFixture(t)
	b, cards := f.seeded(t)

	w := f.do(t, http.MethodPost, "/api/boards/"+b.Board.ID+"/cards/"+cards[0].ID+"/duplicate", nil, "bob")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dup := decode[board.Card](t, w)
	assert.NotEqual(t, cards[0].ID, dup.ID)
	assert.Equal(t, "bob", dup.CreatedBy)

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/boards/"+b.Board.ID+"/cards/"+cards[1].ID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/boards/"+b.Board.ID+"/cards/"+cards[1].ID, nil, "").Code)

	w = f.do(t, http.MethodGet, cardsPath(b), nil, "")
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
}

func TestExportView(t *testing.T) {
	f := newFixture(t)
	b, _ := f.seeded(t)

	w := f.do(t, http.MethodGet, "/api/boards/"+b.Board.ID+"/views/"+b.View.ID+"/export", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/tab-separated-values"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Tasks - Table view.tsv")

	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Title\tStatus\tScore", lines[0])
	assert.Contains(t, lines[1:], "a\tTodo\t3")
}

func TestCreateBoardFromTemplate(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/boards", gin.H{"title": "Round 1", "template": "grants"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[createdBoard](t, w)
	require.Len(t, b.Board.Properties, 2)
	assert.Equal(t, "Stage", b.Board.Properties[0].Name)
	prio := b.Board.Properties[1]
	require.Len(t, prio.Options, 2)
	assert.Equal(t, "hi", prio.Options[0].ID)
	assert.Equal(t, "High", prio.Options[0].Value)

	w = f.do(t, http.MethodPost, "/api/boards", gin.H{"title": "x", "template": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// колонка со справочником через API
	w = f.do(t, http.MethodPost, "/api/boards/"+b.Board.ID+"/properties", gin.H{"name": "Tier", "type": "multi_select", "catalog": "priority", "index": 0}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = f.do(t, http.MethodGet, "/api/boards/"+b.Board.ID, nil, "")
	got := decode[struct {
		Board board.Board `json:"board"`
	}](t, w)
	require.Len(t, got.Board.Properties, 3)
	assert.Equal(t, "Tier", got.Board.Properties[0].Name)
	assert.Len(t, got.Board.Properties[0].Options, 2)
}

// drainTypes забирает уже разосланные события, не дожидаясь новых.
func drainTypes(ch chan mutation.Event) []mutation.EventType {
	var out []mutation.EventType
	for {
		select {
		case ev := <-ch:
			out = append(out, ev.Type)
		default:
			return out
		}
	}
}

func TestSyncBoard(t *testing.T) {
	f := newFixture(t)
	f.src.PutTemplate("space", workflow.Template{ID: "t1", Title: "Grants", Stages: []workflow.Stage{
		{ID: "s1", Title: "Review", Type: workflow.EvaluationPassFail},
	}})
	f.src.PutItem(workflow.Item{
		ID: "p1", SpaceID: "space", TemplateID: "t1", Title: "Bridge", Path: "bridge",
		Status: workflow.StatusPublished, CreatedAt: 100, UpdatedAt: 100,
		Stages: []workflow.Stage{{ID: "s1", Title: "Review", Type: workflow.EvaluationPassFail, Result: workflow.ResultPass}},
	})
	f.src.Grant("alice", "*", workflow.Permissions{View: true})

	w := f.do(t, http.MethodPost, "/api/boards", gin.H{"title": "Proposals", "sourceType": "proposals", "spaceId": "space"}, "alice")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[createdBoard](t, w)
	events := f.bus.Subscribe()
	defer f.bus.Unsubscribe(events)

	var res struct {
		SchemaChanged bool             `json:"schemaChanged"`
		CreatedRows   int              `json:"createdRows"`
		Properties    []board.Property `json:"properties"`
	}
	w = f.do(t, http.MethodPost, "/api/boards/"+b.Board.ID+"/sync", nil, "alice")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.SchemaChanged)
	assert.Equal(t, 1, res.CreatedRows)
	assert.NotEmpty(t, res.Properties)
	assert.Equal(t, []mutation.EventType{mutation.EventPerform, mutation.EventSync}, drainTypes(events))

	w = f.do(t, http.MethodPost, "/api/boards/"+b.Board.ID+"/sync", nil, "alice")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.SchemaChanged)
	assert.Equal(t, 0, res.CreatedRows)
	assert.Empty(t, drainTypes(events))

	w = f.do(t, http.MethodGet, cardsPath(b), nil, "alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Bridge"}, titles(decode[[]board.Card](t, w)))

	w = f.do(t, http.MethodGet, cardsPath(b), nil, "bob")
	assert.Equal(t, "0", w.Header().Get("X-Total-Count"))

	plain, _ := f.seeded(t)
	w = f.do(t, http.MethodPost, "/api/boards/"+plain.Board.ID+"/sync", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSchemaLint(t *testing.T) {
	b := board.Board{ID: "b1", Properties: []board.Property{
		{ID: "p1", Name: "Status", Type: board.TypeSelect, Options: []board.Option{{ID: "o1", Value: "Done"}, {ID: "o2", Value: "done"}}},
		{ID: "p1", Name: "Copy", Type: board.TypeText},
	}}
	views := []board.View{{
		ID: "v1", Title: "All",
		VisiblePropertyIDs: []string{board.TitlePropertyID, "p1", "ghost"},
		SortOptions:        []board.SortOption{{PropertyID: "gone"}},
		Filter: board.FilterGroup{Operation: board.OperationAnd, Filters: []board.FilterItem{
			board.ClauseItem(board.FilterClause{PropertyID: "ghost", Condition: board.CondIs}),
		}},
	}}
	codes := map[string]int{}
	for _, is := range SchemaLint(b, views) {
		codes[is.Code]++
	}
	assert.Equal(t, map[string]int{"duplicate_property_id": 1, "duplicate_option_value": 1, "missing_property": 3}, codes)

	f := newFixture(t)
	created, _ := f.seeded(t)
	w := f.do(t, http.MethodGet, "/api/boards/"+created.Board.ID+"/lint", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"issues":[]}`, w.Body.String())
}

func TestMetaTypes(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/meta/types", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	types := decode[[]metaType](t, w)
	require.Len(t, types, len(board.Types))
	for _, mt := range types {
		if mt.Type == board.TypeSelect {
			assert.Contains(t, mt.Conditions, board.CondIs)
			assert.True(t, mt.HasOptions)
		}
	}

	w = f.do(t, http.MethodGet, "/api/meta/catalogs", nil, "")
	cats := decode[[]metaCatalog](t, w)
	require.Len(t, cats, 1)
	assert.Equal(t, "hi", cats[0].Options[0].ID)
	w = f.do(t, http.MethodGet, "/api/meta/templates", nil, "")
	tpls := decode[[]metaTemplate](t, w)
	require.Len(t, tpls, 1)
	assert.Equal(t, "Grants", tpls[0].Name)
}
