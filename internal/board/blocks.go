package board

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"boards/internal/block"
)

var (
	idMu      sync.Mutex
	idEntropy io.Reader = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewID: ULID для досок, карточек, представлений и колонок.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy).String()
}

// NewOptionID: id варианта select.
func NewOptionID() string { return uuid.NewString() }

type boardFields struct {
	SpaceID     string       `json:"spaceId,omitempty"`
	Properties  []Property   `json:"cardProperties"`
	SourceType  string       `json:"sourceType,omitempty"`
	Selection   *Selection   `json:"selection,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
}

type cardFields struct {
	Values      map[string]Value `json:"properties"`
	Content     string           `json:"contentText,omitempty"`
	IsTemplate  bool             `json:"isTemplate,omitempty"`
	Permissions []Permission     `json:"permissions,omitempty"`
}

type viewFields struct {
	Kind                  ViewKind     `json:"viewType"`
	SortOptions           []SortOption `json:"sortOptions"`
	VisiblePropertyIDs    []string     `json:"visiblePropertyIds"`
	Filter                FilterGroup  `json:"filter"`
	CardOrder             []string     `json:"cardOrder"`
	GroupByID             string       `json:"groupById,omitempty"`
	DateDisplayPropertyID string       `json:"dateDisplayPropertyId,omitempty"`
}

func (b Board) ToBlock() (block.Block, error) {
	fields, err := block.Normalize(boardFields{
		SpaceID:     b.SpaceID,
		Properties:  nonNilProps(b.Properties),
		SourceType:  b.SourceType,
		Selection:   b.Selection,
		Permissions: b.Permissions,
	})
	if err != nil {
		return block.Block{}, fmt.Errorf("board %s: %w", b.ID, err)
	}
	return block.Block{
		ID: b.ID, BoardID: b.ID, Type: block.TypeBoard, Title: b.Title, Fields: fields,
		CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt, CreatedBy: b.CreatedBy, UpdatedBy: b.UpdatedBy,
	}, nil
}

func BoardFromBlock(b block.Block) (Board, error) {
	if b.Type != block.TypeBoard {
		return Board{}, fmt.Errorf("%w: block %s is %s, not board", ErrInvalidInput, b.ID, b.Type)
	}
	var f boardFields
	if err := block.Decode(b.Fields, &f); err != nil {
		return Board{}, fmt.Errorf("board %s: %w", b.ID, err)
	}
	return Board{
		ID: b.ID, SpaceID: f.SpaceID, Title: b.Title, Properties: f.Properties,
		SourceType: f.SourceType, Selection: f.Selection, Permissions: f.Permissions,
		CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt, CreatedBy: b.CreatedBy, UpdatedBy: b.UpdatedBy,
	}, nil
}

func (c Card) ToBlock() (block.Block, error) {
	values := c.Values
	if values == nil {
		values = map[string]Value{}
	}
	fields, err := block.Normalize(cardFields{
		Values: values, Content: c.Content, IsTemplate: c.IsTemplate, Permissions: c.Permissions,
	})
	if err != nil {
		return block.Block{}, fmt.Errorf("card %s: %w", c.ID, err)
	}
	parent := c.ParentID
	if parent == "" {
		parent = c.BoardID
	}
	return block.Block{
		ID: c.ID, BoardID: c.BoardID, ParentID: parent, Type: block.TypeCard, Title: c.Title,
		Fields: fields, SyncedWith: c.SyncedWith,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt, CreatedBy: c.CreatedBy, UpdatedBy: c.UpdatedBy,
	}, nil
}

func CardFromBlock(b block.Block) (Card, error) {
	if b.Type != block.TypeCard {
		return Card{}, fmt.Errorf("%w: block %s is %s, not card", ErrInvalidInput, b.ID, b.Type)
	}
	var f cardFields
	if err := block.Decode(b.Fields, &f); err != nil {
		return Card{}, fmt.Errorf("card %s: %w", b.ID, err)
	}
	if f.Values == nil {
		f.Values = map[string]Value{}
	}
	return Card{
		ID: b.ID, BoardID: b.BoardID, ParentID: b.ParentID, Title: b.Title, Values: f.Values,
		Content: f.Content, SyncedWith: b.SyncedWith, IsTemplate: f.IsTemplate, Permissions: f.Permissions,
		CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt, CreatedBy: b.CreatedBy, UpdatedBy: b.UpdatedBy,
	}, nil
}

func (v View) ToBlock() (block.Block, error) {
	filter := v.Filter
	if filter.Operation == "" {
		filter.Operation = OperationAnd
	}
	if filter.Filters == nil {
		filter.Filters = []FilterItem{}
	}
	fields, err := block.Normalize(viewFields{
		Kind:                  v.Kind,
		SortOptions:           nonNil(v.SortOptions),
		VisiblePropertyIDs:    nonNil(v.VisiblePropertyIDs),
		Filter:                filter,
		CardOrder:             nonNil(v.CardOrder),
		GroupByID:             v.GroupByID,
		DateDisplayPropertyID: v.DateDisplayPropertyID,
	})
	if err != nil {
		return block.Block{}, fmt.Errorf("view %s: %w", v.ID, err)
	}
	return block.Block{
		ID: v.ID, BoardID: v.BoardID, ParentID: v.BoardID, Type: block.TypeView, Title: v.Title, Fields: fields,
		CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt, CreatedBy: v.CreatedBy, UpdatedBy: v.UpdatedBy,
	}, nil
}

func ViewFromBlock(b block.Block) (View, error) {
	if b.Type != block.TypeView {
		return View{}, fmt.Errorf("%w: block %s is %s, not view", ErrInvalidInput, b.ID, b.Type)
	}
	var f viewFields
	if err := block.Decode(b.Fields, &f); err != nil {
		return View{}, fmt.Errorf("view %s: %w", b.ID, err)
	}
	if f.Filter.Operation == "" {
		f.Filter.Operation = OperationAnd
	}
	return View{
		ID: b.ID, BoardID: b.BoardID, Title: b.Title, Kind: f.Kind, SortOptions: f.SortOptions,
		VisiblePropertyIDs: f.VisiblePropertyIDs, Filter: f.Filter, CardOrder: f.CardOrder,
		GroupByID: f.GroupByID, DateDisplayPropertyID: f.DateDisplayPropertyID,
		CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt, CreatedBy: b.CreatedBy, UpdatedBy: b.UpdatedBy,
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilProps(p []Property) []Property { return nonNil(p) }
