package board

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type Operation string

const (
	OperationAnd Operation = "and"
	OperationOr  Operation = "or"
)

// Condition: условие клаузы; допустимый набор зависит от класса типа колонки.
type Condition string

const (
	CondIs             Condition = "is"
	CondIsNot          Condition = "is_not"
	CondContains       Condition = "contains"
	CondDoesNotContain Condition = "does_not_contain"
	CondStartsWith     Condition = "starts_with"
	CondEndsWith       Condition = "ends_with"
	CondIsEmpty        Condition = "is_empty"
	CondIsNotEmpty     Condition = "is_not_empty"

	CondEqual            Condition = "equal"
	CondNotEqual         Condition = "not_equal"
	CondGreaterThan      Condition = "greater_than"
	CondLessThan         Condition = "less_than"
	CondGreaterThanEqual Condition = "greater_than_equal"
	CondLessThanEqual    Condition = "less_than_equal"

	CondIsBefore     Condition = "is_before"
	CondIsAfter      Condition = "is_after"
	CondIsOnOrBefore Condition = "is_on_or_before"
	CondIsOnOrAfter  Condition = "is_on_or_after"
)

// FilterClause: предикат по одной колонке.
type FilterClause struct {
	FilterID   string    `json:"filterId"`
	PropertyID string    `json:"propertyId"`
	Condition  Condition `json:"condition"`
	Values     []string  `json:"values"`
}

// FilterGroup: and/or дерево клауз и подгрупп.
type FilterGroup struct {
	Operation Operation    `json:"operation"`
	Filters   []FilterItem `json:"filters"`
}

// FilterItem: элемент группы: либо клауза, либо вложенная группа.
type FilterItem struct {
	Clause *FilterClause
	Group  *FilterGroup
}

func ClauseItem(c FilterClause) FilterItem { return FilterItem{Clause: &c} }
func GroupItem(g FilterGroup) FilterItem   { return FilterItem{Group: &g} }

// NewFilterID генерирует id клаузы.
func NewFilterID() string { return uuid.NewString() }

func (it FilterItem) MarshalJSON() ([]byte, error) {
	switch {
	case it.Group != nil:
		return json.Marshal(it.Group)
	case it.Clause != nil:
		return json.Marshal(it.Clause)
	}
	return []byte("null"), nil
}

// UnmarshalJSON различает группу и клаузу по наличию поля "operation".
func (it *FilterItem) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decode filter item: %w", err)
	}
	if _, ok := probe["operation"]; ok {
		var g FilterGroup
		if err := json.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("decode filter group: %w", err)
		}
		*it = FilterItem{Group: &g}
		return nil
	}
	var c FilterClause
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("decode filter clause: %w", err)
	}
	*it = FilterItem{Clause: &c}
	return nil
}

// Walk обходит все клаузы дерева.
func (g FilterGroup) Walk(fn func(c FilterClause)) {
	for _, it := range g.Filters {
		switch {
		case it.Clause != nil:
			fn(*it.Clause)
		case it.Group != nil:
			it.Group.Walk(fn)
		}
	}
}

// WithoutProperty возвращает копию дерева без клауз по колонке; опустевшие подгруппы тоже удаляются.
func (g FilterGroup) WithoutProperty(propertyID string) FilterGroup {
	out := FilterGroup{Operation: g.Operation, Filters: make([]FilterItem, 0, len(g.Filters))}
	for _, it := range g.Filters {
		switch {
		case it.Clause != nil:
			if it.Clause.PropertyID == propertyID {
				continue
			}
			c := *it.Clause
			c.Values = append([]string(nil), c.Values...)
			out.Filters = append(out.Filters, FilterItem{Clause: &c})
		case it.Group != nil:
			sub := it.Group.WithoutProperty(propertyID)
			if len(sub.Filters) == 0 {
				continue
			}
			out.Filters = append(out.Filters, FilterItem{Group: &sub})
		}
	}
	if out.Operation == "" {
		out.Operation = OperationAnd
	}
	return out
}

// References: ссылается ли дерево на колонку.
func (g FilterGroup) References(propertyID string) bool {
	found := false
	g.Walk(func(c FilterClause) {
		if c.PropertyID == propertyID {
			found = true
		}
	})
	return found
}
