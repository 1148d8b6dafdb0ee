package filter

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"boards/internal/board"
)

// Conditions: допустимые условия по классу типа колонки.
var Conditions = map[board.Class][]board.Condition{
	board.ClassText: {
		board.CondIs, board.CondIsNot, board.CondContains, board.CondDoesNotContain,
		board.CondStartsWith, board.CondEndsWith, board.CondIsEmpty, board.CondIsNotEmpty,
	},
	board.ClassBoolean: {board.CondIs, board.CondIsNot},
	board.ClassNumber: {
		board.CondEqual, board.CondNotEqual, board.CondGreaterThan, board.CondLessThan,
		board.CondGreaterThanEqual, board.CondLessThanEqual, board.CondIsEmpty, board.CondIsNotEmpty,
	},
	board.ClassSelect:      {board.CondIs, board.CondIsNot, board.CondIsEmpty, board.CondIsNotEmpty},
	board.ClassMultiSelect: {board.CondContains, board.CondDoesNotContain, board.CondIsEmpty, board.CondIsNotEmpty},
	board.ClassDate: {
		board.CondIs, board.CondIsNot, board.CondIsBefore, board.CondIsAfter,
		board.CondIsOnOrBefore, board.CondIsOnOrAfter, board.CondIsEmpty, board.CondIsNotEmpty,
	},
}

// Supported: поддерживает ли класс условие.
func Supported(class board.Class, cond board.Condition) bool {
	return slices.Contains(Conditions[class], cond)
}

// fold: регистронезависимая форма строки. Caser не потокобезопасен, поэтому новый на каждый вызов.
func fold(s string) string {
	return cases.Fold().String(s)
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Клауза без значений ещё не настроена в интерфейсе и ничего не отсекает.
func unconfigured(c board.FilterClause) bool {
	return len(c.Values) == 0 || (len(c.Values) == 1 && c.Values[0] == "")
}

func matchText(c board.FilterClause, values []string) bool {
	v := fold(first(values))
	switch c.Condition {
	case board.CondIsEmpty:
		return v == ""
	case board.CondIsNotEmpty:
		return v != ""
	case board.CondIs, board.CondIsNot, board.CondContains, board.CondDoesNotContain,
		board.CondStartsWith, board.CondEndsWith:
	default:
		panic(&ConditionError{Class: board.ClassText, Condition: c.Condition})
	}
	if unconfigured(c) {
		return true
	}
	f := fold(c.Values[0])
	switch c.Condition {
	case board.CondIs:
		return v == f
	case board.CondIsNot:
		return v != f
	case board.CondContains:
		return strings.Contains(v, f)
	case board.CondDoesNotContain:
		return !strings.Contains(v, f)
	case board.CondStartsWith:
		return strings.HasPrefix(v, f)
	default:
		return strings.HasSuffix(v, f)
	}
}

func matchBoolean(c board.FilterClause, values []string) bool {
	v := first(values)
	if v == "" {
		v = "false"
	}
	if c.Condition != board.CondIs && c.Condition != board.CondIsNot {
		panic(&ConditionError{Class: board.ClassBoolean, Condition: c.Condition})
	}
	if unconfigured(c) {
		return true
	}
	eq := v == c.Values[0]
	if c.Condition == board.CondIs {
		return eq
	}
	return !eq
}

func matchNumber(c board.FilterClause, values []string) bool {
	raw := strings.TrimSpace(first(values))
	switch c.Condition {
	case board.CondIsEmpty:
		return raw == ""
	case board.CondIsNotEmpty:
		return raw != ""
	case board.CondEqual, board.CondNotEqual, board.CondGreaterThan, board.CondLessThan,
		board.CondGreaterThanEqual, board.CondLessThanEqual:
	default:
		panic(&ConditionError{Class: board.ClassNumber, Condition: c.Condition})
	}
	if unconfigured(c) {
		return true
	}
	want, err := strconv.ParseFloat(strings.TrimSpace(c.Values[0]), 64)
	if err != nil {
		return true
	}
	got, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// нечисловое или пустое значение ничему не равно
		return c.Condition == board.CondNotEqual
	}
	switch c.Condition {
	case board.CondEqual:
		return got == want
	case board.CondNotEqual:
		return got != want
	case board.CondGreaterThan:
		return got > want
	case board.CondLessThan:
		return got < want
	case board.CondGreaterThanEqual:
		return got >= want
	default:
		return got <= want
	}
}

func matchSelect(c board.FilterClause, values []string) bool {
	v := first(values)
	switch c.Condition {
	case board.CondIsEmpty:
		return v == ""
	case board.CondIsNotEmpty:
		return v != ""
	case board.CondIs:
		if unconfigured(c) {
			return true
		}
		return slices.Contains(c.Values, v)
	case board.CondIsNot:
		if v == "" || unconfigured(c) {
			return true
		}
		return !slices.Contains(c.Values, v)
	}
	panic(&ConditionError{Class: board.ClassSelect, Condition: c.Condition})
}

func matchMultiSelect(c board.FilterClause, values []string) bool {
	switch c.Condition {
	case board.CondIsEmpty:
		return len(values) == 0
	case board.CondIsNotEmpty:
		return len(values) > 0
	case board.CondContains:
		if unconfigured(c) {
			return true
		}
		return intersects(values, c.Values)
	case board.CondDoesNotContain:
		if unconfigured(c) {
			return true
		}
		return !intersects(values, c.Values)
	}
	panic(&ConditionError{Class: board.ClassMultiSelect, Condition: c.Condition})
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

func (e Engine) matchDate(c board.FilterClause, b board.Board, prop board.Property, card board.Card, values []string) bool {
	switch c.Condition {
	case board.CondIs, board.CondIsNot, board.CondIsBefore, board.CondIsAfter,
		board.CondIsOnOrBefore, board.CondIsOnOrAfter, board.CondIsEmpty, board.CondIsNotEmpty:
	default:
		panic(&ConditionError{Class: board.ClassDate, Condition: c.Condition})
	}
	got, ok, err := ParseInstant(first(values))
	if err != nil {
		e.logf("filter: board %s card %s: property %s: malformed date %q: %v", b.ID, card.ID, prop.ID, first(values), err)
		ok = false
	}
	switch c.Condition {
	case board.CondIsEmpty:
		return !ok
	case board.CondIsNotEmpty:
		return ok
	}
	if unconfigured(c) {
		return true
	}
	want, wok, err := ParseInstant(c.Values[0])
	if err != nil || !wok {
		return true
	}
	if !ok {
		return c.Condition == board.CondIsNot
	}
	switch c.Condition {
	case board.CondIs:
		return got == want
	case board.CondIsNot:
		return got != want
	case board.CondIsBefore:
		return got < want
	case board.CondIsAfter:
		return got > want
	case board.CondIsOnOrBefore:
		return got <= want
	default:
		return got >= want
	}
}

// ParseInstant разбирает дату ячейки: epoch millis числом/строкой или JSON {"from": millis}.
// ok=false — значения нет; ошибка — значение есть, но не разбирается.
func ParseInstant(raw string) (ms int64, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	if strings.HasPrefix(raw, "{") {
		var d struct {
			From *json.Number `json:"from"`
		}
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return 0, false, err
		}
		if d.From == nil {
			return 0, false, nil
		}
		f, err := d.From.Float64()
		if err != nil {
			return 0, false, err
		}
		return int64(f), true, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	return int64(f), true, nil
}
