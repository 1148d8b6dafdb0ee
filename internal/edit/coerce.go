package edit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"boards/internal/board"
	"boards/internal/filter"
)

// Coerce приводит присланное значение к форме, которую требует тип колонки.
// Пустое значение (nil, "", []) допустимо для любой колонки и означает очистку.
func Coerce(p board.Property, v board.Value) (board.Value, error) {
	if v.IsEmpty() {
		return board.Value{}, nil
	}
	mismatch := func(msg string) error {
		return &ValueError{Code: CodeTypeMismatch, PropertyID: p.ID, Message: msg}
	}
	switch p.Type.Class() {
	case board.ClassText:
		if v.Kind() == board.KindList {
			return board.Value{}, mismatch("must be a string")
		}
		return board.Text(v.String()), nil
	case board.ClassNumber:
		f, ok := v.Float()
		if !ok {
			return board.Value{}, mismatch("must be a number")
		}
		return board.Number(f), nil
	case board.ClassBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(v.First()))
		if err != nil || v.Kind() == board.KindList {
			return board.Value{}, mismatch("must be true or false")
		}
		return board.Bool(b), nil
	case board.ClassDate:
		raw := v.First()
		if v.Kind() == board.KindNumber {
			return v, nil
		}
		if _, ok, err := filter.ParseInstant(raw); err != nil || !ok {
			return board.Value{}, mismatch(`must be epoch millis or {"from": millis}`)
		}
		return board.Text(raw), nil
	case board.ClassSelect:
		if v.Kind() == board.KindList && len(v.Strings()) > 1 {
			return board.Value{}, mismatch("must be a single option")
		}
		id := v.First()
		if p.Type.HasOptions() {
			if _, ok := p.OptionByID(id); !ok {
				return board.Value{}, &ValueError{Code: CodeNotFound, PropertyID: p.ID, Message: fmt.Sprintf("option %q does not exist", id)}
			}
		}
		return board.Text(id), nil
	case board.ClassMultiSelect:
		ids := v.Strings()
		if p.Type.HasOptions() {
			for _, id := range ids {
				if _, ok := p.OptionByID(id); !ok {
					return board.Value{}, &ValueError{Code: CodeNotFound, PropertyID: p.ID, Message: fmt.Sprintf("option %q does not exist", id)}
				}
			}
		}
		return board.List(ids...), nil
	}
	return board.Value{}, &ValueError{Code: CodeInvalidType, PropertyID: p.ID, Message: fmt.Sprintf("unknown property type %q", p.Type)}
}

// ValueFromJSON: удобство для API: сырое JSON-значение ячейки.
func ValueFromJSON(raw json.RawMessage) (board.Value, error) {
	var v board.Value
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return board.Value{}, err
	}
	return v, nil
}
