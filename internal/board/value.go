package board

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind: форма значения колонки.
type ValueKind uint8

const (
	KindEmpty ValueKind = iota
	KindText
	KindNumber
	KindList
)

// Value: значение ячейки: пусто, строка, число или список id/строк.
// Форма определяется типом колонки; в строковый массив приводится одним шагом — Strings().
type Value struct {
	kind ValueKind
	text string
	num  float64
	list []string
}

func Text(s string) Value       { return Value{kind: KindText, text: s} }
func Number(n float64) Value    { return Value{kind: KindNumber, num: n} }
func List(ids ...string) Value  { return Value{kind: KindList, list: append([]string(nil), ids...)} }
func Bool(b bool) Value         { return Text(strconv.FormatBool(b)) }
func (v Value) Kind() ValueKind { return v.kind }

// IsEmpty: нет значения, пустая строка или пустой список.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindText:
		return v.text == ""
	case KindList:
		return len(v.list) == 0
	case KindNumber:
		return false
	}
	return true
}

// Strings: единственная точка нормализации значения в массив строк.
func (v Value) Strings() []string {
	switch v.kind {
	case KindText:
		if v.text == "" {
			return nil
		}
		return []string{v.text}
	case KindNumber:
		return []string{formatNumber(v.num)}
	case KindList:
		return append([]string(nil), v.list...)
	}
	return nil
}

// First: первое нормализованное значение или "".
func (v Value) First() string {
	s := v.Strings()
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Float: числовое представление, если оно есть.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		return f, err == nil
	}
	return 0, false
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.num == o.num
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
	}
	return true
}

func (v Value) String() string {
	return strings.Join(v.Strings(), ",")
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(v.num)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return []byte("null"), nil
}

// UnmarshalJSON принимает всё, что клиенты исторически сохраняли:
// строки, числа, bool, массивы строк или ссылок {roleId}/{userId}/{id}, объекты (сохраняются как JSON-текст).
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	out, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// FromAny приводит декодированный JSON к Value.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return Text(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("decode number %q: %w", t, err)
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case []string:
		return List(t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := flattenRef(it)
			if !ok {
				return Value{}, fmt.Errorf("unsupported list element %T", it)
			}
			out = append(out, s)
		}
		return List(out...), nil
	case map[string]any:
		if id, ok := flattenRef(t); ok {
			return List(id), nil
		}
		b, err := json.Marshal(t)
		if err != nil {
			return Value{}, fmt.Errorf("encode object value: %w", err)
		}
		return Text(string(b)), nil
	}
	return Value{}, fmt.Errorf("unsupported value %T", raw)
}

// flattenRef сворачивает ссылки на пользователя/роль/объект в их id.
func flattenRef(it any) (string, bool) {
	switch t := it.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return formatNumber(t), true
	case bool:
		return strconv.FormatBool(t), true
	case map[string]any:
		for _, k := range []string{"roleId", "userId", "id"} {
			if s, ok := t[k].(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}
