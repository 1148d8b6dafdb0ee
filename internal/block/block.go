// Package block описывает обобщённую единицу хранения (board / card / view)
// и структурные патчи над ней.
package block

import (
	"encoding/json"
	"fmt"
	"time"
)

type Type string

const (
	TypeBoard Type = "board"
	TypeCard  Type = "card"
	TypeView  Type = "view"
)

// Block: то, что реально лежит в хранилище: id/parent/type + произвольные поля.
// Fields содержит только JSON-совместимые значения (map[string]any, []any, string, float64, bool, nil).
type Block struct {
	ID         string         `json:"id"`
	BoardID    string         `json:"boardId"`
	ParentID   string         `json:"parentId"`
	Type       Type           `json:"type"`
	Title      string         `json:"title"`
	Fields     map[string]any `json:"fields"`
	SyncedWith string         `json:"syncedWith,omitempty"`
	CreatedAt  int64          `json:"createdAt"` // epoch millis
	UpdatedAt  int64          `json:"updatedAt"`
	CreatedBy  string         `json:"createdBy"`
	UpdatedBy  string         `json:"updatedBy"`
}

// Clone делает глубокую копию, чтобы патчи не трогали чужие снимки.
func (b Block) Clone() Block {
	out := b
	out.Fields = cloneMap(b.Fields)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, it := range t {
			out[i] = cloneValue(it)
		}
		return out
	default:
		return v
	}
}

// Normalize приводит произвольную структуру к JSON-совместимой map через round-trip.
func Normalize(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize fields: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("normalize fields: %w", err)
	}
	return out, nil
}

// Decode раскладывает Fields блока в типизированную структуру.
func Decode(fields map[string]any, into any) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	if err := json.Unmarshal(b, into); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	return nil
}

// NowMillis: текущее время в миллисекундах (формат всех временных полей блока).
func NowMillis() int64 { return time.Now().UTC().UnixMilli() }
