package workflow

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Fixture: содержимое YAML-файла с заявками для локального запуска и тестов.
type Fixture struct {
	Templates []Template `yaml:"templates"`
	Items     []Item     `yaml:"items"`
	// Grants: actorId -> itemId -> права; "*" в качестве itemId действует на все заявки.
	Grants map[string]map[string]Permissions `yaml:"grants"`
}

// Memory: in-memory источник заявок и прав. Потокобезопасен.
type Memory struct {
	mu        sync.RWMutex
	templates map[string][]Template
	items     map[string]Item
	grants    map[string]map[string]Permissions
}

func NewMemory() *Memory {
	return &Memory{
		templates: map[string][]Template{},
		items:     map[string]Item{},
		grants:    map[string]map[string]Permissions{},
	}
}

// LoadFixture читает YAML-фикстуру.
func LoadFixture(path string) (*Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow fixture: %w", err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(b, &fx); err != nil {
		return nil, fmt.Errorf("parse workflow fixture %s: %w", path, err)
	}
	m := NewMemory()
	spaces := map[string]bool{}
	for _, it := range fx.Items {
		m.PutItem(it)
		spaces[it.SpaceID] = true
	}
	// шаблоны в фикстуре не привязаны к пространству, раздаём во все
	for sp := range spaces {
		m.templates[sp] = append([]Template(nil), fx.Templates...)
	}
	for actor, byItem := range fx.Grants {
		for id, p := range byItem {
			m.Grant(actor, id, p)
		}
	}
	return m, nil
}

func (m *Memory) PutTemplate(spaceID string, t Template) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.templates[spaceID]
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			return
		}
	}
	m.templates[spaceID] = append(list, t)
}

func (m *Memory) PutItem(it Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = it
}

func (m *Memory) DeleteItem(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
}

// Grant выдаёт права; itemID "*" — на все заявки.
func (m *Memory) Grant(actorID, itemID string, p Permissions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grants[actorID] == nil {
		m.grants[actorID] = map[string]Permissions{}
	}
	m.grants[actorID][itemID] = p
}

func (m *Memory) ListTemplates(_ context.Context, spaceID string) ([]Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Template(nil), m.templates[spaceID]...), nil
}

func (m *Memory) ListPublished(_ context.Context, spaceID string, updatedAfter int64) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, 0)
	for _, it := range m.items {
		if it.SpaceID != spaceID || !it.Visible() {
			continue
		}
		if updatedAfter > 0 && it.UpdatedAt <= updatedAfter {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetItems(_ context.Context, ids []string) (map[string]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Item, len(ids))
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (m *Memory) Permissions(_ context.Context, actorID string, itemIDs []string) (map[string]Permissions, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byItem := m.grants[actorID]
	out := make(map[string]Permissions, len(itemIDs))
	for _, id := range itemIDs {
		p, ok := byItem[id]
		if !ok {
			p = byItem["*"]
		}
		out[id] = p
	}
	return out, nil
}
