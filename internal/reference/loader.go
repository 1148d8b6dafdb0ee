package reference

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCatalogs читает все справочники из папки (*.yaml, *.yml).
// Отсутствующая папка — пустой набор.
func LoadCatalogs(dir string) (Catalogs, error) {
	result := make(Catalogs)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var c Catalog
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		// Имя справочника — из c.Name или из имени файла
		if c.Name == "" {
			c.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		seen := map[string]bool{}
		for _, it := range c.Items {
			if it.Code == "" {
				return nil, fmt.Errorf("catalog %s: item without code", c.Name)
			}
			if seen[it.Code] {
				return nil, fmt.Errorf("catalog %s: duplicate code %q", c.Name, it.Code)
			}
			seen[it.Code] = true
		}
		result[c.Name] = c
	}
	return result, nil
}
