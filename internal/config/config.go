package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

// Драйверы хранилища блоков.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port         string `json:"port" env:"PORT"`
	TemplatesDir string `json:"templatesDir" env:"TEMPLATES_DIR"`
	CatalogsDir  string `json:"catalogsDir" env:"CATALOGS_DIR"`

	StoreDriver  string `json:"storeDriver" env:"STORE_DRIVER"` // memory (default) | postgres | sqlite
	DBURL        string `json:"dbUrl" env:"DB_URL"`
	DBSchema     string `json:"dbSchema" env:"DB_SCHEMA"`
	SQLitePath   string `json:"sqlitePath" env:"SQLITE_PATH"`
	SnapshotPath string `json:"snapshotPath" env:"SNAPSHOT_PATH"` // для memory: файл снимка, пусто — без сохранения
	AutoMigrate  bool   `json:"autoMigrate" env:"AUTO_MIGRATE"`

	// Фикстура внешнего workflow (заявки, шаблоны, права); пусто — пустой источник
	WorkflowFixture string `json:"workflowFixture" env:"WORKFLOW_FIXTURE"`

	// BaseURL: для абсолютных ссылок в экспорте
	BaseURL string `json:"baseUrl" env:"BASE_URL"`
}

func def() Config {
	return Config{
		Port:         "8080",
		TemplatesDir: "templates",
		CatalogsDir:  "catalogs",
		StoreDriver:  DriverMemory,
		DBSchema:     "boards",
		SQLitePath:   "boards.db",
		AutoMigrate:  false,
	}
}

// loadJSONC читает файл конфига поверх c. Комментарии и висячие запятые допустимы.
func loadJSONC(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	std, err := hujson.Standardize(b)
	if err != nil {
		return fmt.Errorf("invalid JSONC %s: %w", path, err)
	}
	if err := json.Unmarshal(std, c); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

// Load собирает конфиг: умолчания -> JSONC файл -> ENV (BOARDS_*) -> флаги.
// Отсутствующий файл по умолчанию не ошибка; явно указанный через --config — ошибка.
func Load(args []string) (Config, error) {
	cfg := def()

	fs := pflag.NewFlagSet("boards", pflag.ContinueOnError)
	configPath := fs.String("config", "config.jsonc", "Path to config JSONC")
	port := fs.String("port", cfg.Port, "HTTP port")
	templates := fs.String("templates", cfg.TemplatesDir, "Path to board templates directory")
	catalogs := fs.String("catalogs", cfg.CatalogsDir, "Path to option catalogs directory")
	driver := fs.String("store", cfg.StoreDriver, "Block store driver (memory/postgres/sqlite)")
	db := fs.String("db", cfg.DBURL, "Postgres URL")
	schema := fs.String("db-schema", cfg.DBSchema, "Postgres schema")
	sqlitePath := fs.String("sqlite", cfg.SQLitePath, "SQLite file")
	snapshot := fs.String("snapshot", cfg.SnapshotPath, "Memory store snapshot file")
	auto := fs.Bool("auto-migrate", cfg.AutoMigrate, "Create tables and indexes on start")
	fixture := fs.String("workflow-fixture", cfg.WorkflowFixture, "YAML fixture of the proposals workflow")
	baseURL := fs.String("base-url", cfg.BaseURL, "Base URL for absolute links in exports")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadJSONC(*configPath, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) || fs.Changed("config") {
			return Config{}, err
		}
	}

	// ENV overrides
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "BOARDS_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	// Flags overrides — только явно переданные
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("port", func() { cfg.Port = strings.TrimSpace(*port) })
	set("templates", func() { cfg.TemplatesDir = strings.TrimSpace(*templates) })
	set("catalogs", func() { cfg.CatalogsDir = strings.TrimSpace(*catalogs) })
	set("store", func() { cfg.StoreDriver = strings.TrimSpace(*driver) })
	set("db", func() { cfg.DBURL = strings.TrimSpace(*db) })
	set("db-schema", func() { cfg.DBSchema = strings.TrimSpace(*schema) })
	set("sqlite", func() { cfg.SQLitePath = strings.TrimSpace(*sqlitePath) })
	set("snapshot", func() { cfg.SnapshotPath = strings.TrimSpace(*snapshot) })
	set("auto-migrate", func() { cfg.AutoMigrate = *auto })
	set("workflow-fixture", func() { cfg.WorkflowFixture = strings.TrimSpace(*fixture) })
	set("base-url", func() { cfg.BaseURL = strings.TrimSpace(*baseURL) })

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DBURL == "" {
			return errors.New("config: postgres store requires dbUrl")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	if c.Port == "" {
		return errors.New("config: port is required")
	}
	return nil
}
