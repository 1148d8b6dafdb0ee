package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"boards/internal/api"
	"boards/internal/config"
	"boards/internal/dsl"
	"boards/internal/mutation"
	"boards/internal/projection"
	"boards/internal/realtime"
	"boards/internal/reference"
	"boards/internal/store"
	"boards/internal/workflow"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Шаблоны досок
	templates, err := dsl.LoadAll(cfg.TemplatesDir)
	if err != nil {
		log.Fatalf("Ошибка загрузки шаблонов: %v", err)
	}
	fmt.Printf("Загружено шаблонов досок: %d\n", len(templates))

	// 2. Справочники вариантов
	catalogs, err := reference.LoadCatalogs(cfg.CatalogsDir)
	if err != nil {
		log.Fatalf("Ошибка загрузки справочников: %v", err)
	}
	fmt.Printf("Загружено справочников: %d\n", len(catalogs))
	if issues := api.TemplateLint(templates, catalogs); len(issues) > 0 {
		for _, is := range issues {
			log.Printf("шаблон %s: %s", is.Scope, is.Message)
		}
		log.Fatalf("Шаблоны не собираются: %d ошибок", len(issues))
	}

	// 3. Хранилище блоков
	blocks, save, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Ошибка хранилища: %v", err)
	}
	defer blocks.Close()

	// 4. Внешний workflow
	src := workflow.NewMemory()
	if cfg.WorkflowFixture != "" {
		if src, err = workflow.LoadFixture(cfg.WorkflowFixture); err != nil {
			log.Fatalf("Ошибка загрузки фикстуры workflow: %v", err)
		}
	}

	// 5. Журнал правок и рассылка событий
	bus := mutation.NewBroadcaster()
	journal := mutation.New(blocks, mutation.WithBroadcaster(bus))
	hub := realtime.NewHub(bus, log.Default())
	go hub.Run(ctx)
	if save != nil {
		go persistOnChange(ctx, bus, save)
	}

	srv := api.NewServer(api.Deps{
		Store: blocks,
		Log:   journal,
		Pipeline: &projection.Pipeline{
			Store:       blocks,
			Reader:      src,
			Permissions: src,
		},
		Hub:          hub,
		Templates:    templates,
		Catalogs:     catalogs,
		TemplatesDir: cfg.TemplatesDir,
		CatalogsDir:  cfg.CatalogsDir,
		BaseURL:      cfg.BaseURL,
	})

	fmt.Printf("Стартуем сервер досок на :%s (хранилище %s)...\n", cfg.Port, cfg.StoreDriver)
	if err := api.RunServer(ctx, ":"+cfg.Port, srv); err != nil {
		log.Fatalf("Сервер остановлен с ошибкой: %v", err)
	}
	if save != nil {
		if err := save(); err != nil {
			log.Printf("Снимок не сохранён: %v", err)
		}
	}
}

// openStore выбирает хранилище по драйверу. save != nil только для memory со снимком.
func openStore(ctx context.Context, cfg config.Config) (store.BlockStore, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err := store.OpenPostgres(ctx, cfg.DBURL, cfg.DBSchema, cfg.AutoMigrate)
		return s, nil, err
	case config.DriverSQLite:
		s, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		return s, nil, err
	}
	mem := store.NewMemory()
	if cfg.SnapshotPath == "" {
		return mem, nil, nil
	}
	if err := mem.LoadSnapshot(cfg.SnapshotPath); err != nil {
		return nil, nil, err
	}
	return mem, func() error { return mem.SaveSnapshot(cfg.SnapshotPath) }, nil
}

// persistOnChange пишет снимок после каждой записи журнала и каждой синхронизации с новыми строками.
func persistOnChange(ctx context.Context, bus *mutation.Broadcaster, save func() error) {
	events := bus.Subscribe()
	defer bus.Unsubscribe(events)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			if err := save(); err != nil {
				log.Printf("Снимок не сохранён: %v", err)
			}
		}
	}
}
