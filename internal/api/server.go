package api

import (
	"context"
	"log"
	"strings"
	"sync"

	"boards/internal/dsl"
	"boards/internal/edit"
	"boards/internal/export"
	"boards/internal/mutation"
	"boards/internal/projection"
	"boards/internal/realtime"
	"boards/internal/reference"
	"boards/internal/store"
	"boards/internal/view"
)

// Deps: то, что собирает main.
type Deps struct {
	Store     store.BlockStore
	Log       *mutation.Log
	Pipeline  *projection.Pipeline
	Hub       *realtime.Hub
	Templates map[string]*dsl.Template
	Catalogs  reference.Catalogs
	// каталоги для /api/admin/reload
	TemplatesDir string
	CatalogsDir  string
	BaseURL      string
	Logger       *log.Logger
	// Clock: epoch millis для правок; nil — текущее время.
	Clock func() int64
}

// Server держит зависимости обработчиков.
type Server struct {
	// mu сериализует запись: снимок -> правка -> журнал
	mu       sync.Mutex
	repo     store.Repo
	log      *mutation.Log
	pipeline *projection.Pipeline
	hub      *realtime.Hub
	runner   view.Runner
	exporter export.Exporter
	logger   *log.Logger
	clock    func() int64

	refMu        sync.RWMutex
	templates    map[string]*dsl.Template
	catalogs     reference.Catalogs
	templatesDir string
	catalogsDir  string
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Templates == nil {
		d.Templates = map[string]*dsl.Template{}
	}
	if d.Catalogs == nil {
		d.Catalogs = reference.Catalogs{}
	}
	return &Server{
		repo:      store.Repo{Store: d.Store},
		log:       d.Log,
		pipeline:  d.Pipeline,
		hub:       d.Hub,
		runner:    view.New(d.Logger),
		exporter:  export.Exporter{BaseURL: d.BaseURL, Logger: d.Logger},
		logger:    d.Logger,
		clock:     d.Clock,
		templates: d.Templates,
		catalogs:  d.Catalogs,

		templatesDir: d.TemplatesDir,
		catalogsDir:  d.CatalogsDir,
	}
}

func (s *Server) editor(actor string) edit.Editor {
	return edit.Editor{Actor: actor, Clock: s.clock}
}

// change грузит снимок доски, строит запись и применяет её через журнал — всё под s.mu.
func (s *Server) change(ctx context.Context, boardID string, build func(edit.Snapshot) (mutation.Entry, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := edit.Load(ctx, s.repo, boardID)
	if err != nil {
		return err
	}
	e, err := build(snap)
	if err != nil {
		return err
	}
	return s.log.Perform(ctx, e)
}

// template ищет шаблон доски без учёта регистра.
func (s *Server) template(name string) (*dsl.Template, bool) {
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	if t, ok := s.templates[name]; ok {
		return t, true
	}
	for k, t := range s.templates {
		if strings.EqualFold(k, name) {
			return t, true
		}
	}
	return nil, false
}

func (s *Server) catalog(name string) (reference.Catalog, bool) {
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	c, ok := s.catalogs[name]
	return c, ok
}
