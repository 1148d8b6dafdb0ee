// Package mutation — журнал изменений с undo/redo. Каждое изменение схемы или карточек
// приходит парой патчей вперёд/назад и попадает в единственный стек отмены.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"boards/internal/block"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Applier применяет патчи к хранилищу. Набор патчей применяется целиком или не применяется.
type Applier interface {
	ApplyPatches(ctx context.Context, patches []block.Patch) error
}

// Entry: одна запись стека: патчи вперёд и обратные к ним.
// Backward применяется в обратном порядке.
type Entry struct {
	Label    string
	Actor    string
	Forward  []block.Patch
	Backward []block.Patch
}

func (e Entry) blockIDs() []string {
	seen := make(map[string]bool, len(e.Forward))
	out := make([]string, 0, len(e.Forward))
	for _, p := range e.Forward {
		if !seen[p.ID] {
			seen[p.ID] = true
			out = append(out, p.ID)
		}
	}
	return out
}

func (e Entry) empty() bool { return len(e.Forward) == 0 }

// Log: стек отмены с двумя состояниями: idle и открытая группа. Вложенных групп нет.
type Log struct {
	mu      sync.Mutex
	applier Applier
	bus     *Broadcaster
	logger  *log.Logger
	limit   int

	undo  []Entry
	redo  []Entry
	group *Entry
}

type Option func(*Log)

// WithBroadcaster: куда рассылать события.
func WithBroadcaster(b *Broadcaster) Option { return func(l *Log) { l.bus = b } }

func WithLogger(lg *log.Logger) Option { return func(l *Log) { l.logger = lg } }

// WithLimit ограничивает глубину стека отмены; 0 — без ограничения.
func WithLimit(n int) Option { return func(l *Log) { l.limit = n } }

func New(applier Applier, opts ...Option) *Log {
	l := &Log{applier: applier}
	for _, o := range opts {
		o(l)
	}
	if l.bus == nil {
		l.bus = NewBroadcaster()
	}
	return l
}

func (l *Log) Broadcaster() *Broadcaster { return l.bus }

func (l *Log) logf(format string, args ...any) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Perform применяет патчи вперёд. При ошибке стек не меняется, ошибка возвращается как есть.
// Внутри открытой группы запись присоединяется к группе.
func (l *Log) Perform(ctx context.Context, e Entry) error {
	if e.empty() {
		return nil
	}
	if len(e.Forward) != len(e.Backward) {
		panic(fmt.Sprintf("mutation: %q has %d forward and %d backward patches", e.Label, len(e.Forward), len(e.Backward)))
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.applier.ApplyPatches(ctx, e.Forward); err != nil {
		return fmt.Errorf("%s: %w", e.Label, err)
	}
	if l.group != nil {
		l.group.Forward = append(l.group.Forward, e.Forward...)
		l.group.Backward = append(l.group.Backward, e.Backward...)
		if l.group.Actor == "" {
			l.group.Actor = e.Actor
		}
	} else {
		l.push(e)
	}
	l.redo = nil
	l.bus.Broadcast(Event{Type: EventPerform, Label: e.Label, Actor: e.Actor, BlockIDs: e.blockIDs()})
	return nil
}

func (l *Log) push(e Entry) {
	l.undo = append(l.undo, e)
	if l.limit > 0 && len(l.undo) > l.limit {
		l.undo = l.undo[len(l.undo)-l.limit:]
	}
}

// BeginGroup открывает группу: последующие Perform станут одной записью.
// Открытие второй группы — ошибка программы.
func (l *Log) BeginGroup(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.group != nil {
		panic(fmt.Sprintf("mutation: group %q is already open, cannot begin %q", l.group.Label, label))
	}
	l.group = &Entry{Label: label}
}

// EndGroup закрывает группу и кладёт её в стек, если в ней что-то есть.
func (l *Log) EndGroup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.group == nil {
		panic("mutation: EndGroup without BeginGroup")
	}
	g := *l.group
	l.group = nil
	if !g.empty() {
		l.push(g)
	}
}

// InGroup: открыта ли группа.
func (l *Log) InGroup() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.group != nil
}

// Undo применяет обратные патчи последней записи. Если применить не удалось,
// запись остаётся на вершине стека.
func (l *Log) Undo(ctx context.Context) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.group != nil {
		panic(fmt.Sprintf("mutation: undo while group %q is open", l.group.Label))
	}
	if len(l.undo) == 0 {
		return Entry{}, ErrNothingToUndo
	}
	e := l.undo[len(l.undo)-1]
	if err := l.applier.ApplyPatches(ctx, reversed(e.Backward)); err != nil {
		l.logf("mutation: undo %q failed: %v", e.Label, err)
		return Entry{}, fmt.Errorf("undo %s: %w", e.Label, err)
	}
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = append(l.redo, e)
	l.bus.Broadcast(Event{Type: EventUndo, Label: e.Label, Actor: e.Actor, BlockIDs: e.blockIDs()})
	return e, nil
}

// Redo повторно применяет патчи вперёд последней отменённой записи.
func (l *Log) Redo(ctx context.Context) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.group != nil {
		panic(fmt.Sprintf("mutation: redo while group %q is open", l.group.Label))
	}
	if len(l.redo) == 0 {
		return Entry{}, ErrNothingToRedo
	}
	e := l.redo[len(l.redo)-1]
	if err := l.applier.ApplyPatches(ctx, e.Forward); err != nil {
		l.logf("mutation: redo %q failed: %v", e.Label, err)
		return Entry{}, fmt.Errorf("redo %s: %w", e.Label, err)
	}
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = append(l.undo, e)
	l.bus.Broadcast(Event{Type: EventRedo, Label: e.Label, Actor: e.Actor, BlockIDs: e.blockIDs()})
	return e, nil
}

func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo) > 0
}

func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo) > 0
}

func reversed(ps []block.Patch) []block.Patch {
	out := make([]block.Patch, len(ps))
	for i, p := range ps {
		out[len(ps)-1-i] = p
	}
	return out
}
