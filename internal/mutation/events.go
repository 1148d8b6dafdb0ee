package mutation

import "sync"

type EventType string

const (
	EventPerform EventType = "perform"
	EventUndo    EventType = "undo"
	EventRedo    EventType = "redo"
	// EventSync: строки созданы синхронизацией в обход журнала.
	EventSync EventType = "sync"
)

// Event: уведомление подписчикам о применённой записи журнала или о синхронизации.
type Event struct {
	Type     EventType `json:"type"`
	Label    string    `json:"label"`
	Actor    string    `json:"actor,omitempty"`
	BlockIDs []string  `json:"blockIds"`
}

// Broadcaster раздаёт события подписчикам через буферизованные каналы.
// Отправка не блокирует: если буфер подписчика полон, событие для него теряется.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers []chan Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

func (b *Broadcaster) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 256)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe убирает канал из рассылки и закрывает его.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (b *Broadcaster) Broadcast(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
