package dispatch

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/cmdclient/internal/protocol/command"
	"github.com/google/uuid"
)

// PendingCommand tracks one queued command until it is sent or abandoned.
type PendingCommand struct {
	ID            uuid.UUID
	Command       command.Command
	Seq           uint64
	Attempts      int
	QueuedAt      time.Time
	LastAttemptAt time.Time
	LastError     string
}

// outbox stores pending commands by dispatch id.
type outbox struct {
	mu    sync.RWMutex
	items map[uuid.UUID]PendingCommand
}

func newOutbox() *outbox {
	return &outbox{items: make(map[uuid.UUID]PendingCommand)}
}

func (o *outbox) upsert(item PendingCommand) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[item.ID] = item
}

func (o *outbox) markAttempt(id uuid.UUID, at time.Time, err error) (PendingCommand, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	item, ok := o.items[id]
	if !ok {
		return PendingCommand{}, false
	}
	item.Attempts++
	item.LastAttemptAt = at
	item.LastError = ""
	if err != nil {
		item.LastError = err.Error()
	}
	o.items[id] = item
	return item, true
}

func (o *outbox) remove(id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.items, id)
}

func (o *outbox) get(id uuid.UUID) (PendingCommand, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	item, ok := o.items[id]
	return item, ok
}

func (o *outbox) len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.items)
}

// list returns pending commands in submission order.
func (o *outbox) list() []PendingCommand {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]PendingCommand, 0, len(o.items))
	for _, item := range o.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Seq < out[j].Seq
	})
	return out
}
