package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/danmuck/cmdclient/internal/protocol/command"
)

// Received is one decoded command with its origin.
type Received struct {
	Peer       string          `json:"peer"`
	Type       string          `json:"type"`
	Ordinal    int32           `json:"ordinal"`
	Target     string          `json:"target"`
	Metadata   []byte          `json:"metadata,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	Command    command.Command `json:"-"`
}

// Recorder is a Handler that keeps the most recent commands in memory.
type Recorder struct {
	mu     sync.RWMutex
	limit  int
	items  []Received
	notify chan struct{}
}

var _ Handler = (*Recorder)(nil)

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 256
	}
	return &Recorder{limit: limit, notify: make(chan struct{})}
}

func (r *Recorder) HandleCommand(_ context.Context, peer net.Addr, cmd command.Command) {
	item := Received{
		Type:       cmd.Type.String(),
		Ordinal:    int32(cmd.Type),
		Target:     cmd.Target.String(),
		Metadata:   cmd.Metadata,
		ReceivedAt: time.Now(),
		Command:    cmd,
	}
	if peer != nil {
		item.Peer = peer.String()
	}
	r.mu.Lock()
	r.items = append(r.items, item)
	if over := len(r.items) - r.limit; over > 0 {
		r.items = append([]Received(nil), r.items[over:]...)
	}
	close(r.notify)
	r.notify = make(chan struct{})
	r.mu.Unlock()
}

// Snapshot returns recorded commands oldest first.
func (r *Recorder) Snapshot() []Received {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Received, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// WaitFor blocks until at least n commands are recorded or ctx ends.
func (r *Recorder) WaitFor(ctx context.Context, n int) ([]Received, error) {
	for {
		r.mu.RLock()
		if len(r.items) >= n {
			out := make([]Received, len(r.items))
			copy(out, r.items)
			r.mu.RUnlock()
			return out, nil
		}
		ch := r.notify
		r.mu.RUnlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
