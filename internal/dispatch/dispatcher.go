package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/cmdclient/internal/observability"
	"github.com/danmuck/cmdclient/internal/protocol/command"
	"github.com/danmuck/cmdclient/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrQueueFull        = errors.New("dispatch: queue full")
	ErrDispatcherClosed = errors.New("dispatch: dispatcher closed")
	ErrSendFuncRequired = errors.New("dispatch: send func required")
)

// SendFunc is the synchronous send the dispatcher feeds.
type SendFunc func(cmd command.Command) error

// Result is reported once per submission, after the final attempt.
type Result struct {
	ID       uuid.UUID
	Command  command.Command
	Attempts int
	Err      error
	Elapsed  time.Duration
}

type Config struct {
	QueueSize int
	// MaxAttempts bounds sends per command. Values below 1 mean one attempt.
	MaxAttempts int
	Backoff     session.BackoffConfig
	// FailedHistory caps how many abandoned results are retained.
	FailedHistory int
	OnResult      func(Result)
	Logger        *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		QueueSize:     256,
		MaxAttempts:   1,
		Backoff:       session.DefaultConfig().Backoff,
		FailedHistory: 64,
	}
}

// Dispatcher decouples command producers from the network with a bounded
// queue drained by one worker, so commands leave in submission order.
type Dispatcher struct {
	cfg    Config
	send   SendFunc
	queue  chan PendingCommand
	outbox *outbox
	logger zerolog.Logger
	rng    *rand.Rand

	mu      sync.RWMutex
	closed  bool
	failed  []Result
	seq     atomic.Uint64
	sent    atomic.Uint64
	retries atomic.Uint64

	stop chan struct{}
	done chan struct{}
}

func New(cfg Config, send SendFunc) (*Dispatcher, error) {
	if send == nil {
		return nil, ErrSendFuncRequired
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.FailedHistory <= 0 {
		cfg.FailedHistory = DefaultConfig().FailedHistory
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	d := &Dispatcher{
		cfg:    cfg,
		send:   send,
		queue:  make(chan PendingCommand, cfg.QueueSize),
		outbox: newOutbox(),
		logger: logger.With().Str("component", "dispatch").Logger(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// Submit queues cmd without blocking.
func (d *Dispatcher) Submit(cmd command.Command) (uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return uuid.Nil, ErrDispatcherClosed
	}
	item := PendingCommand{
		ID:       uuid.New(),
		Command:  cmd,
		Seq:      d.seq.Add(1),
		QueuedAt: time.Now(),
	}
	d.outbox.upsert(item)
	select {
	case d.queue <- item:
		observability.SetDispatchQueueDepth(len(d.queue))
		return item.ID, nil
	default:
		d.outbox.remove(item.ID)
		return uuid.Nil, ErrQueueFull
	}
}

// Pending lists commands queued or in flight, oldest first.
func (d *Dispatcher) Pending() []PendingCommand {
	return d.outbox.list()
}

func (d *Dispatcher) Lookup(id uuid.UUID) (PendingCommand, bool) {
	return d.outbox.get(id)
}

// QueueDepth counts commands waiting behind the worker. The command being
// sent is not included; InFlight covers it.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// InFlight counts every submitted command not yet finished, queued or sending.
func (d *Dispatcher) InFlight() int {
	return d.outbox.len()
}

// Failed returns the most recent abandoned commands.
func (d *Dispatcher) Failed() []Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Result, len(d.failed))
	copy(out, d.failed)
	return out
}

func (d *Dispatcher) Stats() (sent, retries uint64) {
	return d.sent.Load(), d.retries.Load()
}

// Close stops intake and waits for the queue to drain or ctx to end. A
// cancelled ctx abandons whatever is still queued.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		select {
		case <-d.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		close(d.stop)
		<-d.done
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for item := range d.queue {
		observability.SetDispatchQueueDepth(len(d.queue))
		select {
		case <-d.stop:
			d.abandon(item, ErrDispatcherClosed)
			continue
		default:
		}
		d.deliver(item)
	}
}

func (d *Dispatcher) deliver(item PendingCommand) {
	start := time.Now()
	var err error
	attempt := 0
	for attempt < d.cfg.MaxAttempts {
		attempt++
		err = d.send(item.Command)
		d.outbox.markAttempt(item.ID, time.Now(), err)
		if err == nil {
			break
		}
		d.logger.Warn().
			Str("id", item.ID.String()).
			Str("type", item.Command.Type.String()).
			Int("attempt", attempt).
			Err(err).
			Msg("command send failed")
		if attempt >= d.cfg.MaxAttempts || !d.wait(attempt) {
			break
		}
		d.retries.Add(1)
		observability.RecordDispatchRetry(item.Command)
	}

	d.outbox.remove(item.ID)
	res := Result{
		ID:       item.ID,
		Command:  item.Command,
		Attempts: attempt,
		Err:      err,
		Elapsed:  time.Since(start),
	}
	if err == nil {
		d.sent.Add(1)
		d.logger.Debug().
			Str("id", item.ID.String()).
			Str("type", item.Command.Type.String()).
			Int("attempts", attempt).
			Msg("command sent")
	} else {
		d.recordFailed(res)
	}
	if d.cfg.OnResult != nil {
		d.cfg.OnResult(res)
	}
}

func (d *Dispatcher) abandon(item PendingCommand, err error) {
	d.outbox.remove(item.ID)
	res := Result{ID: item.ID, Command: item.Command, Err: err}
	d.recordFailed(res)
	if d.cfg.OnResult != nil {
		d.cfg.OnResult(res)
	}
}

// wait sleeps out the backoff for attempt; false means stop was requested.
func (d *Dispatcher) wait(attempt int) bool {
	timer := time.NewTimer(d.cfg.Backoff.Delay(attempt, d.rng))
	defer timer.Stop()
	select {
	case <-d.stop:
		return false
	case <-timer.C:
		return true
	}
}

func (d *Dispatcher) recordFailed(res Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed = append(d.failed, res)
	if over := len(d.failed) - d.cfg.FailedHistory; over > 0 {
		d.failed = append([]Result(nil), d.failed[over:]...)
	}
}
