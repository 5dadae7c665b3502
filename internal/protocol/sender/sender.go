package sender

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/cmdclient/internal/protocol/command"
)

var ErrPermitNotAcquired = errors.New("sender: permit not acquired")

// TransportError is a write or flush failure on the channel. It unwraps to
// the channel's own error.
type TransportError struct {
	Step int
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sender: %s chunk %d: %v", e.Op, e.Step, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Send writes cmd to ch while holding permit. Every chunk is flushed before
// the next is written. The permit is released exactly once on every path
// after a successful Acquire.
func Send(cmd command.Command, ch Channel, permit Permit) error {
	if !permit.Acquire() {
		return ErrPermitNotAcquired
	}
	defer permit.Release()
	return writeChunks(ch, command.Encode(cmd))
}

func writeChunks(ch Channel, chunks [][]byte) error {
	for i, chunk := range chunks {
		n, err := ch.Write(chunk)
		if err == nil && n != len(chunk) {
			err = io.ErrShortWrite
		}
		if err != nil {
			return &TransportError{Step: i + 1, Op: "write", Err: err}
		}
		if err := ch.Flush(); err != nil {
			return &TransportError{Step: i + 1, Op: "flush", Err: err}
		}
	}
	return nil
}

// Observer is told about every completed send attempt.
type Observer interface {
	OnSend(cmd command.Command, bytes int, err error, elapsed time.Duration)
}

type ObserverFunc func(cmd command.Command, bytes int, err error, elapsed time.Duration)

func (f ObserverFunc) OnSend(cmd command.Command, bytes int, err error, elapsed time.Duration) {
	f(cmd, bytes, err, elapsed)
}

// Sender pairs a permit with an optional observer. One Sender is shared by
// every caller writing to the same channel.
type Sender struct {
	permit   Permit
	observer Observer
}

func NewSender(permit Permit) *Sender {
	if permit == nil {
		permit = NewSemaphore(1)
	}
	return &Sender{permit: permit}
}

func (s *Sender) WithObserver(o Observer) *Sender {
	s.observer = o
	return s
}

func (s *Sender) Permit() Permit {
	return s.permit
}

func (s *Sender) Send(cmd command.Command, ch Channel) error {
	return s.SendResolved(cmd, func() (Channel, error) { return ch, nil })
}

// SendResolved acquires the permit and only then asks resolve for the
// channel, so a caller can refuse to write once its connection state has
// changed while it waited. A resolve error is returned as is, after release,
// with nothing written and no observer call.
func (s *Sender) SendResolved(cmd command.Command, resolve func() (Channel, error)) error {
	start := time.Now()
	if !s.permit.Acquire() {
		s.observe(cmd, ErrPermitNotAcquired, start)
		return ErrPermitNotAcquired
	}
	defer s.permit.Release()
	ch, err := resolve()
	if err != nil {
		return err
	}
	err = writeChunks(ch, command.Encode(cmd))
	s.observe(cmd, err, start)
	return err
}

func (s *Sender) observe(cmd command.Command, err error, start time.Time) {
	if s.observer != nil {
		s.observer.OnSend(cmd, command.FrameLen(cmd), err, time.Since(start))
	}
}
