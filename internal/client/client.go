package client

import (
	"context"
	"crypto/tls"
	"errors"
	"math/rand"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/cmdclient/internal/dispatch"
	"github.com/danmuck/cmdclient/internal/observability"
	"github.com/danmuck/cmdclient/internal/protocol/command"
	"github.com/danmuck/cmdclient/internal/protocol/sender"
	"github.com/danmuck/cmdclient/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrServerAddressRequired = errors.New("client: server address required")
	ErrNetworkNameRequired   = errors.New("client: network name required")
	ErrNotConnected          = errors.New("client: not connected")
	ErrAlreadyConnected      = errors.New("client: already connected")
	ErrClosed                = errors.New("client: closed")
)

type Config struct {
	ServerAddress string
	NetworkName   string
	// LocalAddress is the default command target. When unset it is taken
	// from the connection's local address on Connect.
	LocalAddress       netip.Addr
	Session            session.Config
	MaxConnectAttempts int
	Dispatch           dispatch.Config
}

func DefaultConfig() Config {
	return Config{
		Session:  session.DefaultConfig(),
		Dispatch: dispatch.DefaultConfig(),
	}
}

// Client pushes commands to one server over one stream. All sends, threaded
// or not, share a single permit so frames never interleave.
type Client struct {
	cfg        Config
	sender     *sender.Sender
	dispatcher *dispatch.Dispatcher
	logger     zerolog.Logger
	// rng is only touched by the one Connect allowed to run at a time.
	rng        *rand.Rand

	mu         sync.RWMutex
	conn       net.Conn
	ch         sender.Channel
	local      netip.Addr
	connecting bool
	closed     bool
}

// New builds an unconnected client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ServerAddress) == "" {
		return nil, ErrServerAddressRequired
	}
	return newClient(cfg, nil, sender.NewSemaphore(1))
}

// NewWithChannel builds a client that writes to ch under permit instead of
// dialing. A nil permit gets a fresh binary semaphore.
func NewWithChannel(cfg Config, ch sender.Channel, permit sender.Permit) (*Client, error) {
	if permit == nil {
		permit = sender.NewSemaphore(1)
	}
	return newClient(cfg, ch, permit)
}

func newClient(cfg Config, ch sender.Channel, permit sender.Permit) (*Client, error) {
	if strings.TrimSpace(cfg.NetworkName) == "" {
		return nil, ErrNetworkNameRequired
	}
	cfg.NetworkName = strings.TrimSpace(cfg.NetworkName)
	cfg.Session = cfg.Session.WithDefaults()

	c := &Client{
		cfg:    cfg,
		sender: sender.NewSender(permit).WithObserver(sender.ObserverFunc(observability.RecordSend)),
		logger: log.Logger.With().Str("component", "client").Str("network_name", cfg.NetworkName).Logger(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		ch:     ch,
		local:  cfg.LocalAddress,
	}

	dcfg := cfg.Dispatch
	userResult := dcfg.OnResult
	dcfg.OnResult = func(res dispatch.Result) {
		observability.RecordDispatch(res.Command, res.Attempts, res.Err)
		if userResult != nil {
			userResult(res)
		}
	}
	if dcfg.Logger == nil {
		dcfg.Logger = &c.logger
	}
	d, err := dispatch.New(dcfg, c.SendUnthreaded)
	if err != nil {
		return nil, err
	}
	c.dispatcher = d
	return c, nil
}

func (c *Client) NetworkName() string {
	return c.cfg.NetworkName
}

func (c *Client) ServerAddress() string {
	return c.cfg.ServerAddress
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ch != nil && !c.closed
}

// LocalAddress is the target used by NewCommand.
func (c *Client) LocalAddress() netip.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.local
}

// NewCommand builds a command targeting this client's local address.
func (c *Client) NewCommand(t command.Type, metadata []byte) command.Command {
	return command.New(t, c.LocalAddress(), metadata)
}

// Connect dials the server, retrying with backoff up to MaxConnectAttempts
// (unbounded when zero). Only one Connect runs at a time; a second caller
// gets ErrAlreadyConnected while the first is still dialing.
func (c *Client) Connect(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.ServerAddress) == "" {
		return ErrServerAddressRequired
	}
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.ch != nil || c.connecting:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.connecting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	}()

	var attempt int
	for {
		attempt++
		conn, err := c.dial(ctx)
		if err == nil {
			if err := c.attach(conn); err != nil {
				return err
			}
			c.logger.Info().Str("server", c.cfg.ServerAddress).Int("attempt", attempt).Msg("connected")
			return nil
		}
		c.logger.Warn().Str("server", c.cfg.ServerAddress).Int("attempt", attempt).Err(err).Msg("dial failed")
		if !c.shouldRetry(attempt) || errors.Is(err, ctx.Err()) {
			return err
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return err
		}
	}
}

// attach installs conn unless the client was closed or given a channel
// while dialing, in which case conn is closed.
func (c *Client) attach(conn net.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		_ = conn.Close()
		return ErrClosed
	case c.ch != nil:
		_ = conn.Close()
		return ErrAlreadyConnected
	}
	c.conn = conn
	c.ch = newConnChannel(conn, c.cfg.Session.WriteTimeout)
	if !c.local.IsValid() {
		if ap, err := netip.ParseAddrPort(conn.LocalAddr().String()); err == nil {
			c.local = ap.Addr().Unmap()
		}
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	if err := c.cfg.Session.ValidateClientTransport(); err != nil {
		return nil, err
	}
	dialer := net.Dialer{Timeout: c.cfg.Session.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", c.cfg.ServerAddress)
	if err != nil {
		return nil, err
	}
	if !c.cfg.Session.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := c.cfg.Session.ClientTLSConfig(c.cfg.ServerAddress)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, c.cfg.Session.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.cfg.Session.Backoff.Delay(attempt, c.rng))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SendUnthreaded sends cmd on the caller's goroutine, blocking on the shared
// permit. Transport errors are returned unchanged and never retried here.
// The connection is looked up only once the permit is held, so a send that
// waited behind Close fails with ErrClosed instead of writing.
func (c *Client) SendUnthreaded(cmd command.Command) error {
	return c.sender.SendResolved(cmd, c.channel)
}

func (c *Client) channel() (sender.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.ch == nil {
		return nil, ErrNotConnected
	}
	return c.ch, nil
}

// Send queues cmd for the background dispatcher and returns its dispatch id.
func (c *Client) Send(cmd command.Command) (uuid.UUID, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return uuid.Nil, ErrClosed
	}
	return c.dispatcher.Submit(cmd)
}

// Pending lists queued commands not yet sent.
func (c *Client) Pending() []dispatch.PendingCommand {
	return c.dispatcher.Pending()
}

func (c *Client) Failed() []dispatch.Result {
	return c.dispatcher.Failed()
}

// Login announces this client's network name to the server.
func (c *Client) Login() error {
	return c.SendUnthreaded(c.NewCommand(command.ClientLoginInform, []byte(c.cfg.NetworkName)))
}

// Disconnect drains queued commands, tells the server the user is leaving
// and closes the stream.
func (c *Client) Disconnect(ctx context.Context) error {
	drainErr := c.dispatcher.Close(ctx)
	var exitErr error
	if c.Connected() {
		exitErr = c.SendUnthreaded(c.NewCommand(command.UserExit, nil))
	}
	closeErr := c.Close(ctx)
	return errors.Join(drainErr, exitErr, closeErr)
}

// Close drains the dispatcher within ctx and closes the connection. A
// channel injected through NewWithChannel is left open.
func (c *Client) Close(ctx context.Context) error {
	drainErr := c.dispatcher.Close(ctx)

	permit := c.sender.Permit()
	if !permit.Acquire() {
		return errors.Join(drainErr, sender.ErrPermitNotAcquired)
	}
	defer permit.Release()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return drainErr
	}
	c.closed = true
	c.ch = nil
	var closeErr error
	if c.conn != nil {
		closeErr = c.conn.Close()
		c.conn = nil
		c.logger.Info().Str("server", c.cfg.ServerAddress).Msg("disconnected")
	}
	return errors.Join(drainErr, closeErr)
}
