package client

import (
	"bufio"
	"net"
	"time"
)

// connChannel is the buffered stream over one connection. Every Write and
// Flush gets a fresh write deadline.
type connChannel struct {
	conn    net.Conn
	w       *bufio.Writer
	timeout time.Duration
}

func newConnChannel(conn net.Conn, timeout time.Duration) *connChannel {
	return &connChannel{conn: conn, w: bufio.NewWriter(conn), timeout: timeout}
}

func (c *connChannel) Write(p []byte) (int, error) {
	if err := c.arm(); err != nil {
		return 0, err
	}
	return c.w.Write(p)
}

func (c *connChannel) Flush() error {
	if err := c.arm(); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *connChannel) arm() error {
	if c.timeout <= 0 {
		return nil
	}
	return c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
}
