package sender

import "io"

// Channel is the byte sink a frame is written to. *bufio.Writer satisfies it.
type Channel interface {
	Write(p []byte) (int, error)
	Flush() error
}

type flushWriter struct {
	w io.Writer
}

// FlushWriter adapts an unbuffered writer (net.Conn, bytes.Buffer) into a
// Channel whose Flush is a no-op.
func FlushWriter(w io.Writer) Channel {
	if ch, ok := w.(Channel); ok {
		return ch
	}
	return flushWriter{w: w}
}

func (f flushWriter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f flushWriter) Flush() error {
	return nil
}
