// Package transport carries the line-oriented motion controller protocol
// over a serial device, a TCP socket or a WebSocket.
//
// Every Conn delivers incoming lines on a channel and queues outgoing lines
// to a writer goroutine, so neither direction blocks the caller for longer
// than it takes to hand a line over.
package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/san-kum/otbridge/internal/logging"
)

var ErrClosed = errors.New("transport: connection closed")

const (
	lineBuffer   = 64
	outboxBuffer = 16
)

// Conn is a bidirectional line stream.
type Conn interface {
	// Send queues one line for writing. A newline is appended.
	Send(ctx context.Context, line string) error
	// Lines delivers incoming lines without their terminator. It is closed
	// when the connection ends.
	Lines() <-chan string
	// Err returns the error that ended the connection, if any.
	Err() error
	Close() error
}

type streamConn struct {
	rwc    io.ReadWriteCloser
	logger *logging.Logger

	lines  chan string
	outbox chan string
	done   chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

// NewStreamConn wraps a byte stream such as a serial device or a socket.
func NewStreamConn(rwc io.ReadWriteCloser, logger *logging.Logger) Conn {
	if logger == nil {
		logger = logging.NopLogger()
	}
	c := &streamConn{
		rwc:    rwc,
		logger: logger,
		lines:  make(chan string, lineBuffer),
		outbox: make(chan string, outboxBuffer),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

func (c *streamConn) readLoop() {
	defer close(c.lines)

	sc := bufio.NewScanner(c.rwc)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		c.logger.Debug("recv", "line", line)
		select {
		case c.lines <- line:
		case <-c.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		c.fail(err)
	} else {
		c.fail(io.EOF)
	}
}

func (c *streamConn) writeLoop() {
	for {
		select {
		case line := <-c.outbox:
			c.logger.Debug("send", "line", line)
			if _, err := io.WriteString(c.rwc, line+"\n"); err != nil {
				c.fail(err)
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *streamConn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *streamConn) Send(ctx context.Context, line string) error {
	return send(ctx, c.outbox, c.done, line)
}

func (c *streamConn) Lines() <-chan string { return c.lines }

func (c *streamConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *streamConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.rwc.Close()
	})
	return err
}

func send(ctx context.Context, outbox chan<- string, done <-chan struct{}, line string) error {
	select {
	case <-done:
		return ErrClosed
	default:
	}
	select {
	case outbox <- line:
		return nil
	case <-done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
