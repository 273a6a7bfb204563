package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/san-kum/otbridge/internal/logging"
)

// wsConn carries one protocol line per text message. Incoming messages
// holding several lines are split.
type wsConn struct {
	ws     *websocket.Conn
	logger *logging.Logger

	lines  chan string
	outbox chan string
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
	mu   sync.Mutex
	err  error
}

// DialWebSocket connects to a controller bridge exposed over WebSocket.
func DialWebSocket(ctx context.Context, url string, logger *logging.Logger) (Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return NewWebSocketConn(ws, logger), nil
}

// NewWebSocketConn wraps an established WebSocket.
func NewWebSocketConn(ws *websocket.Conn, logger *logging.Logger) Conn {
	if logger == nil {
		logger = logging.NopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		ws:     ws,
		logger: logger,
		lines:  make(chan string, lineBuffer),
		outbox: make(chan string, outboxBuffer),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

func (c *wsConn) readLoop() {
	defer close(c.lines)
	for {
		typ, data, err := c.ws.Read(c.ctx)
		if err != nil {
			c.fail(err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			line = strings.TrimRight(line, "\r")
			c.logger.Debug("recv", "line", line)
			select {
			case c.lines <- line:
			case <-c.done:
				return
			}
		}
	}
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case line := <-c.outbox:
			c.logger.Debug("send", "line", line)
			if err := c.ws.Write(c.ctx, websocket.MessageText, []byte(line+"\n")); err != nil {
				c.fail(err)
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *wsConn) Send(ctx context.Context, line string) error {
	return send(ctx, c.outbox, c.done, line)
}

func (c *wsConn) Lines() <-chan string { return c.lines }

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.ws.Close(websocket.StatusNormalClosure, "")
		c.cancel()
	})
	return err
}
