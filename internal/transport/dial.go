package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/san-kum/otbridge/internal/logging"
)

// Dialer opens a Conn to a port.
type Dialer interface {
	Dial(ctx context.Context, port string) (Conn, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, port string) (Conn, error)

func (f DialFunc) Dial(ctx context.Context, port string) (Conn, error) { return f(ctx, port) }

// NewDialer returns the default Dialer logging through logger.
func NewDialer(logger *logging.Logger) Dialer {
	return DialFunc(func(ctx context.Context, port string) (Conn, error) {
		return Dial(ctx, port, logger)
	})
}

// Dial opens port. ws:// and wss:// URLs are dialed as WebSockets,
// tcp://host:port as a TCP socket, anything else is opened as a device
// file such as /dev/ttyACM0.
func Dial(ctx context.Context, port string, logger *logging.Logger) (Conn, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.With("port", port)

	switch {
	case port == "":
		return nil, fmt.Errorf("transport: empty port")
	case strings.HasPrefix(port, "ws://"), strings.HasPrefix(port, "wss://"):
		return DialWebSocket(ctx, port, logger)
	case strings.HasPrefix(port, "tcp://"):
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", strings.TrimPrefix(port, "tcp://"))
		if err != nil {
			return nil, fmt.Errorf("dial tcp: %w", err)
		}
		return NewStreamConn(conn, logger), nil
	default:
		f, err := os.OpenFile(port, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("open device: %w", err)
		}
		return NewStreamConn(f, logger), nil
	}
}
