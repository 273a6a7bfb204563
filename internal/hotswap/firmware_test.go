package hotswap_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/san-kum/otbridge/internal/transport"
)

// firmware is a minimal motion controller reachable over net.Pipe.
type firmware struct {
	mu       sync.Mutex
	received []string
	models   map[string]string
	ids      map[string]string
	// mute stops the firmware from identifying itself.
	mute bool
}

func newFirmware() *firmware {
	return &firmware{
		models: map[string]string{"L": "p10_single_v1", "R": ""},
		ids:    map[string]string{"L": "P10SV1-0001"},
	}
}

func (f *firmware) dialer() transport.Dialer {
	return transport.DialFunc(func(ctx context.Context, port string) (transport.Conn, error) {
		client, server := net.Pipe()
		go f.serve(server)
		return transport.NewStreamConn(client, nil), nil
	})
}

func (f *firmware) serve(conn net.Conn) {
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		f.mu.Lock()
		f.received = append(f.received, sc.Text())
		reply := "ok\n"
		switch {
		case len(fields) == 0:
		case fields[0] == "M115" && !f.mute:
			reply = "FIRMWARE_NAME:FakeFW-2.0\nok\n"
		case fields[0] == "M369":
			reply = fields[1] + ":" + f.models[fields[1]] + "\nok\n"
		case fields[0] == "M371":
			reply = fields[1] + ":" + f.ids[fields[1]] + "\nok\n"
		case fields[0] == "M114.2":
			reply = "ok MCS: X:0 Y:0 Z:0 A:0 B:0 C:0\n"
		}
		f.mu.Unlock()
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

func (f *firmware) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, line := range f.received {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

var errNoDevice = errors.New("no such device")

func deadDialer() transport.Dialer {
	return transport.DialFunc(func(ctx context.Context, port string) (transport.Conn, error) {
		return nil, errNoDevice
	})
}
