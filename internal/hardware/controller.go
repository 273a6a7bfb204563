package hardware

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/otbridge/internal/logging"
	"github.com/san-kum/otbridge/internal/loop"
	"github.com/san-kum/otbridge/internal/transport"
)

// G-code understood by the motion controller firmware.
const (
	gcodeFirmwareInfo = "M115"
	gcodeStepsPerMM   = "M92"
	gcodeHome         = "G28.2"
	gcodeMove         = "G0"
	gcodeWaitMoves    = "M400"
	gcodePosition     = "M114.2"
	gcodeDisengage    = "M18"
	gcodeHalt         = "M112"
	gcodeReadModel    = "M369"
	gcodeReadID       = "M371"
)

// ControllerOptions configures BuildController.
type ControllerOptions struct {
	Port string
	// Force takes over the port even if another process holds its lock.
	Force  bool
	Config Config
	// Dialer defaults to transport.NewDialer.
	Dialer transport.Dialer
	// LockDir holds port lock files. Defaults to os.TempDir().
	LockDir string
	Logger  *logging.Logger
}

// BuildController dials the motion controller on opts.Port and performs the
// firmware handshake. Instruments are not read; call CacheInstruments.
func BuildController(co loop.Co, opts ControllerOptions) (*API, error) {
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = transport.NewDialer(logger)
	}

	lock, err := acquirePortLock(opts.LockDir, opts.Port, opts.Force)
	if err != nil {
		return nil, err
	}

	conn, err := dial(co, dialer, opts.Port, cfg.HandshakeTimeout)
	if err != nil {
		lock.release()
		return nil, &HandshakeError{Port: opts.Port, Err: err}
	}

	b := &controllerBackend{
		conn:    conn,
		lock:    lock,
		cfg:     cfg,
		mu:      loop.NewMutex(),
		timeout: cfg.ResponseTimeout,
		started: time.Now(),
	}
	if err := b.handshake(co); err != nil {
		_ = b.close()
		return nil, &HandshakeError{Port: opts.Port, Err: err}
	}

	logger.Info("controller connected", "port", opts.Port, "firmware", b.firmware)
	return newAPI("controller:"+opts.Port, b, false, opts.Port, cfg, logger), nil
}

func dial(co loop.Co, d transport.Dialer, port string, timeout time.Duration) (transport.Conn, error) {
	ctx := co.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		conn transport.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := d.Dial(ctx, port)
		ch <- result{c, err}
	}()

	r, _, err := loop.Recv(co, ch)
	if err != nil {
		// The dial goroutine sees the same cancellation; close whatever it
		// manages to return.
		go func() {
			if r := <-ch; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, err
	}
	return r.conn, r.err
}

type controllerBackend struct {
	conn     transport.Conn
	lock     *portLock
	cfg      Config
	firmware string
	started  time.Time

	// mu keeps one command in flight so replies pair with requests.
	mu      *loop.Mutex
	timeout time.Duration

	// owed counts replies on the wire that no command will read: those of
	// commands that timed out and of M112. They are drained before the
	// next command is sent. Only touched on the loop.
	owed    int
	haltGen uint64
}

func (b *controllerBackend) handshake(co loop.Co) error {
	reply, err := b.exchangeTimeout(co, gcodeFirmwareInfo, b.cfg.HandshakeTimeout)
	if err != nil {
		return err
	}
	for _, line := range reply {
		if _, fw, ok := strings.Cut(line, "FIRMWARE_NAME:"); ok {
			if f := strings.Fields(fw); len(f) > 0 {
				b.firmware = f[0]
			}
		}
	}
	if b.firmware == "" {
		return fmt.Errorf("no firmware identification in %q", reply)
	}

	_, err = b.exchange(co, gcodeStepsPerMM+" "+axisWords(Axes(), b.cfg.StepsPerMM))
	return err
}

func (b *controllerBackend) exchange(co loop.Co, cmd string) ([]string, error) {
	return b.exchangeTimeout(co, cmd, b.timeout)
}

// exchangeTimeout sends cmd and collects reply lines up to the "ok".
// An "ok" line may carry a trailing payload, which is kept.
func (b *controllerBackend) exchangeTimeout(co loop.Co, cmd string, timeout time.Duration) ([]string, error) {
	if err := b.mu.Lock(co); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	if err := b.drain(co, timeout); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	gen := b.haltGen
	if err := b.conn.Send(co.Context(), cmd); err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd, err)
	}

	var reply []string
	for {
		line, err := b.recv(co, timeout)
		if err != nil {
			if errors.Is(err, loop.ErrTimeout) || errors.Is(err, co.Context().Err()) {
				b.owed++
			}
			return nil, fmt.Errorf("%s: %w", cmd, err)
		}

		final := isFinal(line)
		if final && b.haltGen != gen {
			// Halted while waiting. Of this reply and the M112 one, the
			// other stays owed.
			return nil, ErrHalted
		}
		switch {
		case line == "":
		case line == "ok":
			return reply, nil
		case strings.HasPrefix(line, "ok "):
			return append(reply, strings.TrimPrefix(line, "ok ")), nil
		case final:
			return nil, &ControllerError{Command: cmd, Reply: line}
		default:
			reply = append(reply, line)
		}
	}
}

func (b *controllerBackend) recv(co loop.Co, timeout time.Duration) (string, error) {
	line, ok, err := loop.RecvTimeout(co, b.conn.Lines(), timeout)
	if err != nil {
		return "", err
	}
	if !ok {
		cause := b.conn.Err()
		if cause == nil {
			cause = transport.ErrClosed
		}
		return "", cause
	}
	return strings.TrimSpace(line), nil
}

// drain reads and drops the replies still owed to earlier commands.
func (b *controllerBackend) drain(co loop.Co, timeout time.Duration) error {
	for b.owed > 0 {
		line, err := b.recv(co, timeout)
		if err != nil {
			if errors.Is(err, loop.ErrTimeout) {
				return fmt.Errorf("%w: %d replies missing", ErrDesynced, b.owed)
			}
			return err
		}
		if isFinal(line) {
			b.owed--
		}
	}
	return nil
}

// isFinal reports whether line ends a reply.
func isFinal(line string) bool {
	return line == "ok" || strings.HasPrefix(line, "ok ") ||
		strings.HasPrefix(line, "error") || strings.HasPrefix(line, "!!")
}

func (b *controllerBackend) home(co loop.Co, axes []Axis) error {
	_, err := b.exchange(co, gcodeHome+" "+axisLetters(axes))
	return err
}

func (b *controllerBackend) move(co loop.Co, targets map[Axis]float64) error {
	axes := make([]Axis, 0, len(targets))
	var vals AxisValues
	feed := 0.0
	for _, ax := range Axes() {
		v, ok := targets[ax]
		if !ok {
			continue
		}
		axes = append(axes, ax)
		vals[ax] = v
		if s := b.cfg.MaxSpeed[ax]; feed == 0 || s < feed {
			feed = s
		}
	}
	if len(axes) == 0 {
		return nil
	}

	gen := b.haltGen
	cmd := fmt.Sprintf("%s %s F%.0f", gcodeMove, axisWords(axes, vals), feed*60)
	if _, err := b.exchange(co, cmd); err != nil {
		return err
	}
	if b.haltGen != gen {
		return ErrHalted
	}
	if _, err := b.exchange(co, gcodeWaitMoves); err != nil {
		return err
	}
	if b.haltGen != gen {
		return ErrHalted
	}
	return nil
}

var positionWord = regexp.MustCompile(`([XYZABC]):\s*(-?[0-9.]+)`)

func (b *controllerBackend) position(co loop.Co) ([NumAxes]float64, error) {
	var pos [NumAxes]float64
	reply, err := b.exchange(co, gcodePosition)
	if err != nil {
		return pos, err
	}

	seen := 0
	for _, line := range reply {
		for _, m := range positionWord.FindAllStringSubmatch(line, -1) {
			ax, err := ParseAxis(m[1])
			if err != nil {
				continue
			}
			v, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return pos, fmt.Errorf("hardware: bad position %q: %w", m[0], err)
			}
			pos[ax] = v
			seen++
		}
	}
	if seen == 0 {
		return pos, fmt.Errorf("hardware: no position in reply %q", reply)
	}
	return pos, nil
}

func (b *controllerBackend) disengage(co loop.Co, axes []Axis) error {
	if len(axes) == 0 {
		return nil
	}
	_, err := b.exchange(co, gcodeDisengage+" "+axisLetters(axes))
	return err
}

// halt sends M112 past the command mutex so it reaches the firmware while
// a move is still waiting on its reply. The M112 reply is not waited for.
func (b *controllerBackend) halt(co loop.Co) error {
	if err := b.conn.Send(co.Context(), gcodeHalt); err != nil {
		return fmt.Errorf("send %s: %w", gcodeHalt, err)
	}
	b.haltGen++
	b.owed++
	return nil
}

func (b *controllerBackend) readInstrument(co loop.Co, m Mount) (Instrument, error) {
	letter := "L"
	if m == MountRight {
		letter = "R"
	}

	model, err := b.readMountValue(co, gcodeReadModel, letter)
	if err != nil {
		return Instrument{}, err
	}
	if model == "" {
		return Instrument{}, nil
	}
	tip, ok := TipLength(model)
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}

	id, err := b.readMountValue(co, gcodeReadID, letter)
	if err != nil {
		return Instrument{}, err
	}
	return Instrument{Name: model, ID: id, TipLength: tip}, nil
}

// readMountValue parses replies of the form "L:value".
func (b *controllerBackend) readMountValue(co loop.Co, gcode, letter string) (string, error) {
	reply, err := b.exchange(co, gcode+" "+letter)
	if err != nil {
		return "", err
	}
	for _, line := range reply {
		if v, ok := strings.CutPrefix(line, letter+":"); ok {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("hardware: unexpected reply to %s %s: %q", gcode, letter, reply)
}

func (b *controllerBackend) elapsed() float64 { return time.Since(b.started).Seconds() }

func (b *controllerBackend) close() error {
	err := b.conn.Close()
	b.lock.release()
	return err
}

func axisLetters(axes []Axis) string {
	parts := make([]string, len(axes))
	for i, ax := range axes {
		parts[i] = ax.String()
	}
	return strings.Join(parts, " ")
}

func axisWords(axes []Axis, vals AxisValues) string {
	parts := make([]string, len(axes))
	for i, ax := range axes {
		parts[i] = fmt.Sprintf("%s%.3f", ax, vals[ax])
	}
	return strings.Join(parts, " ")
}

// portLock is an exclusive lock file for one port.
type portLock struct {
	path string
}

func lockPath(dir, port string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, port)
	return filepath.Join(dir, "otsim-"+safe+".lock")
}

func acquirePortLock(dir, port string, force bool) (*portLock, error) {
	path := lockPath(dir, port)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, os.ErrExist) {
		if !force {
			return nil, fmt.Errorf("%w: %s (%s)", ErrPortLocked, port, path)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("hardware: remove stale lock: %w", err)
		}
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	}
	if err != nil {
		return nil, fmt.Errorf("hardware: create port lock: %w", err)
	}
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()
	return &portLock{path: path}, nil
}

func (l *portLock) release() {
	if l != nil {
		_ = os.Remove(l.path)
	}
}
