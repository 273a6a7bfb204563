package bridge

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/san-kum/otbridge/internal/loop"
)

var errJam = errors.New("plunger jammed")

type settings struct {
	Speed float64
}

type demoFacade struct {
	Name     string
	Settings *settings

	l     *loop.Loop
	calls atomic.Int32
}

func (f *demoFacade) SetLoop(l *loop.Loop) { f.l = l }

func (f *demoFacade) SlowOp(co loop.Co, n int) (int, error) {
	f.calls.Add(1)
	if err := co.Sleep(10 * time.Millisecond); err != nil {
		return 0, err
	}
	return n * 2, nil
}

func (f *demoFacade) Jam(co loop.Co) error { return errJam }

func (f *demoFacade) Sum(co loop.Co, xs ...int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func (f *demoFacade) Greeting(who string) string { return "hello " + who }

func (f *demoFacade) OnLoop() bool { return false }

func (f *demoFacade) Tips(n uint) uint { return n }

func (f *demoFacade) Volume(ul float64) float64 { return ul }

type ctxKey struct{}

func (f *demoFacade) Tagged(ctx context.Context, prefix string) (string, error) {
	tag, _ := ctx.Value(ctxKey{}).(string)
	return prefix + tag + f.Name, nil
}

func newDemo(t *testing.T) (*Bridge, *demoFacade) {
	t.Helper()
	f := &demoFacade{Name: "X", Settings: &settings{Speed: 400}}
	b, err := New(f, WithName("demo"))
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	t.Cleanup(b.Join)
	return b, f
}

func TestSyncAttribute(t *testing.T) {
	b, f := newDemo(t)

	for _, name := range []string{"Name", "name"} {
		v, err := b.Attr(name)
		if err != nil {
			t.Fatalf("Attr(%q): %v", name, err)
		}
		if v != "X" {
			t.Errorf("Attr(%q) = %v, want X", name, v)
		}
	}

	v, err := b.Attr("settings")
	if err != nil {
		t.Fatal(err)
	}
	if v.(*settings) != f.Settings {
		t.Error("attribute should be returned by reference")
	}
}

func TestAsyncCall(t *testing.T) {
	b, f := newDemo(t)

	for _, name := range []string{"SlowOp", "slow_op", "slowOp"} {
		out, err := b.Call(context.Background(), name, 21)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(out) != 1 || out[0] != 42 {
			t.Errorf("%s(21) = %v, want [42]", name, out)
		}
	}
	if f.l != b.Loop() {
		t.Error("facade not bound to the bridge loop")
	}
}

func TestConcurrentCallers(t *testing.T) {
	b, _ := newDemo(t)

	var wg sync.WaitGroup
	got := make([]any, 2)
	for i, n := range []int{1, 2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := b.Call(context.Background(), "slowOp", n)
			if err != nil {
				t.Errorf("slowOp(%d): %v", n, err)
				return
			}
			got[i] = out[0]
		}()
	}
	wg.Wait()

	if got[0] != 2 || got[1] != 4 {
		t.Errorf("results = %v, want [2 4]", got)
	}
}

func TestManyCallersEachGetOwnResult(t *testing.T) {
	b, f := newDemo(t)

	const n = 32
	var wg sync.WaitGroup
	var wrong atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := b.Call(context.Background(), "SlowOp", i)
			if err != nil || out[0] != i*2 {
				wrong.Add(1)
			}
		}()
	}
	wg.Wait()

	if wrong.Load() != 0 {
		t.Errorf("%d callers got a wrong result", wrong.Load())
	}
	if f.calls.Load() != n {
		t.Errorf("calls = %d, want %d", f.calls.Load(), n)
	}
}

func TestErrorPropagatesUnchanged(t *testing.T) {
	b, _ := newDemo(t)

	_, err := b.Call(context.Background(), "jam")
	if err != errJam {
		t.Errorf("expected the facade's own error, got %v", err)
	}
}

func TestSyncMethodRunsOnCaller(t *testing.T) {
	b, _ := newDemo(t)

	m, err := b.Member("greeting")
	if err != nil {
		t.Fatal(err)
	}
	if m.Async() {
		t.Error("Greeting should be synchronous")
	}
	out, err := m.Call(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "hello bob" {
		t.Errorf("got %v", out)
	}
}

func TestContextPassedToSyncMembers(t *testing.T) {
	b, _ := newDemo(t)

	ctx := context.WithValue(context.Background(), ctxKey{}, "-")
	out, err := b.Call(ctx, "tagged", "id")
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "id-X" {
		t.Errorf("tagged = %v, want id-X", out[0])
	}
}

func TestVariadic(t *testing.T) {
	b, _ := newDemo(t)

	tests := []struct {
		name string
		args []any
		want int
	}{
		{"none", nil, 0},
		{"spread", []any{1, 2, 3}, 6},
		{"decoded numbers", []any{1.0, 2.0}, 3},
		{"whole slice", []any{[]any{4.0, 5.0}}, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := b.Call(context.Background(), "sum", tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if out[0] != tt.want {
				t.Errorf("sum = %v, want %d", out[0], tt.want)
			}
		})
	}
}

func TestArgumentErrors(t *testing.T) {
	b, f := newDemo(t)

	tests := []struct {
		name  string
		args  []any
		index int
	}{
		{"too few", nil, -1},
		{"too many", []any{1, 2}, -1},
		{"wrong type", []any{"abc"}, 0},
		{"lossy float", []any{2.5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Call(context.Background(), "SlowOp", tt.args...)
			var ae *ArgumentError
			if !errors.As(err, &ae) {
				t.Fatalf("expected ArgumentError, got %v", err)
			}
			if ae.Index != tt.index {
				t.Errorf("index = %d, want %d", ae.Index, tt.index)
			}
		})
	}
	if f.calls.Load() != 0 {
		t.Error("nothing should reach the loop on bad arguments")
	}
}

func TestNumericConversion(t *testing.T) {
	b, _ := newDemo(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		member string
		arg    any
		ok     bool
	}{
		{"int to uint", "Tips", 3, true},
		{"negative int to uint", "Tips", -1, false},
		{"negative int8 to uint", "Tips", int8(-5), false},
		{"negative float to uint", "Tips", -1.0, false},
		{"whole float to uint", "Tips", 4.0, true},
		{"float32 to float64", "Volume", float32(2.5), true},
		{"nan float32 to float64", "Volume", float32(math.NaN()), true},
		{"huge uint to int", "SlowOp", uint64(1 << 63), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Call(ctx, tt.member, tt.arg)
			var ae *ArgumentError
			if tt.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tt.ok && !errors.As(err, &ae) {
				t.Fatalf("expected ArgumentError, got %v", err)
			}
		})
	}

	out, err := b.Call(ctx, "Volume", float32(math.NaN()))
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(out[0].(float64)) {
		t.Errorf("Volume(NaN) = %v", out[0])
	}
}

type leasedFacade struct {
	demoFacade
	leases atomic.Int32
	held   atomic.Int32
}

func (f *leasedFacade) Acquire() (func(), error) {
	f.leases.Add(1)
	f.held.Add(1)
	return func() { f.held.Add(-1) }, nil
}

func (f *leasedFacade) Held(co loop.Co) int32 { return f.held.Load() }

func TestLeaseHeldUntilCallFinishes(t *testing.T) {
	f := &leasedFacade{}
	b, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Join()

	out, err := b.Call(context.Background(), "held")
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != int32(1) {
		t.Errorf("lease not held while the call ran: %v", out[0])
	}
	if _, err := b.Call(context.Background(), "greeting", "x"); err != nil {
		t.Fatal(err)
	}
	if f.leases.Load() != 1 {
		t.Errorf("sync members should not take a lease, leases = %d", f.leases.Load())
	}

	deadline := time.Now().Add(time.Second)
	for f.held.Load() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if f.held.Load() != 0 {
		t.Error("lease not released after the call finished")
	}
}

func TestLeaseFailureSkipsLoop(t *testing.T) {
	f := &refusingFacade{}
	b, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Join()

	if _, err := b.Call(context.Background(), "slowOp", 1); !errors.Is(err, errRetired) {
		t.Fatalf("expected errRetired, got %v", err)
	}
	if f.calls.Load() != 0 {
		t.Error("call reached the loop without a lease")
	}
}

var errRetired = errors.New("retired")

type refusingFacade struct{ demoFacade }

func (f *refusingFacade) Acquire() (func(), error) { return nil, errRetired }

func TestUnknownMember(t *testing.T) {
	b, _ := newDemo(t)

	if _, err := b.Call(context.Background(), "fly"); !errors.Is(err, ErrUnknownMember) {
		t.Errorf("expected ErrUnknownMember, got %v", err)
	}
	if _, err := b.Attr("fly"); !errors.Is(err, ErrUnknownMember) {
		t.Errorf("expected ErrUnknownMember, got %v", err)
	}
	if _, err := b.Call(context.Background(), "name"); !errors.Is(err, ErrNotCallable) {
		t.Errorf("expected ErrNotCallable, got %v", err)
	}
}

func TestBridgeMembersAreFallback(t *testing.T) {
	b, _ := newDemo(t)

	m, err := b.Member("names")
	if err != nil {
		t.Fatalf("bridge method not reachable: %v", err)
	}
	out, err := m.Call(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if names := out[0].([]string); len(names) == 0 {
		t.Error("expected facade member names")
	}
}

type inner struct {
	Label string
}

func (i *inner) Double(co loop.Co, n int) (int, error) { return n * 2, nil }

type forwardingFacade struct {
	mu     sync.Mutex
	target *inner
}

func (f *forwardingFacade) SetLoop(*loop.Loop) {}

func (f *forwardingFacade) Target() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

func (f *forwardingFacade) swap(t *inner) {
	f.mu.Lock()
	f.target = t
	f.mu.Unlock()
}

func TestForwarderTargetLookedUpPerCall(t *testing.T) {
	f := &forwardingFacade{target: &inner{Label: "sim"}}
	b, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Join()

	out, err := b.Call(context.Background(), "double", 5)
	if err != nil || out[0] != 10 {
		t.Fatalf("double = %v, %v", out, err)
	}

	if v, _ := b.Attr("label"); v != "sim" {
		t.Errorf("label = %v, want sim", v)
	}
	f.swap(&inner{Label: "hw"})
	if v, _ := b.Attr("label"); v != "hw" {
		t.Errorf("label after swap = %v, want hw", v)
	}
}

func TestJoin(t *testing.T) {
	f := &demoFacade{Name: "X"}
	b, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	b.Join()
	b.Join()

	if b.Loop().State() != loop.StateStopped {
		t.Errorf("loop state = %s after Join", b.Loop().State())
	}
	if _, err := b.Call(context.Background(), "slowOp", 1); !errors.Is(err, loop.ErrStopped) {
		t.Errorf("expected ErrStopped after Join, got %v", err)
	}
	if v, err := b.Attr("name"); err != nil || v != "X" {
		t.Errorf("sync attribute after Join = %v, %v", v, err)
	}
}

func TestWithLoop(t *testing.T) {
	l := loop.New(loop.WithName("shared"))
	f := &demoFacade{}
	b, err := New(f, WithLoop(l))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Join()

	if b.Loop() != l || f.l != l {
		t.Error("supplied loop not used")
	}
	if !l.Running() {
		t.Error("idle loop should be started")
	}
}

func TestNewOnStoppedLoop(t *testing.T) {
	l := loop.New()
	l.Join()

	if _, err := New(&demoFacade{}, WithLoop(l)); !errors.Is(err, loop.ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestBuild(t *testing.T) {
	b, err := Build(context.Background(), func() (*demoFacade, error) {
		return &demoFacade{Name: "built"}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Join()

	if v, _ := b.Attr("name"); v != "built" {
		t.Errorf("name = %v", v)
	}

	boom := errors.New("no hardware")
	if _, err := Build(context.Background(), func() (*demoFacade, error) { return nil, boom }); err != boom {
		t.Errorf("builder error not returned unchanged: %v", err)
	}
}

func TestBuildAsync(t *testing.T) {
	var buildLoop *loop.Loop
	b, err := BuildAsync(context.Background(), func(co loop.Co) (*demoFacade, error) {
		buildLoop = co.Loop()
		if err := co.Sleep(time.Millisecond); err != nil {
			return nil, err
		}
		return &demoFacade{Name: "async"}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Join()

	if buildLoop == b.Loop() {
		t.Error("builder should run on a private loop")
	}
	out, err := b.Call(context.Background(), "slowOp", 3)
	if err != nil || out[0] != 6 {
		t.Errorf("slowOp(3) = %v, %v", out, err)
	}

	_, err = BuildAsync(context.Background(), func(co loop.Co) (Facade, error) { return nil, nil })
	if !errors.Is(err, ErrNilFacade) {
		t.Errorf("expected ErrNilFacade, got %v", err)
	}
	_, err = Build(context.Background(), func() (Facade, error) { return nil, nil })
	if !errors.Is(err, ErrNilFacade) {
		t.Errorf("expected ErrNilFacade from Build, got %v", err)
	}

	boom := errors.New("handshake failed")
	_, err = BuildAsync(context.Background(), func(co loop.Co) (*demoFacade, error) { return nil, boom })
	if err != boom {
		t.Errorf("builder error not returned unchanged: %v", err)
	}
}

func TestInvoke(t *testing.T) {
	b, _ := newDemo(t)

	n, err := Invoke(context.Background(), b, func(co loop.Co, f *demoFacade) (int, error) {
		return f.SlowOp(co, 8)
	})
	if err != nil || n != 16 {
		t.Errorf("Invoke = %d, %v", n, err)
	}
}

func TestTableCachedPerType(t *testing.T) {
	a := tableFor(reflect.TypeOf(&demoFacade{}))
	b := tableFor(reflect.TypeOf(&demoFacade{}))
	if a != b {
		t.Error("binding table rebuilt for the same type")
	}
	if e, _ := a.lookup("SlowOp"); !e.async {
		t.Error("SlowOp should be async")
	}
	if e, _ := a.lookup("OnLoop"); e.async {
		t.Error("OnLoop should be sync")
	}
}
