package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/san-kum/otbridge/internal/loop"
)

// Member is a resolved facade member bound to its receiver.
type Member struct {
	e    *entry
	recv reflect.Value
	b    *Bridge
}

// Name returns the member's Go name.
func (m Member) Name() string { return m.e.name }

// Async reports whether calls run on the loop.
func (m Member) Async() bool { return m.e.async }

// Callable reports whether the member is a method.
func (m Member) Callable() bool { return m.e.kind == kindMethod }

// Value returns a field's current value or a method value. Fields are read
// on the caller's goroutine.
func (m Member) Value() any {
	if m.e.kind == kindField {
		v := m.recv
		if v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		return v.FieldByIndex(m.e.field).Interface()
	}
	return m.recv.Method(m.e.method).Interface()
}

// Call invokes the member with args converted to its parameter types.
// Synchronous members run on the caller's goroutine. Asynchronous members
// are submitted to the loop and Call blocks until they finish. A trailing
// error result is returned as err; the other results come back in order.
func (m Member) Call(ctx context.Context, args ...any) ([]any, error) {
	if m.e.kind != kindMethod {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, m.e.name)
	}
	in, spread, err := m.e.convert(args)
	if err != nil {
		return nil, err
	}
	fn := m.recv.Method(m.e.method)

	if !m.e.async {
		if m.e.withCtx {
			in = append([]reflect.Value{reflect.ValueOf(ctx)}, in...)
		}
		return m.e.results(invoke(fn, in, spread))
	}

	release := func() {}
	if ls, ok := m.recv.Interface().(Leaser); ok {
		if release, err = ls.Acquire(); err != nil {
			return nil, err
		}
	}
	fut, err := m.b.loop.SubmitNamed(ctx, m.e.name, func(co loop.Co) (any, error) {
		full := make([]reflect.Value, 0, len(in)+1)
		full = append(full, reflect.ValueOf(co))
		full = append(full, in...)
		return m.e.results(invoke(fn, full, spread))
	})
	if err != nil {
		release()
		return nil, err
	}
	go func() {
		<-fut.Done()
		release()
	}()
	v, err := fut.Wait(ctx)
	out, _ := v.([]any)
	return out, err
}

func invoke(fn reflect.Value, in []reflect.Value, spread bool) []reflect.Value {
	if spread {
		return fn.CallSlice(in)
	}
	return fn.Call(in)
}

func (e *entry) results(out []reflect.Value) ([]any, error) {
	var err error
	if e.errLast {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			err = last.Interface().(error)
		}
	}
	vals := make([]any, len(out))
	for i, v := range out {
		vals[i] = v.Interface()
	}
	return vals, err
}

// convert maps args onto the entry's parameters. spread reports that the
// final argument was given as a whole slice for a variadic parameter.
func (e *entry) convert(args []any) (in []reflect.Value, spread bool, err error) {
	n := len(e.in)
	if e.variadic {
		if len(args) < n-1 {
			return nil, false, e.arity(len(args))
		}
	} else if len(args) != n {
		return nil, false, e.arity(len(args))
	}

	in = make([]reflect.Value, len(args))
	for i, a := range args {
		t := e.paramType(i)
		v, cerr := convertArg(a, t)
		if cerr != nil && e.variadic && i == n-1 && len(args) == n {
			if sv, serr := convertArg(a, e.in[n-1]); serr == nil {
				in[i] = sv
				spread = true
				continue
			}
		}
		if cerr != nil {
			return nil, false, &ArgumentError{Member: e.name, Index: i, Err: cerr}
		}
		in[i] = v
	}
	return in, spread, nil
}

func (e *entry) paramType(i int) reflect.Type {
	n := len(e.in)
	if e.variadic && i >= n-1 {
		return e.in[n-1].Elem()
	}
	return e.in[i]
}

func (e *entry) arity(got int) error {
	want := fmt.Sprintf("%d", len(e.in))
	if e.variadic {
		want = fmt.Sprintf("at least %d", len(e.in)-1)
	}
	return &ArgumentError{
		Member: e.name,
		Index:  -1,
		Err:    fmt.Errorf("takes %s arguments, got %d", want, got),
	}
}

var errLossy = errors.New("value does not fit")

// convertArg converts a to t. Assignable values pass through, numbers
// convert when no precision is lost, and anything else goes through JSON,
// which covers decoded protocol values such as axis names and points.
func convertArg(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", t)
	}

	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		if !fits(v, t) {
			return reflect.Value{}, fmt.Errorf("%w: %v as %s", errLossy, a, t)
		}
		return v.Convert(t), nil
	}

	raw, err := json.Marshal(a)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s: %w", a, t, err)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s: %w", a, t, err)
	}
	return ptr.Elem(), nil
}

// fits reports whether numeric v converts to t and back unchanged. The
// sign is checked separately since a negative int survives a round trip
// through an unsigned type.
func fits(v reflect.Value, t reflect.Type) bool {
	switch {
	case isSigned(v.Kind()) && isUnsigned(t.Kind()):
		if v.Int() < 0 {
			return false
		}
	case isUnsigned(v.Kind()) && isSigned(t.Kind()):
		if v.Convert(t).Int() < 0 {
			return false
		}
	case isFloat(v.Kind()):
		f := v.Float()
		if math.IsNaN(f) {
			return isFloat(t.Kind())
		}
		if f < 0 && isUnsigned(t.Kind()) {
			return false
		}
	}
	return v.Convert(t).Convert(v.Type()).Interface() == v.Interface()
}

func isSigned(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUnsigned(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
