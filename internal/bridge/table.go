package bridge

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/iancoleman/strcase"

	"github.com/san-kum/otbridge/internal/loop"
)

var (
	coType    = reflect.TypeOf(loop.Co{})
	ctxType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

type memberKind int

const (
	kindMethod memberKind = iota
	kindField
)

// entry describes one member of a facade type.
type entry struct {
	name  string
	kind  memberKind
	async bool

	method int
	field  []int

	// withCtx marks sync methods taking a context.Context first; the
	// caller's ctx is passed there.
	withCtx bool

	// in lists the parameters the caller supplies.
	in       []reflect.Type
	variadic bool
	errLast  bool
}

type table struct {
	typ     reflect.Type
	entries map[string]*entry
	names   []string
}

var tables sync.Map // reflect.Type -> *table

// tableFor returns the binding table for t, building it on first use.
func tableFor(t reflect.Type) *table {
	if v, ok := tables.Load(t); ok {
		return v.(*table)
	}
	v, _ := tables.LoadOrStore(t, buildTable(t))
	return v.(*table)
}

func buildTable(t reflect.Type) *table {
	tb := &table{typ: t, entries: make(map[string]*entry)}

	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		tb.add(methodEntry(i, m))
	}

	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(st) {
			if !f.IsExported() || f.Anonymous {
				continue
			}
			if _, taken := tb.entries[f.Name]; taken {
				continue
			}
			tb.add(&entry{name: f.Name, kind: kindField, field: f.Index})
		}
	}

	sort.Strings(tb.names)

	// Aliases never shadow a Go name.
	for _, name := range tb.names {
		e := tb.entries[name]
		for _, alias := range []string{strcase.ToSnake(name), strcase.ToLowerCamel(name)} {
			if _, taken := tb.entries[alias]; !taken {
				tb.entries[alias] = e
			}
		}
	}
	return tb
}

func (tb *table) add(e *entry) {
	tb.entries[e.name] = e
	tb.names = append(tb.names, e.name)
}

func methodEntry(index int, m reflect.Method) *entry {
	mt := m.Type
	e := &entry{name: m.Name, kind: kindMethod, method: index, variadic: mt.IsVariadic()}

	// In(0) is the receiver.
	first := 1
	switch {
	case mt.NumIn() > 1 && mt.In(1) == coType:
		e.async = true
		first = 2
	case mt.NumIn() > 1 && mt.In(1) == ctxType:
		e.withCtx = true
		first = 2
	}
	for i := first; i < mt.NumIn(); i++ {
		e.in = append(e.in, mt.In(i))
	}
	if n := mt.NumOut(); n > 0 && mt.Out(n-1) == errorType {
		e.errLast = true
	}
	return e
}

func (tb *table) lookup(name string) (*entry, bool) {
	e, ok := tb.entries[name]
	return e, ok
}
