// Package registry holds the explicit, constructed mapping from external
// function name to Go implementation that the Local executor (and an
// in-process NATS subscriber) dispatches through.
//
// This replaces the dynamic, import-path-based lookup the original Python
// reference implementation used (functions.py's get_function, resolving
// "module.function" strings via importlib at call time): instead callers
// build one Registry, Register every function it should expose, and pass
// that object into the executors that need it. There is no process-wide
// mutable table.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/security"
)

// fn holds reflection metadata for one registered function, the same shape
// the teacher's pkg/internal/handler.Handler uses for job handlers.
type fn struct {
	value      reflect.Value
	argsType   reflect.Type
	hasContext bool
}

// Registry is a constructed, explicit set of callable external functions.
// The zero value is not usable; use New.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]fn
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{funcs: make(map[string]fn)}
}

// Register adds a function under name. impl must have signature
// func(ctx context.Context, args T) (R, error) or func(context.Context, T) error,
// where T and R are JSON-marshalable. Register panics on a malformed impl or
// a duplicate name — both are programmer errors caught at startup, not
// runtime conditions a caller should need to handle.
func (r *Registry) Register(name string, impl any) {
	if err := security.ValidateFunctionName(name); err != nil {
		panic(fmt.Sprintf("registry: %s: %v", name, err))
	}

	h, err := newFn(impl)
	if err != nil {
		panic(fmt.Sprintf("registry: %s: %v", name, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		panic(fmt.Sprintf("registry: function %q already registered", name))
	}
	r.funcs[name] = h
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Call invokes the function registered under name with JSON-encoded args,
// returning its JSON-encoded result.
func (r *Registry) Call(ctx context.Context, name string, args []byte) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownFunction, name)
	}
	return h.execute(ctx, args)
}

func newFn(impl any) (fn, error) {
	if impl == nil {
		return fn{}, fmt.Errorf("function cannot be nil")
	}
	v := reflect.ValueOf(impl)
	if !v.IsValid() || (v.Kind() == reflect.Func && v.IsNil()) {
		return fn{}, fmt.Errorf("function cannot be nil")
	}
	t := v.Type()
	if t.Kind() != reflect.Func {
		return fn{}, fmt.Errorf("function value must be a func")
	}

	h := fn{value: v}

	numIn := t.NumIn()
	if numIn < 1 || numIn > 2 {
		return fn{}, fmt.Errorf("function must take 1-2 arguments")
	}
	argIdx := 0
	if t.In(0).Implements(reflect.TypeOf((*context.Context)(nil)).Elem()) {
		h.hasContext = true
		argIdx = 1
	}
	if argIdx < numIn {
		h.argsType = t.In(argIdx)
	}

	switch numOut := t.NumOut(); numOut {
	case 1:
		if !t.Out(0).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			return fn{}, fmt.Errorf("single-return function must return error")
		}
	case 2:
		if !t.Out(1).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			return fn{}, fmt.Errorf("two-return function must return (T, error)")
		}
	default:
		return fn{}, fmt.Errorf("function must return error or (T, error)")
	}
	return h, nil
}

func (h fn) execute(ctx context.Context, argsJSON []byte) ([]byte, error) {
	var args []reflect.Value
	if h.hasContext {
		args = append(args, reflect.ValueOf(ctx))
	}
	if h.argsType != nil {
		argPtr := reflect.New(h.argsType)
		if len(argsJSON) > 0 {
			if err := json.Unmarshal(argsJSON, argPtr.Interface()); err != nil {
				return nil, fmt.Errorf("unmarshal args: %w", err)
			}
		}
		args = append(args, argPtr.Elem())
	}

	results := h.value.Call(args)

	switch h.value.Type().NumOut() {
	case 1:
		if err, _ := results[0].Interface().(error); err != nil {
			return nil, err
		}
		return nil, nil
	case 2:
		if err, _ := results[1].Interface().(error); err != nil {
			return nil, err
		}
		return json.Marshal(results[0].Interface())
	}
	return nil, nil
}
