// Package vm implements the register-based interpreter: frame stack,
// opcode dispatch, metatable-driven operator dispatch and the builtin
// library. It is a plain switch-dispatch bytecode loop with no JIT, inline
// caches, or NaN-boxed registers, since a scripting-language
// interpreter at this scope has no hard performance requirement to
// carry that complexity for.
package vm

import (
	"lua51/internal/bytecode"
	luaerr "lua51/internal/errors"
	"lua51/internal/value"
)

// Frame is one activation record: a Lua closure's live registers, its
// varargs, and program counter. Result values flow back to the caller
// through execFrame's return value, so the frame itself only needs the
// execution state.
type Frame struct {
	closure *value.Closure
	proto   *bytecode.Proto
	regs    []value.Value
	varargs []value.Value
	pc      int
	top     int // valid only right after an open-ended CALL/VARARG

	openUpvals map[int]*value.Upvalue
}

// State is the root interpreter context: the global table, the registry,
// the per-type default metatables, and the live call stack.
type State struct {
	Globals  *value.Table
	Registry *value.Table

	// TypeMetas holds the default metatable per non-table type (strings,
	// numbers, booleans). Tables carry their own metatable instead.
	TypeMetas map[value.Kind]*value.Table

	frames []*Frame

	chunkName string
}

func New() *State {
	s := &State{
		Globals:  value.NewTable(),
		Registry: value.NewTable(),
		TypeMetas: map[value.Kind]*value.Table{
			value.KindString: value.NewTable(),
			value.KindNumber: value.NewTable(),
			value.KindBool:   value.NewTable(),
		},
	}
	s.RegisterBuiltins()
	return s
}

// Run wraps a compiled chunk in a vararg closure with no upvalues and
// executes it, the entrypoint cmd/luai and the REPL drive a loaded or
// freshly compiled Proto through.
func (s *State) Run(proto *bytecode.Proto, args []value.Value) ([]value.Value, error) {
	s.chunkName = proto.Source
	cl := value.NewLuaClosure(proto, nil)
	var rets []value.Value
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = asGoError(r)
			}
		}()
		rets = s.Call(0, value.FromClosure(cl), args, -1)
		return nil
	}()
	return rets, err
}

func asGoError(r interface{}) error {
	switch e := r.(type) {
	case *luaValueError:
		return luaerr.NewRuntime("", 0, "%s", value.ToString(e.Value))
	case *luaerr.LuaError:
		return e
	case error:
		return e
	default:
		return luaerr.NewRuntime("", 0, "%v", r)
	}
}

func (s *State) top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Depth reports the current call-stack depth, for stack-overflow checks
// and pcall bookkeeping.
func (s *State) Depth() int { return len(s.frames) }

const maxCallDepth = 200

func (s *State) pushFrame(f *Frame) {
	if len(s.frames) >= maxCallDepth {
		s.RuntimeError(0, "stack overflow")
	}
	s.frames = append(s.frames, f)
}

func (s *State) popFrame() {
	f := s.frames[len(s.frames)-1]
	s.closeUpvalsFrom(f, 0)
	s.frames = s.frames[:len(s.frames)-1]
}

// RuntimeError raises a *errors.LuaError carrying the current source
// location, unwound by the nearest pcall (or the CLI's top-level
// handler if none is active).
func (s *State) RuntimeError(line int, format string, args ...interface{}) {
	src := s.chunkName
	if f := s.top(); f != nil {
		src = f.proto.Source
		if line == 0 {
			line = f.lineAt(f.pc)
		}
	}
	panic(luaerr.NewRuntime(src, line, format, args...))
}

// ThrowValue panics with a raw Lua value, the mechanism `error()` uses
// for its argument whatever the argument's type.
type luaValueError struct {
	Value value.Value
}

func (e *luaValueError) Error() string { return value.ToString(e.Value) }

func (s *State) ThrowValue(v value.Value) {
	panic(&luaValueError{Value: v})
}
