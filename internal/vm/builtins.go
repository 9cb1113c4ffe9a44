package vm

import (
	"fmt"
	"os"

	"lua51/internal/value"
)

// RegisterBuiltins installs the builtin library into s.Globals: print,
// type, tostring, tonumber, pairs, ipairs, next, error, pcall, assert,
// select, the raw* family, unpack, getmetatable and setmetatable. Each
// follows the host-function convention of taking the calling context
// and returning a push count, here expressed as value.HostFunc's Caller
// interface.
func (s *State) RegisterBuiltins() {
	reg := func(name string, fn value.HostFunc) {
		s.Globals.Set(value.Str(name), value.FromClosure(value.NewHostClosure(name, fn)))
	}

	reg("print", s.builtinPrint)
	reg("type", s.builtinType)
	reg("tostring", s.builtinToString)
	reg("tonumber", s.builtinToNumber)
	reg("pairs", s.builtinPairs)
	reg("ipairs", s.builtinIPairs)
	reg("next", s.builtinNext)
	reg("error", s.builtinError)
	reg("pcall", s.builtinPCall)
	reg("assert", s.builtinAssert)
	reg("select", s.builtinSelect)
	reg("rawget", s.builtinRawGet)
	reg("rawset", s.builtinRawSet)
	reg("rawequal", s.builtinRawEqual)
	reg("rawlen", s.builtinRawLen)
	reg("unpack", s.builtinUnpack)
	reg("getmetatable", s.builtinGetMetatable)
	reg("setmetatable", s.builtinSetMetatable)
}

// checkTable validates that argument i is a table, raising the standard
// bad-argument error otherwise, so a host builtin never dereferences a
// nil *Table for ordinary Lua programs like rawget(5, 1).
func (s *State) checkTable(c value.Caller, i int, fname string) *value.Table {
	v := c.Arg(i)
	if !v.IsTable() {
		s.RuntimeError(0, "bad argument #%d to '%s' (table expected, got %s)",
			i+1, fname, argTypeName(c, i))
	}
	return v.AsTable()
}

// argTypeName names argument i's type for error messages, reporting a
// missing argument as "no value" rather than "nil".
func argTypeName(c value.Caller, i int) string {
	if i >= c.NumArgs() {
		return "no value"
	}
	return c.Arg(i).TypeName()
}

func (s *State) builtinPrint(c value.Caller) int {
	parts := make([]string, c.NumArgs())
	for i := 0; i < c.NumArgs(); i++ {
		parts[i] = value.ToString(c.Arg(i))
	}
	line := ""
	for i, p := range parts {
		if i > 0 {
			line += "\t"
		}
		line += p
	}
	fmt.Fprintln(os.Stdout, line)
	return 0
}

func (s *State) builtinType(c value.Caller) int {
	c.Push(value.Str(c.Arg(0).TypeName()))
	return 1
}

func (s *State) builtinToString(c value.Caller) int {
	v := c.Arg(0)
	if h := s.metamethod(v, "__tostring"); !h.IsNil() {
		rets := s.Call(0, h, []value.Value{v}, 1)
		if len(rets) > 0 {
			c.Push(rets[0])
			return 1
		}
	}
	c.Push(value.Str(value.ToString(v)))
	return 1
}

func (s *State) builtinToNumber(c value.Caller) int {
	v := c.Arg(0)
	if c.NumArgs() >= 2 {
		base := int(c.Arg(1).AsNumber())
		str := v.AsString()
		n, ok := parseInBase(str, base)
		if !ok {
			c.Push(value.Nil)
			return 1
		}
		c.Push(value.Number(n))
		return 1
	}
	if n, ok := value.ToNumber(v); ok {
		c.Push(value.Number(n))
	} else {
		c.Push(value.Nil)
	}
	return 1
}

func parseInBase(s string, base int) (float64, bool) {
	if base < 2 || base > 36 {
		return 0, false
	}
	if s == "" {
		return 0, false
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var n float64
	for _, ch := range s {
		var d int
		switch {
		case ch >= '0' && ch <= '9':
			d = int(ch - '0')
		case ch >= 'a' && ch <= 'z':
			d = int(ch-'a') + 10
		case ch >= 'A' && ch <= 'Z':
			d = int(ch-'A') + 10
		default:
			return 0, false
		}
		if d >= base {
			return 0, false
		}
		n = n*float64(base) + float64(d)
	}
	if neg {
		n = -n
	}
	return n, true
}

func (s *State) builtinPairs(c value.Caller) int {
	s.checkTable(c, 0, "pairs")
	c.Push(value.FromClosure(value.NewHostClosure("next", s.builtinNext)))
	c.Push(c.Arg(0))
	c.Push(value.Nil)
	return 3
}

func (s *State) builtinIPairs(c value.Caller) int {
	s.checkTable(c, 0, "ipairs")
	c.Push(value.FromClosure(value.NewHostClosure("inext", s.builtinINext)))
	c.Push(c.Arg(0))
	c.Push(value.Number(0))
	return 3
}

func (s *State) builtinINext(c value.Caller) int {
	t := s.checkTable(c, 0, "ipairs")
	i := c.Arg(1).AsNumber() + 1
	v := t.Get(value.Number(i))
	if v.IsNil() {
		c.Push(value.Nil)
		return 1
	}
	c.Push(value.Number(i))
	c.Push(v)
	return 2
}

func (s *State) builtinNext(c value.Caller) int {
	t := s.checkTable(c, 0, "next")
	k, v, ok := t.Next(c.Arg(1))
	if !ok {
		s.RuntimeError(0, "invalid key to 'next'")
	}
	if k.IsNil() {
		c.Push(value.Nil)
		return 1
	}
	c.Push(k)
	c.Push(v)
	return 2
}

// builtinError throws its argument as-is; pcall hands the value back
// unchanged, so error("bad") surfaces as exactly "bad".
func (s *State) builtinError(c value.Caller) int {
	s.ThrowValue(c.Arg(0))
	return 0
}

func (s *State) builtinPCall(c value.Caller) int {
	fn := c.Arg(0)
	args := make([]value.Value, 0, c.NumArgs()-1)
	for i := 1; i < c.NumArgs(); i++ {
		args = append(args, c.Arg(i))
	}
	ok, rets := s.PCall(0, fn, args)
	c.Push(value.Bool(ok))
	for _, r := range rets {
		c.Push(r)
	}
	return 1 + len(rets)
}

func (s *State) builtinAssert(c value.Caller) int {
	if !c.Arg(0).IsTruthy() {
		msg := c.Arg(1)
		if msg.IsNil() {
			msg = value.Str("assertion failed!")
		}
		s.ThrowValue(msg)
	}
	for i := 0; i < c.NumArgs(); i++ {
		c.Push(c.Arg(i))
	}
	return c.NumArgs()
}

func (s *State) builtinSelect(c value.Caller) int {
	first := c.Arg(0)
	if first.IsString() && first.AsString() == "#" {
		c.Push(value.Number(float64(c.NumArgs() - 1)))
		return 1
	}
	n := int(first.AsNumber())
	if n < 0 {
		n = c.NumArgs() - 1 + n + 1
	}
	count := 0
	for i := n; i < c.NumArgs(); i++ {
		c.Push(c.Arg(i))
		count++
	}
	return count
}

func (s *State) builtinRawGet(c value.Caller) int {
	t := s.checkTable(c, 0, "rawget")
	c.Push(t.Get(c.Arg(1)))
	return 1
}

func (s *State) builtinRawSet(c value.Caller) int {
	t := s.checkTable(c, 0, "rawset")
	t.Set(c.Arg(1), c.Arg(2))
	c.Push(c.Arg(0))
	return 1
}

func (s *State) builtinRawEqual(c value.Caller) int {
	c.Push(value.Bool(value.RawEqual(c.Arg(0), c.Arg(1))))
	return 1
}

func (s *State) builtinRawLen(c value.Caller) int {
	v := c.Arg(0)
	if v.IsString() {
		c.Push(value.Number(float64(len(v.AsString()))))
		return 1
	}
	if !v.IsTable() {
		s.RuntimeError(0, "bad argument #1 to 'rawlen' (table or string expected, got %s)",
			argTypeName(c, 0))
	}
	c.Push(value.Number(float64(v.AsTable().Len())))
	return 1
}

func (s *State) builtinUnpack(c value.Caller) int {
	t := s.checkTable(c, 0, "unpack")
	i := 1
	if c.NumArgs() >= 2 {
		i = int(c.Arg(1).AsNumber())
	}
	j := t.Len()
	if c.NumArgs() >= 3 {
		j = int(c.Arg(2).AsNumber())
	}
	n := 0
	for ; i <= j; i++ {
		c.Push(t.Get(value.Number(float64(i))))
		n++
	}
	return n
}

func (s *State) builtinGetMetatable(c value.Caller) int {
	mt := s.metatableOf(c.Arg(0))
	if mt == nil {
		c.Push(value.Nil)
		return 1
	}
	if protect := mt.Get(value.Str("__metatable")); !protect.IsNil() {
		c.Push(protect)
		return 1
	}
	c.Push(value.FromTable(mt))
	return 1
}

func (s *State) builtinSetMetatable(c value.Caller) int {
	t := s.checkTable(c, 0, "setmetatable")
	mt := c.Arg(1)
	if !mt.IsNil() && !mt.IsTable() {
		s.RuntimeError(0, "bad argument #2 to 'setmetatable' (nil or table expected, got %s)",
			argTypeName(c, 1))
	}
	if t.Metatable() != nil && !t.Metatable().Get(value.Str("__metatable")).IsNil() {
		s.RuntimeError(0, "cannot change a protected metatable")
	}
	if mt.IsNil() {
		t.SetMetatable(nil)
	} else {
		t.SetMetatable(mt.AsTable())
	}
	c.Push(c.Arg(0))
	return 1
}
