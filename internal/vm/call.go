package vm

import "lua51/internal/value"

// Call invokes fn with args and returns up to nresults values (nresults
// < 0 means "as many as produced"), dispatching through __call when fn
// is not itself callable.
func (s *State) Call(line int, fn value.Value, args []value.Value, nresults int) []value.Value {
	if !fn.IsClosure() {
		h := s.metamethod(fn, "__call")
		if h.IsNil() {
			s.RuntimeError(line, "attempt to call a %s value", fn.TypeName())
		}
		newArgs := make([]value.Value, 0, len(args)+1)
		newArgs = append(newArgs, fn)
		newArgs = append(newArgs, args...)
		return s.Call(line, h, newArgs, nresults)
	}
	cl := fn.AsClosure()
	var rets []value.Value
	if cl.IsHost() {
		rets = s.callHost(cl, args)
	} else {
		rets = s.callLua(cl, args)
	}
	return adjustResults(rets, nresults)
}

func adjustResults(rets []value.Value, nresults int) []value.Value {
	if nresults < 0 {
		return rets
	}
	for len(rets) < nresults {
		rets = append(rets, value.Nil)
	}
	return rets[:nresults]
}

// hostCaller adapts a single Call into the value.Caller interface host
// functions are written against.
type hostCaller struct {
	s       *State
	args    []value.Value
	results []value.Value
}

func (c *hostCaller) Arg(i int) value.Value {
	if i < 0 || i >= len(c.args) {
		return value.Nil
	}
	return c.args[i]
}
func (c *hostCaller) NumArgs() int   { return len(c.args) }
func (c *hostCaller) Push(v value.Value) { c.results = append(c.results, v) }
func (c *hostCaller) Error(format string, args ...interface{}) {
	c.s.RuntimeError(0, format, args...)
}

func (s *State) callHost(cl *value.Closure, args []value.Value) []value.Value {
	hc := &hostCaller{s: s, args: args}
	n := cl.Host(hc)
	if n < 0 || n > len(hc.results) {
		n = len(hc.results)
	}
	return hc.results[len(hc.results)-n:]
}

func (s *State) callLua(cl *value.Closure, args []value.Value) []value.Value {
	proto := cl.Proto
	f := newFrame(cl)
	np := proto.NumParams
	for i := 0; i < np && i < len(args); i++ {
		f.regs[i] = args[i]
	}
	if proto.IsVararg && len(args) > np {
		f.varargs = append([]value.Value{}, args[np:]...)
	}
	s.pushFrame(f)
	defer s.popFrame()
	return s.execFrame(f)
}
