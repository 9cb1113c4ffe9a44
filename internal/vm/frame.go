package vm

import "lua51/internal/value"

func newFrame(cl *value.Closure) *Frame {
	p := cl.Proto
	return &Frame{
		closure: cl,
		proto:   p,
		regs:    make([]value.Value, p.MaxStackSize),
	}
}

// lineAt reports the source line for pc, tolerating a missing or short
// line table (a stripped foreign chunk may carry none).
func (f *Frame) lineAt(pc int) int {
	lines := f.proto.Debug.Lines
	if len(lines) == 0 {
		return 0
	}
	if pc < 0 {
		pc = 0
	}
	if pc >= len(lines) {
		pc = len(lines) - 1
	}
	return lines[pc]
}

// ensure grows the register file so index n is valid. The compiler's
// static MaxStackSize normally makes this a no-op; it exists as a safety
// net for open-ended multi-value sequences that can transiently need a
// few extra slots beyond the static estimate.
func (f *Frame) ensure(n int) {
	for len(f.regs) <= n {
		f.regs = append(f.regs, value.Nil)
	}
}

func (f *Frame) get(r int) value.Value { f.ensure(r); return f.regs[r] }
func (f *Frame) set(r int, v value.Value) { f.ensure(r); f.regs[r] = v }

// rk resolves an RK-encoded operand against this frame's registers and
// its proto's constant pool.
func (f *Frame) rk(rk int) value.Value {
	if rkIsConst(rk) {
		return constToValue(f.proto.Consts[rkConstIndex(rk)])
	}
	return f.regs[rk]
}

// openUpvalue returns (creating if needed) the open Upvalue aliasing
// register idx in this frame, so sibling closures created at different
// points share the same cell.
func (f *Frame) openUpvalue(idx int) *value.Upvalue {
	if f.openUpvals == nil {
		f.openUpvals = make(map[int]*value.Upvalue)
	}
	if uv, ok := f.openUpvals[idx]; ok {
		return uv
	}
	uv := value.NewOpenUpvalue(&f.regs, idx)
	f.openUpvals[idx] = uv
	return uv
}

// closeUpvalsFrom closes every open upvalue in f at or above register
// from (the CLOSE opcode, and implicitly on frame return/scope exit).
func (s *State) closeUpvalsFrom(f *Frame, from int) {
	if f.openUpvals == nil {
		return
	}
	for idx, uv := range f.openUpvals {
		if idx >= from {
			uv.Close()
			delete(f.openUpvals, idx)
		}
	}
}
