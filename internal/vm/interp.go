package vm

import (
	"lua51/internal/bytecode"
	"lua51/internal/value"
)

// execFrame runs f's code until a RETURN instruction, returning its
// result values (TAILCALL runs as an ordinary CALL and execution goes on
// to the RETURN after it). This is the core opcode dispatch loop.
func (s *State) execFrame(f *Frame) []value.Value {
	code := f.proto.Codes
	for {
		ins := code[f.pc]
		line := f.lineAt(f.pc)
		f.pc++
		op := ins.OpCode()
		a := ins.A()
		switch op {
		case bytecode.MOVE:
			f.set(a, f.get(ins.B()))

		case bytecode.LOADK:
			f.set(a, constToValue(f.proto.Consts[ins.Bx()]))

		case bytecode.LOADBOOL:
			f.set(a, value.Bool(ins.B() != 0))
			if ins.C() != 0 {
				f.pc++
			}

		case bytecode.LOADNIL:
			for r := a; r <= ins.B(); r++ {
				f.set(r, value.Nil)
			}

		case bytecode.GETUPVAL:
			f.set(a, f.closure.Upvalues[ins.B()].Get())

		case bytecode.GETGLOBAL:
			key := f.proto.Consts[ins.Bx()]
			f.set(a, s.Globals.Get(constToValue(key)))

		case bytecode.GETTABLE:
			f.set(a, s.Index(line, f.get(ins.B()), f.rk(ins.C())))

		case bytecode.SETGLOBAL:
			key := f.proto.Consts[ins.Bx()]
			s.Globals.Set(constToValue(key), f.get(a))

		case bytecode.SETUPVAL:
			f.closure.Upvalues[ins.B()].Set(f.get(a))

		case bytecode.SETTABLE:
			s.NewIndex(line, f.get(a), f.rk(ins.B()), f.rk(ins.C()))

		case bytecode.NEWTABLE:
			f.set(a, value.FromTable(value.NewTableSize(ins.B(), ins.C())))

		case bytecode.SELF:
			obj := f.get(ins.B())
			f.set(a+1, obj)
			f.set(a, s.Index(line, obj, f.rk(ins.C())))

		case bytecode.ADD:
			f.set(a, s.Arith(line, "add", f.rk(ins.B()), f.rk(ins.C())))
		case bytecode.SUB:
			f.set(a, s.Arith(line, "sub", f.rk(ins.B()), f.rk(ins.C())))
		case bytecode.MUL:
			f.set(a, s.Arith(line, "mul", f.rk(ins.B()), f.rk(ins.C())))
		case bytecode.DIV:
			f.set(a, s.Arith(line, "div", f.rk(ins.B()), f.rk(ins.C())))
		case bytecode.MOD:
			f.set(a, s.Arith(line, "mod", f.rk(ins.B()), f.rk(ins.C())))
		case bytecode.POW:
			f.set(a, s.Arith(line, "pow", f.rk(ins.B()), f.rk(ins.C())))

		case bytecode.UNM:
			v := f.get(ins.B())
			if n, ok := value.ToNumber(v); ok {
				f.set(a, value.Number(-n))
			} else {
				f.set(a, s.Arith(line, "unm", v, v))
			}

		case bytecode.NOT:
			f.set(a, value.Bool(!f.get(ins.B()).IsTruthy()))

		case bytecode.LEN:
			f.set(a, s.Len(line, f.get(ins.B())))

		case bytecode.CONCAT:
			v := f.get(ins.C())
			for r := ins.C() - 1; r >= ins.B(); r-- {
				v = s.Concat(line, f.get(r), v)
			}
			f.set(a, v)

		case bytecode.JMP:
			f.pc += ins.SBx()

		case bytecode.EQ:
			if s.Equals(line, f.rk(ins.B()), f.rk(ins.C())) != (a != 0) {
				f.pc++
			}
		case bytecode.LT:
			if s.Less(line, f.rk(ins.B()), f.rk(ins.C())) != (a != 0) {
				f.pc++
			}
		case bytecode.LE:
			if s.LessEqual(line, f.rk(ins.B()), f.rk(ins.C())) != (a != 0) {
				f.pc++
			}

		case bytecode.TEST:
			if f.get(a).IsTruthy() != (ins.C() != 0) {
				f.pc++
			}

		case bytecode.TESTSET:
			v := f.get(ins.B())
			if v.IsTruthy() == (ins.C() != 0) {
				f.set(a, v)
			} else {
				f.pc++
			}

		case bytecode.CALL, bytecode.TAILCALL:
			s.execCall(f, a, ins.B(), ins.C())

		case bytecode.RETURN:
			return s.collectReturn(f, a, ins.B())

		case bytecode.FORPREP:
			init := mustNumber(s, line, f.get(a))
			step := mustNumber(s, line, f.get(a+2))
			if step == 0 {
				// `for i=a,b,0` never runs the body: skip straight past
				// FORLOOP instead of letting it add a zero step forever.
				f.pc += ins.SBx() + 1
				break
			}
			f.set(a, value.Number(init-step))
			f.pc += ins.SBx()

		case bytecode.FORLOOP:
			step := f.get(a+2).AsNumber()
			cur := f.get(a).AsNumber() + step
			limit := f.get(a + 1).AsNumber()
			inRange := (step >= 0 && cur <= limit) || (step < 0 && cur >= limit)
			if inRange {
				f.set(a, value.Number(cur))
				f.set(a+3, value.Number(cur))
				f.pc += ins.SBx()
			}

		case bytecode.TFORLOOP:
			fn := f.get(a)
			rets := s.Call(line, fn, []value.Value{f.get(a + 1), f.get(a + 2)}, ins.C())
			for i, v := range rets {
				f.set(a+3+i, v)
			}
			if len(rets) > 0 && !rets[0].IsNil() {
				f.set(a+2, rets[0])
			} else {
				f.pc++
			}

		case bytecode.SETLIST:
			s.execSetList(f, a, ins.B(), ins.C())

		case bytecode.CLOSE:
			s.closeUpvalsFrom(f, a)

		case bytecode.CLOSURE:
			f.pc = s.execClosure(f, a, ins.Bx(), f.pc)

		case bytecode.VARARG:
			s.execVararg(f, a, ins.B())

		default:
			s.RuntimeError(line, "unknown opcode %v", op)
		}
	}
}

func mustNumber(s *State, line int, v value.Value) float64 {
	n, ok := value.ToNumber(v)
	if !ok {
		s.RuntimeError(line, "'for' initial value must be a number")
	}
	return n
}

func (s *State) execCall(f *Frame, a, b, c int) {
	fn := f.get(a)
	var args []value.Value
	if b == 0 {
		n := f.top - (a + 1)
		args = make([]value.Value, n)
		for i := 0; i < n; i++ {
			args[i] = f.get(a + 1 + i)
		}
	} else {
		args = make([]value.Value, b-1)
		for i := 0; i < b-1; i++ {
			args[i] = f.get(a + 1 + i)
		}
	}
	line := f.lineAt(f.pc - 1)
	var want int
	if c == 0 {
		want = -1
	} else {
		want = c - 1
	}
	rets := s.Call(line, fn, args, want)
	for i, v := range rets {
		f.set(a+i, v)
	}
	if c == 0 {
		f.top = a + len(rets)
	}
}

func (s *State) collectReturn(f *Frame, a, b int) []value.Value {
	if b == 0 {
		n := f.top - a
		out := make([]value.Value, n)
		for i := 0; i < n; i++ {
			out[i] = f.get(a + i)
		}
		return out
	}
	out := make([]value.Value, b-1)
	for i := 0; i < b-1; i++ {
		out[i] = f.get(a + i)
	}
	return out
}

func (s *State) execSetList(f *Frame, a, b, c int) {
	t := f.get(a).AsTable()
	n := b
	if b == 0 {
		n = f.top - (a + 1)
	}
	const batch = 50
	base := (c - 1) * batch
	for i := 1; i <= n; i++ {
		t.Set(value.Number(float64(base+i)), f.get(a+i))
	}
}

func (s *State) execClosure(f *Frame, a, bx, pc int) int {
	sub := f.proto.SubProtos[bx]
	upvals := make([]*value.Upvalue, len(sub.Upvalues))
	for i, desc := range sub.Upvalues {
		ins := f.proto.Codes[pc]
		pc++
		if desc.IsLocal {
			upvals[i] = f.openUpvalue(ins.B())
		} else {
			upvals[i] = f.closure.Upvalues[ins.B()]
		}
	}
	f.set(a, value.FromClosure(value.NewLuaClosure(sub, upvals)))
	return pc
}

func (s *State) execVararg(f *Frame, a, b int) {
	if b == 0 {
		n := len(f.varargs)
		for i := 0; i < n; i++ {
			f.set(a+i, f.varargs[i])
		}
		f.top = a + n
		return
	}
	for i := 0; i < b-1; i++ {
		if i < len(f.varargs) {
			f.set(a+i, f.varargs[i])
		} else {
			f.set(a+i, value.Nil)
		}
	}
}
