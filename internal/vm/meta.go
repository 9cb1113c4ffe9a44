package vm

import (
	"math"

	"lua51/internal/value"
)

func (s *State) metatableOf(v value.Value) *value.Table {
	if v.IsTable() {
		return v.AsTable().Metatable()
	}
	return s.TypeMetas[v.Kind()]
}

func (s *State) metamethod(v value.Value, name string) value.Value {
	mt := s.metatableOf(v)
	if mt == nil {
		return value.Nil
	}
	return mt.Get(value.Str(name))
}

// Index implements GETTABLE's full semantics: raw access, falling back
// to __index (a table, chased recursively, or a function called with
// (table, key)).
func (s *State) Index(line int, obj, key value.Value) value.Value {
	for depth := 0; depth < 100; depth++ {
		if obj.IsTable() {
			v := obj.AsTable().Get(key)
			if !v.IsNil() {
				return v
			}
			h := s.metamethod(obj, "__index")
			if h.IsNil() {
				return value.Nil
			}
			if h.IsClosure() {
				rets := s.Call(line, h, []value.Value{obj, key}, 1)
				if len(rets) == 0 {
					return value.Nil
				}
				return rets[0]
			}
			obj = h
			continue
		}
		h := s.metamethod(obj, "__index")
		if h.IsNil() {
			s.RuntimeError(line, "attempt to index a %s value", obj.TypeName())
		}
		if h.IsClosure() {
			rets := s.Call(line, h, []value.Value{obj, key}, 1)
			if len(rets) == 0 {
				return value.Nil
			}
			return rets[0]
		}
		obj = h
	}
	s.RuntimeError(line, "'__index' chain too long; possible loop")
	return value.Nil
}

// NewIndex implements SETTABLE's full semantics: raw assignment unless
// the key is absent and __newindex intercepts it.
func (s *State) NewIndex(line int, obj, key, val value.Value) {
	for depth := 0; depth < 100; depth++ {
		if obj.IsTable() {
			t := obj.AsTable()
			if !t.Get(key).IsNil() || t.Metatable() == nil {
				if key.IsNil() {
					s.RuntimeError(line, "table index is nil")
				}
				t.Set(key, val)
				return
			}
			h := s.metamethod(obj, "__newindex")
			if h.IsNil() {
				if key.IsNil() {
					s.RuntimeError(line, "table index is nil")
				}
				t.Set(key, val)
				return
			}
			if h.IsClosure() {
				s.Call(line, h, []value.Value{obj, key, val}, 0)
				return
			}
			obj = h
			continue
		}
		h := s.metamethod(obj, "__newindex")
		if h.IsNil() {
			s.RuntimeError(line, "attempt to index a %s value", obj.TypeName())
		}
		if h.IsClosure() {
			s.Call(line, h, []value.Value{obj, key, val}, 0)
			return
		}
		obj = h
	}
	s.RuntimeError(line, "'__newindex' chain too long; possible loop")
}

var arithEvents = map[string]string{
	"add": "__add", "sub": "__sub", "mul": "__mul", "div": "__div",
	"mod": "__mod", "pow": "__pow", "unm": "__unm",
}

// Arith implements an arithmetic opcode's full semantics: numeric
// coercion first, then the matching metamethod on either operand.
func (s *State) Arith(line int, event string, a, b value.Value) value.Value {
	an, aok := value.ToNumber(a)
	bn, bok := value.ToNumber(b)
	if aok && bok {
		return value.Number(applyArith(event, an, bn))
	}
	name := arithEvents[event]
	if h := s.metamethod(a, name); !h.IsNil() {
		return s.call1(line, h, a, b)
	}
	if h := s.metamethod(b, name); !h.IsNil() {
		return s.call1(line, h, a, b)
	}
	bad := a
	if aok {
		bad = b
	}
	s.RuntimeError(line, "attempt to perform arithmetic on a %s value", bad.TypeName())
	return value.Nil
}

func (s *State) call1(line int, fn, a, b value.Value) value.Value {
	rets := s.Call(line, fn, []value.Value{a, b}, 1)
	if len(rets) == 0 {
		return value.Nil
	}
	return rets[0]
}

func applyArith(event string, a, b float64) float64 {
	switch event {
	case "add":
		return a + b
	case "sub":
		return a - b
	case "mul":
		return a * b
	case "div":
		return a / b
	case "mod":
		return a - math.Floor(a/b)*b
	case "pow":
		return math.Pow(a, b)
	}
	return 0
}

// Concat implements CONCAT's semantics over a register range: adjacent
// string/number operands concatenate directly, otherwise __concat is
// tried.
func (s *State) Concat(line int, a, b value.Value) value.Value {
	if (a.IsString() || a.IsNumber()) && (b.IsString() || b.IsNumber()) {
		return value.Str(value.ToString(a) + value.ToString(b))
	}
	if h := s.metamethod(a, "__concat"); !h.IsNil() {
		return s.call1(line, h, a, b)
	}
	if h := s.metamethod(b, "__concat"); !h.IsNil() {
		return s.call1(line, h, a, b)
	}
	bad := a
	if a.IsString() || a.IsNumber() {
		bad = b
	}
	s.RuntimeError(line, "attempt to concatenate a %s value", bad.TypeName())
	return value.Nil
}

// Len implements LEN / the '#' operator, honoring __len.
func (s *State) Len(line int, v value.Value) value.Value {
	if v.IsString() {
		return value.Number(float64(len(v.AsString())))
	}
	if h := s.metamethod(v, "__len"); !h.IsNil() {
		return s.call1(line, h, v, value.Nil)
	}
	if v.IsTable() {
		return value.Number(float64(v.AsTable().Len()))
	}
	s.RuntimeError(line, "attempt to get length of a %s value", v.TypeName())
	return value.Nil
}

// Equals implements EQ's full semantics: raw equality first, then
// __eq when both operands are tables of the same raw-inequal identity.
func (s *State) Equals(line int, a, b value.Value) bool {
	if value.RawEqual(a, b) {
		return true
	}
	if a.Kind() != value.KindTable || b.Kind() != value.KindTable {
		return false
	}
	h := s.metamethod(a, "__eq")
	if h.IsNil() {
		h = s.metamethod(b, "__eq")
	}
	if h.IsNil() {
		return false
	}
	return s.call1(line, h, a, b).IsTruthy()
}

// Less implements LT; Lua 5.1 defines LE in terms of not(b<a) only when
// no direct metamethod is present, but this implementation (like real
// Lua 5.1) looks for __le directly first and falls back to `not (b<a)`.
func (s *State) Less(line int, a, b value.Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() < b.AsNumber()
	}
	if a.IsString() && b.IsString() {
		return a.AsString() < b.AsString()
	}
	if h := s.metamethod(a, "__lt"); !h.IsNil() {
		return s.call1(line, h, a, b).IsTruthy()
	}
	if h := s.metamethod(b, "__lt"); !h.IsNil() {
		return s.call1(line, h, a, b).IsTruthy()
	}
	s.RuntimeError(line, "attempt to compare two %s values", a.TypeName())
	return false
}

func (s *State) LessEqual(line int, a, b value.Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() <= b.AsNumber()
	}
	if a.IsString() && b.IsString() {
		return a.AsString() <= b.AsString()
	}
	if h := s.metamethod(a, "__le"); !h.IsNil() {
		return s.call1(line, h, a, b).IsTruthy()
	}
	if h := s.metamethod(b, "__le"); !h.IsNil() {
		return s.call1(line, h, a, b).IsTruthy()
	}
	return !s.Less(line, b, a)
}
