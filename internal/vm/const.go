package vm

import (
	"lua51/internal/bytecode"
	"lua51/internal/value"
)

func rkIsConst(rk int) bool  { return bytecode.IsConst(rk) }
func rkConstIndex(rk int) int { return bytecode.ConstIndex(rk) }

func constToValue(k bytecode.Const) value.Value {
	switch k.Kind {
	case bytecode.ConstNil:
		return value.Nil
	case bytecode.ConstBool:
		return value.Bool(k.Bool)
	case bytecode.ConstNumber:
		return value.Number(k.Num)
	case bytecode.ConstString:
		return value.Str(k.Str)
	default:
		return value.Nil
	}
}
