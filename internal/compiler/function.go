package compiler

import (
	"lua51/internal/bytecode"
	"lua51/internal/parser"
)

// compileFunctionExpr compiles a nested function literal into a child
// Proto, then emits CLOSURE plus one upvalue-capture pseudo-instruction
// per captured upvalue, exactly how real Lua 5.1 bytecode represents
// the capture: each pseudo-instruction is a MOVE (capture a
// local from this function's frame) or GETUPVAL (capture one of this
// function's own upvalues), and the VM's CLOSURE handler consumes them
// without executing them as ordinary instructions.
func (c *Compiler) compileFunctionExpr(fn *parser.FunctionExpr, reg int) {
	child := newFuncInfo(c.fi, c.fi.source, fn.Line())
	child.numParams = len(fn.Params)
	child.isVararg = fn.IsVararg

	outer := c.fi
	c.fi = child
	c.openScope(false)
	for _, p := range fn.Params {
		c.declareLocal(p)
	}
	c.compileBlock(fn.Body)
	c.closeScope()
	c.emitReturn0(fn.Line())
	proto := c.finish()
	c.fi = outer

	idx := len(c.fi.subProtos)
	c.fi.subProtos = append(c.fi.subProtos, proto)
	c.emit(bytecode.ABx(bytecode.CLOSURE, reg, idx), fn.Line())
	for _, u := range child.upvals {
		if u.isLocal {
			c.emit(bytecode.ABC(bytecode.MOVE, 0, u.index, 0), fn.Line())
		} else {
			c.emit(bytecode.ABC(bytecode.GETUPVAL, 0, u.index, 0), fn.Line())
		}
	}
}
