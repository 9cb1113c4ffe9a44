package compiler

import (
	"lua51/internal/bytecode"
	"lua51/internal/parser"
)

// compileExprListOpen compiles a list of expressions into consecutive
// registers starting at base, expanding a trailing call/method-call/
// vararg expression to "as many values as produced". Returns the
// number of values placed, or -1 if the count is open-ended (the
// trailing expression was multi-valued).
func (c *Compiler) compileExprListOpen(exprs []parser.Expr, base int) int {
	if len(exprs) == 0 {
		return 0
	}
	for i, e := range exprs {
		isLast := i == len(exprs)-1
		r := c.allocReg()
		if isLast && isMultiValue(e) {
			compileMultiValueToReg(c, e, r)
			return -1
		}
		c.compileExprToReg(e, r)
	}
	return len(exprs)
}

// compileExprListFixed compiles exprs into exactly want consecutive
// registers starting at the current allocator top, returning the base
// register. A trailing call/method-call/vararg expression expands to
// fill the remaining slots; missing values are padded with nil. Extra
// expressions beyond want are still evaluated, for their side effects.
// The allocator is left at base+want.
func (c *Compiler) compileExprListFixed(exprs []parser.Expr, want, line int) int {
	base := c.top()
	n := 0
	for i, e := range exprs {
		isLast := i == len(exprs)-1
		r := c.allocReg()
		if isLast && isMultiValue(e) && n < want {
			c.compileMultiValueFixed(e, r, want-n)
			n = want
			break
		}
		c.compileExprToReg(e, r)
		n++
	}
	for ; n < want; n++ {
		r := c.allocReg()
		c.emit(bytecode.ABC(bytecode.LOADNIL, r, r, 0), line)
	}
	c.fi.nextReg = base + want
	if c.fi.nextReg > c.fi.maxReg {
		c.fi.maxReg = c.fi.nextReg
	}
	return base
}

// compileMultiValueFixed compiles a trailing multi-value expression
// starting at reg, asking for exactly want values (the VM pads with nil
// when the callee produces fewer).
func (c *Compiler) compileMultiValueFixed(e parser.Expr, reg, want int) {
	switch ex := e.(type) {
	case *parser.CallExpr:
		c.compileCallExpr(ex, reg, want+1)
	case *parser.MethodCallExpr:
		c.compileMethodCallExpr(ex, reg, want+1)
	case *parser.VarargExpr:
		c.emit(bytecode.ABC(bytecode.VARARG, reg, want+1, 0), ex.Line())
	}
}

// compileCallExpr compiles a function call. reg must be the caller's
// current top register (the call's function value lands there); wantC
// follows CALL's C-operand convention: 0 means "as many results as the
// callee returns", n+1 means "exactly n results".
func (c *Compiler) compileCallExpr(ex *parser.CallExpr, reg int, wantC int) {
	c.freeToReg(reg)
	c.allocReg() // the function register itself
	c.compileExprToReg(ex.Fn, reg)
	argBase := c.top()
	nargs := c.compileExprListOpen(ex.Args, argBase)
	b := nargs + 1
	if nargs < 0 {
		b = 0
	}
	c.emit(bytecode.ABC(bytecode.CALL, reg, b, wantC), ex.Line())
	c.settleAfterCall(reg, wantC)
}

// compileMethodCallExpr compiles `obj:method(args)` using SELF so the
// receiver is duplicated into reg+1 as the implicit first argument.
func (c *Compiler) compileMethodCallExpr(ex *parser.MethodCallExpr, reg int, wantC int) {
	c.freeToReg(reg)
	c.allocReg() // self-function slot
	c.allocReg() // receiver/self-arg slot
	objReg := c.compileExprToNewRegAt(ex.Object) // == reg+1
	key := c.stringConst(ex.Method)
	c.emit(bytecode.ABC(bytecode.SELF, reg, objReg, bytecode.RKFromConst(key)), ex.Line())
	argBase := reg + 2
	c.freeToReg(argBase)
	nargs := c.compileExprListOpen(ex.Args, argBase)
	b := nargs + 2 // +1 for the count, +1 for the implicit self
	if nargs < 0 {
		b = 0
	}
	c.emit(bytecode.ABC(bytecode.CALL, reg, b, wantC), ex.Line())
	c.settleAfterCall(reg, wantC)
}

func (c *Compiler) settleAfterCall(reg, wantC int) {
	switch {
	case wantC == 0:
		c.freeToReg(reg + 1)
	default:
		c.freeToReg(reg + wantC - 1)
	}
}

// compileExprToNewRegAt compiles e into the register that is already on
// top of the allocator stack (used by SELF's receiver slot, which must
// be prepared before SELF is emitted).
func (c *Compiler) compileExprToNewRegAt(e parser.Expr) int {
	reg := c.top() - 1
	c.compileExprToReg(e, reg)
	return reg
}
