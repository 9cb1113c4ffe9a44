package compiler

import (
	"lua51/internal/bytecode"
	"lua51/internal/parser"
)

// compileExprToReg compiles e and places its (single) value into reg,
// which must already be allocated.
func (c *Compiler) compileExprToReg(e parser.Expr, reg int) {
	for {
		inner, ok := unwrapParen(e)
		if !ok {
			break
		}
		e = inner
	}
	switch ex := e.(type) {
	case *parser.NilExpr:
		c.emit(bytecode.ABC(bytecode.LOADNIL, reg, reg, 0), ex.Line())
	case *parser.TrueExpr:
		c.emit(bytecode.ABC(bytecode.LOADBOOL, reg, 1, 0), ex.Line())
	case *parser.FalseExpr:
		c.emit(bytecode.ABC(bytecode.LOADBOOL, reg, 0, 0), ex.Line())
	case *parser.NumberExpr:
		k := c.numberConst(ex.Value)
		c.emit(bytecode.ABx(bytecode.LOADK, reg, k), ex.Line())
	case *parser.StringExpr:
		k := c.stringConst(ex.Value)
		c.emit(bytecode.ABx(bytecode.LOADK, reg, k), ex.Line())
	case *parser.VarargExpr:
		c.emit(bytecode.ABC(bytecode.VARARG, reg, 2, 0), ex.Line())
	case *parser.NameExpr:
		c.compileNameToReg(ex, reg)
	case *parser.IndexExpr:
		c.compileIndexToReg(ex, reg)
	case *parser.UnaryExpr:
		c.compileUnaryToReg(ex, reg)
	case *parser.BinaryExpr:
		c.compileBinaryToReg(ex, reg)
	case *parser.CallExpr:
		c.compileCallExpr(ex, reg, 2) // want exactly 1 result
	case *parser.MethodCallExpr:
		c.compileMethodCallExpr(ex, reg, 2)
	case *parser.FunctionExpr:
		c.compileFunctionExpr(ex, reg)
	case *parser.TableExpr:
		c.compileTableExpr(ex, reg)
	default:
		c.fail(e.Line(), "internal: unhandled expression type %T", e)
	}
}

// Allow parenExpr (defined in the parser package with an unexported
// field) to be unwrapped without an exported accessor: the parser
// package exposes a small interface instead.
type parenUnwrap interface{ Paren() (parser.Expr, bool) }

func unwrapParen(e parser.Expr) (parser.Expr, bool) {
	if pu, ok := e.(parenUnwrap); ok {
		return pu.Paren()
	}
	return nil, false
}

// compileExprToNewReg allocates a fresh register and compiles e into it.
func (c *Compiler) compileExprToNewReg(e parser.Expr) int {
	if inner, ok := unwrapParen(e); ok {
		e = inner
	}
	if ne, ok := e.(*parser.NameExpr); ok {
		if reg, ok := resolveLocal(c.fi, ne.Name); ok {
			return reg
		}
	}
	reg := c.allocReg()
	c.compileExprToReg(e, reg)
	return reg
}

// compileExprRK compiles e to an RK-encoded operand: a constant-pool
// index if e is a literal, or a register otherwise.
func (c *Compiler) compileExprRK(e parser.Expr) int {
	if inner, ok := unwrapParen(e); ok {
		e = inner
	}
	switch ex := e.(type) {
	case *parser.NumberExpr:
		return bytecode.RKFromConst(c.numberConst(ex.Value))
	case *parser.StringExpr:
		return bytecode.RKFromConst(c.stringConst(ex.Value))
	default:
		return bytecode.RKFromReg(c.compileExprToNewReg(e))
	}
}

func (c *Compiler) compileNameToReg(ex *parser.NameExpr, reg int) {
	if r, ok := resolveLocal(c.fi, ex.Name); ok {
		if r != reg {
			c.emit(bytecode.ABC(bytecode.MOVE, reg, r, 0), ex.Line())
		}
		return
	}
	if idx, ok := resolveUpval(c.fi, ex.Name); ok {
		c.emit(bytecode.ABC(bytecode.GETUPVAL, reg, idx, 0), ex.Line())
		return
	}
	k := c.stringConst(ex.Name)
	c.emit(bytecode.ABx(bytecode.GETGLOBAL, reg, k), ex.Line())
}

func (c *Compiler) compileIndexToReg(ex *parser.IndexExpr, reg int) {
	save := c.top()
	obj := c.compileExprToNewReg(ex.Object)
	key := c.compileExprRK(ex.Key)
	c.emit(bytecode.ABC(bytecode.GETTABLE, reg, obj, key), ex.Line())
	c.freeToReg(max(save, reg+1))
}

func (c *Compiler) compileUnaryToReg(ex *parser.UnaryExpr, reg int) {
	save := c.top()
	operand := c.compileExprToNewReg(ex.Operand)
	var op bytecode.OpCode
	switch ex.Op {
	case "-":
		op = bytecode.UNM
	case "not":
		op = bytecode.NOT
	case "#":
		op = bytecode.LEN
	}
	c.emit(bytecode.ABC(op, reg, operand, 0), ex.Line())
	c.freeToReg(max(save, reg+1))
}

func (c *Compiler) compileBinaryToReg(ex *parser.BinaryExpr, reg int) {
	switch ex.Op {
	case "and":
		c.compileAndOr(ex, reg, false)
		return
	case "or":
		c.compileAndOr(ex, reg, true)
		return
	case "..":
		c.compileConcat(ex, reg)
		return
	case "==", "~=", "<", ">", "<=", ">=":
		c.compileCompare(ex, reg)
		return
	}
	save := c.top()
	b := c.compileExprRK(ex.Left)
	a := c.compileExprRK(ex.Right)
	op := arithOp(ex.Op)
	c.emit(bytecode.ABC(op, reg, b, a), ex.Line())
	c.freeToReg(max(save, reg+1))
}

func arithOp(op string) bytecode.OpCode {
	switch op {
	case "+":
		return bytecode.ADD
	case "-":
		return bytecode.SUB
	case "*":
		return bytecode.MUL
	case "/":
		return bytecode.DIV
	case "%":
		return bytecode.MOD
	case "^":
		return bytecode.POW
	}
	panic("unreachable arith op " + op)
}

// compileAndOr implements short-circuit evaluation via TEST+JMP: the
// left operand is compiled into the destination register, so the plain
// TEST form suffices (TESTSET is only needed when source and
// destination registers differ).
func (c *Compiler) compileAndOr(ex *parser.BinaryExpr, reg int, isOr bool) {
	c.compileExprToReg(ex.Left, reg)
	testVal := 0
	if isOr {
		testVal = 1
	}
	c.emit(bytecode.ABC(bytecode.TEST, reg, 0, testVal), ex.Line())
	jmp := c.emitJump(ex.Line())
	save := c.top()
	c.compileExprToReg(ex.Right, reg)
	c.freeToReg(max(save, reg+1))
	c.patchJump(jmp)
}

// compileConcat flattens a right-associative chain of `..` into one
// CONCAT over a contiguous register range.
func (c *Compiler) compileConcat(ex *parser.BinaryExpr, reg int) {
	save := c.top()
	operands := flattenConcat(ex)
	first := c.top()
	for _, o := range operands {
		r := c.allocReg()
		c.compileExprToReg(o, r)
	}
	last := first + len(operands) - 1
	c.emit(bytecode.ABC(bytecode.CONCAT, reg, first, last), ex.Line())
	c.freeToReg(max(save, reg+1))
}

func flattenConcat(e parser.Expr) []parser.Expr {
	if bin, ok := e.(*parser.BinaryExpr); ok && bin.Op == ".." {
		return append(flattenConcat(bin.Left), flattenConcat(bin.Right)...)
	}
	return []parser.Expr{e}
}

// compileCompare emits one of EQ/LT/LE (conditional skip) followed by
// the load-false/load-true idiom real Lua compilers use to materialize
// a boolean result.
func (c *Compiler) compileCompare(ex *parser.BinaryExpr, reg int) {
	save := c.top()
	op, swap, want := compareOp(ex.Op)
	var b, a int
	if swap {
		b = c.compileExprRK(ex.Right)
		a = c.compileExprRK(ex.Left)
	} else {
		b = c.compileExprRK(ex.Left)
		a = c.compileExprRK(ex.Right)
	}
	c.freeToReg(save)
	flag := 0
	if want {
		flag = 1
	}
	c.emit(bytecode.ABC(op, flag, b, a), ex.Line())
	jmpTrue := c.emitJump(ex.Line())
	c.emit(bytecode.ABC(bytecode.LOADBOOL, reg, 0, 1), ex.Line()) // false, skip true loader
	c.patchJump(jmpTrue)
	c.emit(bytecode.ABC(bytecode.LOADBOOL, reg, 1, 0), ex.Line())
}

func compareOp(op string) (code bytecode.OpCode, swap bool, want bool) {
	switch op {
	case "==":
		return bytecode.EQ, false, true
	case "~=":
		return bytecode.EQ, false, false
	case "<":
		return bytecode.LT, false, true
	case ">":
		return bytecode.LT, true, true
	case "<=":
		return bytecode.LE, false, true
	case ">=":
		return bytecode.LE, true, true
	}
	panic("unreachable compare op " + op)
}

func (c *Compiler) compileTableExpr(ex *parser.TableExpr, reg int) {
	var narr, nhash int
	for _, f := range ex.Fields {
		if f.Key == nil {
			narr++
		} else {
			nhash++
		}
	}
	c.emit(bytecode.ABC(bytecode.NEWTABLE, reg, narr, nhash), ex.Line())
	save := c.top()
	const batch = 50
	pending := 0    // items compiled into the current run, not yet flushed
	flushBase := 0  // register holding run item 1
	batchNum := 0   // 1-based SETLIST batch counter
	flush := func(openEnded bool, line int) {
		batchNum++
		b := pending + 1
		if openEnded {
			b = 0 // B=0 means "use everything up to the current stack top"
		}
		c.emit(bytecode.ABC(bytecode.SETLIST, reg, b, batchNum), line)
		c.freeToReg(flushBase)
		pending = 0
	}
	for i, f := range ex.Fields {
		if f.Key != nil {
			// Key/value temporaries go above any pending array-run
			// registers, which must stay live until their SETLIST.
			hashSave := c.top()
			key := c.compileExprRK(f.Key)
			val := c.compileExprRK(f.Value)
			c.emit(bytecode.ABC(bytecode.SETTABLE, reg, key, val), f.Value.Line())
			c.freeToReg(hashSave)
			continue
		}
		if pending == 0 {
			flushBase = c.top()
		}
		r := c.allocReg()
		if i == len(ex.Fields)-1 && isMultiValue(f.Value) {
			compileMultiValueToReg(c, f.Value, r)
			pending++
			flush(true, f.Value.Line())
			continue
		}
		c.compileExprToReg(f.Value, r)
		pending++
		if pending >= batch {
			flush(false, f.Value.Line())
		}
	}
	if pending > 0 {
		flush(false, ex.Line())
	}
	c.freeToReg(max(save, reg+1))
}

// isMultiValue reports whether e can expand to more than one value in
// trailing position (a call, method call, or `...`).
func isMultiValue(e parser.Expr) bool {
	switch e.(type) {
	case *parser.CallExpr, *parser.MethodCallExpr, *parser.VarargExpr:
		return true
	}
	return false
}

// compileMultiValueToReg compiles a trailing multi-value expression
// starting at reg, leaving "as many results as produced" on the stack
// (the B/C = 0 convention for CALL/VARARG with an open result count).
func compileMultiValueToReg(c *Compiler, e parser.Expr, reg int) {
	switch ex := e.(type) {
	case *parser.CallExpr:
		c.compileCallExpr(ex, reg, 0)
	case *parser.MethodCallExpr:
		c.compileMethodCallExpr(ex, reg, 0)
	case *parser.VarargExpr:
		c.emit(bytecode.ABC(bytecode.VARARG, reg, 0, 0), ex.Line())
	}
}
