package compiler

import (
	"lua51/internal/bytecode"
	"lua51/internal/parser"
)

func (c *Compiler) compileBlock(b *parser.Block) {
	for _, s := range b.Stmts {
		c.compileStmt(s)
	}
}

func (c *Compiler) compileStmt(s parser.Stmt) {
	switch st := s.(type) {
	case *parser.EmptyStmt:
	case *parser.BreakStmt:
		c.compileBreak(st)
	case *parser.DoStmt:
		c.openScope(false)
		c.compileBlock(st.Body)
		c.closeScope()
	case *parser.WhileStmt:
		c.compileWhile(st)
	case *parser.RepeatStmt:
		c.compileRepeat(st)
	case *parser.IfStmt:
		c.compileIf(st)
	case *parser.NumericForStmt:
		c.compileNumericFor(st)
	case *parser.GenericForStmt:
		c.compileGenericFor(st)
	case *parser.LocalStmt:
		c.compileLocal(st)
	case *parser.LocalFunctionStmt:
		c.compileLocalFunction(st)
	case *parser.FunctionDeclStmt:
		c.compileFunctionDecl(st)
	case *parser.AssignStmt:
		c.compileAssign(st)
	case *parser.CallStmt:
		c.compileCallStmt(st)
	case *parser.ReturnStmt:
		c.compileReturn(st)
	default:
		c.fail(0, "internal: unhandled statement type %T", s)
	}
}

// currentLoop finds the nearest enclosing loop scope, for break.
func (c *Compiler) currentLoop() *scope {
	for s := c.fi.scope; s != nil; s = s.parent {
		if s.isLoop {
			return s
		}
	}
	return nil
}

func (c *Compiler) compileBreak(st *parser.BreakStmt) {
	loop := c.currentLoop()
	if loop == nil {
		c.fail(st.Line(), "break outside a loop")
	}
	jmp := c.emitJump(st.Line())
	loop.breakJumps = append(loop.breakJumps, jmp)
}

// patchBreaks patches every pending break jump of loop to the current pc.
func (c *Compiler) patchBreaks(loop *scope) {
	for _, pc := range loop.breakJumps {
		c.patchJump(pc)
	}
}

func (c *Compiler) compileWhile(st *parser.WhileStmt) {
	start := c.pc()
	save := c.top()
	cond := c.compileExprToNewReg(st.Cond)
	c.freeToReg(save)
	c.emit(bytecode.ABC(bytecode.TEST, cond, 0, 0), st.Line())
	exitJmp := c.emitJump(st.Line())
	c.openScope(true)
	c.compileBlock(st.Body)
	loop := c.fi.scope
	c.closeScope()
	c.emit(bytecode.AsBx(bytecode.JMP, 0, start-(c.pc()+1)), st.Line())
	c.patchJump(exitJmp)
	c.patchBreaks(loop)
}

func (c *Compiler) compileRepeat(st *parser.RepeatStmt) {
	start := c.pc()
	c.openScope(true)
	c.compileBlock(st.Body)
	// repeat's until-condition can see the loop body's locals, so the
	// condition is compiled before the scope closes.
	save := c.top()
	cond := c.compileExprToNewReg(st.Cond)
	c.emit(bytecode.ABC(bytecode.TEST, cond, 0, 0), st.Line())
	backJmp := c.emitJump(st.Line())
	c.fi.code[backJmp].SetSBx(start - (backJmp + 1))
	c.freeToReg(save)
	loop := c.fi.scope
	c.closeScope()
	c.patchBreaks(loop)
}

func (c *Compiler) compileIf(st *parser.IfStmt) {
	var endJumps []int
	for i, cl := range st.Clauses {
		if cl.Cond == nil {
			c.openScope(false)
			c.compileBlock(cl.Body)
			c.closeScope()
			continue
		}
		save := c.top()
		cond := c.compileExprToNewReg(cl.Cond)
		c.freeToReg(save)
		c.emit(bytecode.ABC(bytecode.TEST, cond, 0, 0), cl.Cond.Line())
		skipJmp := c.emitJump(cl.Cond.Line())
		c.openScope(false)
		c.compileBlock(cl.Body)
		c.closeScope()
		if i != len(st.Clauses)-1 {
			endJumps = append(endJumps, c.emitJump(st.Line()))
		}
		c.patchJump(skipJmp)
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) compileNumericFor(st *parser.NumericForStmt) {
	c.openScope(true)
	exprs := []parser.Expr{st.Start, st.Stop}
	if st.Step != nil {
		exprs = append(exprs, st.Step)
	} else {
		exprs = append(exprs, &parser.NumberExpr{Value: 1})
	}
	base := c.compileExprListFixed(exprs, 3, st.Line()) // index, limit, step
	prep := c.emit(bytecode.AsBx(bytecode.FORPREP, base, 0), st.Line())
	bodyStart := c.pc()
	c.openScope(false)
	c.declareLocal(st.Var) // base+3, the user-visible loop variable
	c.compileBlock(st.Body)
	c.closeScope()
	loopInst := c.emit(bytecode.AsBx(bytecode.FORLOOP, base, 0), st.Line())
	c.fi.code[loopInst].SetSBx(bodyStart - (loopInst + 1))
	c.fi.code[prep].SetSBx(loopInst - (prep + 1))
	loop := c.fi.scope
	c.closeScope()
	c.patchBreaks(loop)
}

func (c *Compiler) compileGenericFor(st *parser.GenericForStmt) {
	c.openScope(true)
	// iterator function, invariant state, control variable
	base := c.compileExprListFixed(st.Exprs, 3, st.Line())
	jmp := c.emitJump(st.Line())
	bodyStart := c.pc()
	c.openScope(false)
	ctrlBase := c.allocRegs(len(st.Names))
	for i, name := range st.Names {
		c.declareLocalAt(name, ctrlBase+i)
	}
	c.compileBlock(st.Body)
	c.closeScope()
	c.patchJump(jmp)
	c.emit(bytecode.ABC(bytecode.TFORLOOP, base, 0, len(st.Names)), st.Line())
	back := c.emitJump(st.Line())
	c.fi.code[back].SetSBx(bodyStart - (back + 1))
	loop := c.fi.scope
	c.closeScope()
	c.patchBreaks(loop)
}

// declareLocalAt binds name to an already-allocated register (used by
// generic-for, whose control variables are allocated as a block).
func (c *Compiler) declareLocalAt(name string, reg int) {
	s := c.fi.scope
	s.locals = append(s.locals, localVar{name: name, reg: reg, startPC: len(c.fi.code)})
}

func (c *Compiler) compileLocal(st *parser.LocalStmt) {
	// The values are compiled before the names are declared, so
	// `local x = x` initializes from the outer x.
	base := c.compileExprListFixed(st.Exprs, len(st.Names), st.Line())
	for i, name := range st.Names {
		c.declareLocalAt(name, base+i)
	}
}

func (c *Compiler) compileLocalFunction(st *parser.LocalFunctionStmt) {
	reg := c.declareLocal(st.Name) // declared before the body, so it can recurse
	c.compileFunctionExpr(st.Fn, reg)
}

func (c *Compiler) compileFunctionDecl(st *parser.FunctionDeclStmt) {
	reg := c.allocReg()
	c.compileFunctionExpr(st.Fn, reg)
	if len(st.Target) == 1 {
		c.assignToName(st.Target[0], reg, st.Line())
		c.freeToReg(reg)
		return
	}
	save := c.top()
	obj := c.compileExprToNewReg(&parser.NameExpr{Name: st.Target[0]})
	for _, field := range st.Target[1 : len(st.Target)-1] {
		next := c.allocReg()
		k := c.stringConst(field)
		c.emit(bytecode.ABC(bytecode.GETTABLE, next, obj, bytecode.RKFromConst(k)), st.Line())
		obj = next
	}
	k := c.stringConst(st.Target[len(st.Target)-1])
	c.emit(bytecode.ABC(bytecode.SETTABLE, obj, bytecode.RKFromConst(k), bytecode.RKFromReg(reg)), st.Line())
	c.freeToReg(save)
}

func (c *Compiler) assignToName(name string, valueReg int, line int) {
	if r, ok := resolveLocal(c.fi, name); ok {
		if r != valueReg {
			c.emit(bytecode.ABC(bytecode.MOVE, r, valueReg, 0), line)
		}
		return
	}
	if idx, ok := resolveUpval(c.fi, name); ok {
		c.emit(bytecode.ABC(bytecode.SETUPVAL, valueReg, idx, 0), line)
		return
	}
	k := c.stringConst(name)
	c.emit(bytecode.ABx(bytecode.SETGLOBAL, valueReg, k), line)
}

func (c *Compiler) compileAssign(st *parser.AssignStmt) {
	// The whole RHS list is evaluated into fresh temporaries first, with
	// a trailing multi-value expression expanded (or the list nil-padded)
	// to exactly one value per target, then the stores happen.
	save := c.top()
	base := c.compileExprListFixed(st.Exprs, len(st.Targets), st.Line())
	for i, target := range st.Targets {
		c.assignTarget(target, base+i, st.Line())
	}
	c.freeToReg(save)
}

func (c *Compiler) assignTarget(target parser.Expr, valueReg int, line int) {
	switch t := target.(type) {
	case *parser.NameExpr:
		c.assignToName(t.Name, valueReg, line)
	case *parser.IndexExpr:
		save := c.top()
		obj := c.compileExprToNewReg(t.Object)
		key := c.compileExprRK(t.Key)
		c.emit(bytecode.ABC(bytecode.SETTABLE, obj, key, bytecode.RKFromReg(valueReg)), line)
		c.freeToReg(save)
	default:
		c.fail(line, "cannot assign to this expression")
	}
}

func (c *Compiler) compileCallStmt(st *parser.CallStmt) {
	save := c.top()
	r := c.allocReg()
	switch call := st.Call.(type) {
	case *parser.CallExpr:
		c.compileCallExpr(call, r, 1) // 0 results wanted
	case *parser.MethodCallExpr:
		c.compileMethodCallExpr(call, r, 1)
	}
	c.freeToReg(save)
}

func (c *Compiler) compileReturn(st *parser.ReturnStmt) {
	if len(st.Exprs) == 0 {
		c.emitReturn0(st.Line())
		return
	}
	base := c.top()
	n := c.compileExprListOpen(st.Exprs, base)
	b := n + 1
	if n < 0 {
		b = 0
	}
	c.emit(bytecode.ABC(bytecode.RETURN, base, b, 0), st.Line())
}
