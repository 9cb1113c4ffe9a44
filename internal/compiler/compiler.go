// Package compiler lowers a parser.Block into a bytecode.Proto: register
// allocation, name resolution (locals/upvalues/globals) and jump
// patching, built around a RegisterAllocator/Scope/LoopInfo shape
// targeting Lua's own opcode set.
package compiler

import (
	"lua51/internal/bytecode"
	luaerr "lua51/internal/errors"
	"lua51/internal/parser"
)

const maxRegisters = 250 // headroom below the 255 register hard limit

// localVar is one binding visible in the current scope chain.
type localVar struct {
	name    string
	reg     int
	startPC int
}

// scope is one lexical block: a `do...end`, loop body, if-branch, or
// function body. Locals declared in it are freed when it closes.
type scope struct {
	parent   *scope
	locals   []localVar
	baseReg  int // register allocator position on scope entry
	isLoop   bool
	breakJumps []int // pending JMPs to patch at loop exit
}

// upvalRef is a resolved upvalue: where funcInfo's *parent* keeps the
// value, either one of the parent's own registers (local) or one of the
// parent's own upvalues (chained).
type upvalRef struct {
	name    string
	isLocal bool
	index   int
}

// funcInfo is the per-function compilation context: one instance per
// nested Lua function, including the main chunk.
type funcInfo struct {
	parent *funcInfo

	source      string
	lineDefined int
	numParams   int
	isVararg    bool

	nextReg int
	maxReg  int

	scope *scope

	consts    []bytecode.Const
	constIdx  map[bytecode.Const]int

	code  []bytecode.Instruction
	lines []int

	upvals    []upvalRef
	subProtos []*bytecode.Proto

	localDebug []bytecode.LocalVarInfo
}

func newFuncInfo(parent *funcInfo, source string, lineDefined int) *funcInfo {
	return &funcInfo{
		parent:      parent,
		source:      source,
		lineDefined: lineDefined,
		constIdx:    make(map[bytecode.Const]int),
	}
}

// Compiler drives compilation of one chunk and its nested functions.
type Compiler struct {
	chunk string
	fi    *funcInfo
}

// CompileChunk compiles a full source chunk (always vararg, like Lua's
// real top-level chunk) into a Proto.
func CompileChunk(block *parser.Block, chunkName string) (proto *bytecode.Proto, err error) {
	defer func() {
		if r := recover(); r != nil {
			if le, ok := r.(*luaerr.LuaError); ok {
				err = le
				return
			}
			panic(r)
		}
	}()
	c := &Compiler{chunk: chunkName}
	c.fi = newFuncInfo(nil, chunkName, 0)
	c.fi.isVararg = true
	c.openScope(false)
	c.compileBlock(block)
	c.closeScope()
	c.emitReturn0(0)
	return c.finish(), nil
}

func (c *Compiler) fail(line int, format string, args ...interface{}) {
	panic(luaerr.NewSyntax(c.chunk, line, format, args...))
}

func (c *Compiler) finish() *bytecode.Proto {
	fi := c.fi
	return &bytecode.Proto{
		Source:       fi.source,
		LineDefined:  fi.lineDefined,
		NumParams:    fi.numParams,
		IsVararg:     fi.isVararg,
		MaxStackSize: max(fi.maxReg, 2),
		Codes:        fi.code,
		Consts:       fi.consts,
		SubProtos:    fi.subProtos,
		Upvalues:     upvalDescs(fi.upvals),
		Debug: bytecode.Debug{
			Lines:      fi.lines,
			LocalVars:  fi.localDebug,
			UpvalNames: upvalNames(fi.upvals),
		},
	}
}

func upvalNames(refs []upvalRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.name
	}
	return out
}

func upvalDescs(refs []upvalRef) []bytecode.UpvalDesc {
	out := make([]bytecode.UpvalDesc, len(refs))
	for i, r := range refs {
		out[i] = bytecode.UpvalDesc{Name: r.name, IsLocal: r.isLocal, Index: r.index}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ---- register allocator ----

func (c *Compiler) allocReg() int {
	fi := c.fi
	r := fi.nextReg
	fi.nextReg++
	if fi.nextReg > fi.maxReg {
		fi.maxReg = fi.nextReg
	}
	if fi.nextReg > maxRegisters {
		c.fail(fi.lineDefined, "function uses too many registers")
	}
	return r
}

// allocRegs reserves n contiguous registers, returning the first.
func (c *Compiler) allocRegs(n int) int {
	first := c.fi.nextReg
	for i := 0; i < n; i++ {
		c.allocReg()
	}
	return first
}

func (c *Compiler) freeToReg(r int) {
	if r < c.fi.nextReg {
		c.fi.nextReg = r
	}
}

func (c *Compiler) top() int { return c.fi.nextReg }

// ---- scope & locals ----

func (c *Compiler) openScope(isLoop bool) {
	c.fi.scope = &scope{parent: c.fi.scope, baseReg: c.fi.nextReg, isLoop: isLoop}
}

func (c *Compiler) closeScope() {
	s := c.fi.scope
	for _, lv := range s.locals {
		c.fi.localDebug = append(c.fi.localDebug, bytecode.LocalVarInfo{
			Name: lv.name, StartPC: lv.startPC, EndPC: len(c.fi.code),
		})
	}
	if s.baseReg < c.fi.nextReg {
		c.emit(bytecode.ABC(bytecode.CLOSE, s.baseReg, 0, 0), 0)
	}
	c.freeToReg(s.baseReg)
	c.fi.scope = s.parent
}

func (c *Compiler) declareLocal(name string) int {
	reg := c.allocReg()
	s := c.fi.scope
	s.locals = append(s.locals, localVar{name: name, reg: reg, startPC: len(c.fi.code)})
	return reg
}

// resolveLocal looks up name in fi's own scope chain only.
func resolveLocal(fi *funcInfo, name string) (int, bool) {
	for s := fi.scope; s != nil; s = s.parent {
		for i := len(s.locals) - 1; i >= 0; i-- {
			if s.locals[i].name == name {
				return s.locals[i].reg, true
			}
		}
	}
	return 0, false
}

// resolveUpval finds or creates an upvalue slot in fi referring to name,
// recursively resolving through enclosing functions.
func resolveUpval(fi *funcInfo, name string) (int, bool) {
	for i, u := range fi.upvals {
		if u.name == name {
			return i, true
		}
	}
	if fi.parent == nil {
		return 0, false
	}
	if reg, ok := resolveLocal(fi.parent, name); ok {
		fi.upvals = append(fi.upvals, upvalRef{name: name, isLocal: true, index: reg})
		return len(fi.upvals) - 1, true
	}
	if idx, ok := resolveUpval(fi.parent, name); ok {
		fi.upvals = append(fi.upvals, upvalRef{name: name, isLocal: false, index: idx})
		return len(fi.upvals) - 1, true
	}
	return 0, false
}

// ---- constants ----

func (c *Compiler) constIndex(k bytecode.Const) int {
	if idx, ok := c.fi.constIdx[k]; ok {
		return idx
	}
	idx := len(c.fi.consts)
	c.fi.consts = append(c.fi.consts, k)
	c.fi.constIdx[k] = idx
	return idx
}

func (c *Compiler) numberConst(n float64) int { return c.constIndex(bytecode.NumberConst(n)) }
func (c *Compiler) stringConst(s string) int  { return c.constIndex(bytecode.StringConst(s)) }

// ---- instruction emission ----

func (c *Compiler) emit(i bytecode.Instruction, line int) int {
	c.fi.code = append(c.fi.code, i)
	c.fi.lines = append(c.fi.lines, line)
	return len(c.fi.code) - 1
}

func (c *Compiler) pc() int { return len(c.fi.code) }

func (c *Compiler) emitJump(line int) int {
	return c.emit(bytecode.AsBx(bytecode.JMP, 0, 0), line)
}

// patchJump rewrites the JMP at pc to land on the current pc.
func (c *Compiler) patchJump(pc int) {
	c.patchJumpTo(pc, c.pc())
}

func (c *Compiler) patchJumpTo(pc, target int) {
	offset := target - (pc + 1)
	c.fi.code[pc].SetSBx(offset)
}

func (c *Compiler) emitReturn0(line int) {
	c.emit(bytecode.ABC(bytecode.RETURN, 0, 1, 0), line)
}
