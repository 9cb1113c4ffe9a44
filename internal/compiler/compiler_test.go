package compiler

import (
	"testing"

	"lua51/internal/bytecode"
	"lua51/internal/parser"
)

func compileSrc(t *testing.T, src string) *bytecode.Proto {
	t.Helper()
	blk, err := parser.Parse(src, "test")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	proto, err := CompileChunk(blk, "test")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return proto
}

func opSeq(p *bytecode.Proto) []bytecode.OpCode {
	out := make([]bytecode.OpCode, len(p.Codes))
	for i, ins := range p.Codes {
		out[i] = ins.OpCode()
	}
	return out
}

func TestCompileArithmeticUsesExpectedOps(t *testing.T) {
	p := compileSrc(t, "local x = 1 + 2 * 3")
	seq := opSeq(p)
	foundMul, foundAdd := false, false
	for _, op := range seq {
		if op == bytecode.MUL {
			foundMul = true
		}
		if op == bytecode.ADD {
			foundAdd = true
		}
	}
	if !foundMul || !foundAdd {
		t.Fatalf("expected MUL and ADD in %v", seq)
	}
}

func TestCompileJumpsArePatched(t *testing.T) {
	p := compileSrc(t, "if x then y = 1 end")
	for i, ins := range p.Codes {
		if ins.OpCode() == bytecode.JMP {
			// A zero-offset JMP is not necessarily wrong (an empty branch
			// legitimately jumps 0 instructions); this test guards
			// against any JMP being patched to land outside the code
			// array.
			target := i + 1 + ins.SBx()
			if target < 0 || target > len(p.Codes) {
				t.Fatalf("JMP at %d targets out-of-range pc %d", i, target)
			}
		}
	}
}

func TestCompileLoopBreakPatchesForward(t *testing.T) {
	p := compileSrc(t, "while true do break end")
	seq := opSeq(p)
	hasJmp, hasForward := false, false
	for _, ins := range p.Codes {
		if ins.OpCode() == bytecode.JMP {
			hasJmp = true
			if ins.SBx() > 0 {
				hasForward = true
			}
		}
	}
	if !hasJmp {
		t.Fatalf("expected at least one JMP for break+loop: %v", seq)
	}
	if !hasForward {
		t.Fatalf("expected a forward JMP out of the loop for break: %v", seq)
	}
}

func TestCompileFunctionProducesClosure(t *testing.T) {
	p := compileSrc(t, "local function f() return 1 end")
	seq := opSeq(p)
	found := false
	for _, op := range seq {
		if op == bytecode.CLOSURE {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected CLOSURE in %v", seq)
	}
	if len(p.SubProtos) != 1 {
		t.Fatalf("expected 1 sub-proto, got %d", len(p.SubProtos))
	}
}

func TestCompileUpvalueCapture(t *testing.T) {
	p := compileSrc(t, `
		local x = 1
		local function f() return x end
	`)
	if len(p.SubProtos) != 1 {
		t.Fatalf("expected 1 sub-proto, got %d", len(p.SubProtos))
	}
	sub := p.SubProtos[0]
	if len(sub.Upvalues) != 1 || sub.Upvalues[0].Name != "x" || !sub.Upvalues[0].IsLocal {
		t.Fatalf("expected one local upvalue named x, got %+v", sub.Upvalues)
	}
}

func TestCompileNumericForEmitsForPrepAndLoop(t *testing.T) {
	p := compileSrc(t, "for i = 1, 10 do end")
	seq := opSeq(p)
	hasPrep, hasLoop := false, false
	for _, op := range seq {
		if op == bytecode.FORPREP {
			hasPrep = true
		}
		if op == bytecode.FORLOOP {
			hasLoop = true
		}
	}
	if !hasPrep || !hasLoop {
		t.Fatalf("expected FORPREP and FORLOOP in %v", seq)
	}
}

func TestCompileGenericForEmitsTForLoop(t *testing.T) {
	p := compileSrc(t, "for k, v in pairs(t) do end")
	seq := opSeq(p)
	found := false
	for _, op := range seq {
		if op == bytecode.TFORLOOP {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected TFORLOOP in %v", seq)
	}
}

func TestCompileAndOrEmitsTestWithJump(t *testing.T) {
	for _, src := range []string{
		"local x = a and b",
		"local x = a or b",
	} {
		p := compileSrc(t, src)
		found := false
		for i, ins := range p.Codes {
			if ins.OpCode() != bytecode.TEST {
				continue
			}
			found = true
			if i+1 >= len(p.Codes) || p.Codes[i+1].OpCode() != bytecode.JMP {
				t.Fatalf("%q: TEST at %d must be followed by a JMP, got %v",
					src, i, opSeq(p))
			}
		}
		if !found {
			t.Fatalf("%q: expected a TEST for short-circuit evaluation: %v", src, opSeq(p))
		}
	}
}

func TestCompileConcatFlattensChain(t *testing.T) {
	p := compileSrc(t, `local s = a .. b .. c`)
	seq := opSeq(p)
	count := 0
	for _, op := range seq {
		if op == bytecode.CONCAT {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected a single flattened CONCAT, got %d in %v", count, seq)
	}
}
