package vm_test

import (
	"fmt"
	"strings"
	"testing"

	"lua51/internal/compiler"
	"lua51/internal/parser"
	"lua51/internal/value"
	"lua51/internal/vm"
)

func run(t *testing.T, src string) *vm.State {
	t.Helper()
	blk, err := parser.Parse(src, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := vm.New()
	if _, err := s.Run(proto, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	return s
}

func TestArithmeticExpression(t *testing.T) {
	blk, err := parser.Parse("return 1 + 2 * 3", "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := vm.New()
	rets, err := s.Run(proto, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 1 || rets[0].AsNumber() != 7 {
		t.Fatalf("want [7], got %v", rets)
	}
}

func TestIPairsLoopSum(t *testing.T) {
	blk, err := parser.Parse(`
local t = {10, 20, 30}
local sum = 0
for i, v in ipairs(t) do
  sum = sum + v
end
return sum
`, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := vm.New()
	rets, err := s.Run(proto, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 1 || rets[0].AsNumber() != 60 {
		t.Fatalf("want [60], got %v", rets)
	}
}

func TestRecursiveFactorial(t *testing.T) {
	blk, err := parser.Parse(`
local function fact(n)
  if n <= 1 then
    return 1
  end
  return n * fact(n - 1)
end
return fact(6)
`, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := vm.New()
	rets, err := s.Run(proto, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 1 || rets[0].AsNumber() != 720 {
		t.Fatalf("want [720], got %v", rets)
	}
}

func TestSetMetatableIndexFallback(t *testing.T) {
	blk, err := parser.Parse(`
local base = {greet = "hello"}
local t = {}
setmetatable(t, {__index = base})
return t.greet
`, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := vm.New()
	rets, err := s.Run(proto, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 1 || rets[0].AsString() != "hello" {
		t.Fatalf("want [hello], got %v", rets)
	}
}

func TestPCallCatchesError(t *testing.T) {
	blk, err := parser.Parse(`
local ok, msg = pcall(function() error("boom") end)
return ok, msg
`, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := vm.New()
	rets, err := s.Run(proto, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 2 {
		t.Fatalf("want 2 results, got %v", rets)
	}
	if rets[0].IsTruthy() {
		t.Fatalf("want ok=false, got %v", rets[0])
	}
	if !strings.Contains(rets[1].AsString(), "boom") {
		t.Fatalf("want message containing 'boom', got %q", rets[1].AsString())
	}
}

func TestConcatAndLenInLoop(t *testing.T) {
	blk, err := parser.Parse(`
local s = ""
for i = 1, 4 do
  s = s .. "x"
end
return s, #s
`, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := vm.New()
	rets, err := s.Run(proto, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 2 || rets[0].AsString() != "xxxx" || rets[1].AsNumber() != 4 {
		t.Fatalf("want [xxxx, 4], got %v", rets)
	}
}

func TestSelectAndVarargs(t *testing.T) {
	blk, err := parser.Parse(`
local function f(...)
  return select("#", ...)
end
return f(1, 2, 3)
`, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := vm.New()
	rets, err := s.Run(proto, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 1 || rets[0].AsNumber() != 3 {
		t.Fatalf("want [3], got %v", rets)
	}
}

func TestNumericForStepZeroNeverRunsBody(t *testing.T) {
	s := run(t, `
count = 0
for i = 1, 3, 0 do
  count = count + 1
end
`)
	if v := s.Globals.Get(value.Str("count")); v.AsNumber() != 0 {
		t.Fatalf("want count=0 (body never executes), got %v", v)
	}
}

func TestMultipleResultsSpreadAcrossLocals(t *testing.T) {
	s := run(t, `
local function two()
  return 1, 2
end
a, b = two()
local c, d = two()
e, f = c, d
`)
	for name, want := range map[string]float64{"a": 1, "b": 2, "e": 1, "f": 2} {
		if v := s.Globals.Get(value.Str(name)); v.AsNumber() != want {
			t.Fatalf("global %s = %v, want %v", name, v, want)
		}
	}
}

func TestMultipleResultsPadWithNil(t *testing.T) {
	s := run(t, `
local function one()
  return "only"
end
a, b = one()
`)
	if v := s.Globals.Get(value.Str("a")); v.AsString() != "only" {
		t.Fatalf("a = %v, want 'only'", v)
	}
	if v := s.Globals.Get(value.Str("b")); !v.IsNil() {
		t.Fatalf("b = %v, want nil (padded)", v)
	}
}

func TestParenthesesTruncateToOneValue(t *testing.T) {
	s := run(t, `
local function two()
  return 1, 2
end
a, b = (two())
c = (1 + 2)
`)
	if v := s.Globals.Get(value.Str("a")); v.AsNumber() != 1 {
		t.Fatalf("a = %v, want 1", v)
	}
	if v := s.Globals.Get(value.Str("b")); !v.IsNil() {
		t.Fatalf("b = %v, want nil ((two()) is a single value)", v)
	}
	if v := s.Globals.Get(value.Str("c")); v.AsNumber() != 3 {
		t.Fatalf("c = %v, want 3", v)
	}
}

func TestComparisonMaterializesFalse(t *testing.T) {
	s := run(t, `
lt = 2 < 1
le = 2 <= 1
eq = 1 == 2
ne = 1 ~= 1
gt = 1 > 2
`)
	for _, name := range []string{"lt", "le", "eq", "ne", "gt"} {
		v := s.Globals.Get(value.Str(name))
		if !v.IsBool() || v.AsBool() {
			t.Fatalf("%s = %v, want false", name, v)
		}
	}
}

func TestPairsVisitsHashEntries(t *testing.T) {
	s := run(t, `
local t = {x = 1, y = 2, z = 3}
count, sum = 0, 0
for k, v in pairs(t) do
  count = count + 1
  sum = sum + v
end
`)
	if v := s.Globals.Get(value.Str("count")); v.AsNumber() != 3 {
		t.Fatalf("count = %v, want 3", v)
	}
	if v := s.Globals.Get(value.Str("sum")); v.AsNumber() != 6 {
		t.Fatalf("sum = %v, want 6", v)
	}
}

func TestRawBuiltinsRejectNonTableArguments(t *testing.T) {
	s := run(t, `
ok1, e1 = pcall(function() return rawget(5, 1) end)
ok2, e2 = pcall(function() return rawset(5, 1, 2) end)
ok3, e3 = pcall(function() return rawlen(nil) end)
ok4, e4 = pcall(function() return unpack(5) end)
ok5, e5 = pcall(function() return setmetatable(5, {}) end)
ok6, e6 = pcall(function() return setmetatable({}, 5) end)
ok7, e7 = pcall(function() return next(5) end)
ok8, e8 = pcall(function() return pairs(5) end)
ok9, e9 = pcall(function() return ipairs(5) end)
`)
	for i := 1; i <= 9; i++ {
		ok := s.Globals.Get(value.Str(fmt.Sprintf("ok%d", i)))
		if ok.IsTruthy() {
			t.Fatalf("call %d should fail with a bad-argument error", i)
		}
		msg := s.Globals.Get(value.Str(fmt.Sprintf("e%d", i))).AsString()
		if !strings.Contains(msg, "bad argument #") {
			t.Fatalf("call %d: error %q should follow the bad-argument convention", i, msg)
		}
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	s := run(t, `
a = false and error("and must not evaluate its right side") or "ok"
b = "x" or error("or must not evaluate its right side")
c = 1 and 2
d = nil and 1
e = false or nil
`)
	if v := s.Globals.Get(value.Str("a")); v.AsString() != "ok" {
		t.Fatalf("a = %v, want 'ok'", v)
	}
	if v := s.Globals.Get(value.Str("b")); v.AsString() != "x" {
		t.Fatalf("b = %v, want 'x'", v)
	}
	if v := s.Globals.Get(value.Str("c")); v.AsNumber() != 2 {
		t.Fatalf("c = %v, want 2 (and yields its right operand when left is truthy)", v)
	}
	if v := s.Globals.Get(value.Str("d")); !v.IsNil() {
		t.Fatalf("d = %v, want nil (and yields its left operand when left is falsy)", v)
	}
	if v := s.Globals.Get(value.Str("e")); !v.IsNil() {
		t.Fatalf("e = %v, want nil (or yields its right operand when left is falsy)", v)
	}
}

func TestBreakInsideIfBindsToInnermostLoop(t *testing.T) {
	s := run(t, `
n = 0
for i = 1, 10 do
  if i > 3 then
    break
  end
  n = n + 1
end
`)
	if v := s.Globals.Get(value.Str("n")); v.AsNumber() != 3 {
		t.Fatalf("n = %v, want 3 (break should leave the for loop at i=4)", v)
	}
}

func TestErrorValuePassedThroughPCallUnchanged(t *testing.T) {
	blk, err := parser.Parse(`
local ok, msg = pcall(function() error("bad") end)
return ok, msg
`, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := vm.New()
	rets, err := s.Run(proto, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 2 || rets[0].IsTruthy() {
		t.Fatalf("want (false, msg), got %v", rets)
	}
	if rets[1].AsString() != "bad" {
		t.Fatalf("error value must come back unchanged: got %q, want %q", rets[1].AsString(), "bad")
	}
}

func TestUpvalueSharedAcrossCalls(t *testing.T) {
	s := run(t, `
local function counter()
  local n = 0
  return function()
    n = n + 1
    return n
  end
end
local c = counter()
c()
c()
third = c()
`)
	if v := s.Globals.Get(value.Str("third")); v.AsNumber() != 3 {
		t.Fatalf("third = %v, want 3 (closure must share one upvalue cell)", v)
	}
}

func TestMethodCallPassesSelf(t *testing.T) {
	s := run(t, `
local obj = {name = "vm"}
function obj:describe()
  return self.name
end
got = obj:describe()
`)
	if v := s.Globals.Get(value.Str("got")); v.AsString() != "vm" {
		t.Fatalf("got = %v, want 'vm'", v)
	}
}

func TestGlobalsAreSharedAcrossRuns(t *testing.T) {
	s := run(t, `x = 42`)
	if v := s.Globals.Get(value.Str("x")); v.AsNumber() != 42 {
		t.Fatalf("want global x=42, got %v", v)
	}
}
