package parser

import "testing"

func mustParse(t *testing.T, src string) *Block {
	t.Helper()
	b, err := Parse(src, "test")
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	return b
}

func TestParseLocalAssign(t *testing.T) {
	b := mustParse(t, "local x = 1")
	if len(b.Stmts) != 1 {
		t.Fatalf("want 1 stmt, got %d", len(b.Stmts))
	}
	ls, ok := b.Stmts[0].(*LocalStmt)
	if !ok {
		t.Fatalf("want *LocalStmt, got %T", b.Stmts[0])
	}
	if len(ls.Names) != 1 || ls.Names[0] != "x" {
		t.Fatalf("bad names: %v", ls.Names)
	}
}

func TestParseIfElseif(t *testing.T) {
	b := mustParse(t, `if a then return 1 elseif b then return 2 else return 3 end`)
	st, ok := b.Stmts[0].(*IfStmt)
	if !ok {
		t.Fatalf("want *IfStmt, got %T", b.Stmts[0])
	}
	if len(st.Clauses) != 3 {
		t.Fatalf("want 3 clauses, got %d", len(st.Clauses))
	}
	if st.Clauses[2].Cond != nil {
		t.Fatalf("trailing else clause should have nil cond")
	}
}

func TestParseNumericFor(t *testing.T) {
	b := mustParse(t, `for i = 1, 10, 2 do end`)
	fs, ok := b.Stmts[0].(*NumericForStmt)
	if !ok {
		t.Fatalf("want *NumericForStmt, got %T", b.Stmts[0])
	}
	if fs.Var != "i" || fs.Step == nil {
		t.Fatalf("bad numeric for: %+v", fs)
	}
}

func TestParseGenericFor(t *testing.T) {
	b := mustParse(t, `for k, v in pairs(t) do end`)
	fs, ok := b.Stmts[0].(*GenericForStmt)
	if !ok {
		t.Fatalf("want *GenericForStmt, got %T", b.Stmts[0])
	}
	if len(fs.Names) != 2 {
		t.Fatalf("bad names: %v", fs.Names)
	}
}

func TestParseFunctionCallPrecedence(t *testing.T) {
	b := mustParse(t, `print(1 + 2 * 3)`)
	cs, ok := b.Stmts[0].(*CallStmt)
	if !ok {
		t.Fatalf("want *CallStmt, got %T", b.Stmts[0])
	}
	call, ok := cs.Call.(*CallExpr)
	if !ok {
		t.Fatalf("want *CallExpr, got %T", cs.Call)
	}
	bin, ok := call.Args[0].(*BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("precedence wrong, top-level op should be '+': %+v", call.Args[0])
	}
}

func TestParseConcatRightAssociative(t *testing.T) {
	b := mustParse(t, `local s = a .. b .. c`)
	ls := b.Stmts[0].(*LocalStmt)
	top := ls.Exprs[0].(*BinaryExpr)
	if top.Op != ".." {
		t.Fatalf("top op = %s, want ..", top.Op)
	}
	if _, ok := top.Right.(*BinaryExpr); !ok {
		t.Fatalf("concat should associate right: %+v", top)
	}
}

func TestParseMethodCall(t *testing.T) {
	b := mustParse(t, `obj:method(1, 2)`)
	cs := b.Stmts[0].(*CallStmt)
	if _, ok := cs.Call.(*MethodCallExpr); !ok {
		t.Fatalf("want *MethodCallExpr, got %T", cs.Call)
	}
}

func TestParseTableConstructor(t *testing.T) {
	b := mustParse(t, `local t = {1, 2, x = 3, [4+0] = "y"}`)
	ls := b.Stmts[0].(*LocalStmt)
	te := ls.Exprs[0].(*TableExpr)
	if len(te.Fields) != 4 {
		t.Fatalf("want 4 fields, got %d", len(te.Fields))
	}
}

func TestParseFunctionDeclMethod(t *testing.T) {
	b := mustParse(t, `function obj:greet() return self.name end`)
	fd := b.Stmts[0].(*FunctionDeclStmt)
	if !fd.IsMethod || len(fd.Fn.Params) != 1 || fd.Fn.Params[0] != "self" {
		t.Fatalf("method decl should inject implicit self: %+v", fd.Fn.Params)
	}
}
