package binary_test

import (
	"bytes"
	"testing"

	"lua51/internal/binary"
	"lua51/internal/compiler"
	"lua51/internal/parser"
	"lua51/internal/vm"
)

func TestWriteReadRoundTripExecutes(t *testing.T) {
	blk, err := parser.Parse(`
local t = {1, 2, 3}
local sum = 0
for i, v in ipairs(t) do sum = sum + v end
return sum
`, "roundtrip")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "roundtrip")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, proto); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := binary.Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	s := vm.New()
	rets, err := s.Run(loaded, nil)
	if err != nil {
		t.Fatalf("run loaded chunk: %v", err)
	}
	if len(rets) != 1 || rets[0].AsNumber() != 6 {
		t.Fatalf("want [6], got %v", rets)
	}
}

func TestReadRejectsBadSignature(t *testing.T) {
	bad := bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x00, 0x51, 0, 1, 4, 4, 4, 8, 0})
	if _, err := binary.Read(bad); err == nil {
		t.Fatalf("expected error for bad signature")
	}
}

func TestStripRemovesDebugNames(t *testing.T) {
	blk, err := parser.Parse(`
local function f(x) return x + 1 end
return f(41)
`, "stripme")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.CompileChunk(blk, "stripme")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	binary.Strip(proto)

	var buf bytes.Buffer
	if err := binary.Write(&buf, proto); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := binary.Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(loaded.Debug.LocalVars) != 0 || len(loaded.SubProtos) != 1 ||
		len(loaded.SubProtos[0].Debug.LocalVars) != 0 {
		t.Fatalf("stripped chunk still carries local variable names")
	}

	s := vm.New()
	rets, err := s.Run(loaded, nil)
	if err != nil {
		t.Fatalf("run stripped chunk: %v", err)
	}
	if len(rets) != 1 || rets[0].AsNumber() != 42 {
		t.Fatalf("want [42], got %v", rets)
	}
}
