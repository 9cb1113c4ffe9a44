package binary

import (
	"io"

	"lua51/internal/bytecode"
	luaerr "lua51/internal/errors"
)

// Read decodes a full bytecode chunk: the header, then the top-level
// Proto tree.
func Read(r io.Reader) (proto *bytecode.Proto, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if le, ok := rec.(*luaerr.LuaError); ok {
				err = le
				return
			}
			panic(rec)
		}
	}()
	rd := &reader{r: r}
	h := readHeader(rd)
	if !h.matchesSupported() {
		return nil, luaerr.NewRuntime("", 0, "unsupported or corrupt bytecode header")
	}
	return readProto(rd), nil
}

func readHeader(rd *reader) Header {
	var h Header
	sig := rd.bytes(4)
	copy(h.Signature[:], sig)
	h.Version = rd.uint8()
	h.Format = rd.uint8()
	h.Endianness = rd.uint8()
	h.IntSize = rd.uint8()
	h.SizeTSize = rd.uint8()
	h.InstSize = rd.uint8()
	h.NumberSize = rd.uint8()
	h.NumberIsInt = rd.uint8()
	return h
}

func readProto(rd *reader) *bytecode.Proto {
	p := &bytecode.Proto{}
	p.Source = rd.string()
	p.LineDefined = int(rd.uint32())
	p.LastLine = int(rd.uint32())
	numUpvalues := int(rd.uint8())
	p.NumParams = int(rd.uint8())
	p.IsVararg = rd.uint8() != 0
	p.MaxStackSize = int(rd.uint8())

	sizeCode := int(rd.uint32())
	p.Codes = make([]bytecode.Instruction, sizeCode)
	for i := range p.Codes {
		p.Codes[i] = bytecode.Instruction(rd.uint32())
	}

	sizeK := int(rd.uint32())
	p.Consts = make([]bytecode.Const, sizeK)
	for i := range p.Consts {
		p.Consts[i] = readConst(rd)
	}

	sizeP := int(rd.uint32())
	p.SubProtos = make([]*bytecode.Proto, sizeP)
	for i := range p.SubProtos {
		p.SubProtos[i] = readProto(rd)
	}

	p.Debug = readDebug(rd, numUpvalues)
	p.Upvalues = make([]bytecode.UpvalDesc, numUpvalues)
	for i, name := range p.Debug.UpvalNames {
		p.Upvalues[i].Name = name
	}

	resolveUpvalueCaptureModes(p)
	return p
}

// resolveUpvalueCaptureModes derives IsLocal/Index for every sub-proto's
// upvalues from the CLOSURE+MOVE/GETUPVAL pseudo-instruction sequence
// this proto's own code stream carries. The chunk format itself stores
// only upvalue names, the capture mode rides along in the
// bytecode exactly like real Lua 5.1's CLOSURE encoding.
func resolveUpvalueCaptureModes(p *bytecode.Proto) {
	for pc := 0; pc < len(p.Codes); pc++ {
		ins := p.Codes[pc]
		if ins.OpCode() != bytecode.CLOSURE {
			continue
		}
		bx := ins.Bx()
		if bx < 0 || bx >= len(p.SubProtos) {
			continue
		}
		child := p.SubProtos[bx]
		for i := range child.Upvalues {
			pc++
			if pc >= len(p.Codes) {
				break
			}
			pseudo := p.Codes[pc]
			child.Upvalues[i].IsLocal = pseudo.OpCode() == bytecode.MOVE
			child.Upvalues[i].Index = pseudo.B()
		}
	}
}

func readConst(rd *reader) bytecode.Const {
	tag := rd.uint8()
	switch tag {
	case tagNil:
		return bytecode.NilConst()
	case tagBool:
		return bytecode.BoolConst(rd.uint8() != 0)
	case tagNumber:
		return bytecode.NumberConst(rd.float64())
	case tagString:
		return bytecode.StringConst(rd.string())
	default:
		panic(luaerr.NewRuntime("", 0, "unknown constant tag %d", tag))
	}
}

func readDebug(rd *reader, numUpvalues int) bytecode.Debug {
	var d bytecode.Debug
	sizeLines := int(rd.uint32())
	d.Lines = make([]int, sizeLines)
	for i := range d.Lines {
		d.Lines[i] = int(rd.uint32())
	}

	sizeLocVars := int(rd.uint32())
	d.LocalVars = make([]bytecode.LocalVarInfo, sizeLocVars)
	for i := range d.LocalVars {
		d.LocalVars[i].Name = rd.string()
		d.LocalVars[i].StartPC = int(rd.uint32())
		d.LocalVars[i].EndPC = int(rd.uint32())
	}

	sizeUpvalNames := int(rd.uint32())
	d.UpvalNames = make([]string, sizeUpvalNames)
	for i := range d.UpvalNames {
		d.UpvalNames[i] = rd.string()
	}
	_ = numUpvalues
	return d
}
