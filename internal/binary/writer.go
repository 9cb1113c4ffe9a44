package binary

import (
	"io"

	"lua51/internal/bytecode"
)

// Write encodes proto as a full bytecode chunk: the default header
// followed by the recursively-serialized Proto tree.
func Write(w io.Writer, proto *bytecode.Proto) error {
	wr := &writer{w: w}
	writeHeader(wr, DefaultHeader())
	writeProto(wr, proto)
	return wr.err
}

func writeHeader(wr *writer, h Header) {
	wr.write(h.Signature[:])
	wr.uint8(h.Version)
	wr.uint8(h.Format)
	wr.uint8(h.Endianness)
	wr.uint8(h.IntSize)
	wr.uint8(h.SizeTSize)
	wr.uint8(h.InstSize)
	wr.uint8(h.NumberSize)
	wr.uint8(h.NumberIsInt)
}

func writeProto(wr *writer, p *bytecode.Proto) {
	wr.string(p.Source)
	wr.uint32(uint32(p.LineDefined))
	wr.uint32(uint32(p.LastLine))
	wr.uint8(byte(len(p.Upvalues)))
	wr.uint8(byte(p.NumParams))
	if p.IsVararg {
		wr.uint8(1)
	} else {
		wr.uint8(0)
	}
	wr.uint8(byte(p.MaxStackSize))

	wr.uint32(uint32(len(p.Codes)))
	for _, ins := range p.Codes {
		wr.uint32(uint32(ins))
	}

	wr.uint32(uint32(len(p.Consts)))
	for _, k := range p.Consts {
		writeConst(wr, k)
	}

	wr.uint32(uint32(len(p.SubProtos)))
	for _, sub := range p.SubProtos {
		writeProto(wr, sub)
	}

	writeDebug(wr, p)
}

func writeConst(wr *writer, k bytecode.Const) {
	switch k.Kind {
	case bytecode.ConstNil:
		wr.uint8(tagNil)
	case bytecode.ConstBool:
		wr.uint8(tagBool)
		if k.Bool {
			wr.uint8(1)
		} else {
			wr.uint8(0)
		}
	case bytecode.ConstNumber:
		wr.uint8(tagNumber)
		wr.float64(k.Num)
	case bytecode.ConstString:
		wr.uint8(tagString)
		wr.string(k.Str)
	}
}

func writeDebug(wr *writer, p *bytecode.Proto) {
	wr.uint32(uint32(len(p.Debug.Lines)))
	for _, line := range p.Debug.Lines {
		wr.uint32(uint32(line))
	}

	wr.uint32(uint32(len(p.Debug.LocalVars)))
	for _, lv := range p.Debug.LocalVars {
		wr.string(lv.Name)
		wr.uint32(uint32(lv.StartPC))
		wr.uint32(uint32(lv.EndPC))
	}

	names := p.Debug.UpvalNames
	if len(names) != len(p.Upvalues) {
		names = make([]string, len(p.Upvalues))
		for i, u := range p.Upvalues {
			names[i] = u.Name
		}
	}
	wr.uint32(uint32(len(names)))
	for _, name := range names {
		wr.string(name)
	}
}
