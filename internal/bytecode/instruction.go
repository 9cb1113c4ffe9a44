package bytecode

// Instruction is a 32-bit word in one of three formats:
//
//	iABC:  opcode(6) | A(8) | C(9) | B(9)
//	iABx:  opcode(6) | A(8) | Bx(18)
//	iAsBx: opcode(6) | A(8) | sBx(18, biased by MaxArgSBx)
//
// Bit layout, low to high: op occupies bits 0-5, A bits 6-13, then either
// (C bits 14-22, B bits 23-31) for iABC, or Bx/sBx bits 14-31 for iABx/iAsBx.
type Instruction uint32

const (
	posOp = 0
	posA  = 6
	posC  = 14
	posB  = 23
	posBx = 14

	sizeOp = 6
	sizeA  = 8
	sizeB  = 9
	sizeC  = 9
	sizeBx = 18

	MaxArgA  = 1<<sizeA - 1
	MaxArgB  = 1<<sizeB - 1
	MaxArgC  = 1<<sizeC - 1
	MaxArgBx = 1<<sizeBx - 1

	// MaxArgSBx is the bias applied to signed Bx fields.
	MaxArgSBx = MaxArgBx >> 1

	// RKConstBit marks an RK-encoded B/C operand as a constant-pool index
	// rather than a register.
	RKConstBit = 1 << 8 // registers are 0..255, constants start at 256
)

func maskOp() uint32 { return 1<<sizeOp - 1 }

func ABC(op OpCode, a, b, c int) Instruction {
	return Instruction(uint32(op)&maskOp()) |
		Instruction(uint32(a)&MaxArgA)<<posA |
		Instruction(uint32(b)&MaxArgB)<<posB |
		Instruction(uint32(c)&MaxArgC)<<posC
}

func ABx(op OpCode, a, bx int) Instruction {
	return Instruction(uint32(op)&maskOp()) |
		Instruction(uint32(a)&MaxArgA)<<posA |
		Instruction(uint32(bx)&MaxArgBx)<<posBx
}

// AsBx encodes op, a and a signed offset sbx, biasing it by MaxArgSBx.
func AsBx(op OpCode, a, sbx int) Instruction {
	return ABx(op, a, sbx+MaxArgSBx)
}

func (i Instruction) OpCode() OpCode { return OpCode(uint32(i) & maskOp()) }
func (i Instruction) A() int         { return int(uint32(i) >> posA & MaxArgA) }
func (i Instruction) B() int         { return int(uint32(i) >> posB & MaxArgB) }
func (i Instruction) C() int         { return int(uint32(i) >> posC & MaxArgC) }
func (i Instruction) Bx() int        { return int(uint32(i) >> posBx & MaxArgBx) }
func (i Instruction) SBx() int       { return i.Bx() - MaxArgSBx }

// SetSBx rewrites the sBx field in place, used by jump patching.
func (i *Instruction) SetSBx(sbx int) {
	op := i.OpCode()
	a := i.A()
	*i = AsBx(op, a, sbx)
}

// IsConst reports whether an RK-encoded operand refers to the constant
// pool (value >= 256) rather than a register.
func IsConst(rk int) bool { return rk&RKConstBit != 0 }

// ConstIndex extracts the constant-pool index from an RK-encoded operand
// for which IsConst is true.
func ConstIndex(rk int) int { return rk &^ RKConstBit }

// RKFromReg/RKFromConst build RK-encoded operands.
func RKFromReg(reg int) int    { return reg }
func RKFromConst(idx int) int  { return idx | RKConstBit }
