// Package bytecode defines the 38-opcode instruction set and the
// immutable function prototype (Proto) produced by the compiler and
// consumed by the VM.
package bytecode

// OpCode is one of the 38 documented opcodes, in exact Lua 5.1 order and
// semantics.
type OpCode uint8

const (
	MOVE     OpCode = iota // A B     R(A) = R(B)
	LOADK                  // A Bx    R(A) = K(Bx)
	LOADBOOL               // A B C   R(A) = (bool)B; if C then pc++
	LOADNIL                // A B     R(A)..R(B) = nil
	GETUPVAL               // A B     R(A) = Upval[B]
	GETGLOBAL              // A Bx    R(A) = Globals[K(Bx)]
	GETTABLE               // A B C   R(A) = R(B)[RK(C)]
	SETGLOBAL              // A Bx    Globals[K(Bx)] = R(A)
	SETUPVAL               // A B     Upval[B] = R(A)
	SETTABLE               // A B C   R(A)[RK(B)] = RK(C)
	NEWTABLE               // A B C   R(A) = {} (size hints B,C)
	SELF                   // A B C   R(A+1) = R(B); R(A) = R(B)[RK(C)]
	ADD                    // A B C   R(A) = RK(B) + RK(C)
	SUB                    // A B C   R(A) = RK(B) - RK(C)
	MUL                    // A B C   R(A) = RK(B) * RK(C)
	DIV                    // A B C   R(A) = RK(B) / RK(C)
	MOD                    // A B C   R(A) = RK(B) % RK(C)
	POW                    // A B C   R(A) = RK(B) ^ RK(C)
	UNM                    // A B     R(A) = -R(B)
	NOT                    // A B     R(A) = not R(B)
	LEN                    // A B     R(A) = #R(B)
	CONCAT                 // A B C   R(A) = R(B) .. ... .. R(C)
	JMP                    // sBx     pc += sBx
	EQ                     // A B C   if (RK(B)==RK(C)) != A then pc++
	LT                     // A B C   if (RK(B)<RK(C)) != A then pc++
	LE                     // A B C   if (RK(B)<=RK(C)) != A then pc++
	TEST                   // A C     if bool(R(A)) != C then pc++
	TESTSET                // A B C   if bool(R(B))==C then R(A)=R(B) else pc++
	CALL                   // A B C   R(A)..R(A+C-2) = R(A)(R(A+1)..R(A+B-1))
	TAILCALL               // A B C   return R(A)(R(A+1)..R(A+B-1))
	RETURN                 // A B     return R(A)..R(A+B-2)
	FORLOOP                // A sBx   R(A)+=R(A+2); loop if still in range
	FORPREP                // A sBx   R(A)-=R(A+2); pc+=sBx
	TFORLOOP               // A C     call R(A)(R(A+1),R(A+2)); adjust control
	SETLIST                // A B C   R(A)[(C-1)*50+i] = R(A+i), i=1..B
	CLOSE                  // A       close upvalues >= R(A)
	CLOSURE                // A Bx    R(A) = closure(sub_protos[Bx])
	VARARG                 // A B     R(A)..R(A+B-2) = varargs
	NumOpCodes
)

var opNames = [NumOpCodes]string{
	MOVE: "MOVE", LOADK: "LOADK", LOADBOOL: "LOADBOOL", LOADNIL: "LOADNIL",
	GETUPVAL: "GETUPVAL", GETGLOBAL: "GETGLOBAL", GETTABLE: "GETTABLE",
	SETGLOBAL: "SETGLOBAL", SETUPVAL: "SETUPVAL", SETTABLE: "SETTABLE",
	NEWTABLE: "NEWTABLE", SELF: "SELF", ADD: "ADD", SUB: "SUB", MUL: "MUL",
	DIV: "DIV", MOD: "MOD", POW: "POW", UNM: "UNM", NOT: "NOT", LEN: "LEN",
	CONCAT: "CONCAT", JMP: "JMP", EQ: "EQ", LT: "LT", LE: "LE", TEST: "TEST",
	TESTSET: "TESTSET", CALL: "CALL", TAILCALL: "TAILCALL", RETURN: "RETURN",
	FORLOOP: "FORLOOP", FORPREP: "FORPREP", TFORLOOP: "TFORLOOP",
	SETLIST: "SETLIST", CLOSE: "CLOSE", CLOSURE: "CLOSURE", VARARG: "VARARG",
}

func (op OpCode) String() string {
	if op < NumOpCodes {
		return opNames[op]
	}
	return "UNKNOWN"
}

// Format is the instruction encoding an opcode uses.
type Format uint8

const (
	FormatABC Format = iota
	FormatABx
	FormatAsBx
)

// ArgMode describes how the B/C argument of an iABC instruction is used:
// as a plain register index, an RK-encoded register-or-constant, or not
// used at all.
type ArgMode uint8

const (
	ArgUnused ArgMode = iota
	ArgUsed
	ArgReg
	ArgRK
)

// OpInfo is the per-opcode metadata: format, whether the opcode writes
// A, the B/C argument modes, and whether it is a "test" opcode whose
// successor must be a JMP.
type OpInfo struct {
	Format  Format
	SetsA   bool
	ModeB   ArgMode
	ModeC   ArgMode
	IsTest  bool
}

var opInfo = [NumOpCodes]OpInfo{
	MOVE:     {FormatABC, true, ArgReg, ArgUnused, false},
	LOADK:    {FormatABx, true, ArgUnused, ArgUnused, false},
	LOADBOOL: {FormatABC, true, ArgUsed, ArgUsed, false},
	LOADNIL:  {FormatABC, true, ArgUsed, ArgUnused, false},
	GETUPVAL: {FormatABC, true, ArgUsed, ArgUnused, false},
	GETGLOBAL: {FormatABx, true, ArgUnused, ArgUnused, false},
	GETTABLE: {FormatABC, true, ArgReg, ArgRK, false},
	SETGLOBAL: {FormatABx, false, ArgUnused, ArgUnused, false},
	SETUPVAL: {FormatABC, false, ArgUsed, ArgUnused, false},
	SETTABLE: {FormatABC, false, ArgRK, ArgRK, false},
	NEWTABLE: {FormatABC, true, ArgUsed, ArgUsed, false},
	SELF:     {FormatABC, true, ArgReg, ArgRK, false},
	ADD:      {FormatABC, true, ArgRK, ArgRK, false},
	SUB:      {FormatABC, true, ArgRK, ArgRK, false},
	MUL:      {FormatABC, true, ArgRK, ArgRK, false},
	DIV:      {FormatABC, true, ArgRK, ArgRK, false},
	MOD:      {FormatABC, true, ArgRK, ArgRK, false},
	POW:      {FormatABC, true, ArgRK, ArgRK, false},
	UNM:      {FormatABC, true, ArgReg, ArgUnused, false},
	NOT:      {FormatABC, true, ArgReg, ArgUnused, false},
	LEN:      {FormatABC, true, ArgReg, ArgUnused, false},
	CONCAT:   {FormatABC, true, ArgReg, ArgReg, false},
	JMP:      {FormatAsBx, false, ArgUnused, ArgUnused, false},
	EQ:       {FormatABC, false, ArgRK, ArgRK, true},
	LT:       {FormatABC, false, ArgRK, ArgRK, true},
	LE:       {FormatABC, false, ArgRK, ArgRK, true},
	TEST:     {FormatABC, false, ArgUnused, ArgUsed, true},
	TESTSET:  {FormatABC, true, ArgReg, ArgUsed, true},
	CALL:     {FormatABC, true, ArgUsed, ArgUsed, false},
	TAILCALL: {FormatABC, true, ArgUsed, ArgUsed, false},
	RETURN:   {FormatABC, false, ArgUsed, ArgUnused, false},
	FORLOOP:  {FormatAsBx, true, ArgUnused, ArgUnused, false},
	FORPREP:  {FormatAsBx, true, ArgUnused, ArgUnused, false},
	TFORLOOP: {FormatABC, false, ArgUnused, ArgUsed, false},
	SETLIST:  {FormatABC, false, ArgUsed, ArgUsed, false},
	CLOSE:    {FormatABC, false, ArgUnused, ArgUnused, false},
	CLOSURE:  {FormatABx, true, ArgUnused, ArgUnused, false},
	VARARG:   {FormatABC, true, ArgUsed, ArgUnused, false},
}

// Info returns the mode metadata for op.
func (op OpCode) Info() OpInfo {
	if op < NumOpCodes {
		return opInfo[op]
	}
	return OpInfo{}
}
