package binary

import "lua51/internal/bytecode"

// Strip removes debug information from p and its sub-protos in place:
// local variable names/ranges and upvalue names are dropped, and line
// numbers are zeroed rather than removed (the VM still indexes Lines by
// pc, so the slice must keep its length even once debug info is gone).
// This is luac -s.
func Strip(p *bytecode.Proto) {
	for i := range p.Debug.Lines {
		p.Debug.Lines[i] = 0
	}
	p.Debug.LocalVars = nil
	p.Debug.UpvalNames = nil
	for i := range p.Upvalues {
		p.Upvalues[i].Name = ""
	}
	for _, sub := range p.SubProtos {
		Strip(sub)
	}
}
