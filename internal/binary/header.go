// Package binary reads and writes Lua 5.1's bytecode chunk format: the
// fixed header plus a recursively-serialized Proto tree.
package binary

// Header is the 12-byte preamble every .luac file starts with. Lua 5.1
// readers use it to reject chunks built for a different architecture or
// a different Lua version rather than guessing.
type Header struct {
	Signature    [4]byte
	Version      byte
	Format       byte
	Endianness   byte
	IntSize      byte
	SizeTSize    byte
	InstSize     byte
	NumberSize   byte
	NumberIsInt  byte
}

var signature = [4]byte{0x1b, 'L', 'u', 'a'}

// DefaultHeader is the header this implementation writes and the only
// one its reader accepts: little-endian, 4-byte int/size_t/instruction,
// 8-byte IEEE-754 double, not integer-typed numbers.
func DefaultHeader() Header {
	return Header{
		Signature:   signature,
		Version:     0x51,
		Format:      0,
		Endianness:  1,
		IntSize:     4,
		SizeTSize:   4,
		InstSize:    4,
		NumberSize:  8,
		NumberIsInt: 0,
	}
}

func (h Header) matchesSupported() bool {
	d := DefaultHeader()
	return h.Signature == d.Signature &&
		h.Version == d.Version &&
		h.Format == d.Format &&
		h.Endianness == d.Endianness &&
		h.IntSize == d.IntSize &&
		h.SizeTSize == d.SizeTSize &&
		h.InstSize == d.InstSize &&
		h.NumberSize == d.NumberSize &&
		h.NumberIsInt == d.NumberIsInt
}
