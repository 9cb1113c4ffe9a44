package binary

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	luaerr "lua51/internal/errors"
)

// reader wraps an io.Reader with the primitive decodes the chunk format
// needs, panicking a *errors.LuaError on short reads so readProto's
// recursive descent doesn't need error plumbing at every call site. The
// underlying io error is wrapped with errors.Wrap before it's embedded in
// the panic, so a failure deep in a nested Proto still carries a stack
// trace back to the read that triggered it.
type reader struct {
	r io.Reader
}

func (rd *reader) bytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		wrapped := errors.Wrap(err, "truncated bytecode file")
		panic(luaerr.NewRuntime("", 0, "%s", wrapped.Error()).WithCause(wrapped))
	}
	return buf
}

func (rd *reader) uint8() byte    { return rd.bytes(1)[0] }
func (rd *reader) uint32() uint32 { return binary.LittleEndian.Uint32(rd.bytes(4)) }
func (rd *reader) uint64() uint64 { return binary.LittleEndian.Uint64(rd.bytes(8)) }
func (rd *reader) float64() float64 {
	return math.Float64frombits(rd.uint64())
}

// string reads a length-prefixed string: an 8-byte length (including the
// trailing NUL), the bytes, and the NUL; length 0 means "" with no body.
func (rd *reader) string() string {
	n := rd.uint64()
	if n == 0 {
		return ""
	}
	buf := rd.bytes(int(n) - 1)
	rd.bytes(1) // trailing NUL
	return string(buf)
}

type writer struct {
	w   io.Writer
	err error
}

func (wr *writer) write(p []byte) {
	if wr.err != nil {
		return
	}
	_, wr.err = wr.w.Write(p)
}

func (wr *writer) uint8(v byte)    { wr.write([]byte{v}) }
func (wr *writer) uint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	wr.write(buf[:])
}
func (wr *writer) uint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	wr.write(buf[:])
}
func (wr *writer) float64(v float64) { wr.uint64(math.Float64bits(v)) }

func (wr *writer) string(s string) {
	if s == "" {
		wr.uint64(0)
		return
	}
	wr.uint64(uint64(len(s) + 1))
	wr.write([]byte(s))
	wr.write([]byte{0})
}
