package vm

import (
	"github.com/pkg/errors"

	luaerr "lua51/internal/errors"
	"lua51/internal/value"
)

// PCall runs fn protected: on success it returns (true, results); on
// failure it unwinds back to this call depth and returns (false,
// []value.Value{errValue}) without propagating the panic further.
func (s *State) PCall(line int, fn value.Value, args []value.Value) (ok bool, rets []value.Value) {
	depth := len(s.frames)
	defer func() {
		if r := recover(); r != nil {
			for len(s.frames) > depth {
				s.frames = s.frames[:len(s.frames)-1]
			}
			ok = false
			rets = []value.Value{errorValueOf(r)}
		}
	}()
	rets = s.Call(line, fn, args, -1)
	return true, rets
}

// errorValueOf converts a recovered panic into the Lua value pcall
// should hand back: *errors.LuaError and *luaValueError carry their
// payload through unchanged; anything else (a bare Go panic escaping
// from a host function) is wrapped with errors.Wrap/Errorf so it picks
// up a stack trace before being flattened to a string.
func errorValueOf(r interface{}) value.Value {
	switch e := r.(type) {
	case *luaValueError:
		return e.Value
	case *luaerr.LuaError:
		return value.Str(e.Error())
	case error:
		return value.Str(errors.Wrap(e, "host function panic").Error())
	default:
		return value.Str(errors.Errorf("%v", r).Error())
	}
}
