package binary

// Constant tags, matching real Lua's LUA_T* tag values used in the
// binary chunk format.
const (
	tagNil    = 0
	tagBool   = 1
	tagNumber = 3
	tagString = 4
)
