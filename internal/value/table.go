package value

import "slices"

// Table is Lua's single hybrid aggregate: a dense array part for
// contiguous positive-integer keys, and a hash part for everything else.
type Table struct {
	array []Value          // array[i] holds key i+1
	hash  map[Value]Value  // everything that doesn't fit the array part
	keys  []Value          // hash-part insertion order, for next()
	meta  *Table
}

func NewTable() *Table {
	return &Table{}
}

// NewTableSize preallocates array/hash capacity the way NEWTABLE's size
// hints do.
func NewTableSize(narr, nhash int) *Table {
	t := &Table{}
	if narr > 0 {
		t.array = make([]Value, 0, narr)
	}
	if nhash > 0 {
		t.hash = make(map[Value]Value, nhash)
	}
	return t
}

func (t *Table) Metatable() *Table     { return t.meta }
func (t *Table) SetMetatable(m *Table) { t.meta = m }

// arrayIndex returns the 0-based array slot for key, and whether key is
// a positive-integer value at all.
func arrayIndex(key Value) (int, bool) {
	if key.kind != KindNumber {
		return 0, false
	}
	n := key.num
	i := int64(n)
	if float64(i) != n || i < 1 {
		return 0, false
	}
	return int(i - 1), true
}

// Get performs a raw (metatable-free) lookup. A positive-integer key
// past the end of the array part still has to fall through to the hash
// part: Set absorbs contiguous keys eagerly but a sparse integer key
// (e.g. t[5] on a 2-element array) is stored in the hash until absorbed.
func (t *Table) Get(key Value) Value {
	if idx, ok := arrayIndex(key); ok && idx < len(t.array) {
		return t.array[idx]
	}
	if t.hash == nil {
		return Nil
	}
	if v, ok := t.hash[key]; ok {
		return v
	}
	return Nil
}

// Set performs a raw assignment, implementing the array-absorption and
// demotion-to-hash invariants a hybrid table needs:
//
//   - assigning to array-length+1 with a non-nil value grows the array
//     part and absorbs any now-contiguous hash entries that follow it;
//   - assigning nil within the array part demotes every live entry
//     after it into the hash part and truncates the array there, so the
//     array part never holds a hole;
//   - assigning nil past the end of the array part and present in the
//     hash part deletes the hash entry.
func (t *Table) Set(key Value, val Value) {
	if idx, ok := arrayIndex(key); ok {
		switch {
		case idx < len(t.array):
			if !val.IsNil() {
				t.array[idx] = val
				return
			}
			for i := idx + 1; i < len(t.array); i++ {
				if !t.array[i].IsNil() {
					t.setHash(Number(float64(i+1)), t.array[i])
				}
			}
			t.array = t.array[:idx]
			return
		case idx == len(t.array):
			if val.IsNil() {
				return
			}
			t.array = append(t.array, val)
			t.absorbFromHash()
			return
		}
	}
	if val.IsNil() {
		t.deleteHash(key)
		return
	}
	t.setHash(key, val)
}

// setHash records key/val in the hash part, tracking insertion order in
// t.keys the first time key is seen.
func (t *Table) setHash(key, val Value) {
	if t.hash == nil {
		t.hash = make(map[Value]Value)
	}
	if _, exists := t.hash[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.hash[key] = val
}

// absorbFromHash pulls any hash entries keyed array-length+1,
// array-length+2, ... into the array part, matching real Lua tables'
// tendency to keep an append-only sequence entirely in the array part
// even if it was built via out-of-order assignment.
func (t *Table) absorbFromHash() {
	if t.hash == nil {
		return
	}
	for {
		nextKey := Number(float64(len(t.array) + 1))
		v, ok := t.hash[nextKey]
		if !ok {
			return
		}
		t.array = append(t.array, v)
		t.deleteHash(nextKey)
	}
}

func (t *Table) deleteHash(key Value) {
	if t.hash == nil {
		return
	}
	if _, ok := t.hash[key]; !ok {
		return
	}
	delete(t.hash, key)
	for i, k := range t.keys {
		if RawEqual(k, key) {
			t.keys = slices.Delete(t.keys, i, i+1)
			break
		}
	}
}

// Len implements the '#' operator over the array part only.
func (t *Table) Len() int { return len(t.array) }

// Next implements stateless iteration for next()/pairs(): the array
// part in ascending order, then the hash part in insertion order.
func (t *Table) Next(key Value) (Value, Value, bool) {
	if key.IsNil() {
		if len(t.array) > 0 {
			return Number(1), t.array[0], true
		}
		return t.firstHash()
	}
	if idx, ok := arrayIndex(key); ok && idx < len(t.array) {
		if idx+1 < len(t.array) {
			return Number(float64(idx + 2)), t.array[idx+1], true
		}
		return t.firstHash()
	}
	for i, k := range t.keys {
		if RawEqual(k, key) {
			if i+1 < len(t.keys) {
				nk := t.keys[i+1]
				return nk, t.hash[nk], true
			}
			return Nil, Nil, true
		}
	}
	return Nil, Nil, false
}

func (t *Table) firstHash() (Value, Value, bool) {
	if len(t.keys) == 0 {
		return Nil, Nil, true
	}
	k := t.keys[0]
	return k, t.hash[k], true
}
