package directory

import (
	"iter"
	"math"

	"github.com/google/btree"
)

// btreeDegree is the fan-out of the in-memory index.
const btreeDegree = 16

// Key identifies one stored payload.
type Key struct {
	Name  uint32 // index into the name table
	Sub   string // sub name; "" denotes the element itself
	Cycle int32  // generation
}

// Less orders keys by (Name, Cycle, Sub).
func (k Key) Less(o Key) bool {
	if k.Name != o.Name {
		return k.Name < o.Name
	}
	if k.Cycle != o.Cycle {
		return k.Cycle < o.Cycle
	}
	return k.Sub < o.Sub
}

// Value locates a payload in the file.
type Value struct {
	Offset     uint32
	FileLength uint32 // bytes on disk
	DataLength uint32 // bytes after decompression
	Class      uint32 // index into the class table
}

// Compressed reports whether the payload is stored compressed.
func (v Value) Compressed() bool { return v.FileLength != v.DataLength }

// Entry is a key and its value.
type Entry struct {
	Key   Key
	Value Value
}

func entryLess(a, b Entry) bool { return a.Key.Less(b.Key) }

// Directory is the ordered index plus its name tables.
type Directory struct {
	entries *btree.BTreeG[Entry]
	names   []string
	classes []string
	nameIdx map[string]uint32
	clsIdx  map[string]uint32
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{
		entries: btree.NewG(btreeDegree, entryLess),
		nameIdx: make(map[string]uint32),
		clsIdx:  make(map[string]uint32),
	}
}

// Len returns the number of entries.
func (d *Directory) Len() int { return d.entries.Len() }

// Names returns the name table.
func (d *Directory) Names() []string { return d.names }

// Classes returns the class table.
func (d *Directory) Classes() []string { return d.classes }

// LookupName returns the id of name if it has been interned.
func (d *Directory) LookupName(name string) (uint32, bool) {
	id, ok := d.nameIdx[name]
	return id, ok
}

// InternName returns the id of name, appending it to the table if new.
func (d *Directory) InternName(name string) uint32 {
	if id, ok := d.nameIdx[name]; ok {
		return id
	}
	id := uint32(len(d.names))
	d.names = append(d.names, name)
	d.nameIdx[name] = id
	return id
}

// InternClass returns the id of class, appending it to the table if new.
func (d *Directory) InternClass(class string) uint32 {
	if id, ok := d.clsIdx[class]; ok {
		return id
	}
	id := uint32(len(d.classes))
	d.classes = append(d.classes, class)
	d.clsIdx[class] = id
	return id
}

// Name returns the name with the given id, or "" if out of range.
func (d *Directory) Name(id uint32) string {
	if int(id) >= len(d.names) {
		return ""
	}
	return d.names[id]
}

// ClassName returns the class tag with the given id, or "" if out of range.
func (d *Directory) ClassName(id uint32) string {
	if int(id) >= len(d.classes) {
		return ""
	}
	return d.classes[id]
}

// Get looks up a key.
func (d *Directory) Get(k Key) (Value, bool) {
	e, ok := d.entries.Get(Entry{Key: k})
	return e.Value, ok
}

// Put inserts or replaces an entry and returns the replaced value.
func (d *Directory) Put(k Key, v Value) (Value, bool) {
	old, ok := d.entries.ReplaceOrInsert(Entry{Key: k, Value: v})
	return old.Value, ok
}

// Delete removes a key and returns its value.
func (d *Directory) Delete(k Key) (Value, bool) {
	old, ok := d.entries.Delete(Entry{Key: k})
	return old.Value, ok
}

// generation returns the half-open key range of one (name, cycle).
func generation(name uint32, cycle int32) (Entry, Entry, bool) {
	lo := Entry{Key: Key{Name: name, Cycle: cycle}}
	if cycle == math.MaxInt32 {
		if name == math.MaxUint32 {
			return lo, Entry{}, false
		}
		return lo, Entry{Key: Key{Name: name + 1, Cycle: math.MinInt32}}, true
	}
	return lo, Entry{Key: Key{Name: name, Cycle: cycle + 1}}, true
}

func (d *Directory) ascendGeneration(name uint32, cycle int32, fn func(Entry) bool) {
	lo, hi, bounded := generation(name, cycle)
	if bounded {
		d.entries.AscendRange(lo, hi, fn)
		return
	}
	d.entries.AscendGreaterOrEqual(lo, fn)
}

// DeleteRange removes every sub entry (non-empty sub name) of one generation
// and returns the removed entries in key order.
func (d *Directory) DeleteRange(name uint32, cycle int32) []Entry {
	var doomed []Entry
	d.ascendGeneration(name, cycle, func(e Entry) bool {
		if e.Key.Sub != "" {
			doomed = append(doomed, e)
		}
		return true
	})
	for _, e := range doomed {
		d.entries.Delete(e)
	}
	return doomed
}

// Subs iterates over the sub entries of one generation in sub-name order.
func (d *Directory) Subs(name uint32, cycle int32) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		d.ascendGeneration(name, cycle, func(e Entry) bool {
			if e.Key.Sub == "" {
				return true
			}
			return yield(e)
		})
	}
}

// NumSubs counts the sub entries of one generation.
func (d *Directory) NumSubs(name uint32, cycle int32) int {
	n := 0
	for range d.Subs(name, cycle) {
		n++
	}
	return n
}

// FreeCycle returns the lowest positive cycle that name does not use yet:
// the first gap in its ascending cycles, or one past the highest. It
// returns 0 when the cycle space is exhausted.
func (d *Directory) FreeCycle(name uint32) int32 {
	prev := int64(0)
	free := int64(-1)
	d.entries.AscendGreaterOrEqual(Entry{Key: Key{Name: name, Cycle: 1}}, func(e Entry) bool {
		if e.Key.Name != name {
			return false
		}
		c := int64(e.Key.Cycle)
		if c-prev > 1 {
			free = prev + 1
			return false
		}
		prev = c
		return true
	})
	if free > 0 {
		return int32(free)
	}
	if prev >= math.MaxInt32 {
		return 0
	}
	return int32(prev + 1)
}

// NextCycle returns the lowest cycle of name greater than cycle, or 0.
func (d *Directory) NextCycle(name uint32, cycle int32) int32 {
	if cycle == math.MaxInt32 {
		return 0
	}
	next := int32(0)
	d.entries.AscendGreaterOrEqual(Entry{Key: Key{Name: name, Cycle: cycle + 1}}, func(e Entry) bool {
		if e.Key.Name == name {
			next = e.Key.Cycle
		}
		return false
	})
	return next
}

// All iterates over every entry in key order.
func (d *Directory) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		d.entries.Ascend(func(e Entry) bool { return yield(e) })
	}
}

// Elements iterates over the first entry of every (name, cycle)
// generation in key order.
func (d *Directory) Elements() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		first := true
		var last Key
		d.entries.Ascend(func(e Entry) bool {
			if !first && e.Key.Name == last.Name && e.Key.Cycle == last.Cycle {
				return true
			}
			first = false
			last = e.Key
			return yield(e)
		})
	}
}
