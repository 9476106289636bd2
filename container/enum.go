package container

import "iter"

// Len returns the number of directory entries.
func (f *File) Len() int { return f.dir.Len() }

// FreeCycle returns the lowest unused positive cycle of name, or 0 when
// the cycle space is exhausted.
func (f *File) FreeCycle(name string) int32 {
	id, ok := f.dir.LookupName(name)
	if !ok {
		return 1
	}
	return f.dir.FreeCycle(id)
}

// NextCycle returns the lowest cycle of name above cycle, or 0 if there is
// none.
func (f *File) NextCycle(name string, cycle int32) int32 {
	id, ok := f.dir.LookupName(name)
	if !ok {
		return 0
	}
	return f.dir.NextCycle(id, cycle)
}

// NumSubs returns the number of sub entries of (name, cycle).
func (f *File) NumSubs(name string, cycle int32) int {
	id, ok := f.dir.LookupName(name)
	if !ok {
		return 0
	}
	return f.dir.NumSubs(id, cycle)
}

// Subs iterates over the sub entries of (name, cycle) in sub name order.
func (f *File) Subs(name string, cycle int32) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		id, ok := f.dir.LookupName(name)
		if !ok {
			return
		}
		for e := range f.dir.Subs(id, cycle) {
			if !yield(f.entry(e)) {
				return
			}
		}
	}
}

// Entries iterates over all entries in directory order.
func (f *File) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for e := range f.dir.All() {
			if !yield(f.entry(e)) {
				return
			}
		}
	}
}

// Elements iterates over the first entry of every (name, cycle)
// generation in directory order.
func (f *File) Elements() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for e := range f.dir.Elements() {
			if !yield(f.entry(e)) {
				return
			}
		}
	}
}
