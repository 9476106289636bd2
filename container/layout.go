package container

import (
	"cmp"
	"fmt"
	"slices"
)

// SpanKind classifies a byte span of the file.
type SpanKind int

const (
	SpanHeader SpanKind = iota
	SpanMetadata
	SpanPayload
	SpanFree
	// SpanPending is payload space replaced or deleted in the open
	// transaction; it becomes free at commit.
	SpanPending
)

func (k SpanKind) String() string {
	switch k {
	case SpanHeader:
		return "header"
	case SpanMetadata:
		return "metadata"
	case SpanPayload:
		return "payload"
	case SpanFree:
		return "free"
	case SpanPending:
		return "pending"
	default:
		return fmt.Sprintf("SpanKind(%d)", int(k))
	}
}

// Span is one contiguous use of the address space.
type Span struct {
	Kind   SpanKind
	Offset uint64
	Length uint64
	Entry  *Entry // set for payload spans
}

// End returns the first offset past the span.
func (s Span) End() uint64 { return s.Offset + s.Length }

// ProblemKind classifies a layout inconsistency.
type ProblemKind int

const (
	// Lost bytes are neither used nor free.
	Lost ProblemKind = iota
	// DoublyUsed bytes are claimed by more than one span.
	DoublyUsed
)

func (k ProblemKind) String() string {
	if k == Lost {
		return "lost"
	}
	return "doubly used"
}

// Problem is a span of the address space with inconsistent accounting.
type Problem struct {
	Kind   ProblemKind
	Offset uint64
	Length uint64
}

// Layout is the complete accounting of a file's address space.
type Layout struct {
	Spans []Span // sorted by offset
	Size  uint64 // logical size of the address space
}

// Map returns the layout of the file: header, metadata region, payloads,
// pending and free ranges.
func (f *File) Map() (Layout, error) {
	if f.closed {
		return Layout{}, f.opErr(OpRead, nil, ErrClosed)
	}
	spans := []Span{{Kind: SpanHeader, Offset: 0, Length: HeaderSize}}
	if f.regionLive {
		spans = append(spans, Span{Kind: SpanMetadata, Offset: uint64(f.region.Offset), Length: uint64(f.region.Length)})
	}
	for e := range f.Entries() {
		if e.FileLength == 0 {
			continue
		}
		spans = append(spans, Span{Kind: SpanPayload, Offset: uint64(e.Offset), Length: uint64(e.FileLength), Entry: &e})
	}
	for _, r := range f.pending {
		spans = append(spans, Span{Kind: SpanPending, Offset: uint64(r.Offset), Length: uint64(r.Length)})
	}
	for _, r := range f.free.Ranges() {
		spans = append(spans, Span{Kind: SpanFree, Offset: uint64(r.Offset), Length: uint64(r.Length)})
	}
	slices.SortStableFunc(spans, func(a, b Span) int { return cmp.Compare(a.Offset, b.Offset) })
	return Layout{Spans: spans, Size: MaxSize}, nil
}

// Problems reports bytes that are lost or doubly used.
func (l Layout) Problems() []Problem {
	var out []Problem
	cursor := uint64(0)
	for _, s := range l.Spans {
		switch {
		case s.Offset > cursor:
			out = append(out, Problem{Kind: Lost, Offset: cursor, Length: s.Offset - cursor})
		case s.Offset < cursor:
			out = append(out, Problem{Kind: DoublyUsed, Offset: s.Offset, Length: min(cursor, s.End()) - s.Offset})
		}
		cursor = max(cursor, s.End())
	}
	if cursor < l.Size {
		out = append(out, Problem{Kind: Lost, Offset: cursor, Length: l.Size - cursor})
	}
	return out
}

// Check returns an error wrapping ErrCorrupt if the layout has problems.
func (l Layout) Check() error {
	problems := l.Problems()
	if len(problems) == 0 {
		return nil
	}
	var lost, double uint64
	for _, p := range problems {
		if p.Kind == Lost {
			lost += p.Length
		} else {
			double += p.Length
		}
	}
	return fmt.Errorf("%w: %d bytes lost, %d bytes doubly used", ErrCorrupt, lost, double)
}
