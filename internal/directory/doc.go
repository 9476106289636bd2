// Package directory implements the container's keyed index.
//
// Keys order by (name id, cycle, sub name). That order is part of the
// format's contract: every sub entry of one (name, cycle) generation forms a
// contiguous run that starts right after the generation's table entry
// (sub name ""), and all cycles of one name are adjacent and ascending.
//
// Names and class tags live in append-only tables addressed by id. Ids are
// never reused or removed, even when no entry refers to them any more,
// because renumbering would invalidate unrelated records.
package directory
