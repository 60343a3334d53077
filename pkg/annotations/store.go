// Package annotations holds highlights and bookmarks keyed by id and
// scoped to a chapter.
package annotations

import (
	"context"
	"errors"

	"github.com/rexliu/folio/pkg/wire"
)

// Kind separates the two annotation stores.
type Kind string

const (
	KindHighlight Kind = "highlight"
	KindBookmark  Kind = "bookmark"
)

// IDField is the record field carrying the host-assigned identifier.
const IDField = "uuid"

// ErrInvalidRecord indicates a record that cannot be stored.
var ErrInvalidRecord = errors.New("invalid annotation record")

// Entry is the authoritative copy of one annotation.
type Entry struct {
	ID      string      `json:"id"`
	Chapter string      `json:"chapter"`
	Record  wire.Object `json:"record"`
}

// Store is the keyed annotation table. Replace and Delete on an unknown id
// are no-ops, not errors.
type Store interface {
	// List returns the entries of chapter in unspecified order.
	List(ctx context.Context, chapter string) ([]Entry, error)
	// Get returns the entry for id.
	Get(ctx context.Context, id string) (Entry, bool, error)
	// Insert mints an id, stamps it into the record and stores the entry
	// under chapter.
	Insert(ctx context.Context, chapter string, record wire.Object) (Entry, error)
	// Replace swaps the record of an existing entry, keeping its chapter.
	// It reports whether an entry was found.
	Replace(ctx context.Context, id string, record wire.Object) (bool, error)
	// Delete removes id if present.
	Delete(ctx context.Context, id string) error
	// Len reports the number of stored entries.
	Len(ctx context.Context) (int, error)
}

// Stamp returns a copy of record carrying id in its uuid field.
func Stamp(record wire.Object, id string) wire.Object {
	stamped := record.Clone()
	stamped[IDField] = wire.String(id)
	return stamped
}

// ChapterField is the record field carrying the chapter an entry is
// stored under.
const ChapterField = "chapter"

// Records extracts the records of entries as a wire array, each stamped
// with the chapter it is stored under.
func Records(entries []Entry) wire.Array {
	arr := make(wire.Array, 0, len(entries))
	for _, e := range entries {
		rec := e.Record.Clone()
		rec[ChapterField] = wire.String(e.Chapter)
		arr = append(arr, wire.FromObject(rec))
	}
	return arr
}
