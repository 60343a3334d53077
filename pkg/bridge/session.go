package bridge

import (
	"context"
	"fmt"

	"github.com/rexliu/folio/pkg/annotations"
	"github.com/rexliu/folio/pkg/wire"
)

type storePicker func(b *Bridge) annotations.Store

func highlightStore(b *Bridge) annotations.Store { return b.highlights }
func bookmarkStore(b *Bridge) annotations.Store  { return b.bookmarks }

// request delivers the records of chapter to callback. An empty chapter
// still gets an empty array.
func (b *Bridge) request(ctx context.Context, store annotations.Store, chapter, callback string) error {
	if !ValidCallbackName(callback) {
		return fmt.Errorf("%w: %q", ErrInvalidCallback, callback)
	}
	entries, err := store.List(ctx, chapter)
	if err != nil {
		return fmt.Errorf("list %s: %w", chapter, err)
	}
	return b.invoker.Callback(ctx, callback, annotations.Records(entries))
}

// add stores record under chapter with a fresh id and delivers the id to
// callback.
func (b *Bridge) add(ctx context.Context, store annotations.Store, chapter string, record wire.Object, callback string) error {
	if !ValidCallbackName(callback) {
		return fmt.Errorf("%w: %q", ErrInvalidCallback, callback)
	}
	entry, err := store.Insert(ctx, chapter, record)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return b.invoker.Callback(ctx, callback, entry.ID)
}

// update replaces the record named by its uuid field. Unknown ids are
// ignored.
func (b *Bridge) update(ctx context.Context, store annotations.Store, record wire.Object) error {
	id, err := record.GetString(annotations.IDField)
	if err != nil {
		return err
	}
	found, err := store.Replace(ctx, id, record)
	if err != nil {
		return fmt.Errorf("replace %s: %w", id, err)
	}
	if !found {
		b.logger.Debug("bridge: update of unknown annotation", "uuid", id)
	}
	return nil
}

func (b *Bridge) remove(ctx context.Context, store annotations.Store, id string) error {
	if err := store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (b *Bridge) lookupHighlight(ctx context.Context, id string) (*annotations.Entry, error) {
	entry, ok, err := b.highlights.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &entry, nil
}
