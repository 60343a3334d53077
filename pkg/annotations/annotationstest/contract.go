// Package annotationstest checks implementations of annotations.Store
// against the shared contract.
package annotationstest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexliu/folio/pkg/annotations"
	"github.com/rexliu/folio/pkg/wire"
)

// RunStoreContract runs the contract against fresh stores from newStore.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) annotations.Store) {
	ctx := context.Background()

	t.Run("insert stamps id and keeps chapter", func(t *testing.T) {
		store := newStore(t)
		record := wire.Object{"note": wire.String("x"), "chapter": wire.String("elsewhere")}
		entry, err := store.Insert(ctx, "ch1", record)
		require.NoError(t, err)

		_, err = uuid.Parse(entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "ch1", entry.Chapter)
		id, err := entry.Record.GetString(annotations.IDField)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, id)
		_, stamped := record[annotations.IDField]
		assert.False(t, stamped, "caller's record is not mutated")

		listed, err := store.List(ctx, "ch1")
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, entry.ID, listed[0].ID)
		note, _ := listed[0].Record.OptString("note")
		assert.Equal(t, "x", note)

		other, err := store.List(ctx, "elsewhere")
		require.NoError(t, err)
		assert.Empty(t, other, "chapter comes from insert, not the payload")
	})

	t.Run("ids are unique", func(t *testing.T) {
		store := newStore(t)
		seen := make(map[string]struct{})
		for i := 0; i < 25; i++ {
			entry, err := store.Insert(ctx, "ch", wire.Object{})
			require.NoError(t, err)
			_, dup := seen[entry.ID]
			require.False(t, dup)
			seen[entry.ID] = struct{}{}
		}
		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 25, n)
	})

	t.Run("list filters by chapter", func(t *testing.T) {
		store := newStore(t)
		for _, ch := range []string{"a", "b", "a", "c"} {
			_, err := store.Insert(ctx, ch, wire.Object{"ch": wire.String(ch)})
			require.NoError(t, err)
		}
		listed, err := store.List(ctx, "a")
		require.NoError(t, err)
		assert.Len(t, listed, 2)
		empty, err := store.List(ctx, "zzz")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("replace keeps chapter", func(t *testing.T) {
		store := newStore(t)
		entry, err := store.Insert(ctx, "ch1", wire.Object{"color": wire.String("red")})
		require.NoError(t, err)

		updated := wire.Object{
			annotations.IDField: wire.String(entry.ID),
			"color":             wire.String("blue"),
			"chapter":           wire.String("ch9"),
		}
		found, err := store.Replace(ctx, entry.ID, updated)
		require.NoError(t, err)
		assert.True(t, found)

		got, ok, err := store.Get(ctx, entry.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "ch1", got.Chapter)
		color, _ := got.Record.OptString("color")
		assert.Equal(t, "blue", color)
	})

	t.Run("replace unknown is a no-op", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "ch1", wire.Object{})
		require.NoError(t, err)
		found, err := store.Replace(ctx, "never-issued", wire.Object{"x": wire.Int(1)})
		require.NoError(t, err)
		assert.False(t, found)
		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, ok, err := store.Get(ctx, "never-issued")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete twice", func(t *testing.T) {
		store := newStore(t)
		entry, err := store.Insert(ctx, "ch1", wire.Object{})
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, entry.ID))
		require.NoError(t, store.Delete(ctx, entry.ID))
		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
