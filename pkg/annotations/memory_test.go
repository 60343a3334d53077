package annotations_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexliu/folio/pkg/annotations"
	"github.com/rexliu/folio/pkg/annotations/annotationstest"
	"github.com/rexliu/folio/pkg/wire"
)

func TestMemoryStoreContract(t *testing.T) {
	annotationstest.RunStoreContract(t, func(t *testing.T) annotations.Store {
		return annotations.NewMemoryStore()
	})
}

func TestMemoryStoreConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	store := annotations.NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := store.Insert(ctx, "ch", wire.Object{})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 400, n)
}

func TestRecords(t *testing.T) {
	entries := []annotations.Entry{
		{ID: "a", Chapter: "c", Record: wire.Object{"uuid": wire.String("a"), "chapter": wire.String("stale")}},
	}
	arr := annotations.Records(entries)
	require.Len(t, arr, 1)
	obj, ok := arr[0].AsObject()
	require.True(t, ok)
	id, _ := obj.OptString("uuid")
	assert.Equal(t, "a", id)
	chapter, _ := obj.OptString("chapter")
	assert.Equal(t, "c", chapter)
	stored, _ := entries[0].Record.OptString("chapter")
	assert.Equal(t, "stale", stored, "stored record is not modified")
	assert.Empty(t, annotations.Records(nil))
}
