// Package storetest holds the behaviour every UserDataStore backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

// Run exercises a store created fresh for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) interfaces.UserDataStore) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, newStore(t)) })
	t.Run("GetNotFound", func(t *testing.T) { testGetNotFound(t, newStore(t)) })
	t.Run("ListScopedByUserAndSubject", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("MergeCreatesAndUpdates", func(t *testing.T) { testMerge(t, newStore(t)) })
	t.Run("MergeErrorLeavesDocument", func(t *testing.T) { testMergeError(t, newStore(t)) })
	t.Run("MergeNilDeletes", func(t *testing.T) { testMergeDelete(t, newStore(t)) })
	t.Run("ConcurrentMerge", func(t *testing.T) { testConcurrentMerge(t, newStore(t)) })
}

func testCRUD(t *testing.T, store interfaces.UserDataStore) {
	ctx := context.Background()

	rec := &models.UserRecord{UserID: "alice", Subject: models.SubjectPosition, Key: "AAPL", Value: `{"symbol":"AAPL"}`}
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "alice", models.SubjectPosition, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, `{"symbol":"AAPL"}`, got.Value)
	assert.Equal(t, 1, got.Version)

	rec.Value = `{"symbol":"AAPL","quantity":"2"}`
	require.NoError(t, store.Put(ctx, rec))
	got, err = store.Get(ctx, "alice", models.SubjectPosition, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, `{"symbol":"AAPL","quantity":"2"}`, got.Value)

	require.NoError(t, store.Delete(ctx, "alice", models.SubjectPosition, "AAPL"))
	_, err = store.Get(ctx, "alice", models.SubjectPosition, "AAPL")
	assert.True(t, common.IsNotFound(err), "Get after delete should be not found, got %v", err)

	// Deleting a missing document is not an error
	assert.NoError(t, store.Delete(ctx, "alice", models.SubjectPosition, "AAPL"))
}

func testGetNotFound(t *testing.T, store interfaces.UserDataStore) {
	_, err := store.Get(context.Background(), "nobody", models.SubjectQuote, "MSFT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func testList(t *testing.T, store interfaces.UserDataStore) {
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &models.UserRecord{UserID: "alice", Subject: models.SubjectPosition, Key: "MSFT", Value: "1"}))
	require.NoError(t, store.Put(ctx, &models.UserRecord{UserID: "alice", Subject: models.SubjectPosition, Key: "AAPL", Value: "2"}))
	require.NoError(t, store.Put(ctx, &models.UserRecord{UserID: "alice", Subject: models.SubjectNews, Key: "AAPL", Value: "3"}))
	require.NoError(t, store.Put(ctx, &models.UserRecord{UserID: "bob", Subject: models.SubjectPosition, Key: "KO", Value: "4"}))

	records, err := store.List(ctx, "alice", models.SubjectPosition)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "AAPL", records[0].Key)
	assert.Equal(t, "MSFT", records[1].Key)

	records, err = store.List(ctx, "bob", models.SubjectPosition)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "KO", records[0].Key)

	records, err = store.List(ctx, "carol", models.SubjectPosition)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func testMerge(t *testing.T, store interfaces.UserDataStore) {
	ctx := context.Background()

	out, err := store.Merge(ctx, "alice", models.SubjectDividends, "MSFT", func(current *models.UserRecord) (*models.UserRecord, error) {
		assert.Nil(t, current)
		return &models.UserRecord{Value: "v1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v1", out.Value)
	assert.Equal(t, "MSFT", out.Key)

	out, err = store.Merge(ctx, "alice", models.SubjectDividends, "MSFT", func(current *models.UserRecord) (*models.UserRecord, error) {
		require.NotNil(t, current)
		assert.Equal(t, "v1", current.Value)
		next := *current
		next.Value = current.Value + "+v2"
		return &next, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v1+v2", out.Value)
	assert.Equal(t, 2, out.Version)

	got, err := store.Get(ctx, "alice", models.SubjectDividends, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "v1+v2", got.Value)
}

func testMergeError(t *testing.T, store interfaces.UserDataStore) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &models.UserRecord{UserID: "alice", Subject: models.SubjectNews, Key: "AAPL", Value: "keep"}))

	boom := errors.New("boom")
	_, err := store.Merge(ctx, "alice", models.SubjectNews, "AAPL", func(*models.UserRecord) (*models.UserRecord, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "alice", models.SubjectNews, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Value)
}

func testMergeDelete(t *testing.T, store interfaces.UserDataStore) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &models.UserRecord{UserID: "alice", Subject: models.SubjectQuote, Key: "KO", Value: "x"}))

	out, err := store.Merge(ctx, "alice", models.SubjectQuote, "KO", func(*models.UserRecord) (*models.UserRecord, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = store.Get(ctx, "alice", models.SubjectQuote, "KO")
	assert.True(t, common.IsNotFound(err))
}

func testConcurrentMerge(t *testing.T, store interfaces.UserDataStore) {
	ctx := context.Background()
	const writers = 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Merge(ctx, "alice", models.SubjectPosition, "COUNTER", func(current *models.UserRecord) (*models.UserRecord, error) {
				n := 0
				if current != nil {
					fmt.Sscanf(current.Value, "%d", &n)
				}
				return &models.UserRecord{Value: fmt.Sprintf("%d", n+1)}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "alice", models.SubjectPosition, "COUNTER")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d", writers), got.Value, "no merge may be lost")
}

// SeedPosition writes a minimal position document.
func SeedPosition(t *testing.T, store interfaces.UserDataStore, userID, symbol string) {
	t.Helper()
	rec := &models.UserRecord{
		UserID:  userID,
		Subject: models.SubjectPosition,
		Key:     symbol,
		Value:   fmt.Sprintf(`{"symbol":%q,"quantity":"1","average_cost":"1"}`, symbol),
	}
	require.NoError(t, store.Put(context.Background(), rec))
}
