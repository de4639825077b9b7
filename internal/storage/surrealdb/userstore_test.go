package surrealdb

import (
	"context"
	"testing"

	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/bobmcallan/portfoliohub/internal/storage/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) interfaces.UserDataStore {
		store := NewUserStore(testDB(t), testLogger())
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestUserStoreRecordIDsDoNotCollideAcrossSubjects(t *testing.T) {
	store := NewUserStore(testDB(t), testLogger())
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &models.UserRecord{UserID: "u1", Subject: models.SubjectQuote, Key: "AAPL", Value: "quote"}))
	require.NoError(t, store.Put(ctx, &models.UserRecord{UserID: "u1", Subject: models.SubjectNews, Key: "AAPL", Value: "news"}))

	q, err := store.Get(ctx, "u1", models.SubjectQuote, "AAPL")
	require.NoError(t, err)
	n, err := store.Get(ctx, "u1", models.SubjectNews, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "quote", q.Value)
	assert.Equal(t, "news", n.Value)
}
