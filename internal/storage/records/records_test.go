package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/bobmcallan/portfoliohub/internal/storage/memory"
)

type doc struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestPutAndList(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, Put(ctx, store, "u", models.SubjectQuote, "B", doc{Name: "b", N: 2}))
	require.NoError(t, Put(ctx, store, "u", models.SubjectQuote, "A", doc{Name: "a", N: 1}))
	require.NoError(t, store.Put(ctx, &models.UserRecord{UserID: "u", Subject: models.SubjectQuote, Key: "BAD", Value: "{not json"}))

	values, skipped, err := List[doc](ctx, store, "u", models.SubjectQuote)
	require.NoError(t, err)
	assert.Equal(t, []doc{{Name: "a", N: 1}, {Name: "b", N: 2}}, values)
	assert.Equal(t, []string{"BAD"}, skipped)
}
