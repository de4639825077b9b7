// Package interfaces defines service contracts for PortfolioHub
package interfaces

import (
	"context"

	"github.com/bobmcallan/portfoliohub/internal/models"
)

// MergeFunc computes the new state of a document from its current state.
// current is nil when the document does not exist. Returning a nil record
// deletes the document; returning an error aborts without writing.
// Backends with optimistic concurrency may call fn more than once.
type MergeFunc func(current *models.UserRecord) (*models.UserRecord, error)

// UserDataStore is the durable document store keyed by (userID, subject, key).
// Each document is updated atomically; there are no cross-document transactions.
type UserDataStore interface {
	// Get returns common.ErrNotFound (wrapped) when the document is missing.
	Get(ctx context.Context, userID, subject, key string) (*models.UserRecord, error)
	Put(ctx context.Context, record *models.UserRecord) error
	// Merge applies fn as a single read-modify-write on one document.
	Merge(ctx context.Context, userID, subject, key string, fn MergeFunc) (*models.UserRecord, error)
	Delete(ctx context.Context, userID, subject, key string) error
	List(ctx context.Context, userID, subject string) ([]*models.UserRecord, error)
	Close() error
}
