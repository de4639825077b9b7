// Package surrealdb implements UserDataStore on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const userDataTable = "user_data"

// UserStore persists UserRecord documents in the user_data table.
type UserStore struct {
	db     *surrealdb.DB
	logger *common.Logger
	locks  common.KeyedMutex
	now    func() time.Time
}

// Connect dials SurrealDB, signs in, selects the namespace and ensures the table exists.
func Connect(ctx context.Context, cfg common.SurrealConfig) (*surrealdb.DB, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := DefineTables(ctx, db); err != nil {
		db.Close(ctx)
		return nil, err
	}
	return db, nil
}

// DefineTables creates the schemaless tables used by the store.
// Querying a table that was never defined is an error on SurrealDB v3.
func DefineTables(ctx context.Context, db *surrealdb.DB) error {
	sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", userDataTable)
	if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
		return fmt.Errorf("failed to define table %s: %w", userDataTable, err)
	}
	return nil
}

// NewUserStore wraps an open connection. Close releases the connection.
func NewUserStore(db *surrealdb.DB, logger *common.Logger) *UserStore {
	return &UserStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func recordID(userID, subject, key string) string {
	return userID + "_" + subject + "_" + key
}

func rid(userID, subject, key string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(userDataTable, recordID(userID, subject, key))
}

func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}

func (s *UserStore) Get(ctx context.Context, userID, subject, key string) (*models.UserRecord, error) {
	record, err := s.get(ctx, userID, subject, key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%s '%s' for user '%s': %w", subject, key, userID, common.ErrNotFound)
	}
	return record, nil
}

// get returns nil, nil for a missing record.
func (s *UserStore) get(ctx context.Context, userID, subject, key string) (*models.UserRecord, error) {
	record, err := surrealdb.Select[models.UserRecord](ctx, s.db, rid(userID, subject, key))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select user record: %w", err)
	}
	if record == nil || record.Key == "" {
		return nil, nil
	}
	return record, nil
}

func (s *UserStore) Put(ctx context.Context, record *models.UserRecord) error {
	unlock := s.locks.Lock(recordID(record.UserID, record.Subject, record.Key))
	defer unlock()

	existing, err := s.get(ctx, record.UserID, record.Subject, record.Key)
	if err != nil {
		return err
	}
	return s.upsert(ctx, record, existing)
}

func (s *UserStore) upsert(ctx context.Context, record, existing *models.UserRecord) error {
	if existing != nil {
		record.Version = existing.Version + 1
	} else {
		record.Version = 1
	}
	record.DateTime = s.now()

	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{"rid": rid(record.UserID, record.Subject, record.Key), "record": record}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to put user record after retries: %w", lastErr)
}

// Merge serialises read-modify-write per document within this process.
// A single instance owns a user's data, so no cross-process lock is taken.
func (s *UserStore) Merge(ctx context.Context, userID, subject, key string, fn interfaces.MergeFunc) (*models.UserRecord, error) {
	unlock := s.locks.Lock(recordID(userID, subject, key))
	defer unlock()

	current, err := s.get(ctx, userID, subject, key)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		if current != nil {
			if err := s.delete(ctx, userID, subject, key); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	next.UserID, next.Subject, next.Key = userID, subject, key
	if err := s.upsert(ctx, next, current); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *UserStore) Delete(ctx context.Context, userID, subject, key string) error {
	unlock := s.locks.Lock(recordID(userID, subject, key))
	defer unlock()
	return s.delete(ctx, userID, subject, key)
}

func (s *UserStore) delete(ctx context.Context, userID, subject, key string) error {
	_, err := surrealdb.Delete[models.UserRecord](ctx, s.db, rid(userID, subject, key))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete user record: %w", err)
	}
	return nil
}

func (s *UserStore) List(ctx context.Context, userID, subject string) ([]*models.UserRecord, error) {
	sql := "SELECT * FROM user_data WHERE user_id = $user_id AND subject = $subject ORDER BY key ASC"
	vars := map[string]any{
		"user_id": userID,
		"subject": subject,
	}

	results, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list user records: %w", err)
	}

	var mapped []*models.UserRecord
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
	}
	sort.Slice(mapped, func(i, j int) bool { return mapped[i].Key < mapped[j].Key })
	return mapped, nil
}

func (s *UserStore) Close() error {
	return s.db.Close(context.Background())
}

var _ interfaces.UserDataStore = (*UserStore)(nil)
