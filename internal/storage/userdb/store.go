// Package userdb implements UserDataStore using BadgerHold.
// It stores all user domain data as generic UserRecord entries.
package userdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// Store implements interfaces.UserDataStore using BadgerHold.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
	// mu serialises read-modify-write cycles; the embedded database is owned by this process.
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a new UserDataStore backed by BadgerHold.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create userdb path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open userdb at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("UserDB opened")
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// keySep is the composite key separator. Using a null byte prevents collisions
// when userID, subject, or key contain ":" characters.
const keySep = "\x00"

// compositeKey builds the storage key: user_id + \x00 + subject + \x00 + key
func compositeKey(userID, subject, key string) string {
	return userID + keySep + subject + keySep + key
}

func (s *Store) Get(_ context.Context, userID, subject, key string) (*models.UserRecord, error) {
	return s.get(compositeKey(userID, subject, key), subject, key, userID)
}

func (s *Store) get(ck, subject, key, userID string) (*models.UserRecord, error) {
	var rec models.UserRecord
	if err := s.db.Get(ck, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%s '%s' for user '%s': %w", subject, key, userID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s '%s': %w", subject, key, err)
	}
	return &rec, nil
}

func (s *Store) Put(_ context.Context, record *models.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(record)
}

func (s *Store) putLocked(record *models.UserRecord) error {
	ck := compositeKey(record.UserID, record.Subject, record.Key)

	// Read existing to increment version
	var existing models.UserRecord
	if err := s.db.Get(ck, &existing); err == nil {
		record.Version = existing.Version + 1
	} else {
		record.Version = 1
	}
	record.DateTime = s.now()

	if err := s.db.Upsert(ck, record); err != nil {
		return fmt.Errorf("failed to put %s '%s': %w", record.Subject, record.Key, err)
	}
	return nil
}

func (s *Store) Merge(_ context.Context, userID, subject, key string, fn interfaces.MergeFunc) (*models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := compositeKey(userID, subject, key)
	current, err := s.get(ck, subject, key, userID)
	if err != nil && !common.IsNotFound(err) {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		if err := s.db.Delete(ck, models.UserRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("failed to delete %s '%s': %w", subject, key, err)
		}
		return nil, nil
	}
	next.UserID, next.Subject, next.Key = userID, subject, key
	if err := s.putLocked(next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) Delete(_ context.Context, userID, subject, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := compositeKey(userID, subject, key)
	if err := s.db.Delete(ck, models.UserRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete %s '%s': %w", subject, key, err)
	}
	return nil
}

func (s *Store) List(_ context.Context, userID, subject string) ([]*models.UserRecord, error) {
	var found []models.UserRecord
	query := badgerhold.Where("UserID").Eq(userID).And("Subject").Eq(subject)
	if err := s.db.Find(&found, query); err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", subject, err)
	}
	result := make([]*models.UserRecord, 0, len(found))
	for i := range found {
		result = append(result, &found[i])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Close shuts down the BadgerHold database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ interfaces.UserDataStore = (*Store)(nil)
