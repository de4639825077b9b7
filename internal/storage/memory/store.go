// Package memory implements UserDataStore with in-memory maps. Used for
// testing and development; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

const keySep = "\x00"

func compositeKey(userID, subject, key string) string {
	return userID + keySep + subject + keySep + key
}

// Store implements interfaces.UserDataStore in memory.
type Store struct {
	mu      sync.RWMutex
	records map[string]models.UserRecord
	now     func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]models.UserRecord),
		now:     time.Now,
	}
}

func (s *Store) Get(_ context.Context, userID, subject, key string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[compositeKey(userID, subject, key)]
	if !ok {
		return nil, fmt.Errorf("%s '%s' for user '%s': %w", subject, key, userID, common.ErrNotFound)
	}
	return &rec, nil
}

func (s *Store) Put(_ context.Context, record *models.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(record)
	return nil
}

func (s *Store) putLocked(record *models.UserRecord) {
	ck := compositeKey(record.UserID, record.Subject, record.Key)
	if existing, ok := s.records[ck]; ok {
		record.Version = existing.Version + 1
	} else {
		record.Version = 1
	}
	record.DateTime = s.now()
	s.records[ck] = *record
}

func (s *Store) Merge(_ context.Context, userID, subject, key string, fn interfaces.MergeFunc) (*models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := compositeKey(userID, subject, key)
	var current *models.UserRecord
	if rec, ok := s.records[ck]; ok {
		current = &rec
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		delete(s.records, ck)
		return nil, nil
	}
	next.UserID, next.Subject, next.Key = userID, subject, key
	s.putLocked(next)
	out := s.records[ck]
	return &out, nil
}

func (s *Store) Delete(_ context.Context, userID, subject, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, compositeKey(userID, subject, key))
	return nil
}

func (s *Store) List(_ context.Context, userID, subject string) ([]*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.UserRecord
	for _, rec := range s.records {
		if rec.UserID == userID && rec.Subject == subject {
			r := rec
			result = append(result, &r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (s *Store) Close() error {
	return nil
}

var _ interfaces.UserDataStore = (*Store)(nil)
