// Package records encodes typed values as JSON UserRecord documents.
package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

// Encode wraps v as the record (userID, subject, key).
func Encode(userID, subject, key string, v any) (*models.UserRecord, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s '%s': %w", subject, key, err)
	}
	return &models.UserRecord{UserID: userID, Subject: subject, Key: key, Value: string(data)}, nil
}

// Decode unmarshals a record value into T.
func Decode[T any](rec *models.UserRecord) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(rec.Value), &v); err != nil {
		return v, fmt.Errorf("decode %s '%s': %w", rec.Subject, rec.Key, err)
	}
	return v, nil
}

// Put encodes and stores v.
func Put(ctx context.Context, store interfaces.UserDataStore, userID, subject, key string, v any) error {
	rec, err := Encode(userID, subject, key, v)
	if err != nil {
		return err
	}
	return store.Put(ctx, rec)
}

// List decodes every record of subject. Undecodable records are returned
// in skipped rather than failing the whole load.
func List[T any](ctx context.Context, store interfaces.UserDataStore, userID, subject string) (values []T, skipped []string, err error) {
	recs, err := store.List(ctx, userID, subject)
	if err != nil {
		return nil, nil, err
	}
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			skipped = append(skipped, rec.Key)
			continue
		}
		values = append(values, v)
	}
	return values, skipped, nil
}
