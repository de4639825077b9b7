package models

import "time"

// Document subjects
const (
	SubjectPosition  = "position"
	SubjectQuote     = "quote"
	SubjectDividends = "dividends"
	SubjectNews      = "news"
)

// UserRecord is a generic document record for all user domain data,
// keyed by (UserID, Subject, Key). Value holds the JSON-encoded payload.
type UserRecord struct {
	UserID   string    `json:"user_id"`
	Subject  string    `json:"subject"`
	Key      string    `json:"key"`
	Value    string    `json:"value"`
	Version  int       `json:"version"`
	DateTime time.Time `json:"datetime"`
}
