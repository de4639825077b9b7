package models

import "time"

// Sentiment classifies the tone of an article toward its symbol.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment maps provider sentiment labels, defaulting to neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNegative:
		return Sentiment(s)
	default:
		return SentimentNeutral
	}
}

// NewsArticle is a news item linked to one held symbol.
type NewsArticle struct {
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	Publisher   string    `json:"publisher"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   Sentiment `json:"sentiment"`
	ImageURL    string    `json:"image_url,omitempty"`
	URL         string    `json:"url"`
	Seq         uint64    `json:"seq"` // cache-wide insertion order
}

// NewsKey is the article dedup key: title plus publication instant.
type NewsKey struct {
	Title       string
	PublishedAt int64 // unix nanoseconds, so equal instants in different zones match
}

// Key returns the dedup key of the article.
func (a NewsArticle) Key() NewsKey {
	return NewsKey{Title: a.Title, PublishedAt: a.PublishedAt.UnixNano()}
}

// NewsEntry is the cached article list for one symbol.
type NewsEntry struct {
	Symbol        string        `json:"symbol"`
	Articles      []NewsArticle `json:"articles"`
	LastFetchedAt time.Time     `json:"last_fetched_at"`
}
