// Package ledger owns the set of held positions and their weighted-average cost.
package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/metrics"
	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/bobmcallan/portfoliohub/internal/storage/records"
)

const sourceLedger = "ledger"

// Service is the position ledger. Mutations are serialised and persisted
// before the in-memory view changes.
type Service struct {
	store  interfaces.UserDataStore
	userID string
	prices interfaces.PriceReader
	logger *common.Logger
	now    func() time.Time // injectable clock for testing

	mu        sync.RWMutex
	positions map[string]models.Position
	changes   common.Broadcaster
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an empty ledger. prices may be nil, in which case
// snapshots carry no current price.
func NewService(store interfaces.UserDataStore, userID string, prices interfaces.PriceReader, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		userID:    userID,
		prices:    prices,
		logger:    logger,
		now:       time.Now,
		positions: make(map[string]models.Position),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory view with the stored positions.
func (s *Service) Load(ctx context.Context) error {
	positions, skipped, err := records.List[models.Position](ctx, s.store, s.userID, models.SubjectPosition)
	if err != nil {
		return err
	}
	for _, key := range skipped {
		s.logger.Warn().Str("symbol", key).Msg("Skipping undecodable position")
	}

	s.mu.Lock()
	s.positions = make(map[string]models.Position, len(positions))
	for _, p := range positions {
		p.TotalCost = p.CostBasis()
		s.positions[p.Symbol] = p
	}
	n := len(s.positions)
	s.mu.Unlock()

	metrics.PositionsHeld.Set(float64(n))
	s.logger.Info().Int("positions", n).Msg("Ledger loaded")
	return nil
}

type addOptions struct {
	displayName  string
	acquiredDate time.Time
}

// AddOption customises AddOrIncreasePosition.
type AddOption func(*addOptions)

// WithDisplayName sets the human-readable instrument name.
func WithDisplayName(name string) AddOption {
	return func(o *addOptions) { o.displayName = strings.TrimSpace(name) }
}

// WithAcquiredDate sets the acquisition date of a new position.
func WithAcquiredDate(t time.Time) AddOption {
	return func(o *addOptions) { o.acquiredDate = t }
}

// AddOrIncreasePosition records a buy. A new symbol starts at averageCost =
// pricePaid; an existing one blends the buy into its weighted-average cost.
func (s *Service) AddOrIncreasePosition(ctx context.Context, symbol string, quantity, pricePaid decimal.Decimal, opts ...AddOption) (models.Position, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := ValidateBuy(symbol, quantity, pricePaid); err != nil {
		metrics.LedgerMutations.WithLabelValues("add", "invalid").Inc()
		return models.Position{}, err
	}

	o := addOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	next, existed, err := s.applyBuy(ctx, symbol, quantity, pricePaid, o)
	if err != nil {
		metrics.LedgerMutations.WithLabelValues("add", "persistence_error").Inc()
		s.logger.Error().Str("symbol", symbol).Err(err).Msg("Failed to persist position")
		return models.Position{}, &common.PersistenceError{Op: "put", Key: models.SubjectPosition + "/" + symbol, Err: err}
	}

	metrics.LedgerMutations.WithLabelValues("add", "ok").Inc()
	s.logger.Info().
		Str("symbol", symbol).
		Str("quantity", next.Quantity.String()).
		Str("average_cost", next.AverageCost.String()).
		Bool("increased", existed).
		Msg("Position recorded")

	s.changes.Publish(common.ChangeEvent{Source: sourceLedger, Symbol: symbol, At: s.now()})
	return next, nil
}

// applyBuy computes, persists and commits one buy under the ledger lock.
func (s *Service) applyBuy(ctx context.Context, symbol string, quantity, pricePaid decimal.Decimal, o addOptions) (models.Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, existed := s.positions[symbol]
	if existed {
		// Sums are exact in decimal; only the final division rounds.
		next.TotalCost = next.CostBasis().Add(quantity.Mul(pricePaid))
		next.Quantity = next.Quantity.Add(quantity)
		next.AverageCost = next.TotalCost.Div(next.Quantity)
	} else {
		next = models.Position{
			Symbol:       symbol,
			Quantity:     quantity,
			AverageCost:  pricePaid,
			TotalCost:    quantity.Mul(pricePaid),
			AcquiredDate: models.TruncateDay(s.now()),
		}
		if !o.acquiredDate.IsZero() {
			next.AcquiredDate = models.TruncateDay(o.acquiredDate)
		}
	}
	if o.displayName != "" {
		next.DisplayName = o.displayName
	}

	if err := records.Put(ctx, s.store, s.userID, models.SubjectPosition, symbol, next); err != nil {
		return models.Position{}, existed, err
	}

	s.positions[symbol] = next
	metrics.PositionsHeld.Set(float64(len(s.positions)))
	return next, existed, nil
}

// ValidateBuy checks a buy before it is applied. symbol must already be normalised.
func ValidateBuy(symbol string, quantity, pricePaid decimal.Decimal) error {
	switch {
	case symbol == "":
		return &common.ValidationError{Field: "symbol", Message: "is required"}
	case !quantity.IsPositive():
		return &common.ValidationError{Field: "quantity", Message: "must be greater than zero"}
	case pricePaid.IsNegative():
		return &common.ValidationError{Field: "price_paid", Message: "must not be negative"}
	}
	return nil
}

// RemovePosition fully exits symbol. Returns NotFoundError when it is not held.
func (s *Service) RemovePosition(ctx context.Context, symbol string) error {
	symbol = models.NormalizeSymbol(symbol)

	if err := s.applyRemove(ctx, symbol); err != nil {
		if common.IsNotFound(err) {
			metrics.LedgerMutations.WithLabelValues("remove", "not_found").Inc()
			return err
		}
		metrics.LedgerMutations.WithLabelValues("remove", "persistence_error").Inc()
		s.logger.Error().Str("symbol", symbol).Err(err).Msg("Failed to delete position")
		return &common.PersistenceError{Op: "delete", Key: models.SubjectPosition + "/" + symbol, Err: err}
	}

	metrics.LedgerMutations.WithLabelValues("remove", "ok").Inc()
	s.logger.Info().Str("symbol", symbol).Msg("Position removed")

	s.changes.Publish(common.ChangeEvent{Source: sourceLedger, Symbol: symbol, At: s.now()})
	return nil
}

func (s *Service) applyRemove(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[symbol]; !ok {
		return &common.NotFoundError{Symbol: symbol}
	}
	if err := s.store.Delete(ctx, s.userID, models.SubjectPosition, symbol); err != nil {
		return err
	}
	delete(s.positions, symbol)
	metrics.PositionsHeld.Set(float64(len(s.positions)))
	return nil
}

// CurrentPositions returns copies of all positions with cached prices filled
// in, by descending market value then ascending symbol.
func (s *Service) CurrentPositions() []models.Position {
	s.mu.RLock()
	out := make([]models.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	s.mu.RUnlock()

	for i := range out {
		s.enrich(&out[i])
	}

	sort.Slice(out, func(i, j int) bool {
		vi, vj := out[i].MarketValue(), out[j].MarketValue()
		if !vi.Equal(vj) {
			return vi.GreaterThan(vj)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func (s *Service) enrich(p *models.Position) {
	p.CurrentPrice, p.LastPriceRefresh = nil, nil
	if s.prices == nil {
		return
	}
	price, fetchedAt, ok := s.prices.CachedPrice(p.Symbol)
	if !ok {
		return
	}
	p.CurrentPrice = &price
	p.LastPriceRefresh = &fetchedAt
}

// Position returns a copy of the position for symbol with its cached price filled in.
func (s *Service) Position(symbol string) (models.Position, bool) {
	s.mu.RLock()
	p, ok := s.positions[models.NormalizeSymbol(symbol)]
	s.mu.RUnlock()
	if !ok {
		return models.Position{}, false
	}
	s.enrich(&p)
	return p, true
}

// Symbols returns the held symbols in ascending order.
func (s *Service) Symbols() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.positions))
	for sym := range s.positions {
		out = append(out, sym)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Subscribe registers fn for committed ledger mutations.
func (s *Service) Subscribe(fn func(common.ChangeEvent)) func() {
	return s.changes.Subscribe(fn)
}

var _ interfaces.PositionReader = (*Service)(nil)
