package portfolio

import (
	"time"

	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

// Service assembles summaries from the ledger and the dividend cache.
type Service struct {
	ledger    interfaces.LedgerReader
	dividends interfaces.DividendReader
	logger    *common.Logger
	now       func() time.Time
}

// NewService creates a portfolio service.
func NewService(ledger interfaces.LedgerReader, dividends interfaces.DividendReader, logger *common.Logger) *Service {
	return &Service{
		ledger:    ledger,
		dividends: dividends,
		logger:    logger,
		now:       time.Now,
	}
}

// Summary computes the current portfolio summary from consistent snapshots.
func (s *Service) Summary() models.PortfolioSummary {
	positions := s.ledger.CurrentPositions()
	events := make(map[string][]models.DividendEvent, len(positions))
	for _, p := range positions {
		if e := s.dividends.Events(p.Symbol); len(e) > 0 {
			events[p.Symbol] = e
		}
	}

	summary := Summarize(positions, events, s.now())
	s.logger.Debug().
		Int("holdings", len(summary.Holdings)).
		Str("value", summary.TotalCurrentValue.StringFixed(2)).
		Msg("Portfolio summary computed")
	return summary
}
