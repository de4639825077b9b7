package server

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/portfoliohub/internal/app"
	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/models"
	"github.com/bobmcallan/portfoliohub/internal/services/portfolio"
)

// positionRequest is the body of POST /api/positions.
type positionRequest struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePaid    decimal.Decimal `json:"price_paid"`
	DisplayName  string          `json:"display_name,omitempty"`
	AcquiredDate string          `json:"acquired_date,omitempty"` // YYYY-MM-DD
}

// --- Ledger handlers ---

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"positions": s.app.Ledger.CurrentPositions(),
		})
	case http.MethodPost:
		s.handleAddPosition(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleAddPosition(w http.ResponseWriter, r *http.Request) {
	var body positionRequest
	if !DecodeJSON(w, r, &body) {
		return
	}

	req := app.AddPositionRequest{
		Symbol:      body.Symbol,
		Quantity:    body.Quantity,
		PricePaid:   body.PricePaid,
		DisplayName: body.DisplayName,
	}
	if body.AcquiredDate != "" {
		d, err := time.Parse(models.DateLayout, body.AcquiredDate)
		if err != nil {
			WriteErrorWithCode(w, http.StatusBadRequest, "acquired_date must be YYYY-MM-DD", "validation")
			return
		}
		req.AcquiredDate = d
	}

	res, err := s.app.AddPosition(r.Context(), req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, res)
}

func (s *Server) handlePositionBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol, errMsg := validateSymbol(PathParam(r, "/api/positions/", ""))
	if errMsg != "" {
		WriteError(w, http.StatusBadRequest, errMsg)
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, ok := s.app.Ledger.Position(symbol)
		if !ok {
			WriteServiceError(w, &common.NotFoundError{Symbol: symbol})
			return
		}
		WriteJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := s.app.RemovePosition(r.Context(), symbol); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// --- Derived views ---

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Summary())
}

func (s *Server) handlePortfolioChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	png, err := portfolio.RenderAllocationChart(s.app.Summary())
	if err != nil {
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "no_holdings")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	from, ok := parseDateParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseDateParam(w, r, "to")
	if !ok {
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		WriteErrorWithCode(w, http.StatusBadRequest, "to must not be before from", "validation")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"dates": s.app.Calendar(from, to),
	})
}

// parseDateParam reads an optional YYYY-MM-DD query parameter.
func parseDateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, name+" must be YYYY-MM-DD", "validation")
		return time.Time{}, false
	}
	return t, true
}

// --- Feeds ---

func (s *Server) handleDividends(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	symbol, errMsg := validateSymbol(PathParam(r, "/api/dividends/", ""))
	if errMsg != "" {
		WriteError(w, http.StatusBadRequest, errMsg)
		return
	}

	entry, err := s.app.DividendEntry(symbol)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	var qty decimal.Decimal
	if p, ok := s.app.Ledger.Position(symbol); ok {
		qty = p.Quantity
	}
	change, hasChange := s.app.Dividends.RecentDividendChange(symbol)

	resp := map[string]interface{}{
		"dividends":     entry,
		"annual_income": s.app.Dividends.AnnualIncome(symbol),
		"quantity":      qty,
	}
	if hasChange {
		resp["recent_change"] = change
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDividendChanges(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	changes := s.app.DividendChanges()
	if changes == nil {
		changes = []models.DividendChange{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"changes": changes})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var articles []models.NewsArticle
	if raw := r.URL.Query().Get("symbol"); raw != "" {
		symbol, errMsg := validateSymbol(raw)
		if errMsg != "" {
			WriteError(w, http.StatusBadRequest, errMsg)
			return
		}
		articles = s.app.News.Articles(symbol)
	} else {
		articles = s.app.NewsFeed()
	}
	if articles == nil {
		articles = []models.NewsArticle{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"articles": articles})
}

// handleRefresh runs a refresh bound to the request. If the client
// disconnects, symbols not yet started are reported cancelled.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	reports, err := s.app.Refresh(r.Context(), r.URL.Query().Get("feed"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}
