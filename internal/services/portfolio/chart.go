package portfolio

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/portfoliohub/internal/models"
)

var sliceColors = []string{
	"2563eb", // blue-600
	"16a34a", // green-600
	"f59e0b", // amber-500
	"dc2626", // red-600
	"7c3aed", // violet-600
	"0891b2", // cyan-600
	"db2777", // pink-600
	"65a30d", // lime-600
}

// RenderAllocationChart renders a PNG pie chart of holdings by market value.
// Returns raw PNG bytes.
func RenderAllocationChart(summary models.PortfolioSummary) ([]byte, error) {
	var values []chart.Value
	for i, h := range summary.Holdings {
		v := h.MarketValue.InexactFloat64()
		if v <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Value: v,
			Label: fmt.Sprintf("%s %s%%", h.Position.Symbol, h.Weight.StringFixed(1)),
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(sliceColors[i%len(sliceColors)]),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			},
		})
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no holdings with a positive market value")
	}

	pie := chart.PieChart{
		Title:  "Portfolio Allocation",
		Width:  600,
		Height: 600,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
