package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"7.5", "USD", "$7.50"},
		{"1234.567", "USD", "$1,234.57"},
		{"0", "USD", "$0.00"},
		{"3", "XXX-UNKNOWN", "$3.00"},
		{"500", "JPY", "¥500"},
	}

	for _, tt := range tests {
		t.Run(tt.amount+"_"+tt.currency, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMoney(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}
