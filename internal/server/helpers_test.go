package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/portfoliohub/internal/common"
)

func TestValidateSymbol(t *testing.T) {
	valid := map[string]string{
		"AAPL":   "AAPL",
		" msft ": "MSFT",
		"BRK.B":  "BRK.B",
		"BF-B":   "BF-B",
	}
	for in, want := range valid {
		got, errMsg := validateSymbol(in)
		assert.Empty(t, errMsg, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "../etc", "A B", "AAPL;DROP", "$X", "ABCDEFGHIJKLMNOPQ"} {
		_, errMsg := validateSymbol(in)
		assert.NotEmpty(t, errMsg, "expected %q to be rejected", in)
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&common.ValidationError{Field: "quantity", Message: "must be greater than zero"}, http.StatusBadRequest},
		{&common.NotFoundError{Symbol: "KO"}, http.StatusNotFound},
		{&common.PersistenceError{Op: "put", Key: "position/KO", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteServiceError(rec, tt.err)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}
}

func TestPathParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/dividends/KO", nil)
	assert.Equal(t, "KO", PathParam(r, "/api/dividends/", ""))

	r = httptest.NewRequest(http.MethodGet, "/api/positions/KO/extra", nil)
	assert.Equal(t, "KO", PathParam(r, "/api/positions/", ""))

	assert.Empty(t, PathParam(r, "/api/other/", ""))
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/positions/{symbol}", routeLabel("/api/positions/AAPL"))
	assert.Equal(t, "/api/dividends/{symbol}", routeLabel("/api/dividends/KO"))
	assert.Equal(t, "/api/dividends/changes", routeLabel("/api/dividends/changes"))
	assert.Equal(t, "/api/positions", routeLabel("/api/positions"))
}
