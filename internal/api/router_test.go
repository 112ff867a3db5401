package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/dto"
	"github.com/guttosm/settlepulse/internal/domain/models"
)

func TestNewRouter_WiringAndMiddlewares(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &mockLedgerService{price: models.PricePoint{
		SecurityCode: "600000",
		Close:        decimal.RequireFromString("45.2"),
		Date:         time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
		Source:       "live",
	}}
	r := NewRouter(NewHandler(svc), DefaultRouterOptions())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/prices/600000", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	var out dto.PriceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if out.SecurityCode != "600000" || !out.Price.Equal(decimal.RequireFromString("45.2")) || out.Source != "live" {
		t.Fatalf("unexpected body: %+v", out)
	}
}

func TestNewRouter_RoutesRegistered(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(NewHandler(&mockLedgerService{}), DefaultRouterOptions())

	want := map[string]bool{
		"/api/v1/trades":       false,
		"/api/v1/positions":    false,
		"/api/v1/performance":  false,
		"/api/v1/prices/:code": false,
		"/swagger/*any":        false,
	}
	for _, ri := range r.Routes() {
		if _, ok := want[ri.Path]; ok && ri.Method == http.MethodGet {
			want[ri.Path] = true
		}
	}
	for path, seen := range want {
		if !seen {
			t.Fatalf("route %s not registered", path)
		}
	}
}

func TestNewRouter_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opts := DefaultRouterOptions()
	opts.RateEvery, opts.RateBurst = time.Hour, 1
	r := NewRouter(NewHandler(&mockLedgerService{}), opts)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}
