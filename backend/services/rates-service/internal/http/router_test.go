package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"ratesapi/backend/services/rates-service/internal/http/handlers"
	"ratesapi/backend/services/rates-service/internal/models"
)

type emptyRates struct{}

func (emptyRates) ListRates(context.Context) ([]models.Rate, error) { return []models.Rate{}, nil }
func (emptyRates) ListRateView(context.Context) ([]models.RateView, error) {
	return []models.RateView{}, nil
}
func (emptyRates) ListByUtility(context.Context, string) ([]models.BillField, error) {
	return []models.BillField{}, nil
}

func newTestRouter() http.Handler {
	update := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) })
	return NewRouter(RouterDeps{
		RatesHandlers: handlers.NewRatesHandlers(emptyRates{}, emptyRates{}, zap.NewNop()),
		UpdateHandler: update,
		HealthHandler: handlers.NewHealthHandler(nil),
	})
}

func TestRouterMethodGuard(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/rates", http.StatusOK},
		{http.MethodGet, "/api/rates/view", http.StatusOK},
		{http.MethodGet, "/api/bill-fields?utility=x", http.StatusOK},
		{http.MethodPost, "/api/rates/update", http.StatusAccepted},
		{http.MethodGet, "/api/rates/update", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/rates", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/rates/feed", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, rec.Code)
		}
	}
}
