package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"ratesapi/backend/services/rates-service/internal/models"
)

// RateReader is the read side of the rates repository.
type RateReader interface {
	ListRates(ctx context.Context) ([]models.Rate, error)
	ListRateView(ctx context.Context) ([]models.RateView, error)
}

// BillFieldReader looks up bill fields per utility.
type BillFieldReader interface {
	ListByUtility(ctx context.Context, utility string) ([]models.BillField, error)
}

// RatesHandlers serves the read endpoints.
type RatesHandlers struct {
	rates      RateReader
	billFields BillFieldReader
	logger     *zap.Logger
}

// NewRatesHandlers returns handler struct.
func NewRatesHandlers(rates RateReader, billFields BillFieldReader, logger *zap.Logger) *RatesHandlers {
	return &RatesHandlers{rates: rates, billFields: billFields, logger: logger}
}

// List handles GET /api/rates.
func (h *RatesHandlers) List(w http.ResponseWriter, r *http.Request) {
	rates, err := h.rates.ListRates(r.Context())
	if err != nil {
		h.logger.Error("list rates failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch rates")
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

// View handles GET /api/rates/view.
func (h *RatesHandlers) View(w http.ResponseWriter, r *http.Request) {
	views, err := h.rates.ListRateView(r.Context())
	if err != nil {
		h.logger.Error("list rates view failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch rates view")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// BillFields handles GET /api/bill-fields?utility=<name>.
func (h *RatesHandlers) BillFields(w http.ResponseWriter, r *http.Request) {
	utility := strings.TrimSpace(r.URL.Query().Get("utility"))
	if utility == "" {
		writeError(w, http.StatusBadRequest, "missing 'utility' query parameter")
		return
	}

	fields, err := h.billFields.ListByUtility(r.Context(), utility)
	if err != nil {
		h.logger.Error("list bill fields failed", zap.String("utility", utility), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch bill fields")
		return
	}
	writeJSON(w, http.StatusOK, fields)
}
