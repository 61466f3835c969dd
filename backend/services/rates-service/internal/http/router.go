package httpserver

import (
	"net/http"

	"ratesapi/backend/services/rates-service/internal/http/handlers"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	RatesHandlers *handlers.RatesHandlers
	UpdateHandler http.Handler
	FeedHandler   http.Handler
	HealthHandler http.HandlerFunc
}

// NewRouter wires HTTP routes.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))

	mux.Handle("/api/rates", method(http.MethodGet, http.HandlerFunc(deps.RatesHandlers.List)))
	mux.Handle("/api/rates/view", method(http.MethodGet, http.HandlerFunc(deps.RatesHandlers.View)))
	mux.Handle("/api/bill-fields", method(http.MethodGet, http.HandlerFunc(deps.RatesHandlers.BillFields)))
	mux.Handle("/api/rates/update", method(http.MethodPost, deps.UpdateHandler))

	if deps.FeedHandler != nil {
		mux.Handle("/api/rates/feed", method(http.MethodGet, deps.FeedHandler))
	}

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
