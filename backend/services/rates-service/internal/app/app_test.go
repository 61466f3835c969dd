package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ratesapi/backend/services/rates-service/internal/audit"
	"ratesapi/backend/services/rates-service/internal/feed"
	"ratesapi/backend/services/rates-service/internal/http/handlers"
	"ratesapi/backend/services/rates-service/internal/models"
	"ratesapi/backend/services/rates-service/internal/notify"
	"ratesapi/backend/services/rates-service/internal/service"
)

type stubReads struct{}

func (stubReads) ListRates(context.Context) ([]models.Rate, error) { return []models.Rate{}, nil }
func (stubReads) ListRateView(context.Context) ([]models.RateView, error) {
	return []models.RateView{}, nil
}
func (stubReads) ListByUtility(context.Context, string) ([]models.BillField, error) {
	return []models.BillField{}, nil
}

func TestPostCommitHookOrder(t *testing.T) {
	hub := feed.NewHub(nil, 0, zap.NewNop())
	defer hub.Close()
	notifier := notify.NewDiscordNotifier("", http.DefaultClient, zap.NewNop())

	hooks := postCommitHooks(audit.NewFileSink(t.TempDir()), hub, notifier)

	want := []string{"audit", "feed", "discord"}
	if len(hooks) != len(want) {
		t.Fatalf("expected %d hooks, got %d", len(want), len(hooks))
	}
	for i, name := range want {
		if hooks[i].Name() != name {
			t.Fatalf("hook %d: expected %s, got %s", i, name, hooks[i].Name())
		}
	}
	if _, ok := hooks[2].(service.EntryTimedHook); !ok {
		t.Fatalf("discord hook should bound each post separately")
	}
}

func TestRouterRegistersAllRoutes(t *testing.T) {
	hub := feed.NewHub(nil, 0, zap.NewNop())
	defer hub.Close()

	update := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) })
	router := newRouter(routes{
		rates:      stubReads{},
		billFields: stubReads{},
		update:     update,
		feed:       hub,
		checks:     map[string]handlers.HealthCheck{"postgres": func(context.Context) error { return nil }},
	}, zap.NewNop())

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/rates", http.StatusOK},
		{http.MethodGet, "/api/rates/view", http.StatusOK},
		{http.MethodGet, "/api/bill-fields?utility=ComEd", http.StatusOK},
		{http.MethodPost, "/api/rates/update", http.StatusAccepted},
		{http.MethodPost, "/api/rates/feed", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, rec.Code)
		}
	}

	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/rates/feed", nil)
	if err != nil {
		t.Fatalf("feed dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("feed subscriber was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
