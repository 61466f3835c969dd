package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"ratesapi/backend/services/rates-service/internal/changeset"
	"ratesapi/backend/services/rates-service/internal/identity"
	"ratesapi/backend/services/rates-service/internal/repository"
	"ratesapi/backend/services/rates-service/internal/service"
)

type fakeResolver struct {
	result identity.Result
}

func (f fakeResolver) Resolve(*http.Request) identity.Result {
	return f.result
}

type fakeApplier struct {
	outcome    service.Outcome
	err        error
	gotUser    string
	gotChanges []changeset.Change
	dispatched []service.Outcome
}

func (f *fakeApplier) Apply(_ context.Context, user string, changes []changeset.Change) (service.Outcome, error) {
	f.gotUser = user
	f.gotChanges = changes
	return f.outcome, f.err
}

func (f *fakeApplier) Dispatch(_ context.Context, outcome service.Outcome) {
	f.dispatched = append(f.dispatched, outcome)
}

func postUpdate(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/rates/update", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, payload
}

const oneChange = `{"changes":[{"original":{"id":7,"Rate":"10"},"updated":{"id":7,"Rate":"12"}}]}`

func TestUpdateHandlerRejectsMalformedBodies(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"changes":{"original":{}}}`,
		`{"changes":[{"original":{"id":1}}]}`,
		`{}`,
	}
	for _, body := range bodies {
		applier := &fakeApplier{}
		h := NewUpdateHandler(fakeResolver{}, applier, true, zap.NewNop())
		rec, payload := postUpdate(t, h, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
		if payload["message"] != "invalid change format" {
			t.Fatalf("%s: unexpected body %v", body, payload)
		}
		if applier.gotChanges != nil || len(applier.dispatched) != 0 {
			t.Fatalf("%s: applier must not run", body)
		}
	}
}

func TestUpdateHandlerNoChanges(t *testing.T) {
	applier := &fakeApplier{outcome: service.Outcome{Applied: false}}
	h := NewUpdateHandler(fakeResolver{}, applier, false, zap.NewNop())

	rec, payload := postUpdate(t, h, `{"changes":[{"original":{"id":1,"Rate":"1.50"},"updated":{"id":1,"Rate":"1.50"}}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if payload["message"] != "No changes to apply." {
		t.Fatalf("unexpected body %v", payload)
	}
	if _, ok := payload["updates"]; ok {
		t.Fatalf("no-op response must not carry updates: %v", payload)
	}
	if len(applier.dispatched) != 0 {
		t.Fatalf("hooks must not fire without a commit")
	}
}

func TestUpdateHandlerSuccessDispatchesHooks(t *testing.T) {
	outcome := service.Outcome{Applied: true, Affected: 1, BatchID: "b-1"}
	applier := &fakeApplier{outcome: outcome}
	who := identity.Result{Kind: identity.Authenticated, UserID: 3, Name: "maria"}
	h := NewUpdateHandler(fakeResolver{result: who}, applier, false, zap.NewNop())

	rec, payload := postUpdate(t, h, oneChange)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if payload["message"] != "Changes applied successfully." || payload["updates"] != float64(1) {
		t.Fatalf("unexpected body %v", payload)
	}
	if applier.gotUser != "maria" {
		t.Fatalf("expected user maria, got %q", applier.gotUser)
	}
	if len(applier.gotChanges) != 1 {
		t.Fatalf("expected one change, got %d", len(applier.gotChanges))
	}
	if len(applier.dispatched) != 1 || applier.dispatched[0].BatchID != "b-1" {
		t.Fatalf("expected outcome dispatched once, got %+v", applier.dispatched)
	}
}

func TestUpdateHandlerAnonymousUserIsUnknown(t *testing.T) {
	applier := &fakeApplier{}
	h := NewUpdateHandler(fakeResolver{result: identity.Result{Kind: identity.Invalid}}, applier, false, zap.NewNop())

	postUpdate(t, h, oneChange)
	if applier.gotUser != identity.UnknownUser {
		t.Fatalf("expected %q, got %q", identity.UnknownUser, applier.gotUser)
	}
}

func statementFailure() error {
	return &repository.StatementError{
		Message: "Error applying changes.",
		Code:    "23505",
		SQL:     `UPDATE "Rates" SET "Rate_ID" = $1 WHERE "id" = $2`,
		Err:     &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"},
	}
}

func TestUpdateHandlerExposesStatementError(t *testing.T) {
	applier := &fakeApplier{err: statementFailure()}
	h := NewUpdateHandler(fakeResolver{}, applier, true, zap.NewNop())

	rec, payload := postUpdate(t, h, oneChange)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if payload["code"] != "23505" {
		t.Fatalf("unexpected code %v", payload["code"])
	}
	if payload["error"] != "duplicate key value violates unique constraint" {
		t.Fatalf("unexpected error detail %v", payload["error"])
	}
	if !strings.HasPrefix(payload["sql"].(string), `UPDATE "Rates"`) {
		t.Fatalf("unexpected sql %v", payload["sql"])
	}
	if _, ok := payload["raw"].(string); !ok {
		t.Fatalf("expected raw diagnostic, got %v", payload["raw"])
	}
	if len(applier.dispatched) != 0 {
		t.Fatalf("hooks must not fire after a failed write")
	}
}

func TestUpdateHandlerHidesStatementErrorDetail(t *testing.T) {
	applier := &fakeApplier{err: statementFailure()}
	h := NewUpdateHandler(fakeResolver{}, applier, false, zap.NewNop())

	rec, payload := postUpdate(t, h, oneChange)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	for _, key := range []string{"error", "sql", "raw"} {
		if _, ok := payload[key]; ok {
			t.Fatalf("%s must be hidden, got %v", key, payload)
		}
	}
	if payload["code"] != "23505" || payload["message"] != "Error applying changes." {
		t.Fatalf("unexpected body %v", payload)
	}
}

func TestUpdateHandlerUnexpectedError(t *testing.T) {
	applier := &fakeApplier{err: errors.New("boom")}
	h := NewUpdateHandler(fakeResolver{}, applier, true, zap.NewNop())

	rec, payload := postUpdate(t, h, oneChange)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if payload["code"] != repository.CodeUnknown {
		t.Fatalf("unexpected body %v", payload)
	}
}
