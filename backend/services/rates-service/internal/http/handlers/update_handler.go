package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"ratesapi/backend/services/rates-service/internal/changeset"
	"ratesapi/backend/services/rates-service/internal/identity"
	"ratesapi/backend/services/rates-service/internal/repository"
	"ratesapi/backend/services/rates-service/internal/service"
)

const maxUpdateBody = 4 << 20

// IdentityResolver determines the acting user of a request.
type IdentityResolver interface {
	Resolve(r *http.Request) identity.Result
}

// ChangeApplier runs the change workflow and its post-commit hooks.
type ChangeApplier interface {
	Apply(ctx context.Context, user string, changes []changeset.Change) (service.Outcome, error)
	Dispatch(ctx context.Context, outcome service.Outcome)
}

// UpdateHandler handles POST /api/rates/update.
type UpdateHandler struct {
	resolver     IdentityResolver
	applier      ChangeApplier
	exposeErrors bool
	logger       *zap.Logger
}

// NewUpdateHandler returns handler. exposeErrors includes SQL diagnostics in 500 responses.
func NewUpdateHandler(resolver IdentityResolver, applier ChangeApplier, exposeErrors bool, logger *zap.Logger) *UpdateHandler {
	return &UpdateHandler{
		resolver:     resolver,
		applier:      applier,
		exposeErrors: exposeErrors,
		logger:       logger,
	}
}

type updateResponse struct {
	Message string `json:"message"`
	Updates int64  `json:"updates"`
}

func (h *UpdateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	who := h.resolver.Resolve(r)
	user := who.AuditName()

	changes, err := changeset.Decode(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	if err != nil {
		h.logger.Warn("invalid change request", zap.String("user", user), zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "invalid change format")
		return
	}
	h.logger.Info("change request received",
		zap.String("user", user),
		zap.Stringer("identity", who.Kind),
		zap.Int("rows", len(changes)),
	)

	outcome, err := h.applier.Apply(r.Context(), user, changes)
	if err != nil {
		h.writeApplyError(w, err)
		return
	}
	if !outcome.Applied {
		writeMessage(w, http.StatusOK, "No changes to apply.")
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{
		Message: "Changes applied successfully.",
		Updates: outcome.Affected,
	})
	_ = http.NewResponseController(w).Flush()

	h.applier.Dispatch(r.Context(), outcome)
}

func (h *UpdateHandler) writeApplyError(w http.ResponseWriter, err error) {
	var stmtErr *repository.StatementError
	if !errors.As(err, &stmtErr) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"message": "Error applying changes.",
			"code":    repository.CodeUnknown,
		})
		return
	}

	body := map[string]any{
		"message": stmtErr.Message,
		"code":    stmtErr.Code,
	}
	if h.exposeErrors {
		var sql any
		if stmtErr.SQL != "" {
			sql = stmtErr.SQL
		}
		raw, _ := json.Marshal(map[string]any{
			"message": stmtErr.Message,
			"code":    stmtErr.Code,
			"sql":     sql,
			"cause":   stmtErr.Detail(),
		})
		body["error"] = stmtErr.Detail()
		body["sql"] = sql
		body["raw"] = string(raw)
	}
	writeJSON(w, http.StatusInternalServerError, body)
}
