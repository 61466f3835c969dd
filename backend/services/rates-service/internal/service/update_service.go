package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ratesapi/backend/services/rates-service/internal/changeset"
	"ratesapi/backend/services/rates-service/internal/repository"
)

const defaultHookTimeout = 10 * time.Second

// Executor applies statements atomically.
type Executor interface {
	ApplyUpdates(ctx context.Context, statements []changeset.Statement) (repository.ApplyResult, error)
}

// Hook is a best-effort side effect run after a successful commit.
type Hook interface {
	Name() string
	AfterCommit(ctx context.Context, entries []changeset.Entry) error
}

// EntryTimedHook bounds each entry with its own deadline. The runner skips
// the per-hook timeout for such hooks so a long batch is not cut short.
type EntryTimedHook interface {
	Hook
	EntryTimeout() time.Duration
}

// Outcome describes what Apply did.
type Outcome struct {
	// Applied is false when the change set had nothing to execute.
	Applied  bool
	Affected int64
	BatchID  string
	Entries  []changeset.Entry
}

// UpdateService runs the change application workflow.
type UpdateService struct {
	executor    Executor
	table       changeset.Table
	hooks       []Hook
	hookTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time
	newBatchID  func() string
}

// NewUpdateService builds service. Hooks run in the given order.
func NewUpdateService(executor Executor, logger *zap.Logger, hooks ...Hook) *UpdateService {
	return &UpdateService{
		executor:    executor,
		table:       changeset.RatesTable,
		hooks:       hooks,
		hookTimeout: defaultHookTimeout,
		logger:      logger,
		now:         time.Now,
		newBatchID:  func() string { return uuid.NewString() },
	}
}

// Apply diffs the change set and executes the resulting statements in one
// transaction. A *repository.StatementError is returned on database failure.
func (s *UpdateService) Apply(ctx context.Context, user string, changes []changeset.Change) (Outcome, error) {
	plan := changeset.BuildStatements(changeset.Diff(changes), s.table)
	for _, rejected := range plan.Rejected {
		s.logger.Warn("ignoring change to non editable column", zap.String("field", rejected), zap.String("user", user))
	}
	if plan.Empty() {
		s.logger.Info("no changes to apply", zap.Int("rows", len(changes)), zap.String("user", user))
		return Outcome{}, nil
	}

	batchID := s.newBatchID()
	plan.Stamp(user, batchID, s.now())
	for i, stmt := range plan.Statements {
		s.logger.Debug("generated statement",
			zap.String("batch_id", batchID),
			zap.Int("index", i+1),
			zap.String("sql", stmt.SQL),
			zap.Any("args", stmt.Args),
		)
	}

	result, err := s.executor.ApplyUpdates(context.WithoutCancel(ctx), plan.Statements)
	if err != nil {
		s.logger.Error("failed to apply changes",
			zap.String("batch_id", batchID),
			zap.String("user", user),
			zap.Error(err),
		)
		return Outcome{BatchID: batchID}, err
	}

	s.logger.Info("changes applied",
		zap.String("batch_id", batchID),
		zap.String("user", user),
		zap.Int("statements", len(plan.Statements)),
		zap.Int64s("affected_per_statement", result.PerStatement),
		zap.Int64("affected", result.Affected),
		zap.Int("fields", len(plan.Entries)),
	)
	return Outcome{
		Applied:  true,
		Affected: result.Affected,
		BatchID:  batchID,
		Entries:  plan.Entries,
	}, nil
}

// Dispatch runs every hook for a committed outcome. Each hook gets its own
// timeout, and a failing or panicking hook does not affect the others.
func (s *UpdateService) Dispatch(ctx context.Context, outcome Outcome) {
	if !outcome.Applied || len(outcome.Entries) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, hook := range s.hooks {
		if err := s.runHook(ctx, hook, outcome.Entries); err != nil {
			s.logger.Warn("post-commit hook failed",
				zap.String("hook", hook.Name()),
				zap.String("batch_id", outcome.BatchID),
				zap.Error(err),
			)
		}
	}
}

func (s *UpdateService) runHook(ctx context.Context, hook Hook, entries []changeset.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if timed, ok := hook.(EntryTimedHook); ok && timed.EntryTimeout() > 0 {
		return hook.AfterCommit(ctx, entries)
	}
	ctx, cancel := context.WithTimeout(ctx, s.hookTimeout)
	defer cancel()
	return hook.AfterCommit(ctx, entries)
}
