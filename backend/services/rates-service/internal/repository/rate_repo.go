package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"ratesapi/backend/services/rates-service/internal/changeset"
	"ratesapi/backend/services/rates-service/internal/models"
)

// CodeUnknown is reported when a failure carries no SQLSTATE.
const CodeUnknown = "UNKNOWN"

// StatementError describes a failed write transaction. SQL is empty when the
// failure happened outside a statement (connection, begin, commit).
type StatementError struct {
	Message string
	Code    string
	SQL     string
	Err     error
}

func (e *StatementError) Error() string {
	if e.SQL == "" {
		return fmt.Sprintf("%s [%s]: %v", e.Message, e.Code, e.Err)
	}
	return fmt.Sprintf("%s [%s] in %q: %v", e.Message, e.Code, e.SQL, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Detail is the database's own description of the failure.
func (e *StatementError) Detail() string {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return pgErr.Message
	}
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func newStatementError(message, sql string, err error) *StatementError {
	code := CodeUnknown
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code != "" {
		code = pgErr.Code
	}
	return &StatementError{Message: message, Code: code, SQL: sql, Err: err}
}

// ApplyResult reports rows touched by a committed transaction.
type ApplyResult struct {
	Affected     int64
	PerStatement []int64
}

// RateRepository reads the rates tables and applies edits to Rates.
type RateRepository struct {
	db *sql.DB
}

// NewRateRepository returns repository instance.
func NewRateRepository(db *sql.DB) *RateRepository {
	return &RateRepository{db: db}
}

// ListRates returns every row of the Rates table.
func (r *RateRepository) ListRates(ctx context.Context) ([]models.Rate, error) {
	const query = `
		SELECT
			id,
			"Rate_ID",
			"SPL_Utility_Name",
			"Product_Name",
			"Rate",
			"ETF",
			"MSF",
			"Company_DBA_Name",
			duracion_rate,
			to_char("Last_Updated", 'YYYY-MM-DD') AS "Last_Updated",
			"SPL"
		FROM "Rates"
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rates := make([]models.Rate, 0)
	for rows.Next() {
		var rate models.Rate
		if err := rows.Scan(
			&rate.ID,
			&rate.RateID,
			&rate.UtilityName,
			&rate.ProductName,
			&rate.Rate,
			&rate.ETF,
			&rate.MSF,
			&rate.CompanyDBAName,
			&rate.Duration,
			&rate.LastUpdated,
			&rate.SPL,
		); err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rates, nil
}

// ListRateView returns the denormalized rates_view projection.
func (r *RateRepository) ListRateView(ctx context.Context) ([]models.RateView, error) {
	const query = `
		SELECT
			"Rate_ID",
			"Standard_Utility_Name",
			"Product_Name",
			"Rate",
			"ETF",
			"MSF",
			duracion_rate,
			"Company_DBA_Name",
			to_char("Last_Updated", 'YYYY-MM-DD') AS "Last_Updated",
			"SPL",
			"State",
			"LDC",
			"Logo_URL",
			"Service_Type",
			"Unit_of_Measure",
			"Excel_Status",
			utility_contact
		FROM rates_view
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]models.RateView, 0)
	for rows.Next() {
		var v models.RateView
		if err := rows.Scan(
			&v.RateID,
			&v.UtilityName,
			&v.ProductName,
			&v.Rate,
			&v.ETF,
			&v.MSF,
			&v.Duration,
			&v.CompanyDBAName,
			&v.LastUpdated,
			&v.SPL,
			&v.State,
			&v.LDC,
			&v.LogoURL,
			&v.ServiceType,
			&v.UnitOfMeasure,
			&v.ExcelStatus,
			&v.UtilityContact,
		); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return views, nil
}

// ApplyUpdates runs statements in order inside one transaction on a dedicated
// connection. The first failure rolls everything back.
func (r *RateRepository) ApplyUpdates(ctx context.Context, statements []changeset.Statement) (ApplyResult, error) {
	var result ApplyResult
	if len(statements) == 0 {
		return result, nil
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return result, newStatementError("database connection unavailable", "", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return result, newStatementError("failed to begin transaction", "", err)
	}

	for _, stmt := range statements {
		res, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			_ = tx.Rollback()
			return ApplyResult{}, newStatementError("failed to apply changes", stmt.SQL, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return ApplyResult{}, newStatementError("failed to apply changes", stmt.SQL, err)
		}
		result.Affected += affected
		result.PerStatement = append(result.PerStatement, affected)
	}

	if err := tx.Commit(); err != nil {
		return ApplyResult{}, newStatementError("failed to commit changes", "", err)
	}
	return result, nil
}
