package repository

import (
	"context"
	"database/sql"
	"time"

	"ratesapi/backend/services/rates-service/internal/models"
)

// BillFieldRepository reads Utility_Bill_Fields.
type BillFieldRepository struct {
	db *sql.DB
}

// NewBillFieldRepository returns repository instance.
func NewBillFieldRepository(db *sql.DB) *BillFieldRepository {
	return &BillFieldRepository{db: db}
}

// ListByUtility returns all bill fields for the given standard utility name.
func (r *BillFieldRepository) ListByUtility(ctx context.Context, utility string) ([]models.BillField, error) {
	const query = `SELECT * FROM "Utility_Bill_Fields" WHERE "Standard_Utility_Name" = $1`
	rows, err := r.db.QueryContext(ctx, query, utility)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fields := make([]models.BillField, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		field := make(models.BillField, len(columns))
		for i, column := range columns {
			field[column] = columnValue(values[i])
		}
		fields = append(fields, field)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}

func columnValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return val
	}
}
