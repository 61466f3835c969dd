package changeset

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// KeyColumn is the surface identifier used to target updates.
const KeyColumn = "id"

// Table describes the update target and the columns clients may assign.
type Table struct {
	Name    string
	Key     string
	Columns []string
}

// RatesTable is the Rates table as exposed to the editor.
var RatesTable = Table{
	Name: "Rates",
	Key:  KeyColumn,
	Columns: []string{
		"Rate_ID",
		"SPL_Utility_Name",
		"Product_Name",
		"Rate",
		"ETF",
		"MSF",
		"Company_DBA_Name",
		"duracion_rate",
		"Last_Updated",
		"SPL",
		"utility_contact",
	},
}

func (t Table) editable(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Statement is one parameterized UPDATE targeting a single row.
type Statement struct {
	SQL   string
	Args  []any
	RowID any
}

// Plan is the set of statements for a change request together with the
// field entries that will be reported once they commit.
type Plan struct {
	Statements []Statement
	Entries    []Entry
	// Rejected lists "<id>.<column>" pairs naming columns the table does not allow.
	Rejected []string
}

// Empty reports whether there is nothing to execute.
func (p Plan) Empty() bool {
	return len(p.Statements) == 0
}

// Stamp attributes every entry to user and batch at the given time.
func (p *Plan) Stamp(user, batchID string, at time.Time) {
	at = at.UTC()
	for i := range p.Entries {
		p.Entries[i].User = user
		p.Entries[i].BatchID = batchID
		p.Entries[i].Timestamp = at
	}
}

// BuildStatements produces one UPDATE per row that has a resolvable id and at
// least one assignable changed column. Rows that produce no statement also
// contribute no entries.
func BuildStatements(rows []RowDiff, table Table) Plan {
	var plan Plan
	for _, row := range rows {
		if row.ID == nil || len(row.Fields) == 0 {
			continue
		}

		var (
			sets    []string
			args    []any
			entries []Entry
		)
		for i, field := range row.Fields {
			if !table.editable(field.Column) {
				plan.Rejected = append(plan.Rejected, fmt.Sprintf("%v.%s", row.ID, field.Column))
				continue
			}
			args = append(args, bindValue(field.Value))
			sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{field.Column}.Sanitize(), len(args)))
			entries = append(entries, row.Entries[i])
		}
		if len(sets) == 0 {
			continue
		}

		args = append(args, bindValue(row.ID))
		sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
			pgx.Identifier{table.Name}.Sanitize(),
			strings.Join(sets, ", "),
			pgx.Identifier{table.Key}.Sanitize(),
			len(args),
		)
		plan.Statements = append(plan.Statements, Statement{SQL: sql, Args: args, RowID: row.ID})
		plan.Entries = append(plan.Entries, entries...)
	}
	return plan
}

// bindValue converts decoded JSON into driver friendly values. Integral
// numbers bind as int64; other numbers keep their literal text so NUMERIC
// columns receive exactly what the client sent.
func bindValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		return val.String()
	case map[string]any, []any, Record:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return val
	}
}
