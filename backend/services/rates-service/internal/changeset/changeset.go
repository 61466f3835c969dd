// Package changeset turns client submitted before/after rate records into
// per-field diffs and parameterized UPDATE statements.
package changeset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is returned when a request body does not carry a usable change list.
var ErrMalformed = errors.New("changeset: malformed change request")

// Record is a rate row as submitted by the client. Numbers keep their literal
// text as json.Number.
type Record map[string]any

// Change pairs the row the client loaded with the row it wants stored.
type Change struct {
	Original Record `json:"original"`
	Updated  Record `json:"updated"`
}

// FieldChange is one column assignment. A nil Value is stored as NULL.
type FieldChange struct {
	Column string
	Value  any
}

// RowDiff is the outcome of comparing one Change.
type RowDiff struct {
	// ID is the resolved row identifier, nil when neither record carries one.
	ID      any
	Fields  []FieldChange
	Entries []Entry
}

// Entry describes a single changed field for audit and notification purposes.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	BatchID     string    `json:"batch_id,omitempty"`
	SPL         any       `json:"spl"`
	UtilityName any       `json:"utility_name"`
	RateID      any       `json:"rate_id"`
	Field       string    `json:"field"`
	From        any       `json:"from"`
	To          any       `json:"to"`
}

// Decode parses a {"changes": [...]} body. Every element must carry object
// valued original and updated records.
func Decode(r io.Reader) ([]Change, error) {
	var body struct {
		Changes json.RawMessage `json:"changes"`
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	raw := bytes.TrimSpace(body.Changes)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: changes must be an array", ErrMalformed)
	}

	var items []struct {
		Original json.RawMessage `json:"original"`
		Updated  json.RawMessage `json:"updated"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	changes := make([]Change, 0, len(items))
	for i, item := range items {
		original, err := decodeRecord(item.Original)
		if err != nil {
			return nil, fmt.Errorf("%w: changes[%d].original: %v", ErrMalformed, i, err)
		}
		updated, err := decodeRecord(item.Updated)
		if err != nil {
			return nil, fmt.Errorf("%w: changes[%d].updated: %v", ErrMalformed, i, err)
		}
		changes = append(changes, Change{Original: original, Updated: updated})
	}
	return changes, nil
}

func decodeRecord(raw json.RawMessage) (Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, errors.New("expected an object")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Diff compares each pair key by key over the updated record. Two values are
// equal only when their string forms are identical, so "1.50" and 1.5 differ.
// Keys are visited in sorted order so generated SQL is stable.
func Diff(changes []Change) []RowDiff {
	rows := make([]RowDiff, 0, len(changes))
	for _, change := range changes {
		row := RowDiff{ID: resolveID(change)}

		keys := make([]string, 0, len(change.Updated))
		for key := range change.Updated {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if key == KeyColumn {
				continue
			}
			to := change.Updated[key]
			from, present := change.Original[key]
			if stringForm(to, true) == stringForm(from, present) {
				continue
			}

			row.Fields = append(row.Fields, FieldChange{Column: key, Value: normalize(to)})
			row.Entries = append(row.Entries, Entry{
				SPL:         change.Original["SPL"],
				UtilityName: change.Original["SPL_Utility_Name"],
				RateID:      change.Original["Rate_ID"],
				Field:       key,
				From:        from,
				To:          to,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// resolveID prefers updated.id and falls back to original.id. Falsy ids
// (missing, null, "", 0, false) do not resolve.
func resolveID(change Change) any {
	if id := change.Updated[KeyColumn]; truthy(id) {
		return id
	}
	if id := change.Original[KeyColumn]; truthy(id) {
		return id
	}
	return nil
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val != ""
		}
		return f != 0
	case float64:
		return val != 0
	case int64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}

func normalize(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return v
}

func stringForm(v any, present bool) string {
	if !present {
		return "undefined"
	}
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			if item != nil {
				parts[i] = stringForm(item, true)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any, Record:
		return "[object Object]"
	default:
		return fmt.Sprint(val)
	}
}
