// Package store persists identities, performance artifacts and interview
// sessions in Postgres through sqlx.
//
// Writes tolerate schema drift: when Postgres rejects a write because a column
// does not exist yet, the offending key is dropped from the payload, the write
// is retried, and a warning is returned to the caller instead of an error.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("database unavailable")
	ErrBadColumn   = errors.New("invalid column name")
)

// undefinedColumnCode is the SQLSTATE for undefined_column.
const undefinedColumnCode = "42703"

var (
	pgColumnRe   = regexp.MustCompile(`column "([^"]+)"`)
	restColumnRe = regexp.MustCompile(`Could not find the '([^']+)' column`)
	identRe      = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// UndefinedColumn reports the column named by an "unknown column" error.
func UndefinedColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != undefinedColumnCode {
			return "", false
		}
		if m := pgColumnRe.FindStringSubmatch(pgErr.Message); m != nil {
			return columnName(m[1]), true
		}
		return "", false
	}
	if m := restColumnRe.FindStringSubmatch(err.Error()); m != nil {
		return m[1], true
	}
	return "", false
}

// columnName strips a table qualifier such as user_profiles.foo.
func columnName(s string) string {
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

// WriteTolerant calls write with fields and, each time the store rejects a key
// as an unknown column, retries without that key. The payload shrinks on every
// retry so the loop ends. Each dropped key yields one warning.
func WriteTolerant(log *zap.Logger, table string, fields map[string]any, write func(map[string]any) error) ([]string, error) {
	payload := make(map[string]any, len(fields))
	for k, v := range fields {
		payload[k] = v
	}

	var warnings []string
	for {
		err := write(payload)
		if err == nil {
			return warnings, nil
		}
		col, ok := UndefinedColumn(err)
		if !ok {
			return warnings, err
		}
		if _, present := payload[col]; !present {
			return warnings, err
		}
		delete(payload, col)
		msg := fmt.Sprintf("column %q does not exist on %s; value was not saved", col, table)
		if log != nil {
			log.Warn("schema drift, retrying without column",
				zap.String("table", table),
				zap.String("column", col),
			)
		}
		warnings = append(warnings, msg)
	}
}

// sortedColumns validates and orders the keys of a write payload.
func sortedColumns(fields map[string]any) ([]string, error) {
	cols := make([]string, 0, len(fields))
	for k := range fields {
		if !identRe.MatchString(k) {
			return nil, fmt.Errorf("%w: %q", ErrBadColumn, k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols, nil
}

// dbValue converts nested JSON-ish values into text Postgres accepts for JSONB.
func dbValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any, []string, map[string]float64:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

// buildUpdate renders UPDATE table SET ... WHERE key=$n RETURNING *.
func buildUpdate(table, key string, keyValue any, fields map[string]any) (string, []any, error) {
	cols, err := sortedColumns(fields)
	if err != nil {
		return "", nil, err
	}
	setClauses := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		v, err := dbValue(fields[c])
		if err != nil {
			return "", nil, fmt.Errorf("encode %s: %w", c, err)
		}
		args = append(args, v)
		setClauses = append(setClauses, fmt.Sprintf("%s=$%d", c, len(args)))
	}
	setClauses = append(setClauses, "updated_at=NOW()")
	args = append(args, keyValue)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s=$%d RETURNING *",
		table, strings.Join(setClauses, ", "), key, len(args))
	return query, args, nil
}

// buildInsert renders INSERT INTO table (...) VALUES (...) RETURNING *.
func buildInsert(table string, fields map[string]any) (string, []any, error) {
	cols, err := sortedColumns(fields)
	if err != nil {
		return "", nil, err
	}
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		v, err := dbValue(fields[c])
		if err != nil {
			return "", nil, fmt.Errorf("encode %s: %w", c, err)
		}
		args[i] = v
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args, nil
}

// conn returns an unsafe view of db so SELECT * tolerates columns the structs
// do not know about.
func conn(db *sqlx.DB) (*sqlx.DB, error) {
	if db == nil {
		return nil, ErrUnavailable
	}
	return db.Unsafe(), nil
}
