package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

func TestUndefinedColumn(t *testing.T) {
	tests := []struct {
		name string
		err  error
		col  string
		ok   bool
	}{
		{"nil", nil, "", false},
		{"pg relation", &pgconn.PgError{Code: "42703", Message: `column "timezone" of relation "user_profiles" does not exist`}, "timezone", true},
		{"pg qualified", &pgconn.PgError{Code: "42703", Message: `column "p.foo" does not exist`}, "foo", true},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "42703", Message: `column "bar" does not exist`}), "bar", true},
		{"other code", &pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "x"`}, "", false},
		{"rest style", errors.New("Could not find the 'location' column of 'user_profiles' in the schema cache"), "location", true},
		{"plain", errors.New("connection refused"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, ok := UndefinedColumn(tt.err)
			if col != tt.col || ok != tt.ok {
				t.Errorf("UndefinedColumn() = (%q, %v), want (%q, %v)", col, ok, tt.col, tt.ok)
			}
		})
	}
}

func missing(col string) error {
	return &pgconn.PgError{Code: "42703", Message: fmt.Sprintf(`column "%s" of relation "user_profiles" does not exist`, col)}
}

func TestWriteTolerantDropsUnknownColumns(t *testing.T) {
	var calls int
	var final map[string]any
	fields := map[string]any{"name": "Ian", "timezone": "UTC", "location": "NYC"}

	warnings, err := WriteTolerant(zap.NewNop(), "user_profiles", fields, func(p map[string]any) error {
		calls++
		for _, c := range []string{"location", "timezone"} {
			if _, ok := p[c]; ok {
				return missing(c)
			}
		}
		final = p
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v", warnings)
	}
	if !strings.Contains(warnings[0], "location") || !strings.Contains(warnings[1], "timezone") {
		t.Errorf("warnings = %v", warnings)
	}
	if len(final) != 1 || final["name"] != "Ian" {
		t.Errorf("final payload = %v", final)
	}
	if _, ok := fields["timezone"]; !ok {
		t.Error("caller map must not be mutated")
	}
}

func TestWriteTolerantStopsWhenColumnNotInPayload(t *testing.T) {
	var calls int
	_, err := WriteTolerant(nil, "user_profiles", map[string]any{"name": "x"}, func(map[string]any) error {
		calls++
		return missing("updated_at")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWriteTolerantReturnsOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := WriteTolerant(nil, "t", map[string]any{"a": 1}, func(map[string]any) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildUpdate(t *testing.T) {
	query, args, err := buildUpdate("athlete_profiles", "id", "a1", map[string]any{
		"is_public":    false,
		"profile_json": map[string]any{"pb_mile": "5:00"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "UPDATE athlete_profiles SET is_public=$1, profile_json=$2, updated_at=NOW() WHERE id=$3 RETURNING *"
	if query != want {
		t.Errorf("query = %q", query)
	}
	if len(args) != 3 || args[1] != `{"pb_mile":"5:00"}` || args[2] != "a1" {
		t.Errorf("args = %#v", args)
	}
}

func TestBuildInsertRejectsBadColumn(t *testing.T) {
	_, _, err := buildInsert("athlete_profiles", map[string]any{"id; DROP TABLE x": 1})
	if !errors.Is(err, ErrBadColumn) {
		t.Fatalf("err = %v", err)
	}
}

func TestNilDatabase(t *testing.T) {
	s := NewIdentities(nil, zap.NewNop())
	if _, err := s.Get(t.Context(), "u1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestPrepareCreate(t *testing.T) {
	p, err := PrepareCreate("u1", map[string]any{"weekly_miles": 40.0})
	if err != nil {
		t.Fatal(err)
	}
	if p["user_id"] != "u1" || p["is_public"] != true || p["id"] == "" {
		t.Errorf("payload = %v", p)
	}
	if _, err := PrepareCreate("u1", map[string]any{"profile_json": map[string]any{"email": "a@b.c"}}); err == nil {
		t.Fatal("personal data must be rejected")
	}
	p, _ = PrepareCreate("u1", map[string]any{"is_public": false})
	if p["is_public"] != false {
		t.Error("explicit is_public must be kept")
	}
}
