package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpPgx(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_assigns_issue_accepted", TableName: "assigns", Message: "duplicate key value"}
	err := Wrap(CodeConflict, fmt.Errorf("accept assign: %w", pgErr), "assign already accepted")

	d := Dump(err)
	if d.Code != CodeConflict || d.Driver != "pgx" || d.DBCode != "23505" || d.DBConstraint != "ux_assigns_issue_accepted" {
		t.Fatalf("unexpected dump %+v", d)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected wrapped chain, got %v", d.Chain)
	}
}

func TestDumpSQLiteUnique(t *testing.T) {
	err := fmt.Errorf("create assign: %w", stdErrors.New("UNIQUE constraint failed: assigns.issue_id"))

	d := Dump(err)
	if d.Driver != "sqlite" || d.DBCode != "UNIQUE" || d.DBTable != "assigns" || d.DBColumn != "issue_id" {
		t.Fatalf("unexpected dump %+v", d)
	}
	fields := d.Fields()
	if fields["db_table"] != "assigns" {
		t.Fatalf("expected db_table field, got %v", fields)
	}
}

func TestDumpSQLiteCheck(t *testing.T) {
	d := Dump(stdErrors.New("CHECK constraint failed: ck_rule_values_single"))
	if d.DBCode != "CHECK" || d.DBConstraint != "ck_rule_values_single" {
		t.Fatalf("unexpected dump %+v", d)
	}
}

func TestDumpPlainErrorHasNoStorageFields(t *testing.T) {
	d := Dump(Wrap(CodeDependency, stdErrors.New("redis: connection refused"), "cache unavailable"))
	if d.Driver != "" || !d.Retryable {
		t.Fatalf("unexpected dump %+v", d)
	}
	if _, ok := d.Fields()["db_code"]; ok {
		t.Fatal("db_code should be omitted")
	}
}
