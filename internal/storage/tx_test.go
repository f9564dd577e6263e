package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert folder: %w", &pgconn.PgError{Code: "23505"})
	foreign := &pgconn.PgError{Code: "23503"}

	if !IsUniqueViolation(unique) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if IsUniqueViolation(foreign) {
		t.Fatalf("23503 is not a unique violation")
	}
	if !IsForeignKeyViolation(foreign) {
		t.Fatalf("expected 23503 to be a foreign key violation")
	}
	if IsForeignKeyViolation(errors.New("boom")) {
		t.Fatalf("plain errors are not pg errors")
	}
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected at least one migration")
	}
}
