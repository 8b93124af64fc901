package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	if !IsUniqueViolation(unique) {
		t.Error("wrapped 23505 should be a unique violation")
	}
	if IsUniqueViolation(fk) {
		t.Error("23503 is not a unique violation")
	}
	if !IsForeignKeyViolation(fk) {
		t.Error("23503 should be a foreign key violation")
	}
	if IsUniqueViolation(errors.New("plain")) || IsUniqueViolation(nil) {
		t.Error("non-pg errors must not match")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := embedMigrations.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected users and notifications migrations, got %d files", len(entries))
	}
}
