package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mentormatch/internal/app/db"
)

// PostgresStore is a Store backed by the users table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a PostgresStore using pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = `id, name, email, role, password_hash, created_at`

func (s *PostgresStore) Create(ctx context.Context, account *Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, role, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, account.Name, NormalizeEmail(account.Email), account.Role,
		account.PasswordHash, account.CreatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email))
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &a, nil
}
