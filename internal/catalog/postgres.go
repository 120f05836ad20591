package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

const schema = `CREATE TABLE IF NOT EXISTS cards (
	set_code    TEXT NOT NULL,
	card_number TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL,
	PRIMARY KEY (set_code, card_number)
)`

// PostgresStore serves the catalog from a PostgreSQL table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn, verifies the connection and creates the cards
// table when it does not exist.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Find implements Store.
func (s *PostgresStore) Find(ctx context.Context, setCode, cardNumber string) (Card, error) {
	c := Card{}
	err := s.db.QueryRowContext(ctx,
		`SELECT set_code, card_number, name, url FROM cards WHERE set_code = $1 AND card_number = $2`,
		strings.ToUpper(setCode), cardNumber,
	).Scan(&c.SetCode, &c.CardNumber, &c.Name, &c.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, fmt.Errorf("%s %s: %w", setCode, cardNumber, ErrNotFound)
	}
	if err != nil {
		return Card{}, fmt.Errorf("failed to query card: %w", err)
	}
	return c, nil
}

// Upsert inserts or updates cards in one transaction.
func (s *PostgresStore) Upsert(ctx context.Context, cards []Card) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cards (set_code, card_number, name, url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (set_code, card_number) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cards {
		if _, err := stmt.ExecContext(ctx, strings.ToUpper(c.SetCode), c.CardNumber, c.Name, c.URL); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", c.Key(), err)
		}
	}
	return tx.Commit()
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
