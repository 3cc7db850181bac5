package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore je trvalá varianta Store (STORE_BACKEND=postgres).
// Zbytek aplikace neví, jak se píše SQL, jen volá Insert/List.
type PostgresStore struct {
	pool     *pgxpool.Pool // Pool spojení, je thread-safe
	pageSize int
}

// NewPostgresStore vytvoří pool, ověří spojení a připraví tabulku.
func NewPostgresStore(ctx context.Context, url string, pageSize int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chyba konfigurace DB: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("DB není dostupná: %w", err)
	}

	s := &PostgresStore{pool: pool, pageSize: pageSize}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS lectures (
			id          BIGSERIAL PRIMARY KEY,
			received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			device_id   BIGINT NOT NULL,
			frecuencia  DOUBLE PRECISION,
			energia     DOUBLE PRECISION,
			potencia    DOUBLE PRECISION,
			fp          DOUBLE PRECISION,
			corriente   DOUBLE PRECISION
		)
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("nelze vytvořit tabulku lectures: %w", err)
	}
	return nil
}

// Close uzavře pool při ukončení aplikace.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Insert uloží jednu lecturu. NULL sloupce odpovídají nil pointerům.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO lectures (device_id, frecuencia, energia, potencia, fp, corriente)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		rec.DeviceID, rec.Frequency, rec.Energy, rec.Power, rec.PowerFactor, rec.Current)
	if err != nil {
		return fmt.Errorf("chyba insertu do PG: %w", err)
	}
	return nil
}

// List vrací stránku lectur v pořadí vložení (podle id).
func (s *PostgresStore) List(ctx context.Context, page int) ([]Record, error) {
	if page < 0 {
		return nil, fmt.Errorf("%w: stránka %d je záporná", ErrInvalidArgument, page)
	}

	query := `
		SELECT device_id, frecuencia, energia, potencia, fp, corriente
		FROM lectures
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.pool.Query(ctx, query, s.pageSize, int64(page)*int64(s.pageSize))
	if err != nil {
		return nil, fmt.Errorf("chyba načítání lectur: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, s.pageSize)
	for rows.Next() {
		var rec Record
		// pgx umí NULL nahrát do *float64
		if err := rows.Scan(&rec.DeviceID, &rec.Frequency, &rec.Energy, &rec.Power, &rec.PowerFactor, &rec.Current); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chyba iterace lectur: %w", err)
	}
	return records, nil
}

// PageSize vrací velikost stránky, kterou List používá.
func (s *PostgresStore) PageSize() int { return s.pageSize }
