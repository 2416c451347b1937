package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lms-test-service/internal/domain"
)

// TestLoader loads test definition JSONB from Postgres.
type TestLoader struct {
	pool *pgxpool.Pool
}

func NewTestLoader(pool *pgxpool.Pool) *TestLoader {
	return &TestLoader{pool: pool}
}

func (l *TestLoader) LoadTest(ctx context.Context, testID string) (domain.TestDefinition, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM tests WHERE id=$1`, testID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TestDefinition{}, domain.ErrTestNotFound
	}
	if err != nil {
		return domain.TestDefinition{}, fmt.Errorf("load test: %w", err)
	}
	return decodeTest(testID, raw)
}

func (l *TestLoader) LoadTests(ctx context.Context) ([]domain.TestDefinition, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, data FROM tests ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()

	var tests []domain.TestDefinition
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		test, err := decodeTest(id, raw)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	return tests, rows.Err()
}

func decodeTest(id string, raw []byte) (domain.TestDefinition, error) {
	var test domain.TestDefinition
	if err := json.Unmarshal(raw, &test); err != nil {
		return domain.TestDefinition{}, fmt.Errorf("unmarshal test %s: %w", id, err)
	}
	// the row key is authoritative
	test.ID = id
	return test, nil
}
