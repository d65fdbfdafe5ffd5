// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

// pgxQuerier is the subset of *pgxpool.Pool PostgresRepository uses.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository creates a new PostgreSQL catalog repository.
func NewPostgresRepository(pool pgxQuerier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// List returns all trainings ordered by ID.
func (r *PostgresRepository) List(ctx context.Context) ([]Training, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, image, description FROM trainings ORDER BY id`)
	if err != nil {
		return nil, oops.Code("CATALOG_LIST_FAILED").With("operation", "query trainings").Wrap(err)
	}
	defer rows.Close()

	trainings := []Training{}
	for rows.Next() {
		var t Training
		if err := rows.Scan(&t.ID, &t.Title, &t.Image, &t.Description); err != nil {
			return nil, oops.Code("CATALOG_LIST_FAILED").With("operation", "scan training").Wrap(err)
		}
		trainings = append(trainings, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CATALOG_LIST_FAILED").With("operation", "iterate trainings").Wrap(err)
	}
	return trainings, nil
}

var _ Repository = (*PostgresRepository)(nil)
