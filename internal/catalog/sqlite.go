// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package catalog

import (
	"context"
	"database/sql"

	"github.com/samber/oops"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite catalog repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all trainings ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Training, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, image, description FROM trainings ORDER BY id`)
	if err != nil {
		return nil, oops.Code("CATALOG_LIST_FAILED").With("operation", "query trainings").Wrap(err)
	}
	defer func() { _ = rows.Close() }()

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

var _ Repository = (*SQLiteRepository)(nil)
