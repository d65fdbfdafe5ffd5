// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package catalog holds the training catalog shown to signed-in users.
package catalog

import "context"

// Training is an entry in the catalog.
type Training struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

// Repository lists the training catalog.
type Repository interface {
	// List returns all trainings ordered by ID.
	List(ctx context.Context) ([]Training, error)
}
