// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/trainhub/internal/auth"
	"github.com/holomush/trainhub/internal/store"
)

var _ = Describe("PostgreSQL backend", Ordered, func() {
	var (
		ctx     context.Context
		backend *store.Backend
	)

	BeforeAll(func() {
		ctx = context.Background()
	})

	AfterAll(func() {
		if backend != nil {
			Expect(backend.Close()).To(Succeed())
		}
	})

	Describe("migrations", func() {
		It("walks the full migration cycle", func() {
			migrator, err := store.NewMigrator(store.DriverPostgres, connStr)
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = migrator.Close() }()

			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())
			Expect(dirty).To(BeFalse())

			Expect(migrator.Up()).To(Succeed())
			latest, _, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(latest).To(BeNumerically(">", 0))

			Expect(migrator.Steps(-1)).To(Succeed())
			version, _, err = migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(latest - 1))

			Expect(migrator.Down()).To(Succeed())
			version, _, err = migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())

			Expect(migrator.Up()).To(Succeed())
			status, err := migrator.Status()
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Pending()).To(BeZero())
		})
	})

	Describe("repositories", func() {
		BeforeAll(func() {
			var err error
			backend, err = store.Open(ctx, store.Config{
				Driver:          store.DriverPostgres,
				URL:             connStr,
				ConnectAttempts: 3,
			}, slog.Default())
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.Ping(ctx)).To(Succeed())
		})

		It("creates and finds users", func() {
			user, err := backend.Users.Create(ctx, "pg@example.com", "digest:salt")
			Expect(err).NotTo(HaveOccurred())

			found, err := backend.Users.GetByEmail(ctx, "pg@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(user.ID))

			byID, err := backend.Users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Email).To(Equal("pg@example.com"))
		})

		It("rejects a duplicate email", func() {
			_, err := backend.Users.Create(ctx, "dup@example.com", "digest:salt")
			Expect(err).NotTo(HaveOccurred())

			_, err = backend.Users.Create(ctx, "dup@example.com", "other:salt")
			Expect(errors.Is(err, auth.ErrDuplicateEmail)).To(BeTrue())
		})

		It("stores, refreshes, sweeps and deletes sessions", func() {
			user, err := backend.Users.Create(ctx, "sessions@example.com", "digest:salt")
			Expect(err).NotTo(HaveOccurred())

			now := time.Now().UTC().Truncate(time.Microsecond)
			live, err := auth.NewSession(user.ID, now, now.Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.Sessions.Put(ctx, live)).To(Succeed())

			expired, err := auth.NewSession(user.ID, now.Add(-2*time.Hour), now.Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.Sessions.Put(ctx, expired)).To(Succeed())

			live.Fresh = false
			live.ExpiresAt = now.Add(2 * time.Hour)
			Expect(backend.Sessions.Refresh(ctx, live)).To(Succeed())

			got, err := backend.Sessions.Get(ctx, live.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Fresh).To(BeFalse())
			Expect(got.ExpiresAt).To(BeTemporally("==", live.ExpiresAt))

			swept, err := backend.Sessions.DeleteExpiredBefore(ctx, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(swept).To(BeNumerically(">=", 1))
			_, err = backend.Sessions.Get(ctx, expired.ID)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

			Expect(backend.Sessions.Delete(ctx, live.ID)).To(Succeed())
			Expect(errors.Is(backend.Sessions.Delete(ctx, live.ID), auth.ErrNotFound)).To(BeTrue())

			Expect(errors.Is(backend.Sessions.Refresh(ctx, live), auth.ErrNotFound)).To(BeTrue())
			_, err = backend.Sessions.Get(ctx, live.ID)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue(), "refresh must not recreate a deleted session")
		})

		It("refuses a session for a missing user", func() {
			now := time.Now()
			orphan, err := auth.NewSession(ulid.Make(), now, now.Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(errors.Is(backend.Sessions.Put(ctx, orphan), auth.ErrNotFound)).To(BeTrue())
		})

		It("lists the seeded training catalog", func() {
			trainings, err := backend.Trainings.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(trainings).To(HaveLen(7))
		})
	})
})
