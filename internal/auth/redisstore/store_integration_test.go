// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package redisstore_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/trainhub/internal/auth"
	"github.com/holomush/trainhub/internal/auth/redisstore"
)

var _ = Describe("SessionStore", Ordered, func() {
	var (
		ctx       context.Context
		container testcontainers.Container
		client    *redis.Client
		store     *redisstore.SessionStore
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
			},
			Started: true,
		})
		Expect(err).NotTo(HaveOccurred())

		endpoint, err := container.Endpoint(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		client = redis.NewClient(&redis.Options{Addr: endpoint})
		Expect(client.Ping(ctx).Err()).To(Succeed())
		store = redisstore.NewSessionStore(client)
	})

	AfterAll(func() {
		if client != nil {
			_ = client.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	BeforeEach(func() {
		Expect(client.FlushDB(ctx).Err()).To(Succeed())
	})

	newSession := func(expiresIn time.Duration) *auth.Session {
		now := time.Now().UTC().Truncate(time.Millisecond)
		s, err := auth.NewSession(ulid.Make(), now, now.Add(expiresIn))
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	It("round-trips a session", func() {
		s := newSession(time.Hour)
		Expect(store.Put(ctx, s)).To(Succeed())

		got, err := store.Get(ctx, s.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UserID).To(Equal(s.UserID))
		Expect(got.Fresh).To(BeTrue())
		Expect(got.ExpiresAt.Equal(s.ExpiresAt)).To(BeTrue())
	})

	It("sets the key TTL to the remaining lifetime", func() {
		s := newSession(time.Hour)
		Expect(store.Put(ctx, s)).To(Succeed())

		ttl, err := client.TTL(ctx, "session:"+s.ID).Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(ttl).To(BeNumerically("~", time.Hour, 5*time.Second))
	})

	It("updates freshness and expiry on put", func() {
		s := newSession(time.Hour)
		Expect(store.Put(ctx, s)).To(Succeed())
		s.Fresh = false
		s.ExpiresAt = s.ExpiresAt.Add(time.Hour)
		Expect(store.Put(ctx, s)).To(Succeed())

		got, err := store.Get(ctx, s.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Fresh).To(BeFalse())
		Expect(got.ExpiresAt.Equal(s.ExpiresAt)).To(BeTrue())
	})

	It("refreshes an existing session and its TTL", func() {
		s := newSession(time.Hour)
		Expect(store.Put(ctx, s)).To(Succeed())
		s.Fresh = false
		s.ExpiresAt = s.ExpiresAt.Add(time.Hour)
		Expect(store.Refresh(ctx, s)).To(Succeed())

		got, err := store.Get(ctx, s.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Fresh).To(BeFalse())
		ttl, err := client.TTL(ctx, "session:"+s.ID).Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(ttl).To(BeNumerically("~", 2*time.Hour, 5*time.Second))
	})

	It("does not recreate a deleted session on refresh", func() {
		s := newSession(time.Hour)
		Expect(store.Put(ctx, s)).To(Succeed())
		Expect(store.Delete(ctx, s.ID)).To(Succeed())

		Expect(store.Refresh(ctx, s)).To(MatchError(auth.ErrNotFound))
		_, err := store.Get(ctx, s.ID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("reports missing sessions as not found", func() {
		_, err := store.Get(ctx, "missing")
		Expect(err).To(MatchError(auth.ErrNotFound))
		Expect(store.Delete(ctx, "missing")).To(MatchError(auth.ErrNotFound))
	})

	It("deletes sessions", func() {
		s := newSession(time.Hour)
		Expect(store.Put(ctx, s)).To(Succeed())
		Expect(store.Delete(ctx, s.ID)).To(Succeed())

		_, err := store.Get(ctx, s.ID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("sweeps sessions expiring at or before the cutoff", func() {
		soon := newSession(time.Minute)
		later := newSession(time.Hour)
		Expect(store.Put(ctx, soon)).To(Succeed())
		Expect(store.Put(ctx, later)).To(Succeed())

		n, err := store.DeleteExpiredBefore(ctx, soon.ExpiresAt)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		_, err = store.Get(ctx, later.ID)
		Expect(err).NotTo(HaveOccurred())
	})
})
