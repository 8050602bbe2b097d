// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
	"github.com/VarshithSidhoju/sign-loginfull/internal/auth/postgres"
)

func newUser(name, email string) *auth.User {
	u, err := auth.NewUser(name, email, "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
	Expect(err).NotTo(HaveOccurred())
	return u
}

var _ = Describe("UserRepository", func() {
	var repo *postgres.UserRepository

	BeforeEach(func(ctx context.Context) {
		truncateUsers(ctx)
		repo = postgres.NewUserRepository(pool)
	})

	Describe("Create and lookup", func() {
		It("round-trips a user", func(ctx context.Context) {
			u := newUser("Ada Lovelace", "ada@example.com")
			Expect(repo.Create(ctx, u)).To(Succeed())

			byID, err := repo.GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Name).To(Equal("Ada Lovelace"))
			Expect(byID.Email).To(Equal("ada@example.com"))
			Expect(byID.PasswordHash).To(Equal(u.PasswordHash))
			Expect(byID.CreatedAt).To(BeTemporally("~", u.CreatedAt, time.Millisecond))

			byEmail, err := repo.GetByEmail(ctx, "ADA@Example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(u.ID))
		})

		It("reports missing users as ErrNotFound", func(ctx context.Context) {
			_, err := repo.GetByID(ctx, ulid.Make())
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

			_, err = repo.GetByEmail(ctx, "ghost@example.com")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})

		It("rejects a second account with the same email", func(ctx context.Context) {
			Expect(repo.Create(ctx, newUser("Ada", "ada@example.com"))).To(Succeed())

			err := repo.Create(ctx, newUser("Impostor", "ada@example.com"))
			Expect(errors.Is(err, auth.ErrEmailTaken)).To(BeTrue())
		})

		It("lets exactly one of many concurrent registrations win", func(ctx context.Context) {
			const racers = 12
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				wins    int
				taken   int
				unknown []error
			)
			for i := range racers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					err := repo.Create(ctx, newUser(fmt.Sprintf("Racer %d", i), "race@example.com"))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errors.Is(err, auth.ErrEmailTaken):
						taken++
					default:
						unknown = append(unknown, err)
					}
				}()
			}
			wg.Wait()

			Expect(unknown).To(BeEmpty())
			Expect(wins).To(Equal(1))
			Expect(taken).To(Equal(racers - 1))
		})
	})

	Describe("List", func() {
		It("returns users oldest first", func(ctx context.Context) {
			first := newUser("First", "first@example.com")
			second := newUser("Second", "second@example.com")
			second.CreatedAt = first.CreatedAt.Add(time.Second)
			Expect(repo.Create(ctx, second)).To(Succeed())
			Expect(repo.Create(ctx, first)).To(Succeed())

			users, err := repo.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))
			Expect(users[0].ID).To(Equal(first.ID))
			Expect(users[1].ID).To(Equal(second.ID))
		})

		It("returns an empty slice for an empty table", func(ctx context.Context) {
			users, err := repo.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).NotTo(BeNil())
			Expect(users).To(BeEmpty())
		})
	})

	Describe("Update", func() {
		It("persists changes", func(ctx context.Context) {
			u := newUser("Ada", "ada@example.com")
			Expect(repo.Create(ctx, u)).To(Succeed())

			u.Name = "Countess"
			u.Email = "countess@example.com"
			u.UpdatedAt = u.UpdatedAt.Add(time.Minute)
			Expect(repo.Update(ctx, u)).To(Succeed())

			got, err := repo.GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Countess"))
			Expect(got.Email).To(Equal("countess@example.com"))
		})

		It("refuses to take another user's email", func(ctx context.Context) {
			ada := newUser("Ada", "ada@example.com")
			grace := newUser("Grace", "grace@example.com")
			Expect(repo.Create(ctx, ada)).To(Succeed())
			Expect(repo.Create(ctx, grace)).To(Succeed())

			grace.Email = "ada@example.com"
			err := repo.Update(ctx, grace)
			Expect(errors.Is(err, auth.ErrEmailTaken)).To(BeTrue())
		})

		It("reports an unknown user as ErrNotFound on update", func(ctx context.Context) {
			u := newUser("Ada", "ada@example.com")
			Expect(errors.Is(repo.Update(ctx, u), auth.ErrNotFound)).To(BeTrue())
		})
	})
})
