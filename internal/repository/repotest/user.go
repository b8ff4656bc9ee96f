// Package repotest holds behaviour tests shared by every UserRepository
// implementation.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jordansmalls/cs/internal/domain"
	"github.com/jordansmalls/cs/internal/repository"
)

// RunUserRepository exercises repo against the UserRepository contract.
// newRepo must return an empty repository for every call.
func RunUserRepository(t *testing.T, newRepo func(t *testing.T) repository.UserRepository) {
	t.Helper()

	t.Run("CreateAndGet", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		u := domain.NewUser("alice", "Alice@Example.com", "hash")
		require.NoError(t, repo.Create(ctx, u))

		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "alice", got.Username)
		require.Equal(t, "alice@example.com", got.Email)
		require.Equal(t, "hash", got.PasswordHash)
		require.True(t, got.IsActive)
		require.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Second)

		got, err = repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)

		got, err = repo.GetByEmail(ctx, "ALICE@example.COM")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		_, err = repo.GetByUsername(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		_, err = repo.GetByEmail(ctx, "missing@example.com")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		_, err = repo.GetByLogin(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrUserNotFound)

		_, err = repo.UpdateProfile(ctx, "missing", "ghost", "ghost@example.com")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		require.ErrorIs(t, repo.UpdatePassword(ctx, "missing", "hash"), domain.ErrUserNotFound)
		require.ErrorIs(t, repo.SetActive(ctx, "missing", false), domain.ErrUserNotFound)
	})

	t.Run("UsernameIsCaseSensitive", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, domain.NewUser("alice", "a@example.com", "hash")))
		require.NoError(t, repo.Create(ctx, domain.NewUser("Alice", "b@example.com", "hash")))

		_, err := repo.GetByUsername(ctx, "ALICE")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("GetByLogin", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		u := domain.NewUser("alice", "alice@example.com", "hash")
		require.NoError(t, repo.Create(ctx, u))

		for _, id := range []string{"alice", "alice@example.com", "ALICE@EXAMPLE.COM"} {
			got, err := repo.GetByLogin(ctx, id)
			require.NoError(t, err, id)
			require.Equal(t, u.ID, got.ID, id)
		}

		_, err := repo.GetByLogin(ctx, "ALICE")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, domain.NewUser("alice", "a@example.com", "hash")))
		err := repo.Create(ctx, domain.NewUser("alice", "b@example.com", "hash"))
		requireDuplicate(t, err, domain.FieldUsername)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, domain.NewUser("alice", "a@example.com", "hash")))
		err := repo.Create(ctx, domain.NewUser("bob", "A@Example.com", "hash"))
		requireDuplicate(t, err, domain.FieldEmail)
	})

	t.Run("UpdateProfile", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		u := domain.NewUser("alice", "alice@example.com", "hash")
		require.NoError(t, repo.Create(ctx, u))

		time.Sleep(5 * time.Millisecond)
		got, err := repo.UpdateProfile(ctx, u.ID, "alice2", "Alice2@Example.com")
		require.NoError(t, err)
		require.Equal(t, "alice2", got.Username)
		require.Equal(t, "alice2@example.com", got.Email)
		require.Equal(t, "hash", got.PasswordHash)
		require.True(t, got.IsActive)
		require.True(t, got.UpdatedAt.After(u.UpdatedAt))

		_, err = repo.GetByUsername(ctx, "alice")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		_, err = repo.GetByEmail(ctx, "alice@example.com")
		require.ErrorIs(t, err, domain.ErrUserNotFound)

		// An empty value keeps the column.
		got, err = repo.UpdateProfile(ctx, u.ID, "", "third@example.com")
		require.NoError(t, err)
		require.Equal(t, "alice2", got.Username)
		require.Equal(t, "third@example.com", got.Email)

		stored, err := repo.GetByLogin(ctx, "alice2")
		require.NoError(t, err)
		require.Equal(t, "third@example.com", stored.Email)
	})

	t.Run("UpdatePasswordAndSetActive", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		u := domain.NewUser("alice", "alice@example.com", "hash")
		require.NoError(t, repo.Create(ctx, u))

		require.NoError(t, repo.UpdatePassword(ctx, u.ID, "hash2"))
		require.NoError(t, repo.SetActive(ctx, u.ID, false))
		// Setting the same value again still succeeds.
		require.NoError(t, repo.SetActive(ctx, u.ID, false))

		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "hash2", got.PasswordHash)
		require.False(t, got.IsActive)
		require.Equal(t, "alice", got.Username)
		require.Equal(t, "alice@example.com", got.Email)
	})

	t.Run("WritesDoNotClobberEachOther", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		u := domain.NewUser("alice", "alice@example.com", "hash")
		require.NoError(t, repo.Create(ctx, u))

		// Both writers loaded the row before either wrote.
		stale, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)

		require.NoError(t, repo.SetActive(ctx, u.ID, false))
		require.NoError(t, repo.UpdatePassword(ctx, u.ID, "hash2"))
		_, err = repo.UpdateProfile(ctx, stale.ID, "alice2", "")
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, got.IsActive)
		require.Equal(t, "hash2", got.PasswordHash)
		require.Equal(t, "alice2", got.Username)
	})

	t.Run("UpdateConflict", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		alice := domain.NewUser("alice", "alice@example.com", "hash")
		bob := domain.NewUser("bob", "bob@example.com", "hash")
		require.NoError(t, repo.Create(ctx, alice))
		require.NoError(t, repo.Create(ctx, bob))

		_, err := repo.UpdateProfile(ctx, bob.ID, "alice", "")
		requireDuplicate(t, err, domain.FieldUsername)

		_, err = repo.UpdateProfile(ctx, bob.ID, "", "ALICE@example.com")
		requireDuplicate(t, err, domain.FieldEmail)

		// Keeping your own values is not a conflict.
		got, err := repo.UpdateProfile(ctx, bob.ID, "bob", "bob@example.com")
		require.NoError(t, err)
		require.Equal(t, "bob", got.Username)

		got, err = repo.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		require.Equal(t, "bob@example.com", got.Email)
	})

	t.Run("InactiveKeepsIdentifiersReserved", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		u := domain.NewUser("alice", "alice@example.com", "hash")
		require.NoError(t, repo.Create(ctx, u))
		require.NoError(t, repo.SetActive(ctx, u.ID, false))

		err := repo.Create(ctx, domain.NewUser("alice", "other@example.com", "hash"))
		require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	})

	t.Run("ConcurrentCreateSameUsername", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				u := domain.NewUser("racer", fmt.Sprintf("racer%d@example.com", i), "hash")
				errs[i] = repo.Create(ctx, u)
			}(i)
		}
		wg.Wait()

		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
		}
		require.Equal(t, 1, ok)
	})
}

func requireDuplicate(t *testing.T, err error, field string) {
	t.Helper()

	require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	var dup *domain.DuplicateFieldError
	require.True(t, errors.As(err, &dup), "expected DuplicateFieldError, got %v", err)
	require.Equal(t, field, dup.Field)
}
