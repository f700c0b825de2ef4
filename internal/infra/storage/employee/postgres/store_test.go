package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/streambatch/internal/domain/employee"
	"github.com/ahrav/streambatch/internal/infra/storage"
	"github.com/ahrav/streambatch/internal/testutil"
)

func TestEmployeeStore_SaveAndGet(t *testing.T) {
	t.Parallel()

	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	e := testutil.NewEmployeeBuilder().Build()
	require.NoError(t, store.Save(ctx, e))

	got, err := store.Get(ctx, e.EmployeeID)
	require.NoError(t, err)
	assert.Equal(t, e.EmployeeID, got.EmployeeID)
	assert.Equal(t, e.Email, got.Email)
	assert.Equal(t, e.FirstName, got.FirstName)
	assert.Equal(t, e.LastName, got.LastName)
	assert.True(t, e.DateOfBirth.Equal(got.DateOfBirth))
	assert.True(t, e.DateOfJoining.Equal(got.DateOfJoining))

	t.Run("save is idempotent and overwrites", func(t *testing.T) {
		updated := e
		updated.Email = "renamed@example.com"
		updated.DateOfJoining = time.Date(2021, time.July, 1, 0, 0, 0, 0, time.UTC)

		require.NoError(t, store.Save(ctx, updated))
		require.NoError(t, store.Save(ctx, updated))

		got, err := store.Get(ctx, e.EmployeeID)
		require.NoError(t, err)
		assert.Equal(t, "renamed@example.com", got.Email)
		assert.True(t, updated.DateOfJoining.Equal(got.DateOfJoining))
	})

	t.Run("missing employee", func(t *testing.T) {
		_, err := store.Get(ctx, "does-not-exist")
		assert.ErrorIs(t, err, employee.ErrNotFound)
	})
}
