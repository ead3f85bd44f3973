package persistence

import (
	"context"
	"sync"
	"testing"

	"github.com/finhr/backend/internal/domain/sequence"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSequenceRepository(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	scope := sequence.Scope("employee")
	initial := sequence.State{Prefix: "EMP", Width: 4}

	t.Run("create then fetch", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupTestDB(t))
		require.NoError(t, repo.Create(ctx, tenantID, scope, initial))

		state, err := repo.Fetch(ctx, tenantID, scope)
		require.NoError(t, err)
		assert.Equal(t, initial, state)

		err = repo.Create(ctx, tenantID, scope, initial)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("unknown scope", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupTestDB(t))
		_, err := repo.Fetch(ctx, tenantID, scope)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		err = repo.CompareAndSwap(ctx, tenantID, scope, initial, sequence.State{Prefix: "EMP", Counter: 1, Width: 4})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("invalid states are not stored", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupTestDB(t))
		err := repo.Create(ctx, tenantID, scope, sequence.State{Width: -1})
		assert.ErrorIs(t, err, sequence.ErrInvalidAllocatorState)
	})

	t.Run("compare and swap advances from the expected state only", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupTestDB(t))
		require.NoError(t, repo.Create(ctx, tenantID, scope, initial))

		code, next, err := sequence.Next(initial)
		require.NoError(t, err)
		assert.Equal(t, "EMP0001", code)
		require.NoError(t, repo.CompareAndSwap(ctx, tenantID, scope, initial, next))

		// A second caller that read the same initial state loses.
		err = repo.CompareAndSwap(ctx, tenantID, scope, initial, next)
		assert.ErrorIs(t, err, sequence.ErrAllocatorConflict)

		state, err := repo.Fetch(ctx, tenantID, scope)
		require.NoError(t, err)
		assert.Equal(t, int64(1), state.Counter)
	})

	t.Run("concurrent allocations never hand out the same code", func(t *testing.T) {
		repo := NewGormSequenceRepository(setupTestDB(t))
		require.NoError(t, repo.Create(ctx, tenantID, scope, initial))

		const workers = 8
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			codes = map[string]int{}
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					state, err := repo.Fetch(ctx, tenantID, scope)
					if err != nil {
						return
					}
					code, next, err := sequence.Next(state)
					if err != nil {
						return
					}
					err = repo.CompareAndSwap(ctx, tenantID, scope, state, next)
					if err == nil {
						mu.Lock()
						codes[code]++
						mu.Unlock()
						return
					}
					if !assert.ErrorIs(t, err, sequence.ErrAllocatorConflict) {
						return
					}
				}
			}()
		}
		wg.Wait()

		assert.Len(t, codes, workers)
		for code, n := range codes {
			assert.Equal(t, 1, n, code)
		}
		state, err := repo.Fetch(ctx, tenantID, scope)
		require.NoError(t, err)
		assert.Equal(t, int64(workers), state.Counter)
	})
}

func stateOf(prefix string, counter int64, width int) sequence.State {
	return sequence.State{Prefix: prefix, Counter: counter, Width: width}
}
