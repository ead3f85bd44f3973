//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/finhr/backend/internal/domain/document"
	"github.com/finhr/backend/internal/domain/reference"
	"github.com/finhr/backend/internal/domain/sequence"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/finhr/backend/internal/infrastructure/migration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresDB starts a PostgreSQL container and applies the embedded migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("finhr_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := newPostgresDB(t)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("catalog scoped fetch", func(t *testing.T) {
		repo := NewGormCatalogRepository(db)
		require.NoError(t, repo.Save(ctx, tenantID, reference.KindCategory, reference.ReferenceRow{ID: "rent", ParentKey: reference.ParentOf("E1"), Label: "Rent"}))
		require.NoError(t, repo.Save(ctx, tenantID, reference.KindCategory, reference.ReferenceRow{ID: "fuel", ParentKey: reference.ParentOf("E2"), Label: "Fuel"}))
		require.NoError(t, repo.Save(ctx, tenantID, reference.KindCategory, reference.ReferenceRow{ID: "misc", Label: "Misc"}))

		rows, err := repo.FetchCatalog(ctx, reference.CatalogFilter{TenantID: tenantID, Kind: reference.KindCategory, ParentKey: "E1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"misc", "rent"}, ids(rows))
	})

	t.Run("document round trip keeps decimal amounts", func(t *testing.T) {
		repo := NewGormDocumentRepository(db)
		doc := createDocument(t, repo, tenantID, "DOC0001")

		found, err := repo.FindByIDForTenant(ctx, tenantID, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, "100", found.Header.AmountExclTax.String())
		result := document.Evaluate(found.Header, found.Lines, document.DefaultTolerance)
		assert.True(t, result.IsValid)

		exists, err := repo.ExistsByNumber(ctx, tenantID, "DOC0001")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("parallel allocations under row contention", func(t *testing.T) {
		repo := NewGormSequenceRepository(db)
		scope := sequence.Scope("employee")
		require.NoError(t, repo.Create(ctx, tenantID, scope, sequence.State{Prefix: "EMP", Width: 4}))
		assert.ErrorIs(t, repo.Create(ctx, tenantID, scope, sequence.State{}), shared.ErrAlreadyExists)

		const workers = 16
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			codes = map[string]bool{}
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
					code, next, _ := sequence.Next(state)
					if err := repo.CompareAndSwap(ctx, tenantID, scope, state, next); err == nil {
						mu.Lock()
						codes[code] = true
						mu.Unlock()
						return
					}
				}
			}()
		}
		wg.Wait()
		assert.Len(t, codes, workers)
	})
}
