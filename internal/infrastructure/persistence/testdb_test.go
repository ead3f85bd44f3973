package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database with the service tables
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// Every pooled connection would get its own empty :memory: database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	statements := []string{
		`CREATE TABLE reference_rows (
			tenant_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			parent_key TEXT,
			code TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (tenant_id, kind, id)
		)`,
		`CREATE TABLE documents (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			number TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'DRAFT',
			document_date DATETIME,
			entity_id TEXT,
			counterparty_id TEXT,
			category_id TEXT,
			sub_category_id TEXT,
			description TEXT,
			amount_excl_tax TEXT NOT NULL DEFAULT '0',
			tax_amount TEXT NOT NULL DEFAULT '0',
			amount_incl_tax TEXT NOT NULL DEFAULT '0',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(tenant_id, number)
		)`,
		`CREATE TABLE document_lines (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			amount_excl_tax TEXT NOT NULL DEFAULT '0',
			tax_amount TEXT NOT NULL DEFAULT '0',
			category_id TEXT,
			sub_category_id TEXT,
			label TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE sequence_states (
			tenant_id TEXT NOT NULL,
			scope TEXT NOT NULL,
			prefix TEXT NOT NULL DEFAULT '',
			counter INTEGER NOT NULL DEFAULT 0,
			width INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (tenant_id, scope)
		)`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}
