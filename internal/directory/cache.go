// Package directory keeps a local SQLite cache of the platform's user
// and branch directory, synced from the REST backend. Roster assembly
// and branch scoping read from here instead of hitting the backend on
// every request.
package directory

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fitwellhq/supportchat/internal/models"
)

// Cache is the SQLite-backed directory cache.
type Cache struct {
	db *sql.DB
}

// Syncer fetches the directory from the backend. Satisfied by the
// backend REST client.
type Syncer interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListBranches(ctx context.Context) ([]models.Branch, error)
}

// NewCache opens (or creates) the cache database.
// If dbPath is empty, defaults to "./data/directory.db"
func NewCache(ctx context.Context, dbPath string) (*Cache, error) {
	if dbPath == "" {
		dbPath = "./data/directory.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	cache := &Cache{db: db}

	if err := cache.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return cache, nil
}

// initSchema creates tables if they don't exist.
func (c *Cache) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		phone TEXT DEFAULT '',
		area TEXT DEFAULT '',
		branch_id TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS branches (
		id TEXT PRIMARY KEY,
		name TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_users_branch ON users(branch_id);
	`

	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Ping checks the database connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Sync replaces the cached directory with a fresh copy from the
// backend. The swap is transactional so readers never observe a
// half-synced directory.
func (c *Cache) Sync(ctx context.Context, source Syncer) error {
	users, err := source.ListUsers(ctx)
	if err != nil {
		return err
	}
	branches, err := source.ListBranches(ctx)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM branches`); err != nil {
		return err
	}

	for _, u := range users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, name, phone, area, branch_id)
			VALUES (?, ?, ?, ?, ?)
		`, u.ID, u.Name, u.Phone, u.Area, u.BranchID)
		if err != nil {
			return err
		}
	}
	for _, b := range branches {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO branches (id, name) VALUES (?, ?)
		`, b.ID, b.Name)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Users returns all cached users.
func (c *Cache) Users(ctx context.Context) ([]models.User, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, phone, area, branch_id FROM users
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Phone, &u.Area, &u.BranchID); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserByID returns the cached user, or nil if unknown.
func (c *Cache) UserByID(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, phone, area, branch_id FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.Phone, &u.Area, &u.BranchID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Branches returns all cached branches.
func (c *Cache) Branches(ctx context.Context) ([]models.Branch, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name FROM branches`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []models.Branch
	for rows.Next() {
		var b models.Branch
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}
