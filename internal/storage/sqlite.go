// Package storage handles database connections, schema migrations, and data operations using SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/woozymasta/pitwall/assets"
	"github.com/woozymasta/pitwall/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

const serverColumns = `
	id, name, region, host, port, max_players, traffic_density, available_vip_slots,
	join_link, banner_url, status, game_mode, created_at, updated_at`

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New opens the database at dbPath with the embedded migrations applied.
func New(dbPath string) (*Repository, error) {
	return Open(context.Background(), dbPath, assets.Migrations())
}

// Open initializes a new SQLite connection, sets connection pool parameters, and runs migrations from fsys.
func Open(ctx context.Context, dbPath string, migrations fs.FS) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetServers retrieves all servers, newest first.
func (r *Repository) GetServers(ctx context.Context) ([]models.Server, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+serverColumns+` FROM servers ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []models.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

// GetServer retrieves a server by id. It returns nil without error when the server does not exist.
func (r *Repository) GetServer(ctx context.Context, id int64) (*models.Server, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+serverColumns+` FROM servers WHERE id = ?`, id)

	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// UpsertServer inserts a server (ID 0 allocates a new id) or updates the one with the same ID.
// It returns the id of the stored row; created_at is kept on update.
func (r *Repository) UpsertServer(ctx context.Context, s models.Server) (int64, error) {
	return upsertServer(ctx, r.db, s)
}

// UpsertServers upserts a batch in one transaction: either every server is stored or none is.
// The returned ids follow the input order.
func (r *Repository) UpsertServers(ctx context.Context, servers []models.Server) ([]int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]int64, 0, len(servers))
	for _, s := range servers {
		id, err := upsertServer(ctx, tx, s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit servers: %w", err)
	}

	return ids, nil
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func upsertServer(ctx context.Context, q rowQuerier, s models.Server) (int64, error) {
	query := `
	INSERT INTO servers (
		id, name, region, host, port, max_players, traffic_density, available_vip_slots,
		join_link, banner_url, status, game_mode, created_at, updated_at
	)
	VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(NULLIF(?, ''), 'offline'), ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name                = excluded.name,
		region              = excluded.region,
		host                = excluded.host,
		port                = excluded.port,
		max_players         = excluded.max_players,
		traffic_density     = excluded.traffic_density,
		available_vip_slots = excluded.available_vip_slots,
		join_link           = excluded.join_link,
		banner_url          = excluded.banner_url,
		status              = excluded.status,
		game_mode           = excluded.game_mode,
		updated_at          = excluded.updated_at
	RETURNING id;
	`

	now := time.Now().UTC()
	var id int64
	err := q.QueryRowContext(ctx, query,
		s.ID, s.Name, s.Region, s.Host, s.Port, s.MaxPlayers, s.TrafficDensity, s.AvailableVIPSlots,
		s.JoinLink, s.BannerURL, string(s.Status), s.GameMode, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert server %q: %w", s.Name, err)
	}

	return id, nil
}

// DeleteServer removes a server. It reports whether a row was deleted.
func (r *Repository) DeleteServer(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (models.Server, error) {
	var (
		s      models.Server
		status string
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.Region, &s.Host, &s.Port, &s.MaxPlayers, &s.TrafficDensity, &s.AvailableVIPSlots,
		&s.JoinLink, &s.BannerURL, &status, &s.GameMode, &s.CreatedAt, &s.UpdatedAt,
	)
	s.Status = models.Status(status)

	return s, err
}
