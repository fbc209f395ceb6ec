package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
	_ "modernc.org/sqlite" // Local SQLite driver
)

type SQLiteRepository struct {
	db *sql.DB
}

// Local databases get a single connection so writers queue inside database/sql
// instead of failing with SQLITE_BUSY.
var localPragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if isRemote(dbURL) {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		for _, p := range localPragmas {
			if _, err := db.Exec(p); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply %q: %w", p, err)
			}
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func isRemote(dbURL string) bool {
	return strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://")
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS tracking_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		target_url TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		click_count INTEGER NOT NULL DEFAULT 0,
		login_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tracking_events (
		id TEXT PRIMARY KEY,
		link_id INTEGER NOT NULL REFERENCES tracking_links(id),
		event_type TEXT NOT NULL CHECK (event_type IN ('click', 'login')),
		correlation_key TEXT,
		actor_id TEXT,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		attributed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tracking_events_link_created ON tracking_events(link_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_tracking_events_correlation_key ON tracking_events(correlation_key);
	-- one login per visitor per link
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tracking_events_login_once
		ON tracking_events(link_id, correlation_key) WHERE event_type = 'login';

	CREATE TABLE IF NOT EXISTS actors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		picture_url TEXT NOT NULL DEFAULT '',
		last_login_at INTEGER NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

const linkColumns = `id, code, name, description, target_url, active, click_count, login_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(s rowScanner) (*domain.TrackingLink, error) {
	var l domain.TrackingLink
	var active int64
	var createdAt, updatedAt int64
	if err := s.Scan(&l.ID, &l.Code, &l.Name, &l.Description, &l.TargetURL, &active,
		&l.ClickCount, &l.LoginCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	l.Active = active != 0
	l.CreatedAt = fromNanos(createdAt)
	l.UpdatedAt = fromNanos(updatedAt)
	return &l, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, link *domain.TrackingLink) error {
	query := `INSERT INTO tracking_links (code, name, description, target_url, active, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(code) DO NOTHING
			  RETURNING id`

	err := r.db.QueryRowContext(ctx, query, link.Code, link.Name, link.Description, link.TargetURL,
		boolToInt(link.Active), toNanos(link.CreatedAt), toNanos(link.UpdatedAt)).Scan(&link.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("insert tracking link: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByCode(ctx context.Context, code string) (*domain.TrackingLink, error) {
	query := `SELECT ` + linkColumns + ` FROM tracking_links WHERE code = ?`
	link, err := scanLink(r.db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return link, err
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*domain.TrackingLink, error) {
	query := `SELECT ` + linkColumns + ` FROM tracking_links WHERE id = ?`
	link, err := scanLink(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return link, err
}

func (r *SQLiteRepository) Update(ctx context.Context, link *domain.TrackingLink) error {
	query := `UPDATE tracking_links
			  SET name = ?, description = ?, target_url = ?, active = ?, updated_at = ?
			  WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, link.Name, link.Description, link.TargetURL,
		boolToInt(link.Active), toNanos(link.UpdatedAt), link.ID)
	if err != nil {
		return fmt.Errorf("update tracking link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, filter domain.LinkFilter) ([]domain.TrackingLink, error) {
	query := `SELECT ` + linkColumns + ` FROM tracking_links`
	args := []any{}

	if filter.Active != nil {
		query += " WHERE active = ?"
		args = append(args, boolToInt(*filter.Active))
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []domain.TrackingLink{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tracking_events WHERE link_id = ?`, id); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM tracking_links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tracking link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	return tx.Commit()
}

func (r *SQLiteRepository) IncrementClick(ctx context.Context, id int64) (int64, error) {
	return r.increment(ctx, `UPDATE tracking_links SET click_count = click_count + 1 WHERE id = ? RETURNING click_count`, id)
}

func (r *SQLiteRepository) IncrementLogin(ctx context.Context, id int64) (int64, error) {
	return r.increment(ctx, `UPDATE tracking_links SET login_count = login_count + 1 WHERE id = ? RETURNING login_count`, id)
}

func (r *SQLiteRepository) increment(ctx context.Context, query string, id int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrLinkNotFound
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *SQLiteRepository) CountLinks(ctx context.Context) (total, active int64, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(active), 0) FROM tracking_links`).Scan(&total, &active)
	return total, active, err
}

func (r *SQLiteRepository) SumCounters(ctx context.Context) (clicks, logins int64, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(click_count), 0), COALESCE(SUM(login_count), 0) FROM tracking_links`).Scan(&clicks, &logins)
	return clicks, logins, err
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure interface compliance
var (
	_ ports.LinkRepository  = (*SQLiteRepository)(nil)
	_ ports.EventRepository = (*SQLiteRepository)(nil)
	_ ports.ActorRepository = (*SQLiteRepository)(nil)
)
