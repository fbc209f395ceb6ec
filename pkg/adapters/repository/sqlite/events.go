package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
)

// AppendClick inserts through a SELECT on the parent link so a link deleted
// mid-flight produces no row rather than an orphan event.
func (r *SQLiteRepository) AppendClick(ctx context.Context, ev *domain.TrackingEvent) error {
	query := `INSERT INTO tracking_events
				(id, link_id, event_type, correlation_key, actor_id, ip_address, user_agent, attributed, created_at)
			  SELECT ?, l.id, 'click', ?, NULL, ?, ?, 0, ?
			  FROM tracking_links l WHERE l.id = ?
			  RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query, ev.ID, nullString(ev.CorrelationKey),
		ev.IPAddress, ev.UserAgent, toNanos(ev.CreatedAt), ev.LinkID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrLinkNotFound
	}
	if err != nil {
		return fmt.Errorf("append click: %w", err)
	}
	ev.Type = domain.EventClick
	return nil
}

// AppendLogin relies on idx_tracking_events_login_once: the conflicting insert
// is the duplicate check, so concurrent notifications cannot both succeed.
func (r *SQLiteRepository) AppendLogin(ctx context.Context, ev *domain.TrackingEvent) error {
	query := `INSERT INTO tracking_events
				(id, link_id, event_type, correlation_key, actor_id, ip_address, user_agent, attributed, created_at)
			  SELECT ?, l.id, 'login', ?, ?, ?, ?,
				EXISTS (
					SELECT 1 FROM tracking_events c
					WHERE c.link_id = l.id AND c.event_type = 'click' AND c.correlation_key = ?
				),
				?
			  FROM tracking_links l WHERE l.id = ?
			  ON CONFLICT DO NOTHING
			  RETURNING attributed`

	var attributed int64
	err := r.db.QueryRowContext(ctx, query, ev.ID, ev.CorrelationKey, nullString(ev.ActorID),
		ev.IPAddress, ev.UserAgent, ev.CorrelationKey, toNanos(ev.CreatedAt), ev.LinkID).Scan(&attributed)
	if errors.Is(err, sql.ErrNoRows) {
		exists, err := r.linkExists(ctx, ev.LinkID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrLinkNotFound
		}
		return domain.ErrAlreadyAttributed
	}
	if err != nil {
		return fmt.Errorf("append login: %w", err)
	}

	ev.Type = domain.EventLogin
	ev.Attributed = attributed != 0
	return nil
}

func (r *SQLiteRepository) linkExists(ctx context.Context, id int64) (bool, error) {
	var exists int64
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tracking_links WHERE id = ?)`, id).Scan(&exists)
	return exists != 0, err
}

func (r *SQLiteRepository) LinksClickedBy(ctx context.Context, correlationKey string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT link_id FROM tracking_events
		WHERE correlation_key = ? AND event_type = 'click'
		ORDER BY link_id`, correlationKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const countEventsSelect = `
	SELECT
		COALESCE(SUM(CASE WHEN event_type = 'click' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN event_type = 'login' AND attributed = 1 THEN 1 ELSE 0 END), 0)
	FROM tracking_events
	WHERE created_at BETWEEN ? AND ?`

func (r *SQLiteRepository) CountEvents(ctx context.Context, linkID int64, since, until time.Time) (clicks, logins int64, err error) {
	err = r.db.QueryRowContext(ctx, countEventsSelect+` AND link_id = ?`,
		toNanos(since), toNanos(until), linkID).Scan(&clicks, &logins)
	return clicks, logins, err
}

func (r *SQLiteRepository) CountAllEvents(ctx context.Context, since, until time.Time) (clicks, logins int64, err error) {
	err = r.db.QueryRowContext(ctx, countEventsSelect,
		toNanos(since), toNanos(until)).Scan(&clicks, &logins)
	return clicks, logins, err
}

func (r *SQLiteRepository) ListEvents(ctx context.Context, linkID int64, limit int, after *domain.EventCursor) ([]domain.TrackingEvent, error) {
	query := `SELECT id, link_id, event_type, correlation_key, actor_id, ip_address, user_agent, attributed, created_at
			  FROM tracking_events
			  WHERE link_id = ?`
	args := []any{linkID}

	if after != nil {
		at := toNanos(after.CreatedAt)
		query += " AND (created_at < ? OR (created_at = ? AND id < ?))"
		args = append(args, at, at, after.ID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.TrackingEvent{}
	for rows.Next() {
		var ev domain.TrackingEvent
		var eventType string
		var key, actor sql.NullString
		var attributed, createdAt int64
		if err := rows.Scan(&ev.ID, &ev.LinkID, &eventType, &key, &actor,
			&ev.IPAddress, &ev.UserAgent, &attributed, &createdAt); err != nil {
			return nil, err
		}
		ev.Type = domain.EventType(eventType)
		ev.CorrelationKey = key.String
		ev.ActorID = actor.String
		ev.Attributed = attributed != 0
		ev.CreatedAt = fromNanos(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}
