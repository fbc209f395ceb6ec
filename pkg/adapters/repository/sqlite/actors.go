package sqlite

import (
	"context"
	"strings"

	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
)

func (r *SQLiteRepository) UpsertActor(ctx context.Context, actor *domain.Actor) error {
	query := `INSERT INTO actors (id, name, picture_url, last_login_at) VALUES (?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				picture_url = excluded.picture_url,
				last_login_at = excluded.last_login_at`
	_, err := r.db.ExecContext(ctx, query, actor.ID, actor.Name, actor.PictureURL, toNanos(actor.LastLoginAt))
	return err
}

func (r *SQLiteRepository) LookupActors(ctx context.Context, ids []string) (map[string]domain.Actor, error) {
	actors := make(map[string]domain.Actor, len(ids))

	seen := make(map[string]bool, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		args = append(args, id)
	}
	if len(args) == 0 {
		return actors, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, picture_url, last_login_at FROM actors WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.Actor
		var lastLogin int64
		if err := rows.Scan(&a.ID, &a.Name, &a.PictureURL, &lastLogin); err != nil {
			return nil, err
		}
		a.LastLoginAt = fromNanos(lastLogin)
		actors[a.ID] = a
	}
	return actors, rows.Err()
}
