package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FeatureVisibility is one row of the per-user feature switchboard.
type FeatureVisibility struct {
	UserID    int64
	Feature   string
	Visible   bool
	UpdatedBy int64
	UpdatedAt time.Time
}

// FeatureVisible reports whether a feature is shown to a user. A feature
// with no row is visible; only an explicit override hides it.
func (r *Repository) FeatureVisible(ctx context.Context, userID int64, feature string) (bool, error) {
	var visible bool
	err := r.db.QueryRowContext(ctx, `
		SELECT visible FROM user_features WHERE user_id = ? AND feature = ?`,
		userID, feature).Scan(&visible)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("feature visibility for user %d: %w", userID, err)
	}
	return visible, nil
}

// SetFeatureVisibility records an admin override for one user and feature.
func (r *Repository) SetFeatureVisibility(ctx context.Context, userID int64, feature string, visible bool, updatedBy int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_features (user_id, feature, visible, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, feature) DO UPDATE SET
			visible = excluded.visible,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		userID, feature, visible, updatedBy, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("set feature %q for user %d: %w", feature, userID, err)
	}
	return nil
}

// ListFeatureOverrides returns every explicit override, for the admin view.
func (r *Repository) ListFeatureOverrides(ctx context.Context) ([]FeatureVisibility, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, feature, visible, COALESCE(updated_by, 0), updated_at
		FROM user_features ORDER BY user_id, feature`)
	if err != nil {
		return nil, fmt.Errorf("list feature overrides: %w", err)
	}
	defer rows.Close()

	var out []FeatureVisibility
	for rows.Next() {
		var (
			fv        FeatureVisibility
			updatedAt string
		)
		if err := rows.Scan(&fv.UserID, &fv.Feature, &fv.Visible, &fv.UpdatedBy, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan feature override: %w", err)
		}
		fv.UpdatedAt = parseStoredTime(updatedAt)
		out = append(out, fv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature overrides: %w", err)
	}
	return out, nil
}
