package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"homie/internal/core"
)

// UpsertUser inserts a user or refreshes email and full name for an
// existing username. Used at startup to seed the local user directory.
func (r *Repository) UpsertUser(ctx context.Context, u core.User) (int64, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, email, full_name, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			email = excluded.email,
			full_name = excluded.full_name,
			is_admin = excluded.is_admin`,
		u.Username, u.Email, u.FullName, u.Admin, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("upsert user %q: %w", u.Username, err)
	}
	// last_insert_rowid is stale on the conflict-update path, so resolve
	// the id with a lookup either way.
	stored, err := r.GetUserByUsername(ctx, u.Username)
	if err != nil {
		return 0, fmt.Errorf("upsert user %q: %w", u.Username, err)
	}
	return stored.ID, nil
}

const userColumns = `id, username, email, full_name, is_admin, created_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u         core.User
		createdAt string
		lastLogin sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Admin, &createdAt, &lastLogin); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = parseStoredTime(createdAt)
	if lastLogin.Valid {
		u.LastLogin = parseStoredTime(lastLogin.String)
	}
	return u, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// TouchLastLogin records the time of the user's most recent request.
func (r *Repository) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`,
		time.Now().UTC().Format(timestampLayout), id)
	if err != nil {
		return fmt.Errorf("touch last login for user %d: %w", id, err)
	}
	return nil
}
