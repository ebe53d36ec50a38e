package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"homie/internal/core"
)

// CreateCategory inserts a budget category. Names are unique.
func (r *Repository) CreateCategory(ctx context.Context, c core.BudgetCategory) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_categories (name, monthly_limit_cents, color)
		VALUES (?, ?, ?)`, c.Name, c.MonthlyLimit.Cents, c.Color)
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category last insert id: %w", err)
	}
	return id, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.BudgetCategory, error) {
	var c core.BudgetCategory
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, monthly_limit_cents, color FROM budget_categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.MonthlyLimit.Cents, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetCategory{}, core.ErrNotFound
	}
	if err != nil {
		return core.BudgetCategory{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.BudgetCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, monthly_limit_cents, color FROM budget_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.BudgetCategory
	for rows.Next() {
		var c core.BudgetCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.MonthlyLimit.Cents, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}

// UpdateCategory updates a category in place. A rename cascades to every
// bill carrying the old name (categories are matched by name, not by
// foreign key), all inside one transaction.
func (r *Repository) UpdateCategory(ctx context.Context, c core.BudgetCategory) error {
	return r.WithTx(ctx, func(tx *Tx) error {
		var oldName string
		err := tx.tx.QueryRowContext(ctx,
			`SELECT name FROM budget_categories WHERE id = ?`, c.ID).Scan(&oldName)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get category name: %w", err)
		}

		_, err = tx.tx.ExecContext(ctx, `
			UPDATE budget_categories SET name = ?, monthly_limit_cents = ?, color = ?
			WHERE id = ?`, c.Name, c.MonthlyLimit.Cents, c.Color, c.ID)
		if err != nil {
			return fmt.Errorf("update category: %w", err)
		}

		if oldName != c.Name {
			_, err = tx.tx.ExecContext(ctx,
				`UPDATE bills SET category = ? WHERE category = ?`, c.Name, oldName)
			if err != nil {
				return fmt.Errorf("cascade category rename: %w", err)
			}
		}
		return nil
	})
}

// DeleteCategory removes the configured limit. Bills keep their category
// string; they simply report against a zero limit afterwards.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budget_categories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete category rows affected: %w", err)
	}
	return n > 0, nil
}
