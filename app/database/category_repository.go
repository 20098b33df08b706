package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ CategoryRepository = (*categoryRepository)(nil)

type categoryRepository struct {
	db *DB
}

func NewCategoryRepository(db *DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) List() ([]Category, error) {
	rows, err := r.db.Query(`
		SELECT name, slug, last_refreshed_at, created_at
		FROM categories
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var cat Category
		var lastRefreshed sql.NullString
		var createdAt string
		if err := rows.Scan(&cat.Name, &cat.Slug, &lastRefreshed, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		if cat.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if lastRefreshed.Valid {
			t, err := parseTime(lastRefreshed.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse last_refreshed_at: %w", err)
			}
			cat.LastRefreshedAt = &t
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}

// SetLastRefreshed records that a refresh was attempted for the category,
// independent of whether any rows changed.
func (r *categoryRepository) SetLastRefreshed(name string, t time.Time) error {
	_, err := r.db.Exec(`
		UPDATE categories SET last_refreshed_at = ? WHERE name = ?
	`, formatTime(t), name)
	if err != nil {
		return fmt.Errorf("failed to set last refreshed for %s: %w", name, err)
	}
	return nil
}

func (r *categoryRepository) GetLastRefreshed(name string) (*time.Time, error) {
	var lastRefreshed sql.NullString
	err := r.db.QueryRow(`
		SELECT last_refreshed_at FROM categories WHERE name = ?
	`, name).Scan(&lastRefreshed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last refreshed for %s: %w", name, err)
	}
	if !lastRefreshed.Valid {
		return nil, nil
	}

	t, err := parseTime(lastRefreshed.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_refreshed_at: %w", err)
	}
	return &t, nil
}
