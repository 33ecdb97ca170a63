package repository

import (
	"context"
	"fmt"
)

const sqlGetDisplayNames = `SELECT id::text, COALESCE(display_name, '')
	FROM profiles WHERE id::text = ANY($1)`

// GetDisplayNames возвращает отображаемые имена профилей одним запросом.
// Отсутствующие профили в результат не попадают.
func (r *PostgresRepository) GetDisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, sqlGetDisplayNames, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id, name string
			if err := rows.Scan(&id, &name); err != nil {
				return err
			}
			names[id] = name
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("get display names: %w", err)
	}
	return names, nil
}
