package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/registry/pkg/types"
)

// ClearIDs removes exactly the given rows. Unknown ids are ignored.
func (b *Backend) ClearIDs(ctx context.Context, ids []int64) (err error) {
	start := time.Now()
	defer func() { b.metrics.Observe("clear_ids", start, err) }()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return err
	}

	removed := 0
	err = b.withWrite(ctx, func(tx *sql.Tx) error {
		for _, chunk := range chunks(uniqueIDs(ids)) {
			in := placeholders(len(chunk))
			rows, err := tx.QueryContext(ctx, fmt.Sprintf(
				"SELECT DISTINCT category_id FROM row_index WHERE id IN (%s)", in), int64Args(chunk)...)
			if err != nil {
				return fmt.Errorf("locating ids: %w", err)
			}
			var categories []int64
			for rows.Next() {
				var id int64
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return fmt.Errorf("scanning category: %w", err)
				}
				categories = append(categories, id)
			}
			err = rows.Err()
			rows.Close()
			if err != nil {
				return err
			}

			for _, categoryID := range categories {
				s := b.schemas.byCategoryID(categoryID)
				if s == nil {
					continue
				}
				if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", s.table, in),
					int64Args(chunk)...); err != nil {
					return fmt.Errorf("deleting rows: %w", err)
				}
			}
			res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM row_index WHERE id IN (%s)", in), int64Args(chunk)...)
			if err != nil {
				return fmt.Errorf("deleting row index: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += int(n)
		}
		return dropEmptyGroups(tx)
	})
	if err != nil {
		return &types.StoreError{Op: "clear ids", Err: err}
	}

	b.metrics.RowsCleared.Add(float64(removed))
	b.logger.Debug("rows cleared", zap.Int("rows", removed))
	return nil
}

// Clear removes every category and row. It waits for in-flight operations
// and blocks new ones until done. Ids are not reused afterwards.
func (b *Backend) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { b.metrics.Observe("clear", start, err) }()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkAttached(); err != nil {
		return err
	}

	var removed int64
	err = b.withWrite(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM row_index").Scan(&removed); err != nil {
			return fmt.Errorf("counting rows: %w", err)
		}
		for _, s := range b.schemas.all() {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.table); err != nil {
				return fmt.Errorf("dropping %s: %w", s.table, err)
			}
			for _, c := range s.geometryColumns() {
				rt := spatialIndexName(s.table, c.base)
				if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+rt); err != nil {
					return fmt.Errorf("dropping %s: %w", rt, err)
				}
			}
		}
		for _, table := range []string{"row_index", "data_groups", "columns", "categories"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return &types.StoreError{Op: "clear", Err: err}
	}

	b.schemas.reset()
	b.metrics.RowsCleared.Add(float64(removed))
	b.logger.Info("registry cleared", zap.Int64("rows", removed))
	return nil
}
