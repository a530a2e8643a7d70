package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/registry/pkg/types"
)

// idGenerator hands out row ids. Blocks claimed by one call are contiguous
// and ascending; ids are never reused, including across Clear and reopen.
type idGenerator struct {
	last atomic.Int64
}

func (g *idGenerator) seed(last int64) {
	g.last.Store(last)
}

// reserve claims n ids and returns the first.
func (g *idGenerator) reserve(n int) int64 {
	return g.last.Add(int64(n)) - int64(n) + 1
}

// recordLastID persists the high-water mark inside tx.
func recordLastID(tx *sql.Tx, last int64) error {
	_, err := tx.Exec("UPDATE registry_meta SET value = max(value, ?) WHERE key = 'last_id'", last)
	if err != nil {
		return fmt.Errorf("recording last id: %w", err)
	}
	return nil
}

// nowNanos returns the backend clock as Unix nanoseconds.
func (b *Backend) nowNanos() int64 {
	return b.now().UnixNano()
}

// liveGroupsClause restricts group_id to groups that have not expired. It
// takes one argument, the current time in nanoseconds.
const liveGroupsClause = "group_id IN (SELECT group_id FROM data_groups WHERE expiration IS NULL OR expiration > ?)"

// PurgeExpired removes every row whose group has expired and returns the
// number of rows removed.
func (b *Backend) PurgeExpired(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { b.metrics.Observe("purge", start, err) }()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return 0, err
	}

	err = b.withWrite(ctx, func(tx *sql.Tx) error {
		groups, err := queryGroups(tx,
			"SELECT group_id, category_id FROM data_groups WHERE expiration IS NOT NULL AND expiration <= ?",
			b.nowNanos())
		if err != nil {
			return err
		}
		n, err = b.deleteGroups(tx, groups)
		return err
	})
	if err != nil {
		return 0, &types.StoreError{Op: "purge expired", Err: err}
	}
	if n > 0 {
		b.metrics.RowsExpired.Add(float64(n))
		b.logger.Info("expired rows purged", zap.Int("rows", n))
	}
	return n, nil
}

// groupRef is a data group and the category that owns it.
type groupRef struct {
	groupID    int64
	categoryID int64
}

func queryGroups(tx *sql.Tx, query string, args ...any) ([]groupRef, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting groups: %w", err)
	}
	defer rows.Close()
	var out []groupRef
	for rows.Next() {
		var g groupRef
		if err := rows.Scan(&g.groupID, &g.categoryID); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// deleteGroups removes the groups and all their rows and returns the number
// of rows removed.
func (b *Backend) deleteGroups(tx *sql.Tx, groups []groupRef) (int, error) {
	total := 0
	for _, g := range groups {
		if s := b.schemas.byCategoryID(g.categoryID); s != nil {
			if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE group_id = ?", s.table), g.groupID); err != nil {
				return 0, fmt.Errorf("deleting group rows: %w", err)
			}
		}
		res, err := tx.Exec("DELETE FROM row_index WHERE group_id = ?", g.groupID)
		if err != nil {
			return 0, fmt.Errorf("deleting group index: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += int(n)
		if _, err := tx.Exec("DELETE FROM data_groups WHERE group_id = ?", g.groupID); err != nil {
			return 0, fmt.Errorf("deleting group: %w", err)
		}
	}
	return total, nil
}

// dropEmptyGroups removes groups that no longer own rows.
func dropEmptyGroups(tx *sql.Tx) error {
	_, err := tx.Exec("DELETE FROM data_groups WHERE group_id NOT IN (SELECT DISTINCT group_id FROM row_index)")
	if err != nil {
		return fmt.Errorf("dropping empty groups: %w", err)
	}
	return nil
}

// startSweeper runs PurgeExpired every interval.
func (b *Backend) startSweeper(interval time.Duration) {
	b.sweepMu.Lock()
	defer b.sweepMu.Unlock()

	if b.sweepTimer != nil {
		return
	}

	b.sweepTimer = time.AfterFunc(interval, func() {
		if _, err := b.PurgeExpired(context.Background()); err != nil {
			if err == types.ErrCacheClosed {
				return
			}
			b.logger.Warn("expiration sweep failed", zap.Error(err))
		}

		b.sweepMu.Lock()
		if b.sweepTimer != nil {
			b.sweepTimer.Reset(interval)
		}
		b.sweepMu.Unlock()
	})
}

// stopSweeper stops the sweep timer if running.
func (b *Backend) stopSweeper() {
	b.sweepMu.Lock()
	defer b.sweepMu.Unlock()

	if b.sweepTimer != nil {
		b.sweepTimer.Stop()
		b.sweepTimer = nil
	}
}

// databaseSize returns the bytes used by live pages.
func (b *Backend) databaseSize(ctx context.Context) (int64, error) {
	var pageCount, freeCount, pageSize int64
	if err := b.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("reading page count: %w", err)
	}
	if err := b.db.QueryRowContext(ctx, "PRAGMA freelist_count").Scan(&freeCount); err != nil {
		return 0, fmt.Errorf("reading freelist count: %w", err)
	}
	if err := b.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("reading page size: %w", err)
	}
	return (pageCount - freeCount) * pageSize, nil
}

// enforceSizeLimit evicts the oldest non-critical groups, one at a time,
// until the database fits the size limit or only critical rows remain.
// The caller must hold b.mu.
func (b *Backend) enforceSizeLimit(ctx context.Context) error {
	limit := b.sizeLimit.Load()
	if limit <= 0 {
		return nil
	}

	evicted := 0
	for {
		size, err := b.databaseSize(ctx)
		if err != nil {
			return err
		}
		if size <= limit {
			break
		}

		done := false
		err = b.withWrite(ctx, func(tx *sql.Tx) error {
			groups, err := queryGroups(tx,
				"SELECT group_id, category_id FROM data_groups WHERE critical = 0 ORDER BY created_at, group_id LIMIT 1")
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				done = true
				return nil
			}
			n, err := b.deleteGroups(tx, groups)
			evicted += n
			return err
		})
		if err != nil {
			return &types.StoreError{Op: "evict", Err: err}
		}
		if done {
			b.logger.Warn("size limit exceeded by critical rows",
				zap.Int64("size_bytes", size), zap.Int64("limit_bytes", limit))
			break
		}
	}
	if evicted > 0 {
		b.metrics.RowsEvicted.Add(float64(evicted))
		b.logger.Info("rows evicted for size limit", zap.Int("rows", evicted), zap.Int64("limit_bytes", limit))
	}
	return nil
}

// CategoryStats describes one stored category.
type CategoryStats struct {
	Category types.DataModelCategory
	Rows     int64
	Columns  int
}

// Stats summarizes the store.
type Stats struct {
	Categories []CategoryStats
	SizeBytes  int64
	LastID     int64
}

// Stats returns per-category row counts and the database size.
func (b *Backend) Stats(ctx context.Context) (Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, s := range b.schemas.all() {
		cs := CategoryStats{Category: s.category, Columns: s.columnCount()}
		if err := b.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM row_index WHERE category_id = ?", s.id).Scan(&cs.Rows); err != nil {
			return Stats{}, fmt.Errorf("counting rows: %w", err)
		}
		st.Categories = append(st.Categories, cs)
	}
	size, err := b.databaseSize(ctx)
	if err != nil {
		return Stats{}, err
	}
	st.SizeBytes = size
	st.LastID = b.ids.last.Load()
	return st, nil
}
