package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/registry/pkg/types"
)

// Put runs the deposit's accessors, then writes every row in one
// transaction. Accessors run before any lock is taken, so a slow accessor
// never delays other callers. The listener, if any, receives one report
// after the commit.
func (b *Backend) Put(ctx context.Context, d types.Deposit, listener types.ModificationListener) (ids []int64, err error) {
	start := time.Now()
	defer func() { b.metrics.Observe("put", start, err) }()

	if d == nil {
		return nil, fmt.Errorf("%w: nil deposit", types.ErrInvalidDescriptor)
	}
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}

	batch, err := d.Batch(ctx)
	if err != nil {
		return nil, fmt.Errorf("extracting deposit: %w", err)
	}

	ids, report, err := b.put(ctx, batch)
	if err != nil {
		return nil, err
	}
	if listener != nil && len(ids) > 0 {
		listener(report)
	}
	return ids, nil
}

// ensureAttached checks the lifecycle without holding the lock afterwards.
func (b *Backend) ensureAttached() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.checkAttached()
}

// boundColumn pairs a descriptor with the column that stores it.
type boundColumn struct {
	desc types.Descriptor
	col  *column
}

// bindColumns resolves every descriptor against s. The schema must already
// have been evolved for descs.
func bindColumns(s *categorySchema, descs []types.Descriptor) ([]boundColumn, error) {
	out := make([]boundColumn, len(descs))
	for i, d := range descs {
		c := s.lookup(d)
		if c == nil {
			return nil, fmt.Errorf("%w: property %q has no matching column in %s",
				types.ErrTypeMismatch, d.PropertyName(), s.category)
		}
		out[i] = boundColumn{desc: d, col: c}
	}
	return out, nil
}

// encodedRow is one row in SQL form, aligned with the insert column list.
type encodedRow struct {
	args []any
	key  any
}

func (b *Backend) put(ctx context.Context, batch types.Batch) ([]int64, types.CacheModificationReport, error) {
	var report types.CacheModificationReport

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return nil, report, err
	}

	s, err := b.schemas.ensure(ctx, batch.Category)
	if err != nil {
		return nil, report, err
	}
	descs := batch.RowSet.Descriptors
	if err := b.schemas.evolve(ctx, s, descs); err != nil {
		return nil, report, err
	}
	bound, err := bindColumns(s, descs)
	if err != nil {
		return nil, report, &types.StoreError{Op: "put", Category: batch.Category, Err: err}
	}

	var cols []string
	for _, bc := range bound {
		c, _, _ := bc.col.assign(bc.desc, nil)
		cols = append(cols, c...)
	}

	rows := make([]encodedRow, len(batch.RowSet.Rows))
	keys := make(map[any]int)
	for i, row := range batch.RowSet.Rows {
		for j, bc := range bound {
			_, args, err := bc.col.assign(bc.desc, row[j])
			if err != nil {
				return nil, report, &types.StoreError{Op: "put", Category: batch.Category,
					Err: fmt.Errorf("object %d property %q: %w", i, bc.desc.PropertyName(), err)}
			}
			rows[i].args = append(rows[i].args, args...)
		}
		if batch.KeyIndex >= 0 && row[batch.KeyIndex] != nil {
			key, err := encodeScalar(bound[batch.KeyIndex].col.valueType, row[batch.KeyIndex])
			if err != nil {
				return nil, report, &types.StoreError{Op: "put", Category: batch.Category, Err: err}
			}
			if first, dup := keys[key]; dup {
				return nil, report, &types.StoreError{Op: "put", Category: batch.Category,
					Err: fmt.Errorf("%w: objects %d and %d share key %v", types.ErrInvalidDescriptor, first, i, row[batch.KeyIndex])}
			}
			keys[key] = i
			rows[i].key = key
		}
	}

	batchID, err := uuid.NewV7()
	if err != nil {
		return nil, report, fmt.Errorf("generating batch id: %w", err)
	}

	ids := make([]int64, len(rows))
	err = b.withWrite(ctx, func(tx *sql.Tx) error {
		var keyCol string
		if batch.KeyIndex >= 0 {
			keyCol = bound[batch.KeyIndex].col.base
		}
		if keyCol != "" && !batch.Append {
			if err := supersede(tx, s, keyCol, rows); err != nil {
				return err
			}
		}

		groupID, err := insertGroup(tx, batchID.String(), s.id, batch, b.nowNanos())
		if err != nil {
			return err
		}

		insert, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (id, group_id%s) VALUES (?, ?%s)",
			s.table, prefixJoin(cols), strings.Repeat(", ?", len(cols))))
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer insert.Close()

		index, err := tx.Prepare("INSERT INTO row_index (id, category_id, group_id) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("preparing index insert: %w", err)
		}
		defer index.Close()

		var last int64
		for i, r := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if keyCol != "" && batch.Append && r.key != nil {
				id, found, err := merge(tx, s, keyCol, cols, r, groupID)
				if err != nil {
					return err
				}
				if found {
					ids[i] = id
					continue
				}
			}

			id := b.ids.reserve(1)
			if _, err := insert.Exec(append([]any{id, groupID}, r.args...)...); err != nil {
				return fmt.Errorf("inserting row: %w", err)
			}
			if _, err := index.Exec(id, s.id, groupID); err != nil {
				return fmt.Errorf("indexing row: %w", err)
			}
			ids[i] = id
			last = id
		}
		if last > 0 {
			if err := recordLastID(tx, last); err != nil {
				return err
			}
		}
		return dropEmptyGroups(tx)
	})
	if err != nil {
		return nil, report, &types.StoreError{Op: "put", Category: batch.Category, Err: err}
	}

	b.metrics.RowsWritten.Add(float64(len(ids)))
	b.logger.Debug("deposit committed",
		zap.Stringer("category", batch.Category),
		zap.String("batch_id", batchID.String()),
		zap.Int("rows", len(ids)),
		zap.Int("properties", len(descs)))

	if err := b.enforceSizeLimit(ctx); err != nil {
		b.logger.Warn("size limit enforcement failed", zap.Error(err))
	}

	report = types.CacheModificationReport{
		Category:    batch.Category,
		IDs:         append([]int64(nil), ids...),
		Descriptors: append([]types.Descriptor(nil), descs...),
		BatchID:     batchID.String(),
	}
	return ids, report, nil
}

// insertGroup records a deposit's group and returns its id.
func insertGroup(tx *sql.Tx, batchID string, categoryID int64, batch types.Batch, now int64) (int64, error) {
	var expiration any
	if !batch.Expiration.IsZero() {
		expiration = batch.Expiration.UnixNano()
	}
	critical := 0
	if batch.Critical {
		critical = 1
	}
	res, err := tx.Exec(
		"INSERT INTO data_groups (batch_id, category_id, expiration, critical, created_at) VALUES (?, ?, ?, ?, ?)",
		batchID, categoryID, expiration, critical, now)
	if err != nil {
		return 0, fmt.Errorf("inserting group: %w", err)
	}
	return res.LastInsertId()
}

// supersede deletes stored rows whose key equals any incoming key.
func supersede(tx *sql.Tx, s *categorySchema, keyCol string, rows []encodedRow) error {
	seen := make(map[any]bool)
	for _, r := range rows {
		if r.key == nil || seen[r.key] {
			continue
		}
		seen[r.key] = true
		if _, err := tx.Exec(fmt.Sprintf(
			"DELETE FROM row_index WHERE id IN (SELECT id FROM %s WHERE %s = ?)", s.table, keyCol), r.key); err != nil {
			return fmt.Errorf("superseding rows: %w", err)
		}
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", s.table, keyCol), r.key); err != nil {
			return fmt.Errorf("superseding rows: %w", err)
		}
	}
	return nil
}

// merge writes r over the oldest stored row with the same key and moves it
// into groupID. It reports false when no row has the key.
func merge(tx *sql.Tx, s *categorySchema, keyCol string, cols []string, r encodedRow, groupID int64) (int64, bool, error) {
	var id int64
	err := tx.QueryRow(fmt.Sprintf("SELECT id FROM %s WHERE %s = ? ORDER BY id LIMIT 1", s.table, keyCol), r.key).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("finding keyed row: %w", err)
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	args := append(append([]any{groupID}, r.args...), id)
	if _, err := tx.Exec(fmt.Sprintf("UPDATE %s SET group_id = ?, %s WHERE id = ?",
		s.table, strings.Join(sets, ", ")), args...); err != nil {
		return 0, false, fmt.Errorf("merging row: %w", err)
	}
	if _, err := tx.Exec("UPDATE row_index SET group_id = ? WHERE id = ?", groupID, id); err != nil {
		return 0, false, fmt.Errorf("merging row index: %w", err)
	}
	return id, true, nil
}

// prefixJoin returns cols joined with ", " and led by ", ", or "".
func prefixJoin(cols []string) string {
	if len(cols) == 0 {
		return ""
	}
	return ", " + strings.Join(cols, ", ")
}
