package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/registry/internal/geom"
	"github.com/mesh-intelligence/registry/pkg/types"
)

// UpdateValues writes the values the updater extracts for each id into the
// id's existing row. Rows are grouped by category and the listener receives
// one report per category in which some value changed, listing only the
// changed ids and descriptors. A budget > 0 bounds the whole call; when it
// elapses nothing is committed. The call also fails, unchanged, when a time
// span value would overlap the span already stored for that row.
func (b *Backend) UpdateValues(ctx context.Context, ids []int64, u types.Updater, budget time.Duration,
	listener types.ModificationListener) (err error) {
	start := time.Now()
	defer func() { b.metrics.Observe("update", start, err) }()

	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	defer func() {
		if budget > 0 && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", types.ErrTimeBudgetExceeded, err)
		}
	}()

	if u == nil {
		return fmt.Errorf("%w: nil updater", types.ErrInvalidDescriptor)
	}
	if err := b.ensureAttached(); err != nil {
		return err
	}

	rs, err := u.Rows(ctx)
	if err != nil {
		return fmt.Errorf("extracting update: %w", err)
	}
	if len(rs.Rows) != len(ids) {
		return fmt.Errorf("%w: %d ids, %d objects", types.ErrLengthMismatch, len(ids), len(rs.Rows))
	}

	reports, err := b.update(ctx, ids, rs)
	if err != nil {
		return err
	}
	if listener != nil {
		for _, r := range reports {
			listener(r)
		}
	}
	return nil
}

// categoryUpdate is the part of an update that falls in one category.
type categoryUpdate struct {
	schema    *categorySchema
	bound     []boundColumn
	positions []int // indexes into ids and rs.Rows
}

func (b *Backend) update(ctx context.Context, ids []int64, rs types.RowSet) ([]types.CacheModificationReport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return nil, err
	}

	located, err := b.locate(ctx, ids)
	if err != nil {
		return nil, &types.StoreError{Op: "update", Err: err}
	}

	var groups []*categoryUpdate
	byCategory := make(map[int64]*categoryUpdate)
	for i, id := range ids {
		categoryID, ok := located[id]
		if !ok {
			continue
		}
		g := byCategory[categoryID]
		if g == nil {
			s := b.schemas.byCategoryID(categoryID)
			if s == nil {
				continue
			}
			g = &categoryUpdate{schema: s}
			byCategory[categoryID] = g
			groups = append(groups, g)
		}
		g.positions = append(g.positions, i)
	}

	for _, g := range groups {
		if err := b.schemas.evolve(ctx, g.schema, rs.Descriptors); err != nil {
			return nil, err
		}
		if g.bound, err = bindColumns(g.schema, rs.Descriptors); err != nil {
			return nil, &types.StoreError{Op: "update", Category: g.schema.category, Err: err}
		}
	}

	var reports []types.CacheModificationReport
	updated := 0
	err = b.withWrite(ctx, func(tx *sql.Tx) error {
		for _, g := range groups {
			report, err := applyUpdate(ctx, tx, g, ids, rs)
			if err != nil {
				return &types.StoreError{Op: "update", Category: g.schema.category, Err: err}
			}
			if len(report.IDs) > 0 {
				reports = append(reports, report)
				updated += len(report.IDs)
			}
		}
		return nil
	})
	if err != nil {
		var se *types.StoreError
		if !errors.As(err, &se) {
			err = &types.StoreError{Op: "update", Err: err}
		}
		return nil, err
	}

	b.metrics.RowsUpdated.Add(float64(updated))
	b.logger.Debug("update committed", zap.Int("rows", updated), zap.Int("categories", len(reports)))
	return reports, nil
}

// applyUpdate writes one category's rows inside tx and returns its report.
func applyUpdate(ctx context.Context, tx *sql.Tx, g *categoryUpdate, ids []int64, rs types.RowSet) (types.CacheModificationReport, error) {
	report := types.CacheModificationReport{Category: g.schema.category}
	changedDescs := make([]bool, len(g.bound))

	var sel []string
	firsts := make([]int, len(g.bound))
	for i, bc := range g.bound {
		firsts[i] = len(sel)
		sel = append(sel, bc.col.selectFor(bc.desc)...)
	}
	read := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(sel, ", "), g.schema.table)

	reported := make(map[int64]bool)
	for _, pos := range g.positions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		id := ids[pos]
		raw := make([]any, len(sel))
		dest := make([]any, len(sel))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := tx.QueryRowContext(ctx, read, id).Scan(dest...); err != nil {
			return report, fmt.Errorf("reading row %d: %w", id, err)
		}

		var (
			sets []string
			args []any
		)
		for i, bc := range g.bound {
			next := rs.Rows[pos][i]
			width := len(bc.col.selectFor(bc.desc))
			current, err := bc.col.decode(bc.desc, raw[firsts[i]:firsts[i]+width])
			if err != nil {
				return report, fmt.Errorf("decoding %q: %w", bc.desc.PropertyName(), err)
			}
			if err := checkInterval(bc.desc, current, next); err != nil {
				return report, fmt.Errorf("row %d: %w", id, err)
			}
			equal, err := equalFor(bc.desc, current, next)
			if err != nil {
				return report, err
			}
			if equal {
				continue
			}
			cols, vals, err := bc.col.assign(bc.desc, next)
			if err != nil {
				return report, fmt.Errorf("row %d property %q: %w", id, bc.desc.PropertyName(), err)
			}
			for _, c := range cols {
				sets = append(sets, c+" = ?")
			}
			args = append(args, vals...)
			changedDescs[i] = true
		}
		if len(sets) == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE id = ?",
			g.schema.table, strings.Join(sets, ", ")), append(args, id)...); err != nil {
			return report, fmt.Errorf("updating row %d: %w", id, err)
		}
		if !reported[id] {
			reported[id] = true
			report.IDs = append(report.IDs, id)
		}
	}

	for i, changed := range changedDescs {
		if changed {
			report.Descriptors = append(report.Descriptors, g.bound[i].desc)
		}
	}
	return report, nil
}

// checkInterval rejects a time span that overlaps the span already stored.
func checkInterval(d types.Descriptor, current, next any) error {
	pd, ok := d.(types.PropertyDescriptor)
	if !ok || pd.Type != types.TypeTimeSpan || current == nil || next == nil {
		return nil
	}
	cur, nxt := current.(types.TimeSpan), next.(types.TimeSpan)
	if cur.Overlaps(nxt) {
		return fmt.Errorf("%w: %q holds %s, which overlaps %s", types.ErrIntervalConflict, pd.Name, cur, nxt)
	}
	return nil
}

// equalFor compares the stored value of d with a normalized incoming one.
func equalFor(d types.Descriptor, current, next any) (bool, error) {
	switch d := d.(type) {
	case types.PropertyDescriptor:
		if d.Type == types.TypeObject && current != nil && next != nil {
			return jsonEqual(current, next)
		}
	case types.PropertyArrayDescriptor:
		if next == nil {
			next = make([]any, len(d.ActiveColumns()))
		}
	}
	return valuesEqual(current, next)
}

// jsonEqual compares a decoded JSON value with a value not yet encoded.
func jsonEqual(decoded, v any) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	var other any
	if err := json.Unmarshal(b, &other); err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}
	return reflect.DeepEqual(decoded, other), nil
}

// valuesEqual compares normalized scalar, span, geometry and array values.
func valuesEqual(current, next any) (bool, error) {
	if current == nil || next == nil {
		return current == nil && next == nil, nil
	}
	switch c := current.(type) {
	case types.TimeSpan:
		n, ok := next.(types.TimeSpan)
		return ok && c.Equal(n), nil
	case time.Time:
		n, ok := next.(time.Time)
		return ok && c.Equal(n), nil
	case orb.Geometry:
		n, ok := next.(orb.Geometry)
		return ok && geom.Identical(c, n), nil
	case []any:
		n, ok := next.([]any)
		if !ok || len(n) != len(c) {
			return false, nil
		}
		for i := range c {
			eq, err := valuesEqual(c[i], n[i])
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case string, int64, float64, bool:
		return current == next, nil
	}
	return jsonEqual(current, next)
}
