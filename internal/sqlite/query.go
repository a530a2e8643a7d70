package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/mesh-intelligence/registry/internal/geom"
	"github.com/mesh-intelligence/registry/pkg/types"
)

// GetIDs returns the ids in category that satisfy every matcher, sorted by
// the order specifiers and then by id, skipping start rows and returning at
// most limit (limit <= 0 means no cap). A category with empty components
// searches every stored category it matches.
func (b *Backend) GetIDs(ctx context.Context, category types.DataModelCategory, matchers []types.PropertyMatcher,
	orders []types.OrderSpecifier, start, limit int) (ids []int64, err error) {
	begin := time.Now()
	defer func() { b.metrics.Observe("get_ids", begin, err) }()

	normalized := make([]types.PropertyMatcher, len(matchers))
	for i, m := range matchers {
		if normalized[i], err = m.Normalize(); err != nil {
			return nil, err
		}
	}
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}
	if start < 0 {
		start = 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return nil, err
	}

	q := &idQuery{matchers: normalized, orders: orders, now: b.nowNanos()}
	for _, s := range b.schemas.matching(category) {
		if err := q.addCategory(s); err != nil {
			return nil, err
		}
	}
	if len(q.subqueries) == 0 {
		return []int64{}, nil
	}

	ids, err = q.run(ctx, b, start, limit)
	if err != nil {
		return nil, &types.StoreError{Op: "get ids", Category: category, Err: err}
	}
	return ids, nil
}

// idQuery accumulates one SELECT per category and merges them with UNION ALL.
type idQuery struct {
	matchers []types.PropertyMatcher
	orders   []types.OrderSpecifier
	now      int64

	subqueries []string
	args       []any
}

// spatial returns the matchers that need an exact geometry test.
func (q *idQuery) spatial() []types.PropertyMatcher {
	var out []types.PropertyMatcher
	for _, m := range q.matchers {
		if m.IsSpatial() {
			out = append(out, m)
		}
	}
	return out
}

// addCategory adds the SELECT for s, or nothing when a matcher references a
// property s does not have and so cannot match any of its rows.
func (q *idQuery) addCategory(s *categorySchema) error {
	where := []string{liveGroupsClause}
	args := []any{q.now}

	for _, m := range q.matchers {
		c := s.lookup(m.Property)
		if c == nil {
			if m.Op == types.OpEquals && m.Operand == nil {
				continue
			}
			return nil
		}
		cond, condArgs, err := matchCondition(s.table, c, m)
		if err != nil {
			return err
		}
		where = append(where, cond)
		args = append(args, condArgs...)
	}

	sel := []string{"id"}
	for i, o := range q.orders {
		expr := "NULL"
		if c := s.lookup(o.Descriptor); c != nil {
			expr = c.orderExpr(o.Descriptor)
		}
		sel = append(sel, fmt.Sprintf("%s AS o%d", expr, i))
	}
	for i, m := range q.spatial() {
		sel = append(sel, fmt.Sprintf("%s AS g%d", s.lookup(m.Property).base, i))
	}

	q.subqueries = append(q.subqueries, fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(sel, ", "), s.table, strings.Join(where, " AND ")))
	q.args = append(q.args, args...)
	return nil
}

// matchCondition translates m into a WHERE condition on column c of table.
// Spatial matchers become R*Tree envelope lookups that the caller refines
// with geom.
func matchCondition(table string, c *column, m types.PropertyMatcher) (string, []any, error) {
	col := c.physical()[0]
	t := m.Property.Type
	switch m.Op {
	case types.OpEquals, types.OpNotEquals:
		if m.Operand == nil {
			if m.Op == types.OpEquals {
				return col + " IS NULL", nil, nil
			}
			return col + " IS NOT NULL", nil, nil
		}
		fallthrough
	case types.OpLess, types.OpLessEqual, types.OpGreater, types.OpGreaterEqual:
		v, err := encodeScalar(t, m.Operand)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?", col, m.Op), []any{v}, nil
	case types.OpIn:
		if len(m.Operands) == 0 {
			return "0", nil, nil
		}
		args := make([]any, len(m.Operands))
		for i, o := range m.Operands {
			v, err := encodeScalar(t, o)
			if err != nil {
				return "", nil, err
			}
			args[i] = v
		}
		return fmt.Sprintf("%s IN (%s)", col, placeholders(len(args))), args, nil
	case types.OpLike:
		return col + " LIKE ?", []any{m.Operand}, nil
	case types.OpIntersects, types.OpGeometryEquals:
		env := geom.Envelope(m.Operand.(orb.Geometry))
		return fmt.Sprintf("id IN (SELECT id FROM %s WHERE minx <= ? AND maxx >= ? AND miny <= ? AND maxy >= ?)",
				spatialIndexName(table, c.base)),
			[]any{env.Max[0], env.Min[0], env.Max[1], env.Min[1]}, nil
	case types.OpOverlaps:
		span := m.Operand.(types.TimeSpan)
		p := c.physical()
		return fmt.Sprintf("%s IS NOT NULL AND %s <= ? AND %s >= ?", p[0], p[0], p[1]),
			[]any{span.EndNanos(), span.StartNanos()}, nil
	}
	return "", nil, fmt.Errorf("%w: unknown operator %q", types.ErrInvalidMatcher, m.Op)
}

// run executes the merged query. Without spatial matchers SQLite paginates;
// otherwise rows are refined in Go and paginated afterwards.
func (q *idQuery) run(ctx context.Context, b *Backend, start, limit int) ([]int64, error) {
	spatial := q.spatial()

	cols := []string{"id"}
	for i := range spatial {
		cols = append(cols, fmt.Sprintf("g%d", i))
	}
	order := make([]string, 0, len(q.orders)+1)
	for i, o := range q.orders {
		dir := "DESC"
		if o.Ascending {
			dir = "ASC"
		}
		order = append(order, fmt.Sprintf("o%d %s", i, dir))
	}
	order = append(order, "id ASC")

	query := fmt.Sprintf("SELECT %s FROM (%s) ORDER BY %s",
		strings.Join(cols, ", "), strings.Join(q.subqueries, " UNION ALL "), strings.Join(order, ", "))
	args := q.args
	if len(spatial) == 0 {
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, start)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	skipped := 0
	dest := make([]any, len(cols))
	var id int64
	dest[0] = &id
	blobs := make([][]byte, len(spatial))
	for i := range spatial {
		dest[i+1] = &blobs[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		if len(spatial) > 0 {
			ok, err := refine(spatial, blobs)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if skipped < start {
				skipped++
				continue
			}
			if limit > 0 && len(ids) >= limit {
				break
			}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// refine applies the exact geometry predicates to one candidate row.
func refine(matchers []types.PropertyMatcher, blobs [][]byte) (bool, error) {
	for i, m := range matchers {
		g, err := geom.Decode(blobs[i])
		if err != nil {
			return false, err
		}
		operand := m.Operand.(orb.Geometry)
		var ok bool
		switch m.Op {
		case types.OpIntersects:
			ok, err = geom.Intersects(g, operand)
		case types.OpGeometryEquals:
			ok, err = geom.Equal(g, operand)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
