package sqlite

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/registry/pkg/types"
)

// lookupChunk bounds the ids bound into one IN clause.
const lookupChunk = 500

// chunks splits ids into slices of at most lookupChunk.
func chunks(ids []int64) [][]int64 {
	var out [][]int64
	for len(ids) > lookupChunk {
		out = append(out, ids[:lookupChunk])
		ids = ids[lookupChunk:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// locate maps each live id to its category id. Unknown and expired ids are
// absent from the result. The caller must hold b.mu.
func (b *Backend) locate(ctx context.Context, ids []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(ids))
	now := b.nowNanos()
	for _, chunk := range chunks(uniqueIDs(ids)) {
		query := fmt.Sprintf(`SELECT r.id, r.category_id FROM row_index r
			JOIN data_groups g ON g.group_id = r.group_id
			WHERE r.id IN (%s) AND (g.expiration IS NULL OR g.expiration > ?)`, placeholders(len(chunk)))
		rows, err := b.db.QueryContext(ctx, query, append(int64Args(chunk), now)...)
		if err != nil {
			return nil, fmt.Errorf("locating ids: %w", err)
		}
		for rows.Next() {
			var id, categoryID int64
			if err := rows.Scan(&id, &categoryID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning id: %w", err)
			}
			out[id] = categoryID
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// groupByCategory groups the located ids by category, keeping the order in
// which each category and id first appears in ids.
func groupByCategory(ids []int64, located map[int64]int64) ([]int64, map[int64][]int64) {
	var order []int64
	groups := make(map[int64][]int64)
	for _, id := range uniqueIDs(ids) {
		categoryID, ok := located[id]
		if !ok {
			continue
		}
		if _, seen := groups[categoryID]; !seen {
			order = append(order, categoryID)
		}
		groups[categoryID] = append(groups[categoryID], id)
	}
	return order, groups
}

// GetValues appends, for every live id in ids and in that order, one value
// per descriptor bound in m. Unknown ids produce no output. Categories are
// read in parallel; progress, if set, is called after each category.
func (b *Backend) GetValues(ctx context.Context, ids []int64, m *types.PropertyValueMap, progress types.ProgressListener) (err error) {
	start := time.Now()
	defer func() { b.metrics.Observe("get_values", start, err) }()

	if m == nil {
		return fmt.Errorf("%w: nil value map", types.ErrInvalidDescriptor)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return err
	}

	located, err := b.locate(ctx, ids)
	if err != nil {
		return &types.StoreError{Op: "get values", Err: err}
	}
	order, groups := groupByCategory(ids, located)
	descs := m.Descriptors()

	var (
		mu    sync.Mutex
		rows  = make(map[int64][]any, len(located))
		done  int
		total = len(located)
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, categoryID := range order {
		s := b.schemas.byCategoryID(categoryID)
		if s == nil {
			continue
		}
		group := groups[categoryID]
		g.Go(func() error {
			read, err := b.readRows(gctx, s, group, descs)
			if err != nil {
				return &types.StoreError{Op: "get values", Category: s.category, Err: err}
			}
			mu.Lock()
			defer mu.Unlock()
			for id, row := range read {
				rows[id] = row
			}
			done += len(group)
			if progress != nil {
				progress(done, total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, id := range ids {
		if row, ok := rows[id]; ok {
			m.AppendRow(id, row)
		}
	}
	return nil
}

// readRows reads descs for ids from one category. Descriptors the category
// has no column for read as empty values.
func (b *Backend) readRows(ctx context.Context, s *categorySchema, ids []int64, descs []types.Descriptor) (map[int64][]any, error) {
	type binding struct {
		col   *column
		first int
		width int
	}
	bindings := make([]binding, len(descs))
	sel := []string{"id"}
	for i, d := range descs {
		c := s.lookup(d)
		if c == nil {
			continue
		}
		exprs := c.selectFor(d)
		bindings[i] = binding{col: c, first: len(sel), width: len(exprs)}
		sel = append(sel, exprs...)
	}

	out := make(map[int64][]any, len(ids))
	for _, chunk := range chunks(ids) {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE id IN (%s)",
			strings.Join(sel, ", "), s.table, placeholders(len(chunk)))
		rows, err := b.db.QueryContext(ctx, query, int64Args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("reading rows: %w", err)
		}
		raw := make([]any, len(sel))
		dest := make([]any, len(sel))
		for i := range raw {
			dest[i] = &raw[i]
		}
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning row: %w", err)
			}
			row := make([]any, len(descs))
			for i, d := range descs {
				bd := bindings[i]
				if bd.col == nil {
					row[i] = emptyValue(d)
					continue
				}
				v, err := bd.col.decode(d, raw[bd.first:bd.first+bd.width])
				if err != nil {
					rows.Close()
					return nil, fmt.Errorf("decoding %q: %w", d.PropertyName(), err)
				}
				row[i] = v
			}
			out[raw[0].(int64)] = row
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetDataModelCategories returns the category of each id, in order. Unknown
// ids yield the zero category.
func (b *Backend) GetDataModelCategories(ctx context.Context, ids []int64) ([]types.DataModelCategory, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return nil, err
	}

	located, err := b.locate(ctx, ids)
	if err != nil {
		return nil, &types.StoreError{Op: "get categories", Err: err}
	}
	out := make([]types.DataModelCategory, len(ids))
	for i, id := range ids {
		categoryID, ok := located[id]
		if !ok {
			continue
		}
		if s := b.schemas.byCategoryID(categoryID); s != nil {
			out[i] = s.category
		}
	}
	return out, nil
}

// GetDataModelCategoriesByModelID returns the distinct categories covering
// ids, in order of first appearance. Components whose flag is false are
// collapsed to the empty wildcard before deduplication.
func (b *Backend) GetDataModelCategoriesByModelID(ctx context.Context, ids []int64, bySource, byFamily, byCategory bool) ([]types.DataModelCategory, error) {
	all, err := b.GetDataModelCategories(ctx, ids)
	if err != nil {
		return nil, err
	}
	seen := make(map[types.DataModelCategory]bool)
	out := []types.DataModelCategory{}
	for _, c := range all {
		if c.IsZero() {
			continue
		}
		c = c.Collapse(bySource, byFamily, byCategory)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}
