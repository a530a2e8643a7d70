package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/registry/pkg/types"
)

// categorySchema is the column layout of one category's data table.
type categorySchema struct {
	id       int64
	category types.DataModelCategory
	table    string

	// evolveMu serializes ALTER TABLE for this category only.
	evolveMu sync.Mutex

	mu          sync.RWMutex
	columns     map[string]*column
	nextOrdinal int
}

// lookup returns the column that serves d, or nil when the category has no
// column of that name and shape.
func (s *categorySchema) lookup(d types.Descriptor) *column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.columns[d.PropertyName()]
	if c == nil || !c.matches(d) {
		return nil
	}
	return c
}

func (s *categorySchema) columnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.columns)
}

// geometryColumns returns the columns that carry a spatial index.
func (s *categorySchema) geometryColumns() []*column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*column
	for _, c := range s.columns {
		if !c.isArray() && c.valueType == types.TypeGeometry {
			out = append(out, c)
		}
	}
	return out
}

// schemaChange is one column to add or widen.
type schemaChange struct {
	col  *column
	from int // first new physical column; 0 for a new column
	add  bool
}

// plan compares descs with the current layout. It returns ErrTypeMismatch
// when a descriptor conflicts with a remembered column.
func (s *categorySchema) plan(descs []types.Descriptor) ([]schemaChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var changes []schemaChange
	for _, d := range descs {
		existing := s.columns[d.PropertyName()]
		switch d := d.(type) {
		case types.PropertyDescriptor:
			if existing == nil {
				changes = append(changes, schemaChange{col: &column{name: d.Name, valueType: d.Type}, add: true})
				continue
			}
			if existing.isArray() || existing.valueType != d.Type {
				return nil, fmt.Errorf("%w: property %q is stored as %s, not %s",
					types.ErrTypeMismatch, d.Name, existing.describe(), d.Type)
			}
		case types.PropertyArrayDescriptor:
			want := d.ColumnTypes()
			if existing == nil {
				changes = append(changes, schemaChange{col: &column{name: d.PropertyName(), elemTypes: want}, add: true})
				continue
			}
			if !existing.isArray() {
				return nil, fmt.Errorf("%w: property %q is stored as %s, not an array",
					types.ErrTypeMismatch, d.PropertyName(), existing.valueType)
			}
			for i := 0; i < len(want) && i < len(existing.elemTypes); i++ {
				if want[i] != existing.elemTypes[i] {
					return nil, fmt.Errorf("%w: array %q column %d is stored as %s, not %s",
						types.ErrTypeMismatch, d.PropertyName(), i, existing.elemTypes[i], want[i])
				}
			}
			if len(want) > len(existing.elemTypes) {
				widened := *existing
				widened.elemTypes = append(append([]types.ValueType(nil), existing.elemTypes...),
					want[len(existing.elemTypes):]...)
				changes = append(changes, schemaChange{col: &widened, from: len(existing.elemTypes)})
			}
		default:
			return nil, fmt.Errorf("%w: unsupported descriptor %T", types.ErrInvalidDescriptor, d)
		}
	}
	return changes, nil
}

func (c *column) describe() string {
	if c.isArray() {
		return typeArray
	}
	return string(c.valueType)
}

// schemaManager maps categories to their layouts. Lookups take a read lock
// on the registry map only; creation and evolution never hold it while
// touching the database.
type schemaManager struct {
	backend *Backend

	mu         sync.RWMutex
	byCategory map[types.DataModelCategory]*categorySchema
	byID       map[int64]*categorySchema

	// createMu serializes creation of new categories.
	createMu sync.Mutex
}

func newSchemaManager(b *Backend) *schemaManager {
	return &schemaManager{
		backend:    b,
		byCategory: make(map[types.DataModelCategory]*categorySchema),
		byID:       make(map[int64]*categorySchema),
	}
}

// load reads the stored categories and columns.
func (m *schemaManager) load(db *sql.DB) error {
	rows, err := db.Query("SELECT category_id, source, family, category, table_name FROM categories")
	if err != nil {
		return fmt.Errorf("loading categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		s := &categorySchema{columns: make(map[string]*column)}
		if err := rows.Scan(&s.id, &s.category.Source, &s.category.Family, &s.category.Category, &s.table); err != nil {
			return fmt.Errorf("scanning category: %w", err)
		}
		m.install(s)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	colRows, err := db.Query(
		"SELECT category_id, property_name, value_type, element_types, column_name, ordinal FROM columns")
	if err != nil {
		return fmt.Errorf("loading columns: %w", err)
	}
	defer colRows.Close()
	for colRows.Next() {
		var (
			categoryID int64
			valueType  string
			elemTypes  sql.NullString
			c          column
		)
		if err := colRows.Scan(&categoryID, &c.name, &valueType, &elemTypes, &c.base, &c.ordinal); err != nil {
			return fmt.Errorf("scanning column: %w", err)
		}
		if valueType == typeArray {
			if err := json.Unmarshal([]byte(elemTypes.String), &c.elemTypes); err != nil {
				return fmt.Errorf("parsing element types of %q: %w", c.name, err)
			}
		} else {
			c.valueType = types.ValueType(valueType)
		}
		s := m.byID[categoryID]
		if s == nil {
			return fmt.Errorf("column %q references unknown category %d", c.name, categoryID)
		}
		s.columns[c.name] = &c
		if c.ordinal >= s.nextOrdinal {
			s.nextOrdinal = c.ordinal + 1
		}
	}
	return colRows.Err()
}

func (m *schemaManager) install(s *categorySchema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCategory[s.category] = s
	m.byID[s.id] = s
}

func (m *schemaManager) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func (m *schemaManager) get(c types.DataModelCategory) *categorySchema {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byCategory[c]
}

func (m *schemaManager) byCategoryID(id int64) *categorySchema {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// matching returns the schemas whose category matches c, ordered by id.
func (m *schemaManager) matching(c types.DataModelCategory) []*categorySchema {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !c.IsWildcard() {
		if s := m.byCategory[c]; s != nil {
			return []*categorySchema{s}
		}
		return nil
	}
	var out []*categorySchema
	for _, s := range m.byID {
		if c.Matches(s.category) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (m *schemaManager) all() []*categorySchema {
	return m.matching(types.DataModelCategory{})
}

// reset forgets every category. The caller must have dropped the tables.
func (m *schemaManager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCategory = make(map[types.DataModelCategory]*categorySchema)
	m.byID = make(map[int64]*categorySchema)
}

// ensure returns the schema for c, creating the category and its data
// table on first use.
func (m *schemaManager) ensure(ctx context.Context, c types.DataModelCategory) (*categorySchema, error) {
	if s := m.get(c); s != nil {
		return s, nil
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()
	if s := m.get(c); s != nil {
		return s, nil
	}

	s := &categorySchema{category: c, columns: make(map[string]*column)}
	err := m.backend.withWrite(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"INSERT INTO categories (source, family, category, table_name) VALUES (?, ?, ?, '')",
			c.Source, c.Family, c.Category)
		if err != nil {
			return fmt.Errorf("inserting category: %w", err)
		}
		if s.id, err = res.LastInsertId(); err != nil {
			return err
		}
		s.table = dataTableName(s.id)
		if _, err := tx.Exec("UPDATE categories SET table_name = ? WHERE category_id = ?", s.table, s.id); err != nil {
			return fmt.Errorf("naming category table: %w", err)
		}
		for _, stmt := range createDataTable(s.table) {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("creating category table: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &types.StoreError{Op: "create category", Category: c, Err: err}
	}

	m.install(s)
	m.backend.logger.Debug("category created",
		zap.Stringer("category", c), zap.String("table", s.table))
	return s, nil
}

// evolve adds or widens the columns descs need. Concurrent calls for the
// same category serialize; other categories are unaffected.
func (m *schemaManager) evolve(ctx context.Context, s *categorySchema, descs []types.Descriptor) error {
	changes, err := s.plan(descs)
	if err != nil || len(changes) == 0 {
		return err
	}

	s.evolveMu.Lock()
	defer s.evolveMu.Unlock()

	// Another writer may have evolved the schema while we waited.
	if changes, err = s.plan(descs); err != nil || len(changes) == 0 {
		return err
	}

	s.mu.RLock()
	next := s.nextOrdinal
	s.mu.RUnlock()
	for _, ch := range changes {
		if ch.add {
			ch.col.ordinal = next
			ch.col.base = fmt.Sprintf("c%d", next)
			next++
		}
	}

	err = m.backend.withWrite(ctx, func(tx *sql.Tx) error {
		for _, ch := range changes {
			for _, def := range ch.col.ddl(ch.from) {
				if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", s.table, def)); err != nil {
					return fmt.Errorf("adding column for %q: %w", ch.col.name, err)
				}
			}
			if ch.add && ch.col.valueType == types.TypeGeometry {
				for _, stmt := range createSpatialIndex(s.table, ch.col.base) {
					if _, err := tx.Exec(stmt); err != nil {
						return fmt.Errorf("indexing geometry %q: %w", ch.col.name, err)
					}
				}
			}
			if _, err := tx.Exec(`
				INSERT INTO columns (category_id, property_name, value_type, element_types, column_name, ordinal)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(category_id, property_name) DO UPDATE SET
					element_types = excluded.element_types`,
				s.id, ch.col.name, ch.col.describe(), ch.col.elemTypesJSON(), ch.col.base, ch.col.ordinal); err != nil {
				return fmt.Errorf("recording column %q: %w", ch.col.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return &types.StoreError{Op: "evolve schema", Category: s.category, Err: err}
	}

	s.mu.Lock()
	for _, ch := range changes {
		s.columns[ch.col.name] = ch.col
		m.backend.logger.Debug("column added",
			zap.Stringer("category", s.category),
			zap.String("property", ch.col.name),
			zap.String("type", ch.col.describe()),
			zap.Int("from", ch.from))
	}
	s.nextOrdinal = next
	s.mu.Unlock()
	m.backend.metrics.ColumnsAdded.Add(float64(len(changes)))
	return nil
}
