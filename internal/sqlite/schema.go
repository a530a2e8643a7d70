// Package sqlite implements the registry cache on SQLite.
//
// Metadata lives in four fixed tables; each category gets its own data table
// whose columns grow as new properties are deposited.
package sqlite

import "fmt"

// Schema DDL for the fixed metadata tables.
const (
	createCategories = `CREATE TABLE IF NOT EXISTS categories (
    category_id INTEGER PRIMARY KEY,
    source TEXT NOT NULL,
    family TEXT NOT NULL,
    category TEXT NOT NULL,
    table_name TEXT NOT NULL UNIQUE,
    UNIQUE (source, family, category)
);`

	createColumns = `CREATE TABLE IF NOT EXISTS columns (
    category_id INTEGER NOT NULL,
    property_name TEXT NOT NULL,
    value_type TEXT NOT NULL,
    element_types TEXT,
    column_name TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    PRIMARY KEY (category_id, property_name),
    FOREIGN KEY (category_id) REFERENCES categories(category_id)
);`

	createDataGroups = `CREATE TABLE IF NOT EXISTS data_groups (
    group_id INTEGER PRIMARY KEY,
    batch_id TEXT NOT NULL,
    category_id INTEGER NOT NULL,
    expiration INTEGER,
    critical INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (category_id) REFERENCES categories(category_id)
);`

	createRowIndex = `CREATE TABLE IF NOT EXISTS row_index (
    id INTEGER PRIMARY KEY,
    category_id INTEGER NOT NULL,
    group_id INTEGER NOT NULL
);`

	createRegistryMeta = `CREATE TABLE IF NOT EXISTS registry_meta (
    key TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);`
)

// Index DDL for the metadata tables.
const (
	idxRowIndexCategory   = `CREATE INDEX IF NOT EXISTS idx_row_index_category ON row_index(category_id);`
	idxRowIndexGroup      = `CREATE INDEX IF NOT EXISTS idx_row_index_group ON row_index(group_id);`
	idxDataGroupsExpires  = `CREATE INDEX IF NOT EXISTS idx_data_groups_expiration ON data_groups(expiration);`
	idxDataGroupsCategory = `CREATE INDEX IF NOT EXISTS idx_data_groups_category ON data_groups(category_id);`
	seedLastID            = `INSERT OR IGNORE INTO registry_meta (key, value) VALUES ('last_id', 0);`
)

// schemaDDL lists all statements run on attach, in dependency order.
var schemaDDL = []string{
	createCategories,
	createColumns,
	createDataGroups,
	createRowIndex,
	createRegistryMeta,
	idxRowIndexCategory,
	idxRowIndexGroup,
	idxDataGroupsExpires,
	idxDataGroupsCategory,
	seedLastID,
}

// dataTableName returns the data table of a category.
func dataTableName(categoryID int64) string {
	return fmt.Sprintf("data_%d", categoryID)
}

// createDataTable returns the DDL for a new, empty category data table.
func createDataTable(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
    id INTEGER PRIMARY KEY,
    group_id INTEGER NOT NULL
);`, table),
		fmt.Sprintf(`CREATE INDEX idx_%s_group ON %s(group_id);`, table, table),
	}
}

// spatialIndexName returns the R*Tree holding the envelopes of one geometry column.
func spatialIndexName(table, base string) string {
	return fmt.Sprintf("rtree_%s_%s", table, base)
}

// createSpatialIndex returns the DDL for the R*Tree of a geometry column and
// the triggers that keep it in step with the data table. Rows with a null
// geometry have no entry.
func createSpatialIndex(table, base string) []string {
	rt := spatialIndexName(table, base)
	env := fmt.Sprintf("new.%[1]s_minx, new.%[1]s_maxx, new.%[1]s_miny, new.%[1]s_maxy", base)
	return []string{
		fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING rtree(id, minx, maxx, miny, maxy);`, rt),
		fmt.Sprintf(`CREATE TRIGGER %[1]s_insert AFTER INSERT ON %[2]s WHEN new.%[3]s_minx IS NOT NULL BEGIN
    INSERT INTO %[1]s VALUES (new.id, %[4]s);
END;`, rt, table, base, env),
		fmt.Sprintf(`CREATE TRIGGER %[1]s_update AFTER UPDATE OF %[3]s_minx, %[3]s_miny, %[3]s_maxx, %[3]s_maxy ON %[2]s BEGIN
    DELETE FROM %[1]s WHERE id = old.id;
    INSERT INTO %[1]s SELECT new.id, %[4]s WHERE new.%[3]s_minx IS NOT NULL;
END;`, rt, table, base, env),
		fmt.Sprintf(`CREATE TRIGGER %[1]s_delete AFTER DELETE ON %[2]s BEGIN
    DELETE FROM %[1]s WHERE id = old.id;
END;`, rt, table),
	}
}
