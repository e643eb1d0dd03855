package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// FiltersConfig is the compiled, compacted form of a ReverseEngineering tree
type FiltersConfig struct {
	Catalogs []CatalogFilter
}

// CatalogFilter holds the schema filters of one catalog. An empty name
// matches any catalog.
type CatalogFilter struct {
	Name    string
	Schemas []SchemaFilter
}

// SchemaFilter holds the table and procedure filters of one schema. An empty
// name matches any schema.
type SchemaFilter struct {
	Name       string
	Tables     *TableFilter
	Procedures *PatternFilter
}

// TableFilter selects tables and, per table, columns and relationships
type TableFilter struct {
	includes []*IncludeTableFilter
	excludes []compiledPattern
}

// IncludeTableFilter is a compiled include-table rule
type IncludeTableFilter struct {
	pattern *regexp.Regexp

	// Columns decides which columns of a matched table are imported
	Columns *PatternFilter
	// Relationships decides which foreign keys of a matched table are
	// imported, by constraint name
	Relationships *PatternFilter
	// Pinned tables are always read from the database
	Pinned bool
}

// Build compacts the tree and compiles all its patterns
func Build(r ReverseEngineering) (*FiltersConfig, error) {
	compacted := r.Compact()

	cfg := &FiltersConfig{}
	for _, c := range compacted.Catalogs {
		cf := CatalogFilter{Name: c.Name}
		for _, s := range c.Schemas {
			sf, err := buildSchemaFilter(s)
			if err != nil {
				return nil, fmt.Errorf("failed to build filters for %s: %w", scopeName(c.Name, s.Name), err)
			}
			cf.Schemas = append(cf.Schemas, sf)
		}
		cfg.Catalogs = append(cfg.Catalogs, cf)
	}
	return cfg, nil
}

// Everything returns a configuration that imports every table. Its procedure
// filter is empty, so procedures are not imported.
func Everything() *FiltersConfig {
	return &FiltersConfig{Catalogs: []CatalogFilter{{
		Schemas: []SchemaFilter{{
			Tables:     TableEverything(),
			Procedures: &PatternFilter{},
		}},
	}}}
}

// TableEverything returns a table filter that accepts every table and column
func TableEverything() *TableFilter {
	return &TableFilter{includes: []*IncludeTableFilter{{
		Columns:       IncludeEverything(),
		Relationships: IncludeEverything(),
	}}}
}

func buildSchemaFilter(s Schema) (SchemaFilter, error) {
	tables, err := buildTableFilter(s.IncludeTables, s.ExcludeTables)
	if err != nil {
		return SchemaFilter{}, err
	}
	procedures, err := NewPatternFilter(s.IncludeProcedures, s.ExcludeProcedures)
	if err != nil {
		return SchemaFilter{}, err
	}
	return SchemaFilter{Name: s.Name, Tables: tables, Procedures: procedures}, nil
}

func buildTableFilter(includes []IncludeTable, excludes []PatternParam) (*TableFilter, error) {
	tf := &TableFilter{}
	for _, it := range includes {
		itf := &IncludeTableFilter{Pinned: it.Pinned}
		if strings.TrimSpace(it.Pattern) != "" {
			cp, err := compilePattern(PatternParam{Pattern: it.Pattern})
			if err != nil {
				return nil, err
			}
			itf.pattern = cp.re
		}

		columns, err := NewPatternFilter(it.IncludeColumns, it.ExcludeColumns)
		if err != nil {
			return nil, err
		}
		relationships, err := NewPatternFilter(nil, it.ExcludeRelationships)
		if err != nil {
			return nil, err
		}
		itf.Columns = columns
		itf.Relationships = relationships
		if columns.HasPinned() {
			itf.Pinned = true
		}
		tf.includes = append(tf.includes, itf)
	}

	exc, err := compilePatterns(excludes)
	if err != nil {
		return nil, err
	}
	tf.excludes = exc
	return tf, nil
}

func scopeName(catalog, schema string) string {
	if catalog == "" {
		catalog = "*"
	}
	if schema == "" {
		schema = "*"
	}
	return "catalog " + catalog + ", schema " + schema
}

// CatalogFilter returns the first catalog filter matching the name, or nil
func (c *FiltersConfig) CatalogFilter(catalog string) *CatalogFilter {
	for i := range c.Catalogs {
		if c.Catalogs[i].Name == "" || c.Catalogs[i].Name == catalog {
			return &c.Catalogs[i]
		}
	}
	return nil
}

// SchemaFilter returns the first schema filter matching the names, or nil
func (c *FiltersConfig) SchemaFilter(catalog, schema string) *SchemaFilter {
	cf := c.CatalogFilter(catalog)
	if cf == nil {
		return nil
	}
	for i := range cf.Schemas {
		if cf.Schemas[i].Name == "" || cf.Schemas[i].Name == schema {
			return &cf.Schemas[i]
		}
	}
	return nil
}

// TableFilter returns the table filter for the scope, or nil when the scope
// is not imported at all
func (c *FiltersConfig) TableFilter(catalog, schema string) *TableFilter {
	if sf := c.SchemaFilter(catalog, schema); sf != nil {
		return sf.Tables
	}
	return nil
}

// ProcedureFilter returns the procedure filter for the scope, or nil
func (c *FiltersConfig) ProcedureFilter(catalog, schema string) *PatternFilter {
	if sf := c.SchemaFilter(catalog, schema); sf != nil {
		return sf.Procedures
	}
	return nil
}

// IsEmptyProcedures reports whether no scope declares procedure patterns
func (c *FiltersConfig) IsEmptyProcedures() bool {
	for _, cf := range c.Catalogs {
		for _, sf := range cf.Schemas {
			if !sf.Procedures.IsEmpty() {
				return false
			}
		}
	}
	return true
}

// Scopes lists the catalog and schema names the configuration refers to,
// with empty strings standing for wildcards
func (c *FiltersConfig) Scopes() [][2]string {
	var scopes [][2]string
	for _, cf := range c.Catalogs {
		for _, sf := range cf.Schemas {
			scopes = append(scopes, [2]string{cf.Name, sf.Name})
		}
	}
	return scopes
}

// IncludeTable returns the first include rule accepting the table, or nil if
// no rule accepts it or an exclude pattern matches
func (f *TableFilter) IncludeTable(name string) *IncludeTableFilter {
	if f == nil {
		return nil
	}
	var found *IncludeTableFilter
	for _, it := range f.includes {
		if it.pattern == nil || it.pattern.MatchString(name) {
			found = it
			break
		}
	}
	if found == nil {
		return nil
	}
	for _, p := range f.excludes {
		if p.re.MatchString(name) {
			return nil
		}
	}
	return found
}

// IsIncludeTable reports whether the table is imported
func (f *TableFilter) IsIncludeTable(name string) bool {
	return f.IncludeTable(name) != nil
}

// IsIncludeColumn reports whether a column of the given table is imported
func (f *TableFilter) IsIncludeColumn(table, column string) bool {
	it := f.IncludeTable(table)
	return it != nil && it.Columns.IsIncluded(column)
}

// IsPinned reports whether the table was selected by a pinned rule
func (f *TableFilter) IsPinned(name string) bool {
	it := f.IncludeTable(name)
	return it != nil && it.Pinned
}

// String renders the include rule pattern
func (it *IncludeTableFilter) String() string {
	if it.pattern == nil {
		return "*"
	}
	s := it.pattern.String()
	return strings.TrimSuffix(strings.TrimPrefix(s, "^(?:"), ")$")
}
