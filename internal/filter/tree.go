// Package filter describes which catalogs, schemas, tables, columns and
// procedures take part in an import, and evaluates those rules against
// database object names.
//
// A ReverseEngineering tree is what users configure. Build compacts it into a
// FiltersConfig that answers membership questions for a catalog and schema.
package filter

import (
	"strings"
)

// PatternParam is a single regular expression, optionally pinned so that
// matching tables are always re-read from the database
type PatternParam struct {
	Pattern string `toml:"pattern" xml:"pattern,attr" yaml:"pattern"`
	Pinned  bool   `toml:"pinned" xml:"pinned,attr,omitempty" yaml:"pinned,omitempty"`
}

// UnmarshalText lets a plain string stand for an unpinned pattern
func (p *PatternParam) UnmarshalText(text []byte) error {
	p.Pattern = string(text)
	p.Pinned = false
	return nil
}

// MarshalText writes the pattern back as a plain string
func (p PatternParam) MarshalText() ([]byte, error) {
	return []byte(p.Pattern), nil
}

// IncludeTable selects tables by pattern and carries the column and
// relationship rules that apply to them. An empty pattern means any table.
type IncludeTable struct {
	Pattern              string         `toml:"pattern" xml:"pattern,attr,omitempty" yaml:"pattern,omitempty"`
	Pinned               bool           `toml:"pinned" xml:"pinned,attr,omitempty" yaml:"pinned,omitempty"`
	IncludeColumns       []PatternParam `toml:"include_columns" xml:"includeColumn" yaml:"include_columns,omitempty"`
	ExcludeColumns       []PatternParam `toml:"exclude_columns" xml:"excludeColumn" yaml:"exclude_columns,omitempty"`
	ExcludeRelationships []PatternParam `toml:"exclude_relationships" xml:"excludeRelationship" yaml:"exclude_relationships,omitempty"`
}

// FilterContainer is the set of rules any level of the tree may declare
type FilterContainer struct {
	IncludeTables        []IncludeTable `toml:"include_tables" xml:"includeTable" yaml:"include_tables,omitempty"`
	ExcludeTables        []PatternParam `toml:"exclude_tables" xml:"excludeTable" yaml:"exclude_tables,omitempty"`
	IncludeColumns       []PatternParam `toml:"include_columns" xml:"includeColumn" yaml:"include_columns,omitempty"`
	ExcludeColumns       []PatternParam `toml:"exclude_columns" xml:"excludeColumn" yaml:"exclude_columns,omitempty"`
	IncludeProcedures    []PatternParam `toml:"include_procedures" xml:"includeProcedure" yaml:"include_procedures,omitempty"`
	ExcludeProcedures    []PatternParam `toml:"exclude_procedures" xml:"excludeProcedure" yaml:"exclude_procedures,omitempty"`
	ExcludeRelationships []PatternParam `toml:"exclude_relationships" xml:"excludeRelationship" yaml:"exclude_relationships,omitempty"`
}

// Schema scopes rules to a schema. An empty name means any schema.
type Schema struct {
	Name            string `toml:"name" xml:"name,attr,omitempty" yaml:"name,omitempty"`
	FilterContainer `yaml:",inline"`
}

// Catalog scopes rules and schemas to a catalog. An empty name means any
// catalog.
type Catalog struct {
	Name            string   `toml:"name" xml:"name,attr,omitempty" yaml:"name,omitempty"`
	Schemas         []Schema `toml:"schemas" xml:"schema" yaml:"schemas,omitempty"`
	FilterContainer `yaml:",inline"`
}

// ReverseEngineering is the root of the filter tree plus import settings
type ReverseEngineering struct {
	Catalogs        []Catalog `toml:"catalogs" xml:"catalog" yaml:"catalogs,omitempty"`
	Schemas         []Schema  `toml:"schemas" xml:"schema" yaml:"schemas,omitempty"`
	FilterContainer `yaml:",inline"`

	SkipRelationshipsLoading bool     `toml:"skip_relationships_loading" xml:"skipRelationshipsLoading,omitempty" yaml:"skip_relationships_loading,omitempty"`
	SkipPrimaryKeyLoading    bool     `toml:"skip_primary_key_loading" xml:"skipPrimaryKeyLoading,omitempty" yaml:"skip_primary_key_loading,omitempty"`
	ForceDataMapCatalog      bool     `toml:"force_datamap_catalog" xml:"forceDataMapCatalog,omitempty" yaml:"force_datamap_catalog,omitempty"`
	ForceDataMapSchema       bool     `toml:"force_datamap_schema" xml:"forceDataMapSchema,omitempty" yaml:"force_datamap_schema,omitempty"`
	DefaultPackage           string   `toml:"default_package" xml:"defaultPackage,omitempty" yaml:"default_package,omitempty"`
	MeaningfulPKTables       string   `toml:"meaningful_pk_tables" xml:"meaningfulPkTables,omitempty" yaml:"meaningful_pk_tables,omitempty"`
	NamingStrategy           string   `toml:"naming_strategy" xml:"namingStrategy,omitempty" yaml:"naming_strategy,omitempty"`
	StripFromTableNames      string   `toml:"strip_from_table_names" xml:"stripFromTableNames,omitempty" yaml:"strip_from_table_names,omitempty"`
	TableTypes               []string `toml:"table_types" xml:"tableType" yaml:"table_types,omitempty"`
}

// IsEmpty reports whether the container declares no rules
func (c *FilterContainer) IsEmpty() bool {
	return len(c.IncludeTables) == 0 && len(c.ExcludeTables) == 0 &&
		len(c.IncludeColumns) == 0 && len(c.ExcludeColumns) == 0 &&
		len(c.IncludeProcedures) == 0 && len(c.ExcludeProcedures) == 0 &&
		len(c.ExcludeRelationships) == 0
}

// IsEmpty reports whether the schema declares no rules
func (s *Schema) IsEmpty() bool {
	return s.FilterContainer.IsEmpty()
}

// IsEmpty reports whether the catalog and all its schemas declare no rules
func (c *Catalog) IsEmpty() bool {
	if !c.FilterContainer.IsEmpty() {
		return false
	}
	for i := range c.Schemas {
		if !c.Schemas[i].IsEmpty() {
			return false
		}
	}
	return true
}

// IsEmptyContainer reports whether the tree has no catalogs, no schemas and no
// rules, i.e. whether the whole database is imported
func (r *ReverseEngineering) IsEmptyContainer() bool {
	return len(r.Catalogs) == 0 && len(r.Schemas) == 0 && r.FilterContainer.IsEmpty()
}

// HasProcedureFilters reports whether any level declares procedure patterns
func (r *ReverseEngineering) HasProcedureFilters() bool {
	has := func(c *FilterContainer) bool {
		return len(c.IncludeProcedures) > 0 || len(c.ExcludeProcedures) > 0
	}
	if has(&r.FilterContainer) {
		return true
	}
	for i := range r.Schemas {
		if has(&r.Schemas[i].FilterContainer) {
			return true
		}
	}
	for i := range r.Catalogs {
		if has(&r.Catalogs[i].FilterContainer) {
			return true
		}
		for j := range r.Catalogs[i].Schemas {
			if has(&r.Catalogs[i].Schemas[j].FilterContainer) {
				return true
			}
		}
	}
	return false
}

// String renders the tree as an indented outline for debug logging
func (r ReverseEngineering) String() string {
	var sb strings.Builder
	sb.WriteString("ReverseEngineering:\n")
	for _, c := range r.Catalogs {
		c.write(&sb, "  ")
	}
	for _, s := range r.Schemas {
		s.write(&sb, "  ")
	}
	r.FilterContainer.write(&sb, "  ")
	return sb.String()
}

func (c Catalog) write(sb *strings.Builder, indent string) {
	writeLine(sb, indent, "Catalog", c.Name)
	for _, s := range c.Schemas {
		s.write(sb, indent+"  ")
	}
	c.FilterContainer.write(sb, indent+"  ")
}

func (s Schema) write(sb *strings.Builder, indent string) {
	writeLine(sb, indent, "Schema", s.Name)
	s.FilterContainer.write(sb, indent+"  ")
}

func (c FilterContainer) write(sb *strings.Builder, indent string) {
	for _, t := range c.IncludeTables {
		writeLine(sb, indent, "IncludeTable", t.Pattern)
		writeParams(sb, indent+"  ", "IncludeColumn", t.IncludeColumns)
		writeParams(sb, indent+"  ", "ExcludeColumn", t.ExcludeColumns)
		writeParams(sb, indent+"  ", "ExcludeRelationship", t.ExcludeRelationships)
	}
	writeParams(sb, indent, "ExcludeTable", c.ExcludeTables)
	writeParams(sb, indent, "IncludeColumn", c.IncludeColumns)
	writeParams(sb, indent, "ExcludeColumn", c.ExcludeColumns)
	writeParams(sb, indent, "IncludeProcedure", c.IncludeProcedures)
	writeParams(sb, indent, "ExcludeProcedure", c.ExcludeProcedures)
	writeParams(sb, indent, "ExcludeRelationship", c.ExcludeRelationships)
}

func writeParams(sb *strings.Builder, indent, label string, params []PatternParam) {
	for _, p := range params {
		writeLine(sb, indent, label, p.Pattern)
	}
}

func writeLine(sb *strings.Builder, indent, label, name string) {
	if name == "" {
		name = "null"
	}
	sb.WriteString(indent)
	sb.WriteString(label)
	sb.WriteString(": ")
	sb.WriteString(name)
	sb.WriteString("\n")
}
