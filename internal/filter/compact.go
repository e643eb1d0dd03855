package filter

// Compact returns an equivalent tree in which every rule has been pushed down
// to the schema and table level. The result always has at least one catalog,
// every catalog at least one schema, and every schema at least one include
// table, using empty names as wildcards. Settings are carried over unchanged.
func (r ReverseEngineering) Compact() ReverseEngineering {
	out := r
	out.FilterContainer = FilterContainer{}
	out.Schemas = nil
	out.Catalogs = nil

	root := &r.FilterContainer
	rootTables := pushDownColumns(root.IncludeTables, columnRules{}.with(root))

	// Schemas declared at the root belong to every catalog and only inherit
	// the root rules.
	var rootSchemas []Schema
	for _, s := range r.Schemas {
		rootSchemas = append(rootSchemas, compactSchema(s, root, nil, rootTables, nil))
	}

	catalogs := r.Catalogs
	if len(catalogs) == 0 {
		catalogs = []Catalog{{}}
	}
	for _, c := range catalogs {
		cat := &c.FilterContainer
		catTables := pushDownColumns(cat.IncludeTables, columnRules{}.with(root).with(cat))

		compacted := Catalog{Name: c.Name}
		for _, s := range c.Schemas {
			compacted.Schemas = append(compacted.Schemas, compactSchema(s, root, cat, rootTables, catTables))
		}
		for _, s := range rootSchemas {
			compacted.Schemas = append(compacted.Schemas, s.clone())
		}
		if len(compacted.Schemas) == 0 {
			compacted.Schemas = []Schema{compactSchema(Schema{}, root, cat, rootTables, catTables)}
		}
		out.Catalogs = append(out.Catalogs, compacted)
	}
	return out
}

// columnRules are the column and relationship patterns inherited by tables
type columnRules struct {
	include       []PatternParam
	exclude       []PatternParam
	relationships []PatternParam
}

func (cr columnRules) with(c *FilterContainer) columnRules {
	if c == nil {
		return cr
	}
	return columnRules{
		include:       concat(cr.include, c.IncludeColumns),
		exclude:       concat(cr.exclude, c.ExcludeColumns),
		relationships: concat(cr.relationships, c.ExcludeRelationships),
	}
}

func compactSchema(s Schema, root, cat *FilterContainer, rootTables, catTables []IncludeTable) Schema {
	own := &s.FilterContainer
	rules := columnRules{}.with(root).with(cat).with(own)

	out := Schema{Name: s.Name}
	out.IncludeTables = pushDownColumns(own.IncludeTables, rules)
	out.IncludeTables = append(out.IncludeTables, cloneTables(rootTables)...)
	out.IncludeTables = append(out.IncludeTables, cloneTables(catTables)...)
	if len(out.IncludeTables) == 0 {
		out.IncludeTables = []IncludeTable{{
			IncludeColumns:       rules.include,
			ExcludeColumns:       rules.exclude,
			ExcludeRelationships: rules.relationships,
		}}
	}

	out.ExcludeTables = concat(own.ExcludeTables, root.ExcludeTables, containerOrEmpty(cat).ExcludeTables)
	out.IncludeProcedures = concat(own.IncludeProcedures, root.IncludeProcedures, containerOrEmpty(cat).IncludeProcedures)
	out.ExcludeProcedures = concat(own.ExcludeProcedures, root.ExcludeProcedures, containerOrEmpty(cat).ExcludeProcedures)
	return out
}

func pushDownColumns(tables []IncludeTable, rules columnRules) []IncludeTable {
	var out []IncludeTable
	for _, t := range tables {
		out = append(out, IncludeTable{
			Pattern:              t.Pattern,
			Pinned:               t.Pinned,
			IncludeColumns:       concat(t.IncludeColumns, rules.include),
			ExcludeColumns:       concat(t.ExcludeColumns, rules.exclude),
			ExcludeRelationships: concat(t.ExcludeRelationships, rules.relationships),
		})
	}
	return out
}

func containerOrEmpty(c *FilterContainer) *FilterContainer {
	if c == nil {
		return &FilterContainer{}
	}
	return c
}

func concat(lists ...[]PatternParam) []PatternParam {
	var out []PatternParam
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func cloneTables(tables []IncludeTable) []IncludeTable {
	out := make([]IncludeTable, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.clone())
	}
	return out
}

func (t IncludeTable) clone() IncludeTable {
	t.IncludeColumns = concat(t.IncludeColumns)
	t.ExcludeColumns = concat(t.ExcludeColumns)
	t.ExcludeRelationships = concat(t.ExcludeRelationships)
	return t
}

func (s Schema) clone() Schema {
	out := Schema{Name: s.Name}
	out.IncludeTables = cloneTables(s.IncludeTables)
	out.ExcludeTables = concat(s.ExcludeTables)
	out.IncludeColumns = concat(s.IncludeColumns)
	out.ExcludeColumns = concat(s.ExcludeColumns)
	out.IncludeProcedures = concat(s.IncludeProcedures)
	out.ExcludeProcedures = concat(s.ExcludeProcedures)
	out.ExcludeRelationships = concat(s.ExcludeRelationships)
	return out
}
