package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tordrt/dbsync/internal/filter"
	"github.com/tordrt/dbsync/internal/model"
	"github.com/tordrt/dbsync/internal/naming"
)

// LoaderOptions configures a Loader
type LoaderOptions struct {
	// Filters selects the scopes, tables, columns, relationships and
	// procedures to load. Nil loads every table and no procedures.
	Filters *filter.FiltersConfig
	// TableTypes overrides the introspector defaults
	TableTypes        []string
	SkipPrimaryKeys   bool
	SkipRelationships bool
	NameGenerator     naming.NameGenerator
	// Cache is optional. Pinned tables never use it.
	Cache  *MetadataCache
	Logger *slog.Logger
}

// Loader builds a DataMap from a live database
type Loader struct {
	introspector Introspector
	opts         LoaderOptions
}

type loadedTable struct {
	entity *model.DbEntity
	ref    TableRef
	filter *filter.IncludeTableFilter
}

// NewLoader creates a loader. Missing options get defaults.
func NewLoader(in Introspector, opts LoaderOptions) *Loader {
	if opts.Filters == nil {
		opts.Filters = filter.Everything()
	}
	if opts.NameGenerator == nil {
		opts.NameGenerator, _ = naming.New(naming.StrategyDefault, "")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{introspector: in, opts: opts}
}

// Load reads every configured scope into a new DataMap
func (l *Loader) Load(ctx context.Context) (*model.DataMap, error) {
	m := model.NewDataMap("")

	types := l.opts.TableTypes
	if len(types) == 0 {
		types = l.introspector.DefaultTableTypes()
	}

	var tables []loadedTable
	seen := make(map[string]bool)
	for _, cf := range l.opts.Filters.Catalogs {
		for _, sf := range cf.Schemas {
			loaded, err := l.loadTables(ctx, m, cf.Name, sf, types, seen)
			if err != nil {
				return nil, err
			}
			tables = append(tables, loaded...)

			if !sf.Procedures.IsEmpty() {
				if err := l.loadProcedures(ctx, m, cf.Name, sf); err != nil {
					return nil, err
				}
			}
		}
	}

	if !l.opts.SkipRelationships {
		if err := l.loadRelationships(ctx, tables); err != nil {
			return nil, err
		}
	}

	l.opts.Logger.Info("loaded database schema",
		"tables", len(m.DbEntities()),
		"procedures", len(m.Procedures()))
	return m, nil
}

func (l *Loader) loadTables(ctx context.Context, m *model.DataMap, catalog string, sf filter.SchemaFilter, types []string, seen map[string]bool) ([]loadedTable, error) {
	refs, err := l.introspector.Tables(ctx, catalog, sf.Name, types)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names for %s: %w", scopeLabel(catalog, sf.Name), err)
	}

	var loaded []loadedTable
	for _, ref := range refs {
		if seen[ref.Key()] {
			continue
		}
		it := sf.Tables.IncludeTable(ref.Name)
		if it == nil {
			l.opts.Logger.Debug("skipping table", "table", ref.Key())
			continue
		}
		seen[ref.Key()] = true

		md, err := l.tableMetadata(ctx, ref, it.Pinned)
		if err != nil {
			return nil, fmt.Errorf("failed to load table %s: %w", ref.Name, err)
		}
		e := l.entity(md, it)
		m.AddDbEntity(e)
		loaded = append(loaded, loadedTable{entity: e, ref: ref, filter: it})
	}
	return loaded, nil
}

func (l *Loader) tableMetadata(ctx context.Context, ref TableRef, pinned bool) (*TableMetadata, error) {
	cache := l.opts.Cache
	if cache != nil && !pinned {
		if md, ok := cache.Get(ref); ok {
			return md, nil
		}
	}

	md, err := l.introspector.Table(ctx, ref)
	if err != nil {
		return nil, err
	}
	md.Ref = ref
	if cache != nil && !pinned {
		cache.Add(md)
	}
	return md, nil
}

func (l *Loader) entity(md *TableMetadata, it *filter.IncludeTableFilter) *model.DbEntity {
	e := model.NewDbEntity(md.Ref.Name)
	e.Catalog = md.Ref.Catalog
	e.Schema = md.Ref.Schema

	for _, c := range md.Columns {
		if !it.Columns.IsIncluded(c.Name) {
			continue
		}
		a := model.NewDbAttribute(c.Name, c.Type)
		if c.MaxLength > 0 {
			a.MaxLength = c.MaxLength
		}
		if c.Scale > 0 {
			a.Scale = c.Scale
		}
		a.Mandatory = !c.Nullable
		a.Generated = c.Generated
		e.AddAttribute(a)
	}

	if !l.opts.SkipPrimaryKeys {
		for _, name := range md.PrimaryKey {
			if a := e.Attribute(name); a != nil {
				a.PrimaryKey = true
			}
		}
		e.PrimaryKeyName = md.PrimaryKeyName
	}
	return e
}

// loadRelationships turns imported keys into relationship pairs. The forward
// relationship sits on the PK table, the reverse to-one on the FK table.
func (l *Loader) loadRelationships(ctx context.Context, tables []loadedTable) error {
	byKey := make(map[string]*model.DbEntity, len(tables))
	for _, t := range tables {
		byKey[t.ref.Key()] = t.entity
	}

	for _, t := range tables {
		keys, err := l.introspector.ForeignKeys(ctx, t.ref)
		if err != nil {
			return fmt.Errorf("failed to load relationships of %s: %w", t.ref.Name, err)
		}

		for _, group := range groupForeignKeys(keys) {
			first := group[0]
			if first.PKCatalog != t.ref.Catalog || first.PKSchema != t.ref.Schema {
				l.opts.Logger.Info("skip relation related to objects from other catalog/schema",
					"relation", first.Name, "pk", first.PKCatalog+"."+first.PKSchema, "fk", t.ref.Catalog+"."+t.ref.Schema)
				continue
			}
			pkEntity := byKey[TableRef{Catalog: first.PKCatalog, Schema: first.PKSchema, Name: first.PKTable}.Key()]
			if pkEntity == nil {
				l.opts.Logger.Debug("skip relation, primary key table not loaded", "relation", first.Name, "table", first.PKTable)
				continue
			}
			if !t.filter.Relationships.IsIncluded(first.Name) {
				l.opts.Logger.Debug("skip excluded relation", "relation", first.Name, "table", t.ref.Name)
				continue
			}
			l.addRelationships(pkEntity, t.entity, group)
		}
	}
	return nil
}

func groupForeignKeys(keys []ForeignKey) [][]ForeignKey {
	var groups [][]ForeignKey
	index := make(map[string]int)
	for _, k := range keys {
		i, ok := index[k.Name]
		if !ok {
			i = len(groups)
			index[k.Name] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], k)
	}
	return groups
}

func (l *Loader) addRelationships(pkEntity, fkEntity *model.DbEntity, keys []ForeignKey) {
	forward := model.NewDbRelationship("", fkEntity.Name)
	reverse := model.NewDbRelationship("", pkEntity.Name)

	for _, k := range keys {
		if pkEntity.Attribute(k.PKColumn) == nil {
			l.opts.Logger.Info("no attribute for declared primary key", "column", k.PKColumn)
			continue
		}
		if fkEntity.Attribute(k.FKColumn) == nil {
			l.opts.Logger.Info("no attribute for declared foreign key", "column", k.FKColumn)
			continue
		}
		forward.AddJoin(k.PKColumn, k.FKColumn)
		reverse.AddJoin(k.FKColumn, k.PKColumn)
	}
	if len(forward.Joins()) == 0 {
		return
	}

	dependent := true
	for _, j := range forward.Joins() {
		if a := fkEntity.Attribute(j.TargetName); a == nil || !a.PrimaryKey {
			dependent = false
			break
		}
	}
	forward.ToDependentPK = dependent
	forward.ToMany = !(dependent && len(fkEntity.PrimaryKeys()) == len(forward.Joins()))

	// names are generated once the joins are known
	gen := l.opts.NameGenerator
	reverse.Name = naming.Unique(gen.RelationshipName(reverse), relationshipTaken(fkEntity))
	fkEntity.AddRelationship(reverse)
	forward.Name = naming.Unique(gen.RelationshipName(forward), relationshipTaken(pkEntity))
	pkEntity.AddRelationship(forward)
}

func relationshipTaken(e *model.DbEntity) func(string) bool {
	return func(name string) bool {
		return e.Relationship(name) != nil
	}
}

func (l *Loader) loadProcedures(ctx context.Context, m *model.DataMap, catalog string, sf filter.SchemaFilter) error {
	procedures, err := l.introspector.Procedures(ctx, catalog, sf.Name)
	if err != nil {
		return fmt.Errorf("failed to load procedures: %w", err)
	}
	for _, p := range procedures {
		if !sf.Procedures.IsIncluded(p.Name) {
			l.opts.Logger.Debug("skipping procedure", "procedure", p.Name)
			continue
		}
		if m.Procedure(p.Name) != nil {
			continue
		}
		m.AddProcedure(&model.Procedure{
			Name:           p.Name,
			Catalog:        p.Catalog,
			Schema:         p.Schema,
			ReturningValue: p.ReturningValue,
			Parameters:     p.Parameters,
		})
	}
	return nil
}

// scopeLabel renders a catalog and schema pair for log messages
func scopeLabel(catalog, schema string) string {
	parts := []string{catalog, schema}
	for i, p := range parts {
		if p == "" {
			parts[i] = "*"
		}
	}
	return strings.Join(parts, ".")
}
