package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/dbsync/internal/filter"
	"github.com/tordrt/dbsync/internal/model"
)

// fakeIntrospector serves fixed metadata and counts table reads
type fakeIntrospector struct {
	refs       []TableRef
	tables     map[string]*TableMetadata
	keys       map[string][]ForeignKey
	procedures []ProcedureMetadata
	reads      map[string]int
	err        error
}

func newFake() *fakeIntrospector {
	return &fakeIntrospector{
		tables: make(map[string]*TableMetadata),
		keys:   make(map[string][]ForeignKey),
		reads:  make(map[string]int),
	}
}

func (f *fakeIntrospector) addTable(name string, pk []string, cols ...ColumnMetadata) {
	ref := TableRef{Name: name, Type: TableTypeTable}
	f.refs = append(f.refs, ref)
	f.tables[name] = &TableMetadata{Ref: ref, Columns: cols, PrimaryKey: pk, PrimaryKeyName: name + "_pkey"}
}

func (f *fakeIntrospector) addKey(name, fkTable, fkColumn, pkTable, pkColumn string) {
	f.keys[fkTable] = append(f.keys[fkTable], ForeignKey{
		Name: name, Seq: len(f.keys[fkTable]) + 1,
		FKTable: fkTable, FKColumn: fkColumn,
		PKTable: pkTable, PKColumn: pkColumn,
	})
}

func (f *fakeIntrospector) DefaultTableTypes() []string { return []string{TableTypeTable} }

func (f *fakeIntrospector) Tables(_ context.Context, catalog, schema string, types []string) ([]TableRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	var refs []TableRef
	for _, r := range f.refs {
		if (catalog == "" || r.Catalog == catalog) && (schema == "" || r.Schema == schema) && includesType(types, r.Type) {
			refs = append(refs, r)
		}
	}
	return refs, nil
}

func (f *fakeIntrospector) Table(_ context.Context, ref TableRef) (*TableMetadata, error) {
	f.reads[ref.Name]++
	md, ok := f.tables[ref.Name]
	if !ok {
		return nil, errors.New("no such table")
	}
	c := *md
	return &c, nil
}

func (f *fakeIntrospector) ForeignKeys(_ context.Context, ref TableRef) ([]ForeignKey, error) {
	return f.keys[ref.Name], nil
}

func (f *fakeIntrospector) Procedures(context.Context, string, string) ([]ProcedureMetadata, error) {
	return f.procedures, nil
}

func col(name, decl string, nullable bool) ColumnMetadata {
	return nativeColumn(name, decl, nullable)
}

func artistGallery() *fakeIntrospector {
	f := newFake()
	f.addTable("ARTIST", []string{"ID"},
		col("ID", "INTEGER", false),
		col("NAME", "VARCHAR(100)", true),
		col("BIRTH_YEAR", "INTEGER", true))
	f.addTable("PAINTING", []string{"ID"},
		col("ID", "INTEGER", false),
		col("ARTIST_ID", "INTEGER", true),
		col("TITLE", "VARCHAR(200)", false),
		col("PRICE", "DECIMAL(10,2)", true))
	f.addTable("GALLERY", []string{"ID"},
		col("ID", "INTEGER", false),
		col("NAME", "VARCHAR(100)", false))
	f.addTable("PAINTING_GALLERY", []string{"PAINTING_ID", "GALLERY_ID"},
		col("PAINTING_ID", "INTEGER", false),
		col("GALLERY_ID", "INTEGER", false))
	f.addKey("painting_artist_fk", "PAINTING", "ARTIST_ID", "ARTIST", "ID")
	f.addKey("pg_painting_fk", "PAINTING_GALLERY", "PAINTING_ID", "PAINTING", "ID")
	f.addKey("pg_gallery_fk", "PAINTING_GALLERY", "GALLERY_ID", "GALLERY", "ID")
	return f
}

func buildFilters(t *testing.T, r filter.ReverseEngineering) *filter.FiltersConfig {
	t.Helper()
	cfg, err := filter.Build(r)
	require.NoError(t, err)
	return cfg
}

func TestLoader_Load(t *testing.T) {
	m, err := NewLoader(artistGallery(), LoaderOptions{}).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, m.DbEntities(), 4)
	artist := m.DbEntity("ARTIST")
	require.NotNil(t, artist)
	assert.Equal(t, "ARTIST_pkey", artist.PrimaryKeyName)
	assert.True(t, artist.Attribute("ID").PrimaryKey)
	assert.True(t, artist.Attribute("ID").Mandatory)
	assert.False(t, artist.Attribute("NAME").Mandatory)
	assert.Equal(t, model.TypeVarChar, artist.Attribute("NAME").Type)
	assert.Equal(t, 100, artist.Attribute("NAME").MaxLength)

	price := m.DbEntity("PAINTING").Attribute("PRICE")
	assert.Equal(t, model.TypeDecimal, price.Type)
	assert.Equal(t, 10, price.MaxLength)
	assert.Equal(t, 2, price.Scale)

	paintings := artist.Relationship("paintings")
	require.NotNil(t, paintings)
	assert.True(t, paintings.ToMany)
	assert.False(t, paintings.ToDependentPK)
	assert.Equal(t, []model.DbJoin{{SourceName: "ID", TargetName: "ARTIST_ID"}}, paintings.Joins())

	toArtist := m.DbEntity("PAINTING").Relationship("artist")
	require.NotNil(t, toArtist)
	assert.False(t, toArtist.ToMany)
	assert.Same(t, paintings, toArtist.ReverseRelationship())
	assert.True(t, toArtist.IsForeignKeyBearing())

	toJoin := m.DbEntity("GALLERY").Relationship("paintingGalleries")
	require.NotNil(t, toJoin)
	assert.True(t, toJoin.ToDependentPK)
	assert.True(t, toJoin.ToMany, "join table has a two column key")
	assert.Empty(t, m.Procedures())
}

func TestLoader_Filters(t *testing.T) {
	f := artistGallery()
	cfg := buildFilters(t, filter.ReverseEngineering{FilterContainer: filter.FilterContainer{
		IncludeTables: []filter.IncludeTable{
			{Pattern: "ARTIST", ExcludeColumns: []filter.PatternParam{{Pattern: "BIRTH_.*"}}},
			{Pattern: "PAINTING", ExcludeRelationships: []filter.PatternParam{{Pattern: "painting_artist_fk"}}},
		},
	}})

	m, err := NewLoader(f, LoaderOptions{Filters: cfg}).Load(context.Background())
	require.NoError(t, err)

	var names []string
	for _, e := range m.DbEntities() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"ARTIST", "PAINTING"}, names)
	assert.Nil(t, m.DbEntity("ARTIST").Attribute("BIRTH_YEAR"))
	assert.Len(t, m.DbEntity("ARTIST").Attributes(), 2)
	assert.Empty(t, m.DbEntity("PAINTING").Relationships(), "relationship excluded by constraint name")
	assert.Empty(t, m.DbEntity("ARTIST").Relationships())
	assert.Zero(t, f.reads["GALLERY"], "excluded tables are not read")
}

func TestLoader_SkipOptions(t *testing.T) {
	m, err := NewLoader(artistGallery(), LoaderOptions{SkipPrimaryKeys: true, SkipRelationships: true}).Load(context.Background())
	require.NoError(t, err)

	for _, e := range m.DbEntities() {
		assert.Empty(t, e.PrimaryKeys(), e.Name)
		assert.Empty(t, e.Relationships(), e.Name)
		assert.Empty(t, e.PrimaryKeyName)
	}
}

func TestLoader_ForeignKeyToUnloadedTable(t *testing.T) {
	f := artistGallery()
	cfg := buildFilters(t, filter.ReverseEngineering{FilterContainer: filter.FilterContainer{
		ExcludeTables: []filter.PatternParam{{Pattern: "ARTIST"}},
	}})

	m, err := NewLoader(f, LoaderOptions{Filters: cfg}).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m.DbEntity("ARTIST"))
	assert.Nil(t, m.DbEntity("PAINTING").Relationship("artist"))
	assert.NotNil(t, m.DbEntity("PAINTING").Relationship("paintingGalleries"))
}

func TestLoader_CrossScopeKey(t *testing.T) {
	f := newFake()
	f.refs = []TableRef{
		{Schema: "sales", Name: "orders", Type: TableTypeTable},
		{Schema: "crm", Name: "customers", Type: TableTypeTable},
	}
	f.tables["orders"] = &TableMetadata{Columns: []ColumnMetadata{col("id", "int", false), col("customer_id", "int", false)}, PrimaryKey: []string{"id"}}
	f.tables["customers"] = &TableMetadata{Columns: []ColumnMetadata{col("id", "int", false)}, PrimaryKey: []string{"id"}}
	f.keys["orders"] = []ForeignKey{{
		Name: "orders_customer_fk", Seq: 1,
		FKSchema: "sales", FKTable: "orders", FKColumn: "customer_id",
		PKSchema: "crm", PKTable: "customers", PKColumn: "id",
	}}

	m, err := NewLoader(f, LoaderOptions{}).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m.DbEntity("orders"))
	assert.Equal(t, "sales", m.DbEntity("orders").Schema)
	assert.Empty(t, m.DbEntity("orders").Relationships())
	assert.Empty(t, m.DbEntity("customers").Relationships())
}

func TestLoader_CompoundKey(t *testing.T) {
	f := newFake()
	f.addTable("ORDER_LINE", []string{"ORDER_ID", "LINE_NO"},
		col("ORDER_ID", "INTEGER", false), col("LINE_NO", "INTEGER", false))
	f.addTable("SHIPMENT", []string{"ID"},
		col("ID", "INTEGER", false), col("ORDER_ID", "INTEGER", false), col("LINE_NO", "INTEGER", false))
	f.addKey("shipment_line_fk", "SHIPMENT", "ORDER_ID", "ORDER_LINE", "ORDER_ID")
	f.addKey("shipment_line_fk", "SHIPMENT", "LINE_NO", "ORDER_LINE", "LINE_NO")

	m, err := NewLoader(f, LoaderOptions{}).Load(context.Background())
	require.NoError(t, err)

	rels := m.DbEntity("SHIPMENT").Relationships()
	require.Len(t, rels, 1)
	assert.Len(t, rels[0].Joins(), 2)
	assert.Equal(t, "orderLine", rels[0].Name)
	assert.Len(t, m.DbEntity("ORDER_LINE").Relationships(), 1)
}

func TestLoader_OneToOneDependentKey(t *testing.T) {
	f := newFake()
	f.addTable("ARTIST", []string{"ID"}, col("ID", "INTEGER", false))
	f.addTable("ARTIST_INFO", []string{"ARTIST_ID"}, col("ARTIST_ID", "INTEGER", false), col("BIO", "TEXT", true))
	f.addKey("info_artist_fk", "ARTIST_INFO", "ARTIST_ID", "ARTIST", "ID")

	m, err := NewLoader(f, LoaderOptions{}).Load(context.Background())
	require.NoError(t, err)

	rels := m.DbEntity("ARTIST").Relationships()
	require.Len(t, rels, 1)
	assert.True(t, rels[0].ToDependentPK)
	assert.False(t, rels[0].ToMany)
	assert.Equal(t, "artistInfo", rels[0].Name)
}

func TestLoader_Procedures(t *testing.T) {
	f := artistGallery()
	f.procedures = []ProcedureMetadata{
		{Name: "calc_tax", ReturningValue: true, Parameters: []model.ProcedureParameter{{Name: "amount", Direction: model.DirectionIn, Type: model.TypeDecimal}}},
		{Name: "cleanup"},
	}

	m, err := NewLoader(f, LoaderOptions{}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m.Procedures(), "no procedure filter, no procedures")

	cfg := buildFilters(t, filter.ReverseEngineering{FilterContainer: filter.FilterContainer{
		IncludeProcedures: []filter.PatternParam{{Pattern: "calc_.*"}},
	}})
	m, err = NewLoader(f, LoaderOptions{Filters: cfg}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Procedures(), 1)
	p := m.Procedure("calc_tax")
	require.NotNil(t, p)
	assert.True(t, p.ReturningValue)
	assert.Len(t, p.Parameters, 1)
}

func TestLoader_Cache(t *testing.T) {
	f := artistGallery()
	cache := NewMetadataCache(0, 0)
	cfg := buildFilters(t, filter.ReverseEngineering{FilterContainer: filter.FilterContainer{
		IncludeTables: []filter.IncludeTable{
			{Pattern: "ARTIST", Pinned: true},
			{Pattern: ".*"},
		},
	}})
	loader := NewLoader(f, LoaderOptions{Filters: cfg, Cache: cache})

	for i := 0; i < 3; i++ {
		_, err := loader.Load(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 3, f.reads["ARTIST"], "pinned tables bypass the cache")
	assert.Equal(t, 1, f.reads["PAINTING"])
	assert.Equal(t, 3, cache.Len())

	cache.Purge()
	_, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.reads["PAINTING"])
}

func TestLoader_TableTypes(t *testing.T) {
	f := artistGallery()
	f.refs = append(f.refs, TableRef{Name: "ARTIST_VIEW", Type: TableTypeView})
	f.tables["ARTIST_VIEW"] = &TableMetadata{Columns: []ColumnMetadata{col("NAME", "VARCHAR(100)", true)}}

	m, err := NewLoader(f, LoaderOptions{}).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m.DbEntity("ARTIST_VIEW"), "views are not a default type here")

	m, err = NewLoader(f, LoaderOptions{TableTypes: []string{"VIEW"}}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, m.DbEntities(), 1)
	assert.NotNil(t, m.DbEntity("ARTIST_VIEW"))
}

func TestLoader_Error(t *testing.T) {
	f := artistGallery()
	f.err = errors.New("connection reset")

	_, err := NewLoader(f, LoaderOptions{}).Load(context.Background())
	require.Error(t, err)
	assert.EqualError(t, err, "failed to get table names for *.*: connection reset")

	f = artistGallery()
	delete(f.tables, "GALLERY")
	_, err = NewLoader(f, LoaderOptions{}).Load(context.Background())
	assert.EqualError(t, err, "failed to load table GALLERY: no such table")
}
