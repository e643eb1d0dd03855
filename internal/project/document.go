// Package project reads and writes data map files and the project descriptor
// that lists them.
package project

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tordrt/dbsync/internal/filter"
	"github.com/tordrt/dbsync/internal/model"
)

// Persisted format identifiers
const (
	ProjectVersion  = "10"
	MapNamespace    = "http://cayenne.apache.org/schema/10/modelMap"
	DomainNamespace = "http://cayenne.apache.org/schema/10/domain"
)

// Map properties
const (
	propertyDefaultPackage = "defaultPackage"
	propertyDefaultCatalog = "defaultCatalog"
	propertyDefaultSchema  = "defaultSchema"
)

// mapDocument is the serialized form of a DataMap. XML and YAML share it.
type mapDocument struct {
	XMLName        xml.Name `xml:"data-map" yaml:"-"`
	Namespace      string   `xml:"xmlns,attr,omitempty" yaml:"-"`
	ProjectVersion string   `xml:"project-version,attr" yaml:"project_version"`

	Properties       []propertyDoc        `xml:"property" yaml:"properties,omitempty"`
	Procedures       []procedureDoc       `xml:"procedure" yaml:"procedures,omitempty"`
	DbEntities       []dbEntityDoc        `xml:"db-entity" yaml:"db_entities,omitempty"`
	ObjEntities      []objEntityDoc       `xml:"obj-entity" yaml:"obj_entities,omitempty"`
	DbRelationships  []dbRelationshipDoc  `xml:"db-relationship" yaml:"db_relationships,omitempty"`
	ObjRelationships []objRelationshipDoc `xml:"obj-relationship" yaml:"obj_relationships,omitempty"`

	DbImport *filter.ReverseEngineering `xml:"dbImport" yaml:"db_import,omitempty"`
}

type propertyDoc struct {
	Name  string `xml:"name,attr" yaml:"name"`
	Value string `xml:"value,attr" yaml:"value"`
}

type procedureDoc struct {
	Name           string         `xml:"name,attr" yaml:"name"`
	Catalog        string         `xml:"catalog,attr,omitempty" yaml:"catalog,omitempty"`
	Schema         string         `xml:"schema,attr,omitempty" yaml:"schema,omitempty"`
	ReturningValue bool           `xml:"returningValue,attr,omitempty" yaml:"returning_value,omitempty"`
	Parameters     []parameterDoc `xml:"procedure-parameter" yaml:"parameters,omitempty"`
}

type parameterDoc struct {
	Name      string `xml:"name,attr" yaml:"name"`
	Type      string `xml:"type,attr,omitempty" yaml:"type,omitempty"`
	Length    int    `xml:"length,attr,omitempty" yaml:"length,omitempty"`
	Precision int    `xml:"precision,attr,omitempty" yaml:"precision,omitempty"`
	Direction string `xml:"direction,attr,omitempty" yaml:"direction,omitempty"`
}

type dbEntityDoc struct {
	Name       string           `xml:"name,attr" yaml:"name"`
	Catalog    string           `xml:"catalog,attr,omitempty" yaml:"catalog,omitempty"`
	Schema     string           `xml:"schema,attr,omitempty" yaml:"schema,omitempty"`
	Attributes []dbAttributeDoc `xml:"db-attribute" yaml:"attributes,omitempty"`
}

type dbAttributeDoc struct {
	Name       string `xml:"name,attr" yaml:"name"`
	Type       string `xml:"type,attr" yaml:"type"`
	PrimaryKey bool   `xml:"isPrimaryKey,attr,omitempty" yaml:"primary_key,omitempty"`
	Mandatory  bool   `xml:"isMandatory,attr,omitempty" yaml:"mandatory,omitempty"`
	Generated  bool   `xml:"isGenerated,attr,omitempty" yaml:"generated,omitempty"`
	Length     int    `xml:"length,attr,omitempty" yaml:"length,omitempty"`
	Scale      int    `xml:"scale,attr,omitempty" yaml:"scale,omitempty"`
}

type objEntityDoc struct {
	Name            string            `xml:"name,attr" yaml:"name"`
	ClassName       string            `xml:"className,attr,omitempty" yaml:"class_name,omitempty"`
	SuperClassName  string            `xml:"superClassName,attr,omitempty" yaml:"super_class_name,omitempty"`
	SuperEntityName string            `xml:"superEntityName,attr,omitempty" yaml:"super_entity_name,omitempty"`
	DbEntityName    string            `xml:"dbEntityName,attr,omitempty" yaml:"db_entity,omitempty"`
	Attributes      []objAttributeDoc `xml:"obj-attribute" yaml:"attributes,omitempty"`
}

type objAttributeDoc struct {
	Name   string `xml:"name,attr" yaml:"name"`
	Type   string `xml:"type,attr,omitempty" yaml:"type,omitempty"`
	DbPath string `xml:"db-attribute-path,attr,omitempty" yaml:"db_attribute_path,omitempty"`
}

type dbRelationshipDoc struct {
	Name          string        `xml:"name,attr" yaml:"name"`
	Source        string        `xml:"source,attr" yaml:"source"`
	Target        string        `xml:"target,attr" yaml:"target"`
	ToDependentPK bool          `xml:"toDependentPK,attr,omitempty" yaml:"to_dependent_pk,omitempty"`
	ToMany        bool          `xml:"toMany,attr" yaml:"to_many"`
	Joins         []joinPairDoc `xml:"db-attribute-pair" yaml:"joins,omitempty"`
}

type joinPairDoc struct {
	Source string `xml:"source,attr" yaml:"source"`
	Target string `xml:"target,attr" yaml:"target"`
}

type objRelationshipDoc struct {
	Name   string `xml:"name,attr" yaml:"name"`
	Source string `xml:"source,attr" yaml:"source"`
	Target string `xml:"target,attr" yaml:"target"`
	DbPath string `xml:"db-relationship-path,attr" yaml:"db_relationship_path"`
}

func positive(n int) int {
	if n > 0 {
		return n
	}
	return 0
}

func unsetIfZero(n int) int {
	if n > 0 {
		return n
	}
	return -1
}

func byName[T any](items []T, name func(T) string) []T {
	sorted := append([]T(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return name(sorted[i]) < name(sorted[j]) })
	return sorted
}

// newMapDocument converts a map into its document form. Entities and
// procedures are written in name order.
func newMapDocument(m *model.DataMap) *mapDocument {
	doc := &mapDocument{Namespace: MapNamespace, ProjectVersion: ProjectVersion}

	for _, p := range []propertyDoc{
		{Name: propertyDefaultCatalog, Value: m.DefaultCatalog},
		{Name: propertyDefaultPackage, Value: m.DefaultPackage},
		{Name: propertyDefaultSchema, Value: m.DefaultSchema},
	} {
		if p.Value != "" {
			doc.Properties = append(doc.Properties, p)
		}
	}

	for _, p := range byName(m.Procedures(), func(p *model.Procedure) string { return p.Name }) {
		pd := procedureDoc{Name: p.Name, Catalog: p.Catalog, Schema: p.Schema, ReturningValue: p.ReturningValue}
		for _, param := range p.Parameters {
			pd.Parameters = append(pd.Parameters, parameterDoc{
				Name:      param.Name,
				Type:      param.Type.String(),
				Length:    positive(param.MaxLength),
				Precision: positive(param.Precision),
				Direction: param.Direction.String(),
			})
		}
		doc.Procedures = append(doc.Procedures, pd)
	}

	dbEntities := byName(m.DbEntities(), func(e *model.DbEntity) string { return e.Name })
	for _, e := range dbEntities {
		ed := dbEntityDoc{Name: e.Name, Catalog: e.Catalog, Schema: e.Schema}
		for _, a := range e.Attributes() {
			ed.Attributes = append(ed.Attributes, dbAttributeDoc{
				Name:       a.Name,
				Type:       a.Type.String(),
				PrimaryKey: a.PrimaryKey,
				Mandatory:  a.Mandatory,
				Generated:  a.Generated,
				Length:     positive(a.MaxLength),
				Scale:      positive(a.Scale),
			})
		}
		doc.DbEntities = append(doc.DbEntities, ed)
	}

	objEntities := byName(m.ObjEntities(), func(e *model.ObjEntity) string { return e.Name })
	for _, e := range objEntities {
		ed := objEntityDoc{
			Name:            e.Name,
			ClassName:       e.ClassName,
			SuperClassName:  e.SuperClassName,
			SuperEntityName: e.SuperEntityName,
			DbEntityName:    e.DbEntityName,
		}
		for _, a := range e.Attributes() {
			ed.Attributes = append(ed.Attributes, objAttributeDoc{Name: a.Name, Type: a.Type, DbPath: a.DbAttributePath})
		}
		doc.ObjEntities = append(doc.ObjEntities, ed)
	}

	for _, e := range dbEntities {
		for _, r := range e.Relationships() {
			rd := dbRelationshipDoc{
				Name:          r.Name,
				Source:        e.Name,
				Target:        r.TargetEntityName,
				ToDependentPK: r.ToDependentPK,
				ToMany:        r.ToMany,
			}
			for _, j := range r.Joins() {
				rd.Joins = append(rd.Joins, joinPairDoc{Source: j.SourceName, Target: j.TargetName})
			}
			doc.DbRelationships = append(doc.DbRelationships, rd)
		}
	}

	for _, e := range objEntities {
		for _, r := range e.Relationships() {
			doc.ObjRelationships = append(doc.ObjRelationships, objRelationshipDoc{
				Name:   r.Name,
				Source: e.Name,
				Target: r.TargetEntityName,
				DbPath: r.DbRelationshipPath(),
			})
		}
	}

	doc.DbImport = m.ReverseEngineering
	return doc
}

// dataMap rebuilds the model. Relationships referring to unknown entities
// are reported as errors.
func (doc *mapDocument) dataMap(name string) (*model.DataMap, error) {
	m := model.NewDataMap(name)
	for _, p := range doc.Properties {
		switch p.Name {
		case propertyDefaultPackage:
			m.DefaultPackage = p.Value
		case propertyDefaultCatalog:
			m.DefaultCatalog = p.Value
		case propertyDefaultSchema:
			m.DefaultSchema = p.Value
		}
	}

	for _, pd := range doc.Procedures {
		p := &model.Procedure{Name: pd.Name, Catalog: pd.Catalog, Schema: pd.Schema, ReturningValue: pd.ReturningValue}
		for _, param := range pd.Parameters {
			p.Parameters = append(p.Parameters, model.ProcedureParameter{
				Name:      param.Name,
				Type:      model.ParseSQLType(param.Type),
				Direction: model.ParseParameterDirection(param.Direction),
				MaxLength: param.Length,
				Precision: param.Precision,
			})
		}
		m.AddProcedure(p)
	}

	for _, ed := range doc.DbEntities {
		e := model.NewDbEntity(ed.Name)
		e.Catalog = ed.Catalog
		e.Schema = ed.Schema
		for _, ad := range ed.Attributes {
			a := model.NewDbAttribute(ad.Name, model.ParseSQLType(ad.Type))
			a.PrimaryKey = ad.PrimaryKey
			a.Mandatory = ad.Mandatory
			a.Generated = ad.Generated
			a.MaxLength = unsetIfZero(ad.Length)
			a.Scale = unsetIfZero(ad.Scale)
			e.AddAttribute(a)
		}
		m.AddDbEntity(e)
	}

	for _, rd := range doc.DbRelationships {
		source := m.DbEntity(rd.Source)
		if source == nil {
			return nil, fmt.Errorf("db-relationship %s: unknown source entity %q", rd.Name, rd.Source)
		}
		r := model.NewDbRelationship(rd.Name, rd.Target)
		r.ToMany = rd.ToMany
		r.ToDependentPK = rd.ToDependentPK
		for _, j := range rd.Joins {
			r.AddJoin(j.Source, j.Target)
		}
		source.AddRelationship(r)
	}

	for _, ed := range doc.ObjEntities {
		e := model.NewObjEntity(ed.Name, ed.DbEntityName)
		e.ClassName = ed.ClassName
		e.SuperClassName = ed.SuperClassName
		e.SuperEntityName = ed.SuperEntityName
		m.AddObjEntity(e)
		for _, ad := range ed.Attributes {
			e.AddAttribute(&model.ObjAttribute{Name: ad.Name, Type: ad.Type, DbAttributePath: ad.DbPath})
		}
	}

	for _, rd := range doc.ObjRelationships {
		source := m.ObjEntity(rd.Source)
		if source == nil {
			return nil, fmt.Errorf("obj-relationship %s: unknown source entity %q", rd.Name, rd.Source)
		}
		r := model.NewObjRelationship(rd.Name)
		r.TargetEntityName = rd.Target
		if err := resolvePath(r, source.DbEntity(), rd.DbPath); err != nil {
			return nil, fmt.Errorf("obj-relationship %s.%s: %w", rd.Source, rd.Name, err)
		}
		source.AddRelationship(r)
	}

	m.ReverseEngineering = doc.DbImport
	return m, nil
}

// resolvePath walks a dotted db relationship path starting at entity
func resolvePath(r *model.ObjRelationship, entity *model.DbEntity, path string) error {
	if path == "" {
		return nil
	}
	for _, step := range strings.Split(path, ".") {
		if entity == nil {
			return fmt.Errorf("db relationship path %q leaves the map", path)
		}
		dr := entity.Relationship(step)
		if dr == nil {
			return fmt.Errorf("unknown db relationship %q on %s", step, entity.Name)
		}
		r.AddDbRelationship(dr)
		entity = dr.TargetEntity()
	}
	return nil
}

// projectDocument is the project descriptor. Elements other than maps are
// kept as they were read.
type projectDocument struct {
	XMLName        xml.Name      `xml:"domain"`
	Namespace      string        `xml:"xmlns,attr,omitempty"`
	ProjectVersion string        `xml:"project-version,attr"`
	Properties     []propertyDoc `xml:"property"`
	Maps           []mapRefDoc   `xml:"map"`
	Other          []rawElement  `xml:",any"`
}

type mapRefDoc struct {
	Name string `xml:"name,attr"`
}

type rawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

// MapNames lists the maps registered in the descriptor
func (p *projectDocument) MapNames() []string {
	names := make([]string, 0, len(p.Maps))
	for _, ref := range p.Maps {
		names = append(names, ref.Name)
	}
	return names
}

func (p *projectDocument) addMap(name string) {
	for _, ref := range p.Maps {
		if ref.Name == name {
			return
		}
	}
	p.Maps = append(p.Maps, mapRefDoc{Name: name})
}

func parseVersion(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}
