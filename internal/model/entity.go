package model

import (
	"strings"
)

// DbEntity represents a table or view
type DbEntity struct {
	Name    string
	Catalog string
	Schema  string

	// PrimaryKeyName is the detected primary key constraint name, if any
	PrimaryKeyName string

	attributes    []*DbAttribute
	relationships []*DbRelationship
	dataMap       *DataMap
}

// DbAttribute represents a table column
type DbAttribute struct {
	Name       string
	Type       SQLType
	Mandatory  bool
	MaxLength  int
	Scale      int
	PrimaryKey bool
	Generated  bool

	entity *DbEntity
}

// NewDbEntity creates an entity with no columns
func NewDbEntity(name string) *DbEntity {
	return &DbEntity{Name: name}
}

// NewDbAttribute creates a column with unset length and scale
func NewDbAttribute(name string, t SQLType) *DbAttribute {
	return &DbAttribute{Name: name, Type: t, MaxLength: -1, Scale: -1}
}

// DataMap returns the owning map or nil
func (e *DbEntity) DataMap() *DataMap {
	return e.dataMap
}

// FullyQualifiedName joins catalog, schema and name
func (e *DbEntity) FullyQualifiedName() string {
	var parts []string
	if e.Catalog != "" {
		parts = append(parts, e.Catalog)
	}
	if e.Schema != "" {
		parts = append(parts, e.Schema)
	}
	return strings.Join(append(parts, e.Name), ".")
}

// AddAttribute appends a column, replacing one with the same name
func (e *DbEntity) AddAttribute(a *DbAttribute) {
	for i, old := range e.attributes {
		if old.Name == a.Name {
			e.attributes[i] = a
			a.entity = e
			return
		}
	}
	e.attributes = append(e.attributes, a)
	a.entity = e
}

// Attribute returns the column with the given name or nil
func (e *DbEntity) Attribute(name string) *DbAttribute {
	for _, a := range e.attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// AttributeFold returns the column whose name matches case-insensitively
func (e *DbEntity) AttributeFold(name string) *DbAttribute {
	for _, a := range e.attributes {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

// Attributes returns the columns in declaration order
func (e *DbEntity) Attributes() []*DbAttribute {
	return append([]*DbAttribute(nil), e.attributes...)
}

// RemoveAttribute removes a column by name
func (e *DbEntity) RemoveAttribute(name string) {
	for i, a := range e.attributes {
		if a.Name == name {
			e.attributes = append(e.attributes[:i], e.attributes[i+1:]...)
			a.entity = nil
			return
		}
	}
}

// PrimaryKeys returns the primary key columns in declaration order
func (e *DbEntity) PrimaryKeys() []*DbAttribute {
	var pks []*DbAttribute
	for _, a := range e.attributes {
		if a.PrimaryKey {
			pks = append(pks, a)
		}
	}
	return pks
}

// AddRelationship appends a relationship, replacing one with the same name
func (e *DbEntity) AddRelationship(r *DbRelationship) {
	r.source = e
	for i, old := range e.relationships {
		if old.Name == r.Name {
			e.relationships[i] = r
			return
		}
	}
	e.relationships = append(e.relationships, r)
}

// Relationship returns the relationship with the given name or nil
func (e *DbEntity) Relationship(name string) *DbRelationship {
	for _, r := range e.relationships {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Relationships returns the relationships in declaration order
func (e *DbEntity) Relationships() []*DbRelationship {
	return append([]*DbRelationship(nil), e.relationships...)
}

// RemoveRelationship removes a relationship by name
func (e *DbEntity) RemoveRelationship(name string) {
	for i, r := range e.relationships {
		if r.Name == name {
			e.relationships = append(e.relationships[:i], e.relationships[i+1:]...)
			return
		}
	}
}

// Clone returns a detached deep copy of the entity, its columns and its
// relationships
func (e *DbEntity) Clone() *DbEntity {
	c := &DbEntity{
		Name:           e.Name,
		Catalog:        e.Catalog,
		Schema:         e.Schema,
		PrimaryKeyName: e.PrimaryKeyName,
	}
	for _, a := range e.attributes {
		c.AddAttribute(a.Clone())
	}
	for _, r := range e.relationships {
		c.AddRelationship(r.Clone())
	}
	return c
}

// Entity returns the owning entity or nil
func (a *DbAttribute) Entity() *DbEntity {
	return a.entity
}

// Clone returns a detached copy of the column
func (a *DbAttribute) Clone() *DbAttribute {
	c := *a
	c.entity = nil
	return &c
}

// IsForeignKey reports whether a relationship of the owning entity joins
// from this column to a primary key
func (a *DbAttribute) IsForeignKey() bool {
	if a.entity == nil {
		return false
	}
	for _, rel := range a.entity.relationships {
		if rel.ToDependentPK {
			continue
		}
		for _, j := range rel.joins {
			if j.SourceName != a.Name {
				continue
			}
			if target := rel.joinTarget(j); target != nil && target.PrimaryKey {
				return true
			}
		}
	}
	return false
}

// SameType reports whether two columns agree on type, length and scale
func (a *DbAttribute) SameType(other *DbAttribute) bool {
	if a.Type != other.Type {
		return false
	}
	if (a.Type.IsCharacter() || a.Type.IsDecimal()) && a.MaxLength != other.MaxLength {
		return false
	}
	if a.Type.IsDecimal() && a.Scale != other.Scale {
		return false
	}
	return true
}

// String renders the column for log messages
func (a *DbAttribute) String() string {
	if a.entity == nil {
		return a.Name
	}
	return a.entity.Name + "." + a.Name
}
