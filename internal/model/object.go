package model

// ObjEntity is the object-layer counterpart of a db entity
type ObjEntity struct {
	Name            string
	ClassName       string
	SuperClassName  string
	SuperEntityName string
	DbEntityName    string

	attributes    []*ObjAttribute
	relationships []*ObjRelationship
	dataMap       *DataMap
}

// ObjAttribute is an object property backed by a column path
type ObjAttribute struct {
	Name            string
	Type            string
	DbAttributePath string

	entity *ObjEntity
}

// ObjRelationship is an object-level edge backed by one or more db
// relationships forming a path
type ObjRelationship struct {
	Name             string
	TargetEntityName string

	dbRelationships []*DbRelationship
	source          *ObjEntity
}

// NewObjEntity creates an object entity mapped to the given db entity
func NewObjEntity(name, dbEntityName string) *ObjEntity {
	return &ObjEntity{Name: name, DbEntityName: dbEntityName}
}

// DataMap returns the owning map or nil
func (e *ObjEntity) DataMap() *DataMap {
	return e.dataMap
}

// DbEntity resolves the backing db entity
func (e *ObjEntity) DbEntity() *DbEntity {
	if e.dataMap == nil {
		return nil
	}
	return e.dataMap.DbEntity(e.DbEntityName)
}

// AddAttribute appends an attribute, replacing one with the same name
func (e *ObjEntity) AddAttribute(a *ObjAttribute) {
	a.entity = e
	for i, old := range e.attributes {
		if old.Name == a.Name {
			e.attributes[i] = a
			return
		}
	}
	e.attributes = append(e.attributes, a)
}

// Attribute returns the attribute with the given name or nil
func (e *ObjEntity) Attribute(name string) *ObjAttribute {
	for _, a := range e.attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Attributes returns the attributes in declaration order
func (e *ObjEntity) Attributes() []*ObjAttribute {
	return append([]*ObjAttribute(nil), e.attributes...)
}

// RemoveAttribute removes an attribute by name
func (e *ObjEntity) RemoveAttribute(name string) {
	for i, a := range e.attributes {
		if a.Name == name {
			e.attributes = append(e.attributes[:i], e.attributes[i+1:]...)
			a.entity = nil
			return
		}
	}
}

// AttributeForDbAttribute returns the attribute mapped to a column or nil
func (e *ObjEntity) AttributeForDbAttribute(da *DbAttribute) *ObjAttribute {
	for _, a := range e.attributes {
		if a.DbAttributePath == da.Name {
			return a
		}
	}
	return nil
}

// AddRelationship appends a relationship, replacing one with the same name
func (e *ObjEntity) AddRelationship(r *ObjRelationship) {
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
func (e *ObjEntity) Relationship(name string) *ObjRelationship {
	for _, r := range e.relationships {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Relationships returns the relationships in declaration order
func (e *ObjEntity) Relationships() []*ObjRelationship {
	return append([]*ObjRelationship(nil), e.relationships...)
}

// RemoveRelationship removes a relationship by name
func (e *ObjEntity) RemoveRelationship(name string) {
	for i, r := range e.relationships {
		if r.Name == name {
			e.relationships = append(e.relationships[:i], e.relationships[i+1:]...)
			r.source = nil
			return
		}
	}
}

// RelationshipForDbRelationship returns the relationship whose path starts
// with the given db relationship
func (e *ObjEntity) RelationshipForDbRelationship(dr *DbRelationship) *ObjRelationship {
	for _, r := range e.relationships {
		if len(r.dbRelationships) > 0 && r.dbRelationships[0] == dr {
			return r
		}
	}
	return nil
}

// HasProperty reports whether an attribute or relationship uses the name
func (e *ObjEntity) HasProperty(name string) bool {
	return e.Attribute(name) != nil || e.Relationship(name) != nil
}

// Entity returns the owning entity or nil
func (a *ObjAttribute) Entity() *ObjEntity {
	return a.entity
}

// DbAttribute resolves the backing column for a single-step path
func (a *ObjAttribute) DbAttribute() *DbAttribute {
	if a.entity == nil {
		return nil
	}
	dbEntity := a.entity.DbEntity()
	if dbEntity == nil {
		return nil
	}
	return dbEntity.Attribute(a.DbAttributePath)
}

// NewObjRelationship creates a relationship with an empty path
func NewObjRelationship(name string) *ObjRelationship {
	return &ObjRelationship{Name: name}
}

// AddDbRelationship appends a step to the path
func (r *ObjRelationship) AddDbRelationship(dr *DbRelationship) {
	r.dbRelationships = append(r.dbRelationships, dr)
}

// DbRelationships returns the path
func (r *ObjRelationship) DbRelationships() []*DbRelationship {
	return append([]*DbRelationship(nil), r.dbRelationships...)
}

// DbRelationshipPath renders the path as dotted relationship names
func (r *ObjRelationship) DbRelationshipPath() string {
	path := ""
	for i, dr := range r.dbRelationships {
		if i > 0 {
			path += "."
		}
		path += dr.Name
	}
	return path
}

// Uses reports whether the path contains the given db relationship
func (r *ObjRelationship) Uses(dr *DbRelationship) bool {
	for _, step := range r.dbRelationships {
		if step == dr {
			return true
		}
	}
	return false
}

// IsToMany reports whether any step of the path is to-many
func (r *ObjRelationship) IsToMany() bool {
	for _, dr := range r.dbRelationships {
		if dr.ToMany {
			return true
		}
	}
	return false
}

// SourceEntity returns the owning entity or nil
func (r *ObjRelationship) SourceEntity() *ObjEntity {
	return r.source
}

// TargetEntity resolves the target through the source entity's map
func (r *ObjRelationship) TargetEntity() *ObjEntity {
	if r.source == nil || r.source.dataMap == nil {
		return nil
	}
	return r.source.dataMap.ObjEntity(r.TargetEntityName)
}

// String renders the relationship for log messages
func (r *ObjRelationship) String() string {
	source := ""
	if r.source != nil {
		source = r.source.Name
	}
	return source + "." + r.Name + " -> " + r.TargetEntityName
}
