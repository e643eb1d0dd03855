// Package model holds the in-memory schema model: database-layer entities,
// their object-layer counterparts and stored procedures, grouped in a DataMap.
//
// The model is a mutable graph owned by a single writer. Relationships refer
// to their targets by name and resolve them through the owning DataMap, so
// entities can be moved between maps without dangling pointers.
package model

import (
	"sort"

	"github.com/tordrt/dbsync/internal/filter"
)

// DataMap is a named collection of entities and procedures
type DataMap struct {
	Name           string
	DefaultPackage string
	DefaultCatalog string
	DefaultSchema  string

	// ReverseEngineering is the import configuration embedded in the
	// persisted map, nil when the map carries none.
	ReverseEngineering *filter.ReverseEngineering

	dbEntities  []*DbEntity
	objEntities []*ObjEntity
	procedures  []*Procedure
}

// NewDataMap creates an empty map
func NewDataMap(name string) *DataMap {
	return &DataMap{Name: name}
}

// AddDbEntity adds or replaces an entity with the same name
func (m *DataMap) AddDbEntity(e *DbEntity) {
	if old := m.DbEntity(e.Name); old != nil && old != e {
		m.removeDbEntity(old)
	}
	if e.dataMap != nil && e.dataMap != m {
		e.dataMap.removeDbEntity(e)
	}
	if e.dataMap != m {
		m.dbEntities = append(m.dbEntities, e)
	}
	e.dataMap = m
}

// DbEntity returns the entity with the given name or nil
func (m *DataMap) DbEntity(name string) *DbEntity {
	for _, e := range m.dbEntities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// DbEntities returns the entities in insertion order
func (m *DataMap) DbEntities() []*DbEntity {
	return append([]*DbEntity(nil), m.dbEntities...)
}

// RemoveDbEntity removes an entity. With clearDependencies set, every
// relationship in the map that targets it is removed as well, together with
// the object relationships that use those relationships.
func (m *DataMap) RemoveDbEntity(name string, clearDependencies bool) {
	e := m.DbEntity(name)
	if e == nil {
		return
	}
	m.removeDbEntity(e)

	if !clearDependencies {
		return
	}
	for _, other := range m.dbEntities {
		for _, rel := range other.Relationships() {
			if rel.TargetEntityName == name {
				m.RemoveObjRelationshipsUsing(rel)
				other.RemoveRelationship(rel.Name)
			}
		}
	}
}

func (m *DataMap) removeDbEntity(e *DbEntity) {
	for i, ent := range m.dbEntities {
		if ent == e {
			m.dbEntities = append(m.dbEntities[:i], m.dbEntities[i+1:]...)
			break
		}
	}
	e.dataMap = nil
}

// AddObjEntity adds or replaces an object entity with the same name
func (m *DataMap) AddObjEntity(e *ObjEntity) {
	if old := m.ObjEntity(e.Name); old != nil && old != e {
		m.removeObjEntity(old)
	}
	if e.dataMap != m {
		m.objEntities = append(m.objEntities, e)
	}
	e.dataMap = m
}

// ObjEntity returns the object entity with the given name or nil
func (m *DataMap) ObjEntity(name string) *ObjEntity {
	for _, e := range m.objEntities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// ObjEntities returns the object entities in insertion order
func (m *DataMap) ObjEntities() []*ObjEntity {
	return append([]*ObjEntity(nil), m.objEntities...)
}

// MappedObjEntities returns the object entities backed by the given db entity
func (m *DataMap) MappedObjEntities(e *DbEntity) []*ObjEntity {
	if e == nil {
		return nil
	}
	var mapped []*ObjEntity
	for _, oe := range m.objEntities {
		if oe.DbEntityName == e.Name {
			mapped = append(mapped, oe)
		}
	}
	return mapped
}

// RemoveObjEntity removes an object entity. With clearDependencies set, the
// object relationships targeting it are removed too.
func (m *DataMap) RemoveObjEntity(name string, clearDependencies bool) {
	e := m.ObjEntity(name)
	if e == nil {
		return
	}
	m.removeObjEntity(e)

	if !clearDependencies {
		return
	}
	for _, other := range m.objEntities {
		for _, rel := range other.Relationships() {
			if rel.TargetEntityName == name {
				other.RemoveRelationship(rel.Name)
			}
		}
	}
}

func (m *DataMap) removeObjEntity(e *ObjEntity) {
	for i, ent := range m.objEntities {
		if ent == e {
			m.objEntities = append(m.objEntities[:i], m.objEntities[i+1:]...)
			break
		}
	}
	e.dataMap = nil
}

// RemoveObjRelationshipsUsing removes every object relationship whose path
// contains the given db relationship
func (m *DataMap) RemoveObjRelationshipsUsing(rel *DbRelationship) {
	for _, oe := range m.objEntities {
		for _, or := range oe.Relationships() {
			if or.Uses(rel) {
				oe.RemoveRelationship(or.Name)
			}
		}
	}
}

// AddProcedure adds or replaces a procedure with the same name
func (m *DataMap) AddProcedure(p *Procedure) {
	m.RemoveProcedure(p.Name)
	m.procedures = append(m.procedures, p)
}

// Procedure returns the procedure with the given name or nil
func (m *DataMap) Procedure(name string) *Procedure {
	for _, p := range m.procedures {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Procedures returns the procedures in insertion order
func (m *DataMap) Procedures() []*Procedure {
	return append([]*Procedure(nil), m.procedures...)
}

// RemoveProcedure removes a procedure by name
func (m *DataMap) RemoveProcedure(name string) {
	for i, p := range m.procedures {
		if p.Name == name {
			m.procedures = append(m.procedures[:i], m.procedures[i+1:]...)
			return
		}
	}
}

// NameWithDefaultPackage qualifies a class name with the default package
func (m *DataMap) NameWithDefaultPackage(name string) string {
	if m.DefaultPackage == "" {
		return name
	}
	return m.DefaultPackage + "." + name
}

// SortEntities orders entities and procedures by name, which keeps persisted
// output stable between runs.
func (m *DataMap) SortEntities() {
	sort.SliceStable(m.dbEntities, func(i, j int) bool { return m.dbEntities[i].Name < m.dbEntities[j].Name })
	sort.SliceStable(m.objEntities, func(i, j int) bool { return m.objEntities[i].Name < m.objEntities[j].Name })
	sort.SliceStable(m.procedures, func(i, j int) bool { return m.procedures[i].Name < m.procedures[j].Name })
}
