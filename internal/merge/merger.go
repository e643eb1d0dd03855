package merge

import (
	"strings"

	"github.com/tordrt/dbsync/internal/filter"
	"github.com/tordrt/dbsync/internal/model"
)

// Merger diffs a persisted model against a model loaded from the database
type Merger struct {
	// Filters restricts which model tables take part. Nil means every table
	// and no procedures.
	Filters *filter.FiltersConfig
	// SkipPrimaryKeys disables primary key diffing
	SkipPrimaryKeys bool
	// SkipRelationships disables detection of relationships to add
	SkipRelationships bool
	// CaseSensitive matches table, column and procedure names exactly.
	// Relationship joins are always compared ignoring case.
	CaseSensitive bool
}

type tokenList struct {
	tokens []*Token
}

func (l *tokenList) add(t *Token) {
	t.seq = len(l.tokens)
	l.tokens = append(l.tokens, t)
}

// CreateTokens returns the sorted changes that would make the database match
// the model. Every token is ToDB except drops of to-many relationships, which
// have no database representation and are emitted as ToModel.
func (m *Merger) CreateTokens(target, source *model.DataMap) []*Token {
	filters := m.Filters
	if filters == nil {
		filters = filter.Everything()
	}

	var entities []*model.DbEntity
	for _, e := range target.DbEntities() {
		tf := filters.TableFilter(e.Catalog, e.Schema)
		if tf != nil && tf.IncludeTable(e.Name) != nil {
			entities = append(entities, e)
		}
	}
	detected := source.DbEntities()

	list := &tokenList{}
	toDrop := make(map[*model.DbEntity]bool, len(detected))
	for _, e := range detected {
		toDrop[e] = true
	}

	for _, e := range entities {
		found := m.findDbEntity(detected, e.Name)
		if found == nil {
			list.add(&Token{Kind: CreateTable, Direction: ToDB, Entity: e})
			for _, rel := range e.Relationships() {
				list.add(&Token{Kind: AddRelationship, Direction: ToDB, Entity: e, Relationship: rel})
			}
			continue
		}
		delete(toDrop, found)

		m.checkRelationshipsToDrop(list, e, found)
		if !m.SkipRelationships {
			m.checkRelationshipsToAdd(list, e, found)
		}
		m.checkColumns(list, e, found)
		if !m.SkipPrimaryKeys {
			m.checkPrimaryKey(list, e, found)
		}
	}

	for _, e := range detected {
		if !toDrop[e] {
			continue
		}
		list.add(&Token{Kind: DropTable, Direction: ToDB, Entity: e})
		for _, rel := range e.Relationships() {
			modelTarget := m.findDbEntity(entities, rel.TargetEntityName)
			reverse := rel.ReverseRelationship()
			if modelTarget != nil && reverse != nil {
				list.add(&Token{Kind: DropRelationship, Direction: ToDB, Entity: modelTarget, Relationship: reverse})
			}
		}
	}

	if !filters.IsEmptyProcedures() {
		m.checkProcedures(list, filters, target, source)
	}

	Sort(list.tokens)
	return list.tokens
}

func (m *Merger) checkColumns(list *tokenList, existing, loaded *model.DbEntity) {
	for _, col := range loaded.Attributes() {
		if m.attribute(existing, col.Name) == nil {
			list.add(&Token{Kind: DropColumn, Direction: ToDB, Entity: existing, Column: col})
		}
	}

	for _, attr := range existing.Attributes() {
		col := m.attribute(loaded, attr.Name)
		if col == nil {
			list.add(&Token{Kind: AddColumn, Direction: ToDB, Entity: existing, Column: attr})
			if attr.Mandatory {
				list.add(&Token{Kind: SetNotNull, Direction: ToDB, Entity: existing, Column: attr})
			}
			continue
		}

		if attr.Mandatory != col.Mandatory {
			kind := SetAllowNull
			if attr.Mandatory {
				kind = SetNotNull
			}
			list.add(&Token{Kind: kind, Direction: ToDB, Entity: existing, Column: attr})
		}

		if !attr.SameType(col) {
			list.add(&Token{Kind: SetColumnType, Direction: ToDB, Entity: existing, OriginalColumn: col, Column: attr})
		}

		if attr.Generated != col.Generated {
			list.add(&Token{Kind: SetGeneratedFlag, Direction: ToDB, Entity: existing, Column: attr, Generated: attr.Generated})
		}
	}
}

func (m *Merger) checkRelationshipsToDrop(list *tokenList, existing, loaded *model.DbEntity) {
	for _, rel := range loaded.Relationships() {
		if findDbRelationship(existing, rel) != nil {
			continue
		}
		if existing.DataMap() == nil {
			continue
		}
		target := m.findDbEntity(existing.DataMap().DbEntities(), rel.TargetEntityName)
		if target == nil {
			continue
		}

		// Rewrite the detected relationship to use the model's names
		detached := rel.Clone()
		detached.TargetEntityName = target.Name
		var joins []model.DbJoin
		for _, j := range rel.Joins() {
			if a := m.attribute(existing, j.SourceName); a != nil {
				j.SourceName = a.Name
			}
			if a := m.attribute(target, j.TargetName); a != nil {
				j.TargetName = a.Name
			}
			joins = append(joins, j)
		}
		detached.SetJoins(joins)

		t := &Token{Kind: DropRelationship, Direction: ToDB, Entity: existing, Relationship: detached}
		if detached.ToMany {
			// only to-one relationships are backed by a foreign key
			t = t.Reverse()
		}
		list.add(t)
	}
}

func (m *Merger) checkRelationshipsToAdd(list *tokenList, existing, loaded *model.DbEntity) {
	for _, rel := range existing.Relationships() {
		if findDbRelationship(loaded, rel) != nil {
			continue
		}
		if rel.IsForeignKeyBearing() {
			list.add(&Token{Kind: AddRelationship, Direction: ToDB, Entity: existing, Relationship: rel})
		}
	}
}

func (m *Merger) checkPrimaryKey(list *tokenList, existing, loaded *model.DbEntity) {
	original := pkNames(loaded)
	current := pkNames(existing)
	if sameNameSet(original, current) {
		return
	}
	list.add(&Token{
		Kind:               SetPrimaryKey,
		Direction:          ToDB,
		Entity:             existing,
		OriginalPrimaryKey: original,
		PrimaryKey:         current,
		PrimaryKeyName:     loaded.PrimaryKeyName,
	})
}

func (m *Merger) checkProcedures(list *tokenList, filters *filter.FiltersConfig, target, source *model.DataMap) {
	included := func(p *model.Procedure) bool {
		pf := filters.ProcedureFilter(p.Catalog, p.Schema)
		return pf != nil && !pf.IsEmpty() && pf.IsIncluded(p.Name)
	}

	var existing []*model.Procedure
	for _, p := range target.Procedures() {
		if included(p) {
			existing = append(existing, p)
		}
	}
	for _, p := range existing {
		if m.findProcedure(source.Procedures(), p.Name) == nil {
			list.add(&Token{Kind: CreateProcedure, Direction: ToDB, Procedure: p})
		}
	}
	for _, p := range source.Procedures() {
		if m.findProcedure(existing, p.Name) == nil && m.findProcedure(target.Procedures(), p.Name) == nil {
			list.add(&Token{Kind: DropProcedure, Direction: ToDB, Procedure: p})
		}
	}
}

func (m *Merger) findDbEntity(entities []*model.DbEntity, name string) *model.DbEntity {
	if !m.CaseSensitive {
		return findDbEntity(entities, name)
	}
	for _, e := range entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// findDbEntity looks an entity up by name ignoring case
func findDbEntity(entities []*model.DbEntity, name string) *model.DbEntity {
	for _, e := range entities {
		if strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

func (m *Merger) attribute(e *model.DbEntity, name string) *model.DbAttribute {
	if m.CaseSensitive {
		return e.Attribute(name)
	}
	return e.AttributeFold(name)
}

func findDbRelationship(e *model.DbEntity, rel *model.DbRelationship) *model.DbRelationship {
	for _, candidate := range e.Relationships() {
		if candidate.JoinsEqualFold(rel) {
			return candidate
		}
	}
	return nil
}

func (m *Merger) findProcedure(procedures []*model.Procedure, name string) *model.Procedure {
	if !m.CaseSensitive {
		return findProcedure(procedures, name)
	}
	for _, p := range procedures {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func findProcedure(procedures []*model.Procedure, name string) *model.Procedure {
	for _, p := range procedures {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

func pkNames(e *model.DbEntity) []string {
	var names []string
	for _, a := range e.PrimaryKeys() {
		names = append(names, a.Name)
	}
	return names
}

func sameNameSet(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, n := range a {
		set[strings.ToUpper(n)] = true
	}
	other := make(map[string]bool, len(b))
	for _, n := range b {
		other[strings.ToUpper(n)] = true
	}
	if len(set) != len(other) {
		return false
	}
	for n := range set {
		if !other[n] {
			return false
		}
	}
	return true
}
