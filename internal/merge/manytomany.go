package merge

import (
	"github.com/tordrt/dbsync/internal/model"
	"github.com/tordrt/dbsync/internal/naming"
)

// ManyToManyCandidate is an object entity that only joins two other entities
// and can be replaced by direct relationships between them
type ManyToManyCandidate struct {
	joinEntity *model.ObjEntity

	dbRel1, dbRel2     *model.DbRelationship
	reverse1, reverse2 *model.DbRelationship
	entity1, entity2   *model.ObjEntity
}

// BuildManyToManyCandidate returns a candidate when e has exactly two
// relationships, no attributes, and sits on the dependent side of both joins.
// It returns nil otherwise.
func BuildManyToManyCandidate(e *model.ObjEntity) *ManyToManyCandidate {
	rels := e.Relationships()
	if len(rels) != 2 || len(e.Attributes()) != 0 {
		return nil
	}
	path1, path2 := rels[0].DbRelationships(), rels[1].DbRelationships()
	if len(path1) == 0 || len(path2) == 0 {
		return nil
	}

	dbRel1, dbRel2 := path1[0], path2[0]
	reverse1, reverse2 := dbRel1.ReverseRelationship(), dbRel2.ReverseRelationship()
	if reverse1 == nil || reverse2 == nil || !reverse1.ToDependentPK || !reverse2.ToDependentPK {
		return nil
	}

	entity1, entity2 := rels[0].TargetEntity(), rels[1].TargetEntity()
	if entity1 == nil || entity2 == nil {
		return nil
	}

	return &ManyToManyCandidate{
		joinEntity: e,
		dbRel1:     dbRel1,
		dbRel2:     dbRel2,
		reverse1:   reverse1,
		reverse2:   reverse2,
		entity1:    entity1,
		entity2:    entity2,
	}
}

// JoinEntity returns the entity the candidate was built from
func (c *ManyToManyCandidate) JoinEntity() *model.ObjEntity {
	return c.joinEntity
}

// OptimizeRelationships removes the endpoint relationships into the join
// entity and links the endpoints directly. The join entity itself is left in
// place.
func (c *ManyToManyCandidate) OptimizeRelationships(gen naming.NameGenerator) {
	removeRelationshipsTo(c.entity1, c.joinEntity.Name)
	removeRelationshipsTo(c.entity2, c.joinEntity.Name)

	addFlattened(gen, c.entity1, c.entity2, c.reverse1, c.dbRel2)
	addFlattened(gen, c.entity2, c.entity1, c.reverse2, c.dbRel1)
}

func removeRelationshipsTo(e *model.ObjEntity, target string) {
	for _, r := range e.Relationships() {
		if r.TargetEntityName == target {
			e.RemoveRelationship(r.Name)
		}
	}
}

func addFlattened(gen naming.NameGenerator, source, target *model.ObjEntity, first, second *model.DbRelationship) {
	if len(first.Joins()) == 0 || len(second.Joins()) == 0 {
		return
	}
	or := model.NewObjRelationship(naming.Unique(gen.RelationshipName(first, second), source.HasProperty))
	or.TargetEntityName = target.Name
	or.AddDbRelationship(first)
	or.AddDbRelationship(second)
	source.AddRelationship(or)
}

// FlattenManyToMany collapses every pure join entity among loaded and removes
// it from the map. The backing db entity is kept. The remaining loaded
// entities are returned.
func FlattenManyToMany(m *model.DataMap, loaded []*model.ObjEntity, gen naming.NameGenerator) []*model.ObjEntity {
	var remaining, flattened []*model.ObjEntity
	for _, e := range loaded {
		if c := BuildManyToManyCandidate(e); c != nil {
			c.OptimizeRelationships(gen)
			flattened = append(flattened, e)
			continue
		}
		remaining = append(remaining, e)
	}
	for _, e := range flattened {
		m.RemoveObjEntity(e.Name, true)
	}
	return remaining
}
