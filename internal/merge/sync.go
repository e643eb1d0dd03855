package merge

import (
	"github.com/tordrt/dbsync/internal/model"
	"github.com/tordrt/dbsync/internal/naming"
)

// SyncObjEntity adds the object attributes and relationships the entity is
// missing for the current state of its db entity
func (c *Context) SyncObjEntity(oe *model.ObjEntity) {
	e := oe.DbEntity()
	if e == nil {
		return
	}
	if c.RemoveMeaningfulFKs {
		c.removeFKAttributes(oe)
	}

	incoming := c.incomingRelationships(e)
	for _, a := range e.Attributes() {
		if c.shouldAddAttribute(oe, a, incoming) {
			c.addObjAttribute(oe, a)
		}
	}
	for _, r := range e.Relationships() {
		if shouldAddRelationship(oe, r) {
			c.addObjRelationships(oe, r)
		}
	}
}

func (c *Context) syncAttributeAdded(oe *model.ObjEntity, a *model.DbAttribute) {
	if c.shouldAddAttribute(oe, a, c.incomingRelationships(a.Entity())) {
		c.addObjAttribute(oe, a)
	}
}

func (c *Context) syncRelationshipAdded(oe *model.ObjEntity, r *model.DbRelationship) {
	if shouldAddRelationship(oe, r) {
		c.addObjRelationships(oe, r)
	}
}

// shouldAddAttribute skips columns that are already mapped, primary keys of
// tables without meaningful PKs, and columns taking part in a join from
// either side
func (c *Context) shouldAddAttribute(oe *model.ObjEntity, a *model.DbAttribute, incoming []*model.DbRelationship) bool {
	if a.Name == "" || oe.AttributeForDbAttribute(a) != nil {
		return false
	}

	meaningfulPK := c.MeaningfulPK.IsIncluded(oe.DbEntityName)
	if a.PrimaryKey && !meaningfulPK {
		return false
	}

	joined := isJoinSource(a)
	if !joined {
		for _, rel := range incoming {
			for _, j := range rel.Joins() {
				if j.TargetName == a.Name {
					joined = true
					break
				}
			}
		}
	}
	if joined {
		return meaningfulPK && a.PrimaryKey
	}
	return true
}

func isJoinSource(a *model.DbAttribute) bool {
	e := a.Entity()
	if e == nil {
		return false
	}
	for _, rel := range e.Relationships() {
		for _, j := range rel.Joins() {
			if j.SourceName == a.Name {
				return true
			}
		}
	}
	return false
}

func (c *Context) incomingRelationships(e *model.DbEntity) []*model.DbRelationship {
	if e == nil || e.DataMap() == nil {
		return nil
	}
	var incoming []*model.DbRelationship
	for _, other := range e.DataMap().DbEntities() {
		for _, rel := range other.Relationships() {
			if rel.TargetEntity() == e {
				incoming = append(incoming, rel)
			}
		}
	}
	return incoming
}

// removeFKAttributes drops object attributes mapped to non-PK columns that are
// now relationship sources
func (c *Context) removeFKAttributes(oe *model.ObjEntity) {
	for _, oa := range oe.Attributes() {
		da := oa.DbAttribute()
		if da != nil && !da.PrimaryKey && isJoinSource(da) {
			oe.RemoveAttribute(oa.Name)
		}
	}
}

func (c *Context) addObjAttribute(oe *model.ObjEntity, a *model.DbAttribute) {
	name := naming.Unique(c.NameGenerator.ObjAttributeName(a), oe.HasProperty)
	oe.AddAttribute(&model.ObjAttribute{
		Name:            name,
		Type:            a.Type.GoType(),
		DbAttributePath: a.Name,
	})
}

func shouldAddRelationship(oe *model.ObjEntity, r *model.DbRelationship) bool {
	if r.Name == "" {
		return false
	}
	for _, or := range oe.Relationships() {
		for _, step := range or.DbRelationships() {
			if sameRelationship(step, r) {
				return false
			}
		}
	}
	return true
}

func sameRelationship(a, b *model.DbRelationship) bool {
	if a == b {
		return true
	}
	if a.SourceEntity() == nil || b.SourceEntity() == nil {
		return false
	}
	if a.SourceEntity().Name != b.SourceEntity().Name || a.TargetEntityName != b.TargetEntityName {
		return false
	}
	ja, jb := a.Joins(), b.Joins()
	if len(ja) != len(jb) {
		return false
	}
	for i := range ja {
		if ja[i] != jb[i] {
			return false
		}
	}
	return true
}

// addObjRelationships maps a db relationship onto every object entity of its
// target, or onto a guessed target name when the target is not mapped yet
func (c *Context) addObjRelationships(oe *model.ObjEntity, r *model.DbRelationship) {
	target := r.TargetEntity()
	mapped := c.DataMap.MappedObjEntities(target)
	if len(mapped) == 0 {
		if target == nil {
			target = model.NewDbEntity(r.TargetEntityName)
		}
		guessed := c.NameGenerator.ObjEntityName(target)
		c.Logger.Debug("guessed object relationship target", "relationship", r.String(), "target", guessed)
		c.createObjRelationship(oe, r, guessed)
		return
	}
	for _, t := range mapped {
		c.createObjRelationship(oe, r, t.Name)
	}
}

func (c *Context) createObjRelationship(oe *model.ObjEntity, r *model.DbRelationship, target string) {
	or := model.NewObjRelationship(naming.Unique(c.NameGenerator.RelationshipName(r), oe.HasProperty))
	or.TargetEntityName = target
	or.AddDbRelationship(r)
	oe.AddRelationship(or)
}
