package model

import (
	"strings"
)

// DbRelationship is a directed edge between two db entities, described by
// ordered column pairs
type DbRelationship struct {
	Name             string
	TargetEntityName string
	ToMany           bool
	ToDependentPK    bool

	joins  []DbJoin
	source *DbEntity
}

// DbJoin pairs a source column with a target column
type DbJoin struct {
	SourceName string
	TargetName string
}

// NewDbRelationship creates a relationship with no joins
func NewDbRelationship(name, target string) *DbRelationship {
	return &DbRelationship{Name: name, TargetEntityName: target}
}

// AddJoin appends a column pair
func (r *DbRelationship) AddJoin(source, target string) {
	r.joins = append(r.joins, DbJoin{SourceName: source, TargetName: target})
}

// Joins returns the column pairs in order
func (r *DbRelationship) Joins() []DbJoin {
	return append([]DbJoin(nil), r.joins...)
}

// SetJoins replaces the column pairs
func (r *DbRelationship) SetJoins(joins []DbJoin) {
	r.joins = append([]DbJoin(nil), joins...)
}

// SourceEntity returns the owning entity or nil
func (r *DbRelationship) SourceEntity() *DbEntity {
	return r.source
}

// TargetEntity resolves the target through the source entity's map
func (r *DbRelationship) TargetEntity() *DbEntity {
	if r.source == nil || r.source.dataMap == nil {
		return nil
	}
	return r.source.dataMap.DbEntity(r.TargetEntityName)
}

func (r *DbRelationship) joinSource(j DbJoin) *DbAttribute {
	if r.source == nil {
		return nil
	}
	return r.source.Attribute(j.SourceName)
}

func (r *DbRelationship) joinTarget(j DbJoin) *DbAttribute {
	target := r.TargetEntity()
	if target == nil {
		return nil
	}
	return target.Attribute(j.TargetName)
}

// SourceAttributes returns the resolved source columns of the joins
func (r *DbRelationship) SourceAttributes() []*DbAttribute {
	var attrs []*DbAttribute
	for _, j := range r.joins {
		if a := r.joinSource(j); a != nil {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// TargetAttributes returns the resolved target columns of the joins
func (r *DbRelationship) TargetAttributes() []*DbAttribute {
	var attrs []*DbAttribute
	for _, j := range r.joins {
		if a := r.joinTarget(j); a != nil {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// IsToPK reports whether every join targets a primary key column
func (r *DbRelationship) IsToPK() bool {
	if len(r.joins) == 0 {
		return false
	}
	for _, j := range r.joins {
		target := r.joinTarget(j)
		if target == nil || !target.PrimaryKey {
			return false
		}
	}
	return true
}

// IsFromPK reports whether every join starts at a primary key column
func (r *DbRelationship) IsFromPK() bool {
	if len(r.joins) == 0 {
		return false
	}
	for _, j := range r.joins {
		source := r.joinSource(j)
		if source == nil || !source.PrimaryKey {
			return false
		}
	}
	return true
}

// IsForeignKeyBearing reports whether the source side holds the foreign key,
// i.e. whether the relationship maps to a database FK constraint
func (r *DbRelationship) IsForeignKeyBearing() bool {
	return !r.ToMany && !r.ToDependentPK && r.IsToPK()
}

// ReverseRelationship finds the relationship on the target entity that walks
// the same joins backwards
func (r *DbRelationship) ReverseRelationship() *DbRelationship {
	target := r.TargetEntity()
	if target == nil || r.source == nil {
		return nil
	}
	for _, candidate := range target.relationships {
		if candidate.TargetEntityName != r.source.Name {
			continue
		}
		if joinsReversed(r.joins, candidate.joins) {
			return candidate
		}
	}
	return nil
}

func joinsReversed(a, b []DbJoin) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for _, ja := range a {
		found := false
		for _, jb := range b {
			if ja.SourceName == jb.TargetName && ja.TargetName == jb.SourceName {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CreateReverse builds an unnamed reverse relationship, not attached to the
// target entity
func (r *DbRelationship) CreateReverse() *DbRelationship {
	rev := &DbRelationship{}
	if r.source != nil {
		rev.TargetEntityName = r.source.Name
	}
	if !r.ToMany && !r.ToDependentPK {
		// FK side: the reverse is to-many unless the FK is the whole PK
		fromPK := r.IsFromPK()
		rev.ToDependentPK = fromPK
		rev.ToMany = !fromPK || len(r.source.PrimaryKeys()) != len(r.joins)
	}
	for _, j := range r.joins {
		rev.AddJoin(j.TargetName, j.SourceName)
	}
	return rev
}

// JoinsEqualFold compares two relationships by joined entity and column
// names, ignoring case and join order
func (r *DbRelationship) JoinsEqualFold(other *DbRelationship) bool {
	if len(r.joins) != len(other.joins) {
		return false
	}
	if r.source == nil || other.source == nil ||
		!strings.EqualFold(r.source.Name, other.source.Name) ||
		!strings.EqualFold(r.TargetEntityName, other.TargetEntityName) {
		return false
	}
	for _, j1 := range r.joins {
		found := false
		for _, j2 := range other.joins {
			if strings.EqualFold(j1.SourceName, j2.SourceName) && strings.EqualFold(j1.TargetName, j2.TargetName) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Clone returns a detached copy of the relationship
func (r *DbRelationship) Clone() *DbRelationship {
	c := *r
	c.joins = append([]DbJoin(nil), r.joins...)
	c.source = nil
	return &c
}

// String renders the relationship as SOURCE->TARGET
func (r *DbRelationship) String() string {
	source := ""
	if r.source != nil {
		source = r.source.Name
	}
	return source + "->" + r.TargetEntityName
}
