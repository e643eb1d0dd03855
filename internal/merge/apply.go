package merge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tordrt/dbsync/internal/model"
	"github.com/tordrt/dbsync/internal/naming"
)

// ErrNotApplicable is returned when a database-bound token is applied to a
// model
var ErrNotApplicable = errors.New("token changes the database, not the model")

// ApplyError reports a token that could not be applied
type ApplyError struct {
	Token *Token
	Err   error
}

// Error implements the error interface
func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply %s (%s): %v", e.Token.Name(), e.Token.Value(), e.Err)
}

// Unwrap returns the underlying error
func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Apply performs a ToModel token against the context map
func (t *Token) Apply(ctx *Context) error {
	if t.Direction != ToModel {
		return &ApplyError{Token: t, Err: ErrNotApplicable}
	}

	var err error
	switch t.Kind {
	case CreateTable:
		err = ctx.createTable(t)
	case DropTable:
		err = ctx.dropTable(t)
	case AddColumn:
		err = ctx.addColumn(t)
	case DropColumn:
		err = ctx.dropColumn(t)
	case SetColumnType:
		err = ctx.setColumnType(t)
	case SetNotNull, SetAllowNull:
		err = ctx.withColumn(t, func(col *model.DbAttribute) { col.Mandatory = t.Kind == SetNotNull })
	case SetGeneratedFlag:
		err = ctx.withColumn(t, func(col *model.DbAttribute) { col.Generated = t.Generated })
	case SetPrimaryKey:
		err = ctx.setPrimaryKey(t)
	case AddRelationship:
		err = ctx.addRelationship(t)
	case DropRelationship:
		err = ctx.dropRelationship(t)
	case CreateProcedure:
		err = ctx.createProcedure(t)
	case DropProcedure:
		err = ctx.dropProcedure(t)
	default:
		err = fmt.Errorf("unknown token kind %d", int(t.Kind))
	}
	if err != nil {
		return &ApplyError{Token: t, Err: err}
	}
	return nil
}

func (c *Context) requireEntity(t *Token) (*model.DbEntity, error) {
	e := c.entity(t.Entity)
	if e == nil {
		return nil, fmt.Errorf("entity %s not found", entityName(t.Entity))
	}
	return e, nil
}

func (c *Context) requireColumn(t *Token) (*model.DbEntity, *model.DbAttribute, error) {
	e, err := c.requireEntity(t)
	if err != nil {
		return nil, nil, err
	}
	if t.Column == nil {
		return nil, nil, errors.New("token has no column")
	}
	col := e.AttributeFold(t.Column.Name)
	if col == nil {
		return nil, nil, fmt.Errorf("column %s.%s not found", e.Name, t.Column.Name)
	}
	return e, col, nil
}

func (c *Context) withColumn(t *Token, fn func(col *model.DbAttribute)) error {
	_, col, err := c.requireColumn(t)
	if err != nil {
		return err
	}
	fn(col)
	return nil
}

func (c *Context) createTable(t *Token) error {
	if t.Entity == nil {
		return errors.New("token has no entity")
	}
	e := t.Entity.Clone()
	c.DataMap.AddDbEntity(e)

	name := naming.Unique(c.NameGenerator.ObjEntityName(e), func(n string) bool {
		return c.DataMap.ObjEntity(n) != nil
	})
	oe := model.NewObjEntity(name, e.Name)
	oe.ClassName = c.DataMap.NameWithDefaultPackage(name)
	c.DataMap.AddObjEntity(oe)
	c.SyncObjEntity(oe)
	c.added = append(c.added, oe)
	return nil
}

func (c *Context) dropTable(t *Token) error {
	e, err := c.requireEntity(t)
	if err != nil {
		return err
	}
	for _, oe := range c.DataMap.MappedObjEntities(e) {
		c.DataMap.RemoveObjEntity(oe.Name, true)
	}
	c.DataMap.RemoveDbEntity(e.Name, true)
	return nil
}

func (c *Context) addColumn(t *Token) error {
	e, err := c.requireEntity(t)
	if err != nil {
		return err
	}
	if t.Column == nil {
		return errors.New("token has no column")
	}
	col := t.Column.Clone()
	e.AddAttribute(col)
	for _, oe := range c.DataMap.MappedObjEntities(e) {
		c.syncAttributeAdded(oe, col)
	}
	return nil
}

func (c *Context) dropColumn(t *Token) error {
	e, col, err := c.requireColumn(t)
	if err != nil {
		return err
	}

	for _, rel := range e.Relationships() {
		for _, j := range rel.Joins() {
			selfTarget := strings.EqualFold(rel.TargetEntityName, e.Name) && j.TargetName == col.Name
			if j.SourceName == col.Name || selfTarget {
				c.removeRelationship(rel)
				break
			}
		}
	}
	for _, oe := range c.DataMap.MappedObjEntities(e) {
		if oa := oe.AttributeForDbAttribute(col); oa != nil {
			oe.RemoveAttribute(oa.Name)
		}
	}
	e.RemoveAttribute(col.Name)
	return nil
}

func (c *Context) setColumnType(t *Token) error {
	e, col, err := c.requireColumn(t)
	if err != nil {
		return err
	}
	col.Type = t.Column.Type
	col.MaxLength = t.Column.MaxLength
	col.Scale = t.Column.Scale
	for _, oe := range c.DataMap.MappedObjEntities(e) {
		if oa := oe.AttributeForDbAttribute(col); oa != nil {
			oa.Type = col.Type.GoType()
		}
	}
	return nil
}

func (c *Context) setPrimaryKey(t *Token) error {
	e, err := c.requireEntity(t)
	if err != nil {
		return err
	}
	pk := make(map[string]bool, len(t.PrimaryKey))
	for _, name := range t.PrimaryKey {
		pk[strings.ToUpper(name)] = true
	}
	for _, col := range e.Attributes() {
		col.PrimaryKey = pk[strings.ToUpper(col.Name)]
	}
	if t.PrimaryKeyName != "" {
		e.PrimaryKeyName = t.PrimaryKeyName
	}
	return nil
}

func (c *Context) addRelationship(t *Token) error {
	e, err := c.requireEntity(t)
	if err != nil {
		return err
	}
	if t.Relationship == nil {
		return errors.New("token has no relationship")
	}
	if findDbRelationship(e, withSource(t.Relationship, e)) != nil {
		return nil
	}

	rel := t.Relationship.Clone()
	if target := findDbEntity(c.DataMap.DbEntities(), rel.TargetEntityName); target != nil {
		rel.TargetEntityName = target.Name
	}
	base := rel.Name
	if base == "" {
		base = c.NameGenerator.RelationshipName(rel)
	}
	rel.Name = naming.Unique(base, func(n string) bool { return e.Relationship(n) != nil })
	e.AddRelationship(rel)
	c.syncMappedRelationship(e, rel)

	target := rel.TargetEntity()
	if target == nil || rel.ReverseRelationship() != nil {
		return nil
	}
	rev := rel.CreateReverse()
	rev.Name = naming.Unique(c.NameGenerator.RelationshipName(rev), func(n string) bool {
		return target.Relationship(n) != nil
	})
	target.AddRelationship(rev)
	c.syncMappedRelationship(target, rev)
	return nil
}

func (c *Context) syncMappedRelationship(e *model.DbEntity, rel *model.DbRelationship) {
	for _, oe := range c.DataMap.MappedObjEntities(e) {
		c.syncRelationshipAdded(oe, rel)
		if c.RemoveMeaningfulFKs {
			c.removeFKAttributes(oe)
		}
	}
}

// withSource returns a detached copy of rel attached to a throwaway entity
// named like source, for join comparisons
func withSource(rel *model.DbRelationship, source *model.DbEntity) *model.DbRelationship {
	if rel.SourceEntity() != nil {
		return rel
	}
	holder := model.NewDbEntity(source.Name)
	c := rel.Clone()
	holder.AddRelationship(c)
	return c
}

func (c *Context) dropRelationship(t *Token) error {
	e, err := c.requireEntity(t)
	if err != nil {
		return err
	}
	if t.Relationship == nil {
		return errors.New("token has no relationship")
	}
	rel := findDbRelationship(e, withSource(t.Relationship, e))
	if rel == nil && t.Relationship.Name != "" {
		rel = e.Relationship(t.Relationship.Name)
	}
	if rel == nil {
		return fmt.Errorf("relationship %s->%s not found", e.Name, t.Relationship.TargetEntityName)
	}
	c.removeRelationship(rel)
	return nil
}

// removeRelationship removes a relationship, its reverse and every object
// relationship using either
func (c *Context) removeRelationship(rel *model.DbRelationship) {
	reverse := rel.ReverseRelationship()
	c.DataMap.RemoveObjRelationshipsUsing(rel)
	if source := rel.SourceEntity(); source != nil {
		source.RemoveRelationship(rel.Name)
	}
	if reverse != nil {
		c.DataMap.RemoveObjRelationshipsUsing(reverse)
		if source := reverse.SourceEntity(); source != nil {
			source.RemoveRelationship(reverse.Name)
		}
	}
}

func (c *Context) createProcedure(t *Token) error {
	if t.Procedure == nil {
		return errors.New("token has no procedure")
	}
	c.DataMap.AddProcedure(t.Procedure.Clone())
	return nil
}

func (c *Context) dropProcedure(t *Token) error {
	if t.Procedure == nil {
		return errors.New("token has no procedure")
	}
	p := findProcedure(c.DataMap.Procedures(), t.Procedure.Name)
	if p == nil {
		return fmt.Errorf("procedure %s not found", t.Procedure.Name)
	}
	c.DataMap.RemoveProcedure(p.Name)
	return nil
}
