package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// artistPainting builds ARTIST(ID pk) <- PAINTING(ID pk, ARTIST_ID fk) with
// both relationship directions.
func artistPainting(t *testing.T) (*DataMap, *DbEntity, *DbEntity) {
	t.Helper()
	m := NewDataMap("test")

	artist := NewDbEntity("ARTIST")
	id := NewDbAttribute("ID", TypeInteger)
	id.PrimaryKey = true
	id.Mandatory = true
	artist.AddAttribute(id)
	artist.AddAttribute(NewDbAttribute("NAME", TypeVarChar))
	m.AddDbEntity(artist)

	painting := NewDbEntity("PAINTING")
	pid := NewDbAttribute("ID", TypeInteger)
	pid.PrimaryKey = true
	painting.AddAttribute(pid)
	painting.AddAttribute(NewDbAttribute("ARTIST_ID", TypeInteger))
	m.AddDbEntity(painting)

	toArtist := NewDbRelationship("artist", "ARTIST")
	toArtist.AddJoin("ARTIST_ID", "ID")
	painting.AddRelationship(toArtist)

	paintings := NewDbRelationship("paintings", "PAINTING")
	paintings.ToMany = true
	paintings.AddJoin("ID", "ARTIST_ID")
	artist.AddRelationship(paintings)

	return m, artist, painting
}

func TestSQLType(t *testing.T) {
	tests := []struct {
		native string
		want   SQLType
		length int
		scale  int
	}{
		{native: "VARCHAR(100)", want: TypeVarChar, length: 100, scale: -1},
		{native: "numeric(10,2)", want: TypeNumeric, length: 10, scale: 2},
		{native: "int unsigned", want: TypeInteger, length: -1, scale: -1},
		{native: "character varying", want: TypeVarChar, length: -1, scale: -1},
		{native: "timestamp with time zone", want: TypeTimestamp, length: -1, scale: -1},
		{native: "UNSIGNED BIG INT", want: TypeInteger, length: -1, scale: -1},
		{native: "NATIVE CHARACTER(70)", want: TypeVarChar, length: 70, scale: -1},
		{native: "jsonb", want: TypeOther, length: -1, scale: -1},
	}

	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeForNative(tt.native))
			length, scale := ParseNativeLength(tt.native)
			assert.Equal(t, tt.length, length)
			assert.Equal(t, tt.scale, scale)
		})
	}

	assert.Equal(t, "VARCHAR", TypeVarChar.String())
	assert.Equal(t, TypeVarChar, ParseSQLType("varchar"))
	assert.Equal(t, TypeBlob, ParseSQLType("2004"))
	assert.Equal(t, "int32", TypeInteger.GoType())
	assert.Equal(t, "*big.Rat", TypeDecimal.GoType())
}

func TestDbAttribute_SameType(t *testing.T) {
	a := NewDbAttribute("A", TypeVarChar)
	a.MaxLength = 10
	b := a.Clone()
	assert.True(t, a.SameType(b))

	b.MaxLength = 20
	assert.False(t, a.SameType(b), "length matters for character types")

	i1 := NewDbAttribute("I", TypeInteger)
	i2 := NewDbAttribute("I", TypeInteger)
	i2.MaxLength = 11
	assert.True(t, i1.SameType(i2), "length is ignored for integers")

	d1 := NewDbAttribute("D", TypeDecimal)
	d2 := d1.Clone()
	d2.Scale = 2
	assert.False(t, d1.SameType(d2))
}

func TestDbRelationship_Resolution(t *testing.T) {
	_, artist, painting := artistPainting(t)

	toArtist := painting.Relationship("artist")
	require.NotNil(t, toArtist)
	assert.Equal(t, artist, toArtist.TargetEntity())
	assert.True(t, toArtist.IsToPK())
	assert.False(t, toArtist.IsFromPK())
	assert.True(t, toArtist.IsForeignKeyBearing())
	assert.Equal(t, "PAINTING->ARTIST", toArtist.String())

	paintings := artist.Relationship("paintings")
	assert.Same(t, paintings, toArtist.ReverseRelationship())
	assert.Same(t, toArtist, paintings.ReverseRelationship())
	assert.False(t, paintings.IsForeignKeyBearing())

	assert.True(t, painting.Attribute("ARTIST_ID").IsForeignKey())
	assert.False(t, painting.Attribute("ID").IsForeignKey())
}

func TestDbRelationship_CreateReverse(t *testing.T) {
	_, artist, painting := artistPainting(t)

	rev := painting.Relationship("artist").CreateReverse()
	assert.Equal(t, "PAINTING", rev.TargetEntityName)
	assert.True(t, rev.ToMany)
	assert.False(t, rev.ToDependentPK)
	assert.Equal(t, []DbJoin{{SourceName: "ID", TargetName: "ARTIST_ID"}}, rev.Joins())

	// A dependent table whose PK is the FK gets a to-one dependent reverse
	info := NewDbEntity("ARTIST_INFO")
	infoID := NewDbAttribute("ARTIST_ID", TypeInteger)
	infoID.PrimaryKey = true
	info.AddAttribute(infoID)
	artist.DataMap().AddDbEntity(info)
	toArtist := NewDbRelationship("artist", "ARTIST")
	toArtist.AddJoin("ARTIST_ID", "ID")
	info.AddRelationship(toArtist)

	rev = toArtist.CreateReverse()
	assert.False(t, rev.ToMany)
	assert.True(t, rev.ToDependentPK)
}

func TestDbRelationship_JoinsEqualFold(t *testing.T) {
	_, _, painting := artistPainting(t)
	other := NewDbEntity("painting")
	r := NewDbRelationship("x", "artist")
	r.AddJoin("artist_id", "id")
	other.AddRelationship(r)

	assert.True(t, painting.Relationship("artist").JoinsEqualFold(r))

	r.AddJoin("name", "name")
	assert.False(t, painting.Relationship("artist").JoinsEqualFold(r))
}

func TestDataMap_RemoveDbEntity(t *testing.T) {
	m, artist, painting := artistPainting(t)

	oe := NewObjEntity("Painting", "PAINTING")
	m.AddObjEntity(oe)
	ae := NewObjEntity("Artist", "ARTIST")
	m.AddObjEntity(ae)
	or := NewObjRelationship("artist")
	or.TargetEntityName = "Artist"
	or.AddDbRelationship(painting.Relationship("artist"))
	oe.AddRelationship(or)

	m.RemoveDbEntity("ARTIST", true)

	assert.Nil(t, m.DbEntity("ARTIST"))
	assert.Nil(t, artist.DataMap())
	assert.Nil(t, painting.Relationship("artist"), "relationships to the removed entity are cleared")
	assert.Nil(t, oe.Relationship("artist"), "object relationships using them are cleared")
}

func TestDataMap_RemoveObjEntity(t *testing.T) {
	m := NewDataMap("test")
	a := NewObjEntity("A", "A")
	b := NewObjEntity("B", "B")
	m.AddObjEntity(a)
	m.AddObjEntity(b)

	r := NewObjRelationship("b")
	r.TargetEntityName = "B"
	a.AddRelationship(r)

	m.RemoveObjEntity("B", false)
	assert.NotNil(t, a.Relationship("b"))

	m.AddObjEntity(b)
	m.RemoveObjEntity("B", true)
	assert.Nil(t, a.Relationship("b"))
	assert.Len(t, m.ObjEntities(), 1)
}

func TestDataMap_AddReplacesAndMoves(t *testing.T) {
	m1 := NewDataMap("one")
	m2 := NewDataMap("two")

	e := NewDbEntity("T")
	m1.AddDbEntity(e)
	m1.AddDbEntity(NewDbEntity("T"))
	assert.Len(t, m1.DbEntities(), 1)
	assert.NotSame(t, e, m1.DbEntity("T"))

	moved := m1.DbEntity("T")
	m2.AddDbEntity(moved)
	assert.Empty(t, m1.DbEntities())
	assert.Same(t, m2, moved.DataMap())
}

func TestDataMap_SortAndPackage(t *testing.T) {
	m := NewDataMap("test")
	m.AddDbEntity(NewDbEntity("B"))
	m.AddDbEntity(NewDbEntity("A"))
	m.AddProcedure(&Procedure{Name: "z"})
	m.AddProcedure(&Procedure{Name: "y"})
	m.SortEntities()

	assert.Equal(t, "A", m.DbEntities()[0].Name)
	assert.Equal(t, "y", m.Procedures()[0].Name)

	assert.Equal(t, "Artist", m.NameWithDefaultPackage("Artist"))
	m.DefaultPackage = "com.example"
	assert.Equal(t, "com.example.Artist", m.NameWithDefaultPackage("Artist"))
}

func TestDbEntity_Clone(t *testing.T) {
	_, _, painting := artistPainting(t)
	c := painting.Clone()

	assert.Nil(t, c.DataMap())
	require.Len(t, c.Attributes(), 2)
	assert.NotSame(t, painting.Attribute("ID"), c.Attribute("ID"))
	assert.Same(t, c, c.Attribute("ID").Entity())
	assert.Same(t, c, c.Relationship("artist").SourceEntity())
	assert.Equal(t, "PAINTING", c.FullyQualifiedName())

	c.Schema = "public"
	assert.Equal(t, "public.PAINTING", c.FullyQualifiedName())
}

func TestObjEntity_Paths(t *testing.T) {
	m, artist, painting := artistPainting(t)
	oe := NewObjEntity("Painting", "PAINTING")
	m.AddObjEntity(oe)
	attr := &ObjAttribute{Name: "id", Type: "int32", DbAttributePath: "ID"}
	oe.AddAttribute(attr)

	assert.Same(t, painting, oe.DbEntity())
	assert.Same(t, painting.Attribute("ID"), attr.DbAttribute())
	assert.Same(t, attr, oe.AttributeForDbAttribute(painting.Attribute("ID")))
	assert.True(t, oe.HasProperty("id"))

	r := NewObjRelationship("paintingsOfArtist")
	r.AddDbRelationship(painting.Relationship("artist"))
	r.AddDbRelationship(artist.Relationship("paintings"))
	oe.AddRelationship(r)

	assert.Equal(t, "artist.paintings", r.DbRelationshipPath())
	assert.True(t, r.IsToMany())
	assert.Same(t, r, oe.RelationshipForDbRelationship(painting.Relationship("artist")))
}

func TestProcedureParameterDirection(t *testing.T) {
	for _, d := range []ParameterDirection{DirectionIn, DirectionOut, DirectionInOut, DirectionReturn} {
		assert.Equal(t, d, ParseParameterDirection(d.String()))
	}
	assert.Equal(t, ParameterDirection(0), ParseParameterDirection("sideways"))
}

func TestValidationResult(t *testing.T) {
	var r ValidationResult
	assert.False(t, r.HasFailures())
	assert.Equal(t, "No issues found", r.String())

	r.AddFailure(&ValidationFailure{Source: "Add Column", Message: "cannot apply", Err: assert.AnError})
	assert.True(t, r.HasFailures())
	assert.Len(t, r.Failures(), 1)
	assert.ErrorIs(t, r.Failures()[0], assert.AnError)
	assert.Contains(t, r.String(), "  - cannot apply: ")
}
