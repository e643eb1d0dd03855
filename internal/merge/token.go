// Package merge diffs two schema models into ordered, reversible tokens and
// applies model-bound tokens to a DataMap.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/dbsync/internal/model"
)

// Direction tells which side a token changes
type Direction int

const (
	// ToDB tokens describe a change to the database that would make it match
	// the model
	ToDB Direction = iota
	// ToModel tokens describe a change to the model that makes it match the
	// database
	ToModel
)

// String returns a human readable direction
func (d Direction) String() string {
	if d == ToModel {
		return "To Model"
	}
	return "To DB"
}

// Kind identifies the operation a token performs
type Kind int

// Token kinds
const (
	CreateTable Kind = iota + 1
	DropTable
	AddColumn
	DropColumn
	SetColumnType
	SetNotNull
	SetAllowNull
	SetGeneratedFlag
	SetPrimaryKey
	AddRelationship
	DropRelationship
	CreateProcedure
	DropProcedure
)

var kindNames = map[Kind]string{
	CreateTable:      "Create Table",
	DropTable:        "Drop Table",
	AddColumn:        "Add Column",
	DropColumn:       "Drop Column",
	SetColumnType:    "Set Column Type",
	SetNotNull:       "Set Not Null",
	SetAllowNull:     "Set Allow Null",
	SetGeneratedFlag: "Set Generated Flag",
	SetPrimaryKey:    "Set Primary Key",
	AddRelationship:  "Add Relationship",
	DropRelationship: "Drop Relationship",
	CreateProcedure:  "Create Procedure",
	DropProcedure:    "Drop Procedure",
}

// String returns the token name used in logs
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// weight orders kinds so creations run before dependents and drops after
func (k Kind) weight() int {
	switch k {
	case DropRelationship:
		return 10
	case CreateTable:
		return 20
	case CreateProcedure:
		return 25
	case AddColumn:
		return 30
	case SetColumnType, SetNotNull, SetAllowNull, SetGeneratedFlag:
		return 40
	case SetPrimaryKey:
		return 50
	case AddRelationship:
		return 60
	case DropColumn:
		return 70
	case DropTable:
		return 80
	case DropProcedure:
		return 85
	}
	return 100
}

// reverse returns the opposite operation
func (k Kind) reverse() Kind {
	switch k {
	case CreateTable:
		return DropTable
	case DropTable:
		return CreateTable
	case AddColumn:
		return DropColumn
	case DropColumn:
		return AddColumn
	case SetNotNull:
		return SetAllowNull
	case SetAllowNull:
		return SetNotNull
	case AddRelationship:
		return DropRelationship
	case DropRelationship:
		return AddRelationship
	case CreateProcedure:
		return DropProcedure
	case DropProcedure:
		return CreateProcedure
	}
	return k
}

// Token is a single schema change. Which operand fields are set depends on
// the kind. Tokens are never modified after creation.
type Token struct {
	Kind      Kind
	Direction Direction

	// Entity is the table the change applies to
	Entity *model.DbEntity
	// Column is the column for column kinds. For SetColumnType it holds the
	// new definition.
	Column *model.DbAttribute
	// OriginalColumn is the current definition for SetColumnType
	OriginalColumn *model.DbAttribute
	// Relationship is the relationship for relationship kinds
	Relationship *model.DbRelationship
	// Procedure is the procedure for procedure kinds
	Procedure *model.Procedure

	// OriginalPrimaryKey and PrimaryKey are column name sets for SetPrimaryKey
	OriginalPrimaryKey []string
	PrimaryKey         []string
	// PrimaryKeyName is the detected database constraint name
	PrimaryKeyName string

	// Generated is the target value for SetGeneratedFlag
	Generated bool

	seq int
}

// Name returns the kind name, e.g. "Add Column"
func (t *Token) Name() string {
	return t.Kind.String()
}

// Value summarizes the operands for logging
func (t *Token) Value() string {
	switch t.Kind {
	case CreateTable, DropTable, SetPrimaryKey:
		return entityName(t.Entity)
	case AddColumn, DropColumn, SetNotNull, SetAllowNull, SetGeneratedFlag:
		return entityName(t.Entity) + "." + columnName(t.Column)
	case SetColumnType:
		return t.columnTypeValue()
	case AddRelationship, DropRelationship:
		if t.Relationship == nil {
			return entityName(t.Entity)
		}
		return entityName(t.Entity) + "->" + t.Relationship.TargetEntityName
	case CreateProcedure, DropProcedure:
		if t.Procedure == nil {
			return ""
		}
		return t.Procedure.Name
	}
	return ""
}

func (t *Token) columnTypeValue() string {
	var sb strings.Builder
	sb.WriteString(entityName(t.Entity))
	sb.WriteString(".")
	sb.WriteString(columnName(t.Column))

	orig, next := t.OriginalColumn, t.Column
	if orig == nil || next == nil {
		return sb.String()
	}
	if orig.Type != next.Type {
		fmt.Fprintf(&sb, " type: %s -> %s", orig.Type, next.Type)
	}
	if orig.MaxLength != next.MaxLength {
		fmt.Fprintf(&sb, " maxLength: %d -> %d", orig.MaxLength, next.MaxLength)
	}
	if orig.Scale != next.Scale {
		fmt.Fprintf(&sb, " scale: %d -> %d", orig.Scale, next.Scale)
	}
	return sb.String()
}

// String renders the token with its direction
func (t *Token) String() string {
	return t.Name() + " " + t.Value() + " " + t.Direction.String()
}

// Reverse returns the token that undoes this one on the other side
func (t *Token) Reverse() *Token {
	r := *t
	r.Kind = t.Kind.reverse()
	if t.Direction == ToDB {
		r.Direction = ToModel
	} else {
		r.Direction = ToDB
	}

	switch t.Kind {
	case SetColumnType:
		r.Column, r.OriginalColumn = t.OriginalColumn, t.Column
	case SetPrimaryKey:
		r.PrimaryKey, r.OriginalPrimaryKey = t.OriginalPrimaryKey, t.PrimaryKey
	case SetGeneratedFlag:
		r.Generated = !t.Generated
	}
	return &r
}

// Sort orders tokens by kind weight, then direction with ToDB first, then
// creation order. The sort is stable and deterministic.
func Sort(tokens []*Token) {
	sort.SliceStable(tokens, func(i, j int) bool {
		a, b := tokens[i], tokens[j]
		if wa, wb := a.Kind.weight(), b.Kind.weight(); wa != wb {
			return wa < wb
		}
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		return a.seq < b.seq
	})
}

func entityName(e *model.DbEntity) string {
	if e == nil {
		return ""
	}
	return e.Name
}

func columnName(a *model.DbAttribute) string {
	if a == nil {
		return ""
	}
	return a.Name
}
