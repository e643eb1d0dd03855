package db

import (
	"context"
	"strings"

	"github.com/tordrt/dbsync/internal/model"
)

// Table types reported by introspectors
const (
	TableTypeTable = "TABLE"
	TableTypeView  = "VIEW"
)

// Introspector reads raw schema metadata from a live database
type Introspector interface {
	// DefaultTableTypes lists the table types loaded when none are configured
	DefaultTableTypes() []string
	// Tables lists the tables of a catalog and schema. Empty names mean the
	// connection defaults.
	Tables(ctx context.Context, catalog, schema string, types []string) ([]TableRef, error)
	// Table reads the columns and primary key of a table
	Table(ctx context.Context, ref TableRef) (*TableMetadata, error)
	// ForeignKeys returns the keys the table imports, ordered by constraint
	// and position
	ForeignKeys(ctx context.Context, ref TableRef) ([]ForeignKey, error)
	// Procedures lists stored procedures and functions with their parameters
	Procedures(ctx context.Context, catalog, schema string) ([]ProcedureMetadata, error)
}

// TableRef identifies a table
type TableRef struct {
	Catalog string
	Schema  string
	Name    string
	Type    string
}

// Key returns catalog.schema.table
func (r TableRef) Key() string {
	return r.Catalog + "." + r.Schema + "." + r.Name
}

// ColumnMetadata describes a single column as read from the database
type ColumnMetadata struct {
	Name       string
	NativeType string
	Type       model.SQLType
	MaxLength  int
	Scale      int
	Nullable   bool
	Generated  bool
}

// TableMetadata holds the columns and primary key of a table
type TableMetadata struct {
	Ref            TableRef
	Columns        []ColumnMetadata
	PrimaryKey     []string
	PrimaryKeyName string
}

// ForeignKey is one column pair of an imported key
type ForeignKey struct {
	Name string
	Seq  int

	FKCatalog string
	FKSchema  string
	FKTable   string
	FKColumn  string

	PKCatalog string
	PKSchema  string
	PKTable   string
	PKColumn  string
}

// ProcedureMetadata describes a stored procedure
type ProcedureMetadata struct {
	Catalog        string
	Schema         string
	Name           string
	ReturningValue bool
	Parameters     []model.ProcedureParameter
}

func includesType(types []string, t string) bool {
	if len(types) == 0 {
		return true
	}
	for _, candidate := range types {
		if strings.EqualFold(candidate, t) {
			return true
		}
	}
	return false
}

// nativeColumn fills the SQL type code from a native declaration, plus the
// length and scale for character and decimal types
func nativeColumn(name, decl string, nullable bool) ColumnMetadata {
	col := ColumnMetadata{
		Name:       name,
		NativeType: decl,
		Type:       model.TypeForNative(decl),
		Nullable:   nullable,
	}
	if !col.Type.IsCharacter() && !col.Type.IsDecimal() {
		return col
	}
	length, scale := model.ParseNativeLength(decl)
	if length > 0 {
		col.MaxLength = length
	}
	if scale > 0 {
		col.Scale = scale
	}
	return col
}

func parameterDirection(mode string) model.ParameterDirection {
	switch strings.ToUpper(mode) {
	case "OUT":
		return model.DirectionOut
	case "INOUT":
		return model.DirectionInOut
	case "IN":
		return model.DirectionIn
	}
	return model.DirectionReturn
}
