package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/dbsync/internal/model"
)

const varcharType = "varchar"

// PostgresIntrospector reads metadata from information_schema. The catalog
// is the current database; schemas are namespaces.
type PostgresIntrospector struct {
	client *PostgresClient
}

// NewPostgresIntrospector creates an introspector on an open client
func NewPostgresIntrospector(client *PostgresClient) *PostgresIntrospector {
	return &PostgresIntrospector{client: client}
}

// DefaultTableTypes implements Introspector
func (p *PostgresIntrospector) DefaultTableTypes() []string {
	return []string{TableTypeTable, TableTypeView}
}

// Tables implements Introspector
func (p *PostgresIntrospector) Tables(ctx context.Context, catalog, schema string, types []string) ([]TableRef, error) {
	if catalog != "" && catalog != p.client.Database() {
		return nil, nil
	}

	query := `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE ($1::text = '' OR table_schema = $1)
			AND table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name
	`

	rows, err := p.client.GetConnection().Query(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []TableRef
	for rows.Next() {
		ref := TableRef{Catalog: p.client.Database()}
		var tableType string
		if err := rows.Scan(&ref.Schema, &ref.Name, &tableType); err != nil {
			return nil, err
		}
		ref.Type = normalizeTableType(tableType)
		if includesType(types, ref.Type) {
			refs = append(refs, ref)
		}
	}

	return refs, rows.Err()
}

func normalizeTableType(t string) string {
	switch t {
	case "BASE TABLE":
		return TableTypeTable
	case "VIEW":
		return TableTypeView
	}
	return t
}

// Table implements Introspector
func (p *PostgresIntrospector) Table(ctx context.Context, ref TableRef) (*TableMetadata, error) {
	md := &TableMetadata{Ref: ref}

	columns, err := p.columns(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	md.Columns = columns

	if err := p.primaryKey(ctx, md); err != nil {
		return nil, fmt.Errorf("failed to extract primary key: %w", err)
	}
	return md, nil
}

// normalizePostgresType maps verbose SQL type names to the declarations
// model.TypeForNative understands
func normalizePostgresType(dataType, udtName string, charMaxLength *int) string {
	switch dataType {
	case "character varying":
		if charMaxLength != nil {
			return fmt.Sprintf("varchar(%d)", *charMaxLength)
		}
		return varcharType
	case "character":
		if charMaxLength != nil {
			return fmt.Sprintf("char(%d)", *charMaxLength)
		}
		return "char"
	case "ARRAY":
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

func (p *PostgresIntrospector) columns(ctx context.Context, ref TableRef) ([]ColumnMetadata, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.is_nullable,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.is_identity,
			c.column_default
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := p.client.GetConnection().Query(ctx, query, ref.Schema, ref.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnMetadata
	for rows.Next() {
		var name, dataType, udtName, nullable, identity string
		var charMaxLength, precision, scale *int
		var defaultVal *string

		if err := rows.Scan(&name, &dataType, &udtName, &nullable, &charMaxLength, &precision, &scale, &identity, &defaultVal); err != nil {
			return nil, err
		}

		col := nativeColumn(name, normalizePostgresType(dataType, udtName, charMaxLength), nullable == "YES")
		if col.Type.IsDecimal() && precision != nil {
			col.MaxLength = *precision
			if scale != nil {
				col.Scale = *scale
			}
		}
		col.Generated = identity == "YES" || (defaultVal != nil && strings.HasPrefix(*defaultVal, "nextval("))
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (p *PostgresIntrospector) primaryKey(ctx context.Context, md *TableMetadata) error {
	query := `
		SELECT kcu.column_name, tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`

	rows, err := p.client.GetConnection().Query(ctx, query, md.Ref.Schema, md.Ref.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var column string
		if err := rows.Scan(&column, &md.PrimaryKeyName); err != nil {
			return err
		}
		md.PrimaryKey = append(md.PrimaryKey, column)
	}

	return rows.Err()
}

// ForeignKeys implements Introspector. Columns of multi-column keys are
// paired through position_in_unique_constraint.
func (p *PostgresIntrospector) ForeignKeys(ctx context.Context, ref TableRef) ([]ForeignKey, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.ordinal_position,
			kcu.column_name,
			pk.table_schema,
			pk.table_name,
			pk.column_name
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = rc.constraint_schema
			AND kcu.constraint_name = rc.constraint_name
		JOIN information_schema.key_column_usage pk
			ON pk.constraint_schema = rc.unique_constraint_schema
			AND pk.constraint_name = rc.unique_constraint_name
			AND pk.ordinal_position = kcu.position_in_unique_constraint
		WHERE kcu.table_schema = $1 AND kcu.table_name = $2
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := p.client.GetConnection().Query(ctx, query, ref.Schema, ref.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []ForeignKey
	for rows.Next() {
		fk := ForeignKey{
			FKCatalog: ref.Catalog,
			FKSchema:  ref.Schema,
			FKTable:   ref.Name,
			PKCatalog: ref.Catalog,
		}
		if err := rows.Scan(&fk.Name, &fk.Seq, &fk.FKColumn, &fk.PKSchema, &fk.PKTable, &fk.PKColumn); err != nil {
			return nil, err
		}
		keys = append(keys, fk)
	}

	return keys, rows.Err()
}

// Procedures implements Introspector
func (p *PostgresIntrospector) Procedures(ctx context.Context, catalog, schema string) ([]ProcedureMetadata, error) {
	if catalog != "" && catalog != p.client.Database() {
		return nil, nil
	}

	query := `
		SELECT specific_name, routine_schema, routine_name, routine_type, COALESCE(data_type, '')
		FROM information_schema.routines
		WHERE ($1::text = '' OR routine_schema = $1)
			AND routine_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY routine_schema, routine_name
	`

	rows, err := p.client.GetConnection().Query(ctx, query, schema)
	if err != nil {
		return nil, err
	}

	type routine struct {
		specific string
		proc     ProcedureMetadata
	}
	var routines []routine
	for rows.Next() {
		var r routine
		var routineType, returnType string
		if err := rows.Scan(&r.specific, &r.proc.Schema, &r.proc.Name, &routineType, &returnType); err != nil {
			rows.Close()
			return nil, err
		}
		r.proc.Catalog = p.client.Database()
		r.proc.ReturningValue = routineType == "FUNCTION" && returnType != "" && returnType != "void"
		routines = append(routines, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	procedures := make([]ProcedureMetadata, 0, len(routines))
	for _, r := range routines {
		params, err := p.parameters(ctx, r.proc.Schema, r.specific)
		if err != nil {
			return nil, fmt.Errorf("failed to extract parameters of %s: %w", r.proc.Name, err)
		}
		r.proc.Parameters = params
		procedures = append(procedures, r.proc)
	}
	return procedures, nil
}

func (p *PostgresIntrospector) parameters(ctx context.Context, schema, specificName string) ([]model.ProcedureParameter, error) {
	query := `
		SELECT
			COALESCE(parameter_name, ''),
			COALESCE(parameter_mode, 'IN'),
			data_type,
			character_maximum_length,
			numeric_precision
		FROM information_schema.parameters
		WHERE specific_schema = $1 AND specific_name = $2
		ORDER BY ordinal_position
	`

	rows, err := p.client.GetConnection().Query(ctx, query, schema, specificName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var params []model.ProcedureParameter
	for rows.Next() {
		var param model.ProcedureParameter
		var mode, dataType string
		var length, precision *int
		if err := rows.Scan(&param.Name, &mode, &dataType, &length, &precision); err != nil {
			return nil, err
		}
		param.Direction = parameterDirection(mode)
		param.Type = model.TypeForNative(dataType)
		if length != nil {
			param.MaxLength = *length
		}
		if precision != nil {
			param.Precision = *precision
		}
		params = append(params, param)
	}

	return params, rows.Err()
}
