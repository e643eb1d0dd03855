package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tordrt/dbsync/internal/model"
)

// MySQLIntrospector reads metadata from information_schema. MySQL databases
// are catalogs; there are no schemas.
type MySQLIntrospector struct {
	client *MySQLClient
}

// NewMySQLIntrospector creates an introspector on an open client
func NewMySQLIntrospector(client *MySQLClient) *MySQLIntrospector {
	return &MySQLIntrospector{client: client}
}

// DefaultTableTypes implements Introspector
func (e *MySQLIntrospector) DefaultTableTypes() []string {
	return []string{TableTypeTable, TableTypeView}
}

func (e *MySQLIntrospector) catalog(catalog string) string {
	if catalog != "" {
		return catalog
	}
	return e.client.Database()
}

// Tables implements Introspector
func (e *MySQLIntrospector) Tables(ctx context.Context, catalog, _ string, types []string) ([]TableRef, error) {
	query := `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = ?
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.catalog(catalog))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []TableRef
	for rows.Next() {
		var ref TableRef
		var tableType string
		if err := rows.Scan(&ref.Catalog, &ref.Name, &tableType); err != nil {
			return nil, err
		}
		ref.Type = normalizeTableType(tableType)
		if includesType(types, ref.Type) {
			refs = append(refs, ref)
		}
	}

	return refs, rows.Err()
}

// Table implements Introspector
func (e *MySQLIntrospector) Table(ctx context.Context, ref TableRef) (*TableMetadata, error) {
	md := &TableMetadata{Ref: ref}

	columns, err := e.columns(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	md.Columns = columns

	pk, err := e.primaryKey(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to extract primary key: %w", err)
	}
	md.PrimaryKey = pk
	if len(pk) > 0 {
		md.PrimaryKeyName = "PRIMARY"
	}
	return md, nil
}

func (e *MySQLIntrospector) columns(ctx context.Context, ref TableRef) ([]ColumnMetadata, error) {
	query := `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.extra
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, ref.Catalog, ref.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnMetadata
	for rows.Next() {
		var name, columnType, nullable, extra string
		var charMaxLength, precision, scale sql.NullInt64

		if err := rows.Scan(&name, &columnType, &nullable, &charMaxLength, &precision, &scale, &extra); err != nil {
			return nil, err
		}

		col := nativeColumn(name, columnType, nullable == "YES")
		switch {
		case col.Type.IsDecimal() && precision.Valid:
			col.MaxLength = int(precision.Int64)
			col.Scale = int(scale.Int64)
		case col.Type.IsCharacter() && charMaxLength.Valid:
			col.MaxLength = int(charMaxLength.Int64)
		}
		col.Generated = strings.Contains(strings.ToLower(extra), "auto_increment")
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (e *MySQLIntrospector) primaryKey(ctx context.Context, ref TableRef) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, ref.Catalog, ref.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		pk = append(pk, colName)
	}

	return pk, rows.Err()
}

// ForeignKeys implements Introspector
func (e *MySQLIntrospector) ForeignKeys(ctx context.Context, ref TableRef) ([]ForeignKey, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.ordinal_position,
			kcu.column_name,
			kcu.referenced_table_schema,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, ref.Catalog, ref.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []ForeignKey
	for rows.Next() {
		fk := ForeignKey{FKCatalog: ref.Catalog, FKTable: ref.Name}
		if err := rows.Scan(&fk.Name, &fk.Seq, &fk.FKColumn, &fk.PKCatalog, &fk.PKTable, &fk.PKColumn); err != nil {
			return nil, err
		}
		keys = append(keys, fk)
	}

	return keys, rows.Err()
}

// Procedures implements Introspector
func (e *MySQLIntrospector) Procedures(ctx context.Context, catalog, _ string) ([]ProcedureMetadata, error) {
	query := `
		SELECT routine_schema, routine_name, routine_type
		FROM information_schema.routines
		WHERE routine_schema = ?
		ORDER BY routine_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.catalog(catalog))
	if err != nil {
		return nil, err
	}

	var procedures []ProcedureMetadata
	for rows.Next() {
		var proc ProcedureMetadata
		var routineType string
		if err := rows.Scan(&proc.Catalog, &proc.Name, &routineType); err != nil {
			_ = rows.Close()
			return nil, err
		}
		proc.ReturningValue = routineType == "FUNCTION"
		procedures = append(procedures, proc)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range procedures {
		params, err := e.parameters(ctx, procedures[i].Catalog, procedures[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to extract parameters of %s: %w", procedures[i].Name, err)
		}
		procedures[i].Parameters = params
	}
	return procedures, nil
}

// parameters reads routine parameters. A function result is the row at
// position 0 with no mode.
func (e *MySQLIntrospector) parameters(ctx context.Context, catalog, name string) ([]model.ProcedureParameter, error) {
	query := `
		SELECT
			COALESCE(parameter_name, ''),
			COALESCE(parameter_mode, ''),
			data_type,
			character_maximum_length,
			numeric_precision
		FROM information_schema.parameters
		WHERE specific_schema = ? AND specific_name = ?
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, catalog, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var params []model.ProcedureParameter
	for rows.Next() {
		var param model.ProcedureParameter
		var mode, dataType string
		var length, precision sql.NullInt64
		if err := rows.Scan(&param.Name, &mode, &dataType, &length, &precision); err != nil {
			return nil, err
		}
		param.Direction = parameterDirection(mode)
		param.Type = model.TypeForNative(dataType)
		param.MaxLength = int(length.Int64)
		param.Precision = int(precision.Int64)
		params = append(params, param)
	}

	return params, rows.Err()
}
