package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteIntrospector reads metadata through PRAGMA statements. SQLite has no
// catalogs, schemas, constraint names or stored procedures.
type SQLiteIntrospector struct {
	client *SQLiteClient
}

// NewSQLiteIntrospector creates an introspector on an open client
func NewSQLiteIntrospector(client *SQLiteClient) *SQLiteIntrospector {
	return &SQLiteIntrospector{client: client}
}

// DefaultTableTypes implements Introspector
func (e *SQLiteIntrospector) DefaultTableTypes() []string {
	return []string{TableTypeTable, TableTypeView}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Tables implements Introspector
func (e *SQLiteIntrospector) Tables(ctx context.Context, catalog, schema string, types []string) ([]TableRef, error) {
	if catalog != "" || schema != "" {
		return nil, nil
	}

	query := `
		SELECT name, type
		FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []TableRef
	for rows.Next() {
		var ref TableRef
		var tableType string
		if err := rows.Scan(&ref.Name, &tableType); err != nil {
			return nil, err
		}
		ref.Type = strings.ToUpper(tableType)
		if includesType(types, ref.Type) {
			refs = append(refs, ref)
		}
	}

	return refs, rows.Err()
}

// Table implements Introspector. A single INTEGER primary key declared with
// AUTOINCREMENT is reported as generated.
func (e *SQLiteIntrospector) Table(ctx context.Context, ref TableRef) (*TableMetadata, error) {
	md := &TableMetadata{Ref: ref}

	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(ref.Name))
	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}

	type pkColumn struct {
		order int
		name  string
	}
	var pkColumns []pkColumn
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to extract columns: %w", err)
		}

		md.Columns = append(md.Columns, nativeColumn(name, colType, notNull == 0))
		if pk > 0 {
			pkColumns = append(pkColumns, pkColumn{order: pk, name: name})
		}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}

	// pk holds the 1-based position within the key
	md.PrimaryKey = make([]string, len(pkColumns))
	for _, c := range pkColumns {
		if c.order <= len(pkColumns) {
			md.PrimaryKey[c.order-1] = c.name
		}
	}
	if len(md.PrimaryKey) == 0 {
		md.PrimaryKey = nil
	}

	if len(md.PrimaryKey) == 1 {
		auto, err := e.autoIncrement(ctx, ref.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to extract primary key: %w", err)
		}
		for i := range md.Columns {
			if md.Columns[i].Name == md.PrimaryKey[0] && auto {
				md.Columns[i].Generated = true
			}
		}
	}

	return md, nil
}

func (e *SQLiteIntrospector) autoIncrement(ctx context.Context, table string) (bool, error) {
	var ddl sql.NullString
	err := e.client.GetDB().QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE name = ?", table).Scan(&ddl)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(ddl.String), "AUTOINCREMENT"), nil
}

// ForeignKeys implements Introspector. Keys have no names in SQLite, so each
// is named after its table and id. A key referencing the implicit primary key
// is resolved against the referenced table.
func (e *SQLiteIntrospector) ForeignKeys(ctx context.Context, ref TableRef) ([]ForeignKey, error) {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(ref.Name))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	var keys []ForeignKey
	for rows.Next() {
		var id, seq int
		var targetTable, fromCol, onUpdate, onDelete, match string
		var toCol sql.NullString

		if err := rows.Scan(&id, &seq, &targetTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			_ = rows.Close()
			return nil, err
		}

		keys = append(keys, ForeignKey{
			Name:     fmt.Sprintf("fk_%s_%d", strings.ToLower(ref.Name), id),
			Seq:      seq + 1,
			FKTable:  ref.Name,
			FKColumn: fromCol,
			PKTable:  targetTable,
			PKColumn: toCol.String,
		})
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range keys {
		if keys[i].PKColumn != "" {
			continue
		}
		target, err := e.Table(ctx, TableRef{Name: keys[i].PKTable})
		if err != nil {
			return nil, err
		}
		if pos := keys[i].Seq - 1; pos < len(target.PrimaryKey) {
			keys[i].PKColumn = target.PrimaryKey[pos]
		}
	}
	return keys, nil
}

// Procedures implements Introspector
func (e *SQLiteIntrospector) Procedures(context.Context, string, string) ([]ProcedureMetadata, error) {
	return nil, nil
}
