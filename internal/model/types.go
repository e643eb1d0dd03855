package model

import (
	"strconv"
	"strings"
)

// SQLType is a column type code using the JDBC numbering, so persisted maps
// stay portable between dialects.
type SQLType int

// Supported SQL type codes
const (
	TypeBit           SQLType = -7
	TypeTinyInt       SQLType = -6
	TypeBigInt        SQLType = -5
	TypeLongVarBinary SQLType = -4
	TypeVarBinary     SQLType = -3
	TypeBinary        SQLType = -2
	TypeLongVarChar   SQLType = -1
	TypeNull          SQLType = 0
	TypeChar          SQLType = 1
	TypeNumeric       SQLType = 2
	TypeDecimal       SQLType = 3
	TypeInteger       SQLType = 4
	TypeSmallInt      SQLType = 5
	TypeFloat         SQLType = 6
	TypeReal          SQLType = 7
	TypeDouble        SQLType = 8
	TypeVarChar       SQLType = 12
	TypeBoolean       SQLType = 16
	TypeDate          SQLType = 91
	TypeTime          SQLType = 92
	TypeTimestamp     SQLType = 93
	TypeOther         SQLType = 1111
	TypeBlob          SQLType = 2004
	TypeClob          SQLType = 2005
	TypeNChar         SQLType = -15
	TypeNVarChar      SQLType = -9
	TypeLongNVarChar  SQLType = -16
	TypeNClob         SQLType = 2011
)

var typeNames = map[SQLType]string{
	TypeBit:           "BIT",
	TypeTinyInt:       "TINYINT",
	TypeBigInt:        "BIGINT",
	TypeLongVarBinary: "LONGVARBINARY",
	TypeVarBinary:     "VARBINARY",
	TypeBinary:        "BINARY",
	TypeLongVarChar:   "LONGVARCHAR",
	TypeNull:          "NULL",
	TypeChar:          "CHAR",
	TypeNumeric:       "NUMERIC",
	TypeDecimal:       "DECIMAL",
	TypeInteger:       "INTEGER",
	TypeSmallInt:      "SMALLINT",
	TypeFloat:         "FLOAT",
	TypeReal:          "REAL",
	TypeDouble:        "DOUBLE",
	TypeVarChar:       "VARCHAR",
	TypeBoolean:       "BOOLEAN",
	TypeDate:          "DATE",
	TypeTime:          "TIME",
	TypeTimestamp:     "TIMESTAMP",
	TypeOther:         "OTHER",
	TypeBlob:          "BLOB",
	TypeClob:          "CLOB",
	TypeNChar:         "NCHAR",
	TypeNVarChar:      "NVARCHAR",
	TypeLongNVarChar:  "LONGNVARCHAR",
	TypeNClob:         "NCLOB",
}

// String returns the JDBC name of the type
func (t SQLType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return strconv.Itoa(int(t))
}

// ParseSQLType converts a JDBC type name (or a numeric code) back to a type
// code. Unknown names map to TypeOther.
func ParseSQLType(name string) SQLType {
	name = strings.ToUpper(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return t
		}
	}
	if code, err := strconv.Atoi(name); err == nil {
		return SQLType(code)
	}
	return TypeOther
}

// IsCharacter reports whether the type carries a max length
func (t SQLType) IsCharacter() bool {
	switch t {
	case TypeChar, TypeVarChar, TypeNChar, TypeNVarChar, TypeBinary, TypeVarBinary:
		return true
	}
	return false
}

// IsDecimal reports whether the type carries a scale
func (t SQLType) IsDecimal() bool {
	return t == TypeNumeric || t == TypeDecimal
}

// nativeTypes maps dialect type names (PostgreSQL, MySQL, SQLite declared
// types) to type codes.
var nativeTypes = map[string]SQLType{
	"bit":                         TypeBit,
	"bool":                        TypeBoolean,
	"boolean":                     TypeBoolean,
	"tinyint":                     TypeTinyInt,
	"smallint":                    TypeSmallInt,
	"int2":                        TypeSmallInt,
	"smallserial":                 TypeSmallInt,
	"mediumint":                   TypeInteger,
	"int":                         TypeInteger,
	"int4":                        TypeInteger,
	"integer":                     TypeInteger,
	"serial":                      TypeInteger,
	"bigint":                      TypeBigInt,
	"int8":                        TypeBigInt,
	"bigserial":                   TypeBigInt,
	"real":                        TypeReal,
	"float4":                      TypeReal,
	"float":                       TypeFloat,
	"double":                      TypeDouble,
	"float8":                      TypeDouble,
	"double precision":            TypeDouble,
	"numeric":                     TypeNumeric,
	"decimal":                     TypeDecimal,
	"char":                        TypeChar,
	"character":                   TypeChar,
	"bpchar":                      TypeChar,
	"nchar":                       TypeNChar,
	"varchar":                     TypeVarChar,
	"character varying":           TypeVarChar,
	"nvarchar":                    TypeNVarChar,
	"enum":                        TypeVarChar,
	"set":                         TypeVarChar,
	"text":                        TypeLongVarChar,
	"tinytext":                    TypeLongVarChar,
	"mediumtext":                  TypeLongVarChar,
	"longtext":                    TypeLongVarChar,
	"clob":                        TypeClob,
	"date":                        TypeDate,
	"time":                        TypeTime,
	"time without time zone":      TypeTime,
	"time with time zone":         TypeTime,
	"datetime":                    TypeTimestamp,
	"timestamp":                   TypeTimestamp,
	"timestamp without time zone": TypeTimestamp,
	"timestamp with time zone":    TypeTimestamp,
	"timestamptz":                 TypeTimestamp,
	"binary":                      TypeBinary,
	"varbinary":                   TypeVarBinary,
	"bytea":                       TypeLongVarBinary,
	"blob":                        TypeBlob,
	"tinyblob":                    TypeBlob,
	"mediumblob":                  TypeBlob,
	"longblob":                    TypeBlob,
}

// TypeForNative maps a dialect type name to a type code. Parameterized
// declarations such as "VARCHAR(100)" or "decimal(10,2) unsigned" are reduced
// to their base name first; SQLite style affinity rules are the fallback.
func TypeForNative(name string) SQLType {
	base := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	base = strings.TrimSuffix(base, " unsigned")
	if t, ok := nativeTypes[base]; ok {
		return t
	}

	switch {
	case strings.Contains(base, "int"):
		return TypeInteger
	case strings.Contains(base, "char"), strings.Contains(base, "clob"), strings.Contains(base, "text"):
		return TypeVarChar
	case strings.Contains(base, "blob"):
		return TypeBlob
	case strings.Contains(base, "real"), strings.Contains(base, "floa"), strings.Contains(base, "doub"):
		return TypeDouble
	}
	return TypeOther
}

// ParseNativeLength extracts the length and scale of a declaration such as
// "VARCHAR(100)" or "NUMERIC(10,2)". Missing parts are -1.
func ParseNativeLength(decl string) (length, scale int) {
	length, scale = -1, -1
	open := strings.IndexByte(decl, '(')
	end := strings.LastIndexByte(decl, ')')
	if open < 0 || end <= open {
		return length, scale
	}

	parts := strings.Split(decl[open+1:end], ",")
	if n, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		length = n
	}
	if len(parts) > 1 {
		if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			scale = n
		}
	}
	return length, scale
}

// GoType returns the Go type name an object attribute of this SQL type uses
func (t SQLType) GoType() string {
	switch t {
	case TypeBit, TypeBoolean:
		return "bool"
	case TypeTinyInt:
		return "int8"
	case TypeSmallInt:
		return "int16"
	case TypeInteger:
		return "int32"
	case TypeBigInt:
		return "int64"
	case TypeReal:
		return "float32"
	case TypeFloat, TypeDouble:
		return "float64"
	case TypeNumeric, TypeDecimal:
		return "*big.Rat"
	case TypeChar, TypeVarChar, TypeLongVarChar, TypeClob, TypeNChar, TypeNVarChar, TypeLongNVarChar, TypeNClob:
		return "string"
	case TypeDate, TypeTime, TypeTimestamp:
		return "time.Time"
	case TypeBinary, TypeVarBinary, TypeLongVarBinary, TypeBlob:
		return "[]byte"
	}
	return "any"
}
