// Package naming derives object-layer names from database names
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tordrt/dbsync/internal/model"
)

// Strategy names accepted by New
const (
	StrategyDefault = "default"
	StrategyLegacy  = "legacy"
)

// NameGenerator names object entities, attributes and relationships
type NameGenerator interface {
	// ObjEntityName turns a table name into a class-style name
	ObjEntityName(e *model.DbEntity) string
	// ObjAttributeName turns a column name into a property-style name
	ObjAttributeName(a *model.DbAttribute) string
	// RelationshipName names a relationship following the given chain of db
	// relationships. A single element names a db relationship.
	RelationshipName(chain ...*model.DbRelationship) string
}

// New returns the generator for a strategy name. strip is an optional regular
// expression removed from table names before they are converted.
func New(strategy, strip string) (NameGenerator, error) {
	var re *regexp.Regexp
	if strip != "" {
		var err error
		if re, err = regexp.Compile(strip); err != nil {
			return nil, fmt.Errorf("invalid strip_from_table_names pattern %q: %w", strip, err)
		}
	}

	switch strings.ToLower(strategy) {
	case "", StrategyDefault:
		return &DefaultGenerator{strip: re}, nil
	case StrategyLegacy:
		return &LegacyGenerator{DefaultGenerator{strip: re}}, nil
	}
	return nil, fmt.Errorf("unknown naming strategy %q", strategy)
}

// DefaultGenerator produces PaintingGallery / birthYear / artist / paintings
// style names
type DefaultGenerator struct {
	strip *regexp.Regexp
}

// ObjEntityName implements NameGenerator
func (g *DefaultGenerator) ObjEntityName(e *model.DbEntity) string {
	return UpperCamel(g.tableName(e.Name))
}

// ObjAttributeName implements NameGenerator
func (g *DefaultGenerator) ObjAttributeName(a *model.DbAttribute) string {
	return LowerCamel(a.Name)
}

// RelationshipName implements NameGenerator
func (g *DefaultGenerator) RelationshipName(chain ...*model.DbRelationship) string {
	if len(chain) == 0 {
		return ""
	}
	toMany := false
	for _, r := range chain {
		toMany = toMany || r.ToMany
	}
	last := chain[len(chain)-1]

	if !toMany {
		joins := last.Joins()
		if len(joins) == 1 {
			column := joins[0].SourceName
			if len(column) > 3 && strings.EqualFold(column[len(column)-3:], "_ID") {
				return LowerCamel(column[:len(column)-3])
			}
		}
		return LowerCamel(g.tableName(last.TargetEntityName))
	}
	return inflect.Pluralize(LowerCamel(g.tableName(last.TargetEntityName)))
}

func (g *DefaultGenerator) tableName(name string) string {
	if g.strip == nil {
		return name
	}
	if stripped := g.strip.ReplaceAllString(name, ""); stripped != "" {
		return stripped
	}
	return name
}

// LegacyGenerator keeps the older toArtist / paintingArray relationship style
type LegacyGenerator struct {
	DefaultGenerator
}

// RelationshipName implements NameGenerator
func (g *LegacyGenerator) RelationshipName(chain ...*model.DbRelationship) string {
	if len(chain) == 0 {
		return ""
	}
	last := chain[len(chain)-1]
	target := g.tableName(last.TargetEntityName)
	for _, r := range chain {
		if r.ToMany {
			return LowerCamel(target) + "Array"
		}
	}
	return "to" + UpperCamel(target)
}

// UpperCamel converts DB_STYLE or db_style names to DbStyle. Names without
// separators that are already mixed case only get their first letter raised.
func UpperCamel(name string) string {
	words := splitWords(name)
	titleCaser := cases.Title(language.English)
	var sb strings.Builder
	for _, w := range words {
		if isMixedCase(w) && len(words) == 1 {
			r := []rune(w)
			r[0] = unicode.ToUpper(r[0])
			sb.WriteString(string(r))
			continue
		}
		sb.WriteString(titleCaser.String(strings.ToLower(w)))
	}
	return sb.String()
}

// LowerCamel converts DB_STYLE or db_style names to dbStyle
func LowerCamel(name string) string {
	upper := UpperCamel(name)
	if upper == "" {
		return ""
	}
	r := []rune(upper)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func splitWords(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-' || r == '.'
	})
}

func isMixedCase(s string) bool {
	hasUpper, hasLower := false, false
	for _, r := range s {
		hasUpper = hasUpper || unicode.IsUpper(r)
		hasLower = hasLower || unicode.IsLower(r)
	}
	return hasUpper && hasLower
}

// Unique returns base, or base followed by the smallest positive number that
// is not taken
func Unique(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}
