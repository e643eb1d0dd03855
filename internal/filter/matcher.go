package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternFilter decides membership of a name against ordered include and
// exclude regular expressions. Patterns are case-sensitive and must match the
// whole name. A nil *PatternFilter includes everything.
type PatternFilter struct {
	includes []compiledPattern
	excludes []compiledPattern
	nothing  bool
}

type compiledPattern struct {
	re     *regexp.Regexp
	source string
	pinned bool
}

func compilePattern(p PatternParam) (compiledPattern, error) {
	re, err := regexp.Compile("^(?:" + p.Pattern + ")$")
	if err != nil {
		return compiledPattern{}, fmt.Errorf("invalid pattern %q: %w", p.Pattern, err)
	}
	return compiledPattern{re: re, source: p.Pattern, pinned: p.Pinned}, nil
}

func compilePatterns(params []PatternParam) ([]compiledPattern, error) {
	var out []compiledPattern
	for _, p := range params {
		if strings.TrimSpace(p.Pattern) == "" {
			continue
		}
		cp, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// NewPatternFilter compiles the include and exclude lists. Blank patterns
// are ignored.
func NewPatternFilter(includes, excludes []PatternParam) (*PatternFilter, error) {
	inc, err := compilePatterns(includes)
	if err != nil {
		return nil, err
	}
	exc, err := compilePatterns(excludes)
	if err != nil {
		return nil, err
	}
	return &PatternFilter{includes: inc, excludes: exc}, nil
}

// IncludeEverything returns a filter that accepts any name
func IncludeEverything() *PatternFilter {
	return &PatternFilter{}
}

// IncludeNothing returns a filter that rejects every name
func IncludeNothing() *PatternFilter {
	return &PatternFilter{nothing: true}
}

// NewNameMatcher builds a filter from comma-separated include and exclude
// pattern lists, as used for meaningful PK tables. An entirely blank include
// list matches everything.
func NewNameMatcher(includes, excludes string) (*PatternFilter, error) {
	return NewPatternFilter(splitPatterns(includes), splitPatterns(excludes))
}

func splitPatterns(list string) []PatternParam {
	var params []PatternParam
	for _, token := range strings.Split(list, ",") {
		if token = strings.TrimSpace(token); token != "" {
			params = append(params, PatternParam{Pattern: token})
		}
	}
	return params
}

// IsIncluded reports whether the name passes the filter. A non-empty include
// list requires a match; a matching exclude always rejects.
func (f *PatternFilter) IsIncluded(name string) bool {
	if f == nil {
		return true
	}
	if f.nothing {
		return false
	}

	include := len(f.includes) == 0
	for _, p := range f.includes {
		if p.re.MatchString(name) {
			include = true
			break
		}
	}
	if !include {
		return false
	}

	for _, p := range f.excludes {
		if p.re.MatchString(name) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the filter was configured with no patterns
func (f *PatternFilter) IsEmpty() bool {
	return f == nil || (!f.nothing && len(f.includes) == 0 && len(f.excludes) == 0)
}

// Pinned reports whether the name is included through a pinned include
// pattern
func (f *PatternFilter) Pinned(name string) bool {
	if f == nil || !f.IsIncluded(name) {
		return false
	}
	for _, p := range f.includes {
		if p.pinned && p.re.MatchString(name) {
			return true
		}
	}
	return false
}

// HasPinned reports whether any include pattern is pinned
func (f *PatternFilter) HasPinned() bool {
	if f == nil {
		return false
	}
	for _, p := range f.includes {
		if p.pinned {
			return true
		}
	}
	return false
}

// String renders the filter for debug output
func (f *PatternFilter) String() string {
	if f == nil || f.IsEmpty() {
		return "include: *"
	}
	if f.nothing {
		return "include: -"
	}
	var sb strings.Builder
	sb.WriteString("include: ")
	sb.WriteString(joinSources(f.includes, "*"))
	if len(f.excludes) > 0 {
		sb.WriteString(", exclude: ")
		sb.WriteString(joinSources(f.excludes, ""))
	}
	return sb.String()
}

func joinSources(patterns []compiledPattern, empty string) string {
	if len(patterns) == 0 {
		return empty
	}
	sources := make([]string, len(patterns))
	for i, p := range patterns {
		sources[i] = p.source
	}
	return strings.Join(sources, "|")
}
