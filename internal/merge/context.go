package merge

import (
	"log/slog"
	"strings"

	"github.com/tordrt/dbsync/internal/filter"
	"github.com/tordrt/dbsync/internal/model"
	"github.com/tordrt/dbsync/internal/naming"
)

// Context carries the model being changed and the collaborators tokens need
// while they are applied
type Context struct {
	DataMap       *model.DataMap
	NameGenerator naming.NameGenerator
	// MeaningfulPK selects tables whose primary key columns get object
	// attributes
	MeaningfulPK *filter.PatternFilter
	// RemoveMeaningfulFKs drops object attributes of columns that became
	// relationship sources
	RemoveMeaningfulFKs bool
	Result              *model.ValidationResult
	Logger              *slog.Logger

	added []*model.ObjEntity
}

// NewContext creates a context with default collaborators. A nil meaningful
// PK matcher matches no table.
func NewContext(m *model.DataMap, gen naming.NameGenerator, meaningfulPK *filter.PatternFilter, logger *slog.Logger) *Context {
	if meaningfulPK == nil {
		meaningfulPK = filter.IncludeNothing()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Context{
		DataMap:             m,
		NameGenerator:       gen,
		MeaningfulPK:        meaningfulPK,
		RemoveMeaningfulFKs: true,
		Result:              &model.ValidationResult{},
		Logger:              logger,
	}
}

// AddedObjEntities returns the object entities created by applied tokens
func (c *Context) AddedObjEntities() []*model.ObjEntity {
	return append([]*model.ObjEntity(nil), c.added...)
}

// entity resolves a token's entity in the context map by name
func (c *Context) entity(e *model.DbEntity) *model.DbEntity {
	if e == nil {
		return nil
	}
	if found := c.DataMap.DbEntity(e.Name); found != nil {
		return found
	}
	for _, candidate := range c.DataMap.DbEntities() {
		if strings.EqualFold(candidate.Name, e.Name) {
			return candidate
		}
	}
	return nil
}
