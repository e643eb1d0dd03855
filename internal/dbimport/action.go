package dbimport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/tordrt/dbsync/internal/db"
	"github.com/tordrt/dbsync/internal/merge"
	"github.com/tordrt/dbsync/internal/model"
	"github.com/tordrt/dbsync/internal/project"
)

// State is the pipeline position of an Action
type State int

// Pipeline states, in execution order
const (
	StateIdle State = iota
	StateLoadedSource
	StateDiffed
	StateTokensApplied
	StateSaved
)

var stateNames = [...]string{"idle", "loaded source", "diffed", "tokens applied", "saved"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DataSourceFactory opens the database a URL points at
type DataSourceFactory func(ctx context.Context, url string) (*db.Connection, error)

// OpenDataSource is the default DataSourceFactory
func OpenDataSource(ctx context.Context, url string) (*db.Connection, error) {
	ds, err := db.ParseDataSource(url)
	if err != nil {
		return nil, err
	}
	return ds.Open(ctx)
}

// MapStore loads and saves data maps
type MapStore interface {
	Load(mapPath string) (*model.DataMap, error)
	Save(m *model.DataMap, mapPath, projectPath string) error
}

// ActionOptions are the collaborators of an Action. Zero values get defaults.
type ActionOptions struct {
	Logger            *slog.Logger
	DataSourceFactory DataSourceFactory
	Store             MapStore
	// Cache keeps table metadata between runs of the same Action
	Cache *db.MetadataCache
}

// Action imports a database into a data map. It is not safe for concurrent
// use.
type Action struct {
	logger  *slog.Logger
	open    DataSourceFactory
	store   MapStore
	cache   *db.MetadataCache

	state      State
	cfg        *Config
	settings   *settings
	target     *model.DataMap
	tokens     []*merge.Token
	failures   *model.ValidationResult
	hasChanges bool
}

// NewAction creates an action
func NewAction(opts ActionOptions) *Action {
	a := &Action{
		logger:   opts.Logger,
		open:     opts.DataSourceFactory,
		store:    opts.Store,
		cache:    opts.Cache,
		failures: &model.ValidationResult{},
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	if a.open == nil {
		a.open = OpenDataSource
	}
	if a.store == nil {
		a.store = project.NewSaver(a.logger)
	}
	return a
}

// State returns the current pipeline state
func (a *Action) State() State {
	return a.state
}

// Tokens returns the changes found by the last Load, in application order
func (a *Action) Tokens() []*merge.Token {
	return append([]*merge.Token(nil), a.tokens...)
}

// Failures returns the problems tolerated by the last Commit
func (a *Action) Failures() *model.ValidationResult {
	return a.failures
}

// HasChanges reports whether the last Load found anything to save
func (a *Action) HasChanges() bool {
	return a.hasChanges
}

// DataMap returns the target map of the current run
func (a *Action) DataMap() *model.DataMap {
	return a.target
}

// Execute runs the whole pipeline. Dry runs stop after the diff.
func (a *Action) Execute(ctx context.Context, cfg *Config) error {
	if err := a.Load(ctx, cfg); err != nil {
		return err
	}
	if cfg.DryRun {
		a.logger.Info("Dry run, no changes saved.")
		return nil
	}
	if err := a.Commit(); err != nil {
		return err
	}
	a.state = StateIdle
	return nil
}

// Load reads the database and the target map and computes the tokens that
// bring the map in line with the database
func (a *Action) Load(ctx context.Context, cfg *Config) error {
	a.reset()
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	target, err := a.existingTargetMap(cfg)
	if err != nil {
		return err
	}

	s, err := a.selectSettings(cfg, target)
	if err != nil {
		return err
	}
	a.settings = s

	source, err := a.loadSource(ctx, cfg, s)
	if err != nil {
		return err
	}
	a.state = StateLoadedSource

	if target == nil {
		a.logger.Info("")
		a.logger.Info(fmt.Sprintf("Map file does not exist. Loaded db model will be saved into '%s'", cfg.TargetDataMap))
		a.hasChanges = true
		target = a.newTargetDataMap(cfg, s)
	}
	a.target = target

	a.transformSource(source, target, s)

	merger := &merge.Merger{
		Filters:           s.filters,
		SkipPrimaryKeys:   s.reverse.SkipPrimaryKeyLoading,
		SkipRelationships: s.reverse.SkipRelationshipsLoading,
	}
	a.tokens = reverse(merger.CreateTokens(target, source))
	merge.Sort(a.tokens)
	a.log(a.tokens)
	a.state = StateDiffed

	a.hasChanges = a.hasChanges || defaultPackageDiffers(target, s)
	a.hasChanges = a.hasChanges || len(a.tokens) > 0
	return nil
}

// Commit applies the tokens of the last Load and saves the map. Without
// changes it does nothing.
func (a *Action) Commit() error {
	if a.state != StateDiffed {
		return fmt.Errorf("cannot commit in state %s", a.state)
	}
	if !a.hasChanges {
		a.state = StateIdle
		return nil
	}

	if a.settings.defaultPackage != "" {
		a.target.DefaultPackage = a.settings.defaultPackage
	}
	a.applyTokens()
	a.state = StateTokensApplied

	if err := a.store.Save(a.target, a.cfg.TargetDataMap, a.cfg.Project); err != nil {
		return fmt.Errorf("failed to save data map: %w", err)
	}
	a.logger.Info("All changes saved.")
	a.hasChanges = false
	a.state = StateSaved
	return nil
}

func (a *Action) reset() {
	a.state = StateIdle
	a.cfg = nil
	a.settings = nil
	a.target = nil
	a.tokens = nil
	a.failures = &model.ValidationResult{}
	a.hasChanges = false
}

func (a *Action) existingTargetMap(cfg *Config) (*model.DataMap, error) {
	m, err := a.store.Load(cfg.TargetDataMap)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load data map %s: %w", cfg.TargetDataMap, err)
	}
	return m, nil
}

// selectSettings decides between the file configuration and the one
// embedded in the target map
func (a *Action) selectSettings(cfg *Config, target *model.DataMap) (*settings, error) {
	var embedded = target != nil && target.ReverseEngineering != nil

	switch {
	case cfg.UseDataMapReverseEngineering && embedded:
		r := *target.ReverseEngineering
		return newSettings(r, r.DefaultPackage)
	case embedded:
		a.logger.Warn("Found several dbimport configs. DataMap dbimport config was skipped. Configuration selected from build file")
	case cfg.UseDataMapReverseEngineering:
		a.logger.Warn("Missing dbimport config. Database is imported completely.")
	}
	return newSettings(cfg.ReverseEngineering, cfg.EffectiveDefaultPackage())
}

func (a *Action) cacheFor(cfg *Config) *db.MetadataCache {
	if a.cache == nil {
		a.cache = db.NewMetadataCache(cfg.MetadataCacheSize, cfg.MetadataCacheTTL)
	}
	return a.cache
}

// loadSource holds the connection only while the schema is read
func (a *Action) loadSource(ctx context.Context, cfg *Config, s *settings) (*model.DataMap, error) {
	a.logger.Debug("DB connection", "url", redactURL(cfg.Source.URL))
	a.logger.Debug(s.reverse.String())

	conn, err := a.open(ctx, cfg.Source.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open data source %s: %w", redactURL(cfg.Source.URL), err)
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			a.logger.Warn("failed to close database connection", "error", err)
		}
	}()

	loader := db.NewLoader(conn.Introspector(), db.LoaderOptions{
		Filters:           s.filters,
		TableTypes:        s.reverse.TableTypes,
		SkipPrimaryKeys:   s.reverse.SkipPrimaryKeyLoading,
		SkipRelationships: s.reverse.SkipRelationshipsLoading,
		NameGenerator:     s.generator,
		Cache:             a.cacheFor(cfg),
		Logger:            a.logger,
	})
	source, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load database schema: %w", err)
	}
	return source, nil
}

// newTargetDataMap creates the map for a first import. A single configured
// catalog and schema become its defaults unless they are patterns.
func (a *Action) newTargetDataMap(cfg *Config, s *settings) *model.DataMap {
	m := model.NewDataMap(cfg.DataMapName())
	m.DefaultPackage = s.defaultPackage

	catalogs := s.filters.Catalogs
	if len(catalogs) != 1 {
		return m
	}
	if name := catalogs[0].Name; name != "" && !strings.Contains(name, "%") {
		m.DefaultCatalog = name
	}
	if len(catalogs[0].Schemas) == 1 {
		if name := catalogs[0].Schemas[0].Name; name != "" && !strings.Contains(name, "%") {
			m.DefaultSchema = name
		}
	}
	return m
}

func (a *Action) transformSource(source, target *model.DataMap, s *settings) {
	for _, e := range source.DbEntities() {
		if s.reverse.ForceDataMapCatalog {
			e.Catalog = target.DefaultCatalog
		}
		if s.reverse.ForceDataMapSchema {
			e.Schema = target.DefaultSchema
		}
	}
}

// reverse turns the database-bound tokens into model changes. Tokens that
// already target the model are dropped.
func reverse(tokens []*merge.Token) []*merge.Token {
	var out []*merge.Token
	for _, t := range tokens {
		if t.Direction == merge.ToModel {
			continue
		}
		out = append(out, t.Reverse())
	}
	return out
}

func defaultPackageDiffers(target *model.DataMap, s *settings) bool {
	if strings.TrimSpace(s.defaultPackage) == "" {
		return false
	}
	return s.defaultPackage != target.DefaultPackage
}

func (a *Action) log(tokens []*merge.Token) {
	a.logger.Info("")
	if len(tokens) == 0 {
		a.logger.Info("Detected changes: No changes to import.")
		return
	}

	a.logger.Info("Detected changes: ")
	for _, t := range tokens {
		a.logger.Info(fmt.Sprintf("    %-20s %s", t.Name(), t.Value()))
	}
	a.logger.Info("")
}

func (a *Action) applyTokens() {
	ctx := merge.NewContext(a.target, a.settings.generator, a.settings.meaningfulPK, a.logger)
	ctx.Result = a.failures

	for _, t := range a.tokens {
		if err := t.Apply(ctx); err != nil {
			message := fmt.Sprintf("Migration Error. Can't apply changes from token: %s (%s)", t.Name(), t.Value())
			a.logger.Error(message, "error", err)
			a.failures.AddFailure(&model.ValidationFailure{Source: t.String(), Message: message, Err: err})
		}
	}

	if a.failures.HasFailures() {
		a.logger.Info("Migration Complete.")
		a.logger.Warn("Migration finished. The following problem(s) were encountered and ignored.")
		for _, f := range a.failures.Failures() {
			a.logger.Warn(f.String())
		}
	} else {
		a.logger.Info("Migration Complete Successfully.")
	}

	merge.FlattenManyToMany(a.target, ctx.AddedObjEntities(), a.settings.generator)
	a.relationshipsSanity()
}

// relationshipsSanity drops object relationships left without a source or
// target entity
func (a *Action) relationshipsSanity() {
	for _, oe := range a.target.ObjEntities() {
		for _, rel := range oe.Relationships() {
			if rel.SourceEntity() == nil || rel.TargetEntity() == nil {
				a.logger.Error(fmt.Sprintf("Incorrect obj relationship source or target entity is null: %s", rel))
				oe.RemoveRelationship(rel.Name)
			}
		}
	}
}

// redactURL hides the password of a data source URL
func redactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return raw
	}
	creds := rest[:at]
	if user, _, hasPass := strings.Cut(creds, ":"); hasPass {
		creds = user + ":xxxxx"
	}
	return scheme + "://" + creds + rest[at:]
}
