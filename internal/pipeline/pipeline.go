// Package pipeline coordinates the full cwbd run: loading the progress
// index, extracting relations from the dumps or the replica, resolving the
// requested categories and driving the download engine.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/config"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/database"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/download"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/logger"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/progress"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/relation"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/resolver"
)

// Result contains statistics and status of a pipeline run. Fetch fills the
// resolution fields, Download fills the download fields; Run fills both.
type Result struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration

	CategoriesRequested int
	CategoriesResolved  int
	CategoriesSkipped   int
	CategoriesMissing   []string
	RowsScanned         int64
	RowsSkipped         int64
	FilesDiscovered     int

	Downloaded int
	Skipped    int
	Failed     int

	Success bool
}

// Pipeline wires the relation source, resolver and download engine around a
// shared progress store.
type Pipeline struct {
	cfg       *config.Config
	store     *progress.Store
	dbManager *database.Manager
	logger    *logger.Logger
}

// New creates a pipeline and loads the progress index. A corrupt index is
// returned as a *progress.CorruptError; the caller decides whether to abort
// or tell the user to clean.
func New(cfg *config.Config, log *logger.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	store, err := progress.Load(cfg.IndexPath(), log)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:    cfg,
		store:  store,
		logger: log,
	}, nil
}

// Store returns the loaded progress store.
func (p *Pipeline) Store() *progress.Store {
	return p.store
}

// Close releases the replica connection if one was opened.
func (p *Pipeline) Close() error {
	if p.dbManager != nil {
		return p.dbManager.Close()
	}
	return nil
}

// Run performs a full pass: fetch (scan and resolve) followed by download.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := newResult()

	if err := p.fetch(ctx, result); err != nil {
		return finalize(result, false), err
	}
	if err := p.download(ctx, result); err != nil {
		return finalize(result, false), err
	}
	return finalize(result, true), nil
}

// Fetch resolves the requested categories against the relation source and
// merges the discovered files into the index, without downloading anything.
func (p *Pipeline) Fetch(ctx context.Context) (*Result, error) {
	result := newResult()
	if err := p.fetch(ctx, result); err != nil {
		return finalize(result, false), err
	}
	return finalize(result, true), nil
}

// Download fetches every pending file already recorded in the index.
func (p *Pipeline) Download(ctx context.Context) (*Result, error) {
	result := newResult()
	if err := p.download(ctx, result); err != nil {
		return finalize(result, false), err
	}
	return finalize(result, true), nil
}

func (p *Pipeline) fetch(ctx context.Context, result *Result) error {
	log := p.logger.WithPhase("fetch")

	categories, err := LoadCategories(p.cfg.Categories.File)
	if err != nil {
		return err
	}
	result.CategoriesRequested = len(categories)

	// When every requested category was resolved by a prior run there is
	// nothing to gain from scanning the dumps again.
	remaining := 0
	for _, cat := range categories {
		if !p.store.IsProcessed(cat) {
			remaining++
		}
	}
	if remaining == 0 {
		result.CategoriesSkipped = len(categories)
		log.Infow("All requested categories already processed, skipping scan",
			"categories", len(categories),
		)
		return nil
	}

	source, err := p.openSource(ctx)
	if err != nil {
		return err
	}

	rel, err := source.Load(ctx)
	if err != nil {
		return err
	}
	result.RowsScanned = rel.Stats.RowsScanned
	result.RowsSkipped = rel.Stats.RowsSkipped

	res := resolver.New(rel, p.cfg.Categories.Recursive, p.logger).Resolve(categories, p.store)
	result.CategoriesResolved = len(res.ResolvedCategories)
	result.CategoriesSkipped = len(res.SkippedProcessed)
	result.CategoriesMissing = res.Missing

	newFiles := make(map[string]string, res.Files.Len())
	for el := res.Files.Front(); el != nil; el = el.Next() {
		newFiles[el.Key] = el.Value
	}

	result.FilesDiscovered = p.store.Merge(newFiles, res.ResolvedCategories)
	if err := p.store.Flush(); err != nil {
		return fmt.Errorf("failed to persist progress index: %w", err)
	}

	log.Infow("Fetch phase complete",
		"resolved_categories", result.CategoriesResolved,
		"missing_categories", len(result.CategoriesMissing),
		"new_files", result.FilesDiscovered,
		"known_files", p.store.Len(),
	)
	return nil
}

func (p *Pipeline) download(ctx context.Context, result *Result) error {
	log := p.logger.WithPhase("download")

	pending := p.store.Pending()
	if len(pending) == 0 {
		log.Info("No pending files in the index")
		return nil
	}

	failLog, err := download.OpenFailureLog(p.cfg.FailureLogPath())
	if err != nil {
		return err
	}
	defer failLog.Close()

	dl := p.cfg.Download
	limiter := download.NewAdaptiveLimiter(0, 0, 0)
	fetcher := download.NewHTTPFetcher(
		time.Duration(dl.TimeoutSeconds)*time.Second,
		dl.MaxRetries,
		dl.UserAgent,
		dl.BaseURL,
		limiter,
		log,
	)

	engine, err := download.NewEngine(fetcher, p.store, failLog, download.Config{
		OutputDir:  dl.OutputDir,
		BaseURL:    dl.BaseURL,
		Workers:    dl.Workers,
		FlushEvery: dl.FlushEvery,
	}, log)
	if err != nil {
		return err
	}

	engineResult, err := engine.Run(ctx, pending)
	result.Downloaded = engineResult.Downloaded
	result.Skipped = engineResult.Skipped
	result.Failed = engineResult.Failed
	return err
}

// openSource picks the relation source: the live replica when the database
// section is enabled, the three dump files otherwise.
func (p *Pipeline) openSource(ctx context.Context) (relation.Source, error) {
	if !p.cfg.Database.Enabled {
		return relation.NewDumpSource(
			p.cfg.LinkTargetPath(),
			p.cfg.CategoryLinksPath(),
			p.cfg.PagePath(),
			p.cfg.Download.AllowedExtensions,
			p.logger,
		), nil
	}

	p.dbManager = database.NewManager(&p.cfg.Database)
	if err := p.dbManager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to replica: %w", err)
	}
	return relation.NewDBSource(
		p.dbManager.Replica,
		p.cfg.Database.TablePrefix,
		p.cfg.Download.AllowedExtensions,
		p.logger,
	)
}

func newResult() *Result {
	return &Result{StartedAt: time.Now()}
}

func finalize(result *Result, success bool) *Result {
	result.Success = success
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	return result
}
