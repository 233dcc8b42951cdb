package download

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/logger"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/progress"
	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/wiki"
)

// Config controls an Engine run.
type Config struct {
	OutputDir  string
	BaseURL    string
	Workers    int
	FlushEvery int // successful downloads between index flushes
}

// Result summarizes one engine run.
type Result struct {
	Downloaded int
	Skipped    int // already present on disk
	Failed     int
	Duration   time.Duration
}

// outcome is one worker's report for a single file.
type outcome struct {
	title  string
	status progress.FileStatus
	reason string // failure log reason, empty on success
}

// Engine drives the bounded worker pool over pending files. Workers share
// no mutable state: they fetch and write files, then report outcomes over a
// channel to a single collector goroutine that owns all index mutations.
type Engine struct {
	fetcher Fetcher
	store   *progress.Store
	failLog *FailureLog
	cfg     Config
	logger  *logger.Logger
}

// NewEngine creates a download engine.
func NewEngine(fetcher Fetcher, store *progress.Store, failLog *FailureLog, cfg Config, log *logger.Logger) (*Engine, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is nil")
	}
	if store == nil {
		return nil, errors.New("progress store is nil")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 25
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Engine{
		fetcher: fetcher,
		store:   store,
		failLog: failLog,
		cfg:     cfg,
		logger:  log,
	}, nil
}

// Run fetches every pending file. A failure for one file never aborts
// sibling work; cancellation drains the queue and flushes what completed.
func (e *Engine) Run(ctx context.Context, pending []progress.PendingFile) (Result, error) {
	start := time.Now()
	result := Result{}

	if len(pending) == 0 {
		e.logger.Info("No pending files to download")
		result.Duration = time.Since(start)
		return result, nil
	}

	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return result, err
	}

	e.logger.Infow("Starting download",
		"pending", len(pending),
		"workers", e.cfg.Workers,
		"output_dir", e.cfg.OutputDir,
	)

	jobs := make(chan progress.PendingFile)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx, jobs, outcomes)
		}()
	}

	go func() {
		defer close(jobs)
		for _, pf := range pending {
			select {
			case jobs <- pf:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Single-writer collection loop: every index mutation happens here.
	sinceFlush := 0
	for out := range outcomes {
		e.store.MarkStatus(out.title, out.status)

		switch out.status {
		case progress.StatusDownloaded:
			if out.reason == "exists" {
				result.Skipped++
			} else {
				result.Downloaded++
			}
			sinceFlush++
			if sinceFlush >= e.cfg.FlushEvery {
				if err := e.store.Flush(); err != nil {
					e.logger.Errorw("Failed to flush progress index", "error", err)
				}
				sinceFlush = 0
			}
		case progress.StatusInvalid:
			result.Failed++
			if e.failLog != nil {
				if err := e.failLog.Record(out.title, out.reason); err != nil {
					e.logger.Errorw("Failed to record failure", "title", out.title, "error", err)
				}
			}
		}
	}

	if err := e.store.Flush(); err != nil {
		e.logger.Errorw("Failed to flush progress index", "error", err)
	}

	result.Duration = time.Since(start)
	e.logger.Infow("Download complete",
		"downloaded", result.Downloaded,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration,
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) worker(ctx context.Context, jobs <-chan progress.PendingFile, outcomes chan<- outcome) {
	for pf := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		outcomes <- e.fetchOne(ctx, pf)
	}
}

// fetchOne downloads a single file. Disk state is authoritative: a file
// already present is treated as downloaded even if the index disagrees.
func (e *Engine) fetchOne(ctx context.Context, pf progress.PendingFile) outcome {
	outPath := filepath.Join(e.cfg.OutputDir, wiki.SafeFilename(pf.Title))

	if _, err := os.Stat(outPath); err == nil {
		e.logger.Debugw("File already on disk, skipping", "title", pf.Title)
		return outcome{title: pf.Title, status: progress.StatusDownloaded, reason: "exists"}
	}

	url := wiki.FilePathURL(e.cfg.BaseURL, pf.Title)
	body, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		reason := "transport"
		var ferr *FetchError
		if errors.As(err, &ferr) {
			reason = ferr.Kind.String()
		}
		e.logger.Warnw("Fetch failed", "title", pf.Title, "reason", reason, "error", err)
		return outcome{title: pf.Title, status: progress.StatusInvalid, reason: reason}
	}
	defer body.Close()

	if err := writeFile(outPath, body); err != nil {
		e.logger.Warnw("Failed to write file", "title", pf.Title, "error", err)
		return outcome{title: pf.Title, status: progress.StatusInvalid, reason: "write_failed"}
	}

	e.logger.Debugw("Downloaded", "title", pf.Title)
	return outcome{title: pf.Title, status: progress.StatusDownloaded}
}

// writeFile streams body to a temp file and renames it into place, so a
// partially written file never passes the on-disk existence check.
func writeFile(path string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cwbd-*.part")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
