// Package pipeline runs the normalization stages in dependency order and
// records one StageResult per stage.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/receipt-normalizer/internal/datanorm"
	"github.com/ignite/receipt-normalizer/internal/pkg/distlock"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
	"github.com/ignite/receipt-normalizer/internal/quality"
	"github.com/ignite/receipt-normalizer/internal/reports"
	"github.com/ignite/receipt-normalizer/internal/source"
	"github.com/ignite/receipt-normalizer/internal/storage"
	"github.com/ignite/receipt-normalizer/internal/store"
)

// ErrRunInProgress is returned when Run is called while this runner is busy.
var ErrRunInProgress = errors.New("pipeline: a run is already in progress")

// Stage names, in execution order.
const (
	StageExtract       = "extract"
	StageCleanUsers    = "clean_users"
	StageCleanBrands   = "clean_brands"
	StageCleanReceipts = "clean_receipts"
	StageExtractItems  = "extract_items"
	StageLoad          = "load"
	StageCheck         = "check"
	StageReport        = "report"
)

var stageOrder = []string{
	StageExtract, StageCleanUsers, StageCleanBrands, StageCleanReceipts,
	StageExtractItems, StageLoad, StageCheck, StageReport,
}

type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StageError is the fatal failure of one stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// StageResult describes one executed (or skipped) stage.
type StageResult struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Rows       int    `json:"rows"`
	Error      string `json:"error,omitempty"`
}

// RunSummary is the outcome of one Run.
type RunSummary struct {
	RunID      string           `json:"run_id"`
	Status     string           `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	DurationMS int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
	Stages     []StageResult    `json:"stages"`
	RowCounts  map[string]int   `json:"row_counts,omitempty"`
	Checks     []quality.Result `json:"checks,omitempty"`
	Reports    []reports.Report `json:"reports,omitempty"`

	// Data holds the cleaned tables of the run; it is not serialized.
	Data *datanorm.Tables `json:"-"`
}

// Source yields the raw records of every entity.
type Source interface {
	ReadAll(ctx context.Context) (*source.Raw, error)
}

// Store replaces the relational tables and exposes them for querying.
type Store interface {
	ReplaceTables(ctx context.Context, t *datanorm.Tables) (map[string]int, error)
	DB() *sql.DB
	Dialect() store.Dialect
}

// extender is implemented by locks whose lease can be renewed between stages.
type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// Options tune a Runner.
type Options struct {
	Normalizer datanorm.Config
	LockTTL    time.Duration
	// ArchivePrefix is the key prefix summaries are written under.
	ArchivePrefix string
	SkipReports   bool
}

// Runner executes pipeline runs. A nil store makes a dry run: nothing is
// loaded, checks run in memory and no reports are produced.
type Runner struct {
	src     Source
	store   Store
	lock    distlock.DistLock
	archive storage.ObjectStore
	opts    Options
	norm    *datanorm.Normalizer

	running atomic.Bool
	mu      sync.RWMutex
	latest  *RunSummary
}

func NewRunner(src Source, st Store, opts Options) *Runner {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	if opts.ArchivePrefix == "" {
		opts.ArchivePrefix = "runs"
	}
	return &Runner{
		src:   src,
		store: st,
		opts:  opts,
		norm:  datanorm.NewNormalizer(opts.Normalizer),
	}
}

// WithLock guards table replacement with l.
func (r *Runner) WithLock(l distlock.DistLock) *Runner {
	r.lock = l
	return r
}

// WithArchive writes every summary as JSON to archive.
func (r *Runner) WithArchive(archive storage.ObjectStore) *Runner {
	r.archive = archive
	return r
}

// Running reports whether a run is in progress in this process.
func (r *Runner) Running() bool { return r.running.Load() }

// Latest returns the most recent finished run, or nil.
func (r *Runner) Latest() *RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Store returns the configured store, or nil on a dry run.
func (r *Runner) Store() Store { return r.store }

// Run executes every stage once. A stage failure stops the run and is
// returned as a *StageError; the summary is returned in both cases.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)
	return r.run(ctx)
}

// Start launches a run in the background and returns once it is claimed.
// The outcome is available from Latest when the run finishes.
func (r *Runner) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	go func() {
		defer r.running.Store(false)
		if _, err := r.run(ctx); err != nil {
			logger.Error("pipeline: background run", "error", err.Error())
		}
	}()
	return nil
}

func (r *Runner) run(ctx context.Context) (*RunSummary, error) {
	if r.lock != nil {
		ok, err := r.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return nil, distlock.ErrLocked
		}
		defer func() {
			// The run context may already be cancelled.
			if err := r.lock.Release(context.Background()); err != nil {
				logger.Warn("pipeline: release run lock", "error", err.Error())
			}
		}()
	}

	run := &execution{
		runner: r,
		summary: &RunSummary{
			RunID:     uuid.NewString(),
			StartedAt: time.Now().UTC(),
			Data:      &datanorm.Tables{},
		},
	}
	logger.Info("pipeline: run started", "run_id", run.summary.RunID)

	err := run.execute(ctx)

	s := run.summary
	s.FinishedAt = time.Now().UTC()
	s.DurationMS = s.FinishedAt.Sub(s.StartedAt).Milliseconds()
	s.Status = "succeeded"
	if err != nil {
		s.Status = "failed"
		s.Error = err.Error()
		logger.Error("pipeline: run failed", "run_id", s.RunID, "error", err.Error())
	} else {
		logger.Info("pipeline: run finished", "run_id", s.RunID,
			"duration_ms", s.DurationMS, "issues", quality.Total(s.Checks))
	}

	r.archiveSummary(ctx, s)

	r.mu.Lock()
	r.latest = s
	r.mu.Unlock()
	return s, err
}

func (r *Runner) archiveSummary(ctx context.Context, s *RunSummary) {
	if r.archive == nil {
		return
	}
	key := path.Join(r.opts.ArchivePrefix, s.StartedAt.Format("2006/01/02"), s.RunID+".json")
	if err := r.archive.PutJSON(ctx, key, s); err != nil {
		logger.Warn("pipeline: archive summary", "key", key, "error", err.Error())
		return
	}
	logger.Info("pipeline: summary archived", "key", key)
}

// =============================================================================
// EXECUTION
// =============================================================================

type execution struct {
	runner  *Runner
	summary *RunSummary
	raw     *source.Raw
}

func (e *execution) execute(ctx context.Context) error {
	steps := map[string]func(context.Context) (int, error){
		StageExtract:       e.extract,
		StageCleanUsers:    e.cleanUsers,
		StageCleanBrands:   e.cleanBrands,
		StageCleanReceipts: e.cleanReceipts,
		StageExtractItems:  e.extractItems,
		StageLoad:          e.load,
		StageCheck:         e.check,
		StageReport:        e.report,
	}

	var failed error
	for _, name := range stageOrder {
		if failed != nil {
			e.summary.Stages = append(e.summary.Stages, StageResult{Name: name, Status: StatusSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			failed = &StageError{Stage: name, Err: err}
			e.summary.Stages = append(e.summary.Stages, StageResult{Name: name, Status: StatusFailed, Error: err.Error()})
			continue
		}
		if e.skip(name) {
			e.summary.Stages = append(e.summary.Stages, StageResult{Name: name, Status: StatusSkipped})
			continue
		}

		start := time.Now()
		rows, err := steps[name](ctx)
		res := StageResult{Name: name, Status: StatusOK, DurationMS: time.Since(start).Milliseconds(), Rows: rows}
		if err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
			failed = &StageError{Stage: name, Err: err}
		}
		e.summary.Stages = append(e.summary.Stages, res)
		logger.Debug("pipeline: stage done", "stage", name, "status", string(res.Status), "rows", rows, "duration_ms", res.DurationMS)

		e.extendLock(ctx)
	}
	return failed
}

func (e *execution) skip(name string) bool {
	r := e.runner
	switch name {
	case StageLoad:
		return r.store == nil
	case StageReport:
		return r.store == nil || r.opts.SkipReports
	}
	return false
}

func (e *execution) extendLock(ctx context.Context) {
	ext, ok := e.runner.lock.(extender)
	if !ok {
		return
	}
	if err := ext.Extend(ctx, e.runner.opts.LockTTL); err != nil {
		logger.Warn("pipeline: extend run lock", "error", err.Error())
	}
}

func (e *execution) extract(ctx context.Context) (int, error) {
	raw, err := e.runner.src.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	e.raw = raw
	return len(raw.Users) + len(raw.Brands) + len(raw.Receipts), nil
}

func (e *execution) cleanUsers(context.Context) (int, error) {
	e.summary.Data.Users = e.runner.norm.CleanUsers(e.raw.Users)
	return len(e.summary.Data.Users), nil
}

func (e *execution) cleanBrands(context.Context) (int, error) {
	e.summary.Data.Brands = e.runner.norm.CleanBrands(e.raw.Brands)
	return len(e.summary.Data.Brands), nil
}

func (e *execution) cleanReceipts(context.Context) (int, error) {
	e.summary.Data.Receipts = e.runner.norm.CleanReceipts(e.raw.Receipts)
	return len(e.summary.Data.Receipts), nil
}

func (e *execution) extractItems(context.Context) (int, error) {
	items, err := e.runner.norm.ExtractItems(e.summary.Data.Receipts, e.summary.Data.Brands)
	if err != nil {
		return 0, err
	}
	e.summary.Data.Items = items
	return len(items), nil
}

func (e *execution) load(ctx context.Context) (int, error) {
	counts, err := e.runner.store.ReplaceTables(ctx, e.summary.Data)
	if err != nil {
		return 0, err
	}
	e.summary.RowCounts = counts
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (e *execution) check(ctx context.Context) (int, error) {
	if e.runner.store == nil {
		e.summary.Checks = quality.Run(e.summary.Data)
	} else {
		e.summary.Checks = quality.RunSQL(ctx, e.runner.store.DB())
	}
	for _, c := range e.summary.Checks {
		if c.Count > 0 {
			logger.Warn("pipeline: integrity issue", "table", c.Table, "issue", c.Issue, "count", c.Count)
		}
	}
	return int(quality.Total(e.summary.Checks)), nil
}

func (e *execution) report(ctx context.Context) (int, error) {
	st := e.runner.store
	e.summary.Reports = reports.Run(ctx, st.DB(), st.Dialect())
	return len(e.summary.Reports), nil
}

// =============================================================================
// SUMMARY RENDERING
// =============================================================================

// Bindings flattens s into the variables the summary template reads.
func (s *RunSummary) Bindings() map[string]any {
	stages := make([]map[string]any, 0, len(s.Stages))
	for _, st := range s.Stages {
		stages = append(stages, map[string]any{
			"name": st.Name, "status": string(st.Status), "duration_ms": st.DurationMS,
			"rows": st.Rows, "error": st.Error,
		})
	}
	tables := make([]map[string]any, 0, len(s.RowCounts))
	for _, name := range []string{datanorm.TableUsers, datanorm.TableBrands, datanorm.TableReceipts, datanorm.TableReceiptItems} {
		if n, ok := s.RowCounts[name]; ok {
			tables = append(tables, map[string]any{"name": name, "rows": n})
		}
	}
	checks := make([]map[string]any, 0, len(s.Checks))
	for _, c := range s.Checks {
		checks = append(checks, map[string]any{
			"table": c.Table, "issue": c.Issue, "count": c.Count, "error": c.Error,
		})
	}
	return map[string]any{
		"run_id":      s.RunID,
		"status":      s.Status,
		"started_at":  s.StartedAt.Format(time.RFC3339),
		"duration_ms": s.DurationMS,
		"error":       s.Error,
		"stages":      stages,
		"tables":      tables,
		"checks":      checks,
		"issues":      quality.Total(s.Checks),
	}
}
