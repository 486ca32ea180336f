package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BenEdridge/fast-file-tracker/fft/config"
	"github.com/BenEdridge/fast-file-tracker/fft/db"
	"github.com/BenEdridge/fast-file-tracker/fft/filesystem"
	"github.com/BenEdridge/fast-file-tracker/fft/filesystem/common"
	"github.com/BenEdridge/fast-file-tracker/fft/staging"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Phase metric names.
const (
	metricWalk     = "walk"
	metricHash     = "hash"
	metricInsert   = "insert"
	metricSnapshot = "snapshot"
)

// pathEntry is one PathBuffer slot.
type pathEntry struct {
	path string
	size int64
}

// Driver runs the walk, hash, insert and snapshot phases strictly in order.
// A Driver runs one pipeline at a time.
type Driver struct {
	cfg     config.TrackerConfig
	log     zerolog.Logger
	hasher  *filesystem.Hasher
	onPhase func(Phase)

	mu sync.Mutex
}

// NewDriver validates cfg and returns a driver for it.
func NewDriver(cfg config.TrackerConfig, log zerolog.Logger) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		cfg:    cfg,
		log:    log,
		hasher: filesystem.NewHasher(cfg.ReadBufferSize),
	}, nil
}

// OnPhase registers fn to be called on every phase transition, including
// the move to PhaseFailed. fn runs on the goroutine calling Run.
func (d *Driver) OnPhase(fn func(Phase)) {
	d.onPhase = fn
}

// Run fingerprints every regular, non-empty file under root and writes the
// resulting entries table to output. The returned Result is never nil; on
// failure its Phase is PhaseFailed and FailedIn names the phase at fault.
func (d *Driver) Run(ctx context.Context, root, output string) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := &Result{
		RunID:  uuid.New(),
		Root:   root,
		Output: output,
		Phase:  PhaseInit,
	}
	startedAt := time.Now()
	metrics := common.NewPhaseMetrics()
	log := d.log.With().Str("run_id", res.RunID.String()).Logger()

	defer func() {
		metrics.End()
		res.Walk = metrics.Duration(metricWalk)
		res.Hash = metrics.Duration(metricHash)
		res.Insert = metrics.Duration(metricInsert)
		res.Snapshot = metrics.Duration(metricSnapshot)
		res.Total = metrics.Elapsed()
	}()

	fail := func(err error) (*Result, error) {
		res.FailedIn = res.Phase
		d.transition(log, res, PhaseFailed)
		log.Error().Err(err).Str("phase", res.FailedIn.String()).Msg("run failed")
		return res, err
	}

	d.notify(PhaseInit)

	if err := common.ValidateRoot(root); err != nil {
		return fail(err)
	}
	if err := common.ValidateOutput(output); err != nil {
		return fail(err)
	}

	store, err := db.OpenMemoryStore(ctx, d.cfg.Database, log)
	if err != nil {
		return fail(common.WrapError(common.ErrStoreInsertFailed, err, "open %s store", d.cfg.Database.Type))
	}
	defer store.Close()

	d.transition(log, res, PhaseWalking)
	metrics.Begin(metricWalk)
	paths, err := d.walk(ctx, root, log, res)
	if err != nil {
		return fail(err)
	}

	d.transition(log, res, PhaseHashing)
	metrics.Begin(metricHash)
	stager := staging.NewStager(len(paths))
	if err := d.hash(ctx, paths, stager, log, res); err != nil {
		return fail(err)
	}

	d.transition(log, res, PhaseInserting)
	metrics.Begin(metricInsert)
	staged := int64(stager.Len())
	inserted, err := store.InsertEntries(ctx, stager)
	if err != nil {
		return fail(err)
	}
	if inserted != staged {
		return fail(fmt.Errorf("%w: inserted %d of %d staged rows", common.ErrStoreInsertFailed, inserted, staged))
	}
	// files must equal the row count of entries.
	rows, err := store.CountEntries(ctx)
	if err != nil {
		return fail(common.WrapError(common.ErrStoreInsertFailed, err, "count entries"))
	}
	if rows != res.Files {
		return fail(fmt.Errorf("%w: entries holds %d rows for %d files", common.ErrStoreInsertFailed, rows, res.Files))
	}
	err = store.RecordRun(ctx, db.RunRecord{
		ID:         res.RunID,
		Root:       root,
		Files:      res.Files,
		Skipped:    res.Skipped,
		TotalBytes: res.TotalBytes,
		StartedAt:  startedAt,
	})
	if err != nil {
		return fail(err)
	}

	d.transition(log, res, PhaseSnapshotting)
	metrics.Begin(metricSnapshot)
	if err := store.Snapshot(ctx, output); err != nil {
		return fail(err)
	}
	metrics.End()

	d.transition(log, res, PhaseDone)
	log.Info().
		Int64("files", res.Files).
		Int64("skipped", res.Skipped).
		Int64("filtered", res.Filtered).
		Uint64("total_bytes", res.TotalBytes).
		Int64("walk_errors", res.WalkErrors).
		Int64("hash_errors", res.HashErrors).
		Str("output", output).
		Msg("run completed")

	return res, nil
}

// walk fills the PathBuffer and classifies every emitted entry.
func (d *Driver) walk(ctx context.Context, root string, log zerolog.Logger, res *Result) ([]pathEntry, error) {
	paths := make([]pathEntry, 0, d.cfg.PathCapacity)

	walker := filesystem.NewWalker(
		filesystem.WithWorkers(d.cfg.WalkWorkers),
		filesystem.WithExcludes(d.cfg.Excludes...),
		filesystem.WithLogger(log),
	)

	stats, err := walker.Walk(ctx, root,
		func(e filesystem.Entry) {
			if e.IsDir() || e.Size == 0 {
				res.Skipped++
				return
			}
			paths = append(paths, pathEntry{path: e.Path, size: e.Size})
			res.Files++
			res.TotalBytes += uint64(e.Size)
		},
		func(string, error) {
			res.WalkErrors++
		},
	)
	res.Filtered = stats.Filtered
	if err != nil {
		return nil, err
	}

	log.Debug().Int("paths", len(paths)).Int64("dirs", stats.DirsRead).Msg("paths collected")
	return paths, nil
}

// hash fingerprints every path on a bounded pool and stages the rows. Under
// the skip policy failed files are removed from the counters once all
// workers have joined; under abort the first failure cancels the rest.
func (d *Driver) hash(ctx context.Context, paths []pathEntry, stager *staging.Stager, log zerolog.Logger, res *Result) error {
	abort := d.cfg.HashErrorPolicy == config.HashPolicyAbort

	var failedMu sync.Mutex
	failed := roaring.New()

	p := pool.New().WithMaxGoroutines(d.cfg.Workers).WithContext(ctx)
	if abort {
		p = p.WithCancelOnError().WithFirstError()
	}

	for i := range paths {
		idx := uint32(i)
		path := paths[i].path
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fp, err := d.hasher.HashFile(path)
			if err != nil {
				if abort {
					return err
				}
				log.Warn().Str("path", path).Err(err).Msg("skipping unhashable file")
				failedMu.Lock()
				failed.Add(idx)
				failedMu.Unlock()
				return nil
			}
			stager.Stage(fp, path)
			return nil
		})
	}

	// Wait joins every worker, so all Stage calls happen before the drain.
	if err := p.Wait(); err != nil {
		return err
	}

	if failed.IsEmpty() {
		return nil
	}
	it := failed.Iterator()
	for it.HasNext() {
		pe := paths[it.Next()]
		res.Files--
		res.TotalBytes -= uint64(pe.size)
		res.HashErrors++
		res.HashFailures = append(res.HashFailures, pe.path)
	}
	return nil
}

func (d *Driver) transition(log zerolog.Logger, res *Result, to Phase) {
	from := res.Phase
	if to != PhaseFailed && to != from.next() {
		// Phases never skip; a mismatch is a driver bug.
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", from, to))
	}
	res.Phase = to
	log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("phase transition")
	d.notify(to)
}

func (d *Driver) notify(p Phase) {
	if d.onPhase != nil {
		d.onPhase(p)
	}
}
