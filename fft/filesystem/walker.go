package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	internal "github.com/BenEdridge/fast-file-tracker/fft"
	"github.com/BenEdridge/fast-file-tracker/fft/filesystem/common"

	"github.com/armon/go-radix"
	"github.com/rs/zerolog"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/pool"
)

// Entry is a walked directory entry with the metadata read for it.
// Mode holds the entry's type bits as observed without following symlinks.
type Entry struct {
	Path string
	Size int64
	Mode fs.FileMode
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Mode.IsDir() }

// ErrorSink receives recoverable per-entry errors. It is only ever called
// from the goroutine running Walk.
type ErrorSink func(path string, err error)

// WalkStats tracks what a walk saw.
type WalkStats struct {
	DirsRead   int64
	Emitted    int64
	Filtered   int64
	Errors     int64
	DurationMs int64
}

// GetMetrics implements common.PerformanceMetrics.
func (s WalkStats) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"dirs_read":   s.DirsRead,
		"emitted":     s.Emitted,
		"filtered":    s.Filtered,
		"errors":      s.Errors,
		"duration_ms": s.DurationMs,
	}
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithWorkers sets how many directories of one level are read concurrently.
func WithWorkers(n int) WalkerOption {
	return func(w *Walker) {
		if n > 0 {
			w.maxWorkers = n
		}
	}
}

// WithExcludes adds gitignore-style patterns matched against root-relative paths.
func WithExcludes(patterns ...string) WalkerOption {
	return func(w *Walker) {
		if len(patterns) > 0 {
			w.excludes = ignore.CompileIgnoreLines(patterns...)
		}
	}
}

// WithLogger sets the walker's logger.
func WithLogger(log zerolog.Logger) WalkerOption {
	return func(w *Walker) { w.log = log }
}

// Walker traverses a tree level by level. Directories of one level are read
// concurrently on a bounded pool; their children are then emitted in a fixed
// order, so an unchanged tree always yields the same sequence.
type Walker struct {
	maxWorkers int
	excludes   *ignore.GitIgnore
	log        zerolog.Logger
}

// dirRef is a directory queued for reading, with its identity key.
type dirRef struct {
	path string
	key  string
}

// dirResult is what reading one directory produced.
type dirResult struct {
	entries  []Entry
	subdirs  []dirRef
	failures []entryFailure
	filtered int64
}

type entryFailure struct {
	path string
	err  error
}

// NewWalker returns a walker with the default worker count and no excludes.
func NewWalker(opts ...WalkerOption) *Walker {
	w := &Walker{
		maxWorkers: internal.DefaultWalkWorkers(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk reads every directory under root and calls emit for each child that
// passes the filter and could be stat'd. The root itself is not emitted.
// Entries that fail are handed to sink and skipped; the walk continues.
// Both callbacks run on the calling goroutine.
//
// A directory reachable under two paths (a bind mount, for instance) is
// emitted under both but only read under the first one met.
func (w *Walker) Walk(ctx context.Context, root string, emit func(Entry), sink ErrorSink) (WalkStats, error) {
	if err := common.ValidateRoot(root); err != nil {
		return WalkStats{}, err
	}
	if sink == nil {
		sink = func(string, error) {}
	}

	rootInfo, err := os.Stat(root)
	if err != nil {
		return WalkStats{}, fmt.Errorf("%w: %s: %w", common.ErrBadRoot, root, err)
	}
	rootRef := dirRef{path: root, key: dirKey(root, rootInfo)}

	visited := radix.New()
	visited.Insert(rootRef.key, root)

	start := time.Now()
	var stats WalkStats
	currentLevel := []dirRef{rootRef}

	for depth := 0; len(currentLevel) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		results := make([]dirResult, len(currentLevel))

		// A fresh pool per level, since a conc pool cannot be reused after Wait.
		levelPool := pool.New().WithMaxGoroutines(w.maxWorkers).WithContext(ctx)
		for i, dir := range currentLevel {
			levelPool.Go(func(ctx context.Context) error {
				results[i] = w.readDir(root, dir.path)
				return nil
			})
		}
		if err := levelPool.Wait(); err != nil {
			return stats, err
		}

		var nextLevel []dirRef
		for _, res := range results {
			stats.DirsRead++
			stats.Filtered += res.filtered
			for _, f := range res.failures {
				stats.Errors++
				w.log.Warn().Str("path", f.path).Err(f.err).Msg("skipping unreadable entry")
				sink(f.path, f.err)
			}
			for _, e := range res.entries {
				stats.Emitted++
				emit(e)
			}
			for _, sub := range res.subdirs {
				// The first path in emit order wins.
				if first, seen := visited.Get(sub.key); seen {
					w.log.Debug().Str("path", sub.path).Str("same_as", first.(string)).Msg("directory already walked")
					continue
				}
				visited.Insert(sub.key, sub.path)
				nextLevel = append(nextLevel, sub)
			}
		}

		w.log.Debug().Int("depth", depth).Int("dirs", len(currentLevel)).Msg("walked level")
		currentLevel = nextLevel
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	w.log.Debug().
		Int64("dirs", stats.DirsRead).
		Int64("emitted", stats.Emitted).
		Int64("filtered", stats.Filtered).
		Int64("errors", stats.Errors).
		Int64("duration_ms", stats.DurationMs).
		Msg("walk completed")

	return stats, nil
}

// readDir lists one directory, filters its children and stats the survivors.
func (w *Walker) readDir(root, dir string) dirResult {
	var res dirResult

	// os.ReadDir returns the entries sorted by name, and whatever it managed
	// to read before an error.
	children, err := os.ReadDir(dir)
	if err != nil {
		res.failures = append(res.failures, entryFailure{
			path: dir,
			err:  fmt.Errorf("%w: read directory %s: %w", common.ErrWalkEntryFailed, dir, err),
		})
	}

	res.entries = make([]Entry, 0, len(children))
	for _, child := range children {
		childPath := filepath.Join(dir, child.Name())

		if !KeepEntry(child) || w.excluded(root, childPath, child.IsDir()) {
			res.filtered++
			continue
		}

		info, err := child.Info()
		if err != nil {
			res.failures = append(res.failures, entryFailure{
				path: childPath,
				err:  fmt.Errorf("%w: stat %s: %w", common.ErrWalkEntryFailed, childPath, err),
			})
			continue
		}
		// The entry may have been swapped for a special file since ReadDir.
		if !Keep(info.Mode().Type()) {
			res.filtered++
			continue
		}

		res.entries = append(res.entries, Entry{
			Path: childPath,
			Size: info.Size(),
			Mode: info.Mode().Type(),
		})
		if info.IsDir() {
			res.subdirs = append(res.subdirs, dirRef{path: childPath, key: dirKey(childPath, info)})
		}
	}

	return res
}

// pathKey identifies a directory by path where the platform exposes no
// device and inode numbers.
func pathKey(path string) string {
	return "p/" + path
}

func (w *Walker) excluded(root, path string, isDir bool) bool {
	if w.excludes == nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		// Patterns ending in "/" only match directories.
		return w.excludes.MatchesPath(rel) || w.excludes.MatchesPath(rel+"/")
	}
	return w.excludes.MatchesPath(rel)
}

var _ common.PerformanceMetrics = WalkStats{}
