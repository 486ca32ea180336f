package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/BenEdridge/fast-file-tracker/fft/filesystem/common"

	"github.com/google/uuid"
)

// Counters are owned by the driver goroutine; workers never touch them.
type Counters struct {
	// Files is the number of rows written to entries.
	Files int64
	// Skipped counts directories and zero-byte regular files.
	Skipped int64
	// Filtered counts special files, symlinks and excluded entries.
	Filtered int64
	// TotalBytes is the summed size of every file that got a row.
	TotalBytes uint64

	WalkErrors int64
	HashErrors int64
}

// Timings holds the wall time of each phase.
type Timings struct {
	Walk     time.Duration
	Hash     time.Duration
	Insert   time.Duration
	Snapshot time.Duration
	Total    time.Duration
}

// Result describes a finished or failed run.
type Result struct {
	RunID  uuid.UUID
	Root   string
	Output string
	Phase  Phase
	// FailedIn is the phase that failed; only set when Phase is PhaseFailed.
	FailedIn Phase
	// HashFailures lists files skipped under the skip policy.
	HashFailures []string

	Counters
	Timings
}

// MegabytesPerSecond is hashed MiB over the total run time.
func (r *Result) MegabytesPerSecond() float64 {
	return common.MegabytesPerSecond(r.TotalBytes, r.Total)
}

// GetMetrics implements common.PerformanceMetrics.
func (r *Result) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"run_id":      r.RunID.String(),
		"phase":       r.Phase.String(),
		"files":       r.Files,
		"skipped":     r.Skipped,
		"filtered":    r.Filtered,
		"total_bytes": r.TotalBytes,
		"walk_errors": r.WalkErrors,
		"hash_errors": r.HashErrors,
		"walk_ms":     r.Walk.Milliseconds(),
		"hash_ms":     r.Hash.Milliseconds(),
		"insert_ms":   r.Insert.Milliseconds(),
		"snapshot_ms": r.Snapshot.Milliseconds(),
		"total_ms":    r.Total.Milliseconds(),
	}
}

// WriteReport prints the run summary and the per-phase timing table.
func (r *Result) WriteReport(w io.Writer) error {
	const rule = "----------------------------------------"
	mb := r.TotalBytes / 1024 / 1024

	lines := []string{
		fmt.Sprintf("Hashed %d Mb @ %.2f Mb/s (%d files, %d skipped) in %s",
			mb, r.MegabytesPerSecond(), r.Files, r.Skipped, common.FormatDuration(r.Total)),
		"",
		"Statistics:",
		rule,
		row("Directory Traversal", r.Walk),
		row("Hashing", r.Hash),
		row("Database Insert (memory)", r.Insert),
		row("Database Copy (Disk)", r.Snapshot),
		rule,
		row("Total Time", r.Total),
	}
	if r.Filtered > 0 || r.WalkErrors > 0 || r.HashErrors > 0 {
		lines = append(lines, fmt.Sprintf("%-25s | %d filtered, %d walk errors, %d hash errors",
			"Excluded", r.Filtered, r.WalkErrors, r.HashErrors))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func row(label string, d time.Duration) string {
	return fmt.Sprintf("%-25s | %-25s", label, common.FormatDuration(d))
}

var _ common.PerformanceMetrics = (*Result)(nil)
