package pipeline

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "init", PhaseInit.String())
	assert.Equal(t, "snapshotting", PhaseSnapshotting.String())
	assert.Equal(t, "failed", PhaseFailed.String())
	assert.Equal(t, "unknown", Phase(42).String())
	assert.Equal(t, PhaseHashing, PhaseWalking.next())
	assert.Equal(t, PhaseDone, PhaseDone.next())
}

func TestResult_WriteReport(t *testing.T) {
	res := &Result{
		Counters: Counters{Files: 3, Skipped: 2, TotalBytes: 10 * 1024 * 1024},
		Timings: Timings{
			Walk:     15 * time.Millisecond,
			Hash:     1500 * time.Millisecond,
			Insert:   200 * time.Millisecond,
			Snapshot: 40 * time.Millisecond,
			Total:    2 * time.Second,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, res.WriteReport(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Hashed 10 Mb @ 5.00 Mb/s (3 files, 2 skipped) in 2.00s\n"))
	for _, label := range []string{"Directory Traversal", "Hashing", "Database Insert (memory)", "Database Copy (Disk)", "Total Time"} {
		assert.Contains(t, out, label)
	}
	assert.NotContains(t, out, "Excluded")

	res.HashErrors = 1
	buf.Reset()
	require.NoError(t, res.WriteReport(&buf))
	assert.Contains(t, buf.String(), "0 filtered, 0 walk errors, 1 hash errors")
}

func TestResult_MegabytesPerSecond(t *testing.T) {
	assert.Zero(t, (&Result{}).MegabytesPerSecond())

	res := &Result{Counters: Counters{TotalBytes: 4 * 1024 * 1024}, Timings: Timings{Total: 2 * time.Second}}
	assert.InDelta(t, 2.0, res.MegabytesPerSecond(), 1e-9)
	assert.Equal(t, int64(2000), res.GetMetrics()["total_ms"])
}
