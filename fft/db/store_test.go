package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BenEdridge/fast-file-tracker/fft/config"
	"github.com/BenEdridge/fast-file-tracker/fft/filesystem/common"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource is a RowSource over fixed rows.
type sliceSource [][2]string

func (s sliceSource) Drain(fn func(fingerprint, path string) error) error {
	for _, r := range s {
		if err := fn(r[0], r[1]); err != nil {
			return err
		}
	}
	return nil
}

type failingSource struct{ err error }

func (f failingSource) Drain(fn func(fingerprint, path string) error) error {
	if err := fn("0000000000000001", "/ok"); err != nil {
		return err
	}
	return f.err
}

func openTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := OpenMemoryStore(context.Background(), config.Default().Database, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// readSnapshot returns the entries rows of an on-disk snapshot.
func readSnapshot(t *testing.T, path string) [][2]string {
	t.Helper()
	conn, err := sql.Open("libsql", "file:"+path)
	require.NoError(t, err)
	defer conn.Close()

	rows, err := conn.Query("SELECT xxhash64, file_path FROM entries")
	require.NoError(t, err)
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var r [2]string
		require.NoError(t, rows.Scan(&r[0], &r[1]))
		out = append(out, r)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestMemoryStore_InsertEntries(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	src := sliceSource{
		{"ef46db3751d8e999", "/root/a"},
		{"44bc2cf5ad770999", "/root/b"},
		{"44bc2cf5ad770999", "/root/b"},
	}
	n, err := store.InsertEntries(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	count, err := store.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMemoryStore_PathsAreStoredVerbatim(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	tricky := []string{
		`/root/it's "quoted"`,
		"/root/semi;colon); DROP TABLE entries;--",
		"/root/ünïcödé",
	}
	var src sliceSource
	for _, p := range tricky {
		src = append(src, [2]string{"0000000000000000", p})
	}
	_, err := store.InsertEntries(ctx, src)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out.sqlite3")
	require.NoError(t, store.Snapshot(ctx, dest))

	var got []string
	for _, r := range readSnapshot(t, dest) {
		got = append(got, r[1])
	}
	assert.Equal(t, tricky, got)
}

func TestMemoryStore_NonUTF8PathsKeepTheirBytes(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	latin1 := "/root/caf\xe9\xff"
	_, err := store.InsertEntries(ctx, sliceSource{
		{"0000000000000001", latin1},
		{"0000000000000002", "/root/café"},
	})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out.sqlite3")
	require.NoError(t, store.Snapshot(ctx, dest))

	conn, err := sql.Open("libsql", "file:"+dest)
	require.NoError(t, err)
	defer conn.Close()

	rows, err := conn.Query("SELECT CAST(file_path AS BLOB), typeof(file_path) FROM entries ORDER BY xxhash64")
	require.NoError(t, err)
	defer rows.Close()

	var raw [][]byte
	var types []string
	for rows.Next() {
		var b []byte
		var typ string
		require.NoError(t, rows.Scan(&b, &typ))
		raw = append(raw, b)
		types = append(types, typ)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, [][]byte{[]byte(latin1), []byte("/root/café")}, raw)
	assert.Equal(t, []string{"blob", "text"}, types)
}

func TestPathValue(t *testing.T) {
	assert.Equal(t, "/a/b", pathValue("/a/b"))
	assert.Equal(t, []byte("/a/\xff"), pathValue("/a/\xff"))
}

func TestMemoryStore_InsertRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	boom := errors.New("boom")
	_, err := store.InsertEntries(ctx, failingSource{err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	count, err := store.CountEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStore_Snapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dest := filepath.Join(dir, "fast_file_tracker.sqlite3")

	t.Run("writes entries and run metadata", func(t *testing.T) {
		store := openTestStore(t)
		_, err := store.InsertEntries(ctx, sliceSource{{"ef46db3751d8e999", "/r/a"}})
		require.NoError(t, err)

		runID := uuid.New()
		require.NoError(t, store.RecordRun(ctx, RunRecord{
			ID:         runID,
			Root:       "/r",
			Files:      1,
			Skipped:    2,
			TotalBytes: 6,
			StartedAt:  time.Now(),
		}))
		require.NoError(t, store.Snapshot(ctx, dest))

		assert.Equal(t, [][2]string{{"ef46db3751d8e999", "/r/a"}}, readSnapshot(t, dest))

		conn, err := sql.Open("libsql", "file:"+dest)
		require.NoError(t, err)
		defer conn.Close()
		var gotID string
		var files, skipped, total int64
		require.NoError(t, conn.QueryRow("SELECT run_id, files, skipped, total_bytes FROM runs").
			Scan(&gotID, &files, &skipped, &total))
		assert.Equal(t, runID.String(), gotID)
		assert.Equal(t, []int64{1, 2, 6}, []int64{files, skipped, total})

		var indexes int
		require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type IN ('index', 'trigger', 'view')").Scan(&indexes))
		assert.Zero(t, indexes)
	})

	t.Run("overwrites an existing snapshot", func(t *testing.T) {
		store := openTestStore(t)
		_, err := store.InsertEntries(ctx, sliceSource{{"44bc2cf5ad770999", "/r/new"}})
		require.NoError(t, err)
		require.NoError(t, store.Snapshot(ctx, dest))

		assert.Equal(t, [][2]string{{"44bc2cf5ad770999", "/r/new"}}, readSnapshot(t, dest))
	})

	t.Run("overwrites a file that is not a database", func(t *testing.T) {
		junk := filepath.Join(dir, "junk.sqlite3")
		require.NoError(t, os.WriteFile(junk, []byte("not a database"), 0o644))

		store := openTestStore(t)
		require.NoError(t, store.Snapshot(ctx, junk))
		assert.Empty(t, readSnapshot(t, junk))
	})

	t.Run("leaves no temporary files behind", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp")
		}
	})

	t.Run("missing directory fails", func(t *testing.T) {
		store := openTestStore(t)
		err := store.Snapshot(ctx, filepath.Join(dir, "no", "such", "dir", "out.sqlite3"))
		assert.ErrorIs(t, err, common.ErrSnapshotFailed)
	})

	t.Run("directory destination fails", func(t *testing.T) {
		store := openTestStore(t)
		err := store.Snapshot(ctx, dir)
		assert.ErrorIs(t, err, common.ErrSnapshotFailed)
	})
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "it''s", quoteLiteral("it's"))
	assert.Equal(t, "plain", quoteLiteral("plain"))
}
