package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BenEdridge/fast-file-tracker/fft/filesystem/common"

	"github.com/google/uuid"
)

// Snapshot copies the whole store to dest as a standalone SQLite file.
//
// VACUUM INTO refuses to write over an existing file, so the copy is made to
// a temporary name in dest's directory and renamed over dest. An existing
// snapshot is therefore replaced whole, and is left untouched on failure.
func (s *MemoryStore) Snapshot(ctx context.Context, dest string) error {
	if err := common.ValidateOutput(dest); err != nil {
		return err
	}

	dir := filepath.Dir(dest)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(dest), uuid.NewString()))

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoteLiteral(tmp))); err != nil {
		os.Remove(tmp)
		return common.WrapError(common.ErrSnapshotFailed, err, "copy store to %s", tmp)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return common.WrapError(common.ErrSnapshotFailed, err, "move snapshot to %s", dest)
	}

	s.log.Debug().Str("path", dest).Msg("snapshot written")
	return nil
}

// quoteLiteral escapes s for use inside a single-quoted SQL string.
func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
