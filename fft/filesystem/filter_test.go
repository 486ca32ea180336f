package filesystem

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeep(t *testing.T) {
	tests := []struct {
		name string
		mode fs.FileMode
		want bool
	}{
		{"regular file", 0, true},
		{"regular file with perms", 0o644, true},
		{"directory", fs.ModeDir, true},
		{"directory with perms", fs.ModeDir | 0o755, true},
		{"symlink", fs.ModeSymlink, false},
		{"symlink to directory bits", fs.ModeSymlink | fs.ModeDir, false},
		{"block device", fs.ModeDevice, false},
		{"character device", fs.ModeDevice | fs.ModeCharDevice, false},
		{"named pipe", fs.ModeNamedPipe, false},
		{"socket", fs.ModeSocket, false},
		{"irregular", fs.ModeIrregular, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Keep(tt.mode))
		})
	}
}

type fakeDirEntry struct {
	name string
	typ  fs.FileMode
}

func (f fakeDirEntry) Name() string               { return f.name }
func (f fakeDirEntry) IsDir() bool                { return f.typ.IsDir() }
func (f fakeDirEntry) Type() fs.FileMode          { return f.typ }
func (f fakeDirEntry) Info() (fs.FileInfo, error) { return nil, fs.ErrNotExist }

func TestKeepEntry(t *testing.T) {
	assert.True(t, KeepEntry(fakeDirEntry{name: ".hidden", typ: 0}))
	assert.True(t, KeepEntry(fakeDirEntry{name: ".git", typ: fs.ModeDir}))
	assert.False(t, KeepEntry(fakeDirEntry{name: "link", typ: fs.ModeSymlink}))
	assert.False(t, KeepEntry(fakeDirEntry{name: "pipe", typ: fs.ModeNamedPipe}))
}
