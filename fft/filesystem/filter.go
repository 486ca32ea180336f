package filesystem

import "io/fs"

// specialModes are the type bits of entries that are never walked or hashed.
const specialModes = fs.ModeSymlink | fs.ModeDevice | fs.ModeCharDevice |
	fs.ModeNamedPipe | fs.ModeSocket | fs.ModeIrregular

// Keep reports whether an entry with the given type bits is eligible for the
// walk: regular files and directories pass, every special file and every
// symlink is dropped. Symlinks are never followed.
func Keep(mode fs.FileMode) bool {
	if mode&specialModes != 0 {
		return false
	}
	return mode.IsDir() || mode.IsRegular()
}

// KeepEntry applies Keep to a directory entry without stat'ing it.
func KeepEntry(d fs.DirEntry) bool {
	return Keep(d.Type())
}
