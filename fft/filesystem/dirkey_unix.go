//go:build unix

package filesystem

import (
	"io/fs"
	"strconv"
	"syscall"
)

// dirKey identifies a directory by device and inode, so the same directory
// mounted at two paths yields one key.
func dirKey(path string, info fs.FileInfo) string {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return pathKey(path)
	}
	return "i/" + strconv.FormatUint(uint64(st.Dev), 10) + "/" + strconv.FormatUint(uint64(st.Ino), 10)
}
