//go:build !unix

package filesystem

import "io/fs"

func dirKey(path string, _ fs.FileInfo) string {
	return pathKey(path)
}
