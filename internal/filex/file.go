// Package filex holds local filesystem helpers.
package filex

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EnsureParentDir creates the directory that will hold path (for example the
// local database file) and returns path unchanged.
func EnsureParentDir(path string) (string, error) {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return path, nil
	}
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return path, nil
}

// RegularFile stats path and returns its info when it is a regular file.
// A missing path reports fs.ErrNotExist.
func RegularFile(path string) (fs.FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file: %w", path, fs.ErrInvalid)
	}
	return fi, nil
}

// Hidden reports whether the last element of path is a dotfile, which is how
// editors and copy tools name their temporary files.
func Hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// RemoteName joins a remote directory and the local file's base name with a
// forward slash. An empty dir yields the bare name.
func RemoteName(dir, localPath string) string {
	name := filepath.Base(localPath)
	dir = strings.TrimRight(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
