//go:build windows

package ledger

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
)

// replaceFile writes a new version of path and renames it over the old one.
// Windows refuses to replace a file with open handles, so current is closed
// first; the caller reopens it.
func replaceFile(path string, write func(io.Writer) error, current *os.File) error {
	t, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := t.Name()
	defer func() { _ = os.Remove(tmpName) }()

	bw := bufio.NewWriter(t)
	if err := write(bw); err != nil {
		_ = t.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = t.Close()
		return err
	}
	if err := t.Sync(); err != nil {
		_ = t.Close()
		return err
	}
	if err := t.Close(); err != nil {
		return err
	}

	if current != nil {
		_ = current.Close()
	}
	return os.Rename(tmpName, path)
}
