//go:build !windows

package ledger

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// replaceFile writes a new version of path through write and swaps it in
// atomically. Open handles on the old file stay valid.
func replaceFile(path string, write func(io.Writer) error, _ *os.File) error {
	t, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return err
	}
	defer func() { _ = t.Cleanup() }()

	if err := t.Chmod(0o644); err != nil {
		return err
	}

	bw := bufio.NewWriter(t)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}
