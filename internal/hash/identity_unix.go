//go:build linux || darwin

package hash

import (
	"os"
	"syscall"
)

// fileIdentity returns the inode and status change time of info.
func fileIdentity(info os.FileInfo) (inode uint64, ctime int64) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	return uint64(st.Ino), statCtime(st)
}
