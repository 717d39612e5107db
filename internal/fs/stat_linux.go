//go:build linux

package fs

import (
	"io/fs"
	"syscall"
)

// createTime extracts the inode change time as Unix seconds. Birth time is
// not available on most Unix filesystems, so ctime is the closest stable
// stand-in for when the file appeared.
func createTime(info fs.FileInfo) int64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Ctim.Sec
	}
	return info.ModTime().Unix()
}
