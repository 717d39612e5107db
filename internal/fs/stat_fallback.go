//go:build !linux

package fs

import "io/fs"

// createTime falls back to the modification time on platforms where
// syscall.Stat_t field names differ.
func createTime(info fs.FileInfo) int64 {
	return info.ModTime().Unix()
}
