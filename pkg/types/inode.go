package types

import (
	"os"
	"time"
)

type InodeID uint64

type Inode struct {
	Ino   InodeID
	Size  uint64
	Nlink uint32
	Mtime time.Time
	Mode  os.FileMode
	Uid   uint32
	Gid   uint32
}

const (
	InvalidInodeID InodeID = 0
	RootInodeID    InodeID = 1

	// the mounted file is write-only for its owner
	VirtualFileMode os.FileMode = 0200
)

// VirtualFile is the single file exposed by the mount. It never holds content,
// so its attributes never change.
func VirtualFile(uid, gid uint32, mtime time.Time) Inode {
	return Inode{
		Ino:   RootInodeID,
		Nlink: 1,
		Mode:  VirtualFileMode,
		Uid:   uid,
		Gid:   gid,
		Mtime: mtime,
	}
}
