package fs

import (
	"os"
	"time"

	"github.com/lambertxiao/go-tweetfs/pkg/fs/fhandle"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
)

// cross-platform fuse types
type HandleID = fhandle.HandleID

type StatFSOp struct {
	BlockSize       uint32
	Blocks          uint64
	BlocksFree      uint64
	BlocksAvailable uint64
	IoSize          uint32
	Inodes          uint64
	InodesFree      uint64
}

type GetInodeAttributesOp struct {
	Id      types.InodeID
	inode   types.Inode
	AttrExp time.Time
}

type SetInodeAttributesOp struct {
	Inode types.InodeID
	Size  *uint64
	Mode  *os.FileMode

	inode   types.Inode
	AttrExp time.Time
}

type OpenFileOp struct {
	Inode types.InodeID
	// open(2) flags
	Flags uint32

	Handle        HandleID
	KeepPageCache bool
	UseDirectIO   bool
}

type WriteFileOp struct {
	Inode  types.InodeID
	Handle HandleID
	Offset int64
	Data   []byte
}

type FlushFileOp struct {
	Handle HandleID
	Inode  types.InodeID
}

type ReleaseFileHandleOp struct {
	Handle HandleID
	// job id of the scheduled publish, for logging and tests
	job string
}
