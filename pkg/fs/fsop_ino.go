package fs

import (
	"context"

	"github.com/lambertxiao/go-tweetfs/pkg/logg"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
)

func (fs *FSR) getInodeAttributes(ctx context.Context, op *GetInodeAttributesOp) error {
	if op.Id != types.RootInodeID {
		logg.Dlog.Warnf("getInodeAttributes unknown ino:%d", op.Id)
		return types.ENOENT
	}

	op.inode = fs.virtualFile()
	op.AttrExp = fs.clock.Now().Add(fs.opt.AttrTTL)
	return nil
}

// The file has no content and fixed metadata, so attribute changes are
// accepted and ignored. This is what makes O_TRUNC opens work.
func (fs *FSR) setInodeAttributes(ctx context.Context, op *SetInodeAttributesOp) error {
	if op.Inode != types.RootInodeID {
		return types.ENOENT
	}

	if op.Size != nil && *op.Size != 0 {
		logg.Dlog.Debugf("setInodeAttributes ignore size:%d", *op.Size)
	}

	op.inode = fs.virtualFile()
	op.AttrExp = fs.clock.Now().Add(fs.opt.AttrTTL)
	return nil
}

func (fs *FSR) statFS(ctx context.Context, op *StatFSOp) error {
	const BLOCK_SIZE = 4096
	op.BlockSize = BLOCK_SIZE
	op.IoSize = BLOCK_SIZE
	op.Inodes = 1
	return nil
}
