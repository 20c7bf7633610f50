//go:build !windows
// +build !windows

package fs

import (
	"context"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/lambertxiao/go-tweetfs/pkg/logg"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
)

// FSRX adapts FSR to jacobsa/fuse. Operations without a sensible reply on a
// single-file mount (lookups, directories, xattrs, reads) fall through to
// NotImplementedFileSystem and fail with ENOSYS.
type FSRX struct {
	fuseutil.NotImplementedFileSystem
	*FSR
}

func (fs *FSRX) StatFS(
	ctx context.Context,
	op *fuseops.StatFSOp) error {
	var top StatFSOp
	err := fs.statFS(ctx, &top)
	if err != nil {
		return Error2Native(err)
	}

	op.BlockSize = top.BlockSize
	op.Blocks = top.Blocks
	op.BlocksFree = top.BlocksFree
	op.BlocksAvailable = top.BlocksAvailable
	op.IoSize = top.IoSize
	op.Inodes = top.Inodes
	op.InodesFree = top.InodesFree
	return nil
}

func (fs *FSRX) GetInodeAttributes(
	ctx context.Context,
	op *fuseops.GetInodeAttributesOp) error {
	logg.Dlog.Debugf("GetInodeAttributes ino:%d", op.Inode)
	var top GetInodeAttributesOp
	top.Id = types.InodeID(op.Inode)
	err := fs.getInodeAttributes(ctx, &top)
	if err != nil {
		return Error2Native(err)
	}
	FillAttr(&op.Attributes, top.inode)
	op.AttributesExpiration = top.AttrExp
	return nil
}

func (fs *FSRX) SetInodeAttributes(
	ctx context.Context,
	op *fuseops.SetInodeAttributesOp) error {
	logg.Dlog.Debugf("SetInodeAttributes ino:%d size:%v mode:%v", op.Inode, op.Size, op.Mode)
	var top SetInodeAttributesOp
	top.Inode = types.InodeID(op.Inode)
	top.Size = op.Size
	top.Mode = op.Mode
	err := fs.setInodeAttributes(ctx, &top)
	if err != nil {
		return Error2Native(err)
	}
	FillAttr(&op.Attributes, top.inode)
	op.AttributesExpiration = top.AttrExp
	return nil
}

func (fs *FSRX) ForgetInode(
	ctx context.Context,
	op *fuseops.ForgetInodeOp) error {
	return nil
}

func (fs *FSRX) OpenFile(
	ctx context.Context,
	op *fuseops.OpenFileOp) error {
	logg.Dlog.Debugf("OpenFile ino:%d flags:%v", op.Inode, op.OpenFlags)
	var top OpenFileOp
	top.Inode = types.InodeID(op.Inode)
	top.Flags = uint32(op.OpenFlags)
	err := fs.openFile(ctx, &top)
	if err != nil {
		return Error2Native(err)
	}
	op.Handle = fuseops.HandleID(top.Handle)
	op.KeepPageCache = top.KeepPageCache
	op.UseDirectIO = top.UseDirectIO
	return nil
}

func (fs *FSRX) WriteFile(
	ctx context.Context,
	op *fuseops.WriteFileOp) error {
	logg.Dlog.Debugf("writeFile ino:%d handle:%d offset:%d len:%d", op.Inode, op.Handle, op.Offset, len(op.Data))

	var top WriteFileOp
	top.Inode = types.InodeID(op.Inode)
	top.Handle = HandleID(op.Handle)
	top.Offset = op.Offset
	top.Data = op.Data
	return Error2Native(fs.writeFile(ctx, &top))
}

func (fs *FSRX) SyncFile(
	ctx context.Context,
	op *fuseops.SyncFileOp) error {
	return Error2Native(fs.syncFile(ctx))
}

func (fs *FSRX) FlushFile(
	ctx context.Context,
	op *fuseops.FlushFileOp) error {
	var top FlushFileOp
	top.Handle = HandleID(op.Handle)
	top.Inode = types.InodeID(op.Inode)
	return Error2Native(fs.flushFile(ctx, &top))
}

func (fs *FSRX) ReleaseFileHandle(
	ctx context.Context,
	op *fuseops.ReleaseFileHandleOp) error {
	logg.Dlog.Debugf("ReleaseFileHandle handle:%d", op.Handle)
	var top ReleaseFileHandleOp
	top.Handle = HandleID(op.Handle)
	return Error2Native(fs.releaseFileHandle(ctx, &top))
}

func (fs *FSRX) Fallocate(
	ctx context.Context,
	op *fuseops.FallocateOp) error {
	return nil
}

func (fs *FSRX) Destroy() {
	fs.destroy()
}
