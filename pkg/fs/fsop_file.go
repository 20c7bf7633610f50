package fs

import (
	"context"

	"github.com/lambertxiao/go-tweetfs/pkg/logg"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
	"github.com/sirupsen/logrus"
)

func (fs *FSR) openFile(ctx context.Context, op *OpenFileOp) error {
	st := fs.clock.Now()
	defer func() {
		fs.observeOP(FS_OP_OPEN, st)
	}()

	if !IsWriteOnly(op.Flags) {
		fs.openDeniedCounter.Inc()
		logg.Dlog.Warnf("openFile ino:%d flags:%#x rejected, only write-only opens are allowed", op.Inode, op.Flags)
		return types.EPERM
	}

	// every handle is written once and never read back
	op.Handle = fs.table.Allocate()
	op.KeepPageCache = false
	op.UseDirectIO = true

	logg.Dlog.Debugf("openFile ino:%d handle:%d", op.Inode, op.Handle)
	return nil
}

func (fs *FSR) writeFile(ctx context.Context, op *WriteFileOp) error {
	st := fs.clock.Now()
	defer func() {
		fs.observeOP(FS_OP_WRITE, st)
	}()

	if fs.opt.MaxSize > 0 && op.Offset >= 0 && uint64(op.Offset)+uint64(len(op.Data)) > fs.opt.MaxSize {
		logg.Dlog.Warnf("writeFile handle:%d offset:%d len:%d exceeds max size %d",
			op.Handle, op.Offset, len(op.Data), fs.opt.MaxSize)
		return types.EFBIG
	}

	err := fs.table.Write(op.Handle, op.Offset, op.Data)
	if err != nil {
		logg.Dlog.Errorf("writeFile handle:%d offset:%d len:%d err:%v", op.Handle, op.Offset, len(op.Data), err)
		if err == types.ErrHandleNotFound {
			return types.EIO
		}
		return err
	}

	fs.writtenSizeHistogram.Observe(float64(len(op.Data)))
	if logg.Dlog.IsLevelEnabled(logrus.DebugLevel) {
		size, _ := fs.table.Size(op.Handle)
		logg.Dlog.Debugf("writeFile handle:%d offset:%d len:%d size:%d", op.Handle, op.Offset, len(op.Data), size)
	}
	return nil
}

func (fs *FSR) flushFile(ctx context.Context, op *FlushFileOp) error {
	// content is only handed off on release; a dup'ed fd may still write
	return nil
}

func (fs *FSR) syncFile(ctx context.Context) error {
	return nil
}

func (fs *FSR) releaseFileHandle(ctx context.Context, op *ReleaseFileHandleOp) error {
	st := fs.clock.Now()
	defer func() {
		fs.observeOP(FS_OP_RELEASE, st)
	}()

	buf, err := fs.table.Take(op.Handle)
	if err != nil {
		logg.Dlog.Errorf("release file handle No such handle %v", op.Handle)
		return types.EIO
	}

	// the table lock is already released, publishing never holds it
	op.job = fs.bridge.Submit(buf)
	logg.Dlog.Infof("releaseFileHandle handle:%d size:%d job:%s", op.Handle, len(buf), op.job)
	return nil
}
