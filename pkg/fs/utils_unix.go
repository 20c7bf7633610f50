//go:build !windows
// +build !windows

package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
)

func Error2Native(err error) error {
	switch err {
	case nil:
		return nil
	case types.EINVAL:
		return fuse.EINVAL
	case types.EIO, types.ErrHandleNotFound:
		return fuse.EIO
	case types.ENOENT:
		return fuse.ENOENT
	case types.ENOSYS:
		return fuse.ENOSYS
	case types.EPERM:
		return syscall.EPERM
	case types.EFBIG:
		return syscall.EFBIG
	}
	return err
}

func FillAttr(attr *fuseops.InodeAttributes, inode types.Inode) {
	attr.Mtime = inode.Mtime
	attr.Ctime = inode.Mtime
	attr.Atime = inode.Mtime
	attr.Size = inode.Size
	attr.Nlink = inode.Nlink
	attr.Uid = inode.Uid
	attr.Gid = inode.Gid
	attr.Mode = inode.Mode
}

// CheckMountPoint makes sure path is an existing regular file, the only kind
// of node the single-file mount can cover.
func CheckMountPoint(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrBadMountPoint, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is %v", types.ErrBadMountPoint, path, fi.Mode().Type())
	}
	return nil
}

func RedirectStderr(dir, prefix, suffix string) (err error) {
	if strings.HasSuffix(dir, "/") {
		dir = dir + "crashlog"
	} else {
		dir = dir + "/" + "crashlog"
	}
	logPath := RedirectPath(dir, prefix, suffix)
	err = os.MkdirAll(filepath.Dir(logPath), os.ModePerm)
	if err != nil {
		return
	}
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_SYNC, 0644)
	if err != nil {
		return
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_APPEND|os.O_WRONLY, os.ModeAppend)
	if err != nil {
		return
	}

	err = syscall.Dup2(int(devNull.Fd()), syscall.Stdout)
	if err != nil {
		return
	}

	return syscall.Dup2(int(logFile.Fd()), syscall.Stderr)
}

func RedirectPath(dir, prefix, suffix string) string {
	t := time.Now()
	filename := fmt.Sprintf("%s%s%s", prefix, t.Format("20060102-150405"), suffix)
	return filepath.Join(dir, filename)
}
