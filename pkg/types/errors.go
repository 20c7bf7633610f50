package types

import "errors"

var (
	EINVAL error = errors.New("invalid argument")
	EIO    error = errors.New("input/output error")
	ENOENT error = errors.New("no such file or directory")
	ENOSYS error = errors.New("function not implemented")
	EPERM  error = errors.New("Operation not permitted")
	EFBIG  error = errors.New("file too large")
)

var (
	ErrHandleNotFound = errors.New("handle not found")
	ErrNoCredentials  = errors.New("missing publish credentials")
	ErrBadMountPoint  = errors.New("mountpoint must be a regular file")
)
