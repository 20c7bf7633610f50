package fs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jonboulle/clockwork"
	"github.com/lambertxiao/go-tweetfs/pkg/logg"
	"github.com/lambertxiao/go-tweetfs/pkg/mocks"
	"github.com/lambertxiao/go-tweetfs/pkg/publish"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
)

func TestFSRSuite(t *testing.T) {
	suite.Run(t, new(FSRSuite))
}

const (
	mockUid = uint32(1000)
	mockGid = uint32(100)
)

var mockNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type FSRSuite struct {
	suite.Suite
	mockCtrl  *gomock.Controller
	publisher *mocks.MockPublisher
	bridge    *publish.Bridge
	clock     clockwork.FakeClock
	fs        *FSR
	ctx       context.Context
}

func (s *FSRSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.publisher = mocks.NewMockPublisher(s.mockCtrl)
	s.clock = clockwork.NewFakeClockAt(mockNow)
	s.bridge = publish.NewBridge(s.publisher, publish.BridgeOption{
		Parallel: 4,
		Timeout:  time.Second,
		Clock:    s.clock,
	}, nil)
	s.fs = NewFS(FSOption{
		Uid:          mockUid,
		Gid:          mockGid,
		AttrTTL:      types.DEFAULT_ATTR_TTL,
		DrainTimeout: time.Second,
	}, s.bridge, s.clock, nil, nil)
	s.ctx = context.Background()
}

func (s *FSRSuite) TearDownTest() {
	s.bridge.Wait()
	s.mockCtrl.Finish()
}

func (s *FSRSuite) open() HandleID {
	op := &OpenFileOp{Inode: types.RootInodeID, Flags: syscall.O_WRONLY}
	s.Require().Nil(s.fs.openFile(s.ctx, op))
	return op.Handle
}

func (s *FSRSuite) write(h HandleID, off int64, data string) error {
	return s.fs.writeFile(s.ctx, &WriteFileOp{Inode: types.RootInodeID, Handle: h, Offset: off, Data: []byte(data)})
}

func (s *FSRSuite) release(h HandleID) error {
	return s.fs.releaseFileHandle(s.ctx, &ReleaseFileHandleOp{Handle: h})
}

func (s *FSRSuite) TestGetInodeAttributes() {
	op := &GetInodeAttributesOp{Id: types.RootInodeID}
	s.Nil(s.fs.getInodeAttributes(s.ctx, op))

	s.Equal(types.RootInodeID, op.inode.Ino)
	s.Equal(types.VirtualFileMode, op.inode.Mode)
	s.True(op.inode.Mode.IsRegular())
	s.Equal(uint32(1), op.inode.Nlink)
	s.Equal(mockUid, op.inode.Uid)
	s.Equal(mockGid, op.inode.Gid)
	s.Equal(uint64(0), op.inode.Size)
	s.Equal(mockNow.Add(types.DEFAULT_ATTR_TTL), op.AttrExp)
}

func (s *FSRSuite) TestGetInodeAttributesUnknownInode() {
	op := &GetInodeAttributesOp{Id: 2}
	s.Equal(types.ENOENT, s.fs.getInodeAttributes(s.ctx, op))
}

func (s *FSRSuite) TestSetInodeAttributesTruncate() {
	size := uint64(0)
	op := &SetInodeAttributesOp{Inode: types.RootInodeID, Size: &size}
	s.Nil(s.fs.setInodeAttributes(s.ctx, op))
	s.Equal(types.VirtualFileMode, op.inode.Mode)
}

func (s *FSRSuite) TestOpenWriteOnly() {
	op := &OpenFileOp{Inode: types.RootInodeID, Flags: syscall.O_WRONLY | syscall.O_TRUNC}
	s.Nil(s.fs.openFile(s.ctx, op))
	s.True(op.UseDirectIO)
	s.False(op.KeepPageCache)
	s.Equal(1, s.fs.table.Len())
}

func (s *FSRSuite) TestOpenReadDenied() {
	for _, flags := range []uint32{syscall.O_RDONLY, syscall.O_RDWR, syscall.O_RDWR | syscall.O_APPEND} {
		op := &OpenFileOp{Inode: types.RootInodeID, Flags: flags}
		s.Equal(types.EPERM, s.fs.openFile(s.ctx, op))
	}
	s.Equal(0, s.fs.table.Len())
}

func (s *FSRSuite) TestHelloWorld() {
	s.publisher.EXPECT().Publish(gomock.Any(), "hello world").Return(nil)

	h := s.open()
	s.Nil(s.write(h, 0, "hello"))
	s.Nil(s.write(h, 5, " world"))

	op := &ReleaseFileHandleOp{Handle: h}
	s.Nil(s.fs.releaseFileHandle(s.ctx, op))
	s.NotEmpty(op.job)
	s.Equal(0, s.fs.table.Len())

	s.bridge.Wait()
}

func (s *FSRSuite) TestWriteWithGap() {
	s.publisher.EXPECT().Publish(gomock.Any(), "\x00\x00\x00abc").Return(nil)

	h := s.open()
	s.Nil(s.write(h, 3, "abc"))
	s.Nil(s.release(h))

	s.bridge.Wait()
}

func (s *FSRSuite) TestReleaseInvalidUTF8() {
	s.publisher.EXPECT().Publish(gomock.Any(), "ok\uFFFD").Return(nil)

	h := s.open()
	s.Nil(s.write(h, 0, "ok\xff"))
	s.Nil(s.release(h))

	s.bridge.Wait()
}

func (s *FSRSuite) TestWriteUnknownHandle() {
	s.Equal(types.EIO, s.write(999, 0, "x"))
	s.Equal(0, s.fs.table.Len())
}

func (s *FSRSuite) TestReleaseAtMostOnce() {
	s.publisher.EXPECT().Publish(gomock.Any(), "once").Return(nil).Times(1)

	h := s.open()
	s.Nil(s.write(h, 0, "once"))
	s.Nil(s.release(h))

	s.Equal(types.EIO, s.release(h))
	s.Equal(types.EIO, s.write(h, 0, "again"))

	s.bridge.Wait()
}

func (s *FSRSuite) TestReleaseSucceedsWhenPublishFails() {
	s.publisher.EXPECT().Publish(gomock.Any(), "x").Return(errors.New("503 service unavailable"))

	h := s.open()
	s.Nil(s.write(h, 0, "x"))
	s.Nil(s.release(h))

	s.bridge.Wait()
}

func (s *FSRSuite) TestReleaseDoesNotWaitForPublish() {
	block := make(chan struct{})
	done := make(chan struct{})
	s.publisher.EXPECT().Publish(gomock.Any(), "slow").DoAndReturn(func(context.Context, string) error {
		<-block
		close(done)
		return nil
	})

	h := s.open()
	s.Nil(s.write(h, 0, "slow"))
	s.Nil(s.release(h))

	// other handles keep working while the publish is stuck
	h2 := s.open()
	s.Nil(s.write(h2, 0, "other"))

	select {
	case <-done:
		s.Fail("publish finished before it was unblocked")
	default:
	}

	close(block)
	s.bridge.Wait()

	s.publisher.EXPECT().Publish(gomock.Any(), "other").Return(nil)
	s.Nil(s.release(h2))
}

func (s *FSRSuite) TestMaxSize() {
	s.fs.opt.MaxSize = 8
	s.publisher.EXPECT().Publish(gomock.Any(), "12345678").Return(nil)

	h := s.open()
	s.Nil(s.write(h, 0, "1234"))
	s.Equal(types.EFBIG, s.write(h, 4, "56789"))
	s.Nil(s.write(h, 4, "5678"))
	s.Nil(s.release(h))

	s.bridge.Wait()
}

func (s *FSRSuite) TestWriteHugeOffset() {
	s.Equal(uint64(0), s.fs.opt.MaxSize)
	s.publisher.EXPECT().Publish(gomock.Any(), "hi").Return(nil)

	h := s.open()
	s.Nil(s.write(h, 0, "hi"))
	err := s.write(h, 1<<62, "x")
	s.Equal(types.EFBIG, err)
	s.Equal(syscall.EFBIG, Error2Native(err))

	size, err := s.fs.table.Size(h)
	s.Nil(err)
	s.Equal(uint64(2), size)

	s.Nil(s.release(h))
	s.bridge.Wait()
}

func (s *FSRSuite) TestWriteDebugLogsSize() {
	logger := &logg.Dlog.Logger
	level := logger.GetLevel()
	hooks := logger.ReplaceHooks(make(logrus.LevelHooks))
	defer func() {
		logger.SetLevel(level)
		logger.ReplaceHooks(hooks)
	}()
	logger.SetLevel(logrus.DebugLevel)
	hook := logtest.NewLocal(logger)

	s.publisher.EXPECT().Publish(gomock.Any(), "\x00\x00ab").Return(nil)
	h := s.open()
	s.Nil(s.write(h, 2, "ab"))

	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == fmt.Sprintf("writeFile handle:%d offset:2 len:2 size:4", h) {
			found = true
		}
	}
	s.True(found)

	s.Nil(s.release(h))
	s.bridge.Wait()
}

func (s *FSRSuite) TestConcurrentOpensDistinct() {
	const n = 64
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[HandleID]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op := &OpenFileOp{Inode: types.RootInodeID, Flags: syscall.O_WRONLY}
			if err := s.fs.openFile(s.ctx, op); err != nil {
				return
			}
			mu.Lock()
			seen[op.Handle] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Equal(n, len(seen))
	s.Equal(n, s.fs.table.Len())
}

func (s *FSRSuite) TestDestroyDrains() {
	s.publisher.EXPECT().Publish(gomock.Any(), "bye").Return(nil)

	h := s.open()
	s.Nil(s.write(h, 0, "bye"))
	s.Nil(s.release(h))

	s.fs.destroy()
	s.True(s.bridge.Drain(time.Second))
}

func (s *FSRSuite) TestAdapterErrors() {
	fsx := &FSRX{FSR: s.fs}

	open := &fuseops.OpenFileOp{Inode: fuseops.RootInodeID, OpenFlags: syscall.O_RDONLY}
	s.Equal(syscall.EPERM, fsx.OpenFile(s.ctx, open))

	write := &fuseops.WriteFileOp{Inode: fuseops.RootInodeID, Handle: 999, Data: []byte("x")}
	s.Equal(syscall.EIO, fsx.WriteFile(s.ctx, write))

	release := &fuseops.ReleaseFileHandleOp{Handle: 999}
	s.Equal(syscall.EIO, fsx.ReleaseFileHandle(s.ctx, release))
}

func (s *FSRSuite) TestAdapterRoundTrip() {
	fsx := &FSRX{FSR: s.fs}
	s.publisher.EXPECT().Publish(gomock.Any(), "via fuse").Return(nil)

	attr := &fuseops.GetInodeAttributesOp{Inode: fuseops.RootInodeID}
	s.Nil(fsx.GetInodeAttributes(s.ctx, attr))
	s.Equal(types.VirtualFileMode, attr.Attributes.Mode)
	s.Equal(uint32(1), attr.Attributes.Nlink)
	s.Equal(mockUid, attr.Attributes.Uid)
	s.Equal(mockNow.Add(types.DEFAULT_ATTR_TTL), attr.AttributesExpiration)

	open := &fuseops.OpenFileOp{Inode: fuseops.RootInodeID, OpenFlags: syscall.O_WRONLY}
	s.Nil(fsx.OpenFile(s.ctx, open))
	s.True(open.UseDirectIO)
	s.False(open.KeepPageCache)

	write := &fuseops.WriteFileOp{Inode: fuseops.RootInodeID, Handle: open.Handle, Data: []byte("via fuse")}
	s.Nil(fsx.WriteFile(s.ctx, write))

	s.Nil(fsx.FlushFile(s.ctx, &fuseops.FlushFileOp{Inode: fuseops.RootInodeID, Handle: open.Handle}))
	s.Nil(fsx.ReleaseFileHandle(s.ctx, &fuseops.ReleaseFileHandleOp{Handle: open.Handle}))

	s.bridge.Wait()
}

func (s *FSRSuite) TestError2Native() {
	s.Nil(Error2Native(nil))
	s.Equal(syscall.EPERM, Error2Native(types.EPERM))
	s.Equal(syscall.EIO, Error2Native(types.EIO))
	s.Equal(syscall.EIO, Error2Native(types.ErrHandleNotFound))
	s.Equal(syscall.EFBIG, Error2Native(types.EFBIG))
	other := errors.New("other")
	s.Equal(other, Error2Native(other))
}
