package fhandle

import (
	"bytes"
	"math"
	"sync"
	"testing"

	"github.com/lambertxiao/go-tweetfs/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateEmpty(t *testing.T) {
	tb := NewTable()
	for i := 0; i < 8; i++ {
		id := tb.Allocate()
		size, err := tb.Size(id)
		assert.Nil(t, err)
		assert.Equal(t, uint64(0), size)
	}
	assert.Equal(t, 8, tb.Len())
}

func TestWriteSequential(t *testing.T) {
	tb := NewTable()
	id := tb.Allocate()

	require.Nil(t, tb.Write(id, 0, []byte("hello")))
	require.Nil(t, tb.Write(id, 5, []byte(" world")))

	buf, err := tb.Take(id)
	assert.Nil(t, err)
	assert.Equal(t, "hello world", string(buf))
}

func TestWriteGapZeroFilled(t *testing.T) {
	tb := NewTable()
	id := tb.Allocate()

	require.Nil(t, tb.Write(id, 3, []byte("abc")))

	buf, err := tb.Take(id)
	assert.Nil(t, err)
	assert.Equal(t, []byte{0, 0, 0, 'a', 'b', 'c'}, buf)
}

func TestWriteOutOfOrder(t *testing.T) {
	tb := NewTable()
	id := tb.Allocate()

	type w struct {
		off  int64
		data string
	}
	writes := []w{{10, "xy"}, {0, "ab"}, {4, "cd"}, {1, "Z"}}
	for _, x := range writes {
		require.Nil(t, tb.Write(id, x.off, []byte(x.data)))
	}

	buf, err := tb.Take(id)
	require.Nil(t, err)

	// length is the furthest end, uncovered bytes stay zero
	assert.Equal(t, 12, len(buf))
	expect := []byte{'a', 'Z', 0, 0, 'c', 'd', 0, 0, 0, 0, 'x', 'y'}
	assert.Equal(t, expect, buf)
}

func TestWriteInsideDoesNotShrink(t *testing.T) {
	tb := NewTable()
	id := tb.Allocate()

	require.Nil(t, tb.Write(id, 0, []byte("0123456789")))
	require.Nil(t, tb.Write(id, 2, []byte("ab")))

	size, err := tb.Size(id)
	assert.Nil(t, err)
	assert.Equal(t, uint64(10), size)

	buf, _ := tb.Take(id)
	assert.Equal(t, "01ab456789", string(buf))
}

func TestWriteEmptyPayloadExtends(t *testing.T) {
	tb := NewTable()
	id := tb.Allocate()

	require.Nil(t, tb.Write(id, 4, nil))
	buf, _ := tb.Take(id)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)
}

func TestWriteUnknownHandle(t *testing.T) {
	tb := NewTable()
	assert.Equal(t, types.ErrHandleNotFound, tb.Write(999, 0, []byte("x")))
	assert.Equal(t, 0, tb.Len())

	_, err := tb.Take(999)
	assert.Equal(t, types.ErrHandleNotFound, err)
}

func TestWriteNegativeOffset(t *testing.T) {
	tb := NewTable()
	id := tb.Allocate()
	assert.Equal(t, types.EINVAL, tb.Write(id, -1, []byte("x")))
}

func TestWriteHugeOffset(t *testing.T) {
	tb := NewTable()
	id := tb.Allocate()
	require.Nil(t, tb.Write(id, 0, []byte("ab")))

	assert.Equal(t, types.EFBIG, tb.Write(id, 1<<62, []byte("x")))
	assert.Equal(t, types.EFBIG, tb.Write(id, math.MaxInt64, []byte("x")))

	// the handle survives with its content untouched
	buf, err := tb.Take(id)
	require.Nil(t, err)
	assert.Equal(t, "ab", string(buf))
}

func TestTakeOnce(t *testing.T) {
	tb := NewTable()
	id := tb.Allocate()
	require.Nil(t, tb.Write(id, 0, []byte("x")))

	_, err := tb.Take(id)
	assert.Nil(t, err)

	_, err = tb.Take(id)
	assert.Equal(t, types.ErrHandleNotFound, err)
	assert.Equal(t, types.ErrHandleNotFound, tb.Write(id, 0, []byte("y")))
	assert.Equal(t, 0, tb.Len())
}

func TestSlotRecycled(t *testing.T) {
	tb := NewTable()
	a := tb.Allocate()
	b := tb.Allocate()
	require.Nil(t, tb.Write(a, 0, []byte("old content")))

	_, err := tb.Take(a)
	require.Nil(t, err)

	c := tb.Allocate()
	assert.Equal(t, a, c)
	assert.NotEqual(t, b, c)

	// a recycled id starts from an empty buffer
	size, err := tb.Size(c)
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), size)
}

func TestTakenBufferDetached(t *testing.T) {
	tb := NewTable()
	id := tb.Allocate()
	require.Nil(t, tb.Write(id, 0, []byte("first")))
	buf, _ := tb.Take(id)

	again := tb.Allocate()
	require.Equal(t, id, again)
	require.Nil(t, tb.Write(again, 0, []byte("XXXXX")))

	assert.Equal(t, "first", string(buf))
}

func TestConcurrentAllocateDistinct(t *testing.T) {
	tb := NewTable()
	const n = 256

	var wg sync.WaitGroup
	ids := make(chan HandleID, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- tb.Allocate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[HandleID]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate handle %d", id)
		seen[id] = true
	}
	assert.Equal(t, n, len(seen))
	assert.Equal(t, n, tb.Len())
}

func TestConcurrentWritersSeparateHandles(t *testing.T) {
	tb := NewTable()
	const n = 32

	var wg sync.WaitGroup
	handles := make([]HandleID, n)
	for i := range handles {
		handles[i] = tb.Allocate()
	}

	for i, id := range handles {
		wg.Add(1)
		go func(i int, id HandleID) {
			defer wg.Done()
			chunk := bytes.Repeat([]byte{byte('a' + i%26)}, 16)
			for j := 0; j < 64; j++ {
				_ = tb.Write(id, int64(j*16), chunk)
			}
		}(i, id)
	}
	wg.Wait()

	for i, id := range handles {
		buf, err := tb.Take(id)
		require.Nil(t, err)
		assert.Equal(t, bytes.Repeat([]byte{byte('a' + i%26)}, 16*64), buf)
	}
}
