package fhandle

import (
	"math"
	"sync"

	"github.com/lambertxiao/go-tweetfs/pkg/types"
)

type HandleID uint64

type slot struct {
	buf  []byte
	used bool
}

// Table owns the content buffers of all open handles. Ids are slot indices;
// released slots are pushed on a free list and handed out again by Allocate.
type Table struct {
	mu    sync.Mutex
	slots []slot
	free  []HandleID
	used  int
}

func NewTable() *Table {
	return &Table{}
}

func (t *Table) Allocate() HandleID {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.used++
	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[id] = slot{buf: []byte{}, used: true}
		return id
	}

	t.slots = append(t.slots, slot{buf: []byte{}, used: true})
	return HandleID(len(t.slots) - 1)
}

// Write copies data into the buffer of id at offset. The buffer grows to
// offset+len(data) if needed; bytes between the old end and offset are zero.
func (t *Table) Write(id HandleID, offset int64, data []byte) error {
	if offset < 0 {
		return types.EINVAL
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.lookup(id)
	if s == nil {
		return types.ErrHandleNotFound
	}

	end := uint64(offset) + uint64(len(data))
	if end > math.MaxInt {
		return types.EFBIG
	}
	if end > uint64(len(s.buf)) {
		if end <= uint64(cap(s.buf)) {
			// buffers never shrink, so the spare capacity is still zeroed
			s.buf = s.buf[:end]
		} else {
			grown := make([]byte, end, growCap(cap(s.buf), end))
			copy(grown, s.buf)
			s.buf = grown
		}
	}

	copy(s.buf[offset:], data)
	return nil
}

// Take removes id from the table and returns its buffer. The slot becomes
// available for reuse.
func (t *Table) Take(id HandleID) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.lookup(id)
	if s == nil {
		return nil, types.ErrHandleNotFound
	}

	buf := s.buf
	t.slots[id] = slot{}
	t.free = append(t.free, id)
	t.used--
	return buf, nil
}

// Size returns the current length of the buffer of id.
func (t *Table) Size(id HandleID) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.lookup(id)
	if s == nil {
		return 0, types.ErrHandleNotFound
	}
	return uint64(len(s.buf)), nil
}

// Len returns the number of open handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

// must be called with t.mu held
func (t *Table) lookup(id HandleID) *slot {
	if uint64(id) >= uint64(len(t.slots)) {
		return nil
	}
	s := &t.slots[id]
	if !s.used {
		return nil
	}
	return s
}

func growCap(old int, need uint64) int {
	c := uint64(old) * 2
	if c < need {
		c = need
	}
	return int(c)
}
