package executor

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCoversRange(t *testing.T) {
	for _, workers := range []int{1, 3, 4, 7} {
		e := New(workers)
		for _, total := range []int{1, 2, 5, 8, 9, 100, 1001} {
			covered := make([]int, total)
			for _, tk := range e.split(total) {
				assert.Less(t, tk.start, tk.end)
				for i := tk.start; i < tk.end; i++ {
					covered[i]++
				}
			}
			for i, c := range covered {
				assert.Equal(t, 1, c, "workers=%d total=%d index=%d", workers, total, i)
			}
		}
	}
}

func TestDispatch(t *testing.T) {
	e := New(4)
	out := make([]int, 1000)
	var calls int64
	e.Dispatch(len(out), func(start, end int) {
		atomic.AddInt64(&calls, 1)
		for i := start; i < end; i++ {
			out[i] = i * i
		}
	})
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
	assert.Greater(t, calls, int64(1))
	assert.Zero(t, e.Dispatch(0, func(int, int) { t.Fail() }))
}

func TestDispatchPanicReachesCaller(t *testing.T) {
	e := New(4)
	var done int64
	assert.PanicsWithValue(t, "bad element", func() {
		e.Dispatch(100, func(start, end int) {
			if start == 0 {
				panic("bad element")
			}
			atomic.AddInt64(&done, 1)
		})
	})
	// 其余 worker 正常结束
	assert.Greater(t, atomic.LoadInt64(&done), int64(0))
}
