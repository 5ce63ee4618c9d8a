package deque

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrDeque_FIFO(t *testing.T) {
	d := NewArrDeque[int](0)
	for i := 0; i < 20; i++ {
		d.AddLast(i)
	}
	require.Equal(t, 20, d.Size())
	for i := 0; i < 20; i++ {
		assert.Equal(t, i, d.RemoveFirst())
	}
	assert.True(t, d.IsEmpty())
}

func TestArrDeque_BothEnds(t *testing.T) {
	d := NewArrDeque[string](0)
	d.AddLast("b")
	d.AddFirst("a")
	d.AddLast("c")
	assert.Equal(t, "a", d.Get(0))
	assert.Equal(t, "c", d.Get(2))
	assert.Equal(t, "c", d.RemoveLast())
	assert.Equal(t, "a", d.RemoveFirst())
	assert.Equal(t, 1, d.Size())
}

func TestArrDeque_Remove(t *testing.T) {
	d := NewArrDeque[int](0)
	// 让队首绕过数组起点
	d.AddFirst(2)
	d.AddFirst(1)
	d.AddLast(3)
	d.AddLast(4)

	assert.Equal(t, 2, d.Remove(1))
	var got []int
	d.Traverse(func(i int, item int) bool {
		got = append(got, item)
		return true
	})
	assert.Equal(t, []int{1, 3, 4}, got)
}

func TestArrDeque_FixedCapacity(t *testing.T) {
	d := NewArrDeque[int](3)
	for i := 0; i < 8; i++ {
		d.AddLast(i)
	}
	assert.True(t, d.IsFull())
	assert.Panics(t, func() { d.AddLast(9) })
}

func TestArrDeque_Set(t *testing.T) {
	d := NewArrDeque[float64](0)
	d.AddLast(1)
	d.Set(0, 1550)
	assert.Equal(t, 1550.0, d.Get(0))
	assert.Panics(t, func() { d.Get(1) })
}

func BenchmarkArrDeque_AddFirst(b *testing.B) {
	d := NewArrDeque[int](4000)
	for i := 0; i < b.N; i++ {
		d.AddFirst(1000)
		d.RemoveFirst()
	}
}

func BenchmarkArrDeque_RemoveLast(b *testing.B) {
	d := NewArrDeque[int](4000)
	for i := 0; i < b.N; i++ {
		d.AddLast(1000)
		d.RemoveLast()
	}
}
