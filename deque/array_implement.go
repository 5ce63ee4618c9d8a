package deque

const (
	// 数组大小基数
	base = 8
)

// ArrDeque 基于环形数组实现，容量为 0 时按需扩容，否则容量固定。
type ArrDeque[T any] struct {
	arr   []T
	start int // 队首在数组中的位置
	size  int

	// 是否允许扩容
	growable bool
}

// 工厂方法
func NewArrDeque[T any](capacity int) *ArrDeque[T] {
	growable := capacity <= 0
	if growable {
		capacity = base
	}
	remainder := capacity % base
	if remainder != 0 {
		capacity = capacity - remainder + base
	}
	return &ArrDeque[T]{
		arr:      make([]T, capacity),
		growable: growable,
	}
}

func (ad *ArrDeque[T]) Size() int {
	return ad.size
}

func (ad *ArrDeque[T]) index(i int) int {
	if i < 0 || i >= ad.size {
		panic("index out of length")
	}
	return (ad.start + i) % len(ad.arr)
}

func (ad *ArrDeque[T]) Get(i int) T {
	return ad.arr[ad.index(i)]
}

func (ad *ArrDeque[T]) Set(i int, item T) {
	ad.arr[ad.index(i)] = item
}

func (ad *ArrDeque[T]) Traverse(f func(i int, item T) bool) {
	for i := 0; i < ad.size; i++ {
		if !f(i, ad.arr[(ad.start+i)%len(ad.arr)]) {
			return
		}
	}
}

func (ad *ArrDeque[T]) grow() {
	if !ad.IsFull() {
		return
	}
	if !ad.growable {
		panic("deque is full")
	}
	arr := make([]T, len(ad.arr)*2)
	for i := 0; i < ad.size; i++ {
		arr[i] = ad.arr[(ad.start+i)%len(ad.arr)]
	}
	ad.arr = arr
	ad.start = 0
}

func (ad *ArrDeque[T]) AddLast(item T) {
	ad.grow()
	ad.arr[(ad.start+ad.size)%len(ad.arr)] = item
	ad.size++
}

func (ad *ArrDeque[T]) AddFirst(item T) {
	ad.grow()
	ad.start = (ad.start - 1 + len(ad.arr)) % len(ad.arr)
	ad.arr[ad.start] = item
	ad.size++
}

func (ad *ArrDeque[T]) RemoveLast() T {
	if ad.IsEmpty() {
		panic("deque is empty")
	}
	var zero T
	i := (ad.start + ad.size - 1) % len(ad.arr)
	item := ad.arr[i]
	ad.arr[i] = zero
	ad.size--
	return item
}

func (ad *ArrDeque[T]) RemoveFirst() T {
	if ad.IsEmpty() {
		panic("deque is empty")
	}
	var zero T
	item := ad.arr[ad.start]
	ad.arr[ad.start] = zero
	ad.start = (ad.start + 1) % len(ad.arr)
	ad.size--
	return item
}

// Remove 删除下标 i 处的元素，后面的元素前移
func (ad *ArrDeque[T]) Remove(i int) T {
	item := ad.Get(i)
	for j := i; j < ad.size-1; j++ {
		ad.arr[ad.index(j)] = ad.arr[ad.index(j+1)]
	}
	ad.RemoveLast()
	return item
}

func (ad *ArrDeque[T]) IsFull() bool {
	return ad.size == len(ad.arr)
}

func (ad *ArrDeque[T]) IsEmpty() bool {
	return ad.size == 0
}
