/**
 * 双端队列，元素类型由调用方决定。
 * 引擎会话使用它作为待求解请求的 FIFO 队列：超时的请求需要从队列中间移除，
 * 因此除了两端的操作外还提供按下标删除。
 */

package deque

type Deque[T any] interface {
	// 队列的长度
	Size() int

	// 获取队列中对应下标的元素
	Get(i int) T

	// 设定队列中对应下标的元素
	Set(i int, item T)

	// 正向遍历，f 返回 false 时停止
	Traverse(f func(i int, item T) bool)

	// 在队列结尾增加一个元素
	AddLast(item T)

	// 在队列结尾删除一个元素
	RemoveLast() T

	// 在队列头部增加一个元素
	AddFirst(item T)

	// 在队列头部删除一个元素
	RemoveFirst() T

	// 删除对应下标的元素
	Remove(i int) T

	IsFull() bool

	IsEmpty() bool
}
