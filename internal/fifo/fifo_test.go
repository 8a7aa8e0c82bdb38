package fifo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushPopOrder(t *testing.T) {
	q := NewTaskQueue(4)
	assert.True(t, q.Push(1))
	assert.True(t, q.Push(2))
	assert.True(t, q.Push(3))

	tag, ok := q.Pop()
	assert.True(t, ok)
	assert.EqualValues(t, 1, tag)

	tag, ok = q.Head()
	assert.True(t, ok)
	assert.EqualValues(t, 2, tag)
	assert.Equal(t, 2, q.Len())
}

func TestPushFailsWhenFull(t *testing.T) {
	q := NewTaskQueue(2)
	assert.True(t, q.Push(1))
	assert.True(t, q.Push(2))
	assert.False(t, q.Push(3))
}

func TestDrainReturnsAllInOrder(t *testing.T) {
	q := NewTaskQueue(4)
	q.Push(10)
	q.Push(20)
	q.Push(30)

	drained := q.Drain()
	assert.Equal(t, []uint32{10, 20, 30}, drained)
	assert.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestEnableDisable(t *testing.T) {
	q := NewTaskQueue(1)
	assert.False(t, q.Enabled())
	q.Enable()
	assert.True(t, q.Enabled())
	q.Disable()
	assert.False(t, q.Enabled())
}
