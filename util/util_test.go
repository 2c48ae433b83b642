package util

import (
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedSet(t *testing.T) {
	s := NewOrderedSet[string]()
	assert.True(t, s.Insert("b"))
	assert.True(t, s.Insert("a"))
	assert.False(t, s.Insert("b"))
	assert.True(t, s.Insert("c"))
	assert.Equal(t, []string{"b", "a", "c"}, s.Slice())

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, 2, s.Len())

	for item := range s.Items() {
		s.Remove(item)
	}
	assert.Zero(t, s.Len())

	var empty *OrderedSet[int]
	assert.False(t, empty.Contains(1))
	assert.Nil(t, empty.Slice())
}

func TestQueueSkipsWaitingElements(t *testing.T) {
	q := NewQueue[int]()
	assert.True(t, q.Push(1))
	assert.True(t, q.Push(2))
	assert.False(t, q.Push(1))

	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, q.Push(1), "popped elements can be queued again")
	assert.Equal(t, 2, q.Len())

	q.Pop()
	q.Pop()
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestIterators(t *testing.T) {
	joined := slices.Collect(ConcatIter(slices.Values([]int{1, 2}), slices.Values([]int{3})))
	assert.Equal(t, []int{1, 2, 3}, joined)
	assert.Equal(t, []int{3, 2, 1}, slices.Collect(Reverse([]int{1, 2, 3})))
}

type num int

func (n num) String() string { return strconv.Itoa(int(n)) }

func TestStrings(t *testing.T) {
	assert.Equal(t, "1 | 2", JoinString([]num{1, 2}, " | "))

	tests := []struct {
		path string
		want []string
	}{
		{"", nil},
		{"Object", nil},
		{"::Object", nil},
		{"A", []string{"A"}},
		{"::A::B", []string{"A", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPath(tt.path))
		})
	}
}
