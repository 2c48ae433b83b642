package util

// Queue is a FIFO which ignores pushes of elements already waiting in it
type Queue[A comparable] struct {
	items   []A
	members map[A]struct{}
}

func NewQueue[A comparable]() *Queue[A] {
	return &Queue[A]{members: make(map[A]struct{})}
}

// Push appends v unless it is already queued, and reports whether it was appended
func (q *Queue[A]) Push(v A) bool {
	if _, ok := q.members[v]; ok {
		return false
	}
	q.members[v] = struct{}{}
	q.items = append(q.items, v)
	return true
}

func (q *Queue[A]) Pop() (ret A, ok bool) {
	if len(q.items) == 0 {
		return ret, false
	}
	ret = q.items[0]
	var zero A
	q.items[0] = zero
	q.items = q.items[1:]
	delete(q.members, ret)
	return ret, true
}

func (q *Queue[A]) Contains(v A) bool {
	_, ok := q.members[v]
	return ok
}

func (q *Queue[A]) Len() int {
	return len(q.items)
}
