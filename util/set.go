package util

import (
	"container/list"
	"iter"
)

// OrderedSet is a set which remembers insertion order.
// Removal is O(1), iteration follows insertion order.
type OrderedSet[A comparable] struct {
	index map[A]*list.Element
	order *list.List
}

func NewOrderedSet[A comparable]() *OrderedSet[A] {
	return &OrderedSet[A]{
		index: make(map[A]*list.Element),
		order: list.New(),
	}
}

// Insert adds elem and reports whether it was not present before
func (s *OrderedSet[A]) Insert(elem A) bool {
	if _, ok := s.index[elem]; ok {
		return false
	}
	s.index[elem] = s.order.PushBack(elem)
	return true
}

// Remove deletes elem and reports whether it was present
func (s *OrderedSet[A]) Remove(elem A) bool {
	e, ok := s.index[elem]
	if !ok {
		return false
	}
	s.order.Remove(e)
	delete(s.index, elem)
	return true
}

func (s *OrderedSet[A]) Contains(elem A) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[elem]
	return ok
}

func (s *OrderedSet[A]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.index)
}

// Items iterates over a snapshot, so the set may be modified while iterating
func (s *OrderedSet[A]) Items() iter.Seq[A] {
	snapshot := s.Slice()
	return func(yield func(A) bool) {
		for _, elem := range snapshot {
			if !yield(elem) {
				return
			}
		}
	}
}

func (s *OrderedSet[A]) Slice() []A {
	if s == nil {
		return nil
	}
	slice := make([]A, 0, len(s.index))
	for e := s.order.Front(); e != nil; e = e.Next() {
		slice = append(slice, e.Value.(A))
	}
	return slice
}

func (s *OrderedSet[A]) Clear() {
	clear(s.index)
	s.order.Init()
}
