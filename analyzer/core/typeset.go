package core

import (
	"slices"

	"github.com/cottand/typeflow/util"
	"github.com/hashicorp/go-set/v3"
)

type typeEntry struct {
	typ Type
	// sources is nil for the types of a Source or a filter
	sources *set.Set[Upstream]
}

// typeSet holds types in insertion order. Types are bucketed by Hash and told
// apart with sameType inside a bucket.
type typeSet struct {
	buckets map[uint64][]*typeEntry
	order   *util.OrderedSet[*typeEntry]
}

func newTypeSet() typeSet {
	return typeSet{buckets: make(map[uint64][]*typeEntry), order: util.NewOrderedSet[*typeEntry]()}
}

func (s typeSet) len() int { return s.order.Len() }

func (s typeSet) get(t Type) (*typeEntry, bool) {
	for _, e := range s.buckets[t.Hash()] {
		if sameType(e.typ, t) {
			return e, true
		}
	}
	return nil, false
}

func (s typeSet) contains(t Type) bool {
	_, ok := s.get(t)
	return ok
}

// add returns the entry of t and whether it had to be created
func (s typeSet) add(t Type) (*typeEntry, bool) {
	if e, ok := s.get(t); ok {
		return e, false
	}
	e := &typeEntry{typ: t}
	h := t.Hash()
	s.buckets[h] = append(s.buckets[h], e)
	s.order.Insert(e)
	return e, true
}

func (s typeSet) remove(t Type) bool {
	h := t.Hash()
	bucket := s.buckets[h]
	for i, e := range bucket {
		if !sameType(e.typ, t) {
			continue
		}
		s.order.Remove(e)
		if len(bucket) == 1 {
			delete(s.buckets, h)
		} else {
			s.buckets[h] = slices.Delete(bucket, i, i+1)
		}
		return true
	}
	return false
}

func (s typeSet) types() []Type {
	types := make([]Type, 0, s.order.Len())
	for e := range s.order.Items() {
		types = append(types, e.typ)
	}
	return types
}
