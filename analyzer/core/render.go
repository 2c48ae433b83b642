package core

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"
	sortedset "github.com/xtgo/set"
)

// showState guards rendering against types that contain themselves,
// like an array that was pushed into itself
type showState struct {
	visiting *set.Set[int]
}

func newShowState() *showState {
	return &showState{visiting: set.New[int](4)}
}

func showVertex(v BasicVertex, s *showState) string {
	if v == nil {
		return "untyped"
	}
	if s.visiting.Contains(v.ID()) {
		return "untyped"
	}
	s.visiting.Insert(v.ID())
	defer s.visiting.Remove(v.ID())
	return showTypes(v.Types(), s)
}

// ShowTypes renders a union the way declarations are printed:
// nil makes the rest optional, true and false collapse into bool.
func ShowTypes(types []Type) string {
	return showTypes(types, newShowState())
}

func showTypes(types []Type, s *showState) string {
	if len(types) == 0 {
		return "untyped"
	}
	var hasNil, hasTrue, hasFalse, hasBot bool
	strs := make([]string, 0, len(types))
	for _, t := range types {
		if inst, ok := t.(*Instance); ok {
			switch inst.Mod.PathString() {
			case "NilClass":
				hasNil = true
				continue
			case "TrueClass":
				hasTrue = true
				continue
			case "FalseClass":
				hasFalse = true
				continue
			}
		}
		if _, ok := t.(*Bot); ok {
			hasBot = true
			continue
		}
		strs = append(strs, t.show(s))
	}
	switch {
	case hasTrue && hasFalse:
		strs = append(strs, "bool")
	case hasTrue:
		strs = append(strs, "true")
	case hasFalse:
		strs = append(strs, "false")
	}
	sort.Strings(strs)
	strs = strs[:sortedset.Uniq(sort.StringSlice(strs))]

	switch {
	case len(strs) == 0 && hasNil:
		return "nil"
	case len(strs) == 0 && hasBot:
		return "bot"
	case len(strs) == 0:
		return "untyped"
	}
	union := strings.Join(strs, " | ")
	if !hasNil {
		return union
	}
	if len(strs) > 1 {
		return "(" + union + ")?"
	}
	return union + "?"
}
