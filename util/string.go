package util

import (
	"fmt"
	"strings"
)

// JoinString renders every element with fmt and joins them with sep
func JoinString[A fmt.Stringer](elems []A, sep string) string {
	strs := make([]string, len(elems))
	for i, elem := range elems {
		strs[i] = elem.String()
	}
	return strings.Join(strs, sep)
}

// SplitPath turns "A::B::C" into its segments. The empty string and "Object" are the root path.
func SplitPath(path string) []string {
	path = strings.TrimPrefix(path, "::")
	if path == "" || path == "Object" {
		return nil
	}
	return strings.Split(path, "::")
}
