package middleware

import "strings"

// pathSet matches request paths exactly, or also every path below an
// entry when subtree is set.
type pathSet struct {
	exact   map[string]struct{}
	subtree bool
}

func newPathSet(paths []string, subtree bool) pathSet {
	ps := pathSet{exact: make(map[string]struct{}, len(paths)), subtree: subtree}
	for _, p := range paths {
		ps.exact[strings.TrimSuffix(p, "/")] = struct{}{}
	}
	return ps
}

func (ps pathSet) match(path string) bool {
	path = strings.TrimSuffix(path, "/")
	if _, ok := ps.exact[path]; ok {
		return true
	}
	if !ps.subtree {
		return false
	}
	for i := strings.LastIndexByte(path, '/'); i > 0; i = strings.LastIndexByte(path, '/') {
		path = path[:i]
		if _, ok := ps.exact[path]; ok {
			return true
		}
	}
	return false
}
