package api

import (
	"strings"
)

// JoinURL concatenates base and path with exactly one slash between them.
func JoinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	path = strings.TrimLeft(path, "/")
	return base + "/" + path
}

// routeLabel collapses ids and emails out of a path so metric and span names
// keep a bounded cardinality: /wishlists/a@b.c/12 becomes /wishlists/{email}/{id}.
func routeLabel(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	segs := strings.Split(path, "/")
	for i, s := range segs {
		switch {
		case s == "":
		case strings.Contains(s, "@") || strings.Contains(s, "%40"):
			segs[i] = "{email}"
		case isDigits(s):
			segs[i] = "{id}"
		}
	}
	out := strings.Join(segs, "/")
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
