// Package dispatch resolves a request path to a filesystem location
// sandboxed under /home, classifies it, and carries out the static-file,
// autoindex, or executable handling spec.md §4.5 describes.
package dispatch

import (
	"path"
	"strings"
)

// DocumentRoot is the convention spec.md §4.5 and §9 build on: every
// user's site lives at <DocumentRoot>/<user>/www. It defaults to /home
// but is a var, not a const, so tests can point it at a temporary
// directory instead of touching the real filesystem root.
var DocumentRoot = "/home"

// Resolve maps a decoded URL path onto a filesystem path under
// DocumentRoot. Parent-directory components are dropped outright, which
// alone makes escape impossible: the result can never ascend past
// DocumentRoot regardless of how many ".." segments the URL contained.
func Resolve(urlPath string) (resolved string, username string, tail string) {
	parts := strings.Split(urlPath, "/")
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == ".." {
			continue
		}
		kept = append(kept, p)
	}

	if len(kept) == 0 {
		return DocumentRoot, "", ""
	}

	username = kept[0]
	tailParts := kept[1:]
	tail = strings.Join(tailParts, "/")

	segments := append([]string{DocumentRoot, username, "www"}, tailParts...)
	return path.Join(segments...), username, tail
}
