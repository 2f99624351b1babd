// Package transclude adapts a filesystem path into a byte producer that,
// for HTML files, inlines `{path}` include directives as it streams,
// without ever buffering the whole expanded document in memory.
package transclude

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxDepth bounds how many nested includes may be open at once. A file
// that would need an 11th frame simply cannot be pushed; see push.
const MaxDepth = 10

const (
	startByte  = '{'
	endByte    = '}'
	escapeByte = '\\'
)

// escapeResult is what one byte means given the run of backslashes seen
// immediately before it.
type escapeResult int

const (
	resultParse escapeResult = iota
	resultNoParse
	resultSkip
)

// escapeCounter implements the escape law from spec.md §4.2: an even run
// of backslashes lets a sentinel byte be parsed, or drops the backslash
// itself; an odd run forces the following byte out as a literal.
type escapeCounter struct {
	consecutive int
}

func (e *escapeCounter) next(b byte) escapeResult {
	var r escapeResult
	if e.consecutive%2 == 0 {
		if b == escapeByte {
			r = resultSkip
		} else {
			r = resultParse
		}
	} else {
		r = resultNoParse
	}

	if b == escapeByte {
		e.consecutive++
	} else {
		e.consecutive = 0
	}

	return r
}

// frame is one open file in the include stack.
type frame struct {
	file   *os.File
	br     *bufio.Reader
	dir    string // parent directory, for resolving relative includes
	html   bool
	ec     escapeCounter
}

// Reader is a pull-based byte producer over a stack of include frames.
// The top frame is read from; on EOF it is popped and its parent resumes.
type Reader struct {
	frames []*frame
	// pending holds literal bytes of a failed directive that did not fit
	// in the caller's buffer; they are returned before anything else.
	pending []byte
}

// IsHTML reports whether path's extension is "html", case-insensitively —
// the only condition under which transclusion is attempted.
func IsHTML(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return strings.EqualFold(ext, "html")
}

// New opens path as the root of a transcluding reader. Non-HTML paths are
// a pass-through over the raw file.
func New(path string) (*Reader, error) {
	r := &Reader{}
	if err := r.push(path); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Reader) push(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	if len(r.frames) >= MaxDepth {
		// At the depth cap the include is silently dropped: the file is
		// not pushed, so the directive renders as nothing and the
		// parent frame simply resumes past it. No error is reported —
		// this is not a fault, just the bound from spec.md §3 being hit.
		f.Close()
		return nil
	}

	r.frames = append(r.frames, &frame{
		file: f,
		br:   bufio.NewReader(f),
		dir:  filepath.Dir(path),
		html: IsHTML(path),
	})

	return nil
}

// Close releases every open frame. Safe to call more than once.
func (r *Reader) Close() error {
	var firstErr error
	for _, fr := range r.frames {
		if err := fr.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.frames = nil

	return firstErr
}

func (r *Reader) pop() {
	top := r.frames[len(r.frames)-1]
	top.file.Close()
	r.frames = r.frames[:len(r.frames)-1]
}

// Read implements io.Reader. It returns io.EOF once every frame has been
// exhausted and popped.
func (r *Reader) Read(p []byte) (int, error) {
	written := 0

	for written < len(p) {
		if len(r.pending) > 0 {
			n := copy(p[written:], r.pending)
			written += n
			r.pending = r.pending[n:]
			continue
		}

		if len(r.frames) == 0 {
			if written > 0 {
				return written, nil
			}
			return 0, io.EOF
		}

		top := r.frames[len(r.frames)-1]

		if !top.html {
			n, err := top.br.Read(p[written:])
			written += n
			if err == io.EOF {
				r.pop()
				continue
			}
			if err != nil {
				return written, err
			}
			if n == 0 {
				continue
			}
			continue
		}

		b, err := top.br.ReadByte()
		if err == io.EOF {
			r.pop()
			continue
		}
		if err != nil {
			return written, err
		}

		switch top.ec.next(b) {
		case resultSkip:
			// backslash dropped, nothing emitted

		case resultNoParse:
			p[written] = b
			written++

		case resultParse:
			if b != startByte {
				p[written] = b
				written++
				continue
			}

			literal, ok := r.expandInclude(top)
			if ok {
				// A new frame is now on top; resume the outer loop so the
				// next iteration reads from it.
				continue
			}

			// Whatever does not fit in p is kept in pending for the
			// next iteration or the next Read call.
			n := copy(p[written:], literal)
			written += n
			r.pending = literal[n:]
		}
	}

	return written, nil
}

// expandInclude is called right after an unescaped '{' has been consumed
// from top. It collects bytes (honoring the same escape rules, via a
// fresh counter scoped to the directive) until an unescaped '}' or EOF.
// If the collected text names a file that exists and can be opened, it
// reports ok == true and nothing is emitted for the directive itself:
// with room on the stack the new frame's content takes its place, and at
// MaxDepth push drops the include, so the directive renders as nothing.
// Otherwise it reports ok == false along with the literal bytes the
// directive should render as instead (the '{', the collected text, and
// the '}' if one was found), per spec.md's literal-fallback rule.
func (r *Reader) expandInclude(top *frame) (literal []byte, ok bool) {
	var inner []byte
	var ec escapeCounter
	closed := false

	for {
		b, err := top.br.ReadByte()
		if err != nil {
			break
		}

		switch ec.next(b) {
		case resultSkip:
			// dropped

		case resultNoParse:
			inner = append(inner, b)

		case resultParse:
			if b == endByte {
				closed = true
			} else {
				inner = append(inner, b)
			}
		}

		if closed {
			break
		}
	}

	literal = append([]byte{startByte}, inner...)
	if closed {
		literal = append(literal, endByte)
	}

	if !closed {
		return literal, false
	}

	target := string(inner)
	if !filepath.IsAbs(target) {
		target = filepath.Join(top.dir, target)
	}

	if _, err := os.Stat(target); err != nil {
		return literal, false
	}

	if err := r.push(target); err != nil {
		return literal, false
	}

	return nil, true
}

// Size reports the Content-Length this reader's root file should be
// advertised with. A non-HTML file reports its true on-disk size; an
// HTML file (transclusion enabled) reports httpio.UnknownLength's value
// directly, since the expanded size cannot be known without a full
// traversal.
func (r *Reader) Size() int64 {
	if len(r.frames) == 0 {
		return 0
	}

	root := r.frames[0]
	if root.html {
		return unknownLength
	}

	info, err := root.file.Stat()
	if err != nil {
		return unknownLength
	}

	return info.Size()
}

// unknownLength mirrors httpio.UnknownLength without importing that
// package, keeping transclude free of any codec dependency.
const unknownLength = 1<<63 - 1
