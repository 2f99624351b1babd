// Package autoindex builds the paginated HTML directory listing the
// dispatcher falls back to when a directory has no index file of its
// own.
package autoindex

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Hidden control files are never listed and never counted toward
// pagination, matching spec.md §3's AutoindexEntry note.
var hiddenNames = map[string]bool{
	"header.html": true,
	"footer.html": true,
	"styles.css":  true,
	"title":       true,
}

// EntryFilter decides whether a directory entry should be considered at
// all. It runs after the hidden-name drop (it is never called for a
// hidden name) and before the sort. A nil filter admits every non-hidden
// entry.
type EntryFilter func(name string, isDir bool) bool

// Options configures one page render.
type Options struct {
	// HeaderOverride, when non-empty, wins over both the title file and
	// header.html for this directory (spec.md §4.3's "explicit override
	// wins" precedence).
	HeaderOverride string
	Filter         EntryFilter
	// PageSize of 0 means "no pagination": every entry on one page.
	PageSize int
	// PageNumber is zero-based internally, even though the query string
	// the dispatcher reads it from is one-based.
	PageNumber int
}

type entry struct {
	name    string
	isDir   bool
	modTime time.Time
	size    int64
}

// Generate renders the complete HTML document for dirPath under opts.
func Generate(dirPath string, opts Options) (string, error) {
	dirEntries, err := os.ReadDir(dirPath)
	if err != nil {
		return "", err
	}

	entries := make([]entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if hiddenNames[name] {
			continue
		}
		if opts.Filter != nil && !opts.Filter(name, de.IsDir()) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue
		}

		entries = append(entries, entry{
			name:    name,
			isDir:   de.IsDir(),
			modTime: info.ModTime(),
			size:    info.Size(),
		})
	}

	sortEntries(entries)

	display := displayPath(dirPath)
	title := resolveTitle(dirPath, opts.HeaderOverride, display)
	header := resolveHeader(dirPath, opts.HeaderOverride, display)

	body := header + renderEntries(entries, opts, display)

	if footer, ok := readTrimmed(filepath.Join(dirPath, "footer.html")); ok {
		body += footer
	}

	return envelope(title, body), nil
}

// sortEntries applies spec.md §4.3's sort: directories before files;
// within each group, newest (by modification time) first. sort.SliceStable
// keeps the result deterministic for identical filesystem state.
func sortEntries(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.isDir != b.isDir {
			return a.isDir
		}
		return a.modTime.After(b.modTime)
	})
}

// displayPath strips the first four path components (/, home, <user>,
// www), the hard-coded document-root convention spec.md §9 calls out.
func displayPath(path string) string {
	clean := filepath.Clean(path)
	parts := strings.Split(clean, string(filepath.Separator))
	if len(parts) <= 4 {
		return ""
	}
	return strings.Join(parts[4:], string(filepath.Separator))
}

func resolveTitle(dirPath, override, display string) string {
	if override != "" {
		return override
	}
	if title, ok := readTrimmed(filepath.Join(dirPath, "title")); ok {
		return title
	}
	return display
}

func resolveHeader(dirPath, override, display string) string {
	if override != "" {
		return fmt.Sprintf("<h1>%s</h1>", override)
	}
	if header, ok := readTrimmed(filepath.Join(dirPath, "header.html")); ok {
		return header
	}
	return fmt.Sprintf("<h1>%s</h1>", display)
}

func readTrimmed(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// renderEntries builds the <ol>/<li> listing and, when PageSize > 0, the
// <nav> pagination controls, per spec.md §4.3.
func renderEntries(entries []entry, opts Options, display string) string {
	var b strings.Builder

	if opts.PageSize <= 0 {
		b.WriteString(`<ol class="entries">`)
		for _, e := range entries {
			b.WriteString(renderEntry(e))
		}
		b.WriteString(`</ol>`)
		return b.String()
	}

	count := len(entries)
	numPages := int(math.Ceil(float64(count) / float64(opts.PageSize)))
	if numPages < 1 {
		numPages = 1
	}

	start := opts.PageNumber * opts.PageSize
	if start > count-1 {
		start = count - 1
	}
	if start < 0 {
		start = 0
	}

	end := start + opts.PageSize - 1
	if end > count-1 {
		end = count - 1
	}

	fmt.Fprintf(&b, `<ol start="%d" class="entries">`, start+1)
	if end >= start {
		for _, e := range entries[start : end+1] {
			b.WriteString(renderEntry(e))
		}
	}
	b.WriteString(`</ol>`)

	b.WriteString(renderNav(opts.PageNumber, opts.PageSize, numPages))

	return b.String()
}

func renderEntry(e entry) string {
	href := url.PathEscape(e.name)
	modified := e.modTime.Local().Format("02/01/2006 15:04:05")
	return fmt.Sprintf(
		`<li><a href="%s" data-modified="%s" data-size="%d">%s<br/></a></li>`,
		href, modified, e.size, e.name,
	)
}

func renderNav(pageNumber, pageSize, numPages int) string {
	var b strings.Builder
	b.WriteString("<nav>")

	if pageNumber > 0 {
		fmt.Fprintf(&b, `<a href="?p=%d&n=%d">Prev</a>`, pageNumber, pageSize)
	}
	if pageNumber < numPages-1 {
		fmt.Fprintf(&b, `<a href="?p=%d&n=%d">Next</a>`, pageNumber+2, pageSize)
	}

	fmt.Fprintf(&b,
		`<form><input type="number" name="p" min="1" max="%d" value="%d"/>`+
			`<input type="number" name="n" value="%d"/>`+
			`<button type="submit">Go</button></form>`,
		numPages, pageNumber+1, pageSize,
	)

	b.WriteString("</nav>")
	return b.String()
}

// envelope wraps body in the fixed autoindex page template from
// spec.md §4.3.
func envelope(title, body string) string {
	return `<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8"/><title>` +
		title + `</title><link rel="stylesheet" href="styles.css"/><base href="./"/></head><body>` +
		body + `</body></html>`
}

// ContainsWWWSubdir is the /home entry filter spec.md §4.5 calls for:
// admit only subdirectories that themselves contain a www/ subdirectory.
func ContainsWWWSubdir(homeDir string) EntryFilter {
	return func(name string, isDir bool) bool {
		if !isDir {
			return false
		}
		info, err := os.Stat(filepath.Join(homeDir, name, "www"))
		return err == nil && info.IsDir()
	}
}

// DefaultPageSize and DefaultPageNumberOneBased mirror spec.md §4.5's defaults for the query
// parameters the dispatcher reads before constructing Options: page
// size 0 (no pagination), page number 1 (one-based in the URL).
const (
	DefaultPageSize       = 0
	DefaultPageNumberOneBased = 1
)

// ParsePageParams converts the raw "n" and "p" query values (one-based
// page number) into the zero-based Options fields, defaulting invalid
// or missing values per spec.md §4.5.
func ParsePageParams(nStr, pStr string) (pageSize, pageNumber int) {
	pageSize = DefaultPageSize
	if n, err := strconv.Atoi(nStr); err == nil && n > 0 {
		pageSize = n
	}

	pageNumberOneBased := DefaultPageNumberOneBased
	if p, err := strconv.Atoi(pStr); err == nil && p > 0 {
		pageNumberOneBased = p
	}

	return pageSize, pageNumberOneBased - 1
}
