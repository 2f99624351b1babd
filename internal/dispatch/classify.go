package dispatch

import (
	"os"
	"path/filepath"
)

// Kind is the handler classification spec.md §3 names.
type Kind int

const (
	KindMissing Kind = iota
	KindDirectoryExecutableIndex
	KindDirectoryStaticIndex
	KindPlainDirectory
	KindExecutableGet
	KindStaticFile
)

const (
	indexExecutableName = "index_executable"
	indexHTMLName       = "index.html"
	formExecutableName  = "form_executable"
	allowedVariablesName = "allowed_variables"
)

// ClassifyGET is a pure function of the resolved path's existence,
// file-vs-directory status, and name, per spec.md §3/§4.5.
func ClassifyGET(resolvedPath string) (Kind, string) {
	base := filepath.Base(resolvedPath)
	if base == formExecutableName || base == allowedVariablesName {
		return KindMissing, ""
	}

	info, err := os.Stat(resolvedPath)
	if err != nil {
		return KindMissing, ""
	}

	if info.IsDir() {
		indexExec := filepath.Join(resolvedPath, indexExecutableName)
		if fi, err := os.Stat(indexExec); err == nil && fi.Mode().IsRegular() {
			return KindDirectoryExecutableIndex, indexExec
		}

		indexHTML := filepath.Join(resolvedPath, indexHTMLName)
		if fi, err := os.Stat(indexHTML); err == nil && fi.Mode().IsRegular() {
			return KindDirectoryStaticIndex, indexHTML
		}

		return KindPlainDirectory, resolvedPath
	}

	if base == indexExecutableName {
		return KindExecutableGet, resolvedPath
	}

	return KindStaticFile, resolvedPath
}

// FormExecutablePath appends form_executable to a directory path, the
// POST handler lookup spec.md §4.5 describes.
func FormExecutablePath(resolvedPath string) (string, bool) {
	info, err := os.Stat(resolvedPath)
	if err != nil {
		return "", false
	}

	target := resolvedPath
	if info.IsDir() {
		target = filepath.Join(resolvedPath, formExecutableName)
	}

	fi, err := os.Stat(target)
	if err != nil || !fi.Mode().IsRegular() {
		return "", false
	}

	return target, true
}

// AllowedVariablesPath returns the sibling allowed_variables file next to
// an executable handler's path.
func AllowedVariablesPath(executablePath string) string {
	return filepath.Join(filepath.Dir(executablePath), allowedVariablesName)
}

// IsHomeRoot reports whether resolvedPath is exactly /home — the case
// spec.md §4.5 special-cases with the "People" header and the
// www-subdirectory filter.
func IsHomeRoot(resolvedPath string) bool {
	return filepath.Clean(resolvedPath) == DocumentRoot
}
