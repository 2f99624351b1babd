package dispatch

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexgs/user-sites/internal/httpio"
	"github.com/dexgs/user-sites/internal/state"
)

// withHomeRoot points DocumentRoot at a fresh temp directory for the
// duration of one test and restores it afterward. Dispatch-level tests
// need this since DocumentRoot defaults to the real /home.
func withHomeRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := DocumentRoot
	DocumentRoot = dir
	t.Cleanup(func() { DocumentRoot = old })
	return dir
}

func newTestDispatcher(upstream string) *Dispatcher {
	s := state.New()
	s.HysteresisHold = 0
	return New(s, nil, nil, upstream)
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWriteFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readBody(t *testing.T, resp *Response) string {
	t.Helper()
	if resp.Body == nil {
		return ""
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if resp.Closer != nil {
		resp.Closer.Close()
	}
	return string(data)
}

func TestHandleGETServesIndexHTML(t *testing.T) {
	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www")
	mustMkdirAll(t, www)
	mustWriteFile(t, filepath.Join(www, "index.html"), "<p>hello</p>")

	d := newTestDispatcher("http://example.test")
	req := &httpio.Request{Path: "/alice/"}

	resp := d.HandleGET(req)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "<p>hello</p>", readBody(t, resp))
}

func TestHandleGETRedirectsDirectoryWithoutTrailingSlash(t *testing.T) {
	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www")
	mustMkdirAll(t, www)
	mustWriteFile(t, filepath.Join(www, "index.html"), "hi")

	d := newTestDispatcher("http://example.test")
	req := &httpio.Request{Path: "/alice"}

	resp := d.HandleGET(req)
	require.Equal(t, 302, resp.Status)
	assert.Contains(t, resp.Headers, "Location: http://example.test/alice/")
}

func TestHandleGETMissingPathIs404(t *testing.T) {
	withHomeRoot(t)

	d := newTestDispatcher("http://example.test")
	req := &httpio.Request{Path: "/nobody/missing.txt"}

	resp := d.HandleGET(req)
	require.Equal(t, 404, resp.Status)
	assert.Contains(t, readBody(t, resp), "does not exist")
}

func TestHandleGETServesPlainDirectoryAsAutoindex(t *testing.T) {
	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www", "files")
	mustMkdirAll(t, www)
	mustWriteFile(t, filepath.Join(www, "a.txt"), "a")

	d := newTestDispatcher("http://example.test")
	req := &httpio.Request{Path: "/alice/files/", Query: map[string]string{}}

	resp := d.HandleGET(req)
	require.Equal(t, 200, resp.Status)
	assert.Contains(t, readBody(t, resp), "a.txt")
}

func TestHandleGETConditionalGetReturns304(t *testing.T) {
	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www")
	mustMkdirAll(t, www)
	mustWriteFile(t, filepath.Join(www, "plain.txt"), "data")

	d := newTestDispatcher("http://example.test")

	first := d.HandleGET(&httpio.Request{Path: "/alice/plain.txt", Headers: map[string]string{}})
	require.Equal(t, 200, first.Status)
	var lastModified string
	for _, h := range first.Headers {
		if strings.HasPrefix(h, "Last-Modified: ") {
			lastModified = strings.TrimPrefix(h, "Last-Modified: ")
		}
	}
	require.NotEmpty(t, lastModified, "expected a Last-Modified header on the first response")
	readBody(t, first)

	second := d.HandleGET(&httpio.Request{
		Path:    "/alice/plain.txt",
		Headers: map[string]string{"if-modified-since": lastModified},
	})
	assert.Equal(t, 304, second.Status)
}

func TestHandleGETTranscludesHTML(t *testing.T) {
	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www")
	mustMkdirAll(t, www)
	mustWriteFile(t, filepath.Join(www, "snippet.html"), "world")
	mustWriteFile(t, filepath.Join(www, "page.html"), "hello {snippet.html}")

	d := newTestDispatcher("http://example.test")
	resp := d.HandleGET(&httpio.Request{Path: "/alice/page.html", Headers: map[string]string{}})
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "hello world", readBody(t, resp))
}

func TestHandleGETCannotEscapeDocumentRoot(t *testing.T) {
	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www")
	mustMkdirAll(t, www)
	mustWriteFile(t, filepath.Join(www, "index.html"), "site")

	secretDir := t.TempDir()
	mustWriteFile(t, filepath.Join(secretDir, "secret.txt"), "do not serve")

	d := newTestDispatcher("http://example.test")

	// A request path loaded with ".." segments cannot reach outside
	// DocumentRoot: every ".." component is dropped by Resolve, never
	// walked up the tree.
	resp := d.HandleGET(&httpio.Request{Path: "/alice/../../../../etc/passwd"})
	assert.Equal(t, 404, resp.Status, "escape attempt must not succeed")
}

func TestHandleGETAdmissionControlRejectsOverCap(t *testing.T) {
	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www")
	mustMkdirAll(t, www)
	mustWriteFile(t, filepath.Join(www, "index.html"), "hi")

	sharedState := state.New()
	sharedState.MaxConcurrentAccessors = 1
	sharedState.HysteresisHold = 0

	d := New(sharedState, nil, nil, "http://example.test")

	resolved := filepath.Join(www, "index.html")
	_, err := sharedState.Enter(resolved)
	require.NoError(t, err, "priming Enter")
	defer sharedState.Leave(resolved)

	resp := d.HandleGET(&httpio.Request{Path: "/alice/"})
	assert.Equal(t, 503, resp.Status)
}

func TestHandlePOSTRunsFormExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("spawns a unix shell script")
	}

	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www")
	mustMkdirAll(t, www)

	script := "#!/bin/sh\necho -n posted\n"
	scriptPath := filepath.Join(www, "form_executable")
	mustWriteFile(t, scriptPath, script)
	require.NoError(t, os.Chmod(scriptPath, 0o755))

	d := newTestDispatcher("http://example.test")
	req := &httpio.Request{
		Path:     "/alice/",
		BodyKind: httpio.BodyText,
		BodyText: "ignored by this script",
	}

	resp := d.HandlePOST(req)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "posted", readBody(t, resp))
}

func TestHandlePOSTFormKeyValueFiltersEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("spawns a unix shell script")
	}

	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www")
	mustMkdirAll(t, www)

	script := "#!/bin/sh\nprintf '%s,%s' \"$Color\" \"${Blocked:-absent}\"\n"
	scriptPath := filepath.Join(www, "form_executable")
	mustWriteFile(t, scriptPath, script)
	require.NoError(t, os.Chmod(scriptPath, 0o755))
	mustWriteFile(t, filepath.Join(www, "allowed_variables"), "Color\n")

	d := newTestDispatcher("http://example.test")
	req := &httpio.Request{
		Path:     "/alice/",
		BodyKind: httpio.BodyKeyValue,
		BodyKV:   map[string]string{"Color": "blue", "Blocked": "should not pass"},
	}

	resp := d.HandlePOST(req)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "blue,absent", readBody(t, resp))
}

func TestHandlePOSTMissingFormExecutableIs404(t *testing.T) {
	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www")
	mustMkdirAll(t, www)

	d := newTestDispatcher("http://example.test")
	resp := d.HandlePOST(&httpio.Request{Path: "/alice/"})
	assert.Equal(t, 404, resp.Status)
}

func TestHandleGETExecutableIndexReceivesFilteredEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("spawns a unix shell script")
	}

	home := withHomeRoot(t)
	www := filepath.Join(home, "alice", "www")
	mustMkdirAll(t, www)

	// Greeting is mixed-case, not ALL_CAPS: filterEnv drops any key that
	// equals its own upper-case form before the whitelist is even
	// consulted, so an already-uppercase name could never reach here.
	script := "#!/bin/sh\nprintf '%s' \"$Greeting\"\n"
	scriptPath := filepath.Join(www, "index_executable")
	mustWriteFile(t, scriptPath, script)
	require.NoError(t, os.Chmod(scriptPath, 0o755))
	mustWriteFile(t, filepath.Join(www, "allowed_variables"), "Greeting\n")

	d := newTestDispatcher("http://example.test")
	req := &httpio.Request{
		Path:  "/alice/",
		Query: map[string]string{"Greeting": "hi there"},
	}

	resp := d.HandleGET(req)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "hi there", readBody(t, resp))
}
