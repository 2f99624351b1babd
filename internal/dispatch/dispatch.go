package dispatch

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/dexgs/user-sites/internal/autoindex"
	"github.com/dexgs/user-sites/internal/errs"
	"github.com/dexgs/user-sites/internal/httpio"
	"github.com/dexgs/user-sites/internal/log"
	"github.com/dexgs/user-sites/internal/metrics"
	"github.com/dexgs/user-sites/internal/state"
	"github.com/dexgs/user-sites/internal/transclude"
)

// httpDateFormat is the format used for Last-Modified and compared
// against if-modified-since with plain string equality, per spec.md §9's
// preserved quirk.
const httpDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Response is what a dispatch call produces: a status code, any extra
// raw header lines, a body producer, its advertised length, and whether
// the caller must Close the body once it has been streamed (executable
// and transcluding-reader bodies own resources that need releasing).
type Response struct {
	Status        int
	Headers       []string
	Body          io.Reader
	ContentLength int64
	Closer        io.Closer
}

// Dispatcher wires the resolver, shared state, and handlers together. It
// holds no per-request state; one instance is shared by every worker.
type Dispatcher struct {
	State    *state.SharedState
	Logger   log.Logger
	Metrics  *metrics.Registry
	Upstream string
}

// New constructs a Dispatcher. logger and metricsRegistry may be nil-ish
// defaults (log.NewNoop(), a fresh metrics.Registry) when the caller
// doesn't need them wired.
func New(sharedState *state.SharedState, logger log.Logger, metricsRegistry *metrics.Registry, upstream string) *Dispatcher {
	return &Dispatcher{
		State:    sharedState,
		Logger:   logger,
		Metrics:  metricsRegistry,
		Upstream: upstream,
	}
}

// HandleGET implements spec.md §4.5's GET handler-selection logic end to
// end: redirect-to-slash, directory index probing, autoindex rendering,
// executable dispatch, conditional GET, and plain static-file streaming.
func (d *Dispatcher) HandleGET(req *httpio.Request) *Response {
	if d.Metrics != nil {
		d.Metrics.RequestsTotal.Inc()
	}

	resolved, _, _ := Resolve(req.Path)

	if isDir(resolved) && req.Path != "" && req.Path[len(req.Path)-1] != '/' {
		location := d.Upstream + req.Path + "/"
		return &Response{
			Status:        302,
			Headers:       []string{"Location: " + location},
			ContentLength: 0,
		}
	}

	kind, handlerPath := ClassifyGET(resolved)

	switch kind {
	case KindMissing:
		return d.errorResponse(errs.NotFound(resolved))

	case KindDirectoryExecutableIndex:
		return d.serveExecutableGET(req, handlerPath)

	case KindDirectoryStaticIndex:
		return d.serveStaticFile(req, handlerPath)

	case KindPlainDirectory:
		return d.serveAutoindex(resolved, req)

	case KindExecutableGet:
		return d.serveExecutableGET(req, handlerPath)

	case KindStaticFile:
		return d.serveStaticFile(req, handlerPath)

	default:
		return d.errorResponse(errs.Internal("unreachable classification", nil))
	}
}

// HandlePOST implements spec.md §4.5's POST path: always an executable,
// body interpretation by kind, whitelist filtering for key-value bodies.
func (d *Dispatcher) HandlePOST(req *httpio.Request) *Response {
	if d.Metrics != nil {
		d.Metrics.RequestsTotal.Inc()
	}

	resolved, _, _ := Resolve(req.Path)

	execPath, ok := FormExecutablePath(resolved)
	if !ok {
		return d.errorResponse(errs.NotFound(resolved))
	}

	opts := SpawnOptions{ExecutablePath: execPath}

	switch req.BodyKind {
	case httpio.BodyKeyValue:
		allowed := loadAllowedVariables(AllowedVariablesPath(execPath))
		opts.ExtraEnv = filterEnv(req.BodyKV, allowed)

	case httpio.BodyText:
		opts.ExtraArg = req.BodyText
		opts.HasExtraArg = true

	case httpio.BodyStream:
		opts.Stdin = req.BodyStream
	}

	return d.runExecutable(execPath, opts)
}

func (d *Dispatcher) serveExecutableGET(req *httpio.Request, execPath string) *Response {
	allowed := loadAllowedVariables(AllowedVariablesPath(execPath))
	extraEnv := filterEnv(req.Query, allowed)

	resp := d.runExecutable(execPath, SpawnOptions{ExecutablePath: execPath, ExtraEnv: extraEnv})
	if resp.Status == 200 {
		resp.Headers = append(resp.Headers, "Cache-Control: no-cache")
	}
	return resp
}

// runExecutable spawns opts.ExecutablePath and streams its stdout as the
// response body. accessPath goes through the same admission/lifecycle
// path as any static file or autoindex (spec.md line 29: the dispatcher
// consults shared state for admission "before branching by handler
// type") — an executable handler gets no carve-out from the concurrency
// cap just because its response isn't cached.
func (d *Dispatcher) runExecutable(accessPath string, opts SpawnOptions) *Response {
	if d.Metrics != nil {
		d.Metrics.ExecutableSpawnsTotal.Inc()
	}

	if _, err := d.State.Enter(accessPath); err != nil {
		return d.errorResponse(err)
	}
	leave := d.leaveFunc(accessPath)

	stdout, err := Spawn(opts)
	if err != nil {
		leave()
		if d.Logger != nil {
			d.Logger.Error("executable spawn failed", log.Err(err), log.Path(opts.ExecutablePath))
		}
		return d.errorResponse(errs.Internal("child spawn failed", err))
	}

	return &Response{
		Status:        200,
		ContentLength: httpio.UnknownLength,
		Body:          stdout,
		Closer:        onClose(func() { stdout.Close(); leave() }),
	}
}

func (d *Dispatcher) serveAutoindex(resolved string, req *httpio.Request) *Response {
	opts := autoindex.Options{}

	if IsHomeRoot(resolved) {
		opts.HeaderOverride = "People"
		opts.Filter = autoindex.ContainsWWWSubdir(DocumentRoot)
	}

	opts.PageSize, opts.PageNumber = autoindex.ParsePageParams(req.Query["n"], req.Query["p"])

	ordinal, err := d.State.Enter(resolved)
	if err != nil {
		return d.errorResponse(err)
	}
	leave := d.leaveFunc(resolved)

	if cached, ok := d.State.GetCache(resolved); ok {
		return &Response{
			Status:        200,
			Headers:       []string{"Cache-Control: max-age=30"},
			Body:          newByteReader(cached),
			ContentLength: int64(len(cached)),
			Closer:        onClose(leave),
		}
	}

	html, err := autoindex.Generate(resolved, opts)
	if err != nil {
		leave()
		return d.errorResponse(errs.Internal("autoindex generation failed", err))
	}

	d.State.TrySetCache(resolved, ordinal, []byte(html))

	return &Response{
		Status:        200,
		Headers:       []string{"Cache-Control: max-age=30"},
		Body:          newByteReader([]byte(html)),
		ContentLength: int64(len(html)),
		Closer:        onClose(leave),
	}
}

func (d *Dispatcher) serveStaticFile(req *httpio.Request, filePath string) *Response {
	ordinal, err := d.State.Enter(filePath)
	if err != nil {
		return d.errorResponse(err)
	}
	leave := d.leaveFunc(filePath)

	if cached, ok := d.State.GetCache(filePath); ok {
		return &Response{
			Status:        200,
			Headers:       []string{"Last-Modified: " + cachedModified(filePath), "Cache-Control: max-age=30"},
			Body:          newByteReader(cached),
			ContentLength: int64(len(cached)),
			Closer:        onClose(leave),
		}
	}

	info, err := os.Stat(filePath)
	if err != nil {
		leave()
		return d.errorResponse(errs.Internal("stat failed", err))
	}

	modified := info.ModTime().UTC().Format(httpDateFormat)
	if req.Headers["if-modified-since"] == modified {
		leave()
		return &Response{Status: 304, ContentLength: 0}
	}

	reader, err := transclude.New(filePath)
	if err != nil {
		leave()
		return d.errorResponse(errs.Internal("opening file failed", err))
	}

	size := reader.Size()

	if size < state.DefaultMaxCacheFileSize && !transclude.IsHTML(filePath) {
		// Small, non-HTML files have a known size up front: read them
		// fully so the cache policy (second-viewer install) has bytes
		// to work with instead of re-reading from disk on every hit.
		data, readErr := io.ReadAll(reader)
		reader.Close()
		if readErr != nil {
			leave()
			return d.errorResponse(errs.Internal("reading file failed", readErr))
		}

		d.State.TrySetCache(filePath, ordinal, data)

		return &Response{
			Status:        200,
			Headers:       []string{"Last-Modified: " + modified, "Cache-Control: max-age=30"},
			Body:          newByteReader(data),
			ContentLength: int64(len(data)),
			Closer:        onClose(leave),
		}
	}

	return &Response{
		Status:        200,
		Headers:       []string{"Last-Modified: " + modified, "Cache-Control: max-age=30"},
		Body:          reader,
		ContentLength: size,
		Closer:        onClose(func() { reader.Close(); leave() }),
	}
}

// leaveFunc returns a once-only callback that releases path's accessor
// slot. The caller runs it when the response body has been fully
// written (via the Response's Closer), not when the handler function
// returns — Leave's hysteresis hold must span the time the client is
// actually being served, not just the time spent building the response.
func (d *Dispatcher) leaveFunc(path string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { d.State.Leave(path) })
	}
}

// onClose adapts a plain callback into an io.Closer, for attaching
// cleanup (releasing an accessor slot, closing an underlying file) to a
// Response whose Body itself has nothing to close.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func onClose(fn func()) io.Closer {
	return closerFunc(func() error {
		fn()
		return nil
	})
}

// cachedModified recomputes the Last-Modified header for a cache hit. The
// cache stores only bytes, not the header, so this makes one more Stat
// call; if that fails (file removed out from under a live cache entry)
// it falls back to the current time rather than failing the response.
func cachedModified(filePath string) string {
	info, err := os.Stat(filePath)
	if err != nil {
		return time.Now().UTC().Format(httpDateFormat)
	}
	return info.ModTime().UTC().Format(httpDateFormat)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (d *Dispatcher) errorResponse(err error) *Response {
	if d.Metrics != nil && errs.IsUnavailable(err) {
		d.Metrics.AdmissionRejectsTotal.Inc()
	}

	status := errs.GetHTTPStatusCode(err)
	body := errs.GetResponseBody(err)

	return &Response{
		Status:        status,
		Body:          newByteReader(body),
		ContentLength: int64(len(body)),
	}
}

// byteReader is a small io.Reader over an in-memory slice, used for
// cached bytes and generated autoindex/error pages.
type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader {
	return &byteReader{data: data}
}

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}
