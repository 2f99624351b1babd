// Package listener implements the accept loop: bind to a TCP port, spawn
// one worker goroutine per accepted connection, and drive each
// connection's request/response cycle through the codec and dispatcher.
package listener

import (
	"bufio"
	"net"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/dexgs/user-sites/internal/dispatch"
	"github.com/dexgs/user-sites/internal/httpio"
	"github.com/dexgs/user-sites/internal/log"
	"github.com/dexgs/user-sites/internal/metrics"
)

// Listener binds a TCP port and hands every accepted connection to one
// worker, carrying a shared Dispatcher handle.
type Listener struct {
	Dispatcher *dispatch.Dispatcher
	Logger     log.Logger
	Metrics    *metrics.Registry
}

// New constructs a Listener. logger/metricsRegistry may be nil.
func New(d *dispatch.Dispatcher, logger log.Logger, metricsRegistry *metrics.Registry) *Listener {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Listener{Dispatcher: d, Logger: logger, Metrics: metricsRegistry}
}

// Serve binds 0.0.0.0:<port> and accepts connections until Accept
// returns an error that is not a timeout. It never
// blocks on worker progress: each accepted connection is handed off to
// its own goroutine immediately.
func (l *Listener) Serve(port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return err
	}
	defer ln.Close()

	l.Logger.Info("listening", log.Int("port", port))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}

		go l.serveConn(conn)
	}
}

// serveConn runs exactly one request/response cycle (HTTP/1.0,
// connection-close) over conn, then closes it. Any error reading or
// writing is logged and ends this worker only, per spec.md §7's "network
// write failure mid-response" disposition.
func (l *Listener) serveConn(conn net.Conn) {
	requestID := xid.New().String()
	defer conn.Close()

	start := time.Now()
	reader := bufio.NewReader(conn)

	req, ok, err := httpio.ParseRequest(reader)
	if err != nil {
		l.Logger.Debug("request parse failed", log.RequestID(requestID), log.Err(err))
		return
	}
	if !ok {
		l.Logger.Debug("unsupported method, closing without a response", log.RequestID(requestID))
		return
	}

	var resp *dispatch.Response
	switch req.Method {
	case httpio.MethodGet:
		resp = l.Dispatcher.HandleGET(req)
	case httpio.MethodPost:
		resp = l.Dispatcher.HandlePOST(req)
	}

	if resp.Closer != nil {
		defer resp.Closer.Close()
	}

	written, err := httpio.WriteResponse(conn, resp.Status, resp.Headers, resp.Body, resp.ContentLength)
	if err != nil {
		l.Logger.Warn("response write failed",
			log.RequestID(requestID), log.Path(req.Path), log.Err(err))
		return
	}

	if l.Metrics != nil {
		l.Metrics.RequestDuration.Observe(float64(time.Since(start).Milliseconds()))
	}

	l.Logger.Debug("request served",
		log.RequestID(requestID),
		log.Method(req.Method.String()),
		log.Path(req.Path),
		log.Status(resp.Status),
		log.BytesField(int(written)),
		log.LatencyMs(time.Since(start)))
}

