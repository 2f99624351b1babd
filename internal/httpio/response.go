package httpio

import (
	"io"
	"math"
	"strconv"
)

// chunkSize is the fixed buffer size the response writer copies through,
// matching the original implementation's chunked-write loop.
const chunkSize = 4096

// UnknownLength is reported as Content-Length when the true size of a
// streamed body (executable output, a transcluding HTML reader) cannot
// be known in advance. spec.md calls this out explicitly as a deliberate
// misreporting that HTTP/1.0 connection-close delivery tolerates.
const UnknownLength = math.MaxInt64

// StatusLine maps a status code to its reason phrase, for the small set
// this server ever emits.
func StatusLine(code int) string {
	switch code {
	case 200:
		return "200 OK"
	case 302:
		return "302 Found"
	case 304:
		return "304 Not Modified"
	case 404:
		return "404 Not Found"
	case 500:
		return "500 Internal Server Error"
	case 503:
		return "503 Service Unavailable"
	default:
		return "500 Internal Server Error"
	}
}

// WriteResponse writes one complete HTTP/1.0 response to w: a status
// line, a mandatory Content-Length, the caller's raw extra header lines,
// the blank-line terminator, then body copied through in chunkSize
// pieces. contentLength is never validated against the bytes body
// actually yields — the caller may pass UnknownLength intentionally, per
// spec.md §4.1. It returns the total number of bytes written.
func WriteResponse(w io.Writer, status int, extraHeaders []string, body io.Reader, contentLength int64) (int64, error) {
	var written int64

	n, err := io.WriteString(w, "HTTP/1.0 "+StatusLine(status)+"\r\n")
	written += int64(n)
	if err != nil {
		return written, err
	}

	n, err = io.WriteString(w, "Content-Length: "+strconv.FormatInt(contentLength, 10)+"\r\n")
	written += int64(n)
	if err != nil {
		return written, err
	}

	for _, h := range extraHeaders {
		n, err = io.WriteString(w, h+"\r\n")
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	n, err = io.WriteString(w, "\r\n")
	written += int64(n)
	if err != nil {
		return written, err
	}

	if body == nil {
		return written, nil
	}

	buf := make([]byte, chunkSize)
	for {
		rn, rerr := body.Read(buf)
		if rn > 0 {
			wn, werr := w.Write(buf[:rn])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, rerr
		}
	}

	return written, nil
}
