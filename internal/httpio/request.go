// Package httpio implements the connection codec: parsing one HTTP/1.0
// request off a buffered stream and writing one response back to it.
// Nothing here knows about the filesystem or the dispatch rules; it only
// understands bytes on the wire.
package httpio

import (
	"bufio"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// Method is the small set of methods this server understands.
type Method int

const (
	// MethodUnsupported marks a request line this server will not act
	// on; the caller closes the connection without writing a response.
	MethodUnsupported Method = iota
	MethodGet
	MethodPost
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	default:
		return "UNSUPPORTED"
	}
}

// BodyKind classifies how a POST body was interpreted, mirroring the
// content-type dispatch spec.md describes for the codec.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyKeyValue
	BodyText
	BodyStream
)

// Request is the parsed form of one HTTP/1.0 request line plus headers
// plus (for POST) body.
type Request struct {
	Method  Method
	Path    string            // percent-decoded, not yet sandboxed
	Query   map[string]string // percent-decoded keys and values
	Headers map[string]string // lowercased keys, trimmed values

	BodyKind BodyKind
	BodyKV   map[string]string
	BodyText string
	// BodyStream is set only when BodyKind == BodyStream; it is the
	// still-open connection reader positioned right after the headers,
	// handed to the dispatcher so it can pipe the stream to a child
	// process's stdin without this package buffering it first.
	BodyStream io.Reader
}

// ParseRequest reads one request off r. It returns ok == false (with a
// nil error) for any method other than GET/POST, per spec.md's "no
// request" disposition for unsupported methods — the caller is expected
// to close the connection without writing anything back.
func ParseRequest(r *bufio.Reader) (req *Request, ok bool, err error) {
	methodTok, err := readToken(r, ' ')
	if err != nil {
		return nil, false, err
	}

	var method Method
	switch methodTok {
	case "GET":
		method = MethodGet
	case "POST":
		method = MethodPost
	default:
		// The rest of the request is left unread; the caller closes the
		// connection.
		return nil, false, nil
	}

	targetTok, err := readToken(r, ' ')
	if err != nil {
		return nil, false, err
	}

	// The version token and the CRLF that follows it are discarded, as
	// spec.md's request line description calls for.
	if _, err := r.ReadString('\n'); err != nil {
		return nil, false, err
	}

	path, query := parseTarget(targetTok)

	headers, err := readHeaders(r)
	if err != nil {
		return nil, false, err
	}

	req = &Request{
		Method:  method,
		Path:    path,
		Query:   query,
		Headers: headers,
	}

	if method == MethodPost {
		if err := readBody(r, req); err != nil {
			return nil, false, err
		}
	}

	return req, true, nil
}

// readToken reads bytes up to and including delim, returning everything
// before it.
func readToken(r *bufio.Reader, delim byte) (string, error) {
	tok, err := r.ReadString(delim)
	if err != nil {
		return "", err
	}

	return strings.TrimSuffix(tok, string(delim)), nil
}

// parseTarget splits a request target into its decoded path and decoded
// query map, per spec.md §4.1: split on the first '?', percent-decode the
// path, then parse the query string as '&'-separated 'key=value' pairs.
func parseTarget(target string) (path string, query map[string]string) {
	raw := target
	queryString := ""
	if i := strings.IndexByte(target, '?'); i >= 0 {
		raw = target[:i]
		queryString = target[i+1:]
	}

	path, ok := percentDecode(raw)
	if !ok {
		path = raw
	}

	return path, parseURLEncodedPairs(queryString)
}

// parseURLEncodedPairs parses an '&'-separated, '='-delimited key-value
// string, percent-decoding each side. A pair with no '=' becomes a key
// with an empty value. A side that fails to percent-decode causes the
// whole pair to be dropped silently, per spec.md.
func parseURLEncodedPairs(s string) map[string]string {
	result := make(map[string]string)
	if s == "" {
		return result
	}

	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}

		k, v, hasEq := strings.Cut(pair, "=")

		dk, ok := percentDecode(k)
		if !ok {
			continue
		}

		if !hasEq {
			result[dk] = ""
			continue
		}

		dv, ok := percentDecode(v)
		if !ok {
			continue
		}

		result[dk] = dv
	}

	return result
}

// percentDecode decodes %XX escapes only — unlike query-string decoding,
// '+' is never treated as a space, matching the decoder spec.md's source
// relies on for both the path and the query string.
func percentDecode(s string) (string, bool) {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return "", false
	}

	return decoded, true
}

// readHeaders reads header lines until a blank line, lowercasing keys and
// trimming values, splitting on the first ": " exactly as spec.md
// specifies.
func readHeaders(r *bufio.Reader) (map[string]string, error) {
	headers := make(map[string]string)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}

		k, v, ok := strings.Cut(trimmed, ": ")
		if !ok {
			continue
		}

		headers[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	return headers, nil
}

// readBody fills in req's body fields by content-type, per spec.md §4.1.
func readBody(r *bufio.Reader, req *Request) error {
	contentType := req.Headers["content-type"]

	switch {
	case strings.HasPrefix(contentType, "text/plain"):
		text, ok, err := readFixedBody(r, req.Headers)
		if err != nil {
			return err
		}
		if ok {
			req.BodyKind = BodyText
			req.BodyText = text
		}

	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		text, ok, err := readFixedBody(r, req.Headers)
		if err != nil {
			return err
		}
		if ok {
			req.BodyKind = BodyKeyValue
			req.BodyKV = parseURLEncodedPairs(text)
		}

	case strings.HasPrefix(contentType, "multipart/form-data"):
		req.BodyKind = BodyStream
		req.BodyStream = r

	default:
		req.BodyKind = BodyNone
	}

	return nil
}

// readFixedBody reads exactly content-length bytes and decodes them as
// UTF-8, lossily substituting invalid sequences rather than failing, per
// spec.md's "lossy is acceptable" allowance. It reports ok == false (no
// error) when content-length is absent or unparseable, since that maps
// to "no body" rather than a connection error.
func readFixedBody(r *bufio.Reader, headers map[string]string) (text string, ok bool, err error) {
	lengthStr, present := headers["content-length"]
	if !present {
		return "", false, nil
	}

	length, parseErr := strconv.Atoi(strings.TrimSpace(lengthStr))
	if parseErr != nil || length < 0 {
		return "", false, nil
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", false, err
	}

	return strings.ToValidUTF8(string(buf), "�"), true, nil
}
