package httpio

import (
	"bufio"
	"strconv"
	"strings"
	"testing"
)

func TestParseRequestGetWithQuery(t *testing.T) {
	raw := "GET /alice/blog?p=2&n=10 HTTP/1.0\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
	req, ok, err := ParseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !ok {
		t.Fatal("expected ok == true for a GET request")
	}

	if req.Method != MethodGet {
		t.Errorf("Method = %v, want MethodGet", req.Method)
	}
	if req.Path != "/alice/blog" {
		t.Errorf("Path = %q, want /alice/blog", req.Path)
	}
	if req.Query["p"] != "2" || req.Query["n"] != "10" {
		t.Errorf("Query = %v, want p=2 n=10", req.Query)
	}
	if req.Headers["host"] != "example.com" {
		t.Errorf("Headers[host] = %q, want example.com", req.Headers["host"])
	}
}

func TestParseRequestUnsupportedMethod(t *testing.T) {
	raw := "DELETE /alice/blog HTTP/1.0\r\n\r\n"
	_, ok, err := ParseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if ok {
		t.Error("expected ok == false for an unsupported method")
	}
}

func TestParseRequestPercentDecodesPath(t *testing.T) {
	raw := "GET /alice/my%20page.html HTTP/1.0\r\n\r\n"
	req, ok, err := ParseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil || !ok {
		t.Fatalf("ParseRequest: ok=%v err=%v", ok, err)
	}
	if req.Path != "/alice/my page.html" {
		t.Errorf("Path = %q, want \"/alice/my page.html\"", req.Path)
	}
}

func TestParseRequestDropsBadPercentEncodingInQuery(t *testing.T) {
	raw := "GET /alice?good=1&bad=%zz HTTP/1.0\r\n\r\n"
	req, ok, err := ParseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil || !ok {
		t.Fatalf("ParseRequest: ok=%v err=%v", ok, err)
	}
	if req.Query["good"] != "1" {
		t.Errorf("Query[good] = %q, want 1", req.Query["good"])
	}
	if _, present := req.Query["bad"]; present {
		t.Error("expected the undecodable pair to be dropped")
	}
}

func TestParseRequestNoQueryLeavesEmptyMap(t *testing.T) {
	raw := "GET /alice/ HTTP/1.0\r\n\r\n"
	req, ok, err := ParseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil || !ok {
		t.Fatalf("ParseRequest: ok=%v err=%v", ok, err)
	}
	if len(req.Query) != 0 {
		t.Errorf("Query = %v, want empty", req.Query)
	}
}

func TestParseRequestPostKeyValueBody(t *testing.T) {
	body := "name=joe&PATH=evil"
	raw := "POST /alice/form HTTP/1.0\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	req, ok, err := ParseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil || !ok {
		t.Fatalf("ParseRequest: ok=%v err=%v", ok, err)
	}

	if req.BodyKind != BodyKeyValue {
		t.Fatalf("BodyKind = %v, want BodyKeyValue", req.BodyKind)
	}
	if req.BodyKV["name"] != "joe" || req.BodyKV["PATH"] != "evil" {
		t.Errorf("BodyKV = %v", req.BodyKV)
	}
}

func TestParseRequestPostTextBody(t *testing.T) {
	body := "hello world"
	raw := "POST /alice/echo HTTP/1.0\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	req, ok, err := ParseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil || !ok {
		t.Fatalf("ParseRequest: ok=%v err=%v", ok, err)
	}
	if req.BodyKind != BodyText || req.BodyText != body {
		t.Errorf("BodyText = %q, want %q", req.BodyText, body)
	}
}

func TestParseRequestPostMultipartLeavesStream(t *testing.T) {
	raw := "POST /alice/upload HTTP/1.0\r\n" +
		"Content-Type: multipart/form-data; boundary=xyz\r\n\r\n" +
		"--xyz\r\nraw bytes follow"

	req, ok, err := ParseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil || !ok {
		t.Fatalf("ParseRequest: ok=%v err=%v", ok, err)
	}
	if req.BodyKind != BodyStream {
		t.Fatalf("BodyKind = %v, want BodyStream", req.BodyKind)
	}
	if req.BodyStream == nil {
		t.Fatal("expected a non-nil BodyStream")
	}
}

func TestParseRequestPostUnknownContentTypeHasNoBody(t *testing.T) {
	raw := "POST /alice/x HTTP/1.0\r\nContent-Type: application/octet-stream\r\nContent-Length: 3\r\n\r\nabc"
	req, ok, err := ParseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil || !ok {
		t.Fatalf("ParseRequest: ok=%v err=%v", ok, err)
	}
	if req.BodyKind != BodyNone {
		t.Errorf("BodyKind = %v, want BodyNone", req.BodyKind)
	}
}
