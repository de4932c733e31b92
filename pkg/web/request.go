package web

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/textproto"
	"strings"
)

var errMalformedRequest = errors.New("malformed request")

// parseRequest builds a request from the first bytes received on a
// connection. Only the request line must be complete; headers are parsed as
// far as they go, since the read buffer may cut them off.
func parseRequest(raw []byte) (*http.Request, error) {
	line, rest, found := bytes.Cut(raw, []byte("\n"))
	if !found {
		return nil, fmt.Errorf("%w: unterminated request line", errMalformedRequest)
	}
	line = bytes.TrimSuffix(line, []byte("\r"))

	method, target, proto, ok := splitRequestLine(string(line))
	if !ok {
		return nil, fmt.Errorf("%w: %q", errMalformedRequest, line)
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("%w: invalid method %q", errMalformedRequest, method)
	}
	if !strings.HasPrefix(target, "/") {
		return nil, fmt.Errorf("%w: invalid target %q", errMalformedRequest, target)
	}
	major, minor, ok := http.ParseHTTPVersion(proto)
	if !ok {
		return nil, fmt.Errorf("%w: invalid version %q", errMalformedRequest, proto)
	}

	req, err := http.NewRequest(method, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedRequest, err)
	}
	req.Proto, req.ProtoMajor, req.ProtoMinor = proto, major, minor
	req.RequestURI = target

	// A truncated header block still yields the complete fields before the cut.
	hdr, _ := textproto.NewReader(bufio.NewReader(bytes.NewReader(rest))).ReadMIMEHeader()
	if hdr != nil {
		req.Header = http.Header(hdr)
	}
	req.Host = req.Header.Get("Host")

	return req, nil
}

// newRequest synthesizes a request for cases where none could be read.
func newRequest(method, target string) *http.Request {
	req, _ := http.NewRequest(method, target, http.NoBody)
	req.RequestURI = target
	return req
}

func splitRequestLine(line string) (method, target, proto string, ok bool) {
	method, rest, ok1 := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 {
		return "", "", "", false
	}
	return method, target, proto, true
}

func validMethod(method string) bool {
	if method == "" {
		return false
	}
	for _, c := range method {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
