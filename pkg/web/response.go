package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// responseBuffer collects a handler's response so it can be sent in one
// write with Content-Length and Connection: close.
type responseBuffer struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{header: make(http.Header)}
}

func (r *responseBuffer) Header() http.Header {
	return r.header
}

func (r *responseBuffer) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *responseBuffer) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(p)
}

// Status returns the response status, 200 if none was set.
func (r *responseBuffer) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// WriteTo writes the status line, headers and body to w.
func (r *responseBuffer) WriteTo(w io.Writer) (int64, error) {
	status := r.Status()

	r.header.Set("Content-Length", strconv.Itoa(r.body.Len()))
	r.header.Set("Connection", "close")

	var out bytes.Buffer
	fmt.Fprintf(&out, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	if err := r.header.Write(&out); err != nil {
		return 0, err
	}
	out.WriteString("\r\n")
	out.Write(r.body.Bytes())

	return out.WriteTo(w)
}
