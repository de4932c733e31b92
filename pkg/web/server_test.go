package web

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/history"
	"github.com/itohio/envmon/pkg/metrics"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Port:           0,
		AcceptTimeout:  20 * time.Millisecond,
		ConnTimeout:    100 * time.Millisecond,
		ReadBufferSize: 1024,
	}
}

func newTestServer(snap Snapshotter) *Server {
	return NewServer(testServerConfig(), NewRouter(snap, metrics.New(), nil))
}

// roundTrip runs Handle on one end of a pipe and returns what the client
// received after sending raw.
func roundTrip(t *testing.T, s *Server, raw string) (*http.Response, []byte) {
	t.Helper()

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Handle(server)
	}()

	if raw != "" {
		_, err := client.Write([]byte(raw))
		require.NoError(t, err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(client), nil)
	require.NoError(t, err)
	body := readBody(t, resp)
	<-done
	client.Close()
	return resp, body
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantData bool
	}{
		{name: "data request", raw: "GET /datos HTTP/1.1\r\nHost: envmon\r\n\r\n", wantData: true},
		{name: "page request", raw: "GET / HTTP/1.1\r\nHost: envmon\r\n\r\n"},
		{name: "malformed request", raw: "hello\r\n"},
		{name: "unknown path", raw: "GET /index.html HTTP/1.1\r\n\r\n"},
		{name: "plain options", raw: "OPTIONS /datos HTTP/1.1\r\nHost: envmon\r\n\r\n"},
		{name: "silent client", raw: "", wantData: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(staticHistory(samples(history.Capacity)))
			resp, body := roundTrip(t, s, tt.raw)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.True(t, resp.Close, "connection must be closed after the response")
			assert.EqualValues(t, len(body), resp.ContentLength)

			if !tt.wantData {
				assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
				assert.Equal(t, Page(), body)
				return
			}

			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
			var p Payload
			require.NoError(t, json.Unmarshal(body, &p))
			assert.Len(t, p.Temperatures, history.Capacity)
			assert.InDelta(t, 21.9, p.Temperature, 1e-9)
		})
	}
}

func TestHandle_Preflight(t *testing.T) {
	s := newTestServer(staticHistory(samples(1)))
	resp, body := roundTrip(t, s, "OPTIONS /datos HTTP/1.1\r\nHost: envmon\r\n"+
		"Origin: http://example.com\r\nAccess-Control-Request-Method: GET\r\n\r\n")

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, body)
}

// A request line cut off by the read buffer cannot be parsed and gets the page.
func TestHandle_RequestLineLongerThanBuffer(t *testing.T) {
	s := newTestServer(staticHistory(samples(1)))

	client, server := net.Pipe()
	defer client.Close()
	go func() {
		// Fails once the server closes its end with the rest unread.
		client.Write([]byte("GET /datos?q=" + strings.Repeat("x", 2048) + " HTTP/1.1\r\n\r\n"))
	}()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Handle(server)
	}()

	resp, err := http.ReadResponse(bufio.NewReader(client), nil)
	require.NoError(t, err)
	body := readBody(t, resp)
	<-done

	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, Page(), body)
}

func TestHandle_EmptyHistory(t *testing.T) {
	s := newTestServer(staticHistory(nil))
	_, body := roundTrip(t, s, "GET /datos HTTP/1.1\r\n\r\n")

	assert.JSONEq(t,
		`{"temperatura_actual":0,"humedad_actual":0,"temperaturas":[],"humedades":[],"timestamps":[]}`,
		string(body))
}

func TestHandle_WriteFailure(t *testing.T) {
	s := newTestServer(staticHistory(samples(1)))
	failures := 0
	s.OnWriteError = func() { failures++ }

	client, server := net.Pipe()
	go func() {
		client.Write([]byte("GET /datos HTTP/1.1\r\n\r\n"))
		client.Close()
	}()

	s.Handle(server)
	assert.Equal(t, 1, failures)
}

func TestHandle_ClientGone(t *testing.T) {
	s := newTestServer(staticHistory(nil))
	failures := 0
	s.OnWriteError = func() { failures++ }

	client, server := net.Pipe()
	client.Close()

	assert.NotPanics(t, func() { s.Handle(server) })
	assert.Equal(t, 1, failures)
}

func TestServer_Accept(t *testing.T) {
	s := newTestServer(staticHistory(samples(2)))

	_, err := s.Accept()
	assert.ErrorIs(t, err, ErrNotListening)
	assert.Nil(t, s.Addr())

	require.NoError(t, s.Listen(net.IPv4(127, 0, 0, 1)))
	defer s.Close()
	assert.Error(t, s.Listen(net.IPv4(127, 0, 0, 1)))

	start := time.Now()
	_, err = s.Accept()
	assert.ErrorIs(t, err, ErrNoConnection)
	assert.Less(t, time.Since(start), time.Second)

	client, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte("GET /datos HTTP/1.1\r\nHost: envmon\r\n\r\n"))
	require.NoError(t, err)

	conn, err := s.Accept()
	require.NoError(t, err)
	s.Handle(conn)

	resp, err := http.ReadResponse(bufio.NewReader(client), nil)
	require.NoError(t, err)
	var p Payload
	require.NoError(t, json.Unmarshal(readBody(t, resp), &p))
	assert.Len(t, p.Timestamps, 2)
}

func TestServer_CloseIdempotent(t *testing.T) {
	s := newTestServer(staticHistory(nil))
	require.NoError(t, s.Listen(net.IPv4(127, 0, 0, 1)))

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	_, err := s.Accept()
	assert.ErrorIs(t, err, ErrNotListening)
}
