// Package web implements the single-threaded HTTP responder: a time-boxed
// accept, one bounded read per connection, and one complete response.
package web

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/itohio/envmon/pkg/config"
)

var (
	// ErrNoConnection is returned by Accept when no client arrived within the
	// accept timeout.
	ErrNoConnection = errors.New("no pending connection")
	// ErrNotListening is returned by Accept before Listen.
	ErrNotListening = errors.New("server is not listening")
)

type deadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// Server accepts and handles one connection at a time on the calling
// goroutine.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler

	listener deadlineListener
	buf      []byte

	// OnWriteError is called when a response could not be sent.
	OnWriteError func()
}

// NewServer creates a server that dispatches requests to handler.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	size := cfg.ReadBufferSize
	if size <= 0 {
		size = config.Default().Server.ReadBufferSize
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		buf:     make([]byte, size),
	}
}

// Listen binds the configured port on ip.
func (s *Server) Listen(ip net.IP) error {
	if s.listener != nil {
		return fmt.Errorf("already listening on %s", s.listener.Addr())
	}

	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: ip, Port: s.cfg.Port})
	if err != nil {
		return fmt.Errorf("failed to listen on %s:%d: %w", ip, s.cfg.Port, err)
	}
	s.listener = l
	log.Printf("Listening on %s", l.Addr())
	return nil
}

// Addr returns the bound address, or nil when not listening.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close releases the listener.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.listener = nil
	return err
}

// Accept waits up to the accept timeout for a client. It returns
// ErrNoConnection when none arrived.
func (s *Server) Accept() (net.Conn, error) {
	if s.listener == nil {
		return nil, ErrNotListening
	}

	if err := s.listener.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout)); err != nil {
		return nil, fmt.Errorf("failed to set accept deadline: %w", err)
	}

	conn, err := s.listener.Accept()
	if err != nil {
		if isTimeout(err) {
			return nil, ErrNoConnection
		}
		return nil, fmt.Errorf("failed to accept connection: %w", err)
	}
	return conn, nil
}

// Handle serves one request on conn and closes it. Any failure is logged and
// confined to this connection.
func (s *Server) Handle(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("Failed to close connection from %s: %v", remote, err)
		}
	}()

	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ConnTimeout)); err != nil {
		log.Printf("Failed to set read deadline for %s: %v", remote, err)
	}

	n, err := conn.Read(s.buf)
	req, ok := s.request(s.buf[:n], err, remote)
	if !ok {
		return
	}
	req.RemoteAddr = remote

	rw := newResponseBuffer()
	s.handler.ServeHTTP(rw, req)

	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.ConnTimeout)); err != nil {
		log.Printf("Failed to set write deadline for %s: %v", remote, err)
	}
	if _, err := rw.WriteTo(conn); err != nil {
		log.Printf("Failed to send response to %s: %v", remote, err)
		if s.OnWriteError != nil {
			s.OnWriteError()
		}
	}
}

// request turns the bytes read from a connection into a request. A client
// that connected but sent nothing before the deadline gets the data, an empty
// or unparsable request gets the page. Other read failures are not answered.
func (s *Server) request(raw []byte, readErr error, remote string) (*http.Request, bool) {
	if len(raw) == 0 {
		switch {
		case isTimeout(readErr):
			return newRequest(http.MethodGet, DataPath), true
		case readErr == nil || errors.Is(readErr, io.EOF):
			return newRequest(http.MethodGet, "/"), true
		default:
			log.Printf("Failed to read request from %s: %v", remote, readErr)
			return nil, false
		}
	}

	req, err := parseRequest(raw)
	if err != nil {
		log.Printf("Bad request from %s: %v", remote, err)
		return newRequest(http.MethodGet, "/"), true
	}
	return req, true
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
