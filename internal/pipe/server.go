// Package pipe carries toggler messages over a local unix socket.
//
// Each connection sends one JSON line (a protocol.Message) and receives one
// JSON line (a protocol.Response). The response is written once the pane
// transition the message started has been confirmed by the host.
package pipe

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/timvw/pane-toggler/internal/protocol"
)

const (
	defaultMaxMessageBytes = 64 * 1024
	defaultReadTimeout     = 5 * time.Second
)

var errTooLarge = errors.New("message too large")

// Dispatcher answers one message. toggler.Loop implements it.
type Dispatcher interface {
	Submit(ctx context.Context, msg protocol.Message) (protocol.Response, error)
}

// Server accepts pipe connections and forwards their messages.
type Server struct {
	dispatch Dispatcher
	path     string
	log      *log.Logger

	MaxMessageBytes int
	ReadTimeout     time.Duration

	mu       sync.Mutex
	listener *net.UnixListener
	closed   bool
	wg       sync.WaitGroup
}

// NewServer returns a server for socketPath. A nil logger discards output.
func NewServer(d Dispatcher, socketPath string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		dispatch:        d,
		path:            socketPath,
		log:             logger,
		MaxMessageBytes: defaultMaxMessageBytes,
		ReadTimeout:     defaultReadTimeout,
	}
}

func (s *Server) SocketPath() string {
	return s.path
}

// Start binds the socket and serves connections until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s.dispatch == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if s.path == "" {
		return fmt.Errorf("socket path is required")
	}
	if s.MaxMessageBytes <= 0 {
		s.MaxMessageBytes = defaultMaxMessageBytes
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Chmod(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("chmod socket dir: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unix", s.path)
	if err != nil {
		return fmt.Errorf("resolve unix addr: %w", err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("listen unix: %w", err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.closed = false
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.close()
	}()

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln)

	s.log.Info("listening", "socket", s.path)
	return nil
}

// Wait blocks until the accept loop and all connections have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, ln *net.UnixListener) {
	defer s.wg.Done()
	for {
		conn, err := ln.AcceptUnix()
		if err != nil {
			if s.isClosed() {
				return
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(ctx, conn)
		}()
	}
}

func (s *Server) serve(ctx context.Context, conn *net.UnixConn) {
	defer conn.Close()
	pipeID := uuid.NewString()

	if s.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}
	line, err := readLine(conn, s.MaxMessageBytes)
	if err != nil {
		s.log.Debug("rejected message", "pipe_id", pipeID, "error", err)
		if errors.Is(err, errTooLarge) {
			s.write(conn, pipeID, protocol.Fail(errTooLarge.Error()))
		} else {
			s.write(conn, pipeID, protocol.Failf("invalid message: %v", err))
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(line, &msg); err != nil {
		s.write(conn, pipeID, protocol.Failf("invalid message: %v", err))
		return
	}
	if msg.ID == "" {
		msg.ID = pipeID
	}

	s.log.Debug("message", "pipe_id", msg.ID, "name", msg.Name)
	// The dispatcher answers pending requests itself on shutdown.
	resp, err := s.dispatch.Submit(context.WithoutCancel(ctx), msg)
	if err != nil {
		resp = protocol.Fail(err.Error())
	}
	s.write(conn, msg.ID, resp)
}

func (s *Server) write(conn net.Conn, pipeID string, resp protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("encode response", "pipe_id", pipeID, "error", err)
		return
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		s.log.Debug("client went away before response", "pipe_id", pipeID, "error", err)
	}
}

// readLine reads one newline-terminated message of at most max bytes. A
// final line without a newline is accepted when the peer closes its side.
func readLine(r io.Reader, max int) ([]byte, error) {
	br := bufio.NewReader(io.LimitReader(r, int64(max)+1))
	line, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	} else if n > max {
		return nil, errTooLarge
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if len(line) == 0 {
		return nil, errors.New("empty message")
	}
	return line, nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}
