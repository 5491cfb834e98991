// Package adminsock implements the operator-facing admin console
// listener, generalized from the teacher's ProcessDirect/
// ProcessDirectWithChannel path (pkg/agent/loop.go) — a synchronous,
// out-of-band request/response channel separate from the chat
// transport, here carried over a Unix domain socket instead of an
// in-process CLI call.
package adminsock

import (
	"bufio"
	"context"
	"net"
	"os"
	"strings"

	"github.com/sipeed/picobridge/internal/logger"
)

// Handler answers one line of admin input with one line of output.
type Handler func(ctx context.Context, line string) string

// Server accepts connections on a Unix socket and serves one command
// per line, newline-terminated, until the connection closes.
type Server struct {
	socketPath string
	handler    Handler
}

func New(socketPath string, handler Handler) *Server {
	return &Server{socketPath: socketPath, handler: handler}
}

// Run listens until ctx is cancelled. The socket file is removed both
// before binding (in case of an unclean previous exit) and on exit.
func (s *Server) Run(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "unix", s.socketPath)
	if err != nil {
		return err
	}
	defer os.Remove(s.socketPath)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logger.WarnCF("adminsock", "accept failed", map[string]interface{}{"error": err.Error()})
				continue
			}
		}
		go s.serve(ctx, conn)
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := s.handler(ctx, line)
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			return
		}
	}
}
