package control

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	pingRequest  = "PING\n"
	pingResponse = "PONG\n"
	okResponse   = "OK\n"

	readTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

type tcpServer struct {
	mu       sync.Mutex
	listener net.Listener
	port     int
	commands chan *tcpConn
	done     chan struct{}
	closed   bool
}

func newTCPServer() *tcpServer {
	return &tcpServer{
		commands: make(chan *tcpConn, 4),
		done:     make(chan struct{}),
	}
}

func (s *tcpServer) Start(ctx context.Context) error {
	start, _ := getPortRange()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("control server already started")
	}

	// Only the start port is ever bound. A bind failure means another
	// instance holds the claim.
	addr := fmt.Sprintf("127.0.0.1:%d", start)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("bind control port %d: %w", start, err)
	}

	s.listener = ln
	s.port = start
	go s.acceptLoop(ln)
	log.Printf("control: listening on %s", addr)
	return nil
}

func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			log.Printf("control: accept error: %v", err)
			return
		}
		go s.handle(conn)
	}
}

func (s *tcpServer) handle(conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		conn.Close()
		return
	}

	if line == pingRequest {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_, _ = conn.Write([]byte(pingResponse))
		conn.Close()
		return
	}

	verb := Verb(strings.TrimSpace(line))
	switch verb {
	case VerbCancel, VerbFull:
	default:
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		fmt.Fprintf(conn, "ERR unknown verb %q\n", strings.TrimSpace(line))
		conn.Close()
		return
	}

	tc := &tcpConn{conn: conn, verb: verb}
	select {
	case s.commands <- tc:
	case <-s.done:
		_ = tc.RespondError("shutting down")
		tc.Close()
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case c := <-s.commands:
		return c, nil
	case <-s.done:
		return nil, fmt.Errorf("control server closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *tcpServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

type tcpConn struct {
	conn net.Conn
	verb Verb
	once sync.Once
}

func (c *tcpConn) Verb() Verb { return c.verb }

func (c *tcpConn) RespondOK() error {
	var err error
	c.once.Do(func() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_, err = c.conn.Write([]byte(okResponse))
	})
	return err
}

func (c *tcpConn) RespondError(msg string) error {
	var err error
	c.once.Do(func() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_, err = fmt.Fprintf(c.conn, "ERR %s\n", msg)
	})
	return err
}

func (c *tcpConn) Close() error { return c.conn.Close() }
