package control

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

const dialTimeout = 500 * time.Millisecond

type tcpClient struct{}

func newTCPClient() *tcpClient { return &tcpClient{} }

// Send scans the port range for a live resident instance and delivers
// verb to the first one found. Ports that do not answer PING with PONG
// are skipped, so unrelated services in the range are left alone.
func (c *tcpClient) Send(ctx context.Context, verb Verb) (bool, error) {
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}
		if !ping(ctx, port) {
			continue
		}
		if err := deliver(ctx, port, verb); err != nil {
			return false, fmt.Errorf("deliver %s to port %d: %w", verb, port, err)
		}
		return true, nil
	}
	return false, nil
}

func ping(ctx context.Context, port int) bool {
	conn, err := dial(ctx, port)
	if err != nil {
		return false
	}
	defer conn.Close()

	deadline := time.Now().Add(dialTimeout)
	_ = conn.SetDeadline(deadline)
	if _, err := conn.Write([]byte(pingRequest)); err != nil {
		return false
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && line == pingResponse
}

func deliver(ctx context.Context, port int, verb Verb) error {
	conn, err := dial(ctx, port)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(readTimeout)
	_ = conn.SetDeadline(deadline)
	if _, err := fmt.Fprintf(conn, "%s\n", verb); err != nil {
		return err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	line = strings.TrimSpace(line)
	if line == "OK" {
		return nil
	}
	if msg, ok := strings.CutPrefix(line, "ERR "); ok {
		return fmt.Errorf("resident refused: %s", msg)
	}
	return fmt.Errorf("unexpected response %q", line)
}

func dial(ctx context.Context, port int) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	return d.DialContext(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", port))
}
