package pipe

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/timvw/pane-toggler/internal/protocol"
)

// Send delivers one message to the server at socketPath and waits for the
// response. ctx bounds the whole exchange.
func Send(ctx context.Context, socketPath string, msg protocol.Message) (protocol.Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	data, err := json.Marshal(msg)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("encode message: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return protocol.Response{}, fmt.Errorf("write message: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		if ctx.Err() != nil {
			return protocol.Response{}, ctx.Err()
		}
		return protocol.Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return protocol.Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
