package termclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/yuiseki/acomm/internal/protocol"
)

// dumpIdleTimeout is how long Dump waits for the next line before
// concluding the backlog has fully drained.
const dumpIdleTimeout = 100 * time.Millisecond

// Dump connects to the bridge socket, renders every event it receives
// until dumpIdleTimeout passes with nothing new, then disconnects and
// returns.
func Dump(ctx context.Context, socketPath string, out io.Writer) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("termclient: dial bridge socket: %w", err)
	}
	defer conn.Close()

	type lineOrErr struct {
		line []byte
		err  error
	}
	lines := make(chan lineOrErr)
	done := make(chan struct{})
	defer close(done)

	go func() {
		scanner := protocol.NewLineScanner(conn)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- lineOrErr{line: line}:
			case <-done:
				return
			}
		}
		select {
		case lines <- lineOrErr{err: scanner.Err()}:
		case <-done:
		}
	}()

	timer := time.NewTimer(dumpIdleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case item := <-lines:
			if item.err != nil {
				return fmt.Errorf("termclient: read bridge socket: %w", item.err)
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(dumpIdleTimeout)
			if len(item.line) == 0 {
				continue
			}
			ev, err := protocol.DecodeLine(item.line)
			if err != nil {
				continue
			}
			renderEvent(out, ev)

		case <-timer.C:
			return nil
		}
	}
}
