package termclient

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/yuiseki/acomm/internal/protocol"
)

// Subscribe connects to the bridge socket and renders every event to
// out until ctx is cancelled or the connection closes. Chunks stream
// without a trailing newline so a reply appears incrementally; a
// spinner-style line brackets processing with is_processing's two
// transitions rather than redrawing in place (the redraw-in-place
// widget behavior belongs to the out-of-scope interactive TUI, not to
// this plain client).
func Subscribe(ctx context.Context, socketPath string, out io.Writer) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("termclient: dial bridge socket: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := protocol.NewLineScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := protocol.DecodeLine(line)
		if err != nil {
			continue
		}
		renderEvent(out, ev)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("termclient: read bridge socket: %w", err)
	}
	return nil
}

func renderEvent(out io.Writer, ev protocol.Event) {
	switch {
	case ev.Prompt != nil:
		fmt.Fprintln(out, promptStyle.Render("> "+ev.Prompt.Text))

	case ev.StatusUpdate != nil:
		if ev.StatusUpdate.IsProcessing {
			fmt.Fprintln(out, statusStyle.Render("… thinking"))
		} else {
			fmt.Fprintln(out)
		}

	case ev.AgentChunk != nil:
		fmt.Fprint(out, ev.AgentChunk.Chunk)

	case ev.AgentDone != nil:
		fmt.Fprintln(out)

	case ev.SystemMessage != nil:
		fmt.Fprintln(out, systemStyle.Render("* "+ev.SystemMessage.Msg))

	case ev.ProviderSwitched != nil:
		fmt.Fprintln(out, metaStyle.Render(fmt.Sprintf("[provider: %s]", ev.ProviderSwitched.Provider)))

	case ev.ModelSwitched != nil:
		fmt.Fprintln(out, metaStyle.Render(fmt.Sprintf("[model: %s]", ev.ModelSwitched.Model)))

	case ev.SyncContext != nil:
		fmt.Fprintln(out, metaStyle.Render(ev.SyncContext.Context))

	case ev.BridgeSyncDone != nil:
		// Initial replay complete; nothing to render.
	}
}
