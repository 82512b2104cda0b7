// Package termclient implements the bridge's plain terminal clients:
// one-shot publish, continuous subscribe with lightweight status
// rendering, and backlog dump. It deliberately does not attempt a full
// interactive TUI (multi-pane layout, history navigation, an input
// editor widget) — those are thin glue over this same event stream,
// not the hard engineering this package grounds.
package termclient

import (
	"fmt"
	"io"
	"net"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuiseki/acomm/internal/protocol"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	systemStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214"))
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
)

// Publish sends one Prompt event on channel (empty means unset) and
// returns. If msg is "-", the prompt text is read from stdin to EOF
// instead.
func Publish(socketPath, channel, msg string, stdin io.Reader) error {
	if msg == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("termclient: read stdin: %w", err)
		}
		msg = string(data)
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("termclient: dial bridge socket: %w", err)
	}
	defer conn.Close()

	var ch *string
	if channel != "" {
		ch = &channel
	}
	return protocol.WriteLine(conn, protocol.NewPrompt(msg, nil, ch))
}
