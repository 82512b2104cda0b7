package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuiseki/acomm/internal/protocol"
	"github.com/yuiseki/acomm/internal/session"
)

// bridgeChannel is the well-known channel commands reply on.
const bridgeChannel = "bridge"

const helpText = "/provider <name> - Switch active provider\n" +
	"/model <name> - Switch active model\n" +
	"/clear - Clear backlog and session\n" +
	"/search <query> - Search memory\n" +
	"/today - Show today's summary\n" +
	"/help - Show this message"

// commandHandler dispatches slash-command Prompt text. Unknown
// commands are a silent no-op.
type commandHandler struct {
	hub     *Hub
	state   *BridgeState
	memTool *session.MemoryTool
	logger  *slog.Logger
}

func newCommandHandler(hub *Hub, state *BridgeState, memTool *session.MemoryTool, logger *slog.Logger) *commandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &commandHandler{hub: hub, state: state, memTool: memTool, logger: logger}
}

// handle dispatches one command line (the full Prompt text, including
// its leading "/").
func (h *commandHandler) handle(ctx context.Context, text string) {
	fields := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "provider":
		h.handleProvider(args)
	case "model":
		h.handleModel(args)
	case "clear":
		h.handleClear()
	case "search":
		h.handleSearch(ctx, args)
	case "today":
		h.handleToday(ctx)
	case "help":
		h.hub.Publish(protocol.NewSystemMessage(helpText, protocol.StrPtr(bridgeChannel)))
	default:
		h.logger.Debug("broker unknown command", "cmd", cmd)
	}
}

func (h *commandHandler) handleProvider(args []string) {
	if len(args) == 0 {
		return
	}
	p, ok := protocol.ParseProvider(args[0])
	if !ok {
		h.logger.Debug("broker unknown provider", "name", args[0])
		return
	}
	h.hub.Publish(protocol.NewProviderSwitched(p))
	if model, ok := protocol.DefaultModelFor(p); ok {
		h.hub.Publish(protocol.NewModelSwitched(model))
	}
}

func (h *commandHandler) handleModel(args []string) {
	if len(args) == 0 {
		return
	}
	h.hub.Publish(protocol.NewModelSwitched(strings.Join(args, " ")))
}

func (h *commandHandler) handleClear() {
	model := h.state.Clear()
	h.hub.Publish(protocol.NewSystemMessage("Cleared.", protocol.StrPtr(bridgeChannel)))
	if model != "" {
		h.hub.Publish(protocol.NewModelSwitched(model))
	}
}

func (h *commandHandler) handleSearch(ctx context.Context, args []string) {
	query := strings.Join(args, " ")
	out, err := h.memTool.Search(ctx, query)
	if err != nil {
		h.logger.Warn("broker memory search failed", "query", query, "error", err)
		out = err.Error()
	}
	msg := fmt.Sprintf("Search results for '%s':\n%s", query, out)
	h.hub.Publish(protocol.NewSystemMessage(msg, protocol.StrPtr(bridgeChannel)))
}

func (h *commandHandler) handleToday(ctx context.Context) {
	out, err := h.memTool.Today(ctx)
	if err != nil {
		h.logger.Warn("broker memory today failed", "error", err)
		out = err.Error()
	}
	msg := fmt.Sprintf("Today's summary:\n%s", out)
	h.hub.Publish(protocol.NewSystemMessage(msg, protocol.StrPtr(bridgeChannel)))
}
