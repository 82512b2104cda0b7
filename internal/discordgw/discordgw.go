// Package discordgw is the Discord adapter: a gateway WebSocket client
// that turns inbound guild/DM messages into bridge Prompt events, and a
// chatbuffer.Deliverer that sends finalized replies back as channel
// messages. It is a bridge client like any other (TUI, subscribe/dump)
// — it dials the broker's unix socket rather than linking internal/broker
// directly, preferring small standalone client types over shared
// in-process state.
package discordgw

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yuiseki/acomm/internal/chatbuffer"
	"github.com/yuiseki/acomm/internal/connwatch"
	"github.com/yuiseki/acomm/internal/httpkit"
	"github.com/yuiseki/acomm/internal/protocol"
)

// channelPrefix is the bridge channel namespace this adapter owns.
const channelPrefix = "discord:"

// Config configures the Discord adapter.
type Config struct {
	// Token is the bot token used for both the gateway IDENTIFY and REST calls.
	Token string

	// SocketPath is the bridge's unix socket address.
	SocketPath string

	// AllowedUserIDs, if non-empty, restricts ingress to these author IDs.
	// Empty means no restriction.
	AllowedUserIDs []string

	// NotifyChannelID is the channel `--agent --discord` posts a
	// proactive message to. Required only for that path.
	NotifyChannelID string

	// HTTPClient is used for REST calls; an httpkit.NewClient with
	// retry enabled is built if nil.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Adapter is the running Discord adapter: one gateway connection and
// one bridge socket connection, wired together through a
// chatbuffer.Manager.
type Adapter struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
	allowlist  map[string]struct{}

	connMu sync.Mutex
	conn   *websocket.Conn

	// botUserID is set once from READY and read only by runGateway's
	// own goroutine thereafter (the MESSAGE_CREATE ingress filter).
	botUserID string

	openBuffers atomic.Int64
	presenceMu  sync.Mutex
	presence    string

	buffers *chatbuffer.Manager
}

// NewAdapter constructs an Adapter. Call Run to start it.
func NewAdapter(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpkit.NewClient(httpkit.WithRetry(2, 500*time.Millisecond), httpkit.WithLogger(logger))
	}
	var allowlist map[string]struct{}
	if len(cfg.AllowedUserIDs) > 0 {
		allowlist = make(map[string]struct{}, len(cfg.AllowedUserIDs))
		for _, id := range cfg.AllowedUserIDs {
			allowlist[id] = struct{}{}
		}
	}
	a := &Adapter{
		cfg:        cfg,
		logger:     logger.With("component", "discordgw"),
		httpClient: httpClient,
		allowlist:  allowlist,
		presence:   "online",
	}
	a.buffers = chatbuffer.NewManager(channelPrefix, a, a.startTyping)
	return a
}

// Run dials the bridge socket and blocks until ctx is cancelled or the
// bridge connection fails unrecoverably. The Discord gateway connection
// itself is supervised by connwatch: a dropped gateway session is not
// fatal, it is backed off and reconnected.
func (a *Adapter) Run(ctx context.Context) error {
	sock, err := net.Dial("unix", a.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("discordgw: dial bridge socket: %w", err)
	}
	defer sock.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.readBridgeLoop(ctx, sock)
	}()

	// runGateway blocks for the lifetime of one gateway session and
	// returns only on disconnect, so it doubles as connwatch's
	// connect-and-block probe: each returned error drives the next
	// backoff retry.
	watcher := connwatch.NewManager(a.logger).WatchConnection(ctx, "discord-gateway", func(probeCtx context.Context) error {
		return a.runGateway(probeCtx, sock)
	}, a.logger)

	select {
	case <-ctx.Done():
		watcher.Stop()
		return nil
	case err := <-errCh:
		watcher.Stop()
		return err
	}
}

// readBridgeLoop reads bridge events off sock and drives the reply
// buffer manager, which in turn calls Deliver (REST sends) and the
// typing-indicator side task.
func (a *Adapter) readBridgeLoop(ctx context.Context, sock net.Conn) error {
	scanner := protocol.NewLineScanner(sock)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := protocol.DecodeLine(line)
		if err != nil {
			a.logger.Warn("discarding malformed bridge line", "error", err)
			continue
		}
		if err := a.buffers.Handle(ev); err != nil {
			a.logger.Warn("chatbuffer handling failed", "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("discordgw: read bridge socket: %w", err)
	}
	return nil
}

// Deliver implements chatbuffer.Deliverer by sending message as a
// Discord channel message via REST.
func (a *Adapter) Deliver(channel, message string) error {
	channelID, _, ok := parseChannel(channel)
	if !ok {
		return fmt.Errorf("discordgw: malformed channel %q", channel)
	}
	return a.sendMessage(channelID, message)
}

// Notify sends a proactive message to cfg.NotifyChannelID, bypassing
// the broker entirely. Used by `--agent --discord`.
func (a *Adapter) Notify(text string) error {
	if a.cfg.NotifyChannelID == "" {
		return fmt.Errorf("discordgw: DISCORD_NOTIFY_CHANNEL_ID not set")
	}
	return a.sendMessage(a.cfg.NotifyChannelID, text)
}

// parseChannel splits a bridge channel of the form
// "discord:<channel_id>:<origin_message_id>" into its Discord channel
// ID and origin message ID.
func parseChannel(channel string) (channelID, originMessageID string, ok bool) {
	parts := strings.SplitN(channel, ":", 3)
	if len(parts) != 3 || parts[0] != "discord" || parts[1] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
