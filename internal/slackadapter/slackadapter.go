// Package slackadapter is the Slack Socket Mode adapter: it opens a
// Socket Mode WebSocket, acks each envelope, turns accepted message
// events into bridge Prompt events, and delivers finalized replies via
// chat.postMessage. Structured the same way as internal/discordgw (a
// standalone bridge client driving a chatbuffer.Manager), since both
// adapters follow the identical buffering pattern, which is their one
// shared piece of hard engineering.
package slackadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yuiseki/acomm/internal/chatbuffer"
	"github.com/yuiseki/acomm/internal/connwatch"
	"github.com/yuiseki/acomm/internal/httpkit"
	"github.com/yuiseki/acomm/internal/protocol"
)

// channelPrefix is the bridge channel namespace this adapter owns.
const channelPrefix = "slack:"

// Config configures the Slack adapter.
type Config struct {
	// AppToken authenticates apps.connections.open (xapp-...).
	AppToken string

	// BotToken authenticates chat.postMessage (xoxb-...).
	BotToken string

	// SocketPath is the bridge's unix socket address.
	SocketPath string

	// HTTPClient is used for REST calls; an httpkit.NewClient with
	// retry enabled is built if nil.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Adapter is the running Slack adapter.
type Adapter struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client

	connMu sync.Mutex
	conn   *websocket.Conn

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
	a := &Adapter{
		cfg:        cfg,
		logger:     logger.With("component", "slackadapter"),
		httpClient: httpClient,
	}
	a.buffers = chatbuffer.NewManager(channelPrefix, a, nil)
	return a
}

// Run opens the Socket Mode connection and the bridge socket and
// blocks until ctx is cancelled or either side fails unrecoverably.
func (a *Adapter) Run(ctx context.Context) error {
	if a.cfg.AppToken == "" {
		return fmt.Errorf("slackadapter: SLACK_APP_TOKEN not set")
	}
	if a.cfg.BotToken == "" {
		return fmt.Errorf("slackadapter: SLACK_BOT_TOKEN not set")
	}

	sock, err := net.Dial("unix", a.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("slackadapter: dial bridge socket: %w", err)
	}
	defer sock.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- a.readBridgeLoop(ctx, sock) }()

	// runSocketMode blocks for one session and returns on disconnect,
	// which connwatch treats as a probe failure driving the next
	// backoff retry.
	watcher := connwatch.NewManager(a.logger).WatchConnection(ctx, "slack-socket-mode", func(probeCtx context.Context) error {
		return a.runSocketMode(probeCtx, sock)
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
		return fmt.Errorf("slackadapter: read bridge socket: %w", err)
	}
	return nil
}

// Deliver implements chatbuffer.Deliverer by posting message to the
// Slack channel encoded in channel via chat.postMessage.
func (a *Adapter) Deliver(channel, message string) error {
	_, channelID, ok := parseChannel(channel)
	if !ok {
		return fmt.Errorf("slackadapter: malformed channel %q", channel)
	}
	return a.postMessage(channelID, message)
}

// Notify is used by `--agent --slack`. Slack has no configured
// proactive-notify destination anywhere in this bridge's external
// interfaces — chat.postMessage always targets the channel a prior
// inbound event named — so a proactive send with no prior context has
// nowhere to go. This always errors; the caller treats that as a skip
// when Slack wasn't an explicit target and a fatal error when it was.
func (a *Adapter) Notify(text string) error {
	return fmt.Errorf("slackadapter: no configured proactive-notify destination")
}

// parseChannel splits a bridge channel of the form
// "slack:<user_id>:<slack_channel_id>" into its user and channel IDs.
func parseChannel(channel string) (userID, channelID string, ok bool) {
	parts := strings.SplitN(channel, ":", 3)
	if len(parts) != 3 || parts[0] != "slack" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
