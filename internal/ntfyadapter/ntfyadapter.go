// Package ntfyadapter is the ntfy.sh adapter: it subscribes to a
// topic's line-delimited JSON stream, turns accepted messages into
// bridge Prompt events, and publishes finalized replies back with a
// "[bot] " prefix to guard against re-ingesting its own output. Same
// standalone-bridge-client shape as internal/discordgw and
// internal/slackadapter.
package ntfyadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yuiseki/acomm/internal/chatbuffer"
	"github.com/yuiseki/acomm/internal/connwatch"
	"github.com/yuiseki/acomm/internal/httpkit"
	"github.com/yuiseki/acomm/internal/protocol"
)

// channelPrefix is the bridge channel namespace this adapter owns.
const channelPrefix = "ntfy:"

// selfLoopPrefix marks an adapter's own published replies so the
// subscription ingress can discard them instead of re-publishing them
// as a new Prompt.
const selfLoopPrefix = "[bot] "

// Config configures the ntfy adapter.
type Config struct {
	// Topic is the ntfy.sh topic to subscribe to and publish on.
	Topic string

	// SocketPath is the bridge's unix socket address.
	SocketPath string

	// HTTPClient is used for both the streaming subscription GET and
	// publish POSTs; an httpkit.NewClient with a disabled timeout and
	// retry enabled is built if nil, since the subscription GET's body
	// is read for as long as the subscription stays open.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Adapter is the running ntfy adapter.
type Adapter struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client

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
		httpClient = httpkit.NewClient(httpkit.WithTimeout(0), httpkit.WithRetry(2, 500*time.Millisecond), httpkit.WithLogger(logger))
	}
	a := &Adapter{
		cfg:        cfg,
		logger:     logger.With("component", "ntfyadapter"),
		httpClient: httpClient,
	}
	a.buffers = chatbuffer.NewManager(channelPrefix, a, nil)
	return a
}

// Run subscribes to the ntfy topic and dials the bridge socket,
// blocking until ctx is cancelled or either side fails unrecoverably.
func (a *Adapter) Run(ctx context.Context) error {
	if a.cfg.Topic == "" {
		return fmt.Errorf("ntfyadapter: NTFY_TOPIC not set")
	}

	sock, err := net.Dial("unix", a.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("ntfyadapter: dial bridge socket: %w", err)
	}
	defer sock.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- a.readBridgeLoop(ctx, sock) }()

	// runSubscription blocks for one HTTP stream and returns when it
	// drops, which connwatch treats as a probe failure and retries
	// with backoff.
	watcher := connwatch.NewManager(a.logger).WatchConnection(ctx, "ntfy-subscription", func(probeCtx context.Context) error {
		return a.runSubscription(probeCtx, sock)
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
		// A single-goroutine handler processes bridge events strictly
		// in delivery order, which is what keeps per-channel AgentDone
		// ordering intact for ntfy's otherwise-unspecified concurrent
		// reply ordering (see the open question in the design notes).
		if err := a.buffers.Handle(ev); err != nil {
			a.logger.Warn("chatbuffer handling failed", "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("ntfyadapter: read bridge socket: %w", err)
	}
	return nil
}

// Deliver implements chatbuffer.Deliverer by publishing message to the
// configured topic with the self-loop-guard prefix.
func (a *Adapter) Deliver(channel, message string) error {
	if _, ok := parseChannel(channel); !ok {
		return fmt.Errorf("ntfyadapter: malformed channel %q", channel)
	}
	return a.publish(selfLoopPrefix + message)
}

// Notify publishes a proactive message to the configured topic,
// bypassing the broker entirely. Used by `--agent --ntfy`.
func (a *Adapter) Notify(text string) error {
	if a.cfg.Topic == "" {
		return fmt.Errorf("ntfyadapter: NTFY_TOPIC not set")
	}
	return a.publish(selfLoopPrefix + text)
}

// parseChannel extracts the ntfy message id from a bridge channel of
// the form "ntfy:<message_id>".
func parseChannel(channel string) (messageID string, ok bool) {
	if !strings.HasPrefix(channel, channelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(channel, channelPrefix)
	if id == "" {
		return "", false
	}
	return id, true
}
