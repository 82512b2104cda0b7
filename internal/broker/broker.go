// Package broker implements the bridge's local stream-socket listener,
// broadcast fanout, bounded replay backlog, and the authoritative
// provider/model/session state machine described by the acomm wire
// protocol. Its concurrency shape is a read-loop goroutine feeding a
// channel, a mutex-protected piece of shared state touched only by
// well-defined owners, and slog-based logging throughout.
package broker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/yuiseki/acomm/internal/protocol"
	"github.com/yuiseki/acomm/internal/session"
)

// Config configures a Broker.
type Config struct {
	// SocketPath is the fixed local stream-socket path to bind. A
	// stale file at this path is unlinked before binding.
	SocketPath string

	// MaxBacklog bounds the replayable backlog. <= 0 means 100.
	MaxBacklog int

	// MemoryTool serves /search and /today. Defaults to
	// session.NewMemoryTool() ("amem") when nil.
	MemoryTool *session.MemoryTool

	// ContextFunc, if set, supplies the daily-context blob sent as
	// SyncContext during a connection's handshake. A nil func or an
	// empty return value omits SyncContext entirely.
	ContextFunc func(ctx context.Context) string

	Logger *slog.Logger
}

// Broker is the bridge's broadcast hub, authoritative state, and
// socket listener.
type Broker struct {
	logger      *slog.Logger
	socketPath  string
	hub         *Hub
	state       *BridgeState
	cmd         *commandHandler
	contextFunc func(ctx context.Context) string

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// New constructs a Broker from cfg. Call Run to start it.
func New(cfg Config) *Broker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	memTool := cfg.MemoryTool
	if memTool == nil {
		memTool = session.NewMemoryTool()
	}

	hub := NewHub()
	state := NewBridgeState(cfg.MaxBacklog)

	return &Broker{
		logger:      logger,
		socketPath:  cfg.SocketPath,
		hub:         hub,
		state:       state,
		cmd:         newCommandHandler(hub, state, memTool, logger),
		contextFunc: cfg.ContextFunc,
		conns:       make(map[net.Conn]struct{}),
	}
}

// Run binds the socket and serves connections until ctx is cancelled
// or the listener fails to accept. It blocks until shutdown.
func (b *Broker) Run(ctx context.Context) error {
	if err := os.RemoveAll(b.socketPath); err != nil {
		return fmt.Errorf("broker: remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", b.socketPath)
	if err != nil {
		return fmt.Errorf("broker: listen: %w", err)
	}
	b.logger.Info("broker listening", "socket", b.socketPath)

	go b.runStateMaintainer(ctx)

	go func() {
		<-ctx.Done()
		ln.Close()
		b.closeAllConns()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("broker: accept: %w", err)
		}
		b.trackConn(conn)
		go b.handleConn(ctx, conn)
	}
}

func (b *Broker) trackConn(conn net.Conn) {
	b.connsMu.Lock()
	b.conns[conn] = struct{}{}
	b.connsMu.Unlock()
}

func (b *Broker) untrackConn(conn net.Conn) {
	b.connsMu.Lock()
	delete(b.conns, conn)
	b.connsMu.Unlock()
}

func (b *Broker) closeAllConns() {
	b.connsMu.Lock()
	defer b.connsMu.Unlock()
	for conn := range b.conns {
		conn.Close()
	}
}

// runStateMaintainer is the single dedicated subscriber that owns all
// writes to BridgeState: it applies ProviderSwitched/ModelSwitched and
// backlog retention for every event published on the hub.
func (b *Broker) runStateMaintainer(ctx context.Context) {
	id, ch := b.hub.Subscribe()
	defer b.hub.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			switch {
			case e.ProviderSwitched != nil:
				b.state.ApplyProviderSwitched(e.ProviderSwitched.Provider)
			case e.ModelSwitched != nil:
				b.state.ApplyModelSwitched(e.ModelSwitched.Model)
			}
			b.state.AppendRetainable(e)
		}
	}
}

// handleConn serves one accepted connection: handshake, then a duplex
// loop reading inbound lines and writing broadcast events, until EOF,
// a write error, or ctx cancellation.
func (b *Broker) handleConn(ctx context.Context, conn net.Conn) {
	defer b.untrackConn(conn)
	defer conn.Close()

	// Subscribe before building the handshake payload so any event
	// published while the handshake is assembled is queued rather
	// than lost (it will simply be delivered after BridgeSyncDone).
	id, sub := b.hub.Subscribe()
	defer b.hub.Unsubscribe(id)

	if err := b.writeHandshake(conn); err != nil {
		logConnError(b.logger, "broker handshake write failed", err)
		return
	}

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := protocol.NewLineScanner(conn)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil && !errors.Is(err, io.EOF) {
					logConnError(b.logger, "broker connection read failed", err)
				}
				return
			}
			ev, err := protocol.DecodeLine(line)
			if err != nil {
				b.logger.Debug("broker skipping malformed event line", "error", err)
				continue
			}
			b.handleInbound(ctx, ev)

		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := protocol.WriteLine(conn, ev); err != nil {
				logConnError(b.logger, "broker connection write failed", err)
				return
			}
		}
	}
}

// handleInbound applies the "reject everything but Prompt and
// SystemMessage" rule from the design notes: only those two variants
// may originate from a connection's inbound side. An inbound
// SystemMessage is republished verbatim and unfiltered, so any connected
// client can broadcast a notice to every subscriber.
func (b *Broker) handleInbound(ctx context.Context, ev protocol.Event) {
	switch {
	case ev.Prompt != nil:
		b.handlePrompt(ctx, *ev.Prompt)
	case ev.SystemMessage != nil:
		b.hub.Publish(ev)
	default:
		b.logger.Debug("broker ignoring non-inbound event variant", "variant", ev.Variant())
	}
}

// writeHandshake assembles the initial-sync payload (optional
// SyncContext, current ProviderSwitched, optional ModelSwitched,
// backlog in order, BridgeSyncDone) under one state snapshot and
// writes it as a single batched write.
func (b *Broker) writeHandshake(conn net.Conn) error {
	snap := b.state.Snapshot()

	var buf bytes.Buffer
	if b.contextFunc != nil {
		if blob := b.contextFunc(context.Background()); blob != "" {
			if err := protocol.WriteLine(&buf, protocol.NewSyncContext(blob)); err != nil {
				return err
			}
		}
	}
	if err := protocol.WriteLine(&buf, protocol.NewProviderSwitched(snap.ActiveProvider)); err != nil {
		return err
	}
	if snap.ActiveModel != "" {
		if err := protocol.WriteLine(&buf, protocol.NewModelSwitched(snap.ActiveModel)); err != nil {
			return err
		}
	}
	for _, e := range snap.Backlog {
		if err := protocol.WriteLine(&buf, e); err != nil {
			return err
		}
	}
	if err := protocol.WriteLine(&buf, protocol.NewBridgeSyncDone()); err != nil {
		return err
	}

	_, err := conn.Write(buf.Bytes())
	return err
}

// logConnError logs at debug level for a departed peer (broken pipe,
// connection reset, or an already-closed listener) and at warn level
// otherwise — a broken pipe from a peer hanging up is routine, not an
// error worth surfacing.
func logConnError(logger *slog.Logger, msg string, err error) {
	if isPeerGone(err) {
		logger.Debug(msg, "error", err)
		return
	}
	logger.Warn(msg, "error", err)
}

func isPeerGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "broken pipe") || strings.Contains(s, "connection reset by peer")
}
