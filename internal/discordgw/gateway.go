package discordgw

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yuiseki/acomm/internal/config"
)

// gatewayURL is Discord's documented gateway endpoint pinned to API v10.
const gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

const restBase = "https://discord.com/api/v10"

// Gateway opcodes (Discord API v10), named as switch arms rather than
// as bare ints.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opPresenceUpdate = 3
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// Gateway intents. Only message-visibility intents are requested;
// MESSAGE_CONTENT is deliberately omitted — acomm never needs the
// privileged content-intent grant for guild messages it doesn't author.
const (
	intentGuildMessages  = 1 << 9
	intentDirectMessages = 1 << 12
)

type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type presenceUpdateData struct {
	Since      *int64        `json:"since"`
	Activities []interface{} `json:"activities"`
	Status     string        `json:"status"`
	AFK        bool          `json:"afk"`
}

type readyUser struct {
	ID string `json:"id"`
}

type readyData struct {
	User readyUser `json:"user"`
}

type messageAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

type messageCreateData struct {
	ID        string        `json:"id"`
	ChannelID string        `json:"channel_id"`
	Content   string        `json:"content"`
	Author    messageAuthor `json:"author"`
}

// runGateway dials the Discord gateway, drives its opcode state
// machine, and forwards accepted messages to the bridge socket as
// Prompt lines. It blocks until ctx is cancelled or the connection
// fails unrecoverably; it does not itself reconnect — that is the
// caller's job via internal/connwatch (see Adapter.Run's docstring).
func (a *Adapter) runGateway(ctx context.Context, sock net.Conn) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("discordgw: dial gateway: %w", err)
	}
	a.setConn(conn)
	defer conn.Close()

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()

	var sequence int64 // 0 means "no sequence observed yet"

	go func() {
		<-ctx.Done()
		a.sendPresence(presenceUpdateData{Status: "invisible", Activities: []interface{}{}})
	}()

	for {
		var p gatewayPayload
		if err := conn.ReadJSON(&p); err != nil {
			stopHeartbeat()
			if ctx.Err() != nil {
				return nil
			}
			if closeErr, ok := err.(*websocket.CloseError); ok {
				return fmt.Errorf("discordgw: gateway closed: code=%d reason=%q", closeErr.Code, closeErr.Text)
			}
			return fmt.Errorf("discordgw: read gateway frame: %w", err)
		}
		if p.S != nil {
			sequence = *p.S
		}
		a.logger.Log(ctx, config.LevelTrace, "gateway frame received", "op", p.Op, "type", p.T, "seq", p.S)

		switch p.Op {
		case opHello:
			var hello helloData
			if err := json.Unmarshal(p.D, &hello); err != nil {
				return fmt.Errorf("discordgw: decode HELLO: %w", err)
			}
			go a.heartbeatLoop(heartbeatCtx, time.Duration(hello.HeartbeatInterval)*time.Millisecond, &sequence)
			if err := a.sendIdentify(); err != nil {
				return err
			}

		case opHeartbeat:
			if err := a.sendHeartbeat(sequence); err != nil {
				return err
			}

		case opHeartbeatAck:
			// no-op; absence of ACKs is a zombie-connection signal, but
			// reconnect wiring uses connwatch's periodic probe instead
			// of tracking missed ACKs here.

		case opInvalidSession:
			return fmt.Errorf("discordgw: invalid session")

		case opDispatch:
			if err := a.handleDispatch(p, sock); err != nil {
				a.logger.Warn("dispatch handling failed", "type", p.T, "error", err)
			}
		}
	}
}

func (a *Adapter) handleDispatch(p gatewayPayload, sock net.Conn) error {
	switch p.T {
	case "READY":
		var ready readyData
		if err := json.Unmarshal(p.D, &ready); err != nil {
			return fmt.Errorf("decode READY: %w", err)
		}
		a.botUserID = ready.User.ID
		a.logger.Info("gateway ready", "bot_user_id", a.botUserID)
		return a.sendPresence(presenceUpdateData{Status: "online", Activities: []interface{}{}})

	case "MESSAGE_CREATE":
		var msg messageCreateData
		if err := json.Unmarshal(p.D, &msg); err != nil {
			return fmt.Errorf("decode MESSAGE_CREATE: %w", err)
		}
		if !a.acceptMessage(msg) {
			return nil
		}
		channel := fmt.Sprintf("%s%s:%s", channelPrefix, msg.ChannelID, msg.ID)
		return writePromptLine(sock, msg.Content, channel)

	default:
		return nil
	}
}

func (a *Adapter) heartbeatLoop(ctx context.Context, interval time.Duration, sequence *int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.sendHeartbeat(*sequence); err != nil {
				a.logger.Warn("heartbeat send failed", "error", err)
				return
			}
		}
	}
}

func (a *Adapter) setConn(conn *websocket.Conn) {
	a.connMu.Lock()
	a.conn = conn
	a.connMu.Unlock()
}

func (a *Adapter) writeJSON(v interface{}) error {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	if a.conn == nil {
		return fmt.Errorf("discordgw: no active gateway connection")
	}
	return a.conn.WriteJSON(v)
}

func (a *Adapter) sendIdentify() error {
	return a.writeJSON(gatewayPayload{
		Op: opIdentify,
		D: mustMarshal(identifyData{
			Token:   a.cfg.Token,
			Intents: intentGuildMessages | intentDirectMessages,
			Properties: identifyProperties{
				OS:      "linux",
				Browser: "acomm",
				Device:  "acomm",
			},
		}),
	})
}

func (a *Adapter) sendHeartbeat(sequence int64) error {
	var d json.RawMessage
	if sequence == 0 {
		d = json.RawMessage("null")
	} else {
		d = mustMarshal(sequence)
	}
	return a.writeJSON(gatewayPayload{Op: opHeartbeat, D: d})
}

func (a *Adapter) sendPresence(d presenceUpdateData) error {
	return a.writeJSON(gatewayPayload{Op: opPresenceUpdate, D: mustMarshal(d)})
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("discordgw: marshal %T: %v", v, err))
	}
	return b
}
