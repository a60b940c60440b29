package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/streameval/internal/transport"
	"github.com/gorilla/websocket"
	eiopacket "github.com/zishang520/engine.io-go-parser/packet"
	sioparser "github.com/zishang520/socket.io-go-parser/v2/parser"
)

const (
	defaultPath             = "/socket.io/"
	defaultHandshakeTimeout = 15 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultCloseTimeout     = 2 * time.Second
	defaultEventBuffer      = 64
)

type Config struct {
	Path             string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	CloseTimeout     time.Duration
	EventBuffer      int
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = defaultCloseTimeout
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaultEventBuffer
	}
	return c
}

// Client is a single-use Socket.IO client over a websocket-only Engine.IO
// connection. It never reconnects.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	writeMu sync.Mutex
	conn    *websocket.Conn
	closed  bool

	sid         string
	readTimeout time.Duration
	decoder     *packetDecoder

	events    chan transport.Event
	stop      chan struct{}
	done      chan struct{}
	started   bool
	closeOnce sync.Once
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		decoder: newPacketDecoder(),
		events:  make(chan transport.Event, cfg.EventBuffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func NewFactory(cfg Config) transport.Factory {
	return func() transport.Transport {
		return NewClient(cfg)
	}
}

func (c *Client) Connect(ctx context.Context, rawURL, authToken string) error {
	c.writeMu.Lock()
	if c.conn != nil || c.closed {
		c.writeMu.Unlock()
		return fmt.Errorf("%w: client already used", transport.ErrConnectFailed)
	}
	c.writeMu.Unlock()

	endpoint, err := buildEndpoint(rawURL, c.cfg.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", transport.ErrConnectFailed, err)
	}

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", transport.ErrConnectFailed, redact(endpoint), err)
	}

	// Unblock handshake reads if the caller gives up.
	stopWatch := context.AfterFunc(ctx, func() { _ = conn.Close() })
	err = c.handshake(conn, authToken)
	if !stopWatch() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %w", transport.ErrConnectFailed, err)
	}

	c.writeMu.Lock()
	if c.closed {
		c.writeMu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%w: %w", transport.ErrConnectFailed, transport.ErrClosed)
	}
	c.conn = conn
	c.started = true
	c.writeMu.Unlock()

	slog.Debug("socket.io connected", "sid", c.sid, "endpoint", redact(endpoint))
	go c.readLoop(conn)
	return nil
}

func (c *Client) handshake(conn *websocket.Conn, authToken string) error {
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)

	mt, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read open packet: %w", err)
	}
	p, err := decodeEngine(mt, msg)
	if err != nil || p.Type != eiopacket.OPEN {
		return fmt.Errorf("unexpected first packet %q", truncate(msg))
	}
	body, err := packetBody(p)
	if err != nil {
		return fmt.Errorf("read open packet: %w", err)
	}
	var open openPacket
	if err := json.Unmarshal(body, &open); err != nil {
		return fmt.Errorf("decode open packet: %w", err)
	}
	if open.PingInterval > 0 {
		c.readTimeout = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	}

	frames, err := encodeConnect(authToken)
	if err != nil {
		return fmt.Errorf("encode connect packet: %w", err)
	}
	if err := writeFrames(conn, frames); err != nil {
		return fmt.Errorf("write connect packet: %w", err)
	}

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("await connect ack: %w", err)
		}
		if len(msg) == 0 {
			continue
		}
		p, err := decodeEngine(mt, msg)
		if err != nil {
			slog.Debug("ignoring undecodable packet before connect ack", "packet", truncate(msg), "error", err)
			continue
		}
		switch p.Type {
		case eiopacket.PING:
			pong, err := pongFrame()
			if err == nil {
				err = writeFrames(conn, []frame{pong})
			}
			if err != nil {
				return fmt.Errorf("write pong: %w", err)
			}
		case eiopacket.CLOSE:
			return errors.New("server closed during handshake")
		case eiopacket.MESSAGE:
			packets, err := c.inboundPackets(mt, p)
			if err != nil {
				slog.Debug("ignoring malformed packet before connect ack", "packet", truncate(msg), "error", err)
			}
			for _, sp := range packets {
				if sp.Nsp != defaultNamespace {
					continue
				}
				switch sp.Type {
				case sioparser.CONNECT:
					c.sid = connectSID(sp)
					_ = conn.SetReadDeadline(time.Time{})
					_ = conn.SetWriteDeadline(time.Time{})
					return nil
				case sioparser.CONNECT_ERROR:
					return fmt.Errorf("connect rejected: %s", connectErrorMessage(sp))
				default:
					slog.Debug("ignoring socket.io packet before connect ack", "type", sp.Type.String())
				}
			}
		}
	}
}

// inboundPackets hands an Engine.IO message to the Socket.IO decoder. Only
// the read side touches the decoder.
func (c *Client) inboundPackets(messageType int, p *eiopacket.Packet) ([]*sioparser.Packet, error) {
	body, err := packetBody(p)
	if err != nil {
		return nil, err
	}
	if messageType == websocket.BinaryMessage {
		return c.decoder.add(body)
	}
	return c.decoder.add(string(body))
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.done)
	defer close(c.events)

	reason := "transport closed"
	for {
		if c.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stop:
				reason = "client closed"
			default:
				reason = err.Error()
				slog.Warn("socket.io read failed", "sid", c.sid, "error", err)
			}
			break
		}
		if len(msg) == 0 {
			continue
		}
		if stop := c.handlePacket(mt, msg, &reason); stop {
			break
		}
	}

	c.deliver(transport.Event{Name: transport.EventDisconnected, Args: []json.RawMessage{quote(reason)}})
}

// handlePacket processes one inbound frame and reports whether the read loop
// should end.
func (c *Client) handlePacket(messageType int, msg []byte, reason *string) bool {
	p, err := decodeEngine(messageType, msg)
	if err != nil {
		slog.Warn("dropping undecodable engine.io packet", "sid", c.sid, "error", err)
		return false
	}
	switch p.Type {
	case eiopacket.PING:
		pong, err := pongFrame()
		if err == nil {
			err = c.write([]frame{pong})
		}
		if err != nil {
			slog.Warn("socket.io pong failed", "sid", c.sid, "error", err)
		}
	case eiopacket.CLOSE:
		*reason = "server closed engine"
		return true
	case eiopacket.MESSAGE:
		packets, err := c.inboundPackets(messageType, p)
		if err != nil {
			slog.Warn("dropping malformed socket.io packet", "sid", c.sid, "error", err)
		}
		for _, sp := range packets {
			if stop := c.handleSocketPacket(sp, reason); stop {
				return true
			}
		}
	}
	return false
}

func (c *Client) handleSocketPacket(p *sioparser.Packet, reason *string) bool {
	if p.Nsp != defaultNamespace {
		slog.Debug("ignoring packet for foreign namespace", "sid", c.sid, "namespace", p.Nsp)
		return false
	}
	switch p.Type {
	case sioparser.EVENT:
		ev, err := decodeEvent(p)
		if err != nil {
			slog.Warn("dropping malformed socket.io event", "sid", c.sid, "error", err)
			return false
		}
		if !c.deliver(ev) {
			return true
		}
	case sioparser.DISCONNECT:
		*reason = "server disconnect"
		return true
	case sioparser.CONNECT_ERROR:
		*reason = "connect error: " + connectErrorMessage(p)
		return true
	case sioparser.BINARY_EVENT, sioparser.BINARY_ACK:
		slog.Warn("dropping unsupported binary socket.io packet", "sid", c.sid)
	default:
		slog.Debug("ignoring socket.io packet", "sid", c.sid, "type", p.Type.String())
	}
	return false
}

func (c *Client) deliver(ev transport.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.stop:
		return false
	}
}

// Emit writes one event. The write is bounded by WriteTimeout; a peer that
// stops reading surfaces as an error rather than a stalled caller.
func (c *Client) Emit(event string, args ...any) error {
	frames, err := encodeEvent(event, args)
	if err != nil {
		return err
	}
	return c.write(frames)
}

func (c *Client) write(frames []frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed || c.conn == nil {
		return transport.ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := writeFrames(c.conn, frames); err != nil {
		return fmt.Errorf("write socket.io frame: %w", err)
	}
	return nil
}

func writeFrames(conn *websocket.Conn, frames []frame) error {
	for _, f := range frames {
		if err := conn.WriteMessage(f.messageType, f.data); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Events() <-chan transport.Event {
	return c.events
}

// Close sends a best-effort disconnect packet and tears down the socket. It
// is safe to call more than once and returns within CloseTimeout.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)

		c.writeMu.Lock()
		c.closed = true
		conn := c.conn
		started := c.started
		if conn != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.CloseTimeout))
			if frames, ferr := encodeDisconnect(); ferr == nil {
				_ = writeFrames(conn, frames)
			}
			err = conn.Close()
		}
		c.writeMu.Unlock()

		if !started {
			close(c.events)
			return
		}
		select {
		case <-c.done:
		case <-time.After(c.cfg.CloseTimeout):
			slog.Warn("socket.io reader did not stop in time", "sid", c.sid)
		}
	})
	return err
}

func buildEndpoint(rawURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("url has no host")
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = path
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "invalid-url"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func truncate(msg []byte) string {
	const limit = 64
	if len(msg) > limit {
		return string(msg[:limit]) + "..."
	}
	return string(msg)
}
