package netcode

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"driftnet/netphys"
)

var (
	// ErrRelayRejected はリレーサーバーからのエラー通知です。
	ErrRelayRejected = errors.New("relay rejected the request")
	// ErrInvalidPeerID はUUIDとして解釈できないピアIDです。
	ErrInvalidPeerID = errors.New("invalid peer id")
)

// Dialer はリレーサーバーへのwebsocket接続を確立します。
// netphys.Dialerを実装します。
type Dialer struct {
	// URL はリレーのwebsocketエンドポイント (例 ws://localhost:9090/ws)
	URL string
}

func NewDialer(url string) *Dialer {
	return &Dialer{URL: url}
}

// DialHost は新しいルームを作成してホストとして参加します。
func (d *Dialer) DialHost(ctx context.Context) (netphys.Connection, error) {
	return d.dial(ctx, &Frame{Kind: FrameHost})
}

// DialClient は既存のルームへクライアントとして参加します。
func (d *Dialer) DialClient(ctx context.Context, roomID string) (netphys.Connection, error) {
	room, err := uuid.Parse(roomID)
	if err != nil {
		return nil, err
	}
	return d.dial(ctx, &Frame{Kind: FrameJoin, Room: room})
}

func (d *Dialer) dial(ctx context.Context, hello *Frame) (netphys.Connection, error) {
	ws, _, err := websocket.Dial(ctx, d.URL, nil)
	if err != nil {
		return nil, err
	}
	conn := newConn(NewTransportFrom(ws))
	if err := conn.transport.Write(ctx, hello.Encode()); err != nil {
		_ = conn.transport.Close(1000, "")
		return nil, err
	}
	go conn.readLoop()
	return conn, nil
}

type inboundMsg struct {
	source string
	data   []byte
}

// Conn はリレー経由のピア間接続です。netphys.Connectionを実装します。
// 受信メッセージは内部の受信箱に溜まり、Receiveでまとめて払い出されます。
type Conn struct {
	ctx       context.Context
	cancel    context.CancelFunc
	transport Transport

	mu    sync.Mutex
	state netphys.ConnectionState
	self  uuid.UUID
	room  uuid.UUID
	peers map[uuid.UUID]struct{}
	inbox []inboundMsg
}

func newConn(transport Transport) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		ctx:       ctx,
		cancel:    cancel,
		transport: transport,
		state:     netphys.StateNegotiating,
		peers:     make(map[uuid.UUID]struct{}),
	}
}

func (c *Conn) readLoop() {
	for {
		data, err := c.transport.Read(c.ctx)
		if err != nil {
			c.mu.Lock()
			if c.state == netphys.StateNegotiating {
				c.state = netphys.StateFailed
			} else if c.state != netphys.StateFailed {
				c.state = netphys.StateDisconnected
			}
			c.mu.Unlock()
			return
		}
		frame, err := ParseFrame(data)
		if err != nil {
			slog.Warn("dropping unparsable relay frame", "err", err)
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Conn) handleFrame(frame *Frame) {
	switch frame.Kind {
	case FrameWelcome:
		c.mu.Lock()
		c.self = frame.Peer
		c.room = frame.Room
		for _, p := range frame.Peers {
			c.peers[p] = struct{}{}
		}
		c.state = netphys.StateConnected
		c.mu.Unlock()
	case FramePeerJoined:
		c.mu.Lock()
		c.peers[frame.Peer] = struct{}{}
		c.mu.Unlock()
	case FramePeerLeft:
		c.mu.Lock()
		delete(c.peers, frame.Peer)
		c.mu.Unlock()
	case FrameStart:
		c.mu.Lock()
		c.state = netphys.StateInSession
		c.mu.Unlock()
	case FrameData:
		c.mu.Lock()
		c.inbox = append(c.inbox, inboundMsg{
			source: frame.Peer.String(),
			data:   frame.Payload,
		})
		c.mu.Unlock()
	case FramePing:
		pong := &Frame{Kind: FramePong}
		if err := c.transport.Write(c.ctx, pong.Encode()); err != nil {
			slog.Warn("pong failed", "err", err)
		}
	case FrameError:
		slog.Warn("relay error", "message", string(frame.Payload))
		c.mu.Lock()
		c.state = netphys.StateFailed
		c.mu.Unlock()
	}
}

func (c *Conn) State() netphys.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == (uuid.UUID{}) {
		return ""
	}
	return c.room.String()
}

func (c *Conn) Self() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self.String()
}

func (c *Conn) Players() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	players := make([]string, 0, len(c.peers))
	for p := range c.peers {
		players = append(players, p.String())
	}
	return players
}

func (c *Conn) NumPlayers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.peers) + 1
}

func (c *Conn) StartSession() error {
	frame := &Frame{Kind: FrameStart}
	return c.transport.Write(c.ctx, frame.Encode())
}

func (c *Conn) Send(peer string, data []byte) error {
	dst, err := uuid.Parse(peer)
	if err != nil {
		return ErrInvalidPeerID
	}
	frame := &Frame{Kind: FrameSend, Peer: dst, Payload: data}
	return c.transport.Write(c.ctx, frame.Encode())
}

func (c *Conn) Broadcast(data []byte) error {
	c.mu.Lock()
	self := c.self
	c.mu.Unlock()
	frame := &Frame{Kind: FrameData, Peer: self, Payload: data}
	return c.transport.Write(c.ctx, frame.Encode())
}

func (c *Conn) Receive(fn func(source string, data []byte)) {
	c.mu.Lock()
	msgs := c.inbox
	c.inbox = nil
	c.mu.Unlock()
	for _, msg := range msgs {
		fn(msg.source, msg.data)
	}
}

func (c *Conn) Close() error {
	c.cancel()
	c.mu.Lock()
	if c.state != netphys.StateFailed {
		c.state = netphys.StateDisconnected
	}
	c.mu.Unlock()
	return c.transport.Close(1000, "")
}
