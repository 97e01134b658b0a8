package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"driftnet/netcode"
)

var (
	// ErrBackpressure は書き込みチャネルが満杯の場合に返されるエラーです。
	ErrBackpressure = errors.New("write channel is full, apply backpressure")
)

const (
	pingInterval = 10 * time.Second
	idleTimeout  = 30 * time.Second
)

// Endpoint はリレーに接続した1ピアを担当します。
// 読み取り、書き込み、死活監視をそれぞれ専用のゴルーチンで回します。
type Endpoint struct {
	ctx    context.Context
	cancel context.CancelFunc

	peer      *netcode.Peer
	transport netcode.Transport
	server    *Server
	room      *Room

	writeCh chan []byte
}

func NewEndpoint(ctx context.Context, peer *netcode.Peer, transport netcode.Transport, server *Server) *Endpoint {
	ctx, cancel := context.WithCancel(ctx)
	return &Endpoint{
		ctx:       ctx,
		cancel:    cancel,
		peer:      peer,
		transport: transport,
		server:    server,
		writeCh:   make(chan []byte, 1024),
	}
}

// Send は書き込みチャネルへデータを積みます。満杯なら捨ててエラーを返します。
func (ep *Endpoint) Send(data []byte) error {
	select {
	case ep.writeCh <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Run はピアの離脱まで読み書きループを回します。
// 最初のフレームでルームの作成か参加を確定させます。
func (ep *Endpoint) Run() error {
	defer ep.close()

	if err := ep.negotiate(); err != nil {
		slog.WarnContext(ep.ctx, "room negotiation failed", "peer", ep.peer.ID, "err", err)
		return err
	}
	defer ep.leaveRoom()

	eg, ctx := errgroup.WithContext(ep.ctx)
	eg.Go(func() error {
		return ep.readLoop(ctx)
	})
	eg.Go(func() error {
		ep.writeLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		ep.pingLoop(ctx)
		return nil
	})
	return eg.Wait()
}

func (ep *Endpoint) negotiate() (err error) {
	data, err := ep.transport.Read(ep.ctx)
	if err != nil {
		return err
	}
	ep.peer.TouchRead()
	frame, err := netcode.ParseFrame(data)
	if err != nil {
		return err
	}

	switch frame.Kind {
	case netcode.FrameHost:
		ep.room = ep.server.CreateRoom(ep)
		ep.sendWelcome(nil)
	case netcode.FrameJoin:
		room, ok := ep.server.LookupRoom(frame.Room)
		if !ok {
			ep.sendError("room not found")
			return ErrRoomNotFound
		}
		peers, err := room.Join(ep)
		if err != nil {
			ep.sendError(err.Error())
			return err
		}
		ep.room = room
		ep.sendWelcome(peers)
		room.Broadcast(ep, &netcode.Frame{Kind: netcode.FramePeerJoined, Peer: ep.peer.ID})
	default:
		ep.sendError("expected host or join")
		return netcode.ErrUnknownFrameKind
	}
	slog.DebugContext(ep.ctx, "peer joined room", "peer", ep.peer.ID, "room", ep.room.ID)
	return nil
}

func (ep *Endpoint) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			data, err := ep.transport.Read(ctx)
			if err != nil {
				return err
			}
			ep.peer.TouchRead()
			frame, err := netcode.ParseFrame(data)
			if err != nil {
				slog.WarnContext(ctx, "dropping unparsable frame", "peer", ep.peer.ID, "err", err)
				continue
			}
			ep.handleFrame(ctx, frame)
		}
	}
}

func (ep *Endpoint) handleFrame(ctx context.Context, frame *netcode.Frame) {
	switch frame.Kind {
	case netcode.FrameStart:
		if err := ep.room.Start(ep); err != nil {
			ep.sendError(err.Error())
		}
	case netcode.FrameData:
		// 送信元を自分のIDに固定してから転送する
		ep.room.Broadcast(ep, &netcode.Frame{
			Kind:    netcode.FrameData,
			Peer:    ep.peer.ID,
			Payload: frame.Payload,
		})
	case netcode.FrameSend:
		ok := ep.room.SendTo(frame.Peer, &netcode.Frame{
			Kind:    netcode.FrameData,
			Peer:    ep.peer.ID,
			Payload: frame.Payload,
		})
		if !ok {
			slog.DebugContext(ctx, "unicast target not in room", "peer", ep.peer.ID, "target", frame.Peer)
		}
	case netcode.FramePong:
		ep.peer.TouchPong()
	default:
		slog.WarnContext(ctx, "unexpected frame from peer", "peer", ep.peer.ID, "kind", frame.Kind)
	}
}

func (ep *Endpoint) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-ep.writeCh:
			if err := ep.transport.Write(ctx, data); err != nil {
				slog.WarnContext(ctx, "write failed", "peer", ep.peer.ID, "err", err)
				ep.cancel()
				return
			}
			ep.peer.TouchWrite()
		}
	}
}

func (ep *Endpoint) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	ping := (&netcode.Frame{Kind: netcode.FramePing}).Encode()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ep.peer.IsIdle(idleTimeout) {
				slog.WarnContext(ctx, "closing idle peer", "peer", ep.peer.ID)
				ep.cancel()
				return
			}
			if err := ep.Send(ping); err != nil {
				slog.WarnContext(ctx, "ping dropped", "peer", ep.peer.ID, "err", err)
			}
		}
	}
}

func (ep *Endpoint) sendWelcome(peers []uuid.UUID) {
	frame := &netcode.Frame{
		Kind:  netcode.FrameWelcome,
		Peer:  ep.peer.ID,
		Room:  ep.room.ID,
		Peers: peers,
	}
	if err := ep.Send(frame.Encode()); err != nil {
		slog.WarnContext(ep.ctx, "welcome dropped", "peer", ep.peer.ID, "err", err)
	}
}

func (ep *Endpoint) sendError(msg string) {
	frame := &netcode.Frame{Kind: netcode.FrameError, Payload: []byte(msg)}
	_ = ep.transport.Write(ep.ctx, frame.Encode())
}

func (ep *Endpoint) leaveRoom() {
	if ep.room == nil {
		return
	}
	remaining := ep.room.Leave(ep)
	ep.room.Broadcast(ep, &netcode.Frame{Kind: netcode.FramePeerLeft, Peer: ep.peer.ID})
	if remaining == 0 {
		ep.server.RemoveRoom(ep.room.ID)
	}
}

func (ep *Endpoint) close() {
	ep.cancel()
	if ep.peer.Close() {
		_ = ep.transport.Close(1000, "")
	}
}
