package relay

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"driftnet/netcode"
)

var (
	// ErrRoomStarted はセッション開始後のルームへの参加要求です。
	ErrRoomStarted = errors.New("room session already started")
	// ErrNotRoomHost はホスト以外からのセッション開始要求です。
	ErrNotRoomHost = errors.New("only the room host can start the session")
)

// Room はリレー上の1ルームです。ホストと参加者を保持し、
// セッション開始までは参加を受け付け、開始後はメッセージの転送のみを行います。
type Room struct {
	ID uuid.UUID

	mu        sync.Mutex
	host      *Endpoint
	endpoints map[uuid.UUID]*Endpoint
	started   bool
}

func NewRoom(host *Endpoint) *Room {
	r := &Room{
		ID:        uuid.New(),
		host:      host,
		endpoints: map[uuid.UUID]*Endpoint{host.peer.ID: host},
	}
	return r
}

// Join は参加者をルームへ加え、既存ピアの一覧を返します。
func (r *Room) Join(ep *Endpoint) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil, ErrRoomStarted
	}
	others := make([]uuid.UUID, 0, len(r.endpoints))
	for id := range r.endpoints {
		others = append(others, id)
	}
	r.endpoints[ep.peer.ID] = ep
	return others, nil
}

// Leave は参加者をルームから外し、残り人数を返します。
func (r *Room) Leave(ep *Endpoint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, ep.peer.ID)
	return len(r.endpoints)
}

// Start はルームを閉じてセッションを開始します。ホスト専用です。
func (r *Room) Start(ep *Endpoint) error {
	r.mu.Lock()
	if ep != r.host {
		r.mu.Unlock()
		return ErrNotRoomHost
	}
	r.started = true
	r.mu.Unlock()

	frame := &netcode.Frame{Kind: netcode.FrameStart}
	r.Broadcast(nil, frame)
	return nil
}

// Broadcast はfrom以外の全参加者へフレームを送ります。fromがnilなら全員です。
func (r *Room) Broadcast(from *Endpoint, frame *netcode.Frame) {
	data := frame.Encode()
	r.mu.Lock()
	targets := make([]*Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		if ep != from {
			targets = append(targets, ep)
		}
	}
	r.mu.Unlock()
	for _, ep := range targets {
		ep.Send(data)
	}
}

// SendTo は単一の参加者へフレームを送ります。不在ならfalseです。
func (r *Room) SendTo(dst uuid.UUID, frame *netcode.Frame) bool {
	r.mu.Lock()
	ep, ok := r.endpoints[dst]
	r.mu.Unlock()
	if !ok {
		return false
	}
	ep.Send(frame.Encode())
	return true
}
