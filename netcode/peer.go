package netcode

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Peer は1接続の論理的な接続状態を表す構造体です。
type Peer struct {
	ID uuid.UUID

	// activity
	lastRead  atomic.Int64
	lastWrite atomic.Int64
	lastPong  atomic.Int64

	// lifecycle
	closed atomic.Bool
}

func NewPeer() *Peer {
	p := &Peer{
		ID: uuid.New(),
	}
	now := time.Now().UnixNano()
	p.lastRead.Store(now)
	p.lastWrite.Store(now)
	p.lastPong.Store(now)
	return p
}

func (p *Peer) TouchRead() {
	p.lastRead.Store(time.Now().UnixNano())
}

func (p *Peer) TouchWrite() {
	p.lastWrite.Store(time.Now().UnixNano())
}

func (p *Peer) TouchPong() {
	p.lastPong.Store(time.Now().UnixNano())
}

func (p *Peer) Close() bool {
	return p.closed.CompareAndSwap(false, true)
}

func (p *Peer) IsClosed() bool {
	return p.closed.Load()
}

// IsIdle はpong応答が途絶えてtimeoutを超えたかを返します。
func (p *Peer) IsIdle(timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	last := time.Unix(0, p.lastPong.Load())
	return time.Since(last) > timeout
}
