package netcode

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"
)

// バイトオーダー: リトルエンディアン
var byteOrder = binary.LittleEndian

const (
	// FrameHeaderSize は種別1バイト
	FrameHeaderSize = 1
	// IDSize はピアIDとルームIDのバイト長
	IDSize = 16
)

// FrameKind はリレーメッセージの種別
type FrameKind uint8

const (
	// FrameHost はルーム作成要求 (client -> relay)
	FrameHost FrameKind = 1
	// FrameJoin はルーム参加要求 (client -> relay): room
	FrameJoin FrameKind = 2
	// FrameWelcome は参加完了通知 (relay -> client): self, room, peers
	FrameWelcome FrameKind = 3
	// FramePeerJoined はピア参加通知 (relay -> client): peer
	FramePeerJoined FrameKind = 4
	// FramePeerLeft はピア離脱通知 (relay -> client): peer
	FramePeerLeft FrameKind = 5
	// FrameStart はセッション開始 (host -> relay, relay -> all)
	FrameStart FrameKind = 6
	// FrameData はブロードキャスト (client -> relay: payload / relay -> client: src, payload)
	FrameData FrameKind = 7
	// FrameSend はユニキャスト (client -> relay): dst, payload
	FrameSend FrameKind = 8
	// FramePing は死活監視 (relay -> client)
	FramePing FrameKind = 9
	// FramePong はFramePingへの応答 (client -> relay)
	FramePong FrameKind = 10
	// FrameError はエラー通知 (relay -> client): payload = message
	FrameError FrameKind = 11
)

var (
	ErrFrameTooShort    = errors.New("frame shorter than required fields")
	ErrUnknownFrameKind = errors.New("unknown frame kind")
)

// Frame はリレープロトコルの1メッセージです。
// 種別ごとに使われるフィールドが異なります。
type Frame struct {
	Kind    FrameKind
	Peer    uuid.UUID   // Welcomeでは自分のID、Data/Sendでは送信元/宛先
	Room    uuid.UUID   // Join/Welcomeのみ
	Peers   []uuid.UUID // Welcomeのみ
	Payload []byte
}

// Encode はFrameをバイト列にエンコードする
func (f *Frame) Encode() []byte {
	switch f.Kind {
	case FrameJoin:
		data := make([]byte, FrameHeaderSize+IDSize)
		data[0] = byte(f.Kind)
		copy(data[1:17], f.Room[:])
		return data
	case FrameWelcome:
		data := make([]byte, FrameHeaderSize+2*IDSize+1+len(f.Peers)*IDSize)
		data[0] = byte(f.Kind)
		copy(data[1:17], f.Peer[:])
		copy(data[17:33], f.Room[:])
		data[33] = byte(len(f.Peers))
		for i, p := range f.Peers {
			copy(data[34+i*IDSize:], p[:])
		}
		return data
	case FramePeerJoined, FramePeerLeft:
		data := make([]byte, FrameHeaderSize+IDSize)
		data[0] = byte(f.Kind)
		copy(data[1:17], f.Peer[:])
		return data
	case FrameData, FrameSend:
		data := make([]byte, FrameHeaderSize+IDSize+len(f.Payload))
		data[0] = byte(f.Kind)
		copy(data[1:17], f.Peer[:])
		copy(data[17:], f.Payload)
		return data
	case FrameError:
		data := make([]byte, FrameHeaderSize+len(f.Payload))
		data[0] = byte(f.Kind)
		copy(data[1:], f.Payload)
		return data
	default:
		return []byte{byte(f.Kind)}
	}
}

// ParseFrame はバイト列からFrameをパースする
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, ErrFrameTooShort
	}
	f := &Frame{Kind: FrameKind(data[0])}
	body := data[1:]

	switch f.Kind {
	case FrameHost, FrameStart, FramePing, FramePong:
		return f, nil
	case FrameJoin:
		if len(body) < IDSize {
			return nil, ErrFrameTooShort
		}
		copy(f.Room[:], body[:IDSize])
		return f, nil
	case FrameWelcome:
		if len(body) < 2*IDSize+1 {
			return nil, ErrFrameTooShort
		}
		copy(f.Peer[:], body[:16])
		copy(f.Room[:], body[16:32])
		count := int(body[32])
		if len(body) < 2*IDSize+1+count*IDSize {
			return nil, ErrFrameTooShort
		}
		f.Peers = make([]uuid.UUID, count)
		for i := 0; i < count; i++ {
			copy(f.Peers[i][:], body[33+i*IDSize:])
		}
		return f, nil
	case FramePeerJoined, FramePeerLeft:
		if len(body) < IDSize {
			return nil, ErrFrameTooShort
		}
		copy(f.Peer[:], body[:IDSize])
		return f, nil
	case FrameData, FrameSend:
		if len(body) < IDSize {
			return nil, ErrFrameTooShort
		}
		copy(f.Peer[:], body[:IDSize])
		f.Payload = body[IDSize:]
		return f, nil
	case FrameError:
		f.Payload = body
		return f, nil
	default:
		return nil, ErrUnknownFrameKind
	}
}
