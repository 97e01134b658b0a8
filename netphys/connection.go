package netphys

import "context"

//go:generate go tool mockgen -destination=./mocks/connection_mock.go -package=mocks . Dialer,Connection

// ConnectionState は下位トランスポート接続の状態です。
type ConnectionState uint8

const (
	// StateNegotiating は接続確立とルーム参加の交渉中
	StateNegotiating ConnectionState = iota
	// StateConnected はルーム参加済みでセッション開始待ち
	StateConnected
	// StateInSession はセッション進行中
	StateInSession
	// StateDisconnected は正常切断後
	StateDisconnected
	// StateFailed は回復不能なトランスポート障害
	StateFailed
)

// Connection はピア間通信のトランスポート層です。
// 実装はnetcodeパッケージが提供します。すべてのメソッドは
// 単一のゲームループスレッドから呼ばれる前提です。
type Connection interface {
	// State は現在の接続状態を返します。
	State() ConnectionState
	// Room は参加中のルームIDを返します。交渉完了前は空文字列です。
	Room() string
	// Self は自分のピアIDを返します。
	Self() string
	// Players は自分を除くリモートピアのID一覧を返します。
	Players() []string
	// NumPlayers は自分を含むルーム内のピア数を返します。
	NumPlayers() int
	// StartSession はルームを閉じてセッションを開始します。ホスト専用です。
	StartSession() error
	// Send は単一ピアへバイナリメッセージを送ります。
	Send(peer string, data []byte) error
	// Broadcast は自分以外の全ピアへバイナリメッセージを送ります。
	Broadcast(data []byte) error
	// Receive は到着済みメッセージを送信元IDとともにすべて払い出します。
	Receive(fn func(source string, data []byte))
	// Close は接続を閉じます。
	Close() error
}

// Dialer はリレーサーバへの接続を確立します。
type Dialer interface {
	// DialHost は新しいルームを作成してホストとして参加します。
	DialHost(ctx context.Context) (Connection, error)
	// DialClient は既存のルームへクライアントとして参加します。
	DialClient(ctx context.Context, roomID string) (Connection, error)
}
