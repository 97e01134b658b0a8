package netphys

// EventCode はワイヤ上のイベント種別を示す1バイトの識別子です。
// 識別子空間はピアローカルであり、すべてのピアが同じ順序・同じ内容で
// 登録を済ませてからでないと当該タイプのメッセージを送ってはいけません。
type EventCode uint8

const (
	CodeGameState EventCode = iota
	CodeSync
	CodeObstacle

	// FirstCustomCode 以降がアプリケーション定義イベント用の空間です。
	FirstCustomCode
)

// Event はネットワーク越しに送られるすべてのメッセージの共通インターフェースです。
// 受信側は数値のEventCodeから具象インスタンスを生成してからデシリアライズする
// 必要があるため、各実装は自分自身の空インスタンスを返すNewEventを持ちます。
type Event interface {
	// Code はこのイベント種別のワイヤ識別子を返します。
	Code() EventCode
	// NewEvent は同じ型の空のイベントを返します。
	NewEvent() Event
	// Serialize はペイロードをバイト列に変換します。
	Serialize() []byte
	// Deserialize はバイト列からフィールドを復元します。
	Deserialize(data []byte)

	setMeta(sentTick, receivedTick uint64, source string)
	SentTick() uint64
	ReceivedTick() uint64
	Source() string
}

// EventMeta はセッションコントローラーだけが設定するメタデータです。
// サブクラスのシリアライズには一切含まれません。
type EventMeta struct {
	sentTick     uint64
	receivedTick uint64
	source       string
}

func (m *EventMeta) setMeta(sentTick, receivedTick uint64, source string) {
	m.sentTick = sentTick
	m.receivedTick = receivedTick
	m.source = source
}

// SentTick は送信側のゲームティックを返します。
func (m *EventMeta) SentTick() uint64 { return m.sentTick }

// ReceivedTick は受信側のゲームティックを返します。
func (m *EventMeta) ReceivedTick() uint64 { return m.receivedTick }

// Source は送信元ピアの識別子を返します。ローカル生成イベントでは空文字列です。
func (m *EventMeta) Source() string { return m.source }
