package netphys

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
)

var (
	// ErrUnknownEventCode は未登録のイベントコードです。
	ErrUnknownEventCode = errors.New("unknown event code")
	// ErrMalformedMessage はヘッダ長に満たない受信メッセージです。
	ErrMalformedMessage = errors.New("malformed network message")
	// ErrNotHost はホスト専用操作をクライアントが呼んだ場合のエラーです。
	ErrNotHost = errors.New("operation requires host role")
	// ErrInvalidStatus は現在のセッション状態で許可されない操作です。
	ErrInvalidStatus = errors.New("operation not allowed in current session status")
)

// メッセージヘッダはイベントコード1バイトと送信ティック8バイト
const wireHeaderSize = 9

// SessionStatus はセッションのライフサイクル状態です。
type SessionStatus uint8

const (
	// StatusIdle は未接続
	StatusIdle SessionStatus = iota
	// StatusConnecting はリレーサーバと交渉中
	StatusConnecting
	// StatusConnected はルーム参加済みでゲーム開始前
	StatusConnected
	// StatusHandshake はセッション開始後のUID配布待ち
	StatusHandshake
	// StatusReady はUID取得済みで全員の準備完了待ち
	StatusReady
	// StatusInGame はゲーム進行中
	StatusInGame
	// StatusNetError は回復不能なネットワーク障害
	StatusNetError
)

func (s SessionStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusHandshake:
		return "handshake"
	case StatusReady:
		return "ready"
	case StatusInGame:
		return "ingame"
	case StatusNetError:
		return "neterror"
	default:
		return "unknown"
	}
}

// Recorder はセッション中のメッセージを記録するシンクです。
// journalパッケージが実装します。
type Recorder interface {
	RecordSent(tick uint64, data []byte)
	RecordReceived(tick uint64, source string, data []byte)
}

// inEventQueue は送信ティックの昇順で取り出せる受信イベントのヒープです。
type inEventQueue []Event

func (q inEventQueue) Len() int            { return len(q) }
func (q inEventQueue) Less(i, j int) bool  { return q[i].SentTick() < q[j].SentTick() }
func (q inEventQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *inEventQueue) Push(x any)         { *q = append(*q, x.(Event)) }
func (q *inEventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// EventController はセッションのライフサイクルとイベント配送を統括します。
// 接続確立、UID配布、準備完了バリア、ゲーム開始の同期、そして
// 型つきイベントのシリアライズと順序つき配送を担当します。
// 物理同期はEnablePhysicsで有効になり、以降のUpdateNetが自動で
// 差分のパックと受信イベントの適用を行います。
//
// すべてのメソッドは単一のゲームループスレッドから呼ばれる前提です。
type EventController struct {
	dialer Dialer
	conn   Connection

	status   SessionStatus
	isHost   bool
	shortUID uint32

	tick      uint64
	startTick uint64

	numReady int

	factories map[EventCode]Event
	codes     []EventCode

	outQueue []Event
	inQueue  inEventQueue

	phys     *PhysicsController
	recorder Recorder
}

// NewEventController はアイドル状態のコントローラを生成します。
// 組み込みのGameStateイベント型は登録済みです。
func NewEventController(dialer Dialer) *EventController {
	c := &EventController{
		dialer:    dialer,
		status:    StatusIdle,
		factories: make(map[EventCode]Event),
	}
	c.AttachEventType(&GameStateEvent{})
	return c
}

// Status は現在のセッション状態を返します。
func (c *EventController) Status() SessionStatus {
	return c.status
}

// IsHost はこのピアがホストかどうかを返します。
func (c *EventController) IsHost() bool {
	return c.isHost
}

// ShortUID はセッション内で割り当てられた短縮UIDを返します。
// 配布前は0です。ホストは常に1です。
func (c *EventController) ShortUID() uint32 {
	return c.shortUID
}

// RoomID は参加中のルームIDを返します。未接続なら空文字列です。
func (c *EventController) RoomID() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.Room()
}

// NumPlayers は自分を含むルーム内のピア数を返します。
func (c *EventController) NumPlayers() int {
	if c.conn == nil {
		return 0
	}
	return c.conn.NumPlayers()
}

// GameTick はゲーム開始からの経過ティック数を返します。
func (c *EventController) GameTick() uint64 {
	if c.tick < c.startTick {
		return 0
	}
	return c.tick - c.startTick
}

// SetRecorder はメッセージ記録のシンクを設定します。nilで無効化します。
func (c *EventController) SetRecorder(r Recorder) {
	c.recorder = r
}

// AttachEventType はカスタムイベント型を登録します。
// コードが衝突した場合は最初の登録が勝ちます。
// 全ピアが同じ型を同じコードで登録している必要があります。
func (c *EventController) AttachEventType(proto Event) {
	code := proto.Code()
	if _, ok := c.factories[code]; ok {
		return
	}
	c.factories[code] = proto
	c.codes = append(c.codes, code)
}

// ConnectAsHost は新しいルームを作成してホストとして接続します。
func (c *EventController) ConnectAsHost(ctx context.Context) error {
	if c.status == StatusNetError {
		c.Disconnect()
	}
	if c.status != StatusIdle {
		return ErrInvalidStatus
	}
	c.status = StatusConnecting
	conn, err := c.dialer.DialHost(ctx)
	if err != nil {
		c.status = StatusNetError
		return err
	}
	c.conn = conn
	c.isHost = true
	c.checkConnection(ctx)
	return nil
}

// ConnectAsClient は既存のルームへクライアントとして接続します。
func (c *EventController) ConnectAsClient(ctx context.Context, roomID string) error {
	if c.status == StatusNetError {
		c.Disconnect()
	}
	if c.status != StatusIdle {
		return ErrInvalidStatus
	}
	c.status = StatusConnecting
	conn, err := c.dialer.DialClient(ctx, roomID)
	if err != nil {
		c.status = StatusNetError
		return err
	}
	c.conn = conn
	c.isHost = false
	c.checkConnection(ctx)
	return nil
}

// Disconnect は接続を閉じてアイドル状態へ戻します。
// 物理同期は無効化され、キューは破棄されます。
func (c *EventController) Disconnect() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			slog.Warn("failed to close connection", "err", err)
		}
		c.conn = nil
	}
	c.status = StatusIdle
	c.isHost = false
	c.shortUID = 0
	c.tick = 0
	c.startTick = 0
	c.numReady = 0
	c.outQueue = nil
	c.inQueue = nil
	c.phys = nil
}

// StartGame はルームを閉じてセッションを開始します。ホスト専用です。
func (c *EventController) StartGame() error {
	if !c.isHost {
		return ErrNotHost
	}
	if c.status != StatusConnected {
		return ErrInvalidStatus
	}
	return c.conn.StartSession()
}

// MarkReady はUID配布後に自分の準備完了を宣言します。
// ハンドシェイク中でUID未配布の場合は何もせずfalseを返します。
func (c *EventController) MarkReady() bool {
	if c.status != StatusHandshake || c.shortUID == 0 {
		return false
	}
	c.status = StatusReady
	c.PushOutEvent(NewClientReadyEvent())
	if c.isHost {
		// 自分へのブロードキャストは届かないため直接数える
		c.numReady++
	}
	return true
}

// EnablePhysics は共有物理ワールドの自動同期を有効にします。
// UID配布前に呼ぶとErrInvalidStatusを返します。
// linkはnilでも構いません。
func (c *EventController) EnablePhysics(world *NetWorld, link ObstacleLink) (*PhysicsController, error) {
	if c.shortUID == 0 {
		return nil, ErrInvalidStatus
	}
	world.SetShortUID(c.shortUID)
	c.phys = NewPhysicsController(world, c.isHost, link)
	c.AttachEventType(NewSyncEvent())
	c.AttachEventType(&ObstacleEvent{})
	if c.isHost {
		c.phys.OwnAll()
	}
	return c.phys, nil
}

// DisablePhysics は物理同期を停止します。
func (c *EventController) DisablePhysics() {
	if c.phys != nil {
		c.phys.Reset()
		c.phys = nil
	}
}

// Physics は有効化済みの同期エンジンを返します。未有効ならnilです。
func (c *EventController) Physics() *PhysicsController {
	return c.phys
}

// PushOutEvent はイベントを送信キューへ積みます。
// 次のUpdateNetで全ピアへブロードキャストされます。
func (c *EventController) PushOutEvent(e Event) {
	c.outQueue = append(c.outQueue, e)
}

// InAvailable は取り出し可能な受信イベントがあるかを返します。
// 送信ティックが現在のゲームティックを超えるイベントはまだ取り出せません。
func (c *EventController) InAvailable() bool {
	if len(c.inQueue) == 0 {
		return false
	}
	return c.inQueue[0].SentTick() <= c.GameTick()
}

// PopInEvent は最も古い受信イベントを取り出します。
func (c *EventController) PopInEvent() (Event, bool) {
	if !c.InAvailable() {
		return nil, false
	}
	return heap.Pop(&c.inQueue).(Event), true
}

// UpdateNet はゲームループから毎ティック呼ばれるポンプです。
// 接続状態の監視、物理差分のパック、受信メッセージの適用、
// 送信キューの払い出しを1回分行います。
func (c *EventController) UpdateNet(ctx context.Context) {
	if c.status == StatusIdle || c.conn == nil {
		return
	}
	c.tick++
	c.checkConnection(ctx)

	if c.status == StatusInGame && c.phys != nil {
		c.phys.PackSync(FullSync)
		c.phys.PackObstacleChanges()
		c.phys.Update()
		for _, e := range c.phys.DrainOutEvents() {
			c.PushOutEvent(e)
		}
	}

	c.processReceivedData(ctx)
	c.sendQueuedOutData(ctx)
}

func (c *EventController) processReceivedData(ctx context.Context) {
	c.conn.Receive(func(source string, data []byte) {
		if c.recorder != nil {
			c.recorder.RecordReceived(c.tick, source, data)
		}
		e, err := c.unwrap(data, source)
		if err != nil {
			slog.WarnContext(ctx, "dropping inbound message", "source", source, "err", err)
			return
		}
		switch ev := e.(type) {
		case *GameStateEvent:
			c.processGameStateEvent(ctx, ev)
		case *SyncEvent:
			if c.phys != nil {
				c.phys.ProcessSyncEvent(ev)
			} else {
				heap.Push(&c.inQueue, e)
			}
		case *ObstacleEvent:
			if c.phys != nil {
				c.phys.ProcessObstacleEvent(ev)
			} else {
				heap.Push(&c.inQueue, e)
			}
		default:
			heap.Push(&c.inQueue, e)
		}
	})
}

func (c *EventController) sendQueuedOutData(ctx context.Context) {
	for _, e := range c.outQueue {
		data := c.wrap(e)
		if err := c.conn.Broadcast(data); err != nil {
			slog.WarnContext(ctx, "failed to broadcast event", "code", e.Code(), "err", err)
			continue
		}
		if c.recorder != nil {
			c.recorder.RecordSent(c.tick, data)
		}
	}
	c.outQueue = c.outQueue[:0]
}

// wrap はイベントをコード1バイトと送信ティック8バイトのヘッダつきで
// ワイヤ形式に直列化します。
func (c *EventController) wrap(e Event) []byte {
	payload := e.Serialize()
	var s Serializer
	s.WriteUint8(byte(e.Code()))
	s.WriteUint64(c.GameTick())
	s.WriteBytes(payload)
	return s.Bytes()
}

func (c *EventController) unwrap(data []byte, source string) (Event, error) {
	if len(data) < wireHeaderSize {
		return nil, ErrMalformedMessage
	}
	code := EventCode(data[0])
	proto, ok := c.factories[code]
	if !ok {
		return nil, ErrUnknownEventCode
	}
	var d Deserializer
	d.Receive(data[1:wireHeaderSize])
	sentTick := d.ReadUint64()
	e := proto.NewEvent()
	e.Deserialize(data[wireHeaderSize:])
	e.setMeta(sentTick, c.GameTick(), source)
	return e, nil
}

func (c *EventController) processGameStateEvent(ctx context.Context, e *GameStateEvent) {
	switch e.Kind {
	case GameStateUIDAssign:
		if c.status == StatusHandshake {
			c.shortUID = e.ShortUID
		}
	case GameStateClientReady:
		if c.isHost {
			c.numReady++
		}
	case GameStateGameStart:
		if c.status == StatusReady {
			c.status = StatusInGame
			c.startTick = c.tick
		}
	default:
		// リセットや一時停止の扱いはアプリケーションに委ねる
		heap.Push(&c.inQueue, e)
	}
}

func (c *EventController) checkConnection(ctx context.Context) {
	if c.conn == nil {
		return
	}
	switch c.conn.State() {
	case StateConnected:
		if c.status == StatusConnecting {
			c.status = StatusConnected
			slog.DebugContext(ctx, "joined room", "room", c.conn.Room(), "host", c.isHost)
		}
	case StateInSession:
		if c.status == StatusConnected {
			c.status = StatusHandshake
			if c.isHost {
				c.assignUIDs(ctx)
			}
		}
	case StateDisconnected, StateFailed:
		if c.status != StatusNetError {
			slog.WarnContext(ctx, "connection lost", "room", c.conn.Room())
			c.status = StatusNetError
		}
		return
	}

	if c.isHost && c.status == StatusReady && c.numReady == c.conn.NumPlayers() {
		c.PushOutEvent(NewGameStartEvent())
		c.status = StatusInGame
		c.startTick = c.tick
	}
}

// assignUIDs はセッション開始直後にホストが全ピアへ短縮UIDを配ります。
// 自分は常に1、クライアントは参加一覧の順に2からの連番です。
func (c *EventController) assignUIDs(ctx context.Context) {
	c.shortUID = 1
	uid := uint32(2)
	for _, peer := range c.conn.Players() {
		data := c.wrap(NewUIDAssignEvent(uid))
		if err := c.conn.Send(peer, data); err != nil {
			slog.WarnContext(ctx, "failed to assign uid", "peer", peer, "err", err)
		}
		uid++
	}
}
