package netphys_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"driftnet/netphys"
	"driftnet/netphys/mocks"
	"driftnet/physics"
)

// fakeConn はゲームループ1本で回すテスト用のインメモリ接続です。
// gomockは呼び出し検証に、こちらは複数ピアのシナリオに使い分けます。
type fakeConn struct {
	state   netphys.ConnectionState
	room    string
	self    string
	players []string

	sent      map[string][][]byte // peer -> messages
	broadcast [][]byte
	inbox     []fakeMsg

	startCalls int
	closed     bool
}

type fakeMsg struct {
	source string
	data   []byte
}

func newFakeConn(self string, players ...string) *fakeConn {
	return &fakeConn{
		state:   netphys.StateConnected,
		room:    "room-1",
		self:    self,
		players: players,
		sent:    make(map[string][][]byte),
	}
}

func (c *fakeConn) State() netphys.ConnectionState { return c.state }
func (c *fakeConn) Room() string                   { return c.room }
func (c *fakeConn) Self() string                   { return c.self }
func (c *fakeConn) Players() []string              { return c.players }
func (c *fakeConn) NumPlayers() int                { return len(c.players) + 1 }

func (c *fakeConn) StartSession() error {
	c.startCalls++
	c.state = netphys.StateInSession
	return nil
}

func (c *fakeConn) Send(peer string, data []byte) error {
	c.sent[peer] = append(c.sent[peer], data)
	return nil
}

func (c *fakeConn) Broadcast(data []byte) error {
	c.broadcast = append(c.broadcast, data)
	return nil
}

func (c *fakeConn) Receive(fn func(source string, data []byte)) {
	msgs := c.inbox
	c.inbox = nil
	for _, m := range msgs {
		fn(m.source, m.data)
	}
}

func (c *fakeConn) Close() error {
	c.closed = true
	c.state = netphys.StateDisconnected
	return nil
}

func (c *fakeConn) deliver(source string, data []byte) {
	c.inbox = append(c.inbox, fakeMsg{source: source, data: data})
}

type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) DialHost(ctx context.Context) (netphys.Connection, error) {
	return d.conn, d.err
}

func (d *fakeDialer) DialClient(ctx context.Context, roomID string) (netphys.Connection, error) {
	return d.conn, d.err
}

func TestConnectAsHost(t *testing.T) {
	conn := newFakeConn("h")
	c := netphys.NewEventController(&fakeDialer{conn: conn})

	if err := c.ConnectAsHost(context.Background()); err != nil {
		t.Fatalf("ConnectAsHost failed: %v", err)
	}
	if c.Status() != netphys.StatusConnected {
		t.Errorf("Status = %v, want connected", c.Status())
	}
	if !c.IsHost() {
		t.Errorf("IsHost = false, want true")
	}
	if c.RoomID() != "room-1" {
		t.Errorf("RoomID = %q, want room-1", c.RoomID())
	}
}

func TestConnectAsHostDialFailure(t *testing.T) {
	dialErr := errors.New("relay unreachable")
	c := netphys.NewEventController(&fakeDialer{err: dialErr})

	if err := c.ConnectAsHost(context.Background()); !errors.Is(err, dialErr) {
		t.Fatalf("err = %v, want dial error", err)
	}
	if c.Status() != netphys.StatusNetError {
		t.Errorf("Status = %v, want neterror", c.Status())
	}
}

func TestConnectUsesDialerMock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := mocks.NewMockConnection(ctrl)
	conn.EXPECT().State().Return(netphys.StateConnected).AnyTimes()
	conn.EXPECT().Room().Return("room-9").AnyTimes()

	dialer := mocks.NewMockDialer(ctrl)
	dialer.EXPECT().DialClient(gomock.Any(), "room-9").Return(conn, nil)

	c := netphys.NewEventController(dialer)
	if err := c.ConnectAsClient(context.Background(), "room-9"); err != nil {
		t.Fatalf("ConnectAsClient failed: %v", err)
	}
	if c.Status() != netphys.StatusConnected {
		t.Errorf("Status = %v, want connected", c.Status())
	}
}

func TestStartGameRequiresHost(t *testing.T) {
	conn := newFakeConn("c")
	c := netphys.NewEventController(&fakeDialer{conn: conn})
	if err := c.ConnectAsClient(context.Background(), "room-1"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := c.StartGame(); !errors.Is(err, netphys.ErrNotHost) {
		t.Errorf("err = %v, want ErrNotHost", err)
	}
}

// ホストがセッションを開始すると自分に1、各クライアントに連番のUIDが配られる
func TestHostAssignsShortUIDs(t *testing.T) {
	conn := newFakeConn("h", "c1", "c2")
	c := netphys.NewEventController(&fakeDialer{conn: conn})
	ctx := context.Background()

	if err := c.ConnectAsHost(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := c.StartGame(); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	c.UpdateNet(ctx)

	if c.Status() != netphys.StatusHandshake {
		t.Fatalf("Status = %v, want handshake", c.Status())
	}
	if c.ShortUID() != 1 {
		t.Errorf("host ShortUID = %d, want 1", c.ShortUID())
	}
	if len(conn.sent["c1"]) != 1 || len(conn.sent["c2"]) != 1 {
		t.Fatalf("uid messages: c1=%d c2=%d, want 1 each", len(conn.sent["c1"]), len(conn.sent["c2"]))
	}
}

// クライアントはUID受信後にMarkReadyでき、受信前はできない
func TestMarkReadyRequiresAssignedUID(t *testing.T) {
	hostConn := newFakeConn("h", "c1")
	host := netphys.NewEventController(&fakeDialer{conn: hostConn})
	clientConn := newFakeConn("c1", "h")
	client := netphys.NewEventController(&fakeDialer{conn: clientConn})
	ctx := context.Background()

	if err := host.ConnectAsHost(ctx); err != nil {
		t.Fatalf("host connect failed: %v", err)
	}
	if err := client.ConnectAsClient(ctx, "room-1"); err != nil {
		t.Fatalf("client connect failed: %v", err)
	}

	host.StartGame()
	clientConn.state = netphys.StateInSession
	client.UpdateNet(ctx)
	if client.MarkReady() {
		t.Errorf("MarkReady succeeded before uid assignment")
	}

	host.UpdateNet(ctx)
	uidMsg := hostConn.sent["c1"][0]
	clientConn.deliver("h", uidMsg)
	client.UpdateNet(ctx)

	if client.ShortUID() != 2 {
		t.Fatalf("client ShortUID = %d, want 2", client.ShortUID())
	}
	if !client.MarkReady() {
		t.Errorf("MarkReady failed after uid assignment")
	}
	if client.Status() != netphys.StatusReady {
		t.Errorf("Status = %v, want ready", client.Status())
	}
}

// 全員のREADYが揃った時だけホストがGAME_STARTを送る
func TestReadyBarrier(t *testing.T) {
	conn := newFakeConn("h", "c1")
	c := netphys.NewEventController(&fakeDialer{conn: conn})
	ctx := context.Background()

	c.ConnectAsHost(ctx)
	c.StartGame()
	c.UpdateNet(ctx)
	if !c.MarkReady() {
		t.Fatalf("host MarkReady failed")
	}

	// クライアントのREADYがまだなので開始しない
	c.UpdateNet(ctx)
	if c.Status() == netphys.StatusInGame {
		t.Fatalf("game started with only 1/2 ready")
	}

	ready := wireEvent(t, netphys.NewClientReadyEvent())
	conn.deliver("c1", ready)
	c.UpdateNet(ctx)
	c.UpdateNet(ctx)

	if c.Status() != netphys.StatusInGame {
		t.Errorf("Status = %v, want ingame after all ready", c.Status())
	}
	if !containsGameStart(t, conn.broadcast) {
		t.Errorf("no game start broadcast found")
	}
}

func TestDisconnectOnConnectionLoss(t *testing.T) {
	conn := newFakeConn("h")
	c := netphys.NewEventController(&fakeDialer{conn: conn})
	ctx := context.Background()

	c.ConnectAsHost(ctx)
	conn.state = netphys.StateFailed
	c.UpdateNet(ctx)

	if c.Status() != netphys.StatusNetError {
		t.Errorf("Status = %v, want neterror", c.Status())
	}
}

// 未知のコードやヘッダ未満のメッセージは黙って捨てられる
func TestMalformedInboundDropped(t *testing.T) {
	conn := newFakeConn("h", "c1")
	c := netphys.NewEventController(&fakeDialer{conn: conn})
	ctx := context.Background()

	c.ConnectAsHost(ctx)
	conn.deliver("c1", []byte{0xee, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	conn.deliver("c1", []byte{0})
	c.UpdateNet(ctx)

	if c.InAvailable() {
		t.Errorf("malformed messages reached the in queue")
	}
}

type pingEvent struct {
	netphys.EventMeta
	Value uint32
}

func (e *pingEvent) Code() netphys.EventCode { return netphys.FirstCustomCode }
func (e *pingEvent) NewEvent() netphys.Event { return &pingEvent{} }

func (e *pingEvent) Serialize() []byte {
	var s netphys.Serializer
	s.WriteUint32(e.Value)
	return s.Bytes()
}

func (e *pingEvent) Deserialize(data []byte) {
	var d netphys.Deserializer
	d.Receive(data)
	e.Value = d.ReadUint32()
}

func TestCustomEventRoundTripThroughController(t *testing.T) {
	sender := newFakeConn("a", "b")
	receiverConn := newFakeConn("b", "a")
	a := netphys.NewEventController(&fakeDialer{conn: sender})
	b := netphys.NewEventController(&fakeDialer{conn: receiverConn})
	a.AttachEventType(&pingEvent{})
	b.AttachEventType(&pingEvent{})
	ctx := context.Background()

	a.ConnectAsHost(ctx)
	b.ConnectAsClient(ctx, "room-1")

	a.PushOutEvent(&pingEvent{Value: 77})
	a.UpdateNet(ctx)
	if len(sender.broadcast) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(sender.broadcast))
	}

	receiverConn.deliver("a", sender.broadcast[0])
	b.UpdateNet(ctx)

	if !b.InAvailable() {
		t.Fatalf("no event available on receiver")
	}
	e, ok := b.PopInEvent()
	if !ok {
		t.Fatalf("PopInEvent failed")
	}
	ping, ok := e.(*pingEvent)
	if !ok {
		t.Fatalf("event type = %T, want *pingEvent", e)
	}
	if ping.Value != 77 {
		t.Errorf("Value = %d, want 77", ping.Value)
	}
	if ping.Source() != "a" {
		t.Errorf("Source = %q, want a", ping.Source())
	}
}

// 同じコードの二重登録は最初の型が勝つ
func TestAttachEventTypeIdempotent(t *testing.T) {
	conn := newFakeConn("a", "b")
	c := netphys.NewEventController(&fakeDialer{conn: conn})
	c.AttachEventType(&pingEvent{})
	c.AttachEventType(&pingEvent{})
	ctx := context.Background()

	c.ConnectAsHost(ctx)
	conn.deliver("b", wireEvent(t, &pingEvent{Value: 5}))
	c.UpdateNet(ctx)
	if !c.InAvailable() {
		t.Errorf("event with re-registered code not delivered")
	}
}

func TestEnablePhysicsRequiresUID(t *testing.T) {
	conn := newFakeConn("h")
	c := netphys.NewEventController(&fakeDialer{conn: conn})
	c.ConnectAsHost(context.Background())

	world := netphys.NewNetWorld(physics.NewWorld(physics.Vec2{}))
	if _, err := c.EnablePhysics(world, nil); !errors.Is(err, netphys.ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

// ゲーム中は物理差分が毎ティック自動でブロードキャストされる
func TestUpdateNetPumpsPhysics(t *testing.T) {
	conn := newFakeConn("h")
	c := netphys.NewEventController(&fakeDialer{conn: conn})
	ctx := context.Background()

	c.ConnectAsHost(ctx)
	c.StartGame()
	c.UpdateNet(ctx)
	c.MarkReady()

	world := netphys.NewNetWorld(physics.NewWorld(physics.Vec2{}))
	phys, err := c.EnablePhysics(world, nil)
	if err != nil {
		t.Fatalf("EnablePhysics failed: %v", err)
	}
	_ = phys

	c.UpdateNet(ctx)
	if c.Status() != netphys.StatusInGame {
		t.Fatalf("Status = %v, want ingame", c.Status())
	}

	before := len(conn.broadcast)
	c.UpdateNet(ctx)
	if len(conn.broadcast) <= before {
		t.Errorf("no sync broadcast during game tick")
	}
}

// wireEvent はコントローラのワイヤ形式 (コード1バイト + 送信ティック8バイト + ペイロード) を組み立てる
func wireEvent(t *testing.T, e netphys.Event) []byte {
	t.Helper()
	var s netphys.Serializer
	s.WriteUint8(byte(e.Code()))
	s.WriteUint64(0)
	s.WriteBytes(e.Serialize())
	return s.Bytes()
}

func containsGameStart(t *testing.T, msgs [][]byte) bool {
	t.Helper()
	for _, m := range msgs {
		if len(m) < 10 {
			continue
		}
		if netphys.EventCode(m[0]) != netphys.CodeGameState {
			continue
		}
		e := &netphys.GameStateEvent{}
		e.Deserialize(m[9:])
		if e.Kind == netphys.GameStateGameStart {
			return true
		}
	}
	return false
}
