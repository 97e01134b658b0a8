package netphys

import (
	"testing"

	"driftnet/physics"
)

const floatTolerance = 1e-4

func floatEqual(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < floatTolerance
}

// テスト用ファクトリ: 座標2つをパラメータに取る
type testFactory struct{}

func (testFactory) CreateObstacle(params []byte) (physics.Obstacle, any, error) {
	var d Deserializer
	d.Receive(params)
	pos := physics.Vec2{X: d.ReadFloat(), Y: d.ReadFloat()}
	return physics.NewBody(pos), nil, nil
}

func testParams(pos physics.Vec2) []byte {
	var s Serializer
	s.WriteFloat(pos.X)
	s.WriteFloat(pos.Y)
	return s.Bytes()
}

func newTestController(isHost bool) *PhysicsController {
	w := NewNetWorld(physics.NewWorld(physics.Vec2{}))
	w.SetShortUID(1)
	c := NewPhysicsController(w, isHost, nil)
	c.AttachFactory(testFactory{})
	return c
}

// 送信元つきのイベントを作るヘルパー
func fromRemote[E Event](e E) E {
	e.setMeta(0, 0, "peer-remote")
	return e
}

func TestAddSharedObstacleEmitsCreation(t *testing.T) {
	c := newTestController(true)
	obs, _, err := c.AddSharedObstacle(0, testParams(physics.Vec2{X: 2, Y: 3}))
	if err != nil {
		t.Fatalf("AddSharedObstacle failed: %v", err)
	}
	if !obs.Shared() {
		t.Errorf("obstacle not shared")
	}
	if !c.Owns(obs) {
		t.Errorf("host does not own the new obstacle")
	}

	events := c.DrainOutEvents()
	if len(events) != 1 {
		t.Fatalf("out events = %d, want 1", len(events))
	}
	e, ok := events[0].(*ObstacleEvent)
	if !ok || e.Kind != ObstacleCreation {
		t.Fatalf("event = %T kind %v, want creation", events[0], e.Kind)
	}
	if _, found := c.World().Obstacle(e.ObstacleID); !found {
		t.Errorf("creation event id %#x not registered", e.ObstacleID)
	}
}

func TestAddSharedObstacleUnknownFactory(t *testing.T) {
	c := newTestController(true)
	if _, _, err := c.AddSharedObstacle(99, nil); err != ErrUnknownFactory {
		t.Errorf("err = %v, want ErrUnknownFactory", err)
	}
}

// ピアAのCREATIONがピアBで同じIDの剛体を生む
func TestCreationPropagatesBetweenPeers(t *testing.T) {
	host := newTestController(true)
	client := newTestController(false)
	client.World().SetShortUID(2)

	_, _, err := host.AddSharedObstacle(0, testParams(physics.Vec2{X: 5, Y: 6}))
	if err != nil {
		t.Fatalf("AddSharedObstacle failed: %v", err)
	}
	creation := host.DrainOutEvents()[0].(*ObstacleEvent)

	decoded := &ObstacleEvent{}
	decoded.Deserialize(creation.Serialize())
	client.ProcessObstacleEvent(fromRemote(decoded))

	obs, ok := client.World().Obstacle(creation.ObstacleID)
	if !ok {
		t.Fatalf("obstacle %#x not created on client", creation.ObstacleID)
	}
	if obs.Position() != (physics.Vec2{X: 5, Y: 6}) {
		t.Errorf("Position = %v, want {5 6}", obs.Position())
	}
	if !obs.Shared() {
		t.Errorf("remote obstacle not shared")
	}
}

// 自分が送信元のイベントは適用されない
func TestProcessObstacleEventSkipsLoopback(t *testing.T) {
	c := newTestController(false)
	obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{X: 1, Y: 1}))
	id, _ := c.World().ObstacleID(obs)
	c.DrainOutEvents()

	e := NewPositionEvent(id, physics.Vec2{X: 99, Y: 99})
	c.ProcessObstacleEvent(e)

	if obs.Position() != (physics.Vec2{X: 1, Y: 1}) {
		t.Errorf("loopback event applied, Position = %v", obs.Position())
	}
}

func TestProcessDeletionRemovesObstacle(t *testing.T) {
	c := newTestController(false)
	obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{}))
	id, _ := c.World().ObstacleID(obs)
	c.DrainOutEvents()

	c.ProcessObstacleEvent(fromRemote(NewDeletionEvent(id)))
	if _, ok := c.World().Obstacle(id); ok {
		t.Errorf("obstacle still present after deletion event")
	}
}

// ネットワーク適用による変更はdirtyにならず、エコーバックしない
func TestNetworkApplyDoesNotMarkDirty(t *testing.T) {
	c := newTestController(false)
	obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{}))
	id, _ := c.World().ObstacleID(obs)
	c.DrainOutEvents()

	c.ProcessObstacleEvent(fromRemote(NewPositionEvent(id, physics.Vec2{X: 4, Y: 4})))

	if obs.Position() != (physics.Vec2{X: 4, Y: 4}) {
		t.Fatalf("Position = %v, want {4 4}", obs.Position())
	}
	c.PackObstacleChanges()
	if events := c.DrainOutEvents(); len(events) != 0 {
		t.Errorf("out events = %d, want 0", len(events))
	}
}

// 角度だけ変えたらANGLEイベントが1つだけ出る
func TestPackObstacleChangesMinimalDiff(t *testing.T) {
	c := newTestController(true)
	obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{}))
	c.DrainOutEvents()

	obs.SetAngle(1.5)
	c.PackObstacleChanges()

	events := c.DrainOutEvents()
	if len(events) != 1 {
		t.Fatalf("out events = %d, want 1", len(events))
	}
	e := events[0].(*ObstacleEvent)
	if e.Kind != ObstacleAngle {
		t.Errorf("Kind = %d, want angle", e.Kind)
	}
	if !floatEqual(e.Angle, 1.5) {
		t.Errorf("Angle = %v, want 1.5", e.Angle)
	}

	// dirtyはクリア済みなので二度目は何も出ない
	c.PackObstacleChanges()
	if events := c.DrainOutEvents(); len(events) != 0 {
		t.Errorf("second pack events = %d, want 0", len(events))
	}
}

// 一時所有は指定ステップ後に自動で解放され、RELEASEが送られる
func TestOwnershipLapsesAfterDuration(t *testing.T) {
	c := newTestController(false)
	obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{}))
	c.DrainOutEvents()

	c.AcquireObstacle(obs, 10)
	events := c.DrainOutEvents()
	if len(events) != 1 || events[0].(*ObstacleEvent).Kind != ObstacleOwnerAcquire {
		t.Fatalf("expected single owner acquire event, got %v", events)
	}

	for i := 0; i < 9; i++ {
		c.Update()
		if !c.Owns(obs) {
			t.Fatalf("ownership lost early at step %d", i)
		}
	}
	c.Update()
	if c.Owns(obs) {
		t.Errorf("ownership not released after duration")
	}
	events = c.DrainOutEvents()
	if len(events) != 1 || events[0].(*ObstacleEvent).Kind != ObstacleOwnerRelease {
		t.Errorf("expected single owner release event, got %v", events)
	}
}

// ホストの所有は永続で、Updateを重ねても失われない
func TestHostOwnershipIsPermanent(t *testing.T) {
	c := newTestController(true)
	obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{}))
	c.DrainOutEvents()

	for i := 0; i < 30; i++ {
		c.Update()
	}
	if !c.Owns(obs) {
		t.Errorf("host lost permanent ownership")
	}
	if events := c.DrainOutEvents(); len(events) != 0 {
		t.Errorf("unexpected events from permanent ownership: %v", events)
	}
}

func TestReleaseObstacleIsNoopForHost(t *testing.T) {
	c := newTestController(true)
	obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{}))
	c.DrainOutEvents()

	c.ReleaseObstacle(obs)
	if !c.Owns(obs) {
		t.Errorf("host released ownership")
	}
	if events := c.DrainOutEvents(); len(events) != 0 {
		t.Errorf("unexpected events: %v", events)
	}
}

func TestPackSyncFullIncludesOnlyOwned(t *testing.T) {
	c := newTestController(false)
	owned, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{X: 1, Y: 1}))
	other, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{X: 2, Y: 2}))
	c.DrainOutEvents()
	c.AcquireObstacle(owned, 0)
	c.DrainOutEvents()
	_ = other

	c.PackSync(FullSync)
	events := c.DrainOutEvents()
	if len(events) != 1 {
		t.Fatalf("out events = %d, want 1", len(events))
	}
	sync := events[0].(*SyncEvent)
	if sync.Len() != 1 {
		t.Fatalf("snapshots = %d, want 1", sync.Len())
	}
	id, _ := c.World().ObstacleID(owned)
	if sync.Snapshots()[0].ObstacleID != id {
		t.Errorf("snapshot id = %#x, want %#x", sync.Snapshots()[0].ObstacleID, id)
	}
}

func TestPackSyncOverrideIncludesEverything(t *testing.T) {
	c := newTestController(false)
	c.AddSharedObstacle(0, testParams(physics.Vec2{X: 1, Y: 1}))
	c.AddSharedObstacle(0, testParams(physics.Vec2{X: 2, Y: 2}))
	c.DrainOutEvents()

	c.PackSync(OverrideFullSync)
	sync := c.DrainOutEvents()[0].(*SyncEvent)
	if sync.Len() != 2 {
		t.Errorf("snapshots = %d, want 2", sync.Len())
	}
}

// 所有していない剛体はシンクの対象になり、数ステップで目標へ収束する
func TestProcessSyncEventInterpolatesTowardTarget(t *testing.T) {
	c := newTestController(false)
	obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{X: 0, Y: 0}))
	id, _ := c.World().ObstacleID(obs)
	c.DrainOutEvents()
	// クライアントは作った剛体を所有していない前提にする
	c.ProcessObstacleEvent(fromRemote(NewOwnerAcquireEvent(id, 0)))

	target := physics.Vec2{X: 0.5, Y: 0.5}
	sync := NewSyncEvent()
	remote := physics.NewBody(target)
	sync.AddObstacle(id, remote)
	decoded := NewSyncEvent()
	decoded.Deserialize(sync.Serialize())
	c.ProcessSyncEvent(fromRemote(decoded))

	if !c.Interpolating(id) {
		t.Fatalf("obstacle not scheduled for interpolation")
	}
	for i := 0; i < 31; i++ {
		c.Update()
	}
	if c.Interpolating(id) {
		t.Errorf("interpolation did not finish within step budget")
	}
	if !floatEqual(obs.Position().X, target.X) || !floatEqual(obs.Position().Y, target.Y) {
		t.Errorf("Position = %v, want %v", obs.Position(), target)
	}
}

// 自分が所有している剛体は受信シンクで動かない
func TestProcessSyncEventSkipsOwned(t *testing.T) {
	c := newTestController(false)
	obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{}))
	id, _ := c.World().ObstacleID(obs)
	c.DrainOutEvents()
	c.AcquireObstacle(obs, 0)
	c.DrainOutEvents()

	sync := NewSyncEvent()
	sync.AddObstacle(id, physics.NewBody(physics.Vec2{X: 50, Y: 50}))
	decoded := NewSyncEvent()
	decoded.Deserialize(sync.Serialize())
	c.ProcessSyncEvent(fromRemote(decoded))

	if c.Interpolating(id) {
		t.Errorf("owned obstacle scheduled for interpolation")
	}
}

// 非数や無限大を含むスナップショットは捨てられる
func TestProcessSyncEventRejectsNonFinite(t *testing.T) {
	c := newTestController(false)
	obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{}))
	id, _ := c.World().ObstacleID(obs)
	c.DrainOutEvents()
	c.ProcessObstacleEvent(fromRemote(NewOwnerAcquireEvent(id, 0)))

	var s Serializer
	s.WriteUint32(1)
	s.WriteUint64(id)
	s.WriteFloat(float32(nan()))
	s.WriteFloat(0)
	s.WriteFloat(0)
	s.WriteFloat(0)
	s.WriteFloat(0)
	s.WriteFloat(0)
	decoded := NewSyncEvent()
	decoded.Deserialize(s.Bytes())
	c.ProcessSyncEvent(fromRemote(decoded))

	if c.Interpolating(id) {
		t.Errorf("non-finite snapshot scheduled for interpolation")
	}
}

func nan() float64 {
	z := 0.0
	return z / z
}

// 乖離が大きいほど補間ステップ数が増え、上限は30
func TestInterpolationStepScaling(t *testing.T) {
	tests := []struct {
		name      string
		target    physics.Vec2
		wantSteps int
	}{
		{"small gap", physics.Vec2{X: 0.1}, 3},
		{"medium gap", physics.Vec2{X: 0.5}, 15},
		{"large gap capped", physics.Vec2{X: 100}, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(false)
			obs, _, _ := c.AddSharedObstacle(0, testParams(physics.Vec2{}))
			id, _ := c.World().ObstacleID(obs)
			c.DrainOutEvents()
			c.ProcessObstacleEvent(fromRemote(NewOwnerAcquireEvent(id, 0)))

			sync := NewSyncEvent()
			sync.AddObstacle(id, physics.NewBody(tt.target))
			decoded := NewSyncEvent()
			decoded.Deserialize(sync.Serialize())
			c.ProcessSyncEvent(fromRemote(decoded))

			param, ok := c.cache[id]
			if !ok {
				t.Fatalf("no interpolation scheduled")
			}
			if param.NumSteps != tt.wantSteps {
				t.Errorf("NumSteps = %d, want %d", param.NumSteps, tt.wantSteps)
			}
		})
	}
}

func TestResetClearsState(t *testing.T) {
	c := newTestController(true)
	c.AddSharedObstacle(0, testParams(physics.Vec2{}))
	c.Reset()
	if events := c.DrainOutEvents(); len(events) != 0 {
		t.Errorf("out events after reset = %d, want 0", len(events))
	}
}
