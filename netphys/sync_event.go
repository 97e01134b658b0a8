package netphys

import "driftnet/physics"

// SnapshotSize は1スナップショットのワイヤ上のサイズです。
//
//	obstacleID uint64  (8)
//	x, y       float32 (8)
//	vx, vy     float32 (8)
//	angle      float32 (4)
//	angularVel float32 (4)
const SnapshotSize = 32

// Snapshot は1剛体の位置・速度の瞬間値です。
type Snapshot struct {
	ObstacleID uint64
	Position   physics.Vec2
	Velocity   physics.Vec2
	Angle      float32
	AngularVel float32
}

// SyncEvent は複数剛体のスナップショットをまとめて運ぶバッチイベントです。
// ワイヤ形式: [4 bytes: 件数][件数分のスナップショット]
// 同じIDは1イベント内で一度しかパックされません。
type SyncEvent struct {
	EventMeta
	snapshots []Snapshot
	seen      map[uint64]struct{}
}

var _ Event = (*SyncEvent)(nil)

func NewSyncEvent() *SyncEvent {
	return &SyncEvent{seen: make(map[uint64]struct{})}
}

// AddObstacle は剛体の現在の変位と速度をスナップショットして追加します。
// 同じIDを二度追加しても何も起こりません。
func (e *SyncEvent) AddObstacle(id uint64, obs physics.Obstacle) {
	if e.seen == nil {
		e.seen = make(map[uint64]struct{})
	}
	if _, ok := e.seen[id]; ok {
		return
	}
	e.seen[id] = struct{}{}
	e.snapshots = append(e.snapshots, Snapshot{
		ObstacleID: id,
		Position:   obs.Position(),
		Velocity:   obs.LinearVelocity(),
		Angle:      obs.Angle(),
		AngularVel: obs.AngularVelocity(),
	})
}

// Snapshots は現在のスナップショットリストを返します。
func (e *SyncEvent) Snapshots() []Snapshot {
	return e.snapshots
}

// Len はスナップショット件数を返します。
func (e *SyncEvent) Len() int {
	return len(e.snapshots)
}

func (e *SyncEvent) Code() EventCode { return CodeSync }

func (e *SyncEvent) NewEvent() Event { return NewSyncEvent() }

func (e *SyncEvent) Serialize() []byte {
	var s Serializer
	s.WriteUint32(uint32(len(e.snapshots)))
	for _, snap := range e.snapshots {
		s.WriteUint64(snap.ObstacleID)
		s.WriteFloat(snap.Position.X)
		s.WriteFloat(snap.Position.Y)
		s.WriteFloat(snap.Velocity.X)
		s.WriteFloat(snap.Velocity.Y)
		s.WriteFloat(snap.Angle)
		s.WriteFloat(snap.AngularVel)
	}
	return s.Bytes()
}

func (e *SyncEvent) Deserialize(data []byte) {
	var d Deserializer
	d.Receive(data)
	count := int(d.ReadUint32())
	// 破損した件数フィールドで巨大確保しないよう実際の残量で打ち切る
	if avail := len(d.Remaining()) / SnapshotSize; count > avail {
		count = avail
	}
	e.snapshots = make([]Snapshot, 0, count)
	e.seen = make(map[uint64]struct{}, count)
	for i := 0; i < count; i++ {
		var snap Snapshot
		snap.ObstacleID = d.ReadUint64()
		snap.Position.X = d.ReadFloat()
		snap.Position.Y = d.ReadFloat()
		snap.Velocity.X = d.ReadFloat()
		snap.Velocity.Y = d.ReadFloat()
		snap.Angle = d.ReadFloat()
		snap.AngularVel = d.ReadFloat()
		e.seen[snap.ObstacleID] = struct{}{}
		e.snapshots = append(e.snapshots, snap)
	}
}
