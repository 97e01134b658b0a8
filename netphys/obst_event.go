package netphys

import "driftnet/physics"

// ObstacleEventKind は剛体イベントのサブタイプです。
type ObstacleEventKind uint8

const (
	ObstacleCreation ObstacleEventKind = iota + 1
	ObstacleDeletion
	ObstacleBodyType
	ObstaclePosition
	ObstacleVelocity
	ObstacleAngle
	ObstacleAngularVel
	ObstacleBoolConsts
	ObstacleFloatConsts
	ObstacleOwnerAcquire
	ObstacleOwnerRelease
)

// BoolConsts はまれにしか変化しないbool定数のグループです。
type BoolConsts struct {
	Enabled         bool
	Awake           bool
	SleepingAllowed bool
	FixedRotation   bool
	Bullet          bool
	Sensor          bool
}

// FloatConsts はまれにしか変化しないfloat定数のグループです。
type FloatConsts struct {
	Density        float32
	Friction       float32
	Restitution    float32
	LinearDamping  float32
	AngularDamping float32
	GravityScale   float32
	Mass           float32
	Inertia        float32
	Centroid       physics.Vec2
}

// ObstacleEvent は1つの剛体に対する状態差分を運ぶイベントです。
// ワイヤ形式: [1 byte: Kind][8 bytes: ObstacleID][Kind固有フィールド]
// フィールドはKindごとに必要なものだけをシリアライズし、高頻度の
// POSITION/VELOCITYメッセージを最小に保ちます。
type ObstacleEvent struct {
	EventMeta
	Kind       ObstacleEventKind
	ObstacleID uint64

	FactoryID uint32
	Params    []byte

	BodyType   physics.BodyType
	Position   physics.Vec2
	Velocity   physics.Vec2
	Angle      float32
	AngularVel float32
	Bools      BoolConsts
	Floats     FloatConsts

	// Duration はOwnerAcquireの所有ステップ数です。0は解放まで永続。
	Duration uint64
}

var _ Event = (*ObstacleEvent)(nil)

func NewCreationEvent(factoryID uint32, obstacleID uint64, params []byte) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstacleCreation, ObstacleID: obstacleID, FactoryID: factoryID, Params: params}
}

func NewDeletionEvent(obstacleID uint64) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstacleDeletion, ObstacleID: obstacleID}
}

func NewBodyTypeEvent(obstacleID uint64, t physics.BodyType) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstacleBodyType, ObstacleID: obstacleID, BodyType: t}
}

func NewPositionEvent(obstacleID uint64, pos physics.Vec2) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstaclePosition, ObstacleID: obstacleID, Position: pos}
}

func NewVelocityEvent(obstacleID uint64, vel physics.Vec2) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstacleVelocity, ObstacleID: obstacleID, Velocity: vel}
}

func NewAngleEvent(obstacleID uint64, angle float32) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstacleAngle, ObstacleID: obstacleID, Angle: angle}
}

func NewAngularVelEvent(obstacleID uint64, w float32) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstacleAngularVel, ObstacleID: obstacleID, AngularVel: w}
}

func NewBoolConstsEvent(obstacleID uint64, v BoolConsts) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstacleBoolConsts, ObstacleID: obstacleID, Bools: v}
}

func NewFloatConstsEvent(obstacleID uint64, v FloatConsts) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstacleFloatConsts, ObstacleID: obstacleID, Floats: v}
}

func NewOwnerAcquireEvent(obstacleID uint64, duration uint64) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstacleOwnerAcquire, ObstacleID: obstacleID, Duration: duration}
}

func NewOwnerReleaseEvent(obstacleID uint64) *ObstacleEvent {
	return &ObstacleEvent{Kind: ObstacleOwnerRelease, ObstacleID: obstacleID}
}

func (e *ObstacleEvent) Code() EventCode { return CodeObstacle }

func (e *ObstacleEvent) NewEvent() Event { return &ObstacleEvent{} }

func (e *ObstacleEvent) Serialize() []byte {
	var s Serializer
	s.WriteUint8(byte(e.Kind))
	s.WriteUint64(e.ObstacleID)
	switch e.Kind {
	case ObstacleCreation:
		s.WriteUint32(e.FactoryID)
		s.WriteBytes(e.Params)
	case ObstacleDeletion:
	case ObstacleBodyType:
		s.WriteUint32(uint32(e.BodyType))
	case ObstaclePosition:
		s.WriteFloat(e.Position.X)
		s.WriteFloat(e.Position.Y)
	case ObstacleVelocity:
		s.WriteFloat(e.Velocity.X)
		s.WriteFloat(e.Velocity.Y)
	case ObstacleAngle:
		s.WriteFloat(e.Angle)
	case ObstacleAngularVel:
		s.WriteFloat(e.AngularVel)
	case ObstacleBoolConsts:
		s.WriteBool(e.Bools.Enabled)
		s.WriteBool(e.Bools.Awake)
		s.WriteBool(e.Bools.SleepingAllowed)
		s.WriteBool(e.Bools.FixedRotation)
		s.WriteBool(e.Bools.Bullet)
		s.WriteBool(e.Bools.Sensor)
	case ObstacleFloatConsts:
		s.WriteFloat(e.Floats.Density)
		s.WriteFloat(e.Floats.Friction)
		s.WriteFloat(e.Floats.Restitution)
		s.WriteFloat(e.Floats.LinearDamping)
		s.WriteFloat(e.Floats.AngularDamping)
		s.WriteFloat(e.Floats.GravityScale)
		s.WriteFloat(e.Floats.Mass)
		s.WriteFloat(e.Floats.Inertia)
		s.WriteFloat(e.Floats.Centroid.X)
		s.WriteFloat(e.Floats.Centroid.Y)
	case ObstacleOwnerAcquire:
		s.WriteUint64(e.Duration)
	case ObstacleOwnerRelease:
	}
	return s.Bytes()
}

func (e *ObstacleEvent) Deserialize(data []byte) {
	var d Deserializer
	d.Receive(data)
	e.Kind = ObstacleEventKind(d.ReadUint8())
	e.ObstacleID = d.ReadUint64()
	switch e.Kind {
	case ObstacleCreation:
		e.FactoryID = d.ReadUint32()
		e.Params = d.Remaining()
	case ObstacleDeletion:
	case ObstacleBodyType:
		e.BodyType = physics.BodyType(d.ReadUint32())
	case ObstaclePosition:
		e.Position.X = d.ReadFloat()
		e.Position.Y = d.ReadFloat()
	case ObstacleVelocity:
		e.Velocity.X = d.ReadFloat()
		e.Velocity.Y = d.ReadFloat()
	case ObstacleAngle:
		e.Angle = d.ReadFloat()
	case ObstacleAngularVel:
		e.AngularVel = d.ReadFloat()
	case ObstacleBoolConsts:
		e.Bools.Enabled = d.ReadBool()
		e.Bools.Awake = d.ReadBool()
		e.Bools.SleepingAllowed = d.ReadBool()
		e.Bools.FixedRotation = d.ReadBool()
		e.Bools.Bullet = d.ReadBool()
		e.Bools.Sensor = d.ReadBool()
	case ObstacleFloatConsts:
		e.Floats.Density = d.ReadFloat()
		e.Floats.Friction = d.ReadFloat()
		e.Floats.Restitution = d.ReadFloat()
		e.Floats.LinearDamping = d.ReadFloat()
		e.Floats.AngularDamping = d.ReadFloat()
		e.Floats.GravityScale = d.ReadFloat()
		e.Floats.Mass = d.ReadFloat()
		e.Floats.Inertia = d.ReadFloat()
		e.Floats.Centroid.X = d.ReadFloat()
		e.Floats.Centroid.Y = d.ReadFloat()
	case ObstacleOwnerAcquire:
		e.Duration = d.ReadUint64()
	case ObstacleOwnerRelease:
	}
}
