package physics

// BodyType は剛体のシミュレーション種別です。
type BodyType uint32

const (
	BodyStatic BodyType = iota
	BodyKinematic
	BodyDynamic
)

// DirtyFlags はシミュレーション外から変更されたフィールドのビットマスクです。
// bit 0-4: 高頻度フィールド, bit 5-6: 定数グループ
type DirtyFlags uint8

const (
	DirtyNone       DirtyFlags = 0
	DirtyPosition   DirtyFlags = 1 << 0
	DirtyVelocity   DirtyFlags = 1 << 1
	DirtyAngle      DirtyFlags = 1 << 2
	DirtyAngularVel DirtyFlags = 1 << 3
	DirtyBodyType   DirtyFlags = 1 << 4
	DirtyBools      DirtyFlags = 1 << 5
	DirtyFloats     DirtyFlags = 1 << 6
)

func (d DirtyFlags) Has(x DirtyFlags) bool { return d&x != 0 }

// Obstacle は物理エンジン側の剛体に対する境界インターフェースです。
// 共有フラグが立っている間にセッターを呼ぶとdirtyビットが記録され、
// 同期エンジンが差分イベントを生成できます。ネットワーク由来の更新を
// 適用する側はSetShared(false)で囲んでdirty化を回避します。
type Obstacle interface {
	Position() Vec2
	SetPosition(p Vec2)
	LinearVelocity() Vec2
	SetLinearVelocity(v Vec2)
	Angle() float32
	SetAngle(a float32)
	AngularVelocity() float32
	SetAngularVelocity(w float32)
	BodyType() BodyType
	SetBodyType(t BodyType)

	Enabled() bool
	SetEnabled(b bool)
	Awake() bool
	SetAwake(b bool)
	SleepingAllowed() bool
	SetSleepingAllowed(b bool)
	FixedRotation() bool
	SetFixedRotation(b bool)
	Bullet() bool
	SetBullet(b bool)
	Sensor() bool
	SetSensor(b bool)

	Density() float32
	SetDensity(f float32)
	Friction() float32
	SetFriction(f float32)
	Restitution() float32
	SetRestitution(f float32)
	LinearDamping() float32
	SetLinearDamping(f float32)
	AngularDamping() float32
	SetAngularDamping(f float32)
	GravityScale() float32
	SetGravityScale(f float32)
	Mass() float32
	SetMass(f float32)
	Inertia() float32
	SetInertia(f float32)
	Centroid() Vec2
	SetCentroid(p Vec2)

	Shared() bool
	SetShared(b bool)
	Dirty() DirtyFlags
	ClearDirty()

	// Advance は1ステップ分の自由シミュレーションを進めます。
	// dirtyビットには影響しません。
	Advance(dt float32)
}

// Body はObstacleの標準実装です。運動学的な積分のみを行い、
// 衝突ソルバーは持ちません。
type Body struct {
	position   Vec2
	velocity   Vec2
	angle      float32
	angularVel float32
	bodyType   BodyType

	enabled         bool
	awake           bool
	sleepingAllowed bool
	fixedRotation   bool
	bullet          bool
	sensor          bool

	density        float32
	friction       float32
	restitution    float32
	linearDamping  float32
	angularDamping float32
	gravityScale   float32
	mass           float32
	inertia        float32
	centroid       Vec2

	shared bool
	dirty  DirtyFlags
}

var _ Obstacle = (*Body)(nil)

// NewBody は動的な剛体を生成します。
func NewBody(pos Vec2) *Body {
	return &Body{
		position:        pos,
		bodyType:        BodyDynamic,
		enabled:         true,
		awake:           true,
		sleepingAllowed: true,
		density:         1,
		friction:        0.2,
		gravityScale:    1,
		mass:            1,
	}
}

func (b *Body) mark(f DirtyFlags) {
	if b.shared {
		b.dirty |= f
	}
}

func (b *Body) Position() Vec2 { return b.position }
func (b *Body) SetPosition(p Vec2) {
	b.position = p
	b.mark(DirtyPosition)
}

func (b *Body) LinearVelocity() Vec2 { return b.velocity }
func (b *Body) SetLinearVelocity(v Vec2) {
	b.velocity = v
	b.mark(DirtyVelocity)
}

func (b *Body) Angle() float32 { return b.angle }
func (b *Body) SetAngle(a float32) {
	b.angle = a
	b.mark(DirtyAngle)
}

func (b *Body) AngularVelocity() float32 { return b.angularVel }
func (b *Body) SetAngularVelocity(w float32) {
	b.angularVel = w
	b.mark(DirtyAngularVel)
}

func (b *Body) BodyType() BodyType { return b.bodyType }
func (b *Body) SetBodyType(t BodyType) {
	b.bodyType = t
	b.mark(DirtyBodyType)
}

func (b *Body) Enabled() bool { return b.enabled }
func (b *Body) SetEnabled(v bool) {
	b.enabled = v
	b.mark(DirtyBools)
}

func (b *Body) Awake() bool { return b.awake }
func (b *Body) SetAwake(v bool) {
	b.awake = v
	b.mark(DirtyBools)
}

func (b *Body) SleepingAllowed() bool { return b.sleepingAllowed }
func (b *Body) SetSleepingAllowed(v bool) {
	b.sleepingAllowed = v
	b.mark(DirtyBools)
}

func (b *Body) FixedRotation() bool { return b.fixedRotation }
func (b *Body) SetFixedRotation(v bool) {
	b.fixedRotation = v
	b.mark(DirtyBools)
}

func (b *Body) Bullet() bool { return b.bullet }
func (b *Body) SetBullet(v bool) {
	b.bullet = v
	b.mark(DirtyBools)
}

func (b *Body) Sensor() bool { return b.sensor }
func (b *Body) SetSensor(v bool) {
	b.sensor = v
	b.mark(DirtyBools)
}

func (b *Body) Density() float32 { return b.density }
func (b *Body) SetDensity(f float32) {
	b.density = f
	b.mark(DirtyFloats)
}

func (b *Body) Friction() float32 { return b.friction }
func (b *Body) SetFriction(f float32) {
	b.friction = f
	b.mark(DirtyFloats)
}

func (b *Body) Restitution() float32 { return b.restitution }
func (b *Body) SetRestitution(f float32) {
	b.restitution = f
	b.mark(DirtyFloats)
}

func (b *Body) LinearDamping() float32 { return b.linearDamping }
func (b *Body) SetLinearDamping(f float32) {
	b.linearDamping = f
	b.mark(DirtyFloats)
}

func (b *Body) AngularDamping() float32 { return b.angularDamping }
func (b *Body) SetAngularDamping(f float32) {
	b.angularDamping = f
	b.mark(DirtyFloats)
}

func (b *Body) GravityScale() float32 { return b.gravityScale }
func (b *Body) SetGravityScale(f float32) {
	b.gravityScale = f
	b.mark(DirtyFloats)
}

func (b *Body) Mass() float32 { return b.mass }
func (b *Body) SetMass(f float32) {
	b.mass = f
	b.mark(DirtyFloats)
}

func (b *Body) Inertia() float32 { return b.inertia }
func (b *Body) SetInertia(f float32) {
	b.inertia = f
	b.mark(DirtyFloats)
}

func (b *Body) Centroid() Vec2 { return b.centroid }
func (b *Body) SetCentroid(p Vec2) {
	b.centroid = p
	b.mark(DirtyFloats)
}

func (b *Body) Shared() bool     { return b.shared }
func (b *Body) SetShared(v bool) { b.shared = v }

func (b *Body) Dirty() DirtyFlags { return b.dirty }
func (b *Body) ClearDirty()       { b.dirty = DirtyNone }

func (b *Body) Advance(dt float32) {
	if b.bodyType == BodyStatic || !b.enabled || !b.awake {
		return
	}
	b.position = b.position.Add(b.velocity.Scale(dt))
	if !b.fixedRotation {
		b.angle += b.angularVel * dt
	}
}
