package netphys

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"driftnet/physics"
	"driftnet/utils"
)

// ErrUnknownFactory は登録されていないファクトリIDへの参照です。
var ErrUnknownFactory = errors.New("unknown obstacle factory id")

// ObstacleFactory は不透明なパラメータ列から剛体を組み立てるファクトリです。
// 2番目の戻り値は任意のビュー側ノードで、ObstacleLinkにそのまま渡されます。
// 全ピアが同じIDで同じファクトリを登録している必要があります。
type ObstacleFactory interface {
	CreateObstacle(params []byte) (physics.Obstacle, any, error)
}

// ObstacleLink は生成された剛体をシーン側のノードに接続するコールバックです。
type ObstacleLink func(obs physics.Obstacle, node any)

// InterpMethod は乖離補正の補間方式です。
type InterpMethod uint8

const (
	// InterpLinear は線形補間: source + (target-source)/stepsLeft
	InterpLinear InterpMethod = iota
	// InterpBezier は3次ベジェ曲線による位置補正
	InterpBezier
	// InterpHermite はエルミート基底による位置・速度ブレンド
	InterpHermite
	// InterpPID は積分項つきの速度補正
	InterpPID
)

// SyncKind はバッチ同期の種類です。
type SyncKind uint8

const (
	// FullSync は所有している共有剛体すべてのスナップショット
	FullSync SyncKind = iota
	// OverrideFullSync は共有でないものも含めた全登録剛体のスナップショット。
	// 受信側は未知のIDを無視します。
	OverrideFullSync
	// PrioSync は高速に動く剛体を優先したスナップショット
	PrioSync
)

// PrioSyncと併用するラウンドロビンの件数
const (
	prioSyncLimit       = 60
	prioSyncRobinLimit = 20
)

// TargetParams は乖離補正中の剛体に一時的に付与される補間ターゲットです。
// P0..P3は3次曲線の制御点、IとNumIはPID方式の積分誤差です。
type TargetParams struct {
	CurStep  int
	NumSteps int

	P0 physics.Vec2
	P1 physics.Vec2
	P2 physics.Vec2
	P3 physics.Vec2

	TargetVel   physics.Vec2
	TargetAngle float32
	TargetAngV  float32

	I    physics.Vec2
	NumI int
}

// PhysicsController は共有物理ワールドの同期エンジンです。
// 所有権の管理、差分イベントの生成、受信イベントの適用、そして
// 乖離したリモート所有剛体のスムーズな補正を担当します。
// すべての操作は毎フレームの更新スレッドからのみ呼ばれる前提で、
// ロックは持ちません。
type PhysicsController struct {
	world  *NetWorld
	isHost bool
	link   ObstacleLink

	factories []ObstacleFactory

	method InterpMethod

	// cache は補正中の剛体ID→補間ターゲット
	cache map[uint64]*TargetParams
	nodes map[uint64]any

	outEvents []Event

	itprCount int
	ovrdCount int
	stepSum   int
}

// NewPhysicsController は同期エンジンを生成します。
// linkがnilでない場合、受信したCREATIONで生成された剛体は自動的に
// ビュー側ノードへ接続されます。
func NewPhysicsController(world *NetWorld, isHost bool, link ObstacleLink) *PhysicsController {
	world.markStarted()
	return &PhysicsController{
		world:  world,
		isHost: isHost,
		link:   link,
		cache:  make(map[uint64]*TargetParams),
		nodes:  make(map[uint64]any),
	}
}

// SetInterpMethod は乖離補正の補間方式を切り替えます。
func (c *PhysicsController) SetInterpMethod(m InterpMethod) {
	c.method = m
}

// World は管理対象のネットワークワールドを返します。
func (c *PhysicsController) World() *NetWorld {
	return c.world
}

// AttachFactory は剛体ファクトリを登録し、そのIDを返します。
// 登録順がそのままIDになるため、全ピアで同じ順序で登録してください。
func (c *PhysicsController) AttachFactory(f ObstacleFactory) uint32 {
	c.factories = append(c.factories, f)
	return uint32(len(c.factories) - 1)
}

// AddSharedObstacle は共有剛体を生成してワールドへ追加し、
// 他の全ピアへCREATIONイベントをブロードキャストします。
func (c *PhysicsController) AddSharedObstacle(factoryID uint32, params []byte) (physics.Obstacle, any, error) {
	if int(factoryID) >= len(c.factories) {
		return nil, nil, ErrUnknownFactory
	}
	obs, node, err := c.factories[factoryID].CreateObstacle(params)
	if err != nil {
		return nil, nil, err
	}
	obs.SetShared(true)
	id, err := c.world.PlaceObstacle(obs)
	if err != nil {
		return nil, nil, err
	}
	if c.isHost {
		c.world.ownedObs[id] = 0
	}
	if c.link != nil {
		c.link(obs, node)
		c.nodes[id] = node
	}
	c.outEvents = append(c.outEvents, NewCreationEvent(factoryID, id, params))
	return obs, node, nil
}

// RemoveSharedObstacle は共有剛体をワールドから削除し、
// DELETIONイベントをブロードキャストします。未登録の剛体には何もしません。
func (c *PhysicsController) RemoveSharedObstacle(obs physics.Obstacle) {
	id, ok := c.world.ObstacleID(obs)
	if !ok {
		return
	}
	c.outEvents = append(c.outEvents, NewDeletionEvent(id))
	c.world.RemoveObstacle(obs)
	delete(c.cache, id)
	delete(c.nodes, id)
}

// AcquireObstacle は剛体の所有権を一定ステップ数の間ローカルに取得し、
// OWNER_ACQUIREイベントを送信します。durationが0の場合は解放まで永続、
// ホストが呼んだ場合は常に永続です。
//
// 警告: 同じ剛体に対して複数のクライアントが同時期にこれを呼んだ場合の
// 動作は未定義です。所有の重複はこの層では検出も解決もされません。
func (c *PhysicsController) AcquireObstacle(obs physics.Obstacle, duration uint64) {
	id, ok := c.world.ObstacleID(obs)
	if !ok {
		return
	}
	if c.isHost {
		c.world.ownedObs[id] = 0
	} else {
		c.world.ownedObs[id] = duration
	}
	c.outEvents = append(c.outEvents, NewOwnerAcquireEvent(id, duration))
}

// ReleaseObstacle は剛体の所有権をホストへ返します。
// ホストが呼んだ場合や所有していない剛体には何もしません。
func (c *PhysicsController) ReleaseObstacle(obs physics.Obstacle) {
	if c.isHost {
		return
	}
	id, ok := c.world.ObstacleID(obs)
	if !ok {
		return
	}
	if _, owned := c.world.ownedObs[id]; !owned {
		return
	}
	delete(c.world.ownedObs, id)
	c.outEvents = append(c.outEvents, NewOwnerReleaseEvent(id))
}

// OwnAll はワールド内の全剛体の所有権を永続取得します。
// ネットワークへは何も送信しません。初期セットアップ専用です。
func (c *PhysicsController) OwnAll() {
	for _, id := range c.world.ObstacleIDs() {
		c.world.ownedObs[id] = 0
	}
}

// Owns はこのピアが剛体を所有しているかを返します。
func (c *PhysicsController) Owns(obs physics.Obstacle) bool {
	id, ok := c.world.ObstacleID(obs)
	if !ok {
		return false
	}
	_, owned := c.world.ownedObs[id]
	return owned
}

// DrainOutEvents は蓄積した送信イベントを返し、キューを空にします。
func (c *PhysicsController) DrainOutEvents() []Event {
	out := c.outEvents
	c.outEvents = nil
	return out
}

// Update は毎シミュレーションティックに一度、物理ステップの後に呼ばれます。
// 一時所有の残ステップを数え、補正中の剛体の補間を1ステップ進めます。
func (c *PhysicsController) Update() {
	c.tickOwnership()
	c.tickInterpolation()
}

func (c *PhysicsController) tickOwnership() {
	var expired []uint64
	for id, left := range c.world.ownedObs {
		if left == 1 {
			expired = append(expired, id)
		} else if left > 1 {
			c.world.ownedObs[id] = left - 1
		}
	}
	for _, id := range expired {
		if obs, ok := c.world.Obstacle(id); ok {
			c.ReleaseObstacle(obs)
		} else {
			delete(c.world.ownedObs, id)
		}
	}
}

func (c *PhysicsController) tickInterpolation() {
	var done []uint64
	for id, param := range c.cache {
		obs, ok := c.world.Obstacle(id)
		if !ok || !obs.Shared() {
			done = append(done, id)
			continue
		}
		obs.SetShared(false)
		stepsLeft := param.NumSteps - param.CurStep
		if stepsLeft <= 1 {
			obs.SetPosition(param.P3)
			obs.SetLinearVelocity(param.TargetVel)
			obs.SetAngle(param.TargetAngle)
			obs.SetAngularVelocity(param.TargetAngV)
			done = append(done, id)
			c.ovrdCount++
		} else {
			c.interpolateStep(obs, param, stepsLeft)
		}
		param.CurStep++
		obs.SetShared(true)
	}
	for _, id := range done {
		delete(c.cache, id)
	}
}

func (c *PhysicsController) interpolateStep(obs physics.Obstacle, param *TargetParams, stepsLeft int) {
	t := float32(param.CurStep) / float32(param.NumSteps)
	pos := obs.Position()
	vel := obs.LinearVelocity()
	switch c.method {
	case InterpBezier:
		p1 := pos.Add(vel.Scale(0.1))
		u := 1 - t
		next := pos.Scale(u * u * u).
			Add(p1.Scale(3 * u * u * t)).
			Add(param.P2.Scale(3 * u * t * t)).
			Add(param.P3.Scale(t * t * t))
		obs.SetPosition(next)
	case InterpHermite:
		next := pos.Scale(2*t*t*t - 3*t*t + 1).
			Add(vel.Scale(t*t*t - 2*t*t + t)).
			Add(param.P3.Scale(-2*t*t*t + 3*t*t)).
			Add(param.TargetVel.Scale(t*t*t - t*t))
		obs.SetPosition(next)
	case InterpPID:
		e := param.P3.Sub(pos)
		param.NumI++
		param.I = param.I.Add(e)
		p := e.Scale(10)
		i := param.I.Scale(0.01)
		d := vel.Scale(0.5)
		obs.SetLinearVelocity(vel.Add(p).Sub(d).Add(i))
	default:
		obs.SetPosition(physics.Vec2{
			X: interpolate(stepsLeft, param.P3.X, pos.X),
			Y: interpolate(stepsLeft, param.P3.Y, pos.Y),
		})
		obs.SetLinearVelocity(physics.Vec2{
			X: interpolate(stepsLeft, param.TargetVel.X, vel.X),
			Y: interpolate(stepsLeft, param.TargetVel.Y, vel.Y),
		})
	}
	obs.SetAngle(interpolate(stepsLeft, param.TargetAngle, obs.Angle()))
	obs.SetAngularVelocity(interpolate(stepsLeft, param.TargetAngV, obs.AngularVelocity()))
}

// interpolate は線形補間の1ステップ分を返します。
// 式: (target-source)/stepsLeft + source
func interpolate(stepsLeft int, target, source float32) float32 {
	return (target-source)/float32(stepsLeft) + source
}

// addSyncObject は剛体を補間ターゲットつきで補正対象に加えます。
// 既に補正中だった場合は前回のターゲット速度を確定させ、積分誤差を引き継ぎます。
func (c *PhysicsController) addSyncObject(id uint64, obs physics.Obstacle, param *TargetParams) {
	if old, ok := c.cache[id]; ok {
		obs.SetShared(false)
		obs.SetLinearVelocity(old.TargetVel)
		obs.SetAngularVelocity(old.TargetAngV)
		obs.SetShared(true)
		param.I = old.I
		param.NumI = old.NumI
	}
	c.cache[id] = param
	c.stepSum += param.NumSteps
	c.itprCount++
}

// PackObstacleChanges はシミュレーション外で変更された剛体を走査し、
// 変化したフィールドカテゴリごとに最小のObstacleEventを生成します。
// 変化のない剛体と共有されていない剛体はスキップされます。
func (c *PhysicsController) PackObstacleChanges() {
	for _, id := range c.world.ObstacleIDs() {
		obs, ok := c.world.Obstacle(id)
		if !ok || !obs.Shared() {
			continue
		}
		dirty := obs.Dirty()
		if dirty == physics.DirtyNone {
			continue
		}
		if dirty.Has(physics.DirtyPosition) {
			c.outEvents = append(c.outEvents, NewPositionEvent(id, obs.Position()))
		}
		if dirty.Has(physics.DirtyAngle) {
			c.outEvents = append(c.outEvents, NewAngleEvent(id, obs.Angle()))
		}
		if dirty.Has(physics.DirtyVelocity) {
			c.outEvents = append(c.outEvents, NewVelocityEvent(id, obs.LinearVelocity()))
		}
		if dirty.Has(physics.DirtyAngularVel) {
			c.outEvents = append(c.outEvents, NewAngularVelEvent(id, obs.AngularVelocity()))
		}
		if dirty.Has(physics.DirtyBodyType) {
			c.outEvents = append(c.outEvents, NewBodyTypeEvent(id, obs.BodyType()))
		}
		if dirty.Has(physics.DirtyBools) {
			c.outEvents = append(c.outEvents, NewBoolConstsEvent(id, BoolConsts{
				Enabled:         obs.Enabled(),
				Awake:           obs.Awake(),
				SleepingAllowed: obs.SleepingAllowed(),
				FixedRotation:   obs.FixedRotation(),
				Bullet:          obs.Bullet(),
				Sensor:          obs.Sensor(),
			}))
		}
		if dirty.Has(physics.DirtyFloats) {
			c.outEvents = append(c.outEvents, NewFloatConstsEvent(id, FloatConsts{
				Density:        obs.Density(),
				Friction:       obs.Friction(),
				Restitution:    obs.Restitution(),
				LinearDamping:  obs.LinearDamping(),
				AngularDamping: obs.AngularDamping(),
				GravityScale:   obs.GravityScale(),
				Mass:           obs.Mass(),
				Inertia:        obs.Inertia(),
				Centroid:       obs.Centroid(),
			}))
		}
		obs.ClearDirty()
	}
}

// PackSync は指定種別のバッチ同期イベントを生成して送信キューへ積みます。
func (c *PhysicsController) PackSync(kind SyncKind) {
	event := NewSyncEvent()
	switch kind {
	case OverrideFullSync:
		for _, id := range c.world.ObstacleIDs() {
			if obs, ok := c.world.Obstacle(id); ok {
				event.AddObstacle(id, obs)
			}
		}
	case FullSync:
		for _, id := range c.world.ObstacleIDs() {
			obs, ok := c.world.Obstacle(id)
			if !ok || !obs.Shared() {
				continue
			}
			if _, owned := c.world.ownedObs[id]; owned {
				event.AddObstacle(id, obs)
			}
		}
	case PrioSync:
		shared := make([]uint64, 0, len(c.world.ObstacleIDs()))
		for _, id := range c.world.ObstacleIDs() {
			if obs, ok := c.world.Obstacle(id); ok && obs.Shared() {
				shared = append(shared, id)
			}
		}
		sort.Slice(shared, func(i, j int) bool {
			a, _ := c.world.Obstacle(shared[i])
			b, _ := c.world.Obstacle(shared[j])
			return a.LinearVelocity().Len() > b.LinearVelocity().Len()
		})
		limit := prioSyncLimit
		if len(shared) < limit {
			limit = len(shared)
		}
		for _, id := range shared[:limit] {
			obs, _ := c.world.Obstacle(id)
			event.AddObstacle(id, obs)
		}
		for i := 0; i < prioSyncRobinLimit && i < len(shared); i++ {
			if id, obs, ok := c.world.NextObstacle(); ok && obs.Shared() {
				event.AddObstacle(id, obs)
			}
		}
	}
	c.outEvents = append(c.outEvents, event)
}

// ProcessObstacleEvent は受信した剛体イベントをローカル状態に適用します。
// 自分が送信元のイベントは無視します。
func (c *PhysicsController) ProcessObstacleEvent(e *ObstacleEvent) {
	if e.Source() == "" {
		return
	}

	if e.Kind == ObstacleCreation {
		if int(e.FactoryID) >= len(c.factories) {
			slog.Warn("creation event references unknown factory", "factoryID", e.FactoryID, "source", e.Source())
			return
		}
		obs, node, err := c.factories[e.FactoryID].CreateObstacle(e.Params)
		if err != nil {
			slog.Warn("obstacle factory failed", "factoryID", e.FactoryID, "err", err)
			return
		}
		obs.SetShared(true)
		if err := c.world.ActivateObstacle(e.ObstacleID, obs); err != nil {
			slog.Warn("failed to activate remote obstacle", "obstacleID", e.ObstacleID, "err", err)
			return
		}
		if c.link != nil {
			c.link(obs, node)
			c.nodes[e.ObstacleID] = node
		}
		if c.isHost {
			c.world.ownedObs[e.ObstacleID] = 0
		}
		return
	}

	// 並行する生成・削除の競合で未知のIDは普通に起こるため黙って無視する
	obs, ok := c.world.Obstacle(e.ObstacleID)
	if !ok {
		return
	}

	if e.Kind == ObstacleDeletion {
		delete(c.cache, e.ObstacleID)
		delete(c.nodes, e.ObstacleID)
		c.world.RemoveObstacle(obs)
		return
	}

	obs.SetShared(false)
	switch e.Kind {
	case ObstacleBodyType:
		obs.SetBodyType(e.BodyType)
	case ObstaclePosition:
		obs.SetPosition(e.Position)
	case ObstacleVelocity:
		obs.SetLinearVelocity(e.Velocity)
	case ObstacleAngle:
		obs.SetAngle(e.Angle)
	case ObstacleAngularVel:
		obs.SetAngularVelocity(e.AngularVel)
	case ObstacleBoolConsts:
		obs.SetEnabled(e.Bools.Enabled)
		obs.SetAwake(e.Bools.Awake)
		obs.SetSleepingAllowed(e.Bools.SleepingAllowed)
		obs.SetFixedRotation(e.Bools.FixedRotation)
		obs.SetBullet(e.Bools.Bullet)
		obs.SetSensor(e.Bools.Sensor)
	case ObstacleFloatConsts:
		obs.SetDensity(e.Floats.Density)
		obs.SetFriction(e.Floats.Friction)
		obs.SetRestitution(e.Floats.Restitution)
		obs.SetLinearDamping(e.Floats.LinearDamping)
		obs.SetAngularDamping(e.Floats.AngularDamping)
		obs.SetGravityScale(e.Floats.GravityScale)
		obs.SetMass(e.Floats.Mass)
		obs.SetInertia(e.Floats.Inertia)
		obs.SetCentroid(e.Floats.Centroid)
	case ObstacleOwnerAcquire:
		// 他ピアが所有権を取ったのでローカルの所有は手放す
		delete(c.world.ownedObs, e.ObstacleID)
	case ObstacleOwnerRelease:
		if c.isHost {
			c.world.ownedObs[e.ObstacleID] = 0
		}
	}
	obs.SetShared(true)
}

// ProcessSyncEvent は受信したバッチ同期をローカル状態に適用します。
// 自分が所有していない剛体の位置が乖離していた場合、スナップするのではなく
// 乖離量に応じたステップ数の補間ターゲットを設定します。
func (c *PhysicsController) ProcessSyncEvent(e *SyncEvent) {
	if e.Source() == "" {
		return
	}
	for _, snap := range e.Snapshots() {
		obs, ok := c.world.Obstacle(snap.ObstacleID)
		if !ok {
			continue
		}
		if _, owned := c.world.ownedObs[snap.ObstacleID]; owned {
			continue
		}
		if !utils.FiniteVec(snap.Position) || !utils.FiniteVec(snap.Velocity) ||
			!utils.IsFinite(snap.Angle) || !utils.IsFinite(snap.AngularVel) {
			continue
		}

		pos := obs.Position()
		diff := pos.Sub(snap.Position).Len()
		angDiff := 10 * abs32(obs.Angle()-snap.Angle)

		steps := int(diff * 30)
		if a := int(angDiff); a > steps {
			steps = a
		}
		if steps < 1 {
			steps = 1
		}
		if steps > 30 {
			steps = 30
		}

		param := &TargetParams{
			NumSteps:    steps,
			P0:          pos,
			P1:          pos.Add(obs.LinearVelocity().Scale(0.1)),
			P3:          snap.Position,
			TargetVel:   snap.Velocity,
			TargetAngle: snap.Angle,
			TargetAngV:  snap.AngularVel,
		}
		param.P2 = param.P3.Sub(param.TargetVel.Scale(0.1))
		c.addSyncObject(snap.ObstacleID, obs, param)
	}
}

// Interpolating は剛体が乖離補正中かどうかを返します。
func (c *PhysicsController) Interpolating(id uint64) bool {
	_, ok := c.cache[id]
	return ok
}

// LogStats は補間の統計をデバッグログに出します。
func (c *PhysicsController) LogStats(ctx context.Context) {
	if c.itprCount == 0 {
		return
	}
	slog.DebugContext(ctx, "interpolation stats",
		"active", c.itprCount-c.ovrdCount,
		"total", c.itprCount,
		"avgSteps", float64(c.stepSum)/float64(c.itprCount),
	)
}

// Reset は同期エンジンの一時状態をすべて破棄します。
func (c *PhysicsController) Reset() {
	c.cache = make(map[uint64]*TargetParams)
	c.nodes = make(map[uint64]any)
	c.outEvents = nil
	c.itprCount = 0
	c.ovrdCount = 0
	c.stepSum = 0
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
