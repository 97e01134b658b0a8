package physics

import "errors"

var (
	// ErrObstacleNotFound はワールドに存在しない剛体を参照した場合に返されるエラーです。
	ErrObstacleNotFound = errors.New("obstacle is not in this world")
	// ErrJointNotFound はワールドに存在しない拘束を参照した場合に返されるエラーです。
	ErrJointNotFound = errors.New("joint is not in this world")
)

// JointDestroyedFunc は剛体の削除に巻き込まれて拘束が破棄されたときに
// 呼び出されるコールバックです。RemoveJoint経由の削除では呼ばれません。
type JointDestroyedFunc func(j Joint)

// World は剛体と拘束を保持しステップを進めるシミュレーションワールドです。
// 衝突応答は持たない運動学的な実装で、本物のソルバーは外部協調者です。
type World struct {
	gravity   Vec2
	obstacles map[Obstacle]struct{}
	joints    map[Joint]struct{}

	jointDestroyed JointDestroyedFunc
}

func NewWorld(gravity Vec2) *World {
	return &World{
		gravity:   gravity,
		obstacles: make(map[Obstacle]struct{}),
		joints:    make(map[Joint]struct{}),
	}
}

func (w *World) Gravity() Vec2 { return w.gravity }

// SetJointDestroyedListener は拘束の巻き込まれ破棄の通知先を設定します。
func (w *World) SetJointDestroyedListener(fn JointDestroyedFunc) {
	w.jointDestroyed = fn
}

func (w *World) Contains(o Obstacle) bool {
	_, ok := w.obstacles[o]
	return ok
}

func (w *World) ContainsJoint(j Joint) bool {
	_, ok := w.joints[j]
	return ok
}

func (w *World) AddObstacle(o Obstacle) {
	w.obstacles[o] = struct{}{}
}

// RemoveObstacle は剛体を削除します。剛体に接続された拘束も破棄され、
// 破棄された拘束ごとにJointDestroyedFuncが呼ばれます。
func (w *World) RemoveObstacle(o Obstacle) error {
	if _, ok := w.obstacles[o]; !ok {
		return ErrObstacleNotFound
	}
	delete(w.obstacles, o)
	for j := range w.joints {
		if j.BodyA() == o || j.BodyB() == o {
			delete(w.joints, j)
			if w.jointDestroyed != nil {
				w.jointDestroyed(j)
			}
		}
	}
	return nil
}

func (w *World) AddJoint(j Joint) error {
	if !w.Contains(j.BodyA()) || !w.Contains(j.BodyB()) {
		return ErrObstacleNotFound
	}
	w.joints[j] = struct{}{}
	return nil
}

func (w *World) RemoveJoint(j Joint) error {
	if _, ok := w.joints[j]; !ok {
		return ErrJointNotFound
	}
	delete(w.joints, j)
	return nil
}

// Step はワールドを1ステップ進めます。
func (w *World) Step(dt float32) {
	for o := range w.obstacles {
		if o.BodyType() == BodyDynamic && o.Enabled() && o.Awake() {
			v := o.LinearVelocity().Add(w.gravity.Scale(o.GravityScale() * dt))
			damp := 1 / (1 + o.LinearDamping()*dt)
			// シミュレーション由来の速度変更はdirtyとして記録しない
			shared := o.Shared()
			o.SetShared(false)
			o.SetLinearVelocity(v.Scale(damp))
			o.SetShared(shared)
		}
		o.Advance(dt)
	}
}
