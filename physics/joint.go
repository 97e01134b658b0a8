package physics

// Joint は2つの剛体を接続する拘束の境界インターフェースです。
type Joint interface {
	BodyA() Obstacle
	BodyB() Obstacle
}

// WeldJoint は2剛体を固定接続する最小の拘束実装です。
type WeldJoint struct {
	a, b Obstacle
}

var _ Joint = (*WeldJoint)(nil)

func NewWeldJoint(a, b Obstacle) *WeldJoint {
	return &WeldJoint{a: a, b: b}
}

func (j *WeldJoint) BodyA() Obstacle { return j.a }
func (j *WeldJoint) BodyB() Obstacle { return j.b }
