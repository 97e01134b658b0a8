package netphys

import (
	"errors"
	"hash/fnv"

	"github.com/google/uuid"

	"driftnet/physics"
)

var (
	// ErrDuplicateID は登録済みIDで剛体や拘束を追加した場合に返されるエラーです。
	ErrDuplicateID = errors.New("duplicate network id")
	// ErrSessionStarted はセッション開始後にinit ID空間を使った場合に返されるエラーです。
	ErrSessionStarted = errors.New("networking already started, use shared placement")
	// ErrNotRegistered はこのワールドに登録されていないオブジェクトを参照した場合に返されるエラーです。
	ErrNotRegistered = errors.New("object is not registered in this world")
)

// initIDPrefix はセッション開始前に割り当てるIDの上位32ビットです。
// 各ピアがセットアップを同じ順序で行う約束のもと、全ピアで一致します。
const initIDPrefix = uint64(0xffffffff) << 32

// NetWorld は物理ワールドにネットワーク識別のレイヤーを重ねたものです。
// 剛体と拘束に64ビットIDを割り当て、ID⇔オブジェクトの双方向対応と
// 所有権の残ステップ数を管理します。2つのマップは常に互いの逆写像であり、
// IDの登録・解除は物理ワールドへの追加・削除と不可分に行われます。
type NetWorld struct {
	*physics.World

	uuid     string
	shortUID uint32

	nextInitObj     uint64
	nextSharedObj   uint64
	nextInitJoint   uint64
	nextSharedJoint uint64

	idToObs map[uint64]physics.Obstacle
	obsToID map[physics.Obstacle]uint64

	idToJoint map[uint64]physics.Joint
	jointToID map[physics.Joint]uint64

	// ownedObs はローカル所有の剛体ID→残り所有ステップ数（0は永続）
	ownedObs    map[uint64]uint64
	ownedJoints map[uint64]uint64

	// ラウンドロビン同期用の登録順ID列
	order []uint64
	next  int

	started bool

	// OnJointDestroyed は巻き込まれ破棄された拘束の通知先（任意）です。
	OnJointDestroyed physics.JointDestroyedFunc
}

// NewNetWorld は新しいUUIDでネットワークワールドを生成します。
func NewNetWorld(w *physics.World) *NetWorld {
	return NewNetWorldWithUUID(w, uuid.NewString())
}

// NewNetWorldWithUUID は接続確立時のUUIDを引き継いでワールドを生成します。
// shortUIDはUUIDのハッシュから導出され、共有ID空間の上位32ビットになります。
func NewNetWorldWithUUID(w *physics.World, id string) *NetWorld {
	h := fnv.New32a()
	h.Write([]byte(id))
	nw := &NetWorld{
		World:       w,
		uuid:        id,
		shortUID:    h.Sum32(),
		idToObs:     make(map[uint64]physics.Obstacle),
		obsToID:     make(map[physics.Obstacle]uint64),
		idToJoint:   make(map[uint64]physics.Joint),
		jointToID:   make(map[physics.Joint]uint64),
		ownedObs:    make(map[uint64]uint64),
		ownedJoints: make(map[uint64]uint64),
	}
	w.SetJointDestroyedListener(nw.sayGoodbye)
	return nw
}

func (w *NetWorld) UUID() string { return w.uuid }

func (w *NetWorld) ShortUID() uint32 { return w.shortUID }

// SetShortUID はセッション確立後にホストから配布されたshort IDを反映します。
func (w *NetWorld) SetShortUID(uid uint32) { w.shortUID = uid }

// markStarted 以降、init ID空間の割り当ては拒否される
func (w *NetWorld) markStarted() { w.started = true }

// ActivateObstacle は指定IDで剛体を物理ワールドに登録します。
// 受信したCREATIONイベントのように、IDが既に決まっている場合に使います。
func (w *NetWorld) ActivateObstacle(id uint64, obs physics.Obstacle) error {
	if _, ok := w.idToObs[id]; ok {
		return ErrDuplicateID
	}
	w.World.AddObstacle(obs)
	w.idToObs[id] = obs
	w.obsToID[obs] = id
	w.order = append(w.order, id)
	return nil
}

// InitObstacle はセッション開始前のセットアップで剛体を追加します。
// IDはinit空間から採番され、同じ順序でセットアップした全ピアで一致します。
func (w *NetWorld) InitObstacle(obs physics.Obstacle) (uint64, error) {
	if w.started {
		return 0, ErrSessionStarted
	}
	id := initIDPrefix | w.nextInitObj
	w.nextInitObj++
	obs.SetShared(true)
	if err := w.ActivateObstacle(id, obs); err != nil {
		return 0, err
	}
	return id, nil
}

// PlaceObstacle はセッション中に剛体を追加し、shared空間のIDを返します。
// IDは採番したピアがブロードキャストで他ピアに伝えます。
func (w *NetWorld) PlaceObstacle(obs physics.Obstacle) (uint64, error) {
	id := uint64(w.shortUID)<<32 | w.nextSharedObj
	w.nextSharedObj++
	if err := w.ActivateObstacle(id, obs); err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveObstacle は剛体の物理状態の無効化とID登録の解除を不可分に行います。
// 未登録の剛体には何もしません。
func (w *NetWorld) RemoveObstacle(obs physics.Obstacle) {
	id, ok := w.obsToID[obs]
	if !ok {
		return
	}
	delete(w.obsToID, obs)
	delete(w.idToObs, id)
	delete(w.ownedObs, id)
	w.dropFromOrder(id)
	_ = w.World.RemoveObstacle(obs)
}

// Obstacle はIDから剛体を引きます。未知のIDはokがfalseになります。
func (w *NetWorld) Obstacle(id uint64) (physics.Obstacle, bool) {
	obs, ok := w.idToObs[id]
	return obs, ok
}

// ObstacleID は剛体からIDを引きます。
func (w *NetWorld) ObstacleID(obs physics.Obstacle) (uint64, bool) {
	id, ok := w.obsToID[obs]
	return id, ok
}

// ObstacleIDs は登録順のID列を返します。呼び出し側は変更してはいけません。
func (w *NetWorld) ObstacleIDs() []uint64 {
	return w.order
}

// NumObstacles は登録されている剛体の数を返します。
func (w *NetWorld) NumObstacles() int {
	return len(w.idToObs)
}

// NextObstacle は登録済み剛体をラウンドロビンで1つ返します。
// フルシンクのトラフィックを複数フレームに分散させるために使います。
func (w *NetWorld) NextObstacle() (uint64, physics.Obstacle, bool) {
	if len(w.order) == 0 {
		return 0, nil, false
	}
	if w.next >= len(w.order) {
		w.next = 0
	}
	id := w.order[w.next]
	w.next++
	obs := w.idToObs[id]
	return id, obs, true
}

// ActivateJoint は指定IDで拘束を物理ワールドに登録します。
// 両端の剛体がこのワールドに存在しない場合は失敗します。
func (w *NetWorld) ActivateJoint(id uint64, j physics.Joint) error {
	if _, ok := w.idToJoint[id]; ok {
		return ErrDuplicateID
	}
	if err := w.World.AddJoint(j); err != nil {
		return err
	}
	w.idToJoint[id] = j
	w.jointToID[j] = id
	return nil
}

// InitJoint はセッション開始前のセットアップで拘束を追加します。
func (w *NetWorld) InitJoint(j physics.Joint) (uint64, error) {
	if w.started {
		return 0, ErrSessionStarted
	}
	id := initIDPrefix | w.nextInitJoint
	w.nextInitJoint++
	if err := w.ActivateJoint(id, j); err != nil {
		return 0, err
	}
	return id, nil
}

// PlaceJoint はセッション中に拘束を追加し、shared空間のIDを返します。
func (w *NetWorld) PlaceJoint(j physics.Joint) (uint64, error) {
	id := uint64(w.shortUID)<<32 | w.nextSharedJoint
	w.nextSharedJoint++
	if err := w.ActivateJoint(id, j); err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveJoint は拘束の無効化とID登録の解除を不可分に行います。
func (w *NetWorld) RemoveJoint(j physics.Joint) {
	id, ok := w.jointToID[j]
	if !ok {
		return
	}
	delete(w.jointToID, j)
	delete(w.idToJoint, id)
	delete(w.ownedJoints, id)
	_ = w.World.RemoveJoint(j)
}

// Joint はIDから拘束を引きます。
func (w *NetWorld) Joint(id uint64) (physics.Joint, bool) {
	j, ok := w.idToJoint[id]
	return j, ok
}

// JointID は拘束からIDを引きます。
func (w *NetWorld) JointID(j physics.Joint) (uint64, bool) {
	id, ok := w.jointToID[j]
	return id, ok
}

// sayGoodbye は剛体の削除に巻き込まれて拘束が破棄されたときに呼ばれます。
// 通常のRemoveJointは呼ばれないため、ここでID登録を解除します。
func (w *NetWorld) sayGoodbye(j physics.Joint) {
	if id, ok := w.jointToID[j]; ok {
		delete(w.jointToID, j)
		delete(w.idToJoint, id)
		delete(w.ownedJoints, id)
	}
	if w.OnJointDestroyed != nil {
		w.OnJointDestroyed(j)
	}
}

func (w *NetWorld) dropFromOrder(id uint64) {
	for i, v := range w.order {
		if v == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			// 途中を詰めたのでラウンドロビンは先頭からやり直す
			w.next = 0
			return
		}
	}
}
