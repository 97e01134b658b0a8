package netphys

// GameStateKind はセッション状態イベントのサブタイプです。
type GameStateKind uint8

const (
	GameStateUIDAssign GameStateKind = iota + 1
	GameStateClientReady
	GameStateGameStart
	GameStateGameReset
	GameStateGamePause
	GameStateGameResume
)

// GameStateEvent はセッションのハンドシェイクと進行制御を運ぶ組み込みイベントです。
// ShortUIDはUIDAssignのときだけ意味を持ちます。
type GameStateEvent struct {
	EventMeta
	Kind     GameStateKind
	ShortUID uint32
}

var _ Event = (*GameStateEvent)(nil)

func NewUIDAssignEvent(shortUID uint32) *GameStateEvent {
	return &GameStateEvent{Kind: GameStateUIDAssign, ShortUID: shortUID}
}

func NewClientReadyEvent() *GameStateEvent {
	return &GameStateEvent{Kind: GameStateClientReady}
}

func NewGameStartEvent() *GameStateEvent {
	return &GameStateEvent{Kind: GameStateGameStart}
}

func NewGameResetEvent() *GameStateEvent {
	return &GameStateEvent{Kind: GameStateGameReset}
}

func NewGamePauseEvent() *GameStateEvent {
	return &GameStateEvent{Kind: GameStateGamePause}
}

func NewGameResumeEvent() *GameStateEvent {
	return &GameStateEvent{Kind: GameStateGameResume}
}

func (e *GameStateEvent) Code() EventCode { return CodeGameState }

func (e *GameStateEvent) NewEvent() Event { return &GameStateEvent{} }

func (e *GameStateEvent) Serialize() []byte {
	var s Serializer
	s.WriteUint8(byte(e.Kind))
	if e.Kind == GameStateUIDAssign {
		s.WriteUint32(e.ShortUID)
	}
	return s.Bytes()
}

func (e *GameStateEvent) Deserialize(data []byte) {
	var d Deserializer
	d.Receive(data)
	e.Kind = GameStateKind(d.ReadUint8())
	if e.Kind == GameStateUIDAssign {
		e.ShortUID = d.ReadUint32()
	}
}
