package models

// TxStage 部署流水线的阶段
type TxStage string

const (
	StageIdle                TxStage = "idle"
	StageBuilding            TxStage = "building"
	StageSigning             TxStage = "signing"
	StageSimulatingPrefund   TxStage = "simulating-prefund"
	StageSubmittingPrefund   TxStage = "submitting-prefund"
	StageMiningPrefund       TxStage = "mining-prefund"
	StageSimulatingHandleOps TxStage = "simulating-handleOps"
	StageSubmittingHandleOps TxStage = "submitting-handleOps"
	StageMiningHandleOps     TxStage = "mining-handleOps"
	StageSuccess             TxStage = "success"
	StageError               TxStage = "error"
)

var stageOrder = map[TxStage]int{
	StageIdle:                0,
	StageBuilding:            1,
	StageSigning:             2,
	StageSimulatingPrefund:   3,
	StageSubmittingPrefund:   4,
	StageMiningPrefund:       5,
	StageSimulatingHandleOps: 6,
	StageSubmittingHandleOps: 7,
	StageMiningHandleOps:     8,
	StageSuccess:             9,
}

// Terminal 是否为终止阶段
func (s TxStage) Terminal() bool {
	return s == StageSuccess || s == StageError
}

// InFlight 是否处于进行中
func (s TxStage) InFlight() bool {
	return s != StageIdle && !s.Terminal()
}

// CanAdvanceTo 判断阶段是否允许迁移到 next。
// 除 error 外只允许向前推进；终止阶段不能再迁移。
func (s TxStage) CanAdvanceTo(next TxStage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageError {
		return true
	}
	from, ok := stageOrder[s]
	if !ok {
		return false
	}
	to, ok := stageOrder[next]
	return ok && to > from
}
