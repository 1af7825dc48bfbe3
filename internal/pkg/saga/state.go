package saga

// State 是协调器内部状态机的状态。
// Running(i) 执行第 i 步，RollingBack(j) 补偿第 j 步，Succeeded 和 Failed 为终态。
type State string

const (
	StateRunning     State = "RUNNING"
	StateRollingBack State = "ROLLING_BACK"
	StateSucceeded   State = "SUCCEEDED"
	StateFailed      State = "FAILED"
)

func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Transition 记录一次状态迁移，Index 为迁移后所在的步骤下标，终态时为 -1。
type Transition struct {
	From  State
	To    State
	Index int
}
