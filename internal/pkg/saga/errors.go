package saga

import "github.com/pkg/errors"

var (
	// ErrSagaStarted 表示 saga 已经开始执行，步骤列表不能再修改。
	ErrSagaStarted = errors.New("saga: steps cannot be added after execution started")
	// ErrDuplicateStep 表示同一个 saga 中出现了重复的步骤描述。
	ErrDuplicateStep = errors.New("saga: duplicate step description")
	ErrInvalidStep   = errors.New("saga: invalid step")
	// ErrStepFailed 是前向步骤失败时返回结果中携带的错误。
	ErrStepFailed = errors.New("saga: step failed")
	ErrStepPanic  = errors.New("saga: step panicked")
)

// StepError 描述哪个前向步骤失败以及失败原因。
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return "saga step \"" + e.Step + "\" failed"
	}
	return "saga step \"" + e.Step + "\" failed: " + e.Err.Error()
}

// Unwrap 在步骤只返回 false 时回退到 ErrStepFailed。
func (e *StepError) Unwrap() error {
	if e.Err == nil {
		return ErrStepFailed
	}
	return e.Err
}
