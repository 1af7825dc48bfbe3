package saga

import (
	"time"

	"github.com/google/uuid"
)

// Result 是一次 saga 运行的最终结果，创建后不再修改。
// FailedStep 和 ErrorMessage 只在失败时有值。
type Result[T any] struct {
	SagaID         uuid.UUID
	IsSuccessful   bool
	Data           *T
	CompletedSteps []string
	FailedStep     string
	ErrorMessage   string
	CompletedAt    time.Time

	// Err 保留原始错误，便于调用方使用 errors.Is 判断。
	Err error
}

func Succeeded[T any](sagaID uuid.UUID, data *T, completed []string) *Result[T] {
	return &Result[T]{
		SagaID:         sagaID,
		IsSuccessful:   true,
		Data:           data,
		CompletedSteps: completed,
		CompletedAt:    time.Now().UTC(),
	}
}

func Failed[T any](sagaID uuid.UUID, data *T, completed []string, failedStep string, err error) *Result[T] {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return FailedWithMessage(sagaID, data, completed, failedStep, msg, err)
}

// FailedWithMessage 与 Failed 相同，但对外的 ErrorMessage 由调用方指定，err 仍保留在 Err 中。
func FailedWithMessage[T any](sagaID uuid.UUID, data *T, completed []string, failedStep, message string, err error) *Result[T] {
	if completed == nil {
		completed = []string{}
	}
	return &Result[T]{
		SagaID:         sagaID,
		Data:           data,
		CompletedSteps: completed,
		FailedStep:     failedStep,
		ErrorMessage:   message,
		CompletedAt:    time.Now().UTC(),
		Err:            err,
	}
}
