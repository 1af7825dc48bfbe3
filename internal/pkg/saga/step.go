package saga

import (
	"context"

	"github.com/pkg/errors"
)

// Action 是步骤的前向或补偿动作。
// 返回 (false, nil) 表示业务上的失败，返回非 nil error 同样视为失败。
type Action[T any] func(ctx context.Context, data *T) (bool, error)

// Step 把一个前向动作和它的补偿动作绑定在一起。
// Description 在一次 saga 中必须唯一，同时用作日志和审计的 key。
type Step[T any] struct {
	Description string
	Execute     Action[T]
	Compensate  Action[T]
}

// NewStep 校验并构造一个步骤，compensate 为 nil 时补偿为空操作。
func NewStep[T any](description string, execute, compensate Action[T]) (Step[T], error) {
	if description == "" {
		return Step[T]{}, errors.Wrap(ErrInvalidStep, "description is required")
	}
	if execute == nil {
		return Step[T]{}, errors.Wrapf(ErrInvalidStep, "step %q has no execute action", description)
	}
	return Step[T]{Description: description, Execute: execute, Compensate: compensate}, nil
}
