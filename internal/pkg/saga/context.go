package saga

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Context 持有一次 saga 运行的步骤和共享数据。
// 步骤的插入顺序就是执行顺序，回滚时按相反顺序补偿。
type Context[T any] struct {
	SagaID    uuid.UUID
	StartedAt time.Time
	Data      *T

	mu      sync.Mutex
	steps   []Step[T]
	started bool
}

func NewContext[T any](data *T) *Context[T] {
	return &Context[T]{
		SagaID:    uuid.New(),
		StartedAt: time.Now().UTC(),
		Data:      data,
	}
}

// AddStep 追加一个步骤。协调器开始执行后调用会返回 ErrSagaStarted。
func (c *Context[T]) AddStep(step Step[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrSagaStarted
	}
	if step.Description == "" || step.Execute == nil {
		return errors.Wrapf(ErrInvalidStep, "step %q", step.Description)
	}
	for _, s := range c.steps {
		if s.Description == step.Description {
			return errors.Wrapf(ErrDuplicateStep, "%q", step.Description)
		}
	}
	c.steps = append(c.steps, step)
	return nil
}

// Steps 返回步骤列表的副本。
func (c *Context[T]) Steps() []Step[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Step[T], len(c.steps))
	copy(out, c.steps)
	return out
}

// freeze 标记 saga 已开始并返回此刻固定下来的步骤列表。
func (c *Context[T]) freeze() ([]Step[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil, ErrSagaStarted
	}
	c.started = true
	return c.steps, nil
}
