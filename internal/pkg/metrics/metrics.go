// Package metrics 定义了 saga 执行过程中的观测指标接口。
package metrics

import "time"

// Metrics 是 saga 引擎与业务编排共用的指标接口。
type Metrics interface {
	SagaStarted(saga string)
	SagaFinished(saga string, succeeded bool, duration time.Duration)
	StepFailed(saga, step string)
	CompensationExecuted(saga, step string)
	// CompensationFollowUp 记录一次需要人工跟进的补偿，例如退款失败、库存回补失败。
	CompensationFollowUp(saga, step string)
}

// NoopMetrics 不做任何事，用于测试或关闭指标时。
type NoopMetrics struct{}

var _ Metrics = (*NoopMetrics)(nil)

func (n *NoopMetrics) SagaStarted(saga string)                                  {}
func (n *NoopMetrics) SagaFinished(saga string, succeeded bool, d time.Duration) {}
func (n *NoopMetrics) StepFailed(saga, step string)                             {}
func (n *NoopMetrics) CompensationExecuted(saga, step string)                   {}
func (n *NoopMetrics) CompensationFollowUp(saga, step string)                   {}
