package saga

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type ledger struct {
	executed    []string
	compensated []string
}

type fakeStep struct {
	name      string
	execOK    bool
	execErr   error
	execPanic bool
	compOK    bool
	compErr   error
	compPanic bool
}

func okStep(name string) fakeStep {
	return fakeStep{name: name, execOK: true, compOK: true}
}

func buildContext(t *testing.T, steps ...fakeStep) *Context[ledger] {
	t.Helper()
	sc := NewContext(&ledger{})
	for _, fs := range steps {
		fs := fs
		step, err := NewStep(fs.name,
			func(_ context.Context, l *ledger) (bool, error) {
				l.executed = append(l.executed, fs.name)
				if fs.execPanic {
					panic("boom in " + fs.name)
				}
				return fs.execOK, fs.execErr
			},
			func(_ context.Context, l *ledger) (bool, error) {
				l.compensated = append(l.compensated, fs.name)
				if fs.compPanic {
					panic("boom compensating " + fs.name)
				}
				return fs.compOK, fs.compErr
			},
		)
		require.NoError(t, err)
		require.NoError(t, sc.AddStep(step))
	}
	return sc
}

type recordingMetrics struct {
	started     int
	succeeded   int
	failed      int
	stepFailed  []string
	compensated []string
	followUps   []string
}

func (m *recordingMetrics) SagaStarted(string) { m.started++ }
func (m *recordingMetrics) SagaFinished(_ string, ok bool, _ time.Duration) {
	if ok {
		m.succeeded++
	} else {
		m.failed++
	}
}
func (m *recordingMetrics) StepFailed(_, step string) { m.stepFailed = append(m.stepFailed, step) }
func (m *recordingMetrics) CompensationExecuted(_, step string) {
	m.compensated = append(m.compensated, step)
}
func (m *recordingMetrics) CompensationFollowUp(_, step string) {
	m.followUps = append(m.followUps, step)
}

func TestCoordinator_AllStepsSucceed(t *testing.T) {
	sc := buildContext(t, okStep("A"), okStep("B"), okStep("C"))
	m := &recordingMetrics{}

	res := NewCoordinator[ledger]("test", WithMetrics[ledger](m)).Execute(context.Background(), sc)

	assert.True(t, res.IsSuccessful)
	assert.Equal(t, []string{"A", "B", "C"}, res.CompletedSteps)
	assert.Empty(t, res.FailedStep)
	assert.Empty(t, res.ErrorMessage)
	assert.NoError(t, res.Err)
	assert.Equal(t, sc.SagaID, res.SagaID)
	assert.Same(t, sc.Data, res.Data)
	assert.Empty(t, res.Data.compensated)
	assert.False(t, res.CompletedAt.IsZero())
	assert.Equal(t, 1, m.started)
	assert.Equal(t, 1, m.succeeded)
}

func TestCoordinator_FailureCompensatesEarlierStepsInReverse(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for k := 0; k < n; k++ {
			t.Run(fmt.Sprintf("n=%d_k=%d", n, k), func(t *testing.T) {
				steps := make([]fakeStep, n)
				for i := range steps {
					steps[i] = okStep(fmt.Sprintf("s%d", i))
				}
				steps[k].execOK = false
				sc := buildContext(t, steps...)

				res := NewCoordinator[ledger]("test").Execute(context.Background(), sc)

				require.False(t, res.IsSuccessful)
				assert.Equal(t, steps[k].name, res.FailedStep)

				wantCompleted := []string{}
				for i := 0; i < k; i++ {
					wantCompleted = append(wantCompleted, steps[i].name)
				}
				assert.Equal(t, wantCompleted, res.CompletedSteps)

				wantCompensated := []string(nil)
				for i := k - 1; i >= 0; i-- {
					wantCompensated = append(wantCompensated, steps[i].name)
				}
				assert.Equal(t, wantCompensated, res.Data.compensated)
				assert.Len(t, res.Data.executed, k+1, "no step after the failing one runs")
			})
		}
	}
}

func TestCoordinator_StepReturnsFalse(t *testing.T) {
	bad := okStep("B")
	bad.execOK = false
	sc := buildContext(t, okStep("A"), bad, okStep("C"))

	res := NewCoordinator[ledger]("test").Execute(context.Background(), sc)

	assert.False(t, res.IsSuccessful)
	assert.Equal(t, "B", res.FailedStep)
	assert.True(t, errors.Is(res.Err, ErrStepFailed))
	assert.Equal(t, `saga step "B" failed`, res.ErrorMessage)

	var stepErr *StepError
	require.True(t, errors.As(res.Err, &stepErr))
	assert.Equal(t, "B", stepErr.Step)
}

func TestCoordinator_StepErrorIsTreatedAsFailure(t *testing.T) {
	cause := errors.New("gateway timeout")
	bad := okStep("B")
	bad.execErr = cause
	sc := buildContext(t, okStep("A"), bad, okStep("C"))

	res := NewCoordinator[ledger]("test").Execute(context.Background(), sc)

	assert.False(t, res.IsSuccessful)
	assert.Equal(t, "B", res.FailedStep)
	assert.True(t, errors.Is(res.Err, cause))
	assert.Contains(t, res.ErrorMessage, "gateway timeout")
	assert.Equal(t, []string{"A"}, res.CompletedSteps)
	assert.Equal(t, []string{"A"}, res.Data.compensated)
}

func TestCoordinator_ErrorWinsOverTrue(t *testing.T) {
	bad := okStep("B")
	bad.execErr = errors.New("partial write")
	sc := buildContext(t, okStep("A"), bad)

	res := NewCoordinator[ledger]("test").Execute(context.Background(), sc)

	assert.False(t, res.IsSuccessful)
	assert.Equal(t, []string{"A"}, res.CompletedSteps)
}

func TestCoordinator_PanicInExecuteIsRecovered(t *testing.T) {
	bad := okStep("B")
	bad.execPanic = true
	sc := buildContext(t, okStep("A"), bad)

	var res *Result[ledger]
	require.NotPanics(t, func() {
		res = NewCoordinator[ledger]("test").Execute(context.Background(), sc)
	})

	assert.False(t, res.IsSuccessful)
	assert.Equal(t, "B", res.FailedStep)
	assert.True(t, errors.Is(res.Err, ErrStepPanic))
	assert.Contains(t, res.ErrorMessage, "boom in B")
	assert.Equal(t, []string{"A"}, res.Data.compensated)
}

func TestCoordinator_CompensationFailuresDoNotStopRollback(t *testing.T) {
	a := okStep("A")
	b := okStep("B")
	b.compOK = false
	c := okStep("C")
	c.compErr = errors.New("refund api down")
	d := okStep("D")
	d.compPanic = true
	e := okStep("E")
	e.execOK = false

	sc := buildContext(t, a, b, c, d, e)
	m := &recordingMetrics{}

	res := NewCoordinator[ledger]("test", WithMetrics[ledger](m)).Execute(context.Background(), sc)

	assert.False(t, res.IsSuccessful)
	assert.Equal(t, "E", res.FailedStep)
	assert.Equal(t, []string{"D", "C", "B", "A"}, res.Data.compensated)
	assert.NotContains(t, res.ErrorMessage, "refund api down", "compensation outcomes are not part of the result")

	assert.Equal(t, []string{"E"}, m.stepFailed)
	assert.Equal(t, []string{"D", "C", "B", "A"}, m.compensated)
	assert.Equal(t, []string{"D", "C", "B"}, m.followUps)
	assert.Equal(t, 1, m.failed)
}

func TestCoordinator_EachStepCompensatedAtMostOnce(t *testing.T) {
	a := okStep("A")
	b := okStep("B")
	b.compErr = errors.New("flaky")
	c := okStep("C")
	c.execErr = errors.New("stop")
	sc := buildContext(t, a, b, c)

	res := NewCoordinator[ledger]("test").Execute(context.Background(), sc)

	counts := map[string]int{}
	for _, name := range res.Data.compensated {
		counts[name]++
	}
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, counts)
}

func TestCoordinator_FirstStepFailureRunsNoCompensation(t *testing.T) {
	a := okStep("A")
	a.execOK = false
	sc := buildContext(t, a, okStep("B"))

	res := NewCoordinator[ledger]("test").Execute(context.Background(), sc)

	assert.False(t, res.IsSuccessful)
	assert.Equal(t, "A", res.FailedStep)
	assert.Empty(t, res.CompletedSteps)
	assert.NotNil(t, res.CompletedSteps)
	assert.Empty(t, res.Data.compensated)
}

func TestCoordinator_NilCompensationIsNoop(t *testing.T) {
	sc := NewContext(&ledger{})
	first, err := NewStep[ledger]("A", func(_ context.Context, l *ledger) (bool, error) { return true, nil }, nil)
	require.NoError(t, err)
	second, err := NewStep[ledger]("B", func(_ context.Context, l *ledger) (bool, error) { return false, nil }, nil)
	require.NoError(t, err)
	require.NoError(t, sc.AddStep(first))
	require.NoError(t, sc.AddStep(second))

	res := NewCoordinator[ledger]("test").Execute(context.Background(), sc)
	assert.False(t, res.IsSuccessful)
	assert.Equal(t, []string{"A"}, res.CompletedSteps)
}

func TestCoordinator_CompensationSurvivesExpiredDeadline(t *testing.T) {
	type ctxKey struct{}
	ctx, cancel := context.WithTimeout(context.WithValue(context.Background(), ctxKey{}, "trace-value"), 20*time.Millisecond)
	defer cancel()

	var compErr error
	var compValue any
	sc := NewContext(&ledger{})
	charge, err := NewStep[ledger]("Payment",
		func(context.Context, *ledger) (bool, error) { return true, nil },
		func(ctx context.Context, l *ledger) (bool, error) {
			compErr = ctx.Err()
			compValue = ctx.Value(ctxKey{})
			l.compensated = append(l.compensated, "Payment")
			return ctx.Err() == nil, nil
		})
	require.NoError(t, err)
	slow, err := NewStep[ledger]("Stock",
		func(ctx context.Context, _ *ledger) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		}, nil)
	require.NoError(t, err)
	require.NoError(t, sc.AddStep(charge))
	require.NoError(t, sc.AddStep(slow))

	m := &recordingMetrics{}
	res := NewCoordinator[ledger]("test", WithMetrics[ledger](m)).Execute(ctx, sc)

	assert.False(t, res.IsSuccessful)
	assert.Equal(t, "Stock", res.FailedStep)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.NoError(t, compErr)
	assert.Equal(t, "trace-value", compValue)
	assert.Equal(t, []string{"Payment"}, sc.Data.compensated)
	assert.Empty(t, m.followUps)
}

func TestCoordinator_StateTransitions(t *testing.T) {
	bad := okStep("C")
	bad.execOK = false
	sc := buildContext(t, okStep("A"), okStep("B"), bad)

	var got []Transition
	listener := func(id uuid.UUID, tr Transition) {
		assert.Equal(t, sc.SagaID, id)
		got = append(got, tr)
	}
	NewCoordinator[ledger]("test", WithTransitionListener[ledger](listener)).Execute(context.Background(), sc)

	assert.Equal(t, []Transition{
		{From: StateRunning, To: StateRunning, Index: 1},
		{From: StateRunning, To: StateRunning, Index: 2},
		{From: StateRunning, To: StateRollingBack, Index: 1},
		{From: StateRollingBack, To: StateRollingBack, Index: 0},
		{From: StateRollingBack, To: StateRollingBack, Index: -1},
		{From: StateRollingBack, To: StateFailed, Index: -1},
	}, got)
	assert.True(t, got[len(got)-1].To.IsTerminal())
}

func TestCoordinator_SuccessTransitions(t *testing.T) {
	sc := buildContext(t, okStep("A"), okStep("B"))

	var got []Transition
	NewCoordinator[ledger]("test", WithTransitionListener[ledger](func(_ uuid.UUID, tr Transition) {
		got = append(got, tr)
	})).Execute(context.Background(), sc)

	assert.Equal(t, []Transition{
		{From: StateRunning, To: StateRunning, Index: 1},
		{From: StateRunning, To: StateRunning, Index: 2},
		{From: StateRunning, To: StateSucceeded, Index: -1},
	}, got)
}

func TestCoordinator_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	bad := okStep("B")
	bad.execErr = errors.New("declined")
	sc := buildContext(t, okStep("A"), bad)

	NewCoordinator[ledger]("order", WithTracer[ledger](tp.Tracer("test"))).Execute(context.Background(), sc)

	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range recorder.Ended() {
		byName[s.Name()] = s
	}
	require.Contains(t, byName, "saga.order")
	require.Contains(t, byName, "saga.step.A")
	require.Contains(t, byName, "saga.step.B")
	require.Contains(t, byName, "saga.compensate.A")
	assert.Equal(t, codes.Error, byName["saga.step.B"].Status().Code)
	assert.Equal(t, codes.Error, byName["saga.order"].Status().Code)
	assert.Equal(t, codes.Unset, byName["saga.step.A"].Status().Code)
}

func TestContext_StepsAreFixedOnceStarted(t *testing.T) {
	sc := buildContext(t, okStep("A"))
	coord := NewCoordinator[ledger]("test")
	coord.Execute(context.Background(), sc)

	step, err := NewStep[ledger]("late", func(context.Context, *ledger) (bool, error) { return true, nil }, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, sc.AddStep(step), ErrSagaStarted)
	assert.Len(t, sc.Steps(), 1)

	again := coord.Execute(context.Background(), sc)
	assert.False(t, again.IsSuccessful)
	assert.ErrorIs(t, again.Err, ErrSagaStarted)
	assert.Equal(t, []string{"A"}, sc.Data.executed, "a context never runs twice")
}

func TestContext_RejectsDuplicateAndInvalidSteps(t *testing.T) {
	sc := buildContext(t, okStep("A"))

	dup, err := NewStep[ledger]("A", func(context.Context, *ledger) (bool, error) { return true, nil }, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, sc.AddStep(dup), ErrDuplicateStep)
	assert.ErrorIs(t, sc.AddStep(Step[ledger]{Description: "no-exec"}), ErrInvalidStep)

	_, err = NewStep[ledger]("", func(context.Context, *ledger) (bool, error) { return true, nil }, nil)
	assert.ErrorIs(t, err, ErrInvalidStep)
	_, err = NewStep[ledger]("x", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestNewContext_AssignsIdentity(t *testing.T) {
	a := NewContext(&ledger{})
	b := NewContext(&ledger{})
	assert.NotEqual(t, uuid.Nil, a.SagaID)
	assert.NotEqual(t, a.SagaID, b.SagaID)
	assert.WithinDuration(t, time.Now(), a.StartedAt, time.Second)
}

func TestFailedWithMessage(t *testing.T) {
	cause := errors.Wrap(ErrStepFailed, "lookup: product P1 not found")
	res := FailedWithMessage(uuid.New(), &ledger{}, nil, "Initial Check", "product P1 not found", cause)

	assert.False(t, res.IsSuccessful)
	assert.Equal(t, "product P1 not found", res.ErrorMessage)
	assert.ErrorIs(t, res.Err, ErrStepFailed)
	assert.NotNil(t, res.CompletedSteps)
	assert.Empty(t, res.CompletedSteps)

	plain := Failed(uuid.New(), &ledger{}, nil, "A", cause)
	assert.Equal(t, cause.Error(), plain.ErrorMessage)
}
