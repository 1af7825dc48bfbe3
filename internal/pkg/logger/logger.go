// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Options 控制全局 logger 的输出格式。
type Options struct {
	ServiceName string
	Level       string
	Pretty      bool
	Output      io.Writer
}

// New 按选项构造一个 zerolog.Logger，不修改全局状态。
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if opts.ServiceName != "" {
		ctx = ctx.Str("service", opts.ServiceName)
	}
	return ctx.Logger()
}

// Init 替换全局 logger，一般只在 main 中调用一次。
func Init(opts Options) {
	l := New(opts)
	mu.Lock()
	base = l
	mu.Unlock()
}

// L 返回全局 logger 的副本。
func L() *zerolog.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	return &l
}

// Ctx 返回带有链路信息的 logger。
// 如果 ctx 中携带了有效的 span，会附加 trace_id 和 span_id 字段，方便在 Jaeger 中反查。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := L()
	if ctx == nil {
		return l
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	withTrace := l.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &withTrace
}
