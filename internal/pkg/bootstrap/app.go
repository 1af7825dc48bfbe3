// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/pkg/logger"
)

// Runner 是一个随进程运行的长任务，ctx 取消后应当返回
type Runner func(ctx context.Context) error

// Closer 在关停时按注册的逆序执行
type Closer func(ctx context.Context) error

// App 汇总 HTTP 服务、后台任务和关停清理
type App struct {
	Name            string
	Server          *http.Server
	ShutdownTimeout time.Duration

	runners []Runner
	closers []Closer
}

// Go 注册一个后台任务
func (a *App) Go(r Runner) {
	a.runners = append(a.runners, r)
}

// OnShutdown 注册清理函数，例如关闭 Kafka writer、数据库连接
func (a *App) OnShutdown(c Closer) {
	a.closers = append(a.closers, c)
}

// Run 启动所有任务，收到 SIGINT/SIGTERM 或任一任务出错时开始关停
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	log := logger.L().With().Str("service", a.Name).Logger()
	g, gctx := errgroup.WithContext(ctx)

	if a.Server != nil {
		g.Go(func() error {
			log.Info().Str("addr", a.Server.Addr).Msg("http server listening")
			if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "http server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.shutdownTimeout())
			defer cancel()
			return errors.Wrap(a.Server.Shutdown(shutdownCtx), "http server shutdown")
		})
	}
	for _, r := range a.runners {
		g.Go(func() error { return r(gctx) })
	}

	err := g.Wait()
	if err != nil {
		log.Error().Err(err).Msg("service stopped with error")
	} else {
		log.Info().Msg("shutting down")
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if cerr := a.closers[i](closeCtx); cerr != nil {
			log.Error().Err(cerr).Msg("cleanup failed")
		}
	}
	log.Info().Msg("service gracefully shut down")
	return err
}

func (a *App) shutdownTimeout() time.Duration {
	if a.ShutdownTimeout > 0 {
		return a.ShutdownTimeout
	}
	return 10 * time.Second
}

// CloseFunc 把 io.Closer 风格的方法适配成 Closer
func CloseFunc(f func() error) Closer {
	return func(context.Context) error { return f() }
}

// Exit 记录致命错误并退出进程
func Exit(err error) {
	logger.L().Error().Err(err).Msg("fatal")
	os.Exit(1)
}
