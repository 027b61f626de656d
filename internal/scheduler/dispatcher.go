package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"mailboard/backend/internal/domain"
	"mailboard/backend/internal/monitoring"
)

// EmailDispatcher 投递侧能力，由邮件服务实现
type EmailDispatcher interface {
	ListDue(now time.Time) ([]domain.Email, error)
	DispatchNow(ctx context.Context, userID, id string) (*domain.Email, error)
}

// Dispatcher 周期性扫描到期的排期邮件并触发投递
//
// 轮询同一时刻只有一轮在跑（cron.SkipIfStillRunning）；单封失败不影响
// 其余邮件，失败的邮件已落 failed 终态，下一轮不会再取出。
type Dispatcher struct {
	emails   EmailDispatcher
	interval time.Duration
	logger   *zap.Logger
	metrics  *monitoring.Metrics // 可为 nil

	cron *cron.Cron
	now  func() time.Time
}

// NewDispatcher 创建排期投递器
func NewDispatcher(emails EmailDispatcher, interval time.Duration, logger *zap.Logger, metrics *monitoring.Metrics) *Dispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Dispatcher{
		emails:   emails,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Start 启动轮询，阻塞到 ctx 取消后优雅退出
func (d *Dispatcher) Start(ctx context.Context) error {
	d.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))

	spec := fmt.Sprintf("@every %s", d.interval)
	if _, err := d.cron.AddFunc(spec, func() { d.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule dispatch job: %w", err)
	}

	d.logger.Info("dispatcher started", zap.Duration("interval", d.interval))
	d.cron.Start()

	<-ctx.Done()
	stopCtx := d.cron.Stop()
	<-stopCtx.Done()
	d.logger.Info("dispatcher stopped")
	return nil
}

// RunOnce 执行一轮扫描投递，返回成功投递的邮件数
func (d *Dispatcher) RunOnce(ctx context.Context) int {
	now := d.now()
	due, err := d.emails.ListDue(now)
	if err != nil {
		d.logger.Error("list due emails failed", zap.Error(err))
		return 0
	}
	if d.metrics != nil {
		d.metrics.DispatchBatch.Observe(float64(len(due)))
	}
	if len(due) == 0 {
		return 0
	}

	d.logger.Info("dispatching due emails", zap.Int("count", len(due)))

	dispatched := 0
	for _, email := range due {
		if ctx.Err() != nil {
			break
		}
		// 到期邮件按用户身份投递，与手动触发走同一条路径
		if _, err := d.emails.DispatchNow(ctx, email.UserID, email.ID); err != nil {
			// 并发路径（手动投递或取消）赢得状态转换时跳过即可
			if errors.Is(err, domain.ErrInvalidState) {
				continue
			}
			d.logger.Warn("scheduled dispatch failed",
				zap.String("emailId", email.ID),
				zap.Error(err))
			continue
		}
		dispatched++
	}
	return dispatched
}
