package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailboard/backend/internal/config"
	"mailboard/backend/internal/domain"
	"mailboard/backend/internal/monitoring"
	"mailboard/backend/internal/pool"
	"mailboard/backend/internal/provider"
	"mailboard/backend/internal/provider/gmail"
)

// ActivityPublisher 向实时通道推送活动事件，由 WebSocket Hub 实现
type ActivityPublisher interface {
	PublishActivity(userID string, activity *domain.EmailActivity)
}

// EmailService 管理邮件的完整生命周期
//
// 状态机: draft → (scheduled) → sending → sent | failed，scheduled 可取消为 cancelled。
// sending 是内部过渡状态，通过条件更新独占：一旦投递开始，取消必然失败。
type EmailService struct {
	store     domain.Store
	gmail     *gmail.Provider // 未配置时为 nil
	fallback  provider.Sender // Gmail 未授权时的兜底渠道，可为 nil
	pool      *pool.WorkerPool
	cfg       config.ProviderConfig
	logger    *zap.Logger
	metrics   *monitoring.Metrics // 可为 nil
	publisher ActivityPublisher   // 可为 nil

	now func() time.Time
}

// NewEmailService 创建邮件生命周期服务
func NewEmailService(
	store domain.Store,
	gmailProvider *gmail.Provider,
	fallback provider.Sender,
	workerPool *pool.WorkerPool,
	cfg config.ProviderConfig,
	logger *zap.Logger,
	metrics *monitoring.Metrics,
) *EmailService {
	return &EmailService{
		store:    store,
		gmail:    gmailProvider,
		fallback: fallback,
		pool:     workerPool,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// SetPublisher 注入实时推送通道，需在服务启动前调用
func (s *EmailService) SetPublisher(p ActivityPublisher) {
	s.publisher = p
}

// CreateEmailInput 创建邮件的入参
type CreateEmailInput struct {
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	To           string     `json:"to"`
	ListID       string     `json:"listId"`
	Status       string     `json:"status"` // "draft" 或 "scheduled"，留空按 draft
	ScheduledFor *time.Time `json:"scheduledFor"`
}

// Create 创建一封草稿或排期邮件
//
// 规则:
//   - To 与 ListID 必须恰好设置一个
//   - 初始状态仅允许 draft / scheduled
//   - scheduled 必须携带 scheduledFor
func (s *EmailService) Create(userID string, input *CreateEmailInput) (*domain.Email, error) {
	if err := domain.ValidateSubject(input.Subject); err != nil {
		return nil, domain.ValidationError("%v", err)
	}
	if err := domain.ValidateBody(input.Body); err != nil {
		return nil, domain.ValidationError("%v", err)
	}

	if (input.To == "") == (input.ListID == "") {
		return nil, domain.ValidationError("exactly one of to / listId must be set")
	}
	if input.To != "" {
		if err := domain.ValidateAddress(input.To); err != nil {
			return nil, domain.ValidationError("to: %v", err)
		}
	}
	if input.ListID != "" {
		list, err := s.store.GetRecipientList(input.ListID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ValidationError("recipient list %s not found", input.ListID)
			}
			return nil, err
		}
		if list.UserID != userID {
			return nil, domain.ErrForbidden
		}
	}

	status := domain.EmailStatus(input.Status)
	if input.Status == "" {
		// 未显式指定状态时按是否携带排期时间推断
		if input.ScheduledFor != nil {
			status = domain.StatusScheduled
		} else {
			status = domain.StatusDraft
		}
	}
	if status != domain.StatusDraft && status != domain.StatusScheduled {
		return nil, domain.ValidationError("initial status must be draft or scheduled, got %q", input.Status)
	}
	// 排期时间与状态严格绑定: 草稿不携带，排期必须携带且在未来
	if status == domain.StatusDraft && input.ScheduledFor != nil {
		return nil, domain.ValidationError("draft emails cannot carry scheduledFor")
	}
	if status == domain.StatusScheduled {
		if input.ScheduledFor == nil {
			return nil, domain.ValidationError("scheduledFor is required for scheduled emails")
		}
		if !input.ScheduledFor.After(s.now()) {
			return nil, domain.ValidationError("scheduledFor must be in the future")
		}
	}

	email := &domain.Email{
		ID:           uuid.New().String(),
		UserID:       userID,
		Subject:      input.Subject,
		Body:         input.Body,
		To:           input.To,
		ListID:       input.ListID,
		Status:       status,
		ScheduledFor: input.ScheduledFor,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.store.SaveEmail(email); err != nil {
		return nil, fmt.Errorf("save email: %w", err)
	}

	if s.metrics != nil {
		s.metrics.EmailsCreated.WithLabelValues(string(status)).Inc()
	}
	s.logger.Info("email created",
		zap.String("emailId", email.ID),
		zap.String("userId", userID),
		zap.String("status", string(status)))

	return email, nil
}

// Get 按 ID 查询邮件，拒绝跨用户访问
func (s *EmailService) Get(userID, id string) (*domain.Email, error) {
	email, err := s.store.GetEmail(id)
	if err != nil {
		return nil, err
	}
	if email.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return email, nil
}

// ListByStatus 查询用户的邮件，status 为空时返回全部
//
// 排序: scheduled 视图按 scheduledFor 升序，其余按 createdAt 降序。
func (s *EmailService) ListByStatus(userID, status string) ([]domain.Email, error) {
	if status == "" {
		return s.store.ListEmailsByUser(userID, nil)
	}
	st := domain.EmailStatus(status)
	if !domain.ValidStatus(st) {
		return nil, domain.ValidationError("unknown status %q", status)
	}
	return s.store.ListEmailsByUser(userID, &st)
}

// ListScheduled 查询用户排期中的邮件，按 scheduledFor 升序
func (s *EmailService) ListScheduled(userID string) ([]domain.Email, error) {
	st := domain.StatusScheduled
	return s.store.ListEmailsByUser(userID, &st)
}

// ListDue 取出所有已到期的排期邮件，按 scheduledFor 升序
//
// 只读操作，不做状态变更；投递失败的邮件进入 failed，不会被重复取出。
func (s *EmailService) ListDue(now time.Time) ([]domain.Email, error) {
	return s.store.ListDueEmails(now)
}

// Cancel 取消一封排期邮件
//
// 仅 scheduled 状态可取消；已进入 sending 及之后的状态返回 ErrInvalidState，
// 保证与投递的并发竞争恰好有一个赢家。取消后保留记录（状态置 cancelled），不删除。
func (s *EmailService) Cancel(userID, id string) (*domain.Email, error) {
	email, err := s.store.GetEmail(id)
	if err != nil {
		return nil, err
	}
	if email.UserID != userID {
		return nil, domain.ErrForbidden
	}

	cancelled, err := s.store.TransitionEmailStatus(id,
		[]domain.EmailStatus{domain.StatusScheduled}, domain.StatusCancelled)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.EmailsCancelled.Inc()
	}
	s.logger.Info("email cancelled",
		zap.String("emailId", id),
		zap.String("userId", userID))

	return cancelled, nil
}

// sendResult 单个收件人的投递结果
type sendResult struct {
	recipient string
	err       error
}

// DispatchNow 立即投递一封邮件
//
// 流程: 前置校验（归属、收件人、渠道可用）→ 条件更新占有 sending →
// 并发逐收件人投递 → 汇总落终态。列表投递部分失败时，只要有任一收件人
// 被接收即记为 sent，被拒收件人写入 bounce 活动；全部失败记为 failed。
func (s *EmailService) DispatchNow(ctx context.Context, userID, id string) (*domain.Email, error) {
	started := s.now()

	email, err := s.store.GetEmail(id)
	if err != nil {
		return nil, err
	}
	if email.UserID != userID {
		return nil, domain.ErrForbidden
	}

	recipients, err := s.resolveRecipients(email)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(email.UserID)
	if err != nil {
		return nil, fmt.Errorf("load sender user: %w", err)
	}
	sender, err := s.senderFor(user)
	if err != nil {
		return nil, err
	}

	// 占有 sending：这里成功后取消必然失败，投递只会发生一次
	claimed, err := s.store.TransitionEmailStatus(id,
		[]domain.EmailStatus{domain.StatusDraft, domain.StatusScheduled}, domain.StatusSending)
	if err != nil {
		return nil, err
	}
	email = claimed

	results := s.fanOut(ctx, sender, user, email, recipients)

	accepted := 0
	var firstErr error
	for _, r := range results {
		if r.err == nil {
			accepted++
			continue
		}
		if firstErr == nil {
			firstErr = r.err
		}
		s.logger.Warn("recipient rejected",
			zap.String("emailId", email.ID),
			zap.String("recipient", r.recipient),
			zap.String("provider", sender.Name()),
			zap.Error(r.err))
		s.recordBounce(email, r.recipient)
	}

	if s.metrics != nil {
		s.metrics.ProviderSends.WithLabelValues(sender.Name(), "accepted").Add(float64(accepted))
		s.metrics.ProviderSends.WithLabelValues(sender.Name(), "rejected").Add(float64(len(results) - accepted))
	}

	now := s.now().UTC()
	if accepted > 0 {
		email.Status = domain.StatusSent
		email.SentAt = &now
		email.FailReason = ""
	} else {
		email.Status = domain.StatusFailed
		email.FailReason = truncateReason(firstErr)
	}

	// sending 状态已被本次调用独占，直接写入终态
	if err := s.store.UpdateEmail(email); err != nil {
		return nil, fmt.Errorf("finalize email: %w", err)
	}

	if s.metrics != nil {
		s.metrics.DispatchDuration.Observe(time.Since(started).Seconds())
		if email.Status == domain.StatusSent {
			s.metrics.EmailsSent.Inc()
		} else {
			s.metrics.EmailsFailed.Inc()
		}
	}
	s.logger.Info("email dispatched",
		zap.String("emailId", email.ID),
		zap.String("provider", sender.Name()),
		zap.String("status", string(email.Status)),
		zap.Int("recipients", len(recipients)),
		zap.Int("accepted", accepted))

	if email.Status == domain.StatusFailed {
		return email, domain.ProviderError(firstErr)
	}
	return email, nil
}

// resolveRecipients 在投递时展开收件人，列表成员以当时的快照为准
func (s *EmailService) resolveRecipients(email *domain.Email) ([]string, error) {
	if email.HasSingleRecipient() {
		return []string{email.To}, nil
	}
	if !email.HasListRecipients() {
		return nil, domain.ValidationError("email has no recipient")
	}

	members, err := s.store.ListRecipientsByList(email.ListID)
	if err != nil {
		return nil, fmt.Errorf("expand recipient list: %w", err)
	}
	if len(members) == 0 {
		return nil, domain.ValidationError("recipient list %s is empty", email.ListID)
	}

	addrs := make([]string, 0, len(members))
	for _, m := range members {
		addrs = append(addrs, m.Email)
	}
	return addrs, nil
}

// senderFor 选择发信渠道: 已授权 Gmail 优先，否则使用配置的兜底渠道
func (s *EmailService) senderFor(user *domain.User) (provider.Sender, error) {
	if s.gmail != nil && user.GmailConnected && user.GmailRefreshToken != "" {
		return s.gmail.Sender(user.GmailRefreshToken), nil
	}
	if s.fallback != nil {
		return s.fallback, nil
	}
	return nil, domain.ProviderError(errors.New("no sending provider configured"))
}

// fanOut 并发投递所有收件人，每次调用受单独的超时约束
func (s *EmailService) fanOut(ctx context.Context, sender provider.Sender, user *domain.User, email *domain.Email, recipients []string) []sendResult {
	from := s.cfg.FromAddress
	if addr := user.SenderAddress(); addr != "" {
		from = addr
	}
	timeout := s.cfg.SendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	results := make([]sendResult, len(recipients))
	tasks := make([]func(), len(recipients))
	for i, to := range recipients {
		i, to := i, to
		tasks[i] = func() {
			sendCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err := sender.Send(sendCtx, &provider.Message{
				From:     from,
				FromName: s.cfg.FromName,
				To:       to,
				Subject:  email.Subject,
				HTML:     email.Body,
			})
			results[i] = sendResult{recipient: to, err: err}
		}
	}

	if s.pool != nil {
		if err := s.pool.Run(tasks); err != nil {
			// 池中途停止时未执行的任务没有写入结果，按投递失败记录
			for i, r := range results {
				if r.recipient == "" {
					results[i] = sendResult{recipient: recipients[i], err: err}
				}
			}
		}
	} else {
		var wg sync.WaitGroup
		for _, task := range tasks {
			wg.Add(1)
			go func(t func()) {
				defer wg.Done()
				t()
			}(task)
		}
		wg.Wait()
	}
	return results
}

// recordBounce 为被拒收件人追加 bounce 活动，失败只记日志不阻断投递
func (s *EmailService) recordBounce(email *domain.Email, recipient string) {
	activity := &domain.EmailActivity{
		ID:             uuid.New().String(),
		EmailID:        email.ID,
		Type:           domain.ActivityBounce,
		RecipientEmail: recipient,
		Timestamp:      s.now().UTC(),
	}
	if err := s.store.SaveActivity(activity); err != nil {
		s.logger.Error("save bounce activity failed",
			zap.String("emailId", email.ID),
			zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ActivitiesRecorded.WithLabelValues(string(domain.ActivityBounce)).Inc()
	}
	if s.publisher != nil {
		s.publisher.PublishActivity(email.UserID, activity)
	}
}

// truncateReason 失败原因截断到列宽以内
func truncateReason(err error) string {
	if err == nil {
		return "all recipients rejected"
	}
	reason := err.Error()
	if len(reason) > 500 {
		reason = reason[:500]
	}
	return reason
}
