package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailboard/backend/internal/config"
	"mailboard/backend/internal/domain"
	"mailboard/backend/internal/provider"
	"mailboard/backend/internal/storage/memory"
)

func newTestEmailService(t *testing.T) (*EmailService, *memory.Store, *recordingSender) {
	t.Helper()
	store := memory.NewStore()
	sender := &recordingSender{}
	svc := NewEmailService(store, nil, sender, nil,
		config.ProviderConfig{FromAddress: "noreply@example.com", SendTimeout: time.Second},
		zap.NewNop(), nil)
	return svc, store, sender
}

// recordingSender 记录投递调用，可按收件人注入失败
type recordingSender struct {
	mu     sync.Mutex
	sent   []string
	reject map[string]error
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) Send(_ context.Context, msg *provider.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.reject[msg.To]; ok {
		return err
	}
	r.sent = append(r.sent, msg.To)
	return nil
}

func seedUser(t *testing.T, store *memory.Store) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:       uuid.New().String(),
		Username: "sender",
		Email:    "sender@example.com",
	}
	require.NoError(t, store.CreateUser(user))
	return user
}

func TestEmailService_Create(t *testing.T) {
	svc, store, _ := newTestEmailService(t)
	user := seedUser(t, store)
	future := time.Now().Add(time.Hour)

	t.Run("草稿", func(t *testing.T) {
		email, err := svc.Create(user.ID, &CreateEmailInput{
			Subject: "Hello",
			Body:    "<p>hi</p>",
			To:      "a@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDraft, email.Status)
		assert.NotEmpty(t, email.ID)
	})

	t.Run("排期", func(t *testing.T) {
		email, err := svc.Create(user.ID, &CreateEmailInput{
			Subject:      "Hello",
			Body:         "<p>hi</p>",
			To:           "a@example.com",
			Status:       "scheduled",
			ScheduledFor: &future,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusScheduled, email.Status)
		require.NotNil(t, email.ScheduledFor)
		assert.True(t, email.ScheduledFor.Equal(future), "排期时间应原样保留")
	})

	t.Run("携带排期时间即默认排期", func(t *testing.T) {
		email, err := svc.Create(user.ID, &CreateEmailInput{
			Subject: "Hello", Body: "x", To: "a@example.com", ScheduledFor: &future,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusScheduled, email.Status)
	})

	t.Run("草稿不得携带排期时间", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		_, err := svc.Create(user.ID, &CreateEmailInput{
			Subject: "Hello", Body: "x", To: "a@example.com",
			Status: "draft", ScheduledFor: &past,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = svc.Create(user.ID, &CreateEmailInput{
			Subject: "Hello", Body: "x", To: "a@example.com",
			Status: "draft", ScheduledFor: &future,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("排期时间已过", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		_, err := svc.Create(user.ID, &CreateEmailInput{
			Subject: "Hello", Body: "x", To: "a@example.com",
			Status: "scheduled", ScheduledFor: &past,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("排期缺少时间", func(t *testing.T) {
		_, err := svc.Create(user.ID, &CreateEmailInput{
			Subject: "Hello", Body: "x", To: "a@example.com", Status: "scheduled",
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("非法初始状态", func(t *testing.T) {
		_, err := svc.Create(user.ID, &CreateEmailInput{
			Subject: "Hello", Body: "x", To: "a@example.com", Status: "sent",
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("收件人二选一", func(t *testing.T) {
		_, err := svc.Create(user.ID, &CreateEmailInput{Subject: "Hello", Body: "x"})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = svc.Create(user.ID, &CreateEmailInput{
			Subject: "Hello", Body: "x", To: "a@example.com", ListID: "some-list",
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("列表不存在", func(t *testing.T) {
		_, err := svc.Create(user.ID, &CreateEmailInput{
			Subject: "Hello", Body: "x", ListID: uuid.New().String(),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("越权使用他人列表", func(t *testing.T) {
		list := &domain.RecipientList{ID: uuid.New().String(), UserID: "someone-else", Name: "vip"}
		require.NoError(t, store.SaveRecipientList(list))

		_, err := svc.Create(user.ID, &CreateEmailInput{
			Subject: "Hello", Body: "x", ListID: list.ID,
		})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestEmailService_DispatchNow_Single(t *testing.T) {
	svc, store, sender := newTestEmailService(t)
	user := seedUser(t, store)

	email, err := svc.Create(user.ID, &CreateEmailInput{
		Subject: "Hello", Body: "<p>hi</p>", To: "a@example.com",
	})
	require.NoError(t, err)

	sent, err := svc.DispatchNow(context.Background(), user.ID, email.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.Equal(t, []string{"a@example.com"}, sender.sent)

	// 终态不可重复投递
	_, err = svc.DispatchNow(context.Background(), user.ID, email.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestEmailService_DispatchNow_List(t *testing.T) {
	svc, store, sender := newTestEmailService(t)
	user := seedUser(t, store)

	list := &domain.RecipientList{ID: uuid.New().String(), UserID: user.ID, Name: "vip"}
	require.NoError(t, store.SaveRecipientList(list))
	for _, addr := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, store.SaveRecipient(&domain.Recipient{
			ID: uuid.New().String(), UserID: user.ID, Email: addr, ListID: list.ID,
		}))
	}
	sender.reject = map[string]error{"b@example.com": errors.New("550 mailbox unavailable")}

	email, err := svc.Create(user.ID, &CreateEmailInput{
		Subject: "Hello", Body: "<p>hi</p>", ListID: list.ID,
	})
	require.NoError(t, err)

	sent, err := svc.DispatchNow(context.Background(), user.ID, email.ID)
	require.NoError(t, err)

	// 部分失败仍记为已发送，被拒收件人落 bounce 活动
	assert.Equal(t, domain.StatusSent, sent.Status)
	assert.Len(t, sender.sent, 2)

	activities, err := store.ListActivitiesByEmail(email.ID, 10)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, domain.ActivityBounce, activities[0].Type)
	assert.Equal(t, "b@example.com", activities[0].RecipientEmail)
}

func TestEmailService_DispatchNow_AllRejected(t *testing.T) {
	svc, store, sender := newTestEmailService(t)
	user := seedUser(t, store)
	sender.reject = map[string]error{"a@example.com": errors.New("550 rejected")}

	email, err := svc.Create(user.ID, &CreateEmailInput{
		Subject: "Hello", Body: "x", To: "a@example.com",
	})
	require.NoError(t, err)

	failed, err := svc.DispatchNow(context.Background(), user.ID, email.ID)
	require.ErrorIs(t, err, domain.ErrProvider)
	require.NotNil(t, failed)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Contains(t, failed.FailReason, "550 rejected")
	assert.Nil(t, failed.SentAt)
}

func TestEmailService_DispatchNow_EmptyList(t *testing.T) {
	svc, store, _ := newTestEmailService(t)
	user := seedUser(t, store)

	list := &domain.RecipientList{ID: uuid.New().String(), UserID: user.ID, Name: "empty"}
	require.NoError(t, store.SaveRecipientList(list))

	email, err := svc.Create(user.ID, &CreateEmailInput{
		Subject: "Hello", Body: "x", ListID: list.ID,
	})
	require.NoError(t, err)

	_, err = svc.DispatchNow(context.Background(), user.ID, email.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// 校验失败不触碰状态
	got, err := store.GetEmail(email.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.Status)
}

func TestEmailService_DispatchNow_Forbidden(t *testing.T) {
	svc, store, _ := newTestEmailService(t)
	user := seedUser(t, store)

	email, err := svc.Create(user.ID, &CreateEmailInput{
		Subject: "Hello", Body: "x", To: "a@example.com",
	})
	require.NoError(t, err)

	_, err = svc.DispatchNow(context.Background(), "other-user", email.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestEmailService_Cancel(t *testing.T) {
	svc, store, _ := newTestEmailService(t)
	user := seedUser(t, store)
	future := time.Now().Add(time.Hour)

	email, err := svc.Create(user.ID, &CreateEmailInput{
		Subject: "Hello", Body: "x", To: "a@example.com",
		Status: "scheduled", ScheduledFor: &future,
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(user.ID, email.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	// 记录保留，不删除
	got, err := store.GetEmail(email.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	// 取消后不可再投递
	_, err = svc.DispatchNow(context.Background(), user.ID, email.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestEmailService_Cancel_InvalidState(t *testing.T) {
	svc, store, _ := newTestEmailService(t)
	user := seedUser(t, store)

	email, err := svc.Create(user.ID, &CreateEmailInput{
		Subject: "Hello", Body: "x", To: "a@example.com",
	})
	require.NoError(t, err)

	// 草稿不可取消
	_, err = svc.Cancel(user.ID, email.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.DispatchNow(context.Background(), user.ID, email.ID)
	require.NoError(t, err)

	// 已发送不可取消
	_, err = svc.Cancel(user.ID, email.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestEmailService_Cancel_NotFound(t *testing.T) {
	svc, store, _ := newTestEmailService(t)
	user := seedUser(t, store)

	_, err := svc.Cancel(user.ID, uuid.New().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEmailService_ListByStatus(t *testing.T) {
	svc, store, _ := newTestEmailService(t)
	user := seedUser(t, store)
	future := time.Now().Add(time.Hour)

	_, err := svc.Create(user.ID, &CreateEmailInput{Subject: "d", Body: "x", To: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.Create(user.ID, &CreateEmailInput{
		Subject: "s", Body: "x", To: "a@example.com",
		Status: "scheduled", ScheduledFor: &future,
	})
	require.NoError(t, err)

	all, err := svc.ListByStatus(user.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drafts, err := svc.ListByStatus(user.ID, "draft")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "d", drafts[0].Subject)

	_, err = svc.ListByStatus(user.ID, "bogus")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEmailService_ListDue(t *testing.T) {
	svc, store, _ := newTestEmailService(t)
	user := seedUser(t, store)
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	// 回拨时钟以便植入一封已到期的排期邮件
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	due, err := svc.Create(user.ID, &CreateEmailInput{
		Subject: "due", Body: "x", To: "a@example.com",
		Status: "scheduled", ScheduledFor: &past,
	})
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.Create(user.ID, &CreateEmailInput{
		Subject: "later", Body: "x", To: "a@example.com",
		Status: "scheduled", ScheduledFor: &future,
	})
	require.NoError(t, err)

	emails, err := svc.ListDue(time.Now())
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, due.ID, emails[0].ID)
}
