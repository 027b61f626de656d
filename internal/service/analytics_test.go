package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailboard/backend/internal/config"
	"mailboard/backend/internal/domain"
	"mailboard/backend/internal/storage/memory"
)

func newTestAnalyticsService(t *testing.T) (*AnalyticsService, *EmailService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	emailSvc := NewEmailService(store, nil, &recordingSender{}, nil,
		config.ProviderConfig{FromAddress: "noreply@example.com", SendTimeout: time.Second},
		zap.NewNop(), nil)
	return NewAnalyticsService(store, nil, zap.NewNop(), nil), emailSvc, store
}

func sendEmail(t *testing.T, svc *EmailService, userID string) *domain.Email {
	t.Helper()
	email, err := svc.Create(userID, &CreateEmailInput{
		Subject: "Hello", Body: "<p>hi</p>", To: "a@example.com",
	})
	require.NoError(t, err)
	sent, err := svc.DispatchNow(context.Background(), userID, email.ID)
	require.NoError(t, err)
	return sent
}

func TestAnalyticsService_Overview(t *testing.T) {
	svc, emailSvc, store := newTestAnalyticsService(t)
	user := seedUser(t, store)
	future := time.Now().Add(time.Hour)

	// 空账户
	overview, err := svc.Overview(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, overview.TotalSent)
	assert.Equal(t, 0, overview.Scheduled)
	assert.Equal(t, "0%", overview.OpenRate)

	first := sendEmail(t, emailSvc, user.ID)
	sendEmail(t, emailSvc, user.ID)
	_, err = emailSvc.Create(user.ID, &CreateEmailInput{
		Subject: "later", Body: "x", To: "a@example.com",
		Status: "scheduled", ScheduledFor: &future,
	})
	require.NoError(t, err)

	// 同一封邮件被打开两次只计一次
	_, err = svc.Track(first.ID, domain.ActivityOpen, "a@example.com")
	require.NoError(t, err)
	_, err = svc.Track(first.ID, domain.ActivityOpen, "a@example.com")
	require.NoError(t, err)

	overview, err = svc.Overview(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, overview.TotalSent)
	assert.Equal(t, 1, overview.Scheduled)
	assert.Equal(t, "50.0%", overview.OpenRate)
}

func TestAnalyticsService_Track(t *testing.T) {
	svc, emailSvc, store := newTestAnalyticsService(t)
	user := seedUser(t, store)
	email := sendEmail(t, emailSvc, user.ID)

	activity, err := svc.Track(email.ID, domain.ActivityClick, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityClick, activity.Type)
	assert.Equal(t, email.ID, activity.EmailID)

	t.Run("非法事件类型", func(t *testing.T) {
		_, err := svc.Track(email.ID, domain.ActivityType("forward"), "a@example.com")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("邮件不存在", func(t *testing.T) {
		_, err := svc.Track(uuid.New().String(), domain.ActivityOpen, "a@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestAnalyticsService_ListByEmail(t *testing.T) {
	svc, emailSvc, store := newTestAnalyticsService(t)
	user := seedUser(t, store)
	email := sendEmail(t, emailSvc, user.ID)

	_, err := svc.Track(email.ID, domain.ActivityOpen, "a@example.com")
	require.NoError(t, err)
	_, err = svc.Track(email.ID, domain.ActivityClick, "a@example.com")
	require.NoError(t, err)

	activities, err := svc.ListByEmail(user.ID, email.ID, 10)
	require.NoError(t, err)
	assert.Len(t, activities, 2)

	_, err = svc.ListByEmail("other-user", email.ID, 10)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAnalyticsService_RecentActivity(t *testing.T) {
	svc, emailSvc, store := newTestAnalyticsService(t)
	user := seedUser(t, store)
	other := &domain.User{ID: uuid.New().String(), Username: "other", Email: "other@example.com"}
	require.NoError(t, store.CreateUser(other))

	mine := sendEmail(t, emailSvc, user.ID)
	theirs := sendEmail(t, emailSvc, other.ID)

	_, err := svc.Track(mine.ID, domain.ActivityOpen, "a@example.com")
	require.NoError(t, err)
	_, err = svc.Track(theirs.ID, domain.ActivityOpen, "a@example.com")
	require.NoError(t, err)

	// 只看得到自己邮件的活动
	activities, err := svc.RecentActivity(user.ID, 10)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, mine.ID, activities[0].EmailID)
}

func TestFormatOpenRate(t *testing.T) {
	assert.Equal(t, "0%", FormatOpenRate(0, 0))
	assert.Equal(t, "0.0%", FormatOpenRate(0, 3))
	assert.Equal(t, "50.0%", FormatOpenRate(1, 2))
	assert.Equal(t, "33.3%", FormatOpenRate(1, 3))
	assert.Equal(t, "100.0%", FormatOpenRate(3, 3))
}
