package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailboard/backend/internal/domain"
)

func newEmail(id, userID string, status domain.EmailStatus, scheduledFor *time.Time) *domain.Email {
	return &domain.Email{
		ID:           id,
		UserID:       userID,
		Subject:      "Hi",
		Body:         "Hello",
		To:           "a@example.com",
		Status:       status,
		ScheduledFor: scheduledFor,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestStore_SaveAndGetEmail(t *testing.T) {
	store := NewStore()

	email := newEmail("e1", "u1", domain.StatusDraft, nil)
	require.NoError(t, store.SaveEmail(email))

	got, err := store.GetEmail("e1")
	require.NoError(t, err)
	assert.Equal(t, "Hi", got.Subject)
	assert.Equal(t, domain.StatusDraft, got.Status)

	_, err = store.GetEmail("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_GetEmail_ReturnsCopy(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveEmail(newEmail("e1", "u1", domain.StatusDraft, nil)))

	got, err := store.GetEmail("e1")
	require.NoError(t, err)
	got.Subject = "mutated"

	again, err := store.GetEmail("e1")
	require.NoError(t, err)
	assert.Equal(t, "Hi", again.Subject)
}

func TestStore_ListDueEmails(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	early := now.Add(-2 * time.Hour)
	late := now.Add(-1 * time.Hour)
	future := now.Add(1 * time.Hour)

	require.NoError(t, store.SaveEmail(newEmail("late", "u1", domain.StatusScheduled, &late)))
	require.NoError(t, store.SaveEmail(newEmail("early", "u1", domain.StatusScheduled, &early)))
	require.NoError(t, store.SaveEmail(newEmail("future", "u1", domain.StatusScheduled, &future)))
	require.NoError(t, store.SaveEmail(newEmail("draft", "u1", domain.StatusDraft, &early)))

	due, err := store.ListDueEmails(now)
	require.NoError(t, err)
	require.Len(t, due, 2)

	// 按排期时间升序
	assert.Equal(t, "early", due[0].ID)
	assert.Equal(t, "late", due[1].ID)

	// 重复查询不消费结果
	again, err := store.ListDueEmails(now)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestStore_ListEmailsByUser_Ordering(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	older := newEmail("older", "u1", domain.StatusSent, nil)
	older.CreatedAt = now.Add(-time.Hour)
	newer := newEmail("newer", "u1", domain.StatusSent, nil)
	newer.CreatedAt = now
	other := newEmail("other", "u2", domain.StatusSent, nil)

	require.NoError(t, store.SaveEmail(older))
	require.NoError(t, store.SaveEmail(newer))
	require.NoError(t, store.SaveEmail(other))

	sent := domain.StatusSent
	list, err := store.ListEmailsByUser("u1", &sent)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// 已发送视图按创建时间降序
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)
}

func TestStore_TransitionEmailStatus(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveEmail(newEmail("e1", "u1", domain.StatusScheduled, nil)))

	// 合法转换
	email, err := store.TransitionEmailStatus("e1", []domain.EmailStatus{domain.StatusScheduled}, domain.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, email.Status)

	// 终态不可再转换
	_, err = store.TransitionEmailStatus("e1", []domain.EmailStatus{domain.StatusScheduled}, domain.StatusSending)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	// 不存在的邮件
	_, err = store.TransitionEmailStatus("missing", []domain.EmailStatus{domain.StatusDraft}, domain.StatusSending)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_TransitionEmailStatus_Concurrent(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveEmail(newEmail("e1", "u1", domain.StatusScheduled, nil)))

	var wg sync.WaitGroup
	wins := make(chan domain.EmailStatus, 2)

	// 并发的取消与投递占用，只有一个能赢
	for _, to := range []domain.EmailStatus{domain.StatusCancelled, domain.StatusSending} {
		wg.Add(1)
		go func(target domain.EmailStatus) {
			defer wg.Done()
			if _, err := store.TransitionEmailStatus("e1", []domain.EmailStatus{domain.StatusScheduled}, target); err == nil {
				wins <- target
			}
		}(to)
	}

	wg.Wait()
	close(wins)

	var winners []domain.EmailStatus
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)

	email, err := store.GetEmail("e1")
	require.NoError(t, err)
	assert.Equal(t, winners[0], email.Status)
}

func TestStore_ResetStuckSending(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveEmail(newEmail("e1", "u1", domain.StatusSending, nil)))
	require.NoError(t, store.SaveEmail(newEmail("e2", "u1", domain.StatusScheduled, nil)))

	ids, err := store.ResetStuckSending("dispatch interrupted by server restart")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "e1", ids[0])

	// 滞留的 sending 落为 failed 并带上原因
	email, err := store.GetEmail("e1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, email.Status)
	assert.Equal(t, "dispatch interrupted by server restart", email.FailReason)

	// 其余状态不受影响
	other, err := store.GetEmail("e2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, other.Status)

	// 再次清理无事可做
	ids, err = store.ResetStuckSending("dispatch interrupted by server restart")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_RecipientListDetachesMembers(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.SaveRecipientList(&domain.RecipientList{ID: "l1", UserID: "u1", Name: "vip", CreatedAt: time.Now()}))
	require.NoError(t, store.SaveRecipient(&domain.Recipient{ID: "r1", UserID: "u1", Email: "a@example.com", ListID: "l1", CreatedAt: time.Now()}))

	require.NoError(t, store.DeleteRecipientList("l1"))

	r, err := store.GetRecipient("r1")
	require.NoError(t, err)
	assert.Empty(t, r.ListID)

	_, err = store.GetRecipientList("l1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Activities(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	require.NoError(t, store.SaveEmail(newEmail("e1", "u1", domain.StatusSent, nil)))
	require.NoError(t, store.SaveEmail(newEmail("e2", "u1", domain.StatusSent, nil)))
	require.NoError(t, store.SaveEmail(newEmail("e3", "u2", domain.StatusSent, nil)))

	activities := []*domain.EmailActivity{
		{ID: "a1", EmailID: "e1", Type: domain.ActivityOpen, RecipientEmail: "a@example.com", Timestamp: now.Add(-3 * time.Minute)},
		{ID: "a2", EmailID: "e1", Type: domain.ActivityOpen, RecipientEmail: "b@example.com", Timestamp: now.Add(-2 * time.Minute)},
		{ID: "a3", EmailID: "e2", Type: domain.ActivityClick, RecipientEmail: "a@example.com", Timestamp: now.Add(-1 * time.Minute)},
		{ID: "a4", EmailID: "e3", Type: domain.ActivityOpen, RecipientEmail: "c@example.com", Timestamp: now},
	}
	for _, a := range activities {
		require.NoError(t, store.SaveActivity(a))
	}

	recent, err := store.ListRecentActivities("u1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "a3", recent[0].ID) // 按时间降序

	limited, err := store.ListRecentActivities("u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	// 打开数按邮件去重：e1 被打开两次只算一封
	opened, err := store.CountOpenedEmails("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, opened)
}

func TestStore_Users(t *testing.T) {
	store := NewStore()

	user := &domain.User{ID: "u1", Username: "alice", PasswordHash: "x", CreatedAt: time.Now()}
	require.NoError(t, store.CreateUser(user))

	// 用户名唯一
	dup := &domain.User{ID: "u2", Username: "alice"}
	assert.Error(t, store.CreateUser(dup))

	got, err := store.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	require.NoError(t, store.UpdateLastLogin("u1"))
	got, err = store.GetUserByID("u1")
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)
}
