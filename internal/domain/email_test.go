package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmailStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   EmailStatus
		terminal bool
	}{
		{StatusDraft, false},
		{StatusScheduled, false},
		{StatusSending, false},
		{StatusSent, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusDraft))
	assert.True(t, ValidStatus(StatusCancelled))
	assert.False(t, ValidStatus(EmailStatus("pending")))
	assert.False(t, ValidStatus(EmailStatus("")))
}

func TestEmail_CanDispatch(t *testing.T) {
	assert.True(t, (&Email{Status: StatusDraft}).CanDispatch())
	assert.True(t, (&Email{Status: StatusScheduled}).CanDispatch())
	assert.False(t, (&Email{Status: StatusSending}).CanDispatch())
	assert.False(t, (&Email{Status: StatusSent}).CanDispatch())
	assert.False(t, (&Email{Status: StatusFailed}).CanDispatch())
	assert.False(t, (&Email{Status: StatusCancelled}).CanDispatch())
}

func TestEmail_CanCancel(t *testing.T) {
	assert.True(t, (&Email{Status: StatusScheduled}).CanCancel())
	assert.False(t, (&Email{Status: StatusDraft}).CanCancel())
	assert.False(t, (&Email{Status: StatusSent}).CanCancel())
}

func TestEmail_IsDue(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	// 已到期的排期邮件
	due := &Email{Status: StatusScheduled, ScheduledFor: &past}
	assert.True(t, due.IsDue(now))

	// 未到期
	notDue := &Email{Status: StatusScheduled, ScheduledFor: &future}
	assert.False(t, notDue.IsDue(now))

	// 到期时刻本身算到期
	exact := &Email{Status: StatusScheduled, ScheduledFor: &now}
	assert.True(t, exact.IsDue(now))

	// 非排期状态不算到期
	draft := &Email{Status: StatusDraft, ScheduledFor: &past}
	assert.False(t, draft.IsDue(now))

	// 缺少排期时间
	missing := &Email{Status: StatusScheduled}
	assert.False(t, missing.IsDue(now))
}

func TestEmail_Addressing(t *testing.T) {
	single := &Email{To: "a@example.com"}
	assert.True(t, single.HasSingleRecipient())
	assert.False(t, single.HasListRecipients())

	list := &Email{ListID: "list-1"}
	assert.False(t, list.HasSingleRecipient())
	assert.True(t, list.HasListRecipients())
}
