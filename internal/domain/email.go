package domain

import "time"

// EmailStatus 邮件生命周期状态
type EmailStatus string

const (
	StatusDraft     EmailStatus = "draft"     // 草稿
	StatusScheduled EmailStatus = "scheduled" // 已排期，等待定时发送
	StatusSending   EmailStatus = "sending"   // 发送中（内部过渡状态，由条件更新独占）
	StatusSent      EmailStatus = "sent"      // 已发送（终态）
	StatusFailed    EmailStatus = "failed"    // 发送失败（终态）
	StatusCancelled EmailStatus = "cancelled" // 已取消（终态）
)

// ValidStatus 判断状态是否属于封闭枚举
func ValidStatus(s EmailStatus) bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusSending, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal 判断状态是否为终态，终态不再允许任何转换
func (s EmailStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Email 表示一封营销邮件的业务实体
//
// 生命周期: draft → (scheduled) → sent | failed，scheduled 可被取消为 cancelled。
// 寻址方式二选一: To（单个收件人）或 ListID（收件人列表），不允许同时设置。
type Email struct {
	ID           string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID       string      `json:"userId" gorm:"type:varchar(36);index;not null"`
	Subject      string      `json:"subject" gorm:"type:varchar(500);not null"`
	Body         string      `json:"body" gorm:"type:text;not null"`
	To           string      `json:"to,omitempty" gorm:"type:varchar(255)"`
	ListID       string      `json:"listId,omitempty" gorm:"type:varchar(36);index"`
	Status       EmailStatus `json:"status" gorm:"type:varchar(20);index;not null;default:'draft'"`
	ScheduledFor *time.Time  `json:"scheduledFor,omitempty" gorm:"index"`
	SentAt       *time.Time  `json:"sentAt,omitempty"`
	FailReason   string      `json:"failReason,omitempty" gorm:"type:varchar(500)"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// CanDispatch 判断邮件当前是否允许发起投递
func (e *Email) CanDispatch() bool {
	return e.Status == StatusDraft || e.Status == StatusScheduled
}

// CanCancel 判断邮件当前是否允许取消
func (e *Email) CanCancel() bool {
	return e.Status == StatusScheduled
}

// IsDue 判断排期邮件是否已到期
func (e *Email) IsDue(now time.Time) bool {
	return e.Status == StatusScheduled && e.ScheduledFor != nil && !e.ScheduledFor.After(now)
}

// HasSingleRecipient 判断是否为单收件人邮件
func (e *Email) HasSingleRecipient() bool {
	return e.To != ""
}

// HasListRecipients 判断是否为收件人列表邮件
func (e *Email) HasListRecipients() bool {
	return e.ListID != ""
}
