package domain

import "time"

// Store 聚合所有存储接口
type Store interface {
	// ========== Email Repository ==========
	SaveEmail(email *Email) error
	GetEmail(id string) (*Email, error)
	ListEmailsByUser(userID string, status *EmailStatus) ([]Email, error)
	ListDueEmails(now time.Time) ([]Email, error)
	// TransitionEmailStatus 条件更新邮件状态（按行 CAS）
	// 当前状态不在 from 中时返回 ErrInvalidState，保证并发转换只有一个赢家
	TransitionEmailStatus(id string, from []EmailStatus, to EmailStatus) (*Email, error)
	UpdateEmail(email *Email) error
	CountEmailsByStatus(userID string, status EmailStatus) (int, error)
	// ResetStuckSending 把滞留在 sending 的邮件落为 failed，返回受影响的邮件 ID
	// sending 只会被在途投递持有，进程启动时存在即为上次运行中断的遗留
	ResetStuckSending(reason string) ([]string, error)

	// ========== Recipient Repository ==========
	SaveRecipient(recipient *Recipient) error
	GetRecipient(id string) (*Recipient, error)
	ListRecipientsByUser(userID string, listID string) ([]Recipient, error)
	ListRecipientsByList(listID string) ([]Recipient, error)
	DeleteRecipient(id string) error

	// ========== Recipient List Repository ==========
	SaveRecipientList(list *RecipientList) error
	GetRecipientList(id string) (*RecipientList, error)
	ListRecipientLists(userID string) ([]RecipientList, error)
	DeleteRecipientList(id string) error

	// ========== Activity Repository ==========
	SaveActivity(activity *EmailActivity) error
	ListActivitiesByEmail(emailID string, limit int) ([]EmailActivity, error)
	ListRecentActivities(userID string, limit int) ([]EmailActivity, error)
	CountOpenedEmails(userID string) (int, error)

	// ========== User Repository ==========
	CreateUser(user *User) error
	GetUserByID(id string) (*User, error)
	GetUserByUsername(username string) (*User, error)
	UpdateUser(user *User) error
	UpdateLastLogin(userID string) error

	// ========== 通用 ==========
	Close() error
	Health() error
}
