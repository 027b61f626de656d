package storage

import (
	"time"

	"mailboard/backend/internal/domain"
)

// EmailRepository 定义邮件数据存取操作。
type EmailRepository interface {
	SaveEmail(email *domain.Email) error
	GetEmail(id string) (*domain.Email, error)
	ListEmailsByUser(userID string, status *domain.EmailStatus) ([]domain.Email, error)
	ListDueEmails(now time.Time) ([]domain.Email, error) // 到期的排期邮件，按排期时间升序
	TransitionEmailStatus(id string, from []domain.EmailStatus, to domain.EmailStatus) (*domain.Email, error)
	UpdateEmail(email *domain.Email) error
	CountEmailsByStatus(userID string, status domain.EmailStatus) (int, error)
	ResetStuckSending(reason string) ([]string, error) // 启动时清理上次运行滞留的 sending 行

}

// RecipientRepository 定义收件人与收件人列表数据存取操作。
type RecipientRepository interface {
	SaveRecipient(recipient *domain.Recipient) error
	GetRecipient(id string) (*domain.Recipient, error)
	ListRecipientsByUser(userID string, listID string) ([]domain.Recipient, error)
	ListRecipientsByList(listID string) ([]domain.Recipient, error)
	DeleteRecipient(id string) error

	SaveRecipientList(list *domain.RecipientList) error
	GetRecipientList(id string) (*domain.RecipientList, error)
	ListRecipientLists(userID string) ([]domain.RecipientList, error)
	DeleteRecipientList(id string) error // 删除列表时解除成员的归属
}

// ActivityRepository 定义邮件活动事件的追加与读侧聚合。
type ActivityRepository interface {
	SaveActivity(activity *domain.EmailActivity) error
	ListActivitiesByEmail(emailID string, limit int) ([]domain.EmailActivity, error)
	ListRecentActivities(userID string, limit int) ([]domain.EmailActivity, error)
	CountOpenedEmails(userID string) (int, error)
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// Store 聚合全部存储能力，与 domain.Store 保持一致。
type Store interface {
	EmailRepository
	RecipientRepository
	ActivityRepository
	UserRepository

	Close() error
	Health() error
}
