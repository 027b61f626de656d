package domain

import "time"

// Recipient 收件人，属于单个用户，可选归入一个收件人列表
type Recipient struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);index;not null"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null"`
	Name      string    `json:"name,omitempty" gorm:"type:varchar(255)"`
	ListID    string    `json:"listId,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecipientList 收件人列表，仅有创建/删除生命周期
type RecipientList struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string    `json:"userId" gorm:"type:varchar(36);index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description,omitempty" gorm:"type:varchar(500)"`
	CreatedAt   time.Time `json:"createdAt"`
}
