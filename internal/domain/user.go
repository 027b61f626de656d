package domain

import "time"

// User 表示注册用户的业务实体
//
// Gmail 相关字段在完成 OAuth 授权后写入，RefreshToken 不对外序列化。
type User struct {
	ID                string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username          string     `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	PasswordHash      string     `json:"-" gorm:"type:varchar(255)"` // 不返回给前端
	Email             string     `json:"email,omitempty" gorm:"type:varchar(255)"`
	Name              string     `json:"name,omitempty" gorm:"type:varchar(255)"`
	GmailConnected    bool       `json:"gmailConnected" gorm:"default:false"`
	GmailRefreshToken string     `json:"-" gorm:"type:varchar(512)"`
	GmailEmail        string     `json:"gmailEmail,omitempty" gorm:"type:varchar(255)"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
}

// SenderAddress 返回对外发信使用的地址
//
// 已连接 Gmail 时使用授权邮箱，否则退回账户邮箱。
func (u *User) SenderAddress() string {
	if u.GmailConnected && u.GmailEmail != "" {
		return u.GmailEmail
	}
	return u.Email
}
