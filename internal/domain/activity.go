package domain

import "time"

// ActivityType 邮件活动事件类型
type ActivityType string

const (
	ActivityOpen   ActivityType = "open"   // 邮件被打开
	ActivityClick  ActivityType = "click"  // 邮件内链接被点击
	ActivityBounce ActivityType = "bounce" // 投递被退回
)

// ValidActivityType 判断事件类型是否合法
func ValidActivityType(t ActivityType) bool {
	return t == ActivityOpen || t == ActivityClick || t == ActivityBounce
}

// EmailActivity 邮件活动事件，追加写入后不再修改
//
// 通过 EmailID 归属到邮件，仅用于读侧聚合（分析统计与活动流）。
type EmailActivity struct {
	ID             string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EmailID        string       `json:"emailId" gorm:"type:varchar(36);index;not null"`
	Type           ActivityType `json:"type" gorm:"type:varchar(20);index;not null"`
	RecipientEmail string       `json:"recipientEmail" gorm:"type:varchar(255);not null"`
	Timestamp      time.Time    `json:"timestamp"`
}

// AnalyticsOverview 面板概览统计
type AnalyticsOverview struct {
	TotalSent int    `json:"totalSent"` // 已发送邮件总数
	Scheduled int    `json:"scheduled"` // 排期中邮件数
	OpenRate  string `json:"openRate"`  // 打开率，格式化为百分比字符串
}
