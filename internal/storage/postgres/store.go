package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailboard/backend/internal/domain"
)

// Store 关系型数据库存储实现（支持 PostgreSQL 与 MySQL）
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Email{},
		&domain.EmailActivity{},
		&domain.Recipient{},
		&domain.RecipientList{},
	)
}

// Migrate 对外暴露迁移入口，供 migrate 命令使用
func (s *Store) Migrate() error {
	return s.migrate()
}

// ConfigureConnPool 按配置覆盖连接池参数，非正值保留构造时的默认值
func (s *Store) ConfigureConnPool(maxOpen, maxIdle int, maxLifetime time.Duration) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(maxLifetime)
	}
	return nil
}

// ========== Email Repository ==========

// SaveEmail 保存邮件
func (s *Store) SaveEmail(email *domain.Email) error {
	return s.db.Save(email).Error
}

// GetEmail 根据 ID 获取邮件
func (s *Store) GetEmail(id string) (*domain.Email, error) {
	var email domain.Email
	if err := s.db.First(&email, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &email, nil
}

// ListEmailsByUser 返回用户的邮件，可按状态过滤
func (s *Store) ListEmailsByUser(userID string, status *domain.EmailStatus) ([]domain.Email, error) {
	query := s.db.Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	// 排期视图按排期时间升序，其余按创建时间降序
	if status != nil && *status == domain.StatusScheduled {
		query = query.Order("scheduled_for ASC")
	} else {
		query = query.Order("created_at DESC")
	}

	var emails []domain.Email
	if err := query.Find(&emails).Error; err != nil {
		return nil, err
	}
	return emails, nil
}

// ListDueEmails 返回到期的排期邮件，按排期时间升序
func (s *Store) ListDueEmails(now time.Time) ([]domain.Email, error) {
	var emails []domain.Email
	err := s.db.
		Where("status = ? AND scheduled_for <= ?", domain.StatusScheduled, now).
		Order("scheduled_for ASC").
		Find(&emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

// TransitionEmailStatus 条件更新邮件状态
//
// 单条 UPDATE ... WHERE status IN (...) 保证并发转换只有一个赢家；
// 未命中时回读行以区分不存在与状态冲突。
func (s *Store) TransitionEmailStatus(id string, from []domain.EmailStatus, to domain.EmailStatus) (*domain.Email, error) {
	result := s.db.Model(&domain.Email{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := s.GetEmail(id); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidState
	}

	return s.GetEmail(id)
}

// ResetStuckSending 把滞留在 sending 的邮件落为 failed，返回受影响的邮件 ID
func (s *Store) ResetStuckSending(reason string) ([]string, error) {
	var ids []string
	err := s.db.Model(&domain.Email{}).
		Where("status = ?", domain.StatusSending).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	err = s.db.Model(&domain.Email{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":      domain.StatusFailed,
			"fail_reason": reason,
		}).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateEmail 覆盖保存邮件
func (s *Store) UpdateEmail(email *domain.Email) error {
	result := s.db.Save(email)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountEmailsByStatus 统计用户处于指定状态的邮件数量
func (s *Store) CountEmailsByStatus(userID string, status domain.EmailStatus) (int, error) {
	var count int64
	err := s.db.Model(&domain.Email{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&count).Error
	return int(count), err
}

// ========== Recipient Repository ==========

// SaveRecipient 保存收件人
func (s *Store) SaveRecipient(recipient *domain.Recipient) error {
	return s.db.Save(recipient).Error
}

// GetRecipient 根据 ID 获取收件人
func (s *Store) GetRecipient(id string) (*domain.Recipient, error) {
	var recipient domain.Recipient
	if err := s.db.First(&recipient, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &recipient, nil
}

// ListRecipientsByUser 返回用户的收件人，可按列表过滤
func (s *Store) ListRecipientsByUser(userID string, listID string) ([]domain.Recipient, error) {
	query := s.db.Where("user_id = ?", userID)
	if listID != "" {
		query = query.Where("list_id = ?", listID)
	}

	var recipients []domain.Recipient
	if err := query.Order("created_at DESC").Find(&recipients).Error; err != nil {
		return nil, err
	}
	return recipients, nil
}

// ListRecipientsByList 返回列表的全部成员
func (s *Store) ListRecipientsByList(listID string) ([]domain.Recipient, error) {
	var recipients []domain.Recipient
	err := s.db.Where("list_id = ?", listID).
		Order("created_at ASC").
		Find(&recipients).Error
	if err != nil {
		return nil, err
	}
	return recipients, nil
}

// DeleteRecipient 删除收件人
func (s *Store) DeleteRecipient(id string) error {
	result := s.db.Delete(&domain.Recipient{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ========== Recipient List Repository ==========

// SaveRecipientList 保存收件人列表
func (s *Store) SaveRecipientList(list *domain.RecipientList) error {
	return s.db.Save(list).Error
}

// GetRecipientList 根据 ID 获取收件人列表
func (s *Store) GetRecipientList(id string) (*domain.RecipientList, error) {
	var list domain.RecipientList
	if err := s.db.First(&list, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &list, nil
}

// ListRecipientLists 返回用户的全部收件人列表
func (s *Store) ListRecipientLists(userID string) ([]domain.RecipientList, error) {
	var lists []domain.RecipientList
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&lists).Error
	if err != nil {
		return nil, err
	}
	return lists, nil
}

// DeleteRecipientList 删除列表并解除成员归属
func (s *Store) DeleteRecipientList(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&domain.RecipientList{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		// 成员保留，仅清空列表归属
		return tx.Model(&domain.Recipient{}).
			Where("list_id = ?", id).
			Update("list_id", "").Error
	})
}

// ========== Activity Repository ==========

// SaveActivity 追加邮件活动事件
func (s *Store) SaveActivity(activity *domain.EmailActivity) error {
	return s.db.Create(activity).Error
}

// ListActivitiesByEmail 返回邮件的活动事件，按时间降序
func (s *Store) ListActivitiesByEmail(emailID string, limit int) ([]domain.EmailActivity, error) {
	query := s.db.Where("email_id = ?", emailID).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var activities []domain.EmailActivity
	if err := query.Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

// ListRecentActivities 返回用户所有邮件的最近活动，按时间降序
func (s *Store) ListRecentActivities(userID string, limit int) ([]domain.EmailActivity, error) {
	query := s.db.Model(&domain.EmailActivity{}).
		Joins("JOIN emails ON emails.id = email_activities.email_id").
		Where("emails.user_id = ?", userID).
		Order("email_activities.timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var activities []domain.EmailActivity
	if err := query.Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

// CountOpenedEmails 统计用户被打开过的邮件数（按邮件去重）
func (s *Store) CountOpenedEmails(userID string) (int, error) {
	var count int64
	err := s.db.Model(&domain.EmailActivity{}).
		Joins("JOIN emails ON emails.id = email_activities.email_id").
		Where("emails.user_id = ? AND email_activities.type = ?", userID, domain.ActivityOpen).
		Distinct("email_activities.email_id").
		Count(&count).Error
	return int(count), err
}

// ========== User Repository ==========

// CreateUser 创建用户
func (s *Store) CreateUser(user *domain.User) error {
	return s.db.Create(user).Error
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser 覆盖保存用户
func (s *Store) UpdateUser(user *domain.User) error {
	return s.db.Save(user).Error
}

// UpdateLastLogin 更新最近登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	return s.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Update("last_login_at", time.Now().UTC()).Error
}

// ========== 通用 ==========

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
