package memory

import (
	"sort"
	"sync"
	"time"

	"mailboard/backend/internal/domain"
)

// Store 使用内存保存全部业务数据，主要用于开发验证与测试。
type Store struct {
	mu         sync.RWMutex
	emails     map[string]*domain.Email
	recipients map[string]*domain.Recipient
	lists      map[string]*domain.RecipientList
	activities []*domain.EmailActivity
	users      map[string]*domain.User
	byUsername map[string]string // username -> userID
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		emails:     make(map[string]*domain.Email),
		recipients: make(map[string]*domain.Recipient),
		lists:      make(map[string]*domain.RecipientList),
		activities: make([]*domain.EmailActivity, 0),
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
	}
}

// ========== Email Repository ==========

// SaveEmail 保存邮件。
func (s *Store) SaveEmail(email *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *email
	s.emails[email.ID] = &cp
	return nil
}

// GetEmail 根据 ID 获取邮件。
func (s *Store) GetEmail(id string) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *email
	return &cp, nil
}

// ListEmailsByUser 返回用户的邮件，可按状态过滤。
//
// 排期类视图按排期时间升序，其余按创建时间降序。
func (s *Store) ListEmailsByUser(userID string, status *domain.EmailStatus) ([]domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Email, 0)
	for _, email := range s.emails {
		if email.UserID != userID {
			continue
		}
		if status != nil && email.Status != *status {
			continue
		}
		result = append(result, *email)
	}

	if status != nil && *status == domain.StatusScheduled {
		sort.Slice(result, func(i, j int) bool {
			return scheduledBefore(&result[i], &result[j])
		})
	} else {
		sort.Slice(result, func(i, j int) bool {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	}

	return result, nil
}

// ListDueEmails 返回所有到期的排期邮件，按排期时间升序。
func (s *Store) ListDueEmails(now time.Time) ([]domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Email, 0)
	for _, email := range s.emails {
		if email.IsDue(now) {
			result = append(result, *email)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return scheduledBefore(&result[i], &result[j])
	})

	return result, nil
}

// TransitionEmailStatus 条件更新邮件状态。
//
// 当前状态不在 from 中时返回 ErrInvalidState，整个检查+更新在锁内完成，
// 并发的 dispatch 与 cancel 只有一个能赢。
func (s *Store) TransitionEmailStatus(id string, from []domain.EmailStatus, to domain.EmailStatus) (*domain.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	allowed := false
	for _, f := range from {
		if email.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, domain.ErrInvalidState
	}

	email.Status = to
	cp := *email
	return &cp, nil
}

// UpdateEmail 覆盖保存邮件。
func (s *Store) UpdateEmail(email *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[email.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *email
	s.emails[email.ID] = &cp
	return nil
}

// CountEmailsByStatus 统计用户处于指定状态的邮件数量。
func (s *Store) CountEmailsByStatus(userID string, status domain.EmailStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, email := range s.emails {
		if email.UserID == userID && email.Status == status {
			count++
		}
	}
	return count, nil
}

// ResetStuckSending 把滞留在 sending 的邮件落为 failed。
func (s *Store) ResetStuckSending(reason string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, email := range s.emails {
		if email.Status != domain.StatusSending {
			continue
		}
		email.Status = domain.StatusFailed
		email.FailReason = reason
		ids = append(ids, email.ID)
	}
	return ids, nil
}

// scheduledBefore 按排期时间比较，缺失排期时间的排在最后。
func scheduledBefore(a, b *domain.Email) bool {
	if a.ScheduledFor == nil {
		return false
	}
	if b.ScheduledFor == nil {
		return true
	}
	return a.ScheduledFor.Before(*b.ScheduledFor)
}

// ========== Recipient Repository ==========

// SaveRecipient 保存收件人。
func (s *Store) SaveRecipient(recipient *domain.Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *recipient
	s.recipients[recipient.ID] = &cp
	return nil
}

// GetRecipient 根据 ID 获取收件人。
func (s *Store) GetRecipient(id string) (*domain.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipient, ok := s.recipients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *recipient
	return &cp, nil
}

// ListRecipientsByUser 返回用户的收件人，可按列表过滤，按创建时间降序。
func (s *Store) ListRecipientsByUser(userID string, listID string) ([]domain.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Recipient, 0)
	for _, r := range s.recipients {
		if r.UserID != userID {
			continue
		}
		if listID != "" && r.ListID != listID {
			continue
		}
		result = append(result, *r)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// ListRecipientsByList 返回列表的全部成员。
func (s *Store) ListRecipientsByList(listID string) ([]domain.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Recipient, 0)
	for _, r := range s.recipients {
		if r.ListID == listID {
			result = append(result, *r)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// DeleteRecipient 删除收件人。
func (s *Store) DeleteRecipient(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipients[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.recipients, id)
	return nil
}

// ========== Recipient List Repository ==========

// SaveRecipientList 保存收件人列表。
func (s *Store) SaveRecipientList(list *domain.RecipientList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *list
	s.lists[list.ID] = &cp
	return nil
}

// GetRecipientList 根据 ID 获取收件人列表。
func (s *Store) GetRecipientList(id string) (*domain.RecipientList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.lists[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *list
	return &cp, nil
}

// ListRecipientLists 返回用户的全部收件人列表，按创建时间降序。
func (s *Store) ListRecipientLists(userID string) ([]domain.RecipientList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.RecipientList, 0)
	for _, l := range s.lists {
		if l.UserID == userID {
			result = append(result, *l)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// DeleteRecipientList 删除列表并解除成员归属。
func (s *Store) DeleteRecipientList(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lists[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.lists, id)

	// 成员保留，仅清空列表归属
	for _, r := range s.recipients {
		if r.ListID == id {
			r.ListID = ""
		}
	}
	return nil
}

// ========== Activity Repository ==========

// SaveActivity 追加邮件活动事件。
func (s *Store) SaveActivity(activity *domain.EmailActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *activity
	s.activities = append(s.activities, &cp)
	return nil
}

// ListActivitiesByEmail 返回邮件的活动事件，按时间降序。
func (s *Store) ListActivitiesByEmail(emailID string, limit int) ([]domain.EmailActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.EmailActivity, 0)
	for _, a := range s.activities {
		if a.EmailID == emailID {
			result = append(result, *a)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	return truncateActivities(result, limit), nil
}

// ListRecentActivities 返回用户所有邮件的最近活动，按时间降序。
func (s *Store) ListRecentActivities(userID string, limit int) ([]domain.EmailActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.EmailActivity, 0)
	for _, a := range s.activities {
		email, ok := s.emails[a.EmailID]
		if !ok || email.UserID != userID {
			continue
		}
		result = append(result, *a)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	return truncateActivities(result, limit), nil
}

// CountOpenedEmails 统计用户被打开过的邮件数（按邮件去重）。
func (s *Store) CountOpenedEmails(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opened := make(map[string]struct{})
	for _, a := range s.activities {
		if a.Type != domain.ActivityOpen {
			continue
		}
		email, ok := s.emails[a.EmailID]
		if !ok || email.UserID != userID {
			continue
		}
		opened[a.EmailID] = struct{}{}
	}
	return len(opened), nil
}

func truncateActivities(list []domain.EmailActivity, limit int) []domain.EmailActivity {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

// ========== User Repository ==========

// CreateUser 创建用户，用户名唯一。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return domain.ErrValidation
	}

	cp := *user
	s.users[user.ID] = &cp
	s.byUsername[user.Username] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// GetUserByUsername 根据用户名获取用户。
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// UpdateUser 覆盖保存用户。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.users[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if old.Username != user.Username {
		delete(s.byUsername, old.Username)
		s.byUsername[user.Username] = user.ID
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// UpdateLastLogin 更新最近登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now
	return nil
}

// ========== 通用 ==========

// Close 关闭存储，内存实现为空操作。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查，内存实现恒为健康。
func (s *Store) Health() error {
	return nil
}
