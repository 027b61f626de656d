package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailboard/backend/internal/domain"
)

// RecipientService 管理收件人与收件人列表
type RecipientService struct {
	store  domain.Store
	logger *zap.Logger
}

// NewRecipientService 创建收件人服务
func NewRecipientService(store domain.Store, logger *zap.Logger) *RecipientService {
	return &RecipientService{store: store, logger: logger}
}

// CreateRecipientInput 创建收件人的入参
type CreateRecipientInput struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	ListID string `json:"listId"`
}

// CreateRecipient 创建收件人，可同时挂到一个列表
func (s *RecipientService) CreateRecipient(userID string, input *CreateRecipientInput) (*domain.Recipient, error) {
	addr := strings.ToLower(strings.TrimSpace(input.Email))
	if err := domain.ValidateAddress(addr); err != nil {
		return nil, domain.ValidationError("email: %v", err)
	}

	if input.ListID != "" {
		if _, err := s.getOwnedList(userID, input.ListID); err != nil {
			return nil, err
		}
	}

	recipient := &domain.Recipient{
		ID:        uuid.New().String(),
		UserID:    userID,
		Email:     addr,
		Name:      strings.TrimSpace(input.Name),
		ListID:    input.ListID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveRecipient(recipient); err != nil {
		return nil, err
	}

	s.logger.Info("recipient created",
		zap.String("recipientId", recipient.ID),
		zap.String("userId", userID))
	return recipient, nil
}

// ListRecipients 查询用户的收件人，listID 非空时仅返回该列表的成员
func (s *RecipientService) ListRecipients(userID, listID string) ([]domain.Recipient, error) {
	if listID != "" {
		if _, err := s.getOwnedList(userID, listID); err != nil {
			return nil, err
		}
	}
	return s.store.ListRecipientsByUser(userID, listID)
}

// DeleteRecipient 删除收件人
func (s *RecipientService) DeleteRecipient(userID, id string) error {
	recipient, err := s.store.GetRecipient(id)
	if err != nil {
		return err
	}
	if recipient.UserID != userID {
		return domain.ErrForbidden
	}
	return s.store.DeleteRecipient(id)
}

// CreateListInput 创建收件人列表的入参
type CreateListInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateList 创建收件人列表
func (s *RecipientService) CreateList(userID string, input *CreateListInput) (*domain.RecipientList, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.ValidationError("list name is required")
	}
	if len(name) > 100 {
		return nil, domain.ValidationError("list name too long (max 100 chars)")
	}

	list := &domain.RecipientList{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveRecipientList(list); err != nil {
		return nil, err
	}

	s.logger.Info("recipient list created",
		zap.String("listId", list.ID),
		zap.String("userId", userID))
	return list, nil
}

// ListLists 查询用户的收件人列表
func (s *RecipientService) ListLists(userID string) ([]domain.RecipientList, error) {
	return s.store.ListRecipientLists(userID)
}

// DeleteList 删除收件人列表
//
// 列表成员不随列表删除，仅解除归属；引用该列表的草稿在投递时会因列表
// 不存在而校验失败。
func (s *RecipientService) DeleteList(userID, id string) error {
	if _, err := s.getOwnedList(userID, id); err != nil {
		return err
	}
	return s.store.DeleteRecipientList(id)
}

// getOwnedList 取出列表并校验归属
func (s *RecipientService) getOwnedList(userID, listID string) (*domain.RecipientList, error) {
	list, err := s.store.GetRecipientList(listID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ValidationError("recipient list %s not found", listID)
		}
		return nil, err
	}
	if list.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return list, nil
}
