package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailboard/backend/internal/service"
)

// RecipientHandler 处理收件人与收件人列表相关的 HTTP 请求
type RecipientHandler struct {
	recipients *service.RecipientService
	log        *zap.Logger
}

// NewRecipientHandler 创建收件人处理器
func NewRecipientHandler(recipients *service.RecipientService, log *zap.Logger) *RecipientHandler {
	return &RecipientHandler{
		recipients: recipients,
		log:        log,
	}
}

// Create 创建收件人
//
// POST /api/recipients
func (h *RecipientHandler) Create(c *gin.Context) {
	var input service.CreateRecipientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	recipient, err := h.recipients.CreateRecipient(currentUserID(c), &input)
	if err != nil {
		RespondError(c, err, MsgRecipientCreateFailed)
		return
	}

	Created(c, recipient)
}

// List 查询收件人，支持 ?listId= 过滤
//
// GET /api/recipients
func (h *RecipientHandler) List(c *gin.Context) {
	recipients, err := h.recipients.ListRecipients(currentUserID(c), c.Query("listId"))
	if err != nil {
		RespondError(c, err, MsgRecipientListFailed)
		return
	}

	Success(c, recipients)
}

// Delete 删除收件人
//
// DELETE /api/recipients/:id
func (h *RecipientHandler) Delete(c *gin.Context) {
	if err := h.recipients.DeleteRecipient(currentUserID(c), c.Param("id")); err != nil {
		RespondError(c, err, MsgRecipientDeleteFailed)
		return
	}

	NoContent(c)
}

// CreateList 创建收件人列表
//
// POST /api/recipient-lists
func (h *RecipientHandler) CreateList(c *gin.Context) {
	var input service.CreateListInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	list, err := h.recipients.CreateList(currentUserID(c), &input)
	if err != nil {
		RespondError(c, err, MsgListCreateFailed)
		return
	}

	Created(c, list)
}

// ListLists 查询收件人列表
//
// GET /api/recipient-lists
func (h *RecipientHandler) ListLists(c *gin.Context) {
	lists, err := h.recipients.ListLists(currentUserID(c))
	if err != nil {
		RespondError(c, err, MsgRecipientListFailed)
		return
	}

	Success(c, lists)
}

// DeleteList 删除收件人列表，成员保留但解除归属
//
// DELETE /api/recipient-lists/:id
func (h *RecipientHandler) DeleteList(c *gin.Context) {
	if err := h.recipients.DeleteList(currentUserID(c), c.Param("id")); err != nil {
		RespondError(c, err, MsgListDeleteFailed)
		return
	}

	NoContent(c)
}
