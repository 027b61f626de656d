package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailboard/backend/internal/domain"
	"mailboard/backend/internal/storage/memory"
)

func newTestRecipientService(t *testing.T) (*RecipientService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewRecipientService(store, zap.NewNop()), store
}

func TestRecipientService_CreateRecipient(t *testing.T) {
	svc, store := newTestRecipientService(t)
	user := seedUser(t, store)

	t.Run("游离收件人", func(t *testing.T) {
		r, err := svc.CreateRecipient(user.ID, &CreateRecipientInput{
			Email: " Alice@Example.COM ", Name: "Alice",
		})
		require.NoError(t, err)
		// 地址归一化为小写并去除空白
		assert.Equal(t, "alice@example.com", r.Email)
		assert.Empty(t, r.ListID)
	})

	t.Run("挂到列表", func(t *testing.T) {
		list, err := svc.CreateList(user.ID, &CreateListInput{Name: "vip"})
		require.NoError(t, err)

		r, err := svc.CreateRecipient(user.ID, &CreateRecipientInput{
			Email: "bob@example.com", ListID: list.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, list.ID, r.ListID)
	})

	t.Run("非法地址", func(t *testing.T) {
		_, err := svc.CreateRecipient(user.ID, &CreateRecipientInput{Email: "not-an-email"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("列表不存在", func(t *testing.T) {
		_, err := svc.CreateRecipient(user.ID, &CreateRecipientInput{
			Email: "c@example.com", ListID: uuid.New().String(),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestRecipientService_ListRecipients(t *testing.T) {
	svc, store := newTestRecipientService(t)
	user := seedUser(t, store)

	list, err := svc.CreateList(user.ID, &CreateListInput{Name: "vip"})
	require.NoError(t, err)
	_, err = svc.CreateRecipient(user.ID, &CreateRecipientInput{Email: "a@example.com", ListID: list.ID})
	require.NoError(t, err)
	_, err = svc.CreateRecipient(user.ID, &CreateRecipientInput{Email: "b@example.com"})
	require.NoError(t, err)

	all, err := svc.ListRecipients(user.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	members, err := svc.ListRecipients(user.ID, list.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "a@example.com", members[0].Email)
}

func TestRecipientService_DeleteList_DetachesMembers(t *testing.T) {
	svc, store := newTestRecipientService(t)
	user := seedUser(t, store)

	list, err := svc.CreateList(user.ID, &CreateListInput{Name: "vip"})
	require.NoError(t, err)
	r, err := svc.CreateRecipient(user.ID, &CreateRecipientInput{Email: "a@example.com", ListID: list.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteList(user.ID, list.ID))

	// 成员保留但解除归属
	got, err := store.GetRecipient(r.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ListID)

	_, err = svc.ListRecipients(user.ID, list.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRecipientService_Ownership(t *testing.T) {
	svc, store := newTestRecipientService(t)
	user := seedUser(t, store)

	list, err := svc.CreateList(user.ID, &CreateListInput{Name: "vip"})
	require.NoError(t, err)
	r, err := svc.CreateRecipient(user.ID, &CreateRecipientInput{Email: "a@example.com"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteList("other-user", list.ID), domain.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteRecipient("other-user", r.ID), domain.ErrForbidden)
	_, err = svc.ListRecipients("other-user", list.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRecipientService_CreateList_Validation(t *testing.T) {
	svc, store := newTestRecipientService(t)
	user := seedUser(t, store)

	_, err := svc.CreateList(user.ID, &CreateListInput{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
