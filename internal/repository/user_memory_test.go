package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-auth/internal/model"
)

func newUser(handle, email string, role model.Role) *model.User {
	return &model.User{Username: handle, Email: email, PasswordHash: "x", Role: role}
}

func TestMemoryUserStore_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	u := newUser("ana", "Ana@X.com", model.RoleCustomer)
	require.NoError(t, s.Insert(ctx, u))
	require.NotEmpty(t, u.ID)
	assert.Equal(t, "ana@x.com", u.Email)

	got, err := s.FindByHandleOrEmail(ctx, "ana", "")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = s.FindByHandleOrEmail(ctx, "", "ANA@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.FindByHandleOrEmail(ctx, "", "")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)

	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserStore_Uniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()
	require.NoError(t, s.Insert(ctx, newUser("ana", "ana@x.com", model.RoleCustomer)))

	assert.ErrorIs(t, s.Insert(ctx, newUser("ana", "other@x.com", model.RoleCustomer)), ErrDuplicate)
	assert.ErrorIs(t, s.Insert(ctx, newUser("bob", "ANA@x.com", model.RoleCustomer)), ErrDuplicate)
	assert.Equal(t, 1, s.Len())

	bob := newUser("bob", "bob@x.com", model.RoleCustomer)
	require.NoError(t, s.Insert(ctx, bob))
	taken := "ana@x.com"
	_, err := s.UpdateByID(ctx, bob.ID, model.UserPatch{Email: &taken})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryUserStore_ConcurrentSameHandle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Insert(ctx, newUser("ana", fmt.Sprintf("ana%d@x.com", i), model.RoleCustomer))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicate)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryUserStore_ExistsByRoleUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	exists, err := s.ExistsByRole(ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, exists)

	u := newUser("root", "root@x.com", model.RoleCustomer)
	require.NoError(t, s.Insert(ctx, u))

	admin := model.RoleAdmin
	verified := true
	updated, err := s.UpdateByID(ctx, u.ID, model.UserPatch{Role: &admin, Verified: &verified})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, updated.Role)
	assert.True(t, updated.Verified)

	exists, err = s.ExistsByRole(ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, exists)

	deleted, err := s.DeleteByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, deleted.ID)

	_, err = s.DeleteByID(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.UpdateByID(ctx, u.ID, model.UserPatch{Verified: &verified})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMapMySQLError(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ana' for key 'username'"}
	assert.ErrorIs(t, mapMySQLError(fmt.Errorf("exec: %w", dup)), ErrDuplicate)

	other := &mysql.MySQLError{Number: 1045, Message: "Access denied"}
	assert.Equal(t, other, mapMySQLError(other))
}
