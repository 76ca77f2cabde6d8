package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessDirectory_AdminImpliesAll(t *testing.T) {
	ctx := context.Background()
	dir := newTestEnv(t).access

	require.NoError(t, dir.Grant(ctx, "admin-sub", true, []string{"s1"}, "root@example.com"))
	require.NoError(t, dir.Grant(ctx, "mgr-sub", false, []string{"s2", "s1"}, "mgr@example.com"))

	set, err := dir.AccessibleTenants(ctx, "admin-sub")
	require.NoError(t, err)
	require.True(t, set.All())
	require.True(t, set.Contains("never-registered"))

	set, err = dir.AccessibleTenants(ctx, "mgr-sub")
	require.NoError(t, err)
	require.False(t, set.All())
	require.Equal(t, []string{"s1", "s2"}, set.IDs())

	set, err = dir.AccessibleTenants(ctx, "stranger")
	require.NoError(t, err)
	require.True(t, set.IsEmpty())
}

func TestAccessDirectory_Roles(t *testing.T) {
	ctx := context.Background()
	dir := newTestEnv(t).access

	require.NoError(t, dir.Grant(ctx, "admin-sub", true, nil, ""))
	require.NoError(t, dir.Grant(ctx, "mgr-sub", false, []string{"s1"}, ""))
	require.NoError(t, dir.Grant(ctx, "empty-sub", false, nil, ""))

	for _, c := range []struct {
		subject        string
		admin, manager bool
	}{
		{"admin-sub", true, false},
		{"mgr-sub", false, true},
		{"empty-sub", false, false},
		{"stranger", false, false},
	} {
		isAdmin, err := dir.IsAdmin(ctx, c.subject)
		require.NoError(t, err)
		require.Equal(t, c.admin, isAdmin, c.subject)

		isManager, err := dir.IsManager(ctx, c.subject)
		require.NoError(t, err)
		require.Equal(t, c.manager, isManager, c.subject)
	}
}

func TestAccessDirectory_GrantOverwrites(t *testing.T) {
	ctx := context.Background()
	dir := newTestEnv(t).access

	require.NoError(t, dir.Grant(ctx, "sub", true, nil, "a@example.com"))
	require.NoError(t, dir.Grant(ctx, "sub", false, []string{"s3"}, "a@example.com"))

	set, err := dir.AccessibleTenants(ctx, "sub")
	require.NoError(t, err)
	require.Equal(t, []string{"s3"}, set.IDs())
}

func TestAccessDirectory_AddAccess(t *testing.T) {
	ctx := context.Background()
	dir := newTestEnv(t).access

	added, err := dir.AddAccess(ctx, "a", "m@example.com", "s1", false)
	require.NoError(t, err)
	require.True(t, added)

	added, err = dir.AddAccess(ctx, "b", "M@example.com", "s1", false)
	require.NoError(t, err)
	require.False(t, added, "same email already manages s1")

	added, err = dir.AddAccess(ctx, "a", "m@example.com", "s2", false)
	require.NoError(t, err)
	require.True(t, added)

	set, err := dir.AccessibleTenants(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "s2"}, set.IDs())

	added, err = dir.AddAccess(ctx, "a", "m@example.com", "s3", true)
	require.NoError(t, err)
	require.True(t, added)

	added, err = dir.AddAccess(ctx, "a", "m@example.com", "s4", false)
	require.NoError(t, err)
	require.True(t, added)

	isAdmin, err := dir.IsAdmin(ctx, "a")
	require.NoError(t, err)
	require.True(t, isAdmin, "add access never downgrades an admin")

	_, err = dir.AddAccess(ctx, "a", "m@example.com", "", false)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAccessDirectory_RevokeByEmail(t *testing.T) {
	ctx := context.Background()
	dir := newTestEnv(t).access

	require.NoError(t, dir.Grant(ctx, "admin-sub", true, nil, "x@example.com"))
	require.NoError(t, dir.Grant(ctx, "mgr-sub", false, []string{"s1"}, "x@example.com"))
	require.NoError(t, dir.Grant(ctx, "other-sub", true, nil, "y@example.com"))

	n, err := dir.RevokeByEmail(ctx, "x@example.com", true)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	isAdmin, err := dir.IsAdmin(ctx, "admin-sub")
	require.NoError(t, err)
	require.False(t, isAdmin)

	isManager, err := dir.IsManager(ctx, "mgr-sub")
	require.NoError(t, err)
	require.True(t, isManager, "manager grants survive an admin-only revoke")

	n, err = dir.RevokeByEmail(ctx, "X@example.com", false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	isAdmin, err = dir.IsAdmin(ctx, "other-sub")
	require.NoError(t, err)
	require.True(t, isAdmin)

	_, err = dir.RevokeByEmail(ctx, " ", true)
	require.ErrorIs(t, err, ErrInvalidRequest)
}
