package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superchat/server/internal/domain"
)

func requireAppCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok, "expected *domain.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}

func TestCanJoin(t *testing.T) {
	store := newMemStore()
	store.addRoom(1, "General", true)
	store.addRoom(2, "Staff", false)
	access := NewAccessService(store, store)
	ctx := context.Background()

	require.NoError(t, access.CanJoin(ctx, 1, 1))

	requireAppCode(t, access.CanJoin(ctx, 1, 2), domain.ErrForbidden.Code)
	requireAppCode(t, access.CanJoin(ctx, 1, 99), domain.ErrNotFound.Code)
}

func TestCanReadRoomRequiresMembership(t *testing.T) {
	store := newMemStore()
	store.addRoom(1, "General", true)
	access := NewAccessService(store, store)
	ctx := context.Background()

	requireAppCode(t, access.CanRead(ctx, 1, Room(1)), domain.ErrForbidden.Code)

	require.NoError(t, store.AddMember(ctx, 1, 1))
	require.NoError(t, access.CanRead(ctx, 1, Room(1)))
	require.NoError(t, access.CanAppend(ctx, 1, Room(1)))
}

func TestCanReadPrivateChat(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "alice")
	store.addUser(2, "bob")
	access := NewAccessService(store, store)
	ctx := context.Background()

	chat, err := store.CreatePrivateChat(ctx, 1, 2)
	require.NoError(t, err)

	require.NoError(t, access.CanRead(ctx, 1, PrivateChat(chat.ID)))
	require.NoError(t, access.CanRead(ctx, 2, PrivateChat(chat.ID)))

	requireAppCode(t, access.CanRead(ctx, 3, PrivateChat(chat.ID)), domain.ErrForbidden.Code)
	requireAppCode(t, access.CanRead(ctx, 1, PrivateChat(99)), domain.ErrNotFound.Code)
}
