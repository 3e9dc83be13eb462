package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/C4T-BuT-S4D/reelbridge/internal/apperr"
	"github.com/C4T-BuT-S4D/reelbridge/internal/models"
	"github.com/C4T-BuT-S4D/reelbridge/internal/storage"
	"github.com/C4T-BuT-S4D/reelbridge/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateUser(t *testing.T) {
	ctx := context.Background()
	s := storagetest.New(t)

	_, err := s.GetUser(ctx, 100)
	require.ErrorIs(t, err, storage.ErrNotFound)

	u, err := s.GetOrCreateUser(ctx, 100)
	require.NoError(t, err)
	require.EqualValues(t, 100, u.TelegramID)
	require.False(t, u.Banned)
	require.False(t, u.IsActivated())
	require.False(t, u.IsPending())
	require.False(t, u.JoinedAt.IsZero())

	again, err := s.GetOrCreateUser(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, u.JoinedAt.Unix(), again.JoinedAt.Unix())
}

func TestRequestActivationCode(t *testing.T) {
	ctx := context.Background()
	s := storagetest.New(t)

	code, err := s.RequestActivationCode(ctx, 1, "auth:0:first")
	require.NoError(t, err)
	require.Equal(t, "auth:0:first", code)

	code, err = s.RequestActivationCode(ctx, 1, "auth:0:second")
	require.NoError(t, err)
	require.Equal(t, "auth:0:first", code)

	linked, err := s.LinkExternalIdentity(ctx, 1, "auth:0:first", "alice")
	require.NoError(t, err)
	require.True(t, linked)

	_, err = s.RequestActivationCode(ctx, 1, "auth:0:third")
	require.ErrorIs(t, err, apperr.ErrAlreadyActivated)

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "alice", *u.LinkedIdentity)
	require.Nil(t, u.ActivationCode)
}

func TestLinkExternalIdentityRequiresPendingCode(t *testing.T) {
	ctx := context.Background()
	s := storagetest.New(t)

	_, err := s.RequestActivationCode(ctx, 7, "auth:0:abc")
	require.NoError(t, err)

	linked, err := s.LinkExternalIdentity(ctx, 7, "auth:0:other", "bob")
	require.NoError(t, err)
	require.False(t, linked)

	linked, err = s.LinkExternalIdentity(ctx, 7, "auth:0:abc", "bob")
	require.NoError(t, err)
	require.True(t, linked)

	linked, err = s.LinkExternalIdentity(ctx, 7, "auth:0:abc", "mallory")
	require.NoError(t, err)
	require.False(t, linked)

	u, err := s.GetUser(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "bob", *u.LinkedIdentity)
}

func TestFindUsersByActivationCode(t *testing.T) {
	ctx := context.Background()
	s := storagetest.New(t)

	users, err := s.FindUsersByActivationCode(ctx, "auth:0:none")
	require.NoError(t, err)
	require.Empty(t, users)

	for _, id := range []int64{1, 2, 3} {
		_, err := s.RequestActivationCode(ctx, id, "auth:0:same")
		require.NoError(t, err)
	}

	users, err = s.FindUsersByActivationCode(ctx, "auth:0:same")
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestUpsertLinkedUser(t *testing.T) {
	ctx := context.Background()
	s := storagetest.New(t)

	_, err := s.RequestActivationCode(ctx, 5, "auth:0:pending")
	require.NoError(t, err)
	found, err := s.SetBanned(ctx, 5, true)
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, s.UpsertLinkedUser(ctx, 5, "carol"))
	u, err := s.GetUser(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, "carol", *u.LinkedIdentity)
	require.Nil(t, u.ActivationCode)
	require.False(t, u.Banned)

	require.NoError(t, s.UpsertLinkedUser(ctx, 6, "dave"))
	u, err = s.GetUser(ctx, 6)
	require.NoError(t, err)
	require.True(t, u.IsActivated())
}

func TestBanAndDelete(t *testing.T) {
	ctx := context.Background()
	s := storagetest.New(t)

	found, err := s.SetBanned(ctx, 42, true)
	require.NoError(t, err)
	require.False(t, found)

	_, err = s.GetOrCreateUser(ctx, 42)
	require.NoError(t, err)

	found, err = s.SetBanned(ctx, 42, true)
	require.NoError(t, err)
	require.True(t, found)
	u, err := s.GetUser(ctx, 42)
	require.NoError(t, err)
	require.True(t, u.Banned)

	found, err = s.SetBanned(ctx, 42, false)
	require.NoError(t, err)
	require.True(t, found)

	removed, err := s.DeleteUser(ctx, 42)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.DeleteUser(ctx, 42)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestHasDownloadSince(t *testing.T) {
	ctx := context.Background()
	s := storagetest.New(t)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.AddDownload(ctx, &models.Download{
		Link:         "https://www.instagram.com/reel/abc/",
		TelegramID:   555,
		DownloadedAt: at,
		FileSize:     1024,
	}))

	for _, tc := range []struct {
		name  string
		link  string
		user  int64
		since time.Time
		want  bool
	}{
		{"inside window", "https://www.instagram.com/reel/abc/", 555, at.Add(-time.Minute), true},
		{"boundary", "https://www.instagram.com/reel/abc/", 555, at, true},
		{"outside window", "https://www.instagram.com/reel/abc/", 555, at.Add(time.Minute), false},
		{"other user", "https://www.instagram.com/reel/abc/", 556, at.Add(-time.Minute), false},
		{"other link", "https://www.instagram.com/reel/xyz/", 555, at.Add(-time.Minute), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.HasDownloadSince(ctx, tc.link, tc.user, tc.since)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestStatsAndListUsers(t *testing.T) {
	ctx := context.Background()
	s := storagetest.New(t)

	for _, id := range []int64{3, 1, 2} {
		_, err := s.GetOrCreateUser(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, s.AddDownload(ctx, &models.Download{Link: "l", TelegramID: 1, FileSize: 10}))

	users, downloads, err := s.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, users)
	require.EqualValues(t, 1, downloads)

	ids, err := s.ListUserIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, ids)
}

func TestGlobalState(t *testing.T) {
	ctx := context.Background()
	s := storagetest.New(t)

	require.NoError(t, s.Ping(ctx))

	state, err := s.GetOrCreateGlobalState(ctx)
	require.NoError(t, err)
	require.Zero(t, state.LastUpdateID)

	require.NoError(t, s.UpdateLastUpdate(ctx, 10))
	require.NoError(t, s.UpdateLastUpdate(ctx, 5))

	state, err = s.GetOrCreateGlobalState(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, state.LastUpdateID)
}

func TestFindUsersByLinkedIdentity(t *testing.T) {
	ctx := context.Background()
	s := storagetest.New(t)

	require.NoError(t, s.UpsertLinkedUser(ctx, 2, "Alice"))
	require.NoError(t, s.UpsertLinkedUser(ctx, 1, "alice"))
	require.NoError(t, s.UpsertLinkedUser(ctx, 3, "bob"))
	_, err := s.GetOrCreateUser(ctx, 4)
	require.NoError(t, err)

	users, err := s.FindUsersByLinkedIdentity(ctx, "ALICE")
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.EqualValues(t, 1, users[0].TelegramID)
	require.EqualValues(t, 2, users[1].TelegramID)

	users, err = s.FindUsersByLinkedIdentity(ctx, "carol")
	require.NoError(t, err)
	require.Empty(t, users)
}
