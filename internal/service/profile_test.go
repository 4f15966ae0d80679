package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
)

func TestProfileService_Get(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "me", "me")
	seedUser(t, env.store, "them", "them")

	view, err := env.profiles.Get(ctx, "me", "them")
	require.NoError(t, err)
	assert.False(t, view.IsFollowing)

	_, err = env.profiles.ToggleFollow(ctx, "me", "them")
	require.NoError(t, err)
	env.notifier.Wait()

	view, err = env.profiles.Get(ctx, "me", "them")
	require.NoError(t, err)
	assert.True(t, view.IsFollowing)
	assert.EqualValues(t, 1, view.FollowerCount)

	_, err = env.profiles.Get(ctx, "", "nobody")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestProfileService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "me", "old")
	env.profiles.clock = fixedClock(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))

	view, err := env.profiles.Update(ctx, "me", "  新しい名前 ", " よろしく ")
	require.NoError(t, err)
	assert.Equal(t, "新しい名前", view.Username)
	assert.Equal(t, "よろしく", view.Bio)

	stored := getUser(t, env.store, "me")
	assert.Equal(t, "新しい名前", stored.Username)
	assert.True(t, stored.UpdatedAt.Equal(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)))

	// A first edit creates the profile.
	view, err = env.profiles.Update(ctx, "fresh", "はじめまして", "")
	require.NoError(t, err)
	assert.Equal(t, "fresh", view.ID)

	_, err = env.profiles.Update(ctx, "me", " ", "")
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
	_, err = env.profiles.Update(ctx, "me", "name", strings.Repeat("字", 161))
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
	_, err = env.profiles.Update(ctx, "", "name", "")
	assert.Equal(t, domainerrors.CodeUnauthorized, domainerrors.CodeOf(err))
}

func TestProfileService_FollowLists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, uid := range []string{"me", "a", "b", "c"} {
		seedUser(t, env.store, uid, uid)
	}

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, target := range []string{"a", "b", "c"} {
		env.ledger.clock = fixedClock(base.Add(time.Duration(i) * time.Minute))
		_, err := env.profiles.ToggleFollow(ctx, "me", target)
		require.NoError(t, err)
	}
	env.ledger.clock = fixedClock(base.Add(time.Hour))
	_, err := env.profiles.ToggleFollow(ctx, "a", "me")
	require.NoError(t, err)
	env.notifier.Wait()

	following, err := env.profiles.Following(ctx, "me")
	require.NoError(t, err)
	var ids []string
	for _, u := range following {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)

	followers, err := env.profiles.Followers(ctx, "me")
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "a", followers[0].ID)

	assert.EqualValues(t, 3, getUser(t, env.store, "me").FollowingCount)
	assert.EqualValues(t, 1, getUser(t, env.store, "me").FollowerCount)
}
