package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/repositories/models"
)

func newTestSQLite(t *testing.T) Repository {
	ctx := context.Background()
	repo, err := NewRepository(ctx, "sqlite://"+filepath.Join(t.TempDir(), "matchlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(ctx) })
	return repo
}

func TestSQLiteRepository_Actions(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	for i, action := range []string{"gun", "bomb", "shield"} {
		record := &models.ActionRecord{
			SessionID: "session-a",
			Timestamp: int64(1000 + i),
			PlayerID:  types.PlayerTwo,
			Side:      "remote",
			Action:    action,
			Hit:       i%2 == 0,
		}
		require.NoError(t, repo.SaveAction(ctx, record))
		assert.NotZero(t, record.ID)
	}
	require.NoError(t, repo.SaveAction(ctx, &models.ActionRecord{SessionID: "session-b", Action: "gun", Side: "local", PlayerID: 1}))

	actions, err := repo.ListActions(ctx, "session-a", 2)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "shield", actions[0].Action)
	assert.True(t, actions[0].Hit)
	assert.Equal(t, "bomb", actions[1].Action)
	assert.Equal(t, types.PlayerTwo, actions[1].PlayerID)

	all, err := repo.ListActions(ctx, "session-a", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := repo.ListActions(ctx, "session-c", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteRepository_Snapshots(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	_, err := repo.LatestSnapshot(ctx, "session-a")
	assert.True(t, IsNotFound(err))

	first := &models.SnapshotRecord{SessionID: "session-a", Timestamp: 1, Local: types.NewPlayerState(), Remote: types.NewPlayerState()}
	second := &models.SnapshotRecord{
		SessionID:   "session-a",
		Timestamp:   2,
		Local:       types.PlayerState{Health: 80, Bullets: 4, LoggedIn: true},
		Remote:      types.PlayerState{Health: 95, Deaths: 1},
		LocalScore:  1,
		RemoteScore: 0,
	}
	require.NoError(t, repo.SaveSnapshot(ctx, first))
	require.NoError(t, repo.SaveSnapshot(ctx, second))

	latest, err := repo.LatestSnapshot(ctx, "session-a")
	require.NoError(t, err)
	assert.Equal(t, second, latest)
}

func TestNewRepository_UnsupportedURL(t *testing.T) {
	_, err := NewRepository(context.Background(), "mysql://localhost/db")
	require.Error(t, err)
	_, ok := err.(*ErrUnsupportedURL)
	assert.True(t, ok)
}
