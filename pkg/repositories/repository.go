package repositories

import (
	"context"
	"strings"

	"github.com/cbodonnell/duelsync/pkg/repositories/models"
)

// DefaultListLimit is used by ListActions when limit is zero or less.
const DefaultListLimit = 100

// Repository stores the match log. It is write-mostly; nothing in it is
// ever read back into a session.
type Repository interface {
	Close(ctx context.Context) error
	SaveAction(ctx context.Context, action *models.ActionRecord) error
	SaveSnapshot(ctx context.Context, snapshot *models.SnapshotRecord) error
	// ListActions returns the most recent actions of a session, newest first.
	ListActions(ctx context.Context, sessionID string, limit int) ([]*models.ActionRecord, error)
	// LatestSnapshot returns ErrNotFound if the session has no snapshot.
	LatestSnapshot(ctx context.Context, sessionID string) (*models.SnapshotRecord, error)
}

// NewRepository opens the repository for url: sqlite://<path> or a
// postgres:// or postgresql:// connection string.
func NewRepository(ctx context.Context, url string) (Repository, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return NewSQLiteRepository(ctx, strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgresRepository(ctx, url)
	}
	return nil, &ErrUnsupportedURL{URL: url}
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
