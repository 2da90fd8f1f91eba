package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/repositories/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS actions (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	timestamp BIGINT NOT NULL,
	player_id INTEGER NOT NULL,
	side TEXT NOT NULL,
	action TEXT NOT NULL,
	hit BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS actions_session_idx ON actions (session_id, id);
CREATE TABLE IF NOT EXISTS snapshots (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	timestamp BIGINT NOT NULL,
	local_state JSONB NOT NULL,
	remote_state JSONB NOT NULL,
	local_score INTEGER NOT NULL,
	remote_score INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_session_idx ON snapshots (session_id, id);
`

// PostgresRepository keeps a single connection; lock serializes its use
// between the match log worker and API readers.
type PostgresRepository struct {
	lock sync.Mutex
	conn *pgx.Conn
}

// NewPostgresRepository connects and creates the schema.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := connectDb(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, postgresSchema); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to create schema: %v", err)
	}
	return &PostgresRepository{
		conn: conn,
	}, nil
}

func connectDb(ctx context.Context, connStr string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return conn, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) SaveAction(ctx context.Context, action *models.ActionRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	q := `
	INSERT INTO actions (session_id, timestamp, player_id, side, action, hit)
	VALUES ($1, $2, $3, $4, $5, $6) RETURNING id;
	`
	err := r.conn.QueryRow(ctx, q, action.SessionID, action.Timestamp, int(action.PlayerID), action.Side, action.Action, action.Hit).Scan(&action.ID)
	if err != nil {
		return fmt.Errorf("failed to insert action: %v", err)
	}
	return nil
}

func (r *PostgresRepository) SaveSnapshot(ctx context.Context, snapshot *models.SnapshotRecord) error {
	local, remote, err := encodeStates(snapshot)
	if err != nil {
		return err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	q := `
	INSERT INTO snapshots (session_id, timestamp, local_state, remote_state, local_score, remote_score)
	VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err = r.conn.Exec(ctx, q, snapshot.SessionID, snapshot.Timestamp, local, remote, snapshot.LocalScore, snapshot.RemoteScore)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %v", err)
	}
	return nil
}

func (r *PostgresRepository) ListActions(ctx context.Context, sessionID string, limit int) ([]*models.ActionRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	q := `
	SELECT id, session_id, timestamp, player_id, side, action, hit
	FROM actions WHERE session_id = $1 ORDER BY id DESC LIMIT $2;
	`
	rows, err := r.conn.Query(ctx, q, sessionID, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %v", err)
	}
	defer rows.Close()

	actions := make([]*models.ActionRecord, 0)
	for rows.Next() {
		a := &models.ActionRecord{}
		var playerID int32
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Timestamp, &playerID, &a.Side, &a.Action, &a.Hit); err != nil {
			return nil, fmt.Errorf("failed to scan action: %v", err)
		}
		a.PlayerID = types.PlayerID(playerID)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read actions: %v", err)
	}
	return actions, nil
}

func (r *PostgresRepository) LatestSnapshot(ctx context.Context, sessionID string) (*models.SnapshotRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	q := `
	SELECT session_id, timestamp, local_state::text, remote_state::text, local_score, remote_score
	FROM snapshots WHERE session_id = $1 ORDER BY id DESC LIMIT 1;
	`
	s := &models.SnapshotRecord{}
	var local, remote string
	err := r.conn.QueryRow(ctx, q, sessionID).Scan(&s.SessionID, &s.Timestamp, &local, &remote, &s.LocalScore, &s.RemoteScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan snapshot: %v", err)
	}
	if err := decodeStates(s, local, remote); err != nil {
		return nil, err
	}
	return s, nil
}
