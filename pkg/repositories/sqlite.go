package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/repositories/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	player_id INTEGER NOT NULL,
	side TEXT NOT NULL,
	action TEXT NOT NULL,
	hit BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS actions_session_idx ON actions (session_id, id);
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	local_state TEXT NOT NULL,
	remote_state TEXT NOT NULL,
	local_score INTEGER NOT NULL,
	remote_score INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_session_idx ON snapshots (session_id, id);
`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %v", err)
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveAction(ctx context.Context, action *models.ActionRecord) error {
	q := `
	INSERT INTO actions (session_id, timestamp, player_id, side, action, hit)
	VALUES (?, ?, ?, ?, ?, ?);
	`
	res, err := r.db.ExecContext(ctx, q, action.SessionID, action.Timestamp, int(action.PlayerID), action.Side, action.Action, action.Hit)
	if err != nil {
		return fmt.Errorf("failed to insert action: %v", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		action.ID = id
	}
	return nil
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snapshot *models.SnapshotRecord) error {
	local, remote, err := encodeStates(snapshot)
	if err != nil {
		return err
	}
	q := `
	INSERT INTO snapshots (session_id, timestamp, local_state, remote_state, local_score, remote_score)
	VALUES (?, ?, ?, ?, ?, ?);
	`
	_, err = r.db.ExecContext(ctx, q, snapshot.SessionID, snapshot.Timestamp, local, remote, snapshot.LocalScore, snapshot.RemoteScore)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) ListActions(ctx context.Context, sessionID string, limit int) ([]*models.ActionRecord, error) {
	q := `
	SELECT id, session_id, timestamp, player_id, side, action, hit
	FROM actions WHERE session_id = ? ORDER BY id DESC LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, sessionID, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %v", err)
	}
	defer rows.Close()

	actions := make([]*models.ActionRecord, 0)
	for rows.Next() {
		a := &models.ActionRecord{}
		var playerID int
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

func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, sessionID string) (*models.SnapshotRecord, error) {
	q := `
	SELECT session_id, timestamp, local_state, remote_state, local_score, remote_score
	FROM snapshots WHERE session_id = ? ORDER BY id DESC LIMIT 1;
	`
	s := &models.SnapshotRecord{}
	var local, remote string
	err := r.db.QueryRowContext(ctx, q, sessionID).Scan(&s.SessionID, &s.Timestamp, &local, &remote, &s.LocalScore, &s.RemoteScore)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan snapshot: %v", err)
	}
	if err := decodeStates(s, local, remote); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeStates(snapshot *models.SnapshotRecord) (string, string, error) {
	local, err := json.Marshal(snapshot.Local)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode local state: %v", err)
	}
	remote, err := json.Marshal(snapshot.Remote)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode remote state: %v", err)
	}
	return string(local), string(remote), nil
}

func decodeStates(snapshot *models.SnapshotRecord, local, remote string) error {
	if err := json.Unmarshal([]byte(local), &snapshot.Local); err != nil {
		return fmt.Errorf("failed to decode local state: %v", err)
	}
	if err := json.Unmarshal([]byte(remote), &snapshot.Remote); err != nil {
		return fmt.Errorf("failed to decode remote state: %v", err)
	}
	return nil
}
