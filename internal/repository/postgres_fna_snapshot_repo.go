package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/fnadesk/internal/model"
)

// PostgresFnaSnapshotRepo はPostgreSQLを使用したFNAスナップショットリポジトリ。
type PostgresFnaSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresFnaSnapshotRepo はPostgresFnaSnapshotRepoを生成する。
func NewPostgresFnaSnapshotRepo(db *sql.DB) *PostgresFnaSnapshotRepo {
	return &PostgresFnaSnapshotRepo{db: db}
}

// FindByClientID は顧客のスナップショットを取得する。見つからない場合はnilを返す。
func (r *PostgresFnaSnapshotRepo) FindByClientID(ctx context.Context, clientID string) (*model.FnaSnapshot, error) {
	snap := &model.FnaSnapshot{}
	var data []byte
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT client_id, data, completed_at, last_updated
		 FROM fna_snapshots WHERE client_id = $1`,
		clientID,
	).Scan(&snap.ClientID, &data, &completedAt, &snap.LastUpdated)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find fna snapshot: %w", err)
	}

	if err := json.Unmarshal(data, &snap.Data); err != nil {
		return nil, fmt.Errorf("failed to decode fna snapshot: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		snap.CompletedAt = &t
	}
	return snap, nil
}

// Upsert はclient_idをキーにスナップショットを作成または更新する。
// completed_atは一度記録されたら保持する。
func (r *PostgresFnaSnapshotRepo) Upsert(ctx context.Context, snapshot *model.FnaSnapshot) error {
	data, err := json.Marshal(snapshot.Data)
	if err != nil {
		return fmt.Errorf("failed to encode fna snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO fna_snapshots (client_id, data, completed_at, last_updated)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (client_id) DO UPDATE SET
		     data = EXCLUDED.data,
		     completed_at = COALESCE(EXCLUDED.completed_at, fna_snapshots.completed_at),
		     last_updated = EXCLUDED.last_updated`,
		snapshot.ClientID, data, snapshot.CompletedAt, snapshot.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fna snapshot: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FnaSnapshotRepository = (*PostgresFnaSnapshotRepo)(nil)
