package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/fnadesk/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
// google_tokensがNULLの場合はGoogleTokensをnilとする。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	profile := &model.Profile{}
	var tokens []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, email, google_tokens, created_at, updated_at
		 FROM profiles WHERE id = $1`,
		id,
	).Scan(&profile.ID, &profile.FullName, &profile.Email, &tokens, &profile.CreatedAt, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	if len(tokens) > 0 && string(tokens) != "null" {
		var gt model.GoogleTokens
		if err := json.Unmarshal(tokens, &gt); err != nil {
			return nil, fmt.Errorf("failed to decode google tokens: %w", err)
		}
		profile.GoogleTokens = &gt
	}

	return profile, nil
}

// SaveGoogleTokens は顧問のGoogle認可トークンを保存する。
func (r *PostgresProfileRepo) SaveGoogleTokens(ctx context.Context, id string, tokens *model.GoogleTokens) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to encode google tokens: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET google_tokens = $2, updated_at = now() WHERE id = $1`,
		id, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save google tokens: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
