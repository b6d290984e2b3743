package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/fnadesk/internal/model"
)

// PostgresInquiryRepo はPostgreSQLを使用した面談申請リポジトリ。
type PostgresInquiryRepo struct {
	db *sql.DB
}

// NewPostgresInquiryRepo はPostgresInquiryRepoを生成する。
func NewPostgresInquiryRepo(db *sql.DB) *PostgresInquiryRepo {
	return &PostgresInquiryRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInquiry(s rowScanner) (*model.Inquiry, error) {
	inquiry := &model.Inquiry{}
	var formData []byte
	var status string
	if err := s.Scan(&inquiry.ID, &formData, &inquiry.RequestedTime, &status, &inquiry.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(formData, &inquiry.FormData); err != nil {
		return nil, fmt.Errorf("failed to decode form_data: %w", err)
	}
	inquiry.Status = model.InquiryStatus(status)
	return inquiry, nil
}

// Create は申請を保存する。
func (r *PostgresInquiryRepo) Create(ctx context.Context, inquiry *model.Inquiry) error {
	formData, err := json.Marshal(inquiry.FormData)
	if err != nil {
		return fmt.Errorf("failed to encode form_data: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO inquiries (id, form_data, requested_time, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		inquiry.ID, formData, inquiry.RequestedTime, string(inquiry.Status), inquiry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create inquiry: %w", err)
	}
	return nil
}

// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
func (r *PostgresInquiryRepo) FindByID(ctx context.Context, id string) (*model.Inquiry, error) {
	inquiry, err := scanInquiry(r.db.QueryRowContext(ctx,
		`SELECT id, form_data, requested_time, status, created_at
		 FROM inquiries WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find inquiry: %w", err)
	}
	return inquiry, nil
}

// ListPending はpending状態の申請を作成日時の新しい順に返す。
func (r *PostgresInquiryRepo) ListPending(ctx context.Context) ([]*model.Inquiry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, form_data, requested_time, status, created_at
		 FROM inquiries
		 WHERE status = 'pending'
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending inquiries: %w", err)
	}
	defer rows.Close()

	var inquiries []*model.Inquiry
	for rows.Next() {
		inquiry, err := scanInquiry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inquiry: %w", err)
		}
		inquiries = append(inquiries, inquiry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inquiries: %w", err)
	}
	return inquiries, nil
}

// compile-time interface check
var _ InquiryRepository = (*PostgresInquiryRepo)(nil)
