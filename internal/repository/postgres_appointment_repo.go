package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/fnadesk/internal/model"
)

// PostgreSQLのエラーコード
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// PostgresAppointmentRepo はPostgreSQLを使用した面談リポジトリ。
type PostgresAppointmentRepo struct {
	db *sql.DB
}

// NewPostgresAppointmentRepo はPostgresAppointmentRepoを生成する。
func NewPostgresAppointmentRepo(db *sql.DB) *PostgresAppointmentRepo {
	return &PostgresAppointmentRepo{db: db}
}

const appointmentColumns = `id, client_id, consultant_id, COALESCE(inquiry_id::text, ''), start_time, end_time, status, meeting_link, created_at`

func scanAppointments(rows *sql.Rows) ([]*model.Appointment, error) {
	defer rows.Close()

	var appointments []*model.Appointment
	for rows.Next() {
		a := &model.Appointment{}
		if err := rows.Scan(
			&a.ID, &a.ClientID, &a.ConsultantID, &a.InquiryID,
			&a.StartTime, &a.EndTime, &a.Status, &a.MeetingLink, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return appointments, nil
}

// ListOverlapping は顧問の面談のうち [start, end] と端点を含めて重なるものを返す。
func (r *PostgresAppointmentRepo) ListOverlapping(ctx context.Context, consultantID string, start, end time.Time) ([]*model.Appointment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments
		 WHERE consultant_id = $1 AND start_time <= $3 AND end_time >= $2
		 ORDER BY start_time`,
		consultantID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping appointments: %w", err)
	}
	return scanAppointments(rows)
}

// ListByUser は顧客または顧問として参加する面談を開始日時順に返す。
func (r *PostgresAppointmentRepo) ListByUser(ctx context.Context, userID string) ([]*model.Appointment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments
		 WHERE client_id = $1 OR consultant_id = $1
		 ORDER BY start_time`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return scanAppointments(rows)
}

// HasClient は顧問と顧客の間に面談が存在するかを返す。
func (r *PostgresAppointmentRepo) HasClient(ctx context.Context, consultantID, clientID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE consultant_id = $1 AND client_id = $2)`,
		consultantID, clientID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check consultant client: %w", err)
	}
	return exists, nil
}

// Book は顧客アカウント作成・面談作成・申請のclaimedへの更新を1トランザクションで行う。
// 時間帯の重複は排他制約、申請の二重受付はstatus='pending'条件付きUPDATEで検出する。
func (r *PostgresAppointmentRepo) Book(ctx context.Context, booking *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	client := booking.Client
	appt := booking.Appointment

	// 顧客アカウント（メール確認済み）を作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, password_hash, email_confirmed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		client.ID, client.Email, client.FullName, client.PasswordHash,
		client.EmailConfirmedAt, client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		return mapBookingError("failed to insert client user", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`,
		client.ID, string(model.RoleClient),
	)
	if err != nil {
		return fmt.Errorf("failed to insert client role: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, full_name, email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		client.ID, client.FullName, client.Email, client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert client profile: %w", err)
	}

	// 面談を作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO appointments (id, client_id, consultant_id, inquiry_id, start_time, end_time, status, meeting_link, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		appt.ID, appt.ClientID, appt.ConsultantID, appt.InquiryID,
		appt.StartTime, appt.EndTime, appt.Status, appt.MeetingLink, appt.CreatedAt,
	)
	if err != nil {
		return mapBookingError("failed to insert appointment", err)
	}

	// 申請をclaimedに更新（pendingのものだけ）
	result, err := tx.ExecContext(ctx,
		`UPDATE inquiries SET status = 'claimed' WHERE id = $1 AND status = 'pending'`,
		booking.InquiryID,
	)
	if err != nil {
		return fmt.Errorf("failed to claim inquiry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrInquiryClaimed
	}

	if err := tx.Commit(); err != nil {
		return mapBookingError("failed to commit transaction", err)
	}

	return nil
}

// mapBookingError はPostgreSQLの制約違反を予約の競合エラーに変換する。
func mapBookingError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgExclusionViolation:
			return ErrSlotTaken
		case pgUniqueViolation:
			if pqErr.Table == "users" {
				return ErrEmailTaken
			}
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// compile-time interface check
var _ AppointmentRepository = (*PostgresAppointmentRepo)(nil)
