package model

import "time"

// AppointmentDuration は面談1回あたりの時間。
const AppointmentDuration = time.Hour

// AppointmentStatusConfirmed は確定済みの面談を表す。
const AppointmentStatusConfirmed = "confirmed"

// Appointment は顧問と顧客の確定済み面談を表す。
// 同一顧問の面談は [StartTime, EndTime) が重複してはならない。
type Appointment struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	ConsultantID string    `json:"consultant_id"`
	InquiryID    string    `json:"inquiry_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
	MeetingLink  string    `json:"google_meet_link"`
	CreatedAt    time.Time `json:"created_at"`
}

// Booking は面談受付時に1トランザクションで作成するデータ一式。
// 顧客アカウント、面談、申請ステータス更新をまとめて扱う。
type Booking struct {
	Client      *User
	Appointment *Appointment
	InquiryID   string
}
