package model

import "time"

// InquiryStatus は申請の処理状態を表す。
type InquiryStatus string

const (
	// InquiryStatusPending は顧問の受付待ち状態。
	InquiryStatusPending InquiryStatus = "pending"
	// InquiryStatusClaimed は顧問が受け付けた状態。
	InquiryStatusClaimed InquiryStatus = "claimed"
)

// InquiryForm は見込み顧客が送信する申請フォームの内容。
// financial_goalsは優先順位順に5件。
type InquiryForm struct {
	Name           string   `json:"name"`
	Gender         string   `json:"gender"`
	BirthDate      string   `json:"birth_date"`
	Email          string   `json:"email"`
	HasChildren    bool     `json:"has_children"`
	HasInsurance   bool     `json:"has_insurance"`
	HasMortgage    bool     `json:"has_mortgage"`
	HasInvestment  bool     `json:"has_investment"`
	FinancialGoals []string `json:"financial_goals"`
}

// Inquiry は顧問の受付を待つ面談申請を表す。
type Inquiry struct {
	ID            string
	FormData      InquiryForm
	RequestedTime time.Time
	Status        InquiryStatus
	CreatedAt     time.Time
}
