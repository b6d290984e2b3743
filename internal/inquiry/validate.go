// Package inquiry は見込み顧客の面談申請の検証と受付を提供する。
package inquiry

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/fnadesk/internal/model"
)

const (
	maxNameLength  = 100
	maxEmailLength = 255
	requiredGoals  = 5
	dateLayout     = "2006-01-02"
	slotLayout     = "15:04"
)

// IntakeGoal は申請フォームで選択できる財務目標。
type IntakeGoal struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var intakeGoals = []IntakeGoal{
	{ID: "retirement", Label: "退休規劃"},
	{ID: "children_education", Label: "子女教育"},
	{ID: "property", Label: "置產購屋"},
	{ID: "wealth_growth", Label: "財富增值"},
	{ID: "risk_protection", Label: "風險保障"},
}

// timeSlots は予約可能な開始時刻（設定タイムゾーンの現地時刻）。
var timeSlots = []string{"09:00", "10:00", "11:00", "13:00", "14:00", "15:00", "16:00", "17:00"}

// IntakeGoals は申請フォームの財務目標カタログのコピーを返す。
func IntakeGoals() []IntakeGoal {
	out := make([]IntakeGoal, len(intakeGoals))
	copy(out, intakeGoals)
	return out
}

// TimeSlots は予約可能な時刻一覧のコピーを返す。
func TimeSlots() []string {
	out := make([]string, len(timeSlots))
	copy(out, timeSlots)
	return out
}

// FormInput は申請フォームの入力値。
// 4つの質問は未回答（null）と「いいえ」を区別するためポインタで受ける。
type FormInput struct {
	Name           string   `json:"name"`
	Gender         string   `json:"gender"`
	BirthDate      string   `json:"birth_date"`
	Email          string   `json:"email"`
	HasChildren    *bool    `json:"has_children"`
	HasInsurance   *bool    `json:"has_insurance"`
	HasMortgage    *bool    `json:"has_mortgage"`
	HasInvestment  *bool    `json:"has_investment"`
	FinancialGoals []string `json:"financial_goals"`
}

// SubmitRequest は申請APIのリクエストボディ。
// 予約日時はrequested_time（RFC3339）か、appointment_dateとappointment_timeの組で指定する。
type SubmitRequest struct {
	FormData        FormInput `json:"form_data"`
	RequestedTime   string    `json:"requested_time,omitempty"`
	AppointmentDate string    `json:"appointment_date,omitempty"`
	AppointmentTime string    `json:"appointment_time,omitempty"`
}

// Validator は申請内容を検証する。日付の判定は設定タイムゾーンで行う。
type Validator struct {
	loc *time.Location
	now func() time.Time
}

// NewValidator はValidatorを生成する。
func NewValidator(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{loc: loc, now: time.Now}
}

// Validate は申請内容を検証し、正規化したフォームと予約日時を返す。
// エラーは全フィールド分を集めてまとめて返す。
func (v *Validator) Validate(req *SubmitRequest) (*model.InquiryForm, time.Time, error) {
	fields := map[string]string{}
	now := v.now().In(v.loc)
	today := civilDate(now)
	in := req.FormData

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		fields["name"] = "請輸入姓名"
	case utf8.RuneCountInString(name) > maxNameLength:
		fields["name"] = fmt.Sprintf("姓名不可超過 %d 個字元", maxNameLength)
	}

	switch in.Gender {
	case "male", "female", "other":
	default:
		fields["gender"] = "請選擇性別"
	}

	birthDate, err := v.parseDate(in.BirthDate)
	switch {
	case strings.TrimSpace(in.BirthDate) == "":
		fields["birth_date"] = "請選擇生日"
	case err != nil:
		fields["birth_date"] = "生日格式不正確"
	case birthDate.After(today):
		fields["birth_date"] = "生日不可晚於今天"
	}

	email := strings.TrimSpace(in.Email)
	switch {
	case !validEmail(email):
		fields["email"] = "請輸入有效的電子郵件地址"
	case len(email) > maxEmailLength:
		fields["email"] = fmt.Sprintf("電子郵件不可超過 %d 個字元", maxEmailLength)
	}

	qualifiers := []struct {
		key string
		val *bool
		msg string
	}{
		{"has_children", in.HasChildren, "請選擇是否有子女"},
		{"has_insurance", in.HasInsurance, "請選擇是否已有保險"},
		{"has_mortgage", in.HasMortgage, "請選擇是否有房貸"},
		{"has_investment", in.HasInvestment, "請選擇是否有投資"},
	}
	for _, q := range qualifiers {
		if q.val == nil {
			fields[q.key] = q.msg
		}
	}

	if msg := validateGoals(in.FinancialGoals); msg != "" {
		fields["financial_goals"] = msg
	}

	requested := v.resolveRequestedTime(req, today, fields)

	if len(fields) > 0 {
		return nil, time.Time{}, model.NewValidationError(fields)
	}

	form := &model.InquiryForm{
		Name:           name,
		Gender:         in.Gender,
		BirthDate:      birthDate.Format(dateLayout),
		Email:          email,
		HasChildren:    *in.HasChildren,
		HasInsurance:   *in.HasInsurance,
		HasMortgage:    *in.HasMortgage,
		HasInvestment:  *in.HasInvestment,
		FinancialGoals: append([]string(nil), in.FinancialGoals...),
	}
	return form, requested, nil
}

// resolveRequestedTime は予約日時を求め、問題があればfieldsに追記する。
// どちらの入力形式でも予約日は今日より後でなければならない。
func (v *Validator) resolveRequestedTime(req *SubmitRequest, today time.Time, fields map[string]string) time.Time {
	if req.RequestedTime != "" {
		t, err := time.Parse(time.RFC3339, req.RequestedTime)
		if err != nil {
			fields["requested_time"] = "預約時間格式不正確"
			return time.Time{}
		}
		local := t.In(v.loc)
		if !civilDate(local).After(today) {
			fields["requested_time"] = "預約日期必須晚於今天"
		} else if !onSlot(local) {
			fields["requested_time"] = "無效的預約時段"
		}
		return t
	}

	date, dateErr := v.parseDate(req.AppointmentDate)
	switch {
	case strings.TrimSpace(req.AppointmentDate) == "":
		fields["appointment_date"] = "請選擇預約日期"
	case dateErr != nil:
		fields["appointment_date"] = "預約日期格式不正確"
	case !date.After(today):
		fields["appointment_date"] = "預約日期必須晚於今天"
	}

	var slot time.Time
	switch {
	case req.AppointmentTime == "":
		fields["appointment_time"] = "請選擇預約時間"
	case !isSlot(req.AppointmentTime):
		fields["appointment_time"] = "無效的預約時段"
	default:
		slot, _ = time.Parse(slotLayout, req.AppointmentTime)
	}

	if _, bad := fields["appointment_date"]; bad {
		return time.Time{}
	}
	if _, bad := fields["appointment_time"]; bad {
		return time.Time{}
	}
	return time.Date(date.Year(), date.Month(), date.Day(), slot.Hour(), slot.Minute(), 0, 0, v.loc)
}

// parseDate は "2006-01-02" またはRFC3339の日付を設定タイムゾーンの暦日として解釈する。
func (v *Validator) parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation(dateLayout, s, v.loc); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return civilDate(t.In(v.loc)), nil
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	// 表示名付き（"Amy <a@example.com>"）は受け付けない
	return addr.Address == s && strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".")
}

func validateGoals(goals []string) string {
	if len(goals) != requiredGoals {
		return fmt.Sprintf("請依優先順序選擇 %d 項財務目標", requiredGoals)
	}
	seen := make(map[string]bool, len(goals))
	for _, g := range goals {
		if !isIntakeGoal(g) {
			return fmt.Sprintf("無效的財務目標: %s", g)
		}
		if seen[g] {
			return "財務目標不可重複"
		}
		seen[g] = true
	}
	return ""
}

func isIntakeGoal(id string) bool {
	for _, g := range intakeGoals {
		if g.ID == id {
			return true
		}
	}
	return false
}

func isSlot(s string) bool {
	for _, slot := range timeSlots {
		if s == slot {
			return true
		}
	}
	return false
}

func onSlot(t time.Time) bool {
	return t.Second() == 0 && t.Nanosecond() == 0 && isSlot(t.Format(slotLayout))
}
