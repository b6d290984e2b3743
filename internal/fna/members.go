package fna

import (
	"errors"
	"strings"
	"time"
)

// 家族構成の関係（初期表示用）
const (
	RelationSelf   = "本人"
	RelationSpouse = "配偶"
	RelationChild  = "子女"
)

// birthDateLayout は生年月日の入力フォーマット。
const birthDateLayout = "2006-01-02"

// ErrNoMembers は家族構成が0人になる操作を表す。
var ErrNoMembers = errors.New("at least one family member is required")

// FamilyMember は家族構成の1行を表す。Ageはサーバー側で生年月日から再計算する。
type FamilyMember struct {
	ID         string `json:"id"`
	Relation   string `json:"relation"`
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	BirthDate  string `json:"birthDate"`
	Age        int    `json:"age"`
	Occupation string `json:"occupation"`
}

// AgeAt は基準日時点の満年齢を返す。
// 今年の誕生日（月日）をまだ迎えていない場合は1歳引く。
func AgeAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// SeedMembers は新規の家族構成リスト（本人・配偶）を返す。
func SeedMembers() []FamilyMember {
	return []FamilyMember{
		{ID: "1", Relation: RelationSelf},
		{ID: "2", Relation: RelationSpouse},
	}
}

// RemoveMember は指定IDの行を取り除く。残りが1行の場合は削除しない。
func RemoveMember(members []FamilyMember, id string) ([]FamilyMember, error) {
	if len(members) <= 1 {
		return members, ErrNoMembers
	}
	out := make([]FamilyMember, 0, len(members))
	for _, m := range members {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out, nil
}

// NormalizeMembers は家族構成を検証し、年齢を再計算したコピーを返す。
// 生年月日が空または解釈できない行の年齢は0とする。
func NormalizeMembers(members []FamilyMember, now time.Time) ([]FamilyMember, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	out := make([]FamilyMember, len(members))
	for i, m := range members {
		m.Age = 0
		if s := strings.TrimSpace(m.BirthDate); s != "" {
			if birth, err := time.ParseInLocation(birthDateLayout, s, now.Location()); err == nil {
				m.Age = AgeAt(birth, now)
			}
		}
		out[i] = m
	}
	return out, nil
}
