// Package fna は財務需要分析（FNA）ウィザードの計算とセッション管理を提供する。
package fna

import "math"

// ExpenseItem は「毎月金額 × 年数」で必要額を計上する需要項目。
type ExpenseItem struct {
	Amount float64 `json:"amount"`
	Years  float64 `json:"years"`
}

// LumpSumItem は一時金として計上する需要項目（葬儀費用など）。
// 年数は入力として受け付けるが計算には使わない。
type LumpSumItem struct {
	Amount float64 `json:"amount"`
	Years  float64 `json:"years"`
}

// SecurityInput は家庭保障ステップの入力値。
type SecurityInput struct {
	LivingExpense       ExpenseItem `json:"livingExpense"`
	HousingExpense      ExpenseItem `json:"housingExpense"`
	ChildExpense        ExpenseItem `json:"childExpense"`
	ParentExpense       ExpenseItem `json:"parentExpense"`
	OtherExpense        ExpenseItem `json:"otherExpense"`
	FinalExpense        LumpSumItem `json:"finalExpense"`
	ActiveIncome        float64     `json:"activeIncome"`
	PassiveIncome       float64     `json:"passiveIncome"`
	LiquidAssets        float64     `json:"liquidAssets"`
	LaborInsurance      float64     `json:"laborInsurance"`
	GroupInsurance      float64     `json:"groupInsurance"`
	CommercialInsurance float64     `json:"commercialInsurance"`
}

// SecuritySummary は家庭保障の計算結果。
// Gapが負の場合は保障が需要を上回っている（余剰）ことを示す。
type SecuritySummary struct {
	TotalNeed     float64 `json:"totalNeed"`
	TotalCoverage float64 `json:"totalCoverage"`
	Gap           float64 `json:"gap"`
}

// nonNegative は負数・NaN・無限大を0として扱う。
func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// TotalNeed は Σ(毎月金額 × 年数 × 12) + 一時金 を返す。
func TotalNeed(items []ExpenseItem, lumpSum float64) float64 {
	total := nonNegative(lumpSum)
	for _, it := range items {
		total += nonNegative(it.Amount) * nonNegative(it.Years) * 12
	}
	return total
}

// TotalCoverage は労保・団保・商業保険の合計を返す。
func TotalCoverage(labor, group, commercial float64) float64 {
	return nonNegative(labor) + nonNegative(group) + nonNegative(commercial)
}

// Gap は 需要 − 保障 − 流動資産 を返す。結果は負になり得る。
func Gap(need, coverage, liquidAssets float64) float64 {
	return nonNegative(need) - nonNegative(coverage) - nonNegative(liquidAssets)
}

// Items は毎月計上の5項目を固定順で返す。
func (in SecurityInput) Items() []ExpenseItem {
	return []ExpenseItem{
		in.LivingExpense,
		in.HousingExpense,
		in.ChildExpense,
		in.ParentExpense,
		in.OtherExpense,
	}
}

// Summary は入力から需要・保障・缺口をまとめて計算する。
func (in SecurityInput) Summary() SecuritySummary {
	need := TotalNeed(in.Items(), in.FinalExpense.Amount)
	coverage := TotalCoverage(in.LaborInsurance, in.GroupInsurance, in.CommercialInsurance)
	return SecuritySummary{
		TotalNeed:     need,
		TotalCoverage: coverage,
		Gap:           Gap(need, coverage, in.LiquidAssets),
	}
}
