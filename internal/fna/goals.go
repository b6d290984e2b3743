package fna

import "fmt"

// Goal はウィザードの「財務目標」ステップで選択できる目標定義。
type Goal struct {
	ID          string `json:"id"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// goalCatalog は固定の目標カタログ。
var goalCatalog = []Goal{
	{ID: "1", Icon: "🏥", Title: "醫療保障", Description: "照顧自己失去賺錢能力的缺口"},
	{ID: "2", Icon: "🏠", Title: "家庭保障", Description: "你對家庭的承諾與責任"},
	{ID: "3", Icon: "🎓", Title: "子女教育", Description: "針對小孩我們特有的期望與安排"},
	{ID: "4", Icon: "💰", Title: "財務自由", Description: "當我們被動收入大於主動收入時，可選擇不工作還有可靠的收入，俗稱「退休規劃」"},
	{ID: "5", Icon: "💎", Title: "資產傳承", Description: "當我們有能力在生前贈與，或百年後留遺產給你關心的人"},
}

// Goals は目標カタログのコピーを返す。
func Goals() []Goal {
	out := make([]Goal, len(goalCatalog))
	copy(out, goalCatalog)
	return out
}

// ValidateGoalSelection は選択された目標IDを検証する。
// 選択順がそのまま優先順位となるため、重複とカタログ外のIDを拒否する。
func ValidateGoalSelection(ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !isCatalogGoal(id) {
			return fmt.Errorf("unknown goal id %q", id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate goal id %q", id)
		}
		seen[id] = true
	}
	return nil
}

func isCatalogGoal(id string) bool {
	for _, g := range goalCatalog {
		if g.ID == id {
			return true
		}
	}
	return false
}
