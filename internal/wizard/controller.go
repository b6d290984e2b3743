// Package wizard は固定順序のステップを持つ入力ウィザードの状態遷移を提供する。
package wizard

import (
	"encoding/json"
	"sync"
)

// FNAウィザードのステップ名
const (
	StepFamilyMembers     = "familyMembers"
	StepFinancialGoals    = "financialGoals"
	StepMedicalProtection = "medicalProtection"
	StepChildrenEducation = "childrenEducation"
	StepFamilySecurity    = "familySecurity"
	StepFinancialFreedom  = "financialFreedom"
)

// FNASteps はFNAウィザードのステップ順序。
var FNASteps = []string{
	StepFamilyMembers,
	StepFinancialGoals,
	StepMedicalProtection,
	StepChildrenEducation,
	StepFamilySecurity,
	StepFinancialFreedom,
}

// CompletionFunc は最終ステップでAdvanceされたときに呼ばれる。
// answersは呼び出し時点の回答のコピー。
type CompletionFunc func(answers map[string]json.RawMessage)

// State はウィザードの現在状態のスナップショット。
type State struct {
	Index   int                        `json:"step_index"`
	Step    string                     `json:"step"`
	Steps   []string                   `json:"steps"`
	Answers map[string]json.RawMessage `json:"answers"`
}

// Controller はステップ位置と回答を保持する。
// 最終ステップでのAdvanceは毎回回答を保存し直して完了処理を1回呼び出し、
// 位置は最終ステップに留まる。完了後のRetreatは許可する（編集のため）。
type Controller struct {
	mu         sync.Mutex
	steps      []string
	index      int
	answers    map[string]json.RawMessage
	onComplete CompletionFunc
}

// New は先頭ステップ・回答なしのControllerを生成する。
func New(steps []string, onComplete CompletionFunc) *Controller {
	s := make([]string, len(steps))
	copy(s, steps)
	return &Controller{
		steps:      s,
		answers:    make(map[string]json.RawMessage),
		onComplete: onComplete,
	}
}

// Restore は保存済みの回答からControllerを復元する。
// 位置は最初の未回答ステップ（全て回答済みなら最終ステップ）とする。
func Restore(steps []string, answers map[string]json.RawMessage, onComplete CompletionFunc) *Controller {
	c := New(steps, onComplete)
	for k, v := range answers {
		c.answers[k] = v
	}
	c.index = len(c.steps) - 1
	for i, name := range c.steps {
		if _, ok := c.answers[name]; !ok {
			c.index = i
			break
		}
	}
	if c.index < 0 {
		c.index = 0
	}
	return c
}

// Advance は現在ステップにpayloadを保存し、次のステップへ進む。
// 最終ステップの場合は完了処理を呼び出し、completed=trueを返す。
func (c *Controller) Advance(payload json.RawMessage) (State, bool) {
	c.mu.Lock()
	if len(c.steps) == 0 {
		st := c.stateLocked()
		c.mu.Unlock()
		return st, false
	}
	c.answers[c.steps[c.index]] = payload
	completed := false
	if c.index < len(c.steps)-1 {
		c.index++
	} else {
		completed = true
	}
	st := c.stateLocked()
	fn := c.onComplete
	c.mu.Unlock()

	// コールバック内からControllerを操作できるようロック外で呼び出す
	if completed && fn != nil {
		fn(copyAnswers(st.Answers))
	}
	return st, completed
}

// Retreat は1つ前のステップへ戻る。先頭ステップでは何もしない。
func (c *Controller) Retreat() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index > 0 {
		c.index--
	}
	return c.stateLocked()
}

// State は現在状態を返す。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Answers は回答のコピーを返す。
func (c *Controller) Answers() map[string]json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyAnswers(c.answers)
}

func (c *Controller) stateLocked() State {
	st := State{
		Index:   c.index,
		Steps:   append([]string(nil), c.steps...),
		Answers: copyAnswers(c.answers),
	}
	if c.index < len(c.steps) {
		st.Step = c.steps[c.index]
	}
	return st
}

func copyAnswers(src map[string]json.RawMessage) map[string]json.RawMessage {
	dst := make(map[string]json.RawMessage, len(src))
	for k, v := range src {
		dst[k] = append(json.RawMessage(nil), v...)
	}
	return dst
}
