package model

import (
	"encoding/json"
	"time"
)

// FnaSnapshot は顧客ごとの財務需要分析の回答スナップショット。
// client_idで一意、保存のたびにUPSERTされる。
type FnaSnapshot struct {
	ClientID    string
	Data        map[string]json.RawMessage
	CompletedAt *time.Time
	LastUpdated time.Time
}
