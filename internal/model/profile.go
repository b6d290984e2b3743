package model

import "time"

// Profile はユーザーの表示用プロフィールを表す。
// 顧問の場合はGoogle認可トークンを保持する。
type Profile struct {
	ID           string
	FullName     string
	Email        string
	GoogleTokens *GoogleTokens
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GoogleTokens はGoogleカレンダー・Gmail送信用の認可トークン一式。
type GoogleTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope,omitempty"`
	Expiry       time.Time `json:"expiry"`
}
