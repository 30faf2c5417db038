package domain

import "time"

// WelcomeConfig is the admin-authored greeting shown on /start and the main menu.
type WelcomeConfig struct {
	Text     string `json:"text"`
	MediaRef string `json:"mediaRef,omitempty"`
}

// OperatorButton is an admin-authored entry of the pricing menu.
type OperatorButton struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	MediaRef string `json:"mediaRef,omitempty"`
}

// ProductPrice is a priced item listed under an item type.
type ProductPrice struct {
	ItemType    string `json:"itemType"`
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
}

// TrialStatus records whether a user already requested the free trial.
type TrialStatus struct {
	UserID    int64     `json:"userId"`
	Used      bool      `json:"used"`
	RequestID string    `json:"requestId,omitempty"`
	UsedAt    time.Time `json:"usedAt"`
}

// BotIdentity is the subset of the bot's own account used for mention detection.
type BotIdentity struct {
	ID       int64
	Username string
}
