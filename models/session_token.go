package models

import "time"

// MatchSessionToken is the per-match overlay code minted at match start.
// Players must keep it visible on screen so the AI judge can spot it in the
// result screenshot — a weak anti-replay signal, not proof by itself.
// Re-minting replaces the previous token for the same (match, user).
type MatchSessionToken struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	MatchID        string    `gorm:"uniqueIndex:unique_token_match_user;not null" json:"match_id"`
	ExternalUserID string    `gorm:"uniqueIndex:unique_token_match_user;not null" json:"external_user_id"`
	Token          string    `gorm:"type:varchar(16);not null" json:"token"`
	ExpiresAt      time.Time `gorm:"index" json:"expires_at"`

	Timestamps
}
