package models

// TournamentMatch is a local snapshot of the tournament service's 1v1 match
// roster. Owned by the tournament subsystem; populated via the match sync
// worker and read-only for the verification pipeline.
type TournamentMatch struct {
	ID           string `gorm:"primaryKey" json:"id"`
	TournamentID string `gorm:"index;not null" json:"tournament_id"`
	PlayerAID    string `gorm:"not null" json:"player_a_id"`
	PlayerBID    string `gorm:"not null" json:"player_b_id"`
	Status       string `gorm:"type:varchar(16);default:'pending'" json:"status"`

	Timestamps
}

// HasParticipant reports whether userID is one of the two recorded players.
func (m *TournamentMatch) HasParticipant(userID string) bool {
	return userID != "" && (m.PlayerAID == userID || m.PlayerBID == userID)
}
