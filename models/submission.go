package models

import "encoding/json"

// Verification outcomes for a proof submission
const (
	StatusVerified    = "verified"
	StatusNeedsReview = "needs_review"
	StatusRejected    = "rejected"
)

// Review reason codes. These let operators tell "the AI never looked"
// (ai_unavailable) apart from "the AI looked and was unsure" (low_confidence).
const (
	ReviewReasonAIUnavailable    = "ai_unavailable"
	ReviewReasonLowConfidence    = "low_confidence"
	ReviewReasonReusedScreenshot = "reused_screenshot"
)

// MatchSubmission records one player's evidence for one match.
// Append-only audit record: nothing mutates a row after insert except
// admin resolution of a needs_review verdict.
type MatchSubmission struct {
	ID             string `gorm:"primaryKey" json:"id"`
	MatchID        string `gorm:"uniqueIndex:unique_match_user;not null" json:"match_id"`
	ExternalUserID string `gorm:"uniqueIndex:unique_match_user;not null" json:"external_user_id"`
	TournamentID   string `gorm:"index;not null" json:"tournament_id"`

	ScreenshotURL string `gorm:"type:text;not null" json:"screenshot_url"`
	ClipURL       string `gorm:"type:text" json:"clip_url,omitempty"`
	MatchCode     string `gorm:"type:varchar(50)" json:"match_code,omitempty"`
	SessionToken  string `gorm:"type:varchar(100)" json:"session_token"`

	VerificationStatus string `gorm:"type:varchar(16);not null" json:"verification_status"`
	Confidence         int    `gorm:"default:0" json:"confidence"`
	Reasons            string `gorm:"type:text" json:"-"` // JSON-encoded []string
	ReviewReason       string `gorm:"type:varchar(32)" json:"review_reason,omitempty"`

	// Set only when an admin resolves a needs_review submission
	ResolvedBy     string `json:"resolved_by,omitempty"`
	ResolutionNote string `json:"resolution_note,omitempty"`

	Timestamps
}

// SetReasons serializes the verdict reasons for storage.
func (s *MatchSubmission) SetReasons(reasons []string) {
	if len(reasons) == 0 {
		s.Reasons = ""
		return
	}
	raw, _ := json.Marshal(reasons)
	s.Reasons = string(raw)
}

// ReasonList decodes the stored reasons. Returns nil when empty or unparsable.
func (s *MatchSubmission) ReasonList() []string {
	if s.Reasons == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.Reasons), &out); err != nil {
		return nil
	}
	return out
}

// VerificationVerdict is the AI judge's answer for one screenshot.
// Transient — folded into MatchSubmission on persist, never stored standalone.
type VerificationVerdict struct {
	Status     string   `json:"verdict"`
	Confidence int      `json:"confidence"`
	Reasons    []string `json:"reasons"`
}
