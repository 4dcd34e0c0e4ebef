// services/verification_service.go
package services

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/models"
)

// VerificationService runs the proof pipeline:
// validate → participant check → duplicate check → reuse check → AI judge → persist.
type VerificationService struct {
	DB    *gorm.DB
	Judge ProofJudge // nil when the AI backend is unconfigured
}

func NewVerificationService(db *gorm.DB, judge ProofJudge) *VerificationService {
	return &VerificationService{DB: db, Judge: judge}
}

type verifyRequest struct {
	MatchID       string `json:"match_id"`
	TournamentID  string `json:"tournament_id"`
	ScreenshotURL string `json:"screenshot_url"`
	ClipURL       string `json:"clip_url"`
	MatchCode     string `json:"match_code"`
	SessionToken  string `json:"session_token"`
}

const (
	maxScreenshotURLLen = 2000
	maxSessionTokenLen  = 100
	maxMatchCodeLen     = 50
)

// SubmitProof verifies one piece of match evidence and records the verdict.
func (s *VerificationService) SubmitProof(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
	}

	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Input validation — fatal, no retry, no DB writes
	if req.MatchID == "" || req.TournamentID == "" || req.ScreenshotURL == "" || req.SessionToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "match_id, tournament_id, screenshot_url and session_token are required",
		})
	}
	if len(req.ScreenshotURL) > maxScreenshotURLLen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "screenshot_url too long (max 2000 characters)"})
	}
	if len(req.SessionToken) > maxSessionTokenLen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_token too long (max 100 characters)"})
	}
	// Match code is truncated, never rejected
	if len(req.MatchCode) > maxMatchCodeLen {
		req.MatchCode = req.MatchCode[:maxMatchCodeLen]
	}

	// PARTICIPANT_CHECK — always reads the live roster mirror, no caching:
	// rosters change between tournament rounds.
	var match models.TournamentMatch
	if err := s.DB.Where("id = ?", req.MatchID).First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load match"})
	}
	if !match.HasParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "you are not a participant in this match"})
	}

	// DUPLICATE_CHECK — fast-path 409; the unique index on (match_id,
	// external_user_id) is the real guard against the check-then-insert race.
	var existing int64
	if err := s.DB.Model(&models.MatchSubmission{}).
		Where("match_id = ? AND external_user_id = ?", req.MatchID, userID).
		Count(&existing).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check existing submissions"})
	}
	if existing > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "evidence already submitted for this match"})
	}

	// REUSE_CHECK — same screenshot URL on a different match. Heuristic only:
	// shared CDN URLs can coincidentally collide, so this downgrades, never rejects.
	var reused int64
	if err := s.DB.Model(&models.MatchSubmission{}).
		Where("screenshot_url = ? AND match_id <> ?", req.ScreenshotURL, req.MatchID).
		Count(&reused).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check screenshot reuse"})
	}

	if s.Judge == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "automatic verification is not configured"})
	}

	// AI_JUDGE — fail open to human review. A broken judge must never
	// silently reject or silently approve a real result.
	verdict, err := s.Judge.Judge(c.Context(), req.ScreenshotURL, req.SessionToken)
	reviewReason := ""
	if err != nil {
		log.Printf("⚠️ [VERIFY] AI judge unavailable for match %s: %v", req.MatchID, err)
		verdict = &models.VerificationVerdict{
			Status:     models.StatusNeedsReview,
			Confidence: 0,
			Reasons:    []string{"Automatic verification was unavailable; queued for human review."},
		}
		reviewReason = models.ReviewReasonAIUnavailable
	} else if verdict.Status == models.StatusNeedsReview {
		reviewReason = models.ReviewReasonLowConfidence
	}

	// The reuse downgrade applies after the AI verdict — the two signals
	// combine. An AI rejection stands; reuse only ever lowers trust.
	if reused > 0 {
		if verdict.Status == models.StatusVerified {
			verdict.Status = models.StatusNeedsReview
		}
		if verdict.Confidence > 30 {
			verdict.Confidence = 30
		}
		verdict.Reasons = append(verdict.Reasons, "Screenshot was already used as evidence for a different match.")
		reviewReason = models.ReviewReasonReusedScreenshot
	}

	// PERSIST — the only write in the pipeline. No partial state exists
	// before this point, and nothing retries after it.
	submission := models.MatchSubmission{
		ID:                 uuid.NewString(),
		MatchID:            req.MatchID,
		ExternalUserID:     userID,
		TournamentID:       req.TournamentID,
		ScreenshotURL:      req.ScreenshotURL,
		ClipURL:            req.ClipURL,
		MatchCode:          req.MatchCode,
		SessionToken:       req.SessionToken,
		VerificationStatus: verdict.Status,
		Confidence:         verdict.Confidence,
		ReviewReason:       reviewReason,
	}
	submission.SetReasons(verdict.Reasons)

	if err := s.DB.Create(&submission).Error; err != nil {
		if isUniqueViolation(err) {
			// Lost the double-submit race — the other insert won
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "evidence already submitted for this match"})
		}
		log.Printf("❌ [VERIFY] Failed to persist submission for match %s: %v", req.MatchID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record submission"})
	}

	log.Printf("✅ [VERIFY] Submission %s for match %s: %s (confidence %d)",
		submission.ID, submission.MatchID, submission.VerificationStatus, submission.Confidence)

	return c.JSON(fiber.Map{
		"success":             true,
		"submission_id":       submission.ID,
		"verification_status": submission.VerificationStatus,
		"confidence":          submission.Confidence,
		"reasons":             verdict.Reasons,
	})
}

// GetSubmission returns one submission; owners and admins only.
func (s *VerificationService) GetSubmission(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var submission models.MatchSubmission
	if err := s.DB.Where("id = ?", id).First(&submission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "submission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load submission"})
	}

	if submission.ExternalUserID != userID && !hasRole(c, "admin") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your submission"})
	}

	return c.JSON(submissionResponse(&submission))
}

// ListMySubmissions returns the caller's submissions, newest first.
func (s *VerificationService) ListMySubmissions(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	var submissions []models.MatchSubmission
	if err := s.DB.Where("external_user_id = ?", userID).
		Order("created_at DESC").
		Limit(100).
		Find(&submissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list submissions"})
	}

	out := make([]fiber.Map, len(submissions))
	for i := range submissions {
		out[i] = submissionResponse(&submissions[i])
	}
	return c.JSON(fiber.Map{"submissions": out})
}

// ListMatchSubmissions returns both players' submissions for a match.
// Participants only — used for post-match dispute review.
func (s *VerificationService) ListMatchSubmissions(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	matchID := c.Params("match_id")

	var match models.TournamentMatch
	if err := s.DB.Where("id = ?", matchID).First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load match"})
	}
	if !match.HasParticipant(userID) && !hasRole(c, "admin") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "you are not a participant in this match"})
	}

	var submissions []models.MatchSubmission
	if err := s.DB.Where("match_id = ?", matchID).
		Order("created_at ASC").
		Find(&submissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list submissions"})
	}

	out := make([]fiber.Map, len(submissions))
	for i := range submissions {
		out[i] = submissionResponse(&submissions[i])
	}
	return c.JSON(fiber.Map{"submissions": out})
}

func submissionResponse(s *models.MatchSubmission) fiber.Map {
	resp := fiber.Map{
		"submission_id":       s.ID,
		"match_id":            s.MatchID,
		"tournament_id":       s.TournamentID,
		"external_user_id":    s.ExternalUserID,
		"screenshot_url":      s.ScreenshotURL,
		"verification_status": s.VerificationStatus,
		"confidence":          s.Confidence,
		"reasons":             s.ReasonList(),
		"created_at":          s.CreatedAt,
	}
	if s.ClipURL != "" {
		resp["clip_url"] = s.ClipURL
	}
	if s.MatchCode != "" {
		resp["match_code"] = s.MatchCode
	}
	if s.ReviewReason != "" {
		resp["review_reason"] = s.ReviewReason
	}
	if s.ResolvedBy != "" {
		resp["resolved_by"] = s.ResolvedBy
		resp["resolution_note"] = s.ResolutionNote
	}
	return resp
}

func hasRole(c *fiber.Ctx, role string) bool {
	roles, _ := c.Locals("user_roles").([]string)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
