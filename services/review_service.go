// services/review_service.go
package services

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/models"
)

// ReviewService is the human half of the fail-open policy: everything the AI
// judge could not settle lands here for an operator to adjudicate.
type ReviewService struct {
	DB *gorm.DB
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{DB: db}
}

// ReviewQueue lists unresolved needs_review submissions, oldest first.
func (s *ReviewService) ReviewQueue(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	var submissions []models.MatchSubmission
	if err := s.DB.Where("verification_status = ? AND resolved_by = ''", models.StatusNeedsReview).
		Order("created_at ASC").
		Limit(limit).
		Find(&submissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load review queue"})
	}

	out := make([]fiber.Map, len(submissions))
	for i := range submissions {
		out[i] = submissionResponse(&submissions[i])
	}
	return c.JSON(fiber.Map{"submissions": out})
}

type resolveRequest struct {
	Verdict string `json:"verdict"`
	Note    string `json:"note"`
}

// Resolve sets the final verdict on a needs_review submission. The only
// mutation ever applied to a submission after insert.
func (s *ReviewService) Resolve(c *fiber.Ctx) error {
	adminID, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Verdict != models.StatusVerified && req.Verdict != models.StatusRejected {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "verdict must be 'verified' or 'rejected'"})
	}

	var submission models.MatchSubmission
	if err := s.DB.Where("id = ?", id).First(&submission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "submission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load submission"})
	}
	if submission.VerificationStatus != models.StatusNeedsReview {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "submission is not awaiting review"})
	}

	updates := map[string]interface{}{
		"verification_status": req.Verdict,
		"resolved_by":         adminID,
		"resolution_note":     req.Note,
	}
	if err := s.DB.Model(&submission).Updates(updates).Error; err != nil {
		log.Printf("❌ [REVIEW] Failed to resolve submission %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve submission"})
	}

	log.Printf("✅ [REVIEW] Submission %s resolved as %s by %s", id, req.Verdict, adminID)
	return c.JSON(fiber.Map{
		"success":             true,
		"submission_id":       submission.ID,
		"verification_status": req.Verdict,
		"resolved_by":         adminID,
	})
}
