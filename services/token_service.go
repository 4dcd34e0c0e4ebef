// services/token_service.go
package services

import (
	"crypto/rand"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/models"
)

const sessionTokenTTL = 30 * time.Minute
const sessionTokenLength = 6

// No 0/O/1/I/L — players read this off a screen overlay.
const sessionTokenAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// TokenService mints the per-match overlay tokens players must display
// on screen. Part of the match-start flow.
type TokenService struct {
	DB *gorm.DB
}

func NewTokenService(db *gorm.DB) *TokenService {
	return &TokenService{DB: db}
}

// MintSessionToken issues (or re-issues) the caller's overlay token for a match.
func (s *TokenService) MintSessionToken(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
	}
	matchID := c.Params("match_id")

	var match models.TournamentMatch
	if err := s.DB.Where("id = ?", matchID).First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load match"})
	}
	if !match.HasParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "you are not a participant in this match"})
	}

	token := models.MatchSessionToken{
		ID:             uuid.NewString(),
		MatchID:        matchID,
		ExternalUserID: userID,
		Token:          newSessionToken(),
		ExpiresAt:      time.Now().Add(sessionTokenTTL),
	}

	// Re-minting replaces the previous token for this (match, user)
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "match_id"}, {Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "updated_at"}),
	}).Create(&token).Error; err != nil {
		log.Printf("❌ [TOKEN] Failed to mint session token for match %s: %v", matchID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to mint session token"})
	}

	return c.JSON(fiber.Map{
		"session_token": token.Token,
		"expires_at":    token.ExpiresAt,
	})
}

// SweepExpiredTokens deletes tokens past their TTL. Called by the scheduler.
func (s *TokenService) SweepExpiredTokens() {
	res := s.DB.Where("expires_at <= ?", time.Now()).Delete(&models.MatchSessionToken{})
	if res.Error != nil {
		log.Printf("[SCHEDULER] Token sweep failed: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 [SCHEDULER] Expired %d session tokens", res.RowsAffected)
	}
}

func newSessionToken() string {
	buf := make([]byte, sessionTokenLength)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read failing means the platform RNG is broken; fall back to uuid
		return uuid.NewString()[:sessionTokenLength]
	}
	for i, b := range buf {
		buf[i] = sessionTokenAlphabet[int(b)%len(sessionTokenAlphabet)]
	}
	return string(buf)
}
