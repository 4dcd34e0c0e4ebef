// services/evidence_service.go
package services

import (
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/utils"
)

const maxScreenshotBytes = 5 * 1024 * 1024 // 5MB

var allowedScreenshotTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// EvidenceService is the upload relay: it validates the screenshot locally
// and pushes it to R2. A failed upload aborts before the verification call —
// no partial submissions.
type EvidenceService struct {
	DB     *gorm.DB
	Upload func(fileHeader *multipart.FileHeader, key string) (string, error)
}

func NewEvidenceService(db *gorm.DB) *EvidenceService {
	return &EvidenceService{DB: db, Upload: utils.UploadFileToR2}
}

// UploadEvidence accepts a screenshot for a match and returns its public URL.
func (s *EvidenceService) UploadEvidence(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
	}
	matchID := c.Params("match_id")

	fileHeader, err := c.FormFile("screenshot")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "screenshot file is required"})
	}

	// Size and type limits run before any storage call
	if fileHeader.Size > maxScreenshotBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "File too large. Max 5MB."})
	}
	contentType := fileHeader.Header.Get("Content-Type")
	ext, ok := allowedScreenshotTypes[contentType]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unsupported file type. Use PNG, JPEG or WebP."})
	}

	key := BuildEvidenceKey(userID, matchID, fileHeader.Filename, ext)
	url, err := s.Upload(fileHeader, key)
	if err != nil {
		log.Printf("❌ [EVIDENCE] Upload failed for match %s: %v", matchID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store evidence"})
	}

	log.Printf("✅ [EVIDENCE] Stored %s", key)
	return c.JSON(fiber.Map{"screenshot_url": url})
}

// BuildEvidenceKey builds the R2 object key for a screenshot:
// {userId}/{matchId}-{timestamp}-{filename-slug}{ext}
// The timestamp disambiguates retries; the slug keeps keys readable.
func BuildEvidenceKey(userID, matchID, originalName, ext string) string {
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	name := slug.Make(base)
	if name == "" {
		name = "evidence"
	}
	return fmt.Sprintf("%s/%s-%d-%s%s", userID, matchID, time.Now().UnixMilli(), name, ext)
}
