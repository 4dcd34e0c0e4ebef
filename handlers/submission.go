// handlers/submission.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/middleware"
	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/services"
)

func SetupSubmissionRoutes(
	app *fiber.App,
	verificationService *services.VerificationService,
	evidenceService *services.EvidenceService,
	tokenService *services.TokenService,
	reviewService *services.ReviewService,
	authClient *services.AuthServiceClient,
) {
	// 🔐 Everything below requires a valid player session
	secured := app.Group("/", middleware.UserAuthMiddleware(authClient))

	// Match-start: mint the on-screen overlay token
	secured.Post("/matches/:match_id/session-token", tokenService.MintSessionToken)

	// Evidence upload relay
	secured.Post("/matches/:match_id/evidence", evidenceService.UploadEvidence)

	// Verification pipeline + status
	secured.Post("/submissions/verify", verificationService.SubmitProof)
	secured.Get("/submissions/:id", verificationService.GetSubmission)
	secured.Get("/users/me/submissions", verificationService.ListMySubmissions)
	secured.Get("/matches/:match_id/submissions", verificationService.ListMatchSubmissions)

	// 🔒 Human review queue
	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Get("/submissions/review-queue", reviewService.ReviewQueue)
	admin.Post("/submissions/:id/resolve", reviewService.Resolve)
}
