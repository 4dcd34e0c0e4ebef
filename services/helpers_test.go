package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.MatchSubmission{},
		&models.TournamentMatch{},
		&models.MatchSessionToken{},
	))
	return db
}

// newTestApp builds a Fiber app with a stub auth layer: X-Test-User becomes
// user_id, X-Test-Admin grants the admin role.
func newTestApp() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			c.Locals("user_id", uid)
			if c.Get("X-Test-Admin") == "true" {
				c.Locals("user_roles", []string{"admin"})
			}
		}
		return c.Next()
	})
	return app
}

func seedMatch(t *testing.T, db *gorm.DB, id, tournamentID, playerA, playerB string) {
	t.Helper()
	require.NoError(t, db.Create(&models.TournamentMatch{
		ID:           id,
		TournamentID: tournamentID,
		PlayerAID:    playerA,
		PlayerBID:    playerB,
		Status:       "active",
	}).Error)
}

func performJSON(t *testing.T, app *fiber.App, method, target, user string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// stubJudge returns a fixed verdict or error and counts invocations.
type stubJudge struct {
	verdict *models.VerificationVerdict
	err     error
	calls   int
}

func (s *stubJudge) Judge(ctx context.Context, screenshotURL, sessionToken string) (*models.VerificationVerdict, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	v := *s.verdict
	v.Reasons = append([]string(nil), s.verdict.Reasons...)
	return &v, nil
}
