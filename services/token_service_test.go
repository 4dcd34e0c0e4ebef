package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/models"
)

func setupTokenApp(t *testing.T) (*fiber.App, *gorm.DB, *TokenService) {
	t.Helper()
	db := newTestDB(t)
	app := newTestApp()
	svc := NewTokenService(db)
	app.Post("/matches/:match_id/session-token", svc.MintSessionToken)
	return app, db, svc
}

func TestMintSessionToken(t *testing.T) {
	app, db, _ := setupTokenApp(t)
	seedMatch(t, db, "match-1", "tourn-1", "user-a", "user-b")

	resp := performJSON(t, app, "POST", "/matches/match-1/session-token", "user-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	token, ok := body["session_token"].(string)
	require.True(t, ok)
	assert.Len(t, token, sessionTokenLength)
	for _, ch := range token {
		assert.Contains(t, sessionTokenAlphabet, string(ch))
	}

	var stored models.MatchSessionToken
	require.NoError(t, db.Where("match_id = ? AND external_user_id = ?", "match-1", "user-a").First(&stored).Error)
	assert.Equal(t, token, stored.Token)
	assert.True(t, stored.ExpiresAt.After(time.Now()))
}

func TestMintSessionTokenReplacesPrevious(t *testing.T) {
	app, db, _ := setupTokenApp(t)
	seedMatch(t, db, "match-1", "tourn-1", "user-a", "user-b")

	resp := performJSON(t, app, "POST", "/matches/match-1/session-token", "user-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeBody(t, resp)["session_token"].(string)

	resp = performJSON(t, app, "POST", "/matches/match-1/session-token", "user-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decodeBody(t, resp)["session_token"].(string)

	assert.NotEqual(t, first, second)

	// One row per (match, user), holding the latest token
	var n int64
	require.NoError(t, db.Model(&models.MatchSessionToken{}).
		Where("match_id = ? AND external_user_id = ?", "match-1", "user-a").
		Count(&n).Error)
	assert.Equal(t, int64(1), n)

	var stored models.MatchSessionToken
	require.NoError(t, db.Where("match_id = ? AND external_user_id = ?", "match-1", "user-a").First(&stored).Error)
	assert.Equal(t, second, stored.Token)
}

func TestMintSessionTokenAuthorization(t *testing.T) {
	app, db, _ := setupTokenApp(t)
	seedMatch(t, db, "match-1", "tourn-1", "user-a", "user-b")

	resp := performJSON(t, app, "POST", "/matches/match-1/session-token", "user-z", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = performJSON(t, app, "POST", "/matches/missing/session-token", "user-a", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSweepExpiredTokens(t *testing.T) {
	_, db, svc := setupTokenApp(t)

	require.NoError(t, db.Create(&models.MatchSessionToken{
		ID:             "expired",
		MatchID:        "match-1",
		ExternalUserID: "user-a",
		Token:          "AAAAAA",
		ExpiresAt:      time.Now().Add(-time.Minute),
	}).Error)
	require.NoError(t, db.Create(&models.MatchSessionToken{
		ID:             "live",
		MatchID:        "match-2",
		ExternalUserID: "user-a",
		Token:          "BBBBBB",
		ExpiresAt:      time.Now().Add(time.Hour),
	}).Error)

	svc.SweepExpiredTokens()

	var tokens []models.MatchSessionToken
	require.NoError(t, db.Find(&tokens).Error)
	require.Len(t, tokens, 1)
	assert.Equal(t, "live", tokens[0].ID)
}
