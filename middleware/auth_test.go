package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/services"
)

func newAuthStubServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/validate" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			AccessToken string `json:"access_token"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		switch body.AccessToken {
		case "good-token":
			json.NewEncoder(w).Encode(services.ValidateResponse{UserID: "user-a", Roles: []string{"player"}})
		case "admin-token":
			json.NewEncoder(w).Encode(services.ValidateResponse{UserID: "admin-1", Roles: []string{"player", "admin"}})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAuthTestApp(t *testing.T) *fiber.App {
	t.Helper()
	authClient := services.NewAuthServiceClient(newAuthStubServer(t).URL, "svc-secret")

	app := fiber.New()
	secured := app.Group("/", UserAuthMiddleware(authClient))
	secured.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id": c.Locals("user_id"),
			"roles":   c.Locals("user_roles"),
		})
	})
	secured.Get("/admin/ping", RequireRole("admin"), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func authedRequest(target, header string) *http.Request {
	req := httptest.NewRequest("GET", target, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return req
}

func TestUserAuthMiddleware(t *testing.T) {
	app := newAuthTestApp(t)

	resp, err := app.Test(authedRequest("/whoami", "Bearer good-token"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "user-a", body["user_id"])
	assert.Equal(t, []interface{}{"player"}, body["roles"])
}

func TestUserAuthMiddlewareRejections(t *testing.T) {
	app := newAuthTestApp(t)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Token abc123"},
		{"empty bearer", "Bearer   "},
		{"invalid token", "Bearer wrong-token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(authedRequest("/whoami", tc.header))
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestRequireRole(t *testing.T) {
	app := newAuthTestApp(t)

	resp, err := app.Test(authedRequest("/admin/ping", "Bearer good-token"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp, err = app.Test(authedRequest("/admin/ping", "Bearer admin-token"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
