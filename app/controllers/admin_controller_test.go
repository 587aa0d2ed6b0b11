package controllers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGrantPlanTestApp() *fiber.App {
	app := fiber.New()
	app.Post("/api/v1/admin/grant-plan", HandleGrantPlan)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestHandleGrantPlanRejectsInvalidRequests(t *testing.T) {
	app := newGrantPlanTestApp()

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed body", body: `{"email":`},
		{name: "missing email", body: `{"plan":"pro"}`},
		{name: "bad email", body: `{"email":"not-an-email","plan":"pro"}`},
		{name: "missing plan", body: `{"email":"user@example.com"}`},
		{name: "negative days", body: `{"email":"user@example.com","plan":"pro","days":-1}`},
	}

	for _, tt := range tests {
		status := postJSON(t, app, "/api/v1/admin/grant-plan", tt.body)
		assert.Equal(t, fiber.StatusBadRequest, status, tt.name)
	}
}
