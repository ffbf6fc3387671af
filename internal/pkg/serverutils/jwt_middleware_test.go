package serverutils

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func newProtectedApp() *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Use(JwtMiddleware)
	app.Get("/protected", func(ctx *fiber.Ctx) error {
		userId, _ := ctx.Locals("user_id").(string)
		return ctx.JSON(SuccessResponse("ok", userId))
	})
	return app
}

func decodeEnvelope(t *testing.T, body io.Reader) Response[string] {
	t.Helper()
	var envelope Response[string]
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	return envelope
}

func TestJwtMiddlewareRejectsMissingToken(t *testing.T) {
	app := newProtectedApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp.Body)
	if envelope.Code != fiber.StatusUnauthorized || envelope.Message != "Missing token" {
		t.Errorf("expected standard envelope, got %+v", envelope)
	}
}

func TestJwtMiddlewareRejectsInvalidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	app := newProtectedApp()

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp.Body)
	if envelope.Message != "Invalid token" {
		t.Errorf("unexpected envelope: %+v", envelope)
	}
}

func TestJwtMiddlewarePassesUserIdThrough(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	app := newProtectedApp()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "user-123"})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp.Body)
	if envelope.Data != "user-123" {
		t.Errorf("user_id not carried into locals: %+v", envelope)
	}
}
