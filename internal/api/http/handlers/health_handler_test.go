package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadiness(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	cases := []struct {
		name   string
		deps   map[string]Pinger
		status int
	}{
		{"no deps", nil, fiber.StatusOK},
		{"nil deps skipped", map[string]Pinger{"redis": nil}, fiber.StatusOK},
		{"all up", map[string]Pinger{"postgres": up, "redis": up}, fiber.StatusOK},
		{"one down", map[string]Pinger{"postgres": up, "redis": down}, fiber.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
				e := apperrors.ToDomainError(err)
				return c.Status(e.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{"code": e.Code, "details": e.Details}})
			}})
			h := NewHealthHandler("fieldops", "test", tc.deps)
			app.Get("/ready", h.Ready)

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ready", nil))
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			if tc.status != fiber.StatusServiceUnavailable {
				return
			}
			var body struct {
				Error struct {
					Code    string            `json:"code"`
					Details map[string]string `json:"details"`
				} `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != "DEPENDENCY_UNAVAILABLE" || body.Error.Details["redis"] != "connection refused" {
				t.Fatalf("unexpected body %+v", body.Error)
			}
		})
	}
}
