package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func requestIDApp() *fiber.App {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/resource", func(c *fiber.Ctx) error {
		id, _ := c.Locals(requestIDHeader).(string)
		return c.SendString(id)
	})
	return app
}

func TestRequestIDHonorsInboundHeader(t *testing.T) {
	app := requestIDApp()

	req := httptest.NewRequest(fiber.MethodGet, "/resource", nil)
	req.Header.Set(requestIDHeader, "trace-42")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got != "trace-42" {
		t.Fatalf("expected inbound id echoed, got %q", got)
	}
}

func TestRequestIDGeneratesWhenMissingOrOversized(t *testing.T) {
	app := requestIDApp()

	req := httptest.NewRequest(fiber.MethodGet, "/resource", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected a generated id on the response")
	}

	req = httptest.NewRequest(fiber.MethodGet, "/resource", nil)
	huge := strings.Repeat("x", maxRequestIDLen+1)
	req.Header.Set(requestIDHeader, huge)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got == huge || got == "" {
		t.Fatalf("expected the oversized id replaced, got %q", got)
	}
}
