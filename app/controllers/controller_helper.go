package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// jsonError writes the structured error body operator-facing endpoints use.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// queryList splits a comma-separated query parameter into trimmed values.
func queryList(c *fiber.Ctx, name string) []string {
	raw := c.Query(name)
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// queryFloatPtr parses an optional numeric query parameter. Absent or
// malformed values yield nil.
func queryFloatPtr(c *fiber.Ctx, name string) *float64 {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// queryIntDefault parses an integer query parameter with a fallback.
func queryIntDefault(c *fiber.Ctx, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
