package sandbox

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vaultpay/mobile-core/internal/logging"
)

func TestIdempotencyReplaysResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	var handled atomic.Int64
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/initiate", func(c *fiber.Ctx) error {
		handled.Add(1)
		return c.JSON(fiber.Map{"id": "wd-1"})
	})

	send := func() string {
		req := httptest.NewRequest("POST", "/initiate", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(idempotencyKeyHeader, "key-1")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != 200 {
			t.Fatalf("status = %d, body %s", resp.StatusCode, body)
		}
		return string(body)
	}

	first := send()
	second := send()
	if first != second {
		t.Fatalf("replayed body differs: %q vs %q", first, second)
	}
	if handled.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", handled.Load())
	}
}

func TestIdempotencyPassThroughWithoutKey(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	var handled atomic.Int64
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/verify", func(c *fiber.Ctx) error {
		handled.Add(1)
		return c.SendStatus(201)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/verify", strings.NewReader("{}"))
		if _, err := app.Test(req); err != nil {
			t.Fatalf("request: %v", err)
		}
	}
	if handled.Load() != 2 {
		t.Fatalf("handler ran %d times, want 2", handled.Load())
	}
}

func TestIdempotencySkipsReads(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	var handled atomic.Int64
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Get("/status", func(c *fiber.Ctx) error {
		handled.Add(1)
		return c.SendStatus(200)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/status", nil)
		req.Header.Set(idempotencyKeyHeader, "key-1")
		if _, err := app.Test(req); err != nil {
			t.Fatalf("request: %v", err)
		}
	}
	if handled.Load() != 2 {
		t.Fatalf("handler ran %d times, want 2", handled.Load())
	}
}
