package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/vaultpay/mobile-core/internal/config"
	"github.com/vaultpay/mobile-core/internal/gateway"
)

// Server is the sandbox backend: a reference implementation of the mobile
// HTTP contract used for local development and integration tests.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New wires the sandbox application. cache may be nil, in which case the
// idempotency middleware is skipped.
func New(cfg config.Config, store Store, cache *redis.Client, log *slog.Logger) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName + " sandbox",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		// The client gateway expects error bodies shaped {"message": ...}.
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
			return c.Status(code).JSON(fiber.Map{"message": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if cache != nil {
		app.Use(Idempotency(cache, cfg.IdempotencyTTL, log))
	}

	h := NewHandler(store, cfg, log)
	secret := []byte(cfg.TokenSecret)

	app.Post("/auth/mobile/login", h.Login)

	authed := app.Group("", BearerAuth(secret))
	authed.Get("/auth/mobile/profile", h.Profile)
	authed.Get("/mobile/withdrawals/info", h.WithdrawalInfo)
	authed.Post("/mobile/withdrawals/calculate-fee", h.CalculateFee)
	authed.Post("/mobile/withdrawals/initiate", h.InitiateWithdrawal)
	authed.Get("/mobile/withdrawals/:id/status", h.WithdrawalStatus)
	authed.Post("/mobile/deposits/verify", h.VerifyDeposit)
	authed.Get("/mobile/transactions/:id/status", h.TransactionStatus)
	authed.Post("/sandbox/transactions/:id/resolve", h.ResolveTransaction)

	return &Server{app: app, cfg: cfg}, nil
}

// Listen starts the HTTP server on the configured address.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Serve starts the HTTP server on the provided listener. Tests use this
// with a loopback listener on an ephemeral port.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// SeedDemo provisions the demo user the walletcli signs in with: phone
// 15550100, PIN 1234, pending verification, a funded wallet and two
// payout accounts. Returns the user id.
func SeedDemo(ctx context.Context, store Store) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	user := User{
		ID:                 uuid.NewString(),
		Phone:              "15550100",
		PINHash:            hash,
		VerificationStatus: "pending",
		Balance:            decimal.RequireFromString("2500.00"),
		CreatedAt:          time.Now().UTC(),
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return "", err
	}

	accounts := []gateway.Account{
		{
			ID:                uuid.NewString(),
			Name:              "Checking ••4821",
			Category:          "bank",
			MinimumWithdrawal: decimal.RequireFromString("5.00"),
		},
		{
			ID:       uuid.NewString(),
			Name:     "USDT Wallet",
			Category: "crypto",
			IsCrypto: true,
		},
	}
	for _, account := range accounts {
		if err := store.CreateAccount(ctx, user.ID, account); err != nil {
			return "", err
		}
	}
	return user.ID, nil
}
