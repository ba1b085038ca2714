package sandbox

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/vaultpay/mobile-core/internal/config"
	"github.com/vaultpay/mobile-core/internal/gateway"
	"github.com/vaultpay/mobile-core/internal/limits"
	"github.com/vaultpay/mobile-core/internal/money"
)

const (
	tokenTTL    = 24 * time.Hour
	recentLimit = 10
)

// Handler implements the mobile backend contract against a Store.
type Handler struct {
	store  Store
	cfg    config.Config
	logger *slog.Logger
}

// NewHandler builds the sandbox handler set.
func NewHandler(store Store, cfg config.Config, logger *slog.Logger) *Handler {
	return &Handler{store: store, cfg: cfg, logger: logger}
}

func (h *Handler) userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// Login verifies phone + PIN and issues a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req gateway.Credentials
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.store.UserByPhone(c.UserContext(), req.Phone)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(user.PINHash, []byte(req.PIN)); err != nil {
		return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
	}

	token, err := issueToken(user.ID, []byte(h.cfg.TokenSecret), tokenTTL)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "token issuance failed")
	}

	return c.JSON(gateway.LoginResult{Token: token, Profile: profileOf(user)})
}

// Profile returns the authenticated user snapshot.
func (h *Handler) Profile(c *fiber.Ctx) error {
	user, err := h.store.UserByID(c.UserContext(), h.userID(c))
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "unknown user")
	}
	return c.JSON(profileOf(user))
}

// WithdrawalInfo returns the withdrawal flow metadata.
func (h *Handler) WithdrawalInfo(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user, err := h.store.UserByID(ctx, h.userID(c))
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "unknown user")
	}
	accounts, err := h.store.Accounts(ctx, user.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	recent, err := h.store.RecentWithdrawals(ctx, user.ID, recentLimit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	results := make([]gateway.WithdrawalResult, 0, len(recent))
	for _, w := range recent {
		results = append(results, withdrawalResultOf(w, user.Balance))
	}

	return c.JSON(gateway.WithdrawalInfo{
		Balance:           user.Balance,
		Accounts:          accounts,
		MinimumWithdrawal: h.cfg.MinWithdrawal,
		MaximumWithdrawal: h.cfg.MaxWithdrawal,
		Recent:            results,
	})
}

type feeRequest struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// CalculateFee returns the fee preview for a prospective amount.
func (h *Handler) CalculateFee(c *fiber.Ctx) error {
	var req feeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if !req.Amount.IsPositive() {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}
	if _, err := h.store.Account(c.UserContext(), h.userID(c), req.AccountID); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid account")
	}

	fee := money.Percentage(req.Amount, h.cfg.FeePercent).Round(2)
	return c.JSON(gateway.FeeQuote{
		WithdrawalAmount: req.Amount,
		FeeAmount:        fee,
		FeePercentage:    h.cfg.FeePercent,
		NetAmount:        req.Amount.Sub(fee),
	})
}

// InitiateWithdrawal validates and records a withdrawal instruction,
// debiting the wallet. The response carries the new balance so the client
// never does local arithmetic.
func (h *Handler) InitiateWithdrawal(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var req gateway.WithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.store.UserByID(ctx, h.userID(c))
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "unknown user")
	}
	account, err := h.store.Account(ctx, user.ID, req.AccountID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid account")
	}

	if !req.Amount.IsPositive() {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}
	minimum := h.cfg.MinWithdrawal
	if account.MinimumWithdrawal.GreaterThan(minimum) {
		minimum = account.MinimumWithdrawal
	}
	if req.Amount.LessThan(minimum) {
		return fiber.NewError(http.StatusBadRequest, "amount below minimum withdrawal of "+money.Format(minimum))
	}
	ceiling := limits.ForTier(limits.ParseTier(user.VerificationStatus), h.cfg.UnverifiedLimit).Withdrawal
	if !ceiling.Allows(req.Amount) {
		return fiber.NewError(http.StatusForbidden, "amount exceeds your verification limit of "+money.Format(ceiling.Value))
	}
	if req.Amount.GreaterThan(h.cfg.MaxWithdrawal) {
		return fiber.NewError(http.StatusBadRequest, "amount above maximum withdrawal of "+money.Format(h.cfg.MaxWithdrawal))
	}

	newBalance, err := h.store.DebitBalance(ctx, user.ID, req.Amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	fee := money.Percentage(req.Amount, h.cfg.FeePercent).Round(2)
	w := Withdrawal{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		AccountID:   account.ID,
		Amount:      req.Amount,
		FeeAmount:   fee,
		NetAmount:   req.Amount.Sub(fee),
		Status:      gateway.WithdrawalPending,
		Description: req.Description,
		Destination: account.Name,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.CreateWithdrawal(ctx, w); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	h.logger.Info("withdrawal initiated", slog.String("id", w.ID), slog.String("user", user.ID))
	return c.Status(http.StatusCreated).JSON(withdrawalResultOf(w, newBalance))
}

// WithdrawalStatus reports a withdrawal's current status.
func (h *Handler) WithdrawalStatus(c *fiber.Ctx) error {
	w, err := h.store.Withdrawal(c.UserContext(), c.Params("id"))
	if err != nil || w.UserID != h.userID(c) {
		return fiber.NewError(http.StatusNotFound, "withdrawal not found")
	}
	return c.JSON(fiber.Map{"status": w.Status})
}

// VerifyDeposit registers a claimed deposit. Idempotent by transaction
// reference: a known reference returns the existing transaction.
func (h *Handler) VerifyDeposit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var claim gateway.DepositClaim
	if err := c.BodyParser(&claim); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if claim.TransactionRef == "" {
		return fiber.NewError(http.StatusBadRequest, "transaction_ref is required")
	}
	if !claim.Amount.IsPositive() {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}

	userID := h.userID(c)
	if existing, err := h.store.DepositByRef(ctx, userID, claim.TransactionRef); err == nil {
		return c.JSON(fiber.Map{"transaction": gateway.DepositTransaction{ID: existing.ID, Status: existing.Status}})
	}

	d := Deposit{
		ID:             uuid.NewString(),
		UserID:         userID,
		AccountID:      claim.AccountID,
		Amount:         claim.Amount,
		Reference:      claim.Reference,
		TransactionRef: claim.TransactionRef,
		Status:         gateway.TransactionPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.store.CreateDeposit(ctx, d); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	h.logger.Info("deposit registered", slog.String("id", d.ID), slog.String("ref", d.TransactionRef))
	return c.Status(http.StatusCreated).JSON(fiber.Map{"transaction": gateway.DepositTransaction{ID: d.ID, Status: d.Status}})
}

// TransactionStatus reports a deposit transaction's current status.
func (h *Handler) TransactionStatus(c *fiber.Ctx) error {
	d, err := h.store.Deposit(c.UserContext(), c.Params("id"))
	if err != nil || d.UserID != h.userID(c) {
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	}
	return c.JSON(fiber.Map{"status": d.Status})
}

type resolveRequest struct {
	Status string `json:"status"`
}

// ResolveTransaction is a sandbox-only hook that plays the verification
// team: it drives a pending deposit to a terminal status, crediting the
// wallet on completion.
func (h *Handler) ResolveTransaction(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	switch req.Status {
	case gateway.TransactionCompleted, gateway.TransactionFailed, gateway.TransactionCancelled, gateway.TransactionRejected:
	default:
		return fiber.NewError(http.StatusBadRequest, "unsupported status")
	}

	d, err := h.store.Deposit(ctx, c.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	}
	if d.Status != gateway.TransactionPending {
		return fiber.NewError(http.StatusConflict, "transaction already resolved")
	}

	d, err = h.store.SetDepositStatus(ctx, d.ID, req.Status)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if req.Status == gateway.TransactionCompleted {
		if _, err := h.store.CreditBalance(ctx, d.UserID, d.Amount); err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(fiber.Map{"transaction": gateway.DepositTransaction{ID: d.ID, Status: d.Status}})
}

func profileOf(user User) gateway.Profile {
	return gateway.Profile{
		User: gateway.ProfileUser{
			ID:                 user.ID,
			Phone:              user.Phone,
			VerificationStatus: user.VerificationStatus,
		},
		Wallet: gateway.ProfileWallet{AvailableBalance: user.Balance},
	}
}

func withdrawalResultOf(w Withdrawal, balance decimal.Decimal) gateway.WithdrawalResult {
	return gateway.WithdrawalResult{
		ID:               w.ID,
		Status:           w.Status,
		NetAmount:        w.NetAmount,
		NewWalletBalance: balance,
		CreatedAt:        w.CreatedAt,
		Destination:      w.Destination,
	}
}
