package withdraw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaultpay/mobile-core/internal/fee"
	"github.com/vaultpay/mobile-core/internal/gateway"
	"github.com/vaultpay/mobile-core/internal/limits"
	"github.com/vaultpay/mobile-core/internal/money"
	"github.com/vaultpay/mobile-core/internal/notification"
	"github.com/vaultpay/mobile-core/internal/poller"
)

var (
	// ErrSubmitInFlight means a confirmation is already outstanding.
	// Callers treat it as a no-op: the first submission proceeds alone.
	ErrSubmitInFlight = errors.New("submission already in flight")

	// ErrWrongStep is returned when an operation does not apply to the
	// engine's current step.
	ErrWrongStep = errors.New("operation not valid in current step")

	// ErrNoAccount is returned when an account id is unknown.
	ErrNoAccount = errors.New("unknown account")
)

// Step is the withdrawal wizard position. Transitions are linear with
// backward navigation; Success is terminal and only exits via Reset.
type Step int

const (
	StepInfo Step = iota
	StepSelectAccount
	StepEnterAmount
	StepConfirm
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepInfo:
		return "info"
	case StepSelectAccount:
		return "select_account"
	case StepEnterAmount:
		return "enter_amount"
	case StepConfirm:
		return "confirm"
	case StepSuccess:
		return "success"
	}
	return "unknown"
}

// Gateway is the backend surface the engine needs.
type Gateway interface {
	WithdrawalInfo(ctx context.Context) (gateway.WithdrawalInfo, error)
	InitiateWithdrawal(ctx context.Context, req gateway.WithdrawalRequest) (gateway.WithdrawalResult, error)
	WithdrawalStatus(ctx context.Context, id string) (string, error)
}

// TierSource reports the current identity-verification tier. Consulted
// fresh on every validation so a mid-session upgrade takes effect.
type TierSource interface {
	Tier() limits.Tier
}

// Config carries the engine's business thresholds.
type Config struct {
	GlobalMinimum      decimal.Decimal
	SystemMaximum      decimal.Decimal
	UnverifiedCap      decimal.Decimal
	StatusPollInterval time.Duration
}

// Engine drives the outbound-funds wizard: collect destination account,
// amount and confirmation, submit exactly one withdrawal instruction, and
// keep the receipt's status fresh while it is on screen.
type Engine struct {
	gw       Gateway
	tiers    TierSource
	fees     *fee.Service
	notifier notification.Notifier
	cfg      Config
	logger   *slog.Logger

	// submitting strictly serializes confirm attempts. Cleared only after
	// the terminal response is processed.
	submitting atomic.Bool

	mu          sync.Mutex
	step        Step
	info        gateway.WithdrawalInfo
	loaded      bool
	account     *gateway.Account
	amountInput string
	amount      decimal.Decimal
	amountOK    bool
	description string
	result      *gateway.WithdrawalResult
	statusPoll  *poller.Handle
	notified    bool
}

// NewEngine builds a withdrawal engine starting at the info step.
func NewEngine(gw Gateway, tiers TierSource, fees *fee.Service, notifier notification.Notifier, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		gw:       gw,
		tiers:    tiers,
		fees:     fees,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		step:     StepInfo,
	}
}

// Step returns the current wizard position.
func (e *Engine) Step() Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// Load fetches the withdrawal metadata (balance, accounts, bounds).
func (e *Engine) Load(ctx context.Context) error {
	info, err := e.gw.WithdrawalInfo(ctx)
	if err != nil {
		return fmt.Errorf("load withdrawal info: %w", err)
	}
	e.mu.Lock()
	e.info = info
	e.loaded = true
	e.mu.Unlock()
	return nil
}

// Accounts lists the available payout destinations.
func (e *Engine) Accounts() []gateway.Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info.Accounts
}

// Balance returns the cached wallet balance. It is mutated only from
// server-reported values, never by local arithmetic.
func (e *Engine) Balance() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info.Balance
}

// Begin advances from the info screen once metadata is loaded.
func (e *Engine) Begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.step != StepInfo {
		return ErrWrongStep
	}
	if !e.loaded {
		return errors.New("withdrawal info not loaded")
	}
	e.step = StepSelectAccount
	return nil
}

// SelectAccount chooses the payout destination and advances to amount
// entry. Any previously applied fee quote is invalidated.
func (e *Engine) SelectAccount(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.step != StepSelectAccount {
		return ErrWrongStep
	}
	for i := range e.info.Accounts {
		if e.info.Accounts[i].ID == id {
			acct := e.info.Accounts[i]
			e.account = &acct
			e.step = StepEnterAmount
			e.clearAmountLocked()
			return nil
		}
	}
	return ErrNoAccount
}

// SetAmount applies one amount-field edit. The string is re-parsed on
// every mutation; a valid positive amount fires a fee quote request,
// anything else invalidates the quote. The keystroke never blocks on the
// network.
func (e *Engine) SetAmount(ctx context.Context, input string) error {
	e.mu.Lock()
	if e.step != StepEnterAmount {
		e.mu.Unlock()
		return ErrWrongStep
	}
	e.amountInput = input
	account := e.account

	amount, err := money.ParseInput(input)
	if err != nil || !amount.IsPositive() || account == nil {
		e.amount = decimal.Decimal{}
		e.amountOK = false
		e.mu.Unlock()
		e.fees.Invalidate()
		if err != nil && input != "" {
			return err
		}
		return nil
	}

	e.amount = amount
	e.amountOK = true
	accountID := account.ID
	e.mu.Unlock()

	e.fees.Request(ctx, accountID, amount)
	return nil
}

// SetDescription records the optional withdrawal note.
func (e *Engine) SetDescription(desc string) {
	e.mu.Lock()
	e.description = desc
	e.mu.Unlock()
}

// Quote returns the currently applied fee preview, if any.
func (e *Engine) Quote() (gateway.FeeQuote, bool) {
	return e.fees.Quote()
}

// Confirm runs the ordered validation gate and, if it passes, advances to
// the confirmation screen. A *ValidationError reports the first failing
// check; nothing has touched the network at that point.
func (e *Engine) Confirm() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.step != StepEnterAmount {
		return ErrWrongStep
	}
	if !e.amountOK {
		return &ValidationError{Category: CategoryInvalidAmount, Message: "enter an amount greater than zero"}
	}
	if verr := validateAmount(e.amount, e.rulesLocked()); verr != nil {
		return verr
	}
	e.step = StepConfirm
	return nil
}

// Back steps to the previous screen. Success has no backward exit; use
// Reset to return home.
func (e *Engine) Back() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.step {
	case StepSelectAccount:
		e.step = StepInfo
	case StepEnterAmount:
		e.step = StepSelectAccount
		e.account = nil
		e.clearAmountLocked()
	case StepConfirm:
		e.step = StepEnterAmount
	default:
		return ErrWrongStep
	}
	return nil
}

// Submit sends the withdrawal instruction. At most one submission may be
// outstanding: a second call while one is in flight is a no-op signalled
// by ErrSubmitInFlight, so repeated taps cannot duplicate the request.
// On failure the engine stays in Confirm for a retry; on success it moves
// to Success, adopts the server-reported balance and starts the receipt
// status poller.
func (e *Engine) Submit(ctx context.Context) (gateway.WithdrawalResult, error) {
	if !e.submitting.CompareAndSwap(false, true) {
		return gateway.WithdrawalResult{}, ErrSubmitInFlight
	}
	defer e.submitting.Store(false)

	e.mu.Lock()
	if e.step != StepConfirm || e.account == nil {
		e.mu.Unlock()
		return gateway.WithdrawalResult{}, ErrWrongStep
	}
	amount := e.amount
	rules := e.rulesLocked()
	req := gateway.WithdrawalRequest{
		AccountID:   e.account.ID,
		Amount:      amount,
		Description: e.description,
	}
	e.mu.Unlock()

	// The gate runs again at submission time: the tier or balance may
	// have changed since the amount screen.
	if verr := validateAmount(amount, rules); verr != nil {
		return gateway.WithdrawalResult{}, verr
	}

	result, err := e.gw.InitiateWithdrawal(ctx, req)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("withdrawal submission failed", slog.Any("error", err))
		}
		return gateway.WithdrawalResult{}, err
	}

	e.mu.Lock()
	e.result = &result
	// Server-authoritative: never subtract locally, the backend's figure
	// already includes fees and rounding.
	e.info.Balance = result.NewWalletBalance
	e.step = StepSuccess
	e.notified = false
	e.startStatusPollLocked(result.ID)
	e.mu.Unlock()

	if e.logger != nil {
		e.logger.Info("withdrawal submitted", slog.String("id", result.ID), slog.String("status", result.Status))
	}
	return result, nil
}

// Result returns the receipt, once a submission has succeeded.
func (e *Engine) Result() (gateway.WithdrawalResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return gateway.WithdrawalResult{}, false
	}
	return *e.result, true
}

// Reset returns the wizard to the start. The receipt poller stops; the
// metadata is kept so the next run can reuse it until reloaded.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopStatusPollLocked()
	e.step = StepInfo
	e.account = nil
	e.result = nil
	e.description = ""
	e.clearAmountLocked()
}

// Close cancels everything the engine owns. A response arriving after
// Close must not mutate state.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopStatusPollLocked()
}

func (e *Engine) clearAmountLocked() {
	e.amountInput = ""
	e.amount = decimal.Decimal{}
	e.amountOK = false
	e.fees.Invalidate()
}

func (e *Engine) rulesLocked() amountRules {
	tier := e.tiers.Tier()
	var accountMin decimal.Decimal
	if e.account != nil {
		accountMin = e.account.MinimumWithdrawal
	}
	globalMin := e.cfg.GlobalMinimum
	if e.info.MinimumWithdrawal.IsPositive() {
		globalMin = e.info.MinimumWithdrawal
	}
	systemMax := e.cfg.SystemMaximum
	if e.info.MaximumWithdrawal.IsPositive() {
		systemMax = e.info.MaximumWithdrawal
	}
	return amountRules{
		balance:    e.info.Balance,
		accountMin: accountMin,
		globalMin:  globalMin,
		tier:       tier,
		ceiling:    limits.ForTier(tier, e.cfg.UnverifiedCap).Withdrawal,
		systemMax:  systemMax,
	}
}

func (e *Engine) startStatusPollLocked(id string) {
	e.stopStatusPollLocked()
	e.statusPoll = poller.Start(e.cfg.StatusPollInterval, func(ctx context.Context) {
		status, err := e.gw.WithdrawalStatus(ctx, id)
		if err != nil || ctx.Err() != nil {
			return
		}
		e.applyStatus(ctx, status)
	})
}

func (e *Engine) stopStatusPollLocked() {
	if e.statusPoll != nil {
		e.statusPoll.Stop()
		e.statusPoll = nil
	}
}

// applyStatus folds a polled status into the receipt. Statuses only move
// forward; a regression or unknown value is ignored. The first observed
// change triggers a one-time notification refresh and nothing else.
func (e *Engine) applyStatus(ctx context.Context, status string) {
	e.mu.Lock()
	if e.result == nil || e.step != StepSuccess {
		e.mu.Unlock()
		return
	}
	if statusRank(status) <= statusRank(e.result.Status) {
		e.mu.Unlock()
		return
	}
	e.result.Status = status
	id := e.result.ID
	notify := !e.notified
	e.notified = true
	e.mu.Unlock()

	if notify && e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:      notification.KindWithdrawalStatus,
			Reference: id,
			Body:      "withdrawal " + status,
		})
	}
}

func statusRank(status string) int {
	switch status {
	case gateway.WithdrawalPending:
		return 0
	case gateway.WithdrawalProcessing:
		return 1
	case gateway.WithdrawalCompleted, gateway.WithdrawalRejected:
		return 2
	}
	return -1
}
