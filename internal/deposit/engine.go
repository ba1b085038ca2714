package deposit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vaultpay/mobile-core/internal/gateway"
	"github.com/vaultpay/mobile-core/internal/notification"
	"github.com/vaultpay/mobile-core/internal/poller"
)

// Status is the verification session state. Verifying is the only
// non-terminal value; once the session leaves it, nothing moves it again.
type Status string

const (
	StatusVerifying Status = "verifying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
	StatusTimeout   Status = "timeout"
)

// Terminal reports whether the status ends the session.
func (s Status) Terminal() bool {
	return s != StatusVerifying && s != ""
}

// Action is a retry affordance offered in a terminal state. A rejection is
// a business decision, so it never offers a bare retry of the same
// payment; a timeout or technical failure is presumed transient and does.
type Action string

const (
	ActionRetry          Action = "retry"
	ActionNewPayment     Action = "new_payment"
	ActionContactSupport Action = "contact_support"
)

var (
	// ErrNotRetryable is returned when Retry is called from a state that
	// only permits a new payment or support contact.
	ErrNotRetryable = errors.New("verification not retryable from this state")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("verification already started")
)

// Gateway is the backend surface the engine needs.
type Gateway interface {
	VerifyDeposit(ctx context.Context, claim gateway.DepositClaim) (gateway.DepositTransaction, error)
	TransactionStatus(ctx context.Context, id string) (string, error)
}

// Config carries the verification timers.
type Config struct {
	VerifyBudget time.Duration
	PollInterval time.Duration

	// CountdownInterval is the cadence of the countdown tick. Zero means
	// one second, which is what the UI shows; tests shrink it.
	CountdownInterval time.Duration
}

func (c Config) countdownInterval() time.Duration {
	if c.CountdownInterval <= 0 {
		return time.Second
	}
	return c.CountdownInterval
}

func (c Config) budgetTicks() int {
	return int(c.VerifyBudget / c.countdownInterval())
}

// Engine confirms a claimed deposit. On Start it registers the claim with
// the backend, then races two independently cancellable timers: a
// once-per-second countdown against the budget, and a status poll every
// PollInterval. Both write into a single resolve-once guard; the first
// terminal decision wins and cancels the other timer.
type Engine struct {
	gw          Gateway
	cfg         Config
	onCompleted func(context.Context)
	notifier    notification.Notifier
	logger      *slog.Logger

	mu        sync.Mutex
	claim     gateway.DepositClaim
	txID      string
	status    Status
	reason    string
	remaining int
	countdown *poller.Handle
	poll      *poller.Handle
}

// NewEngine builds a verification engine for one claimed deposit.
// onCompleted runs once after a confirmed deposit, for the balance
// refresh; it may be nil.
func NewEngine(gw Gateway, claim gateway.DepositClaim, cfg Config, onCompleted func(context.Context), notifier notification.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		gw:          gw,
		cfg:         cfg,
		claim:       claim,
		onCompleted: onCompleted,
		notifier:    notifier,
		logger:      logger,
	}
}

// Start registers the claimed deposit and arms both timers. Registration
// is idempotent by transaction reference, so a re-entered view does not
// open a second backend transaction. A registration failure goes straight
// to Failed with the server's reason.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.status != "" {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.status = StatusVerifying
	claim := e.claim
	e.mu.Unlock()

	tx, err := e.gw.VerifyDeposit(ctx, claim)
	if err != nil {
		e.mu.Lock()
		e.status = StatusFailed
		e.reason = err.Error()
		e.mu.Unlock()
		if e.logger != nil {
			e.logger.Warn("deposit registration failed", slog.Any("error", err))
		}
		return err
	}

	e.mu.Lock()
	e.txID = tx.ID
	e.remaining = e.cfg.budgetTicks()
	e.armLocked()
	e.mu.Unlock()

	if e.logger != nil {
		e.logger.Info("deposit verification started", slog.String("transaction", tx.ID))
	}
	return nil
}

// Retry re-arms the countdown and poller for the same backend transaction.
// Only Failed and Timeout permit it; a rejection must not be silently
// replayed.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	switch e.status {
	case StatusFailed, StatusTimeout:
	default:
		e.mu.Unlock()
		return ErrNotRetryable
	}

	if e.txID == "" {
		// Registration itself failed; run it again with the same
		// reference, which the backend treats as idempotent.
		e.status = ""
		e.reason = ""
		e.mu.Unlock()
		return e.Start(ctx)
	}

	e.status = StatusVerifying
	e.reason = ""
	e.remaining = e.cfg.budgetTicks()
	e.armLocked()
	e.mu.Unlock()
	return nil
}

// Restart begins verification of a different payment. Only a rejection
// permits it: the old transaction stays decided and the new claim, which
// must carry a fresh transaction reference, is registered from scratch.
func (e *Engine) Restart(ctx context.Context, claim gateway.DepositClaim) error {
	e.mu.Lock()
	if e.status != StatusRejected {
		e.mu.Unlock()
		return ErrNotRetryable
	}
	e.claim = claim
	e.txID = ""
	e.status = ""
	e.reason = ""
	e.mu.Unlock()
	return e.Start(ctx)
}

// Actions lists the affordances for the current state.
func (e *Engine) Actions() []Action {
	switch e.Status() {
	case StatusRejected:
		return []Action{ActionNewPayment, ActionContactSupport}
	case StatusFailed, StatusTimeout:
		return []Action{ActionRetry, ActionContactSupport}
	}
	return nil
}

// Status returns the session state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SecondsRemaining returns the countdown value shown to the user.
func (e *Engine) SecondsRemaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remaining
}

// TransactionID returns the backend transaction id, once registered.
func (e *Engine) TransactionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txID
}

// FailureReason returns the server-provided reason for a Failed session.
func (e *Engine) FailureReason() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason
}

// Close cancels both timers. Called when the verification view goes away;
// a poll response arriving afterwards cannot mutate the session.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimersLocked()
}

// armLocked starts the countdown and the status poller. Caller holds mu.
func (e *Engine) armLocked() {
	e.stopTimersLocked()
	id := e.txID

	e.countdown = poller.Start(e.cfg.countdownInterval(), func(ctx context.Context) {
		e.tickCountdown(ctx)
	})
	e.poll = poller.Start(e.cfg.PollInterval, func(ctx context.Context) {
		e.probeStatus(ctx, id)
	})
}

func (e *Engine) stopTimersLocked() {
	if e.countdown != nil {
		e.countdown.Stop()
		e.countdown = nil
	}
	if e.poll != nil {
		e.poll.Stop()
		e.poll = nil
	}
}

func (e *Engine) tickCountdown(ctx context.Context) {
	e.mu.Lock()
	if e.status != StatusVerifying || ctx.Err() != nil {
		e.mu.Unlock()
		return
	}
	e.remaining--
	if e.remaining > 0 {
		e.mu.Unlock()
		return
	}
	e.remaining = 0
	e.resolveLocked(ctx, StatusTimeout, "verification window elapsed")
	e.mu.Unlock()
}

// probeStatus asks the backend for the transaction status and maps it.
// Network errors are swallowed: only explicit terminal statuses or the
// countdown end a verifying session.
func (e *Engine) probeStatus(ctx context.Context, id string) {
	status, err := e.gw.TransactionStatus(ctx, id)
	if err != nil || ctx.Err() != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusVerifying {
		return
	}
	switch status {
	case gateway.TransactionCompleted:
		e.resolveLocked(ctx, StatusCompleted, "")
	case gateway.TransactionFailed, gateway.TransactionCancelled:
		e.resolveLocked(ctx, StatusFailed, "payment could not be confirmed")
	case gateway.TransactionRejected:
		e.resolveLocked(ctx, StatusRejected, "payment was rejected by the verification team")
	}
	// Anything else (still pending) keeps polling.
}

// resolveLocked is the single write point for terminal states. The first
// caller wins; both timers are cancelled immediately so a late tick cannot
// overwrite the decision. Caller holds mu and must hold status Verifying.
func (e *Engine) resolveLocked(ctx context.Context, target Status, reason string) {
	e.status = target
	e.reason = reason
	e.stopTimersLocked()

	id := e.txID
	if e.logger != nil {
		e.logger.Info("deposit verification resolved", slog.String("transaction", id), slog.String("status", string(target)))
	}

	if target == StatusCompleted {
		onCompleted := e.onCompleted
		notifier := e.notifier
		go func() {
			if onCompleted != nil {
				onCompleted(context.WithoutCancel(ctx))
			}
			if notifier != nil {
				_ = notifier.Send(context.WithoutCancel(ctx), notification.Message{
					Kind:      notification.KindDepositCompleted,
					Reference: id,
					Body:      "deposit confirmed",
				})
			}
		}()
	}
}
