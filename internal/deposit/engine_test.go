package deposit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaultpay/mobile-core/internal/gateway"
	"github.com/vaultpay/mobile-core/internal/logging"
	"github.com/vaultpay/mobile-core/internal/notification"
)

type stubDepositGateway struct {
	mu            sync.Mutex
	registerCalls int
	registerErr   error
	status        string
	statusErr     error
	statusCalls   atomic.Int64
}

func (g *stubDepositGateway) VerifyDeposit(context.Context, gateway.DepositClaim) (gateway.DepositTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registerCalls++
	if g.registerErr != nil {
		return gateway.DepositTransaction{}, g.registerErr
	}
	return gateway.DepositTransaction{ID: "tx-1", Status: gateway.TransactionPending}, nil
}

func (g *stubDepositGateway) TransactionStatus(context.Context, string) (string, error) {
	g.statusCalls.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.status, nil
}

func (g *stubDepositGateway) set(status string, err error) {
	g.mu.Lock()
	g.status = status
	g.statusErr = err
	g.mu.Unlock()
}

func testClaim() gateway.DepositClaim {
	return gateway.DepositClaim{
		AccountID:      "acct-1",
		Amount:         decimal.RequireFromString("250.00"),
		Reference:      "bank transfer",
		TransactionRef: "ref-1",
	}
}

// fastConfig keeps the countdown and poller quick: a 50ms budget ticking
// every 5ms gives ten countdown ticks.
func fastConfig() Config {
	return Config{
		VerifyBudget:      50 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		CountdownInterval: 5 * time.Millisecond,
	}
}

func newTestEngine(gw Gateway, onCompleted func(context.Context)) *Engine {
	return NewEngine(gw, testClaim(), fastConfig(), onCompleted, notification.NewLoggerNotifier(nil), logging.Discard())
}

func waitStatus(t *testing.T, e *Engine, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for e.Status() != want {
		if time.Now().After(deadline) {
			t.Fatalf("status = %s, want %s", e.Status(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCountdownWinsOverPendingPolls(t *testing.T) {
	gw := &stubDepositGateway{status: gateway.TransactionPending}
	e := newTestEngine(gw, nil)
	defer e.Close()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStatus(t, e, StatusTimeout)

	// The poller is cancelled by the timeout; a late terminal status from
	// the backend must not overwrite it.
	gw.set(gateway.TransactionCompleted, nil)
	time.Sleep(30 * time.Millisecond)
	if e.Status() != StatusTimeout {
		t.Fatalf("terminal state overwritten: %s", e.Status())
	}
	if e.SecondsRemaining() != 0 {
		t.Fatalf("seconds remaining = %d after timeout", e.SecondsRemaining())
	}
}

func TestCompletedStopsCountdown(t *testing.T) {
	gw := &stubDepositGateway{status: gateway.TransactionCompleted}
	refreshed := make(chan struct{})
	var once sync.Once
	e := newTestEngine(gw, func(context.Context) {
		once.Do(func() { close(refreshed) })
	})
	defer e.Close()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStatus(t, e, StatusCompleted)

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("completion did not trigger the balance refresh")
	}

	// Long after the budget would have elapsed, completion still stands.
	time.Sleep(80 * time.Millisecond)
	if e.Status() != StatusCompleted {
		t.Fatalf("timeout fired after completion: %s", e.Status())
	}
}

func TestPollErrorsAreSwallowed(t *testing.T) {
	gw := &stubDepositGateway{statusErr: errors.New("connection reset")}
	e := newTestEngine(gw, nil)
	defer e.Close()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if e.Status() != StatusVerifying {
		t.Fatalf("poll error changed state to %s", e.Status())
	}

	// Only the countdown may end the session.
	waitStatus(t, e, StatusTimeout)
}

func TestRejectedOffersNoBareRetry(t *testing.T) {
	gw := &stubDepositGateway{status: gateway.TransactionRejected}
	e := newTestEngine(gw, nil)
	defer e.Close()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStatus(t, e, StatusRejected)

	actions := e.Actions()
	if len(actions) != 2 || actions[0] != ActionNewPayment || actions[1] != ActionContactSupport {
		t.Fatalf("rejected actions = %v", actions)
	}
	if err := e.Retry(context.Background()); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("retry from rejected: %v", err)
	}
}

func TestRestartOnlyFromRejected(t *testing.T) {
	gw := &stubDepositGateway{status: gateway.TransactionRejected}
	e := newTestEngine(gw, nil)
	defer e.Close()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStatus(t, e, StatusRejected)

	next := testClaim()
	next.TransactionRef = "ref-2"
	gw.set(gateway.TransactionPending, nil)
	if err := e.Restart(context.Background(), next); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if e.Status() != StatusVerifying {
		t.Fatalf("status after restart = %s", e.Status())
	}

	// A restart is a brand new registration, unlike Retry.
	gw.mu.Lock()
	calls := gw.registerCalls
	gw.mu.Unlock()
	if calls != 2 {
		t.Fatalf("register called %d times, want 2", calls)
	}

	// From a timeout only Retry applies.
	waitStatus(t, e, StatusTimeout)
	if err := e.Restart(context.Background(), next); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("restart from timeout: %v", err)
	}
}

func TestRetryReusesTransaction(t *testing.T) {
	gw := &stubDepositGateway{status: gateway.TransactionPending}
	e := newTestEngine(gw, nil)
	defer e.Close()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStatus(t, e, StatusTimeout)

	actions := e.Actions()
	if len(actions) != 2 || actions[0] != ActionRetry || actions[1] != ActionContactSupport {
		t.Fatalf("timeout actions = %v", actions)
	}

	if err := e.Retry(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if e.Status() != StatusVerifying {
		t.Fatalf("status after retry = %s", e.Status())
	}

	gw.set(gateway.TransactionCompleted, nil)
	waitStatus(t, e, StatusCompleted)

	// The retry re-armed the timers without registering a new backend
	// transaction.
	gw.mu.Lock()
	calls := gw.registerCalls
	gw.mu.Unlock()
	if calls != 1 {
		t.Fatalf("register called %d times, want 1", calls)
	}
}

func TestRegistrationFailureGoesToFailed(t *testing.T) {
	gw := &stubDepositGateway{registerErr: &gateway.ServerError{StatusCode: 400, Message: "invalid account"}}
	e := newTestEngine(gw, nil)
	defer e.Close()

	if err := e.Start(context.Background()); err == nil {
		t.Fatal("expected registration error")
	}
	if e.Status() != StatusFailed {
		t.Fatalf("status = %s, want failed", e.Status())
	}
	if e.FailureReason() == "" {
		t.Fatal("failure reason missing")
	}

	// Retry after a registration failure registers again, with the same
	// reference.
	gw.mu.Lock()
	gw.registerErr = nil
	gw.status = gateway.TransactionPending
	gw.mu.Unlock()

	if err := e.Retry(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if e.TransactionID() != "tx-1" {
		t.Fatalf("transaction id = %q", e.TransactionID())
	}
}

func TestCloseCancelsTimers(t *testing.T) {
	gw := &stubDepositGateway{status: gateway.TransactionPending}
	e := newTestEngine(gw, nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	e.Close()

	settled := gw.statusCalls.Load()
	remaining := e.SecondsRemaining()
	time.Sleep(30 * time.Millisecond)
	if got := gw.statusCalls.Load(); got > settled+1 {
		t.Fatalf("poller survived Close: %d -> %d", settled, got)
	}
	if e.SecondsRemaining() < remaining-1 {
		t.Fatalf("countdown survived Close: %d -> %d", remaining, e.SecondsRemaining())
	}
}

func TestStartTwiceFails(t *testing.T) {
	gw := &stubDepositGateway{status: gateway.TransactionPending}
	e := newTestEngine(gw, nil)
	defer e.Close()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second start: %v", err)
	}
}
