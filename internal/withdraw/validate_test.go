package withdraw

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vaultpay/mobile-core/internal/limits"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRules(tier limits.Tier) amountRules {
	return amountRules{
		balance:    dec("2500.00"),
		accountMin: dec("5.00"),
		globalMin:  dec("1.00"),
		tier:       tier,
		ceiling:    limits.ForTier(tier, dec("1500.00")).Withdrawal,
		systemMax:  dec("50000.00"),
	}
}

func TestGateOrderFirstFailureWins(t *testing.T) {
	r := testRules(limits.TierUnverified)

	// Zero fails the positivity check even though it is also below the
	// minimum; the earlier check must win.
	if verr := validateAmount(dec("0"), r); verr == nil || verr.Category != CategoryInvalidAmount {
		t.Fatalf("zero amount: %+v", verr)
	}

	// Above balance fails before the ceiling check.
	if verr := validateAmount(dec("3000.00"), r); verr == nil || verr.Category != CategoryInsufficientBalance {
		t.Fatalf("above balance: %+v", verr)
	}
}

func TestAccountMinimumTakesPrecedence(t *testing.T) {
	// Account minimum $5, global minimum $1, entered $3: the message must
	// name the account minimum, not the generic one.
	verr := validateAmount(dec("3.00"), testRules(limits.TierApproved))
	if verr == nil {
		t.Fatal("expected a minimum violation")
	}
	if verr.Category != CategoryBelowAccountMinimum {
		t.Fatalf("category = %v", verr.Category)
	}
	if !strings.Contains(verr.Message, "5.00") {
		t.Fatalf("message does not name the account minimum: %q", verr.Message)
	}
}

func TestGlobalMinimumWhenAccountHasNone(t *testing.T) {
	r := testRules(limits.TierApproved)
	r.accountMin = decimal.Decimal{}
	verr := validateAmount(dec("0.50"), r)
	if verr == nil || verr.Category != CategoryBelowMinimum {
		t.Fatalf("global minimum: %+v", verr)
	}
}

func TestCeilingBlocksUnverified(t *testing.T) {
	verr := validateAmount(dec("2000.00"), testRules(limits.TierUnverified))
	if verr == nil || verr.Category != CategoryLimitExceeded {
		t.Fatalf("unverified over cap: %+v", verr)
	}
	if !verr.OffersVerification {
		t.Fatal("limit failure must offer the verification flow")
	}
	if !strings.Contains(verr.Message, "verify") {
		t.Fatalf("unverified message: %q", verr.Message)
	}
}

func TestCeilingMessageDiffersForPending(t *testing.T) {
	unverified := validateAmount(dec("2000.00"), testRules(limits.TierUnverified))
	pending := validateAmount(dec("2000.00"), testRules(limits.TierPending))
	if unverified == nil || pending == nil {
		t.Fatal("both tiers must be blocked over the cap")
	}
	if unverified.Message == pending.Message {
		t.Fatal("unverified and pending must get distinct messages")
	}
	if !pending.OffersVerification {
		t.Fatal("pending limit failure must still offer the verification flow")
	}
}

func TestApprovedNeverCapped(t *testing.T) {
	if verr := validateAmount(dec("2000.00"), testRules(limits.TierApproved)); verr != nil {
		t.Fatalf("approved tier blocked: %v", verr)
	}
}

func TestSystemMaximum(t *testing.T) {
	r := testRules(limits.TierApproved)
	r.balance = dec("100000.00")
	verr := validateAmount(dec("60000.00"), r)
	if verr == nil || verr.Category != CategoryAboveMaximum {
		t.Fatalf("system max: %+v", verr)
	}
}
