package withdraw

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vaultpay/mobile-core/internal/limits"
	"github.com/vaultpay/mobile-core/internal/money"
)

// ErrorCategory classifies a validation failure so the UI can route the
// user: edit the amount, or jump into identity verification.
type ErrorCategory int

const (
	CategoryInvalidAmount ErrorCategory = iota
	CategoryInsufficientBalance
	CategoryBelowAccountMinimum
	CategoryBelowMinimum
	CategoryLimitExceeded
	CategoryAboveMaximum
)

// ValidationError is a client-side rejection of the entered amount. It is
// raised before any network call and is always recoverable by editing the
// input; limit failures additionally offer the verification flow.
type ValidationError struct {
	Category ErrorCategory
	Message  string
	// OffersVerification marks limit failures whose remedy is completing
	// identity verification rather than editing the amount.
	OffersVerification bool
}

func (e *ValidationError) Error() string {
	return e.Message
}

// amountRules bundles everything the validation gate consults. The tier
// and its ceiling are computed fresh by the caller on every validation.
type amountRules struct {
	balance    decimal.Decimal
	accountMin decimal.Decimal
	globalMin  decimal.Decimal
	tier       limits.Tier
	ceiling    limits.Limit
	systemMax  decimal.Decimal
}

// validateAmount runs the ordered gate: first failing check wins and no
// network call is made. Order is fixed: positive, balance, minimum,
// authorization ceiling, system maximum.
func validateAmount(amount decimal.Decimal, r amountRules) *ValidationError {
	if !amount.IsPositive() {
		return &ValidationError{
			Category: CategoryInvalidAmount,
			Message:  "enter an amount greater than zero",
		}
	}

	if amount.GreaterThan(r.balance) {
		return &ValidationError{
			Category: CategoryInsufficientBalance,
			Message:  fmt.Sprintf("amount exceeds your available balance of %s", money.Format(r.balance)),
		}
	}

	// The account-specific minimum takes precedence over the generic one
	// when it is set and at least as strict.
	minimum := r.globalMin
	accountBinding := false
	if r.accountMin.IsPositive() && r.accountMin.GreaterThanOrEqual(r.globalMin) {
		minimum = r.accountMin
		accountBinding = true
	}
	if amount.LessThan(minimum) {
		if accountBinding {
			return &ValidationError{
				Category: CategoryBelowAccountMinimum,
				Message:  fmt.Sprintf("this account requires a minimum withdrawal of %s", money.Format(minimum)),
			}
		}
		return &ValidationError{
			Category: CategoryBelowMinimum,
			Message:  fmt.Sprintf("minimum withdrawal is %s", money.Format(minimum)),
		}
	}

	if !r.ceiling.Allows(amount) {
		msg := fmt.Sprintf("your verification is in review; amounts above %s stay locked until it is approved", money.Format(r.ceiling.Value))
		if r.tier == limits.TierUnverified {
			msg = fmt.Sprintf("verify your identity to move more than %s", money.Format(r.ceiling.Value))
		}
		return &ValidationError{
			Category:           CategoryLimitExceeded,
			Message:            msg,
			OffersVerification: true,
		}
	}

	if r.systemMax.IsPositive() && amount.GreaterThan(r.systemMax) {
		return &ValidationError{
			Category: CategoryAboveMaximum,
			Message:  fmt.Sprintf("maximum withdrawal is %s", money.Format(r.systemMax)),
		}
	}

	return nil
}
