package limits

import "github.com/shopspring/decimal"

// Tier is the identity-verification classification reported by the KYC
// collaborator. It only ever moves forward within a session.
type Tier string

const (
	TierUnverified Tier = "unverified"
	TierPending    Tier = "pending"
	TierApproved   Tier = "approved"
)

// ParseTier maps a backend verification status string onto a Tier. Unknown
// values are treated as unverified, the most restrictive classification.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierPending:
		return TierPending
	case TierApproved:
		return TierApproved
	}
	return TierUnverified
}

// Limit is a transaction ceiling. Unlimited is a distinguished state, not
// a large number, so it can never be silently truncated or compared away.
type Limit struct {
	Unlimited bool
	Value     decimal.Decimal
}

// Allows reports whether the amount is within the ceiling.
func (l Limit) Allows(amount decimal.Decimal) bool {
	if l.Unlimited {
		return true
	}
	return amount.LessThanOrEqual(l.Value)
}

// Limits carries the per-category ceilings derived from a tier.
type Limits struct {
	Withdrawal  Limit
	Deposit     Limit
	Transaction Limit
}

// ForTier computes the ceilings for a verification tier. Any tier other
// than approved gets the fixed cap in every category; approved is
// unlimited across the board. Pure function; call it fresh on every
// validation so a mid-session tier upgrade takes effect immediately.
func ForTier(tier Tier, cap decimal.Decimal) Limits {
	if tier == TierApproved {
		unlimited := Limit{Unlimited: true}
		return Limits{Withdrawal: unlimited, Deposit: unlimited, Transaction: unlimited}
	}
	capped := Limit{Value: cap}
	return Limits{Withdrawal: capped, Deposit: capped, Transaction: capped}
}
