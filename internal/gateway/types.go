package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal statuses reported by the backend. Ordered: a status never
// moves backwards, and the success-screen poller relies on that.
const (
	WithdrawalPending    = "pending"
	WithdrawalProcessing = "processing"
	WithdrawalCompleted  = "completed"
	WithdrawalRejected   = "rejected"
)

// Deposit transaction statuses as reported by the verification team.
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
	TransactionCancelled = "cancelled"
	TransactionRejected  = "rejected"
)

// Account is a payout destination owned by the account-listing
// collaborator. Immutable once fetched.
type Account struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	MinimumWithdrawal decimal.Decimal `json:"minimum_withdrawal"`
	IsCrypto          bool            `json:"is_crypto"`
}

// WithdrawalInfo is the metadata bundle fetched when the withdrawal flow
// opens: balance, destinations and the global bounds.
type WithdrawalInfo struct {
	Balance           decimal.Decimal    `json:"balance"`
	Accounts          []Account          `json:"accounts"`
	MinimumWithdrawal decimal.Decimal    `json:"minimum_withdrawal"`
	MaximumWithdrawal decimal.Decimal    `json:"maximum_withdrawal"`
	Recent            []WithdrawalResult `json:"recent_withdrawals"`
}

// FeeQuote is the server-computed fee preview for a prospective amount.
type FeeQuote struct {
	WithdrawalAmount decimal.Decimal `json:"withdrawal_amount"`
	FeeAmount        decimal.Decimal `json:"fee_amount"`
	FeePercentage    decimal.Decimal `json:"fee_percentage"`
	NetAmount        decimal.Decimal `json:"net_amount"`
}

// WithdrawalRequest is the single submission payload built on confirm.
type WithdrawalRequest struct {
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// WithdrawalResult is the server's answer to a submitted withdrawal.
type WithdrawalResult struct {
	ID               string          `json:"id"`
	Status           string          `json:"status"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	NewWalletBalance decimal.Decimal `json:"new_wallet_balance"`
	CreatedAt        time.Time       `json:"created_at"`
	Destination      string          `json:"destination"`
}

// DepositClaim registers a payment the user says they made through an
// external channel. TransactionRef makes registration idempotent: the
// backend returns the existing transaction for a known reference.
type DepositClaim struct {
	AccountID      string          `json:"account_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reference      string          `json:"reference"`
	TransactionRef string          `json:"transaction_ref"`
}

// DepositTransaction is the backend's record of a claimed deposit.
type DepositTransaction struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Profile is the authenticated user snapshot, including the wallet balance
// and the identity-verification state.
type Profile struct {
	User   ProfileUser   `json:"user"`
	Wallet ProfileWallet `json:"wallet"`
}

// ProfileUser carries identity fields relevant to the engines.
type ProfileUser struct {
	ID                 string `json:"id"`
	Phone              string `json:"phone"`
	VerificationStatus string `json:"verification_status"`
}

// ProfileWallet carries the server-authoritative balance.
type ProfileWallet struct {
	AvailableBalance decimal.Decimal `json:"available_balance"`
}

// Credentials is the sign-in payload for the sandbox login endpoint.
type Credentials struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
}

// LoginResult is the issued bearer credential and profile snapshot.
type LoginResult struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}
