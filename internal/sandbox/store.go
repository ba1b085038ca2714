package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaultpay/mobile-core/internal/gateway"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds occurs when a withdrawal exceeds the wallet's
	// available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// User is a sandbox wallet owner.
type User struct {
	ID                 string
	Phone              string
	PINHash            []byte
	VerificationStatus string
	Balance            decimal.Decimal
	CreatedAt          time.Time
}

// Withdrawal is a stored withdrawal instruction.
type Withdrawal struct {
	ID          string
	UserID      string
	AccountID   string
	Amount      decimal.Decimal
	FeeAmount   decimal.Decimal
	NetAmount   decimal.Decimal
	Status      string
	Description string
	Destination string
	CreatedAt   time.Time
}

// Deposit is a registered deposit claim awaiting verification.
type Deposit struct {
	ID             string
	UserID         string
	AccountID      string
	Amount         decimal.Decimal
	Reference      string
	TransactionRef string
	Status         string
	CreatedAt      time.Time
}

// Store is the sandbox persistence contract, implemented in memory for
// development and on Postgres when DATABASE_URL is configured.
type Store interface {
	CreateUser(ctx context.Context, user User) error
	UserByPhone(ctx context.Context, phone string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)

	// DebitBalance atomically checks and reduces the wallet balance,
	// returning the new balance. ErrInsufficientFunds when it would go
	// negative.
	DebitBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
	CreditBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)

	CreateAccount(ctx context.Context, userID string, account gateway.Account) error
	Accounts(ctx context.Context, userID string) ([]gateway.Account, error)
	Account(ctx context.Context, userID, accountID string) (gateway.Account, error)

	CreateWithdrawal(ctx context.Context, w Withdrawal) error
	Withdrawal(ctx context.Context, id string) (Withdrawal, error)
	RecentWithdrawals(ctx context.Context, userID string, limit int) ([]Withdrawal, error)

	CreateDeposit(ctx context.Context, d Deposit) error
	Deposit(ctx context.Context, id string) (Deposit, error)
	DepositByRef(ctx context.Context, userID, transactionRef string) (Deposit, error)
	SetDepositStatus(ctx context.Context, id, status string) (Deposit, error)
}
