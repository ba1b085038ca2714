package sandbox

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vaultpay/mobile-core/internal/gateway"
)

// PostgresStore persists sandbox state in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the sandbox tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sandbox_users (
		id UUID PRIMARY KEY,
		phone TEXT UNIQUE NOT NULL,
		pin_hash BYTEA NOT NULL,
		verification_status TEXT NOT NULL,
		balance NUMERIC(18,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS sandbox_accounts (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES sandbox_users(id),
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		minimum_withdrawal NUMERIC(18,2) NOT NULL DEFAULT 0,
		is_crypto BOOLEAN NOT NULL DEFAULT false
	);
	CREATE TABLE IF NOT EXISTS sandbox_withdrawals (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES sandbox_users(id),
		account_id UUID NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		fee_amount NUMERIC(18,2) NOT NULL,
		net_amount NUMERIC(18,2) NOT NULL,
		status TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS sandbox_deposits (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES sandbox_users(id),
		account_id UUID NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		reference TEXT NOT NULL,
		transaction_ref TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, transaction_ref)
	);`
	_, err := s.db.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.Exec(ctx, `INSERT INTO sandbox_users (id, phone, pin_hash, verification_status, balance)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (phone) DO NOTHING`,
		user.ID, user.Phone, user.PINHash, user.VerificationStatus, user.Balance)
	return err
}

func (s *PostgresStore) UserByPhone(ctx context.Context, phone string) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `SELECT id, phone, pin_hash, verification_status, balance, created_at
		FROM sandbox_users WHERE phone = $1`, phone))
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `SELECT id, phone, pin_hash, verification_status, balance, created_at
		FROM sandbox_users WHERE id = $1`, id))
}

func (s *PostgresStore) scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Phone, &user.PINHash, &user.VerificationStatus, &user.Balance, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (s *PostgresStore) DebitBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRow(ctx, `UPDATE sandbox_users SET balance = balance - $2
		WHERE id = $1 AND balance >= $2 RETURNING balance`, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the user is unknown or the balance would go negative;
		// disambiguate for the error message.
		if _, lookupErr := s.UserByID(ctx, userID); lookupErr != nil {
			return decimal.Decimal{}, lookupErr
		}
		return decimal.Decimal{}, ErrInsufficientFunds
	}
	return balance, err
}

func (s *PostgresStore) CreditBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRow(ctx, `UPDATE sandbox_users SET balance = balance + $2
		WHERE id = $1 RETURNING balance`, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrNotFound
	}
	return balance, err
}

func (s *PostgresStore) CreateAccount(ctx context.Context, userID string, account gateway.Account) error {
	_, err := s.db.Exec(ctx, `INSERT INTO sandbox_accounts (id, user_id, name, category, minimum_withdrawal, is_crypto)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, userID, account.Name, account.Category, account.MinimumWithdrawal, account.IsCrypto)
	return err
}

func (s *PostgresStore) Accounts(ctx context.Context, userID string) ([]gateway.Account, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, category, minimum_withdrawal, is_crypto
		FROM sandbox_accounts WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gateway.Account
	for rows.Next() {
		var a gateway.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Category, &a.MinimumWithdrawal, &a.IsCrypto); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Account(ctx context.Context, userID, accountID string) (gateway.Account, error) {
	var a gateway.Account
	err := s.db.QueryRow(ctx, `SELECT id, name, category, minimum_withdrawal, is_crypto
		FROM sandbox_accounts WHERE user_id = $1 AND id = $2`, userID, accountID).
		Scan(&a.ID, &a.Name, &a.Category, &a.MinimumWithdrawal, &a.IsCrypto)
	if errors.Is(err, pgx.ErrNoRows) {
		return gateway.Account{}, ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) CreateWithdrawal(ctx context.Context, w Withdrawal) error {
	_, err := s.db.Exec(ctx, `INSERT INTO sandbox_withdrawals
		(id, user_id, account_id, amount, fee_amount, net_amount, status, description, destination, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		w.ID, w.UserID, w.AccountID, w.Amount, w.FeeAmount, w.NetAmount, w.Status, w.Description, w.Destination, w.CreatedAt)
	return err
}

func (s *PostgresStore) Withdrawal(ctx context.Context, id string) (Withdrawal, error) {
	var w Withdrawal
	err := s.db.QueryRow(ctx, `SELECT id, user_id, account_id, amount, fee_amount, net_amount, status, description, destination, created_at
		FROM sandbox_withdrawals WHERE id = $1`, id).
		Scan(&w.ID, &w.UserID, &w.AccountID, &w.Amount, &w.FeeAmount, &w.NetAmount, &w.Status, &w.Description, &w.Destination, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Withdrawal{}, ErrNotFound
	}
	return w, err
}

func (s *PostgresStore) RecentWithdrawals(ctx context.Context, userID string, limit int) ([]Withdrawal, error) {
	rows, err := s.db.Query(ctx, `SELECT id, user_id, account_id, amount, fee_amount, net_amount, status, description, destination, created_at
		FROM sandbox_withdrawals WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Withdrawal
	for rows.Next() {
		var w Withdrawal
		if err := rows.Scan(&w.ID, &w.UserID, &w.AccountID, &w.Amount, &w.FeeAmount, &w.NetAmount, &w.Status, &w.Description, &w.Destination, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateDeposit(ctx context.Context, d Deposit) error {
	_, err := s.db.Exec(ctx, `INSERT INTO sandbox_deposits
		(id, user_id, account_id, amount, reference, transaction_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.UserID, d.AccountID, d.Amount, d.Reference, d.TransactionRef, d.Status, d.CreatedAt)
	return err
}

func (s *PostgresStore) Deposit(ctx context.Context, id string) (Deposit, error) {
	return s.scanDeposit(s.db.QueryRow(ctx, `SELECT id, user_id, account_id, amount, reference, transaction_ref, status, created_at
		FROM sandbox_deposits WHERE id = $1`, id))
}

func (s *PostgresStore) DepositByRef(ctx context.Context, userID, transactionRef string) (Deposit, error) {
	return s.scanDeposit(s.db.QueryRow(ctx, `SELECT id, user_id, account_id, amount, reference, transaction_ref, status, created_at
		FROM sandbox_deposits WHERE user_id = $1 AND transaction_ref = $2`, userID, transactionRef))
}

func (s *PostgresStore) SetDepositStatus(ctx context.Context, id, status string) (Deposit, error) {
	_, err := s.db.Exec(ctx, `UPDATE sandbox_deposits SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return Deposit{}, err
	}
	return s.Deposit(ctx, id)
}

func (s *PostgresStore) scanDeposit(row pgx.Row) (Deposit, error) {
	var d Deposit
	err := row.Scan(&d.ID, &d.UserID, &d.AccountID, &d.Amount, &d.Reference, &d.TransactionRef, &d.Status, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Deposit{}, ErrNotFound
	}
	return d, err
}
