package sandbox

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vaultpay/mobile-core/internal/gateway"
)

// MemoryStore is the development and test Store backend.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[string]User
	byPhone     map[string]string
	accounts    map[string][]gateway.Account
	withdrawals map[string]Withdrawal
	deposits    map[string]Deposit
	byRef       map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]User),
		byPhone:     make(map[string]string),
		accounts:    make(map[string][]gateway.Account),
		withdrawals: make(map[string]Withdrawal),
		deposits:    make(map[string]Deposit),
		byRef:       make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	s.byPhone[user.Phone] = user.ID
	return nil
}

func (s *MemoryStore) UserByPhone(_ context.Context, phone string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemoryStore) UserByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) DebitBalance(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return decimal.Decimal{}, ErrNotFound
	}
	next := user.Balance.Sub(amount)
	if next.IsNegative() {
		return decimal.Decimal{}, ErrInsufficientFunds
	}
	user.Balance = next
	s.users[userID] = user
	return next, nil
}

func (s *MemoryStore) CreditBalance(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return decimal.Decimal{}, ErrNotFound
	}
	user.Balance = user.Balance.Add(amount)
	s.users[userID] = user
	return user.Balance, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, userID string, account gateway.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID] = append(s.accounts[userID], account)
	return nil
}

func (s *MemoryStore) Accounts(_ context.Context, userID string) ([]gateway.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gateway.Account, len(s.accounts[userID]))
	copy(out, s.accounts[userID])
	return out, nil
}

func (s *MemoryStore) Account(_ context.Context, userID, accountID string) (gateway.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts[userID] {
		if account.ID == accountID {
			return account, nil
		}
	}
	return gateway.Account{}, ErrNotFound
}

func (s *MemoryStore) CreateWithdrawal(_ context.Context, w Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdrawals[w.ID] = w
	return nil
}

func (s *MemoryStore) Withdrawal(_ context.Context, id string) (Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return Withdrawal{}, ErrNotFound
	}
	return w, nil
}

func (s *MemoryStore) RecentWithdrawals(_ context.Context, userID string, limit int) ([]Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Withdrawal
	for _, w := range s.withdrawals {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateDeposit(_ context.Context, d Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits[d.ID] = d
	s.byRef[d.UserID+"/"+d.TransactionRef] = d.ID
	return nil
}

func (s *MemoryStore) Deposit(_ context.Context, id string) (Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deposits[id]
	if !ok {
		return Deposit{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) DepositByRef(_ context.Context, userID, transactionRef string) (Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRef[userID+"/"+transactionRef]
	if !ok {
		return Deposit{}, ErrNotFound
	}
	return s.deposits[id], nil
}

func (s *MemoryStore) SetDepositStatus(_ context.Context, id, status string) (Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deposits[id]
	if !ok {
		return Deposit{}, ErrNotFound
	}
	d.Status = status
	s.deposits[id] = d
	return d, nil
}
