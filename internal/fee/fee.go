package fee

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vaultpay/mobile-core/internal/gateway"
)

// Quoter computes a fee preview for a prospective withdrawal.
type Quoter interface {
	CalculateFee(ctx context.Context, accountID string, amount decimal.Decimal) (gateway.FeeQuote, error)
}

// Service fetches fee quotes as the user types, without blocking the
// keystroke. Responses are not guaranteed to arrive in request order, so
// each request carries a generation number and only the latest request's
// result is ever applied; anything older is discarded on arrival.
type Service struct {
	quoter Quoter
	logger *slog.Logger

	mu        sync.Mutex
	gen       uint64
	accountID string
	amount    decimal.Decimal
	quote     gateway.FeeQuote
	has       bool
}

// NewService builds a fee quote service around the given quoter.
func NewService(quoter Quoter, logger *slog.Logger) *Service {
	return &Service{quoter: quoter, logger: logger}
}

// Request fires a quote fetch for the (account, amount) pair and returns
// immediately. The result is applied later, and only if no newer request
// has been issued in the meantime. On error the current quote is cleared
// rather than left stale.
func (s *Service) Request(ctx context.Context, accountID string, amount decimal.Decimal) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.accountID = accountID
	s.amount = amount
	s.mu.Unlock()

	go func() {
		quote, err := s.quoter.CalculateFee(ctx, accountID, amount)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			// Superseded by a newer edit; the active selection changed.
			return
		}
		if err != nil {
			s.quote = gateway.FeeQuote{}
			s.has = false
			if s.logger != nil {
				s.logger.Warn("fee quote failed", slog.String("account", accountID), slog.Any("error", err))
			}
			return
		}
		s.quote = quote
		s.has = true
	}()
}

// Quote returns the currently applied quote, if one is present and still
// matches the last requested pair.
func (s *Service) Quote() (gateway.FeeQuote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quote, s.has
}

// Invalidate clears the quote. Called when the quote's preconditions stop
// holding: amount cleared, account deselected, or amount no longer
// positive. Any in-flight request is implicitly discarded because the
// generation moves on.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.gen++
	s.accountID = ""
	s.amount = decimal.Decimal{}
	s.quote = gateway.FeeQuote{}
	s.has = false
	s.mu.Unlock()
}
