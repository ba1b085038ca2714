package session

import (
	"sync"

	"github.com/vaultpay/mobile-core/internal/limits"
)

// Session holds the current bearer credential and the identity-verification
// tier for the signed-in user. All methods are safe for concurrent use;
// engines and the gateway share one instance.
type Session struct {
	mu    sync.RWMutex
	token string
	tier  limits.Tier
}

// New returns an unauthenticated session at the most restrictive tier.
func New() *Session {
	return &Session{tier: limits.TierUnverified}
}

// SetCredential stores the bearer token issued at sign-in.
func (s *Session) SetCredential(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Credential returns the current bearer token, if any.
func (s *Session) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Authenticated reports whether a credential is present.
func (s *Session) Authenticated() bool {
	_, ok := s.Credential()
	return ok
}

// SetTier records the verification tier reported by the KYC collaborator.
// A downgrade is ignored: tiers are treated as monotonically improving
// within one session.
func (s *Session) SetTier(t limits.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rank(t) >= rank(s.tier) {
		s.tier = t
	}
}

// Tier returns the current verification tier.
func (s *Session) Tier() limits.Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tier
}

func rank(t limits.Tier) int {
	switch t {
	case limits.TierApproved:
		return 2
	case limits.TierPending:
		return 1
	}
	return 0
}

// Clear wipes the credential and resets the tier. Called by the gateway's
// session-expiry handler before the re-authentication redirect.
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.tier = limits.TierUnverified
	s.mu.Unlock()
}
