package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vaultpay/mobile-core/internal/logging"
)

type testCreds struct {
	mu    sync.Mutex
	token string
}

func (c *testCreds) Credential() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != ""
}

func (c *testCreds) Clear() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func TestBearerAttached(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
	}))
	defer srv.Close()

	creds := &testCreds{token: "tok-123"}
	client := New(srv.URL, creds, nil, logging.Discard())

	if _, err := client.WithdrawalStatus(context.Background(), "wd-1"); err != nil {
		t.Fatalf("withdrawal status: %v", err)
	}
	if seen != "Bearer tok-123" {
		t.Fatalf("authorization header = %q", seen)
	}
}

func TestUnauthorizedClearsSessionAndNotifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
	}))
	defer srv.Close()

	creds := &testCreds{token: "stale"}
	var notified int
	client := New(srv.URL, creds, func() { notified++ }, logging.Discard())

	_, err := client.Profile(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("error = %v, want ErrSessionExpired", err)
	}
	if _, ok := creds.Credential(); ok {
		t.Fatal("credential not cleared on 401")
	}
	if notified != 1 {
		t.Fatalf("expiry handler ran %d times, want 1", notified)
	}
}

func TestLoginRejectionIsNotSessionExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
	}))
	defer srv.Close()

	creds := &testCreds{}
	notified := false
	client := New(srv.URL, creds, func() { notified = true }, logging.Discard())

	_, err := client.Login(context.Background(), Credentials{Phone: "1", PIN: "0000"})
	if errors.Is(err, ErrSessionExpired) {
		t.Fatal("login rejection treated as session expiry")
	}
	var serverErr *ServerError
	if !errors.As(err, &serverErr) || serverErr.Message != "invalid credentials" {
		t.Fatalf("error = %v", err)
	}
	if notified {
		t.Fatal("expiry handler ran for a login rejection")
	}
}

func TestServerMessageSurfacedVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "insufficient funds"})
	}))
	defer srv.Close()

	client := New(srv.URL, &testCreds{token: "tok"}, nil, logging.Discard())

	_, err := client.InitiateWithdrawal(context.Background(), WithdrawalRequest{
		AccountID: "acct-1",
		Amount:    decimal.RequireFromString("10"),
	})
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("error = %v", err)
	}
	if serverErr.Message != "insufficient funds" {
		t.Fatalf("message = %q", serverErr.Message)
	}
}

func TestMissingMessageFallsBackToGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, &testCreds{token: "tok"}, nil, logging.Discard())

	_, err := client.WithdrawalInfo(context.Background())
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("error = %v", err)
	}
	if serverErr.Message != genericServerMessage {
		t.Fatalf("message = %q", serverErr.Message)
	}
}

func TestConnectionFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening any more

	client := New(srv.URL, &testCreds{token: "tok"}, nil, logging.Discard())

	_, err := client.Profile(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
}
