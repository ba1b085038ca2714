package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const genericServerMessage = "something went wrong, please try again"

var (
	// ErrSessionExpired is returned when the backend answers 401 on an
	// authenticated endpoint. The expiry handler has already run by the
	// time the caller sees this; the request is never retried.
	ErrSessionExpired = errors.New("session expired")

	// ErrNetwork wraps connectivity and timeout failures. Presumed
	// transient; callers may retry without penalty.
	ErrNetwork = errors.New("network error")
)

// ServerError is a business rejection from the backend, carrying the
// server-provided message verbatim where one was given.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// CredentialSource supplies the bearer credential attached to every
// request and is cleared when the session expires.
type CredentialSource interface {
	Credential() (string, bool)
	Clear()
}

// Client is the single HTTP entry point to the wallet backend. It attaches
// credentials, normalizes paths and intercepts 401 responses: the
// credential source is cleared and the injected expiry handler runs, which
// is how "redirect to login from anywhere" works without a global.
type Client struct {
	http      *resty.Client
	creds     CredentialSource
	onExpired func()
	logger    *slog.Logger
}

// New builds a gateway client. onExpired may be nil when the embedding app
// handles re-authentication elsewhere.
func New(baseURL string, creds CredentialSource, onExpired func(), logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json")

	return &Client{
		http:      httpClient,
		creds:     creds,
		onExpired: onExpired,
		logger:    logger,
	}
}

type errorEnvelope struct {
	Message string `json:"message"`
}

type statusEnvelope struct {
	Status string `json:"status"`
}

// Login exchanges credentials for a bearer token. A 401 here means bad
// credentials, not an expired session, so the expiry handler never runs
// for this endpoint.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/mobile/login", creds, &out); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

// Profile fetches the authenticated user snapshot, including the
// server-authoritative wallet balance and verification status.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, "/auth/mobile/profile", nil, &out); err != nil {
		return Profile{}, err
	}
	return out, nil
}

// WithdrawalInfo fetches the withdrawal flow metadata.
func (c *Client) WithdrawalInfo(ctx context.Context) (WithdrawalInfo, error) {
	var out WithdrawalInfo
	if err := c.do(ctx, http.MethodGet, "/mobile/withdrawals/info", nil, &out); err != nil {
		return WithdrawalInfo{}, err
	}
	return out, nil
}

// CalculateFee asks the backend for a fee preview.
func (c *Client) CalculateFee(ctx context.Context, accountID string, amount decimal.Decimal) (FeeQuote, error) {
	body := map[string]any{"account_id": accountID, "amount": amount}
	var out FeeQuote
	if err := c.do(ctx, http.MethodPost, "/mobile/withdrawals/calculate-fee", body, &out); err != nil {
		return FeeQuote{}, err
	}
	if out.WithdrawalAmount.IsZero() {
		out.WithdrawalAmount = amount
	}
	return out, nil
}

// InitiateWithdrawal submits the single withdrawal instruction.
func (c *Client) InitiateWithdrawal(ctx context.Context, req WithdrawalRequest) (WithdrawalResult, error) {
	var out WithdrawalResult
	if err := c.do(ctx, http.MethodPost, "/mobile/withdrawals/initiate", req, &out); err != nil {
		return WithdrawalResult{}, err
	}
	return out, nil
}

// WithdrawalStatus fetches the current status of a submitted withdrawal.
func (c *Client) WithdrawalStatus(ctx context.Context, id string) (string, error) {
	var out statusEnvelope
	if err := c.do(ctx, http.MethodGet, "/mobile/withdrawals/"+id+"/status", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// VerifyDeposit registers a claimed deposit. Idempotent by transaction
// reference: re-registering a known reference returns the existing
// transaction instead of opening a second one.
func (c *Client) VerifyDeposit(ctx context.Context, claim DepositClaim) (DepositTransaction, error) {
	var out struct {
		Transaction DepositTransaction `json:"transaction"`
	}
	if err := c.do(ctx, http.MethodPost, "/mobile/deposits/verify", claim, &out); err != nil {
		return DepositTransaction{}, err
	}
	return out.Transaction, nil
}

// TransactionStatus fetches the current status of a deposit transaction.
func (c *Client) TransactionStatus(ctx context.Context, id string) (string, error) {
	var out statusEnvelope
	if err := c.do(ctx, http.MethodGet, "/mobile/transactions/"+id+"/status", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	path = normalizePath(path)

	req := c.http.R().SetContext(ctx)
	if token, ok := c.creds.Credential(); ok {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	var envelope errorEnvelope
	req.SetError(&envelope)

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}

	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusUnauthorized && !isLoginPath(path):
		c.expireSession(path)
		return ErrSessionExpired
	default:
		msg := strings.TrimSpace(envelope.Message)
		if msg == "" {
			msg = genericServerMessage
		}
		return &ServerError{StatusCode: resp.StatusCode(), Message: msg}
	}
}

// expireSession clears the stored credential and notifies the embedding
// app exactly once per triggering request. The request itself is already
// finished; it is never replayed, so an expired session cannot loop.
func (c *Client) expireSession(path string) {
	if c.logger != nil {
		c.logger.Warn("session expired", slog.String("path", path))
	}
	c.creds.Clear()
	if c.onExpired != nil {
		c.onExpired()
	}
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func isLoginPath(path string) bool {
	return strings.HasPrefix(path, "/auth/mobile/login")
}
