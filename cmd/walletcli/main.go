package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaultpay/mobile-core/internal/config"
	"github.com/vaultpay/mobile-core/internal/deposit"
	"github.com/vaultpay/mobile-core/internal/fee"
	"github.com/vaultpay/mobile-core/internal/gateway"
	"github.com/vaultpay/mobile-core/internal/limits"
	"github.com/vaultpay/mobile-core/internal/logging"
	"github.com/vaultpay/mobile-core/internal/money"
	"github.com/vaultpay/mobile-core/internal/notification"
	"github.com/vaultpay/mobile-core/internal/session"
	"github.com/vaultpay/mobile-core/internal/withdraw"
)

func main() {
	var (
		phone       = flag.String("phone", "15550100", "login phone")
		pin         = flag.String("pin", "1234", "login PIN")
		account     = flag.String("account", "", "destination account name (defaults to first)")
		amount      = flag.String("amount", "", "withdrawal amount, e.g. 25.00")
		description = flag.String("desc", "", "withdrawal description")
		claim       = flag.String("claim", "", "instead of withdrawing, verify a claimed deposit of this amount")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	sess := session.New()
	gw := gateway.New(cfg.APIBaseURL, sess, func() {
		fmt.Fprintln(os.Stderr, "session expired, please sign in again")
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	login, err := gw.Login(ctx, gateway.Credentials{Phone: *phone, PIN: *pin})
	if err != nil {
		fatal("login: %v", err)
	}
	sess.SetCredential(login.Token)
	sess.SetTier(limits.ParseTier(login.Profile.User.VerificationStatus))
	fmt.Printf("signed in as %s (verification: %s), balance %s\n",
		login.Profile.User.Phone, sess.Tier(), money.Format(login.Profile.Wallet.AvailableBalance))

	if *claim != "" {
		runDeposit(ctx, cfg, gw, logger, *claim)
		return
	}
	if *amount == "" {
		fatal("either -amount or -claim is required")
	}
	runWithdrawal(ctx, cfg, gw, sess, logger, *account, *amount, *description)
}

func runWithdrawal(ctx context.Context, cfg config.Config, gw *gateway.Client, sess *session.Session, logger *slog.Logger, accountName, amount, description string) {
	log := logging.Component(logger, "withdraw")
	fees := fee.NewService(gw, log)
	notifier := notification.NewLoggerNotifier(log)

	engine := withdraw.NewEngine(gw, sess, fees, notifier, withdraw.Config{
		GlobalMinimum:      cfg.MinWithdrawal,
		SystemMaximum:      cfg.MaxWithdrawal,
		UnverifiedCap:      cfg.UnverifiedLimit,
		StatusPollInterval: cfg.WithdrawalPollInterval,
	}, log)
	defer engine.Close()

	if err := engine.Load(ctx); err != nil {
		fatal("%v", err)
	}
	if err := engine.Begin(); err != nil {
		fatal("%v", err)
	}

	accounts := engine.Accounts()
	if len(accounts) == 0 {
		fatal("no payout accounts on file")
	}
	chosen := accounts[0]
	for _, a := range accounts {
		if accountName != "" && strings.EqualFold(a.Name, accountName) {
			chosen = a
		}
	}
	if err := engine.SelectAccount(chosen.ID); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("withdrawing to %s\n", chosen.Name)

	if err := engine.SetAmount(ctx, amount); err != nil {
		fatal("invalid amount %q", amount)
	}
	engine.SetDescription(description)

	// Give the fee preview a moment; it is advisory, not required.
	time.Sleep(500 * time.Millisecond)
	if quote, ok := engine.Quote(); ok {
		fmt.Printf("fee %s (%s%%), net %s\n",
			money.Format(quote.FeeAmount), quote.FeePercentage, money.Format(quote.NetAmount))
	}

	if err := engine.Confirm(); err != nil {
		fatal("%v", err)
	}
	result, err := engine.Submit(ctx)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("withdrawal %s %s, net %s, new balance %s\n",
		result.ID, result.Status, money.Format(result.NetAmount), money.Format(result.NewWalletBalance))
}

func runDeposit(ctx context.Context, cfg config.Config, gw *gateway.Client, logger *slog.Logger, amount string) {
	parsed, err := money.ParseInput(amount)
	if err != nil {
		fatal("invalid amount %q", amount)
	}
	log := logging.Component(logger, "deposit")

	engine := deposit.NewEngine(gw, gateway.DepositClaim{
		Amount:         parsed,
		Reference:      "walletcli",
		TransactionRef: uuid.NewString(),
	}, deposit.Config{
		VerifyBudget: cfg.DepositVerifyBudget,
		PollInterval: cfg.DepositPollInterval,
	}, func(ctx context.Context) {
		if profile, err := gw.Profile(ctx); err == nil {
			fmt.Printf("new balance %s\n", money.Format(profile.Wallet.AvailableBalance))
		}
	}, notification.NewLoggerNotifier(log), log)
	defer engine.Close()

	if err := engine.Start(ctx); err != nil {
		fatal("register deposit: %v", err)
	}
	fmt.Printf("verifying transaction %s (use the sandbox resolve hook to decide it)\n", engine.TransactionID())

	for engine.Status() == deposit.StatusVerifying {
		time.Sleep(time.Second)
		fmt.Printf("\r%3ds remaining", engine.SecondsRemaining())
	}
	fmt.Printf("\nverification finished: %s", engine.Status())
	if reason := engine.FailureReason(); reason != "" {
		fmt.Printf(" (%s)", reason)
	}
	fmt.Println()
	for _, action := range engine.Actions() {
		fmt.Printf("  available action: %s\n", action)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
